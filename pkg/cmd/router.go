package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/larivierec/hover-cli/pkg/config"
	"github.com/larivierec/hover-cli/pkg/registrar/hover"
	"github.com/spf13/pflag"
)

// Invocation is a successfully parsed argument vector. When Help is set
// nothing else is populated.
type Invocation struct {
	Help    bool
	Config  config.Config
	Command Command
}

func newGlobalFlags(c *config.Config) *pflag.FlagSet {
	fs := pflag.NewFlagSet("hover", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	fs.SetInterspersed(false)

	fs.StringVarP(&c.Username, "username", "u", "", "hover account username (required)")
	fs.StringVarP(&c.Password, "password", "p", "", "hover account password (required)")
	fs.StringVar(&c.Endpoint, "endpoint", hover.DefaultEndpoint, "hover API base URL")
	fs.DurationVar(&c.Timeout, "timeout", hover.DefaultTimeout, "timeout for each API request")
	fs.StringVarP(&c.Output, "output", "o", config.OutputJSON, "list output format: json or table")
	fs.CountVarP(&c.Verbose, "verbose", "v", "log API requests to stderr; repeat for more detail")
	fs.StringVar(&c.Pushgateway, "pushgateway", "", "push request metrics to this Prometheus Pushgateway URL")
	fs.BoolP("help", "h", false, "show this help")
	return fs
}

func newCommandFlags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	return fs
}

// Parse turns the arguments after the program name into an Invocation.
// Global flags go before the command token and may also follow it.
func Parse(args []string) (Invocation, error) {
	args, help := scan(args)
	if help {
		return Invocation{Help: true}, nil
	}

	var inv Invocation
	global := newGlobalFlags(&inv.Config)
	if err := global.Parse(args); err != nil {
		return Invocation{}, errors.Wrap(err, "parse flags")
	}

	rest := global.Args()
	if len(rest) == 0 {
		return Invocation{}, errors.New("no command given")
	}
	spec, ok := lookupCommand(rest[0])
	if !ok {
		return Invocation{}, errors.Newf("unknown command %q", rest[0])
	}

	cmd, fs := spec.build()
	fs.AddFlagSet(global)
	if err := fs.Parse(rest[1:]); err != nil {
		return Invocation{}, errors.Wrapf(err, "parse %s flags", spec.name)
	}
	if fs.NArg() > 0 {
		return Invocation{}, errors.Newf("exactly one command is allowed, got extra arguments %s", strings.Join(fs.Args(), " "))
	}

	if err := config.Validate(inv.Config); err != nil {
		return Invocation{}, err
	}
	if err := config.Validate(cmd); err != nil {
		return Invocation{}, errors.Wrap(err, spec.name)
	}
	inv.Command = cmd
	return inv, nil
}

// scan rewrites the single-dash -id spelling, which pflag would otherwise
// read as the shorthands -i -d, and reports whether help was requested.
// Values of flags are skipped, so "-p -h" is a password and not help.
func scan(args []string) ([]string, bool) {
	known := knownFlags()
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return append(out, args[i:]...), false
		}
		switch {
		case arg == "-id":
			arg = "--dns-id"
		case strings.HasPrefix(arg, "-id="):
			arg = "--dns-id=" + strings.TrimPrefix(arg, "-id=")
		}
		out = append(out, arg)

		help, takesValue := inspect(known, arg)
		if help {
			return out, true
		}
		if takesValue && i+1 < len(args) {
			i++
			out = append(out, args[i])
		}
	}
	return out, false
}

// inspect reports whether arg asks for help and whether the next argument
// is its value.
func inspect(known *pflag.FlagSet, arg string) (help, takesValue bool) {
	switch {
	case strings.HasPrefix(arg, "--"):
		name, _, inline := strings.Cut(arg[2:], "=")
		if name == "help" {
			return true, false
		}
		f := known.Lookup(name)
		return false, f != nil && !inline && f.NoOptDefVal == ""
	case strings.HasPrefix(arg, "-") && len(arg) > 1:
		for j := 1; j < len(arg); j++ {
			c := arg[j : j+1]
			if c == "h" {
				return true, false
			}
			f := known.ShorthandLookup(c)
			if f == nil {
				return false, false
			}
			if f.NoOptDefVal == "" {
				// -pVALUE carries its value; a bare -p takes the next argument.
				return false, j == len(arg)-1
			}
		}
	}
	return false, false
}

// knownFlags is the union of the global flags and every command's flags.
func knownFlags() *pflag.FlagSet {
	var discard config.Config
	fs := newGlobalFlags(&discard)
	for _, spec := range commands {
		_, cmdFlags := spec.build()
		fs.AddFlagSet(cmdFlags)
	}
	return fs
}

func Usage(w io.Writer) {
	var discard config.Config
	global := newGlobalFlags(&discard)

	fmt.Fprintln(w, "Usage: hover -u <username> -p <password> [flags] <command> [command-flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, spec := range commands {
		fmt.Fprintf(w, "  %-14s %s\n", spec.name, spec.description)
		_, fs := spec.build()
		for _, line := range strings.Split(strings.TrimRight(fs.FlagUsages(), "\n"), "\n") {
			if line != "" {
				fmt.Fprintf(w, "    %s\n", line)
			}
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global flags:")
	fmt.Fprint(w, global.FlagUsages())
}
