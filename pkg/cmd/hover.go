package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/larivierec/hover-cli/pkg/config"
	"github.com/larivierec/hover-cli/pkg/metrics"
	"github.com/larivierec/hover-cli/pkg/registrar"
	"github.com/larivierec/hover-cli/pkg/registrar/hover"
)

// Start runs one invocation and returns the process exit code.
func Start(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	inv, err := Parse(args)
	if err != nil {
		fmt.Fprintf(stderr, "error: %s\n\n", err)
		Usage(stderr)
		return ExitFatal
	}
	if inv.Help {
		Usage(stdout)
		return ExitOK
	}

	cfg := inv.Config
	logger := newLogger(stderr, cfg.Verbose)
	recorder := metrics.NewRecorder()
	defer func() {
		// Push even after an interrupt, but never wait longer than one API call.
		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Timeout)
		defer cancel()
		if err := recorder.Push(pushCtx, cfg.Pushgateway); err != nil {
			logger.Error(err, "unable to push metrics")
		}
	}()

	reg := hover.NewHoverRegistrar(hover.Configuration{
		Endpoint: cfg.Endpoint,
		Timeout:  cfg.Timeout,
		Logger:   logger.WithName("hover"),
		Metrics:  recorder,
	})
	return run(ctx, cfg, inv.Command, reg, logger, stdout, stderr)
}

func run(ctx context.Context, cfg config.Config, cmd Command, reg registrar.Registrar, logger logr.Logger, stdout, stderr io.Writer) int {
	if err := reg.Login(ctx, cfg.Username, cfg.Password); err != nil {
		return report(fatal(err), cfg, stdout, stderr)
	}
	logger.V(1).Info("running command", "command", cmd.Name())
	return report(cmd.Execute(ctx, reg), cfg, stdout, stderr)
}

func report(result Result, cfg config.Config, stdout, stderr io.Writer) int {
	switch result.Kind {
	case Success:
		if result.Value != nil {
			if err := render(stdout, cfg.Output, result.Value); err != nil {
				return report(fatal(err), cfg, stdout, stderr)
			}
		} else {
			fmt.Fprintln(stdout, result.Text)
		}
	case Conflict:
		fmt.Fprintln(stderr, oneLine(result.Err.Error()))
	default:
		if cfg.Verbose > 0 {
			fmt.Fprintf(stderr, "error: %+v\n\n", result.Err)
		} else {
			fmt.Fprintf(stderr, "error: %s\n\n", result.Err)
		}
		Usage(stderr)
	}
	return result.ExitCode()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func newLogger(w io.Writer, verbosity int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(w, "%s: %s\n", prefix, args)
			return
		}
		fmt.Fprintln(w, args)
	}, funcr.Options{Verbosity: verbosity})
}
