package cli

import (
	"github.com/cockroachdb/errors"
	"github.com/larivierec/hover-cli/pkg/registrar"
)

const (
	ExitOK       = 0
	ExitConflict = 1
	ExitFatal    = 2
)

type Kind int

const (
	Success Kind = iota
	// Conflict is a write the registrar refused. It is reported as a
	// single line and is the only recoverable failure.
	Conflict
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Conflict:
		return "conflict"
	default:
		return "fatal"
	}
}

// Result is the outcome of one Command. On success exactly one of Text or
// Value is set: Text is printed verbatim, Value is rendered as JSON or a table.
type Result struct {
	Kind  Kind
	Text  string
	Value any
	Err   error
}

func (r Result) ExitCode() int {
	switch r.Kind {
	case Success:
		return ExitOK
	case Conflict:
		return ExitConflict
	default:
		return ExitFatal
	}
}

func text(s string) Result {
	return Result{Kind: Success, Text: s}
}

func structured(v any) Result {
	return Result{Kind: Success, Value: v}
}

func fatal(err error) Result {
	return Result{Kind: Fatal, Err: err}
}

// write maps the outcome of an add or update. Only those two operations
// downgrade a registrar conflict to a clean failure.
func write(resp string, err error) Result {
	switch {
	case err == nil:
		return text(resp)
	case errors.Is(err, registrar.ErrConflict):
		return Result{Kind: Conflict, Err: err}
	default:
		return fatal(err)
	}
}
