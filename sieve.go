// Package sievevm compiles RFC 5228 Sieve scripts into instruction programs
// and runs them as resumable, event-driven evaluations against a parsed
// message. The host executes the emitted events (keep, fileinto, redirect,
// notify, ...) and answers external tests; the engine itself performs no
// I/O.
package sievevm

import (
	"bytes"
	"io"

	"github.com/migadu/sievevm/interp"
	"github.com/migadu/sievevm/lexer"
	"github.com/migadu/sievevm/parser"
)

type (
	Sieve      = interp.Sieve
	Runtime    = interp.Runtime
	Context    = interp.Context
	Event      = interp.Event
	Input      = interp.Input
	Capability = interp.Capability
	Limits     = interp.Limits

	RuntimeError = interp.RuntimeError
	CompileError = lexer.CompileError

	Options struct {
		Lexer  lexer.Options
		Parser parser.Options
	}
)

var (
	InputTrue  = interp.InputTrue
	InputFalse = interp.InputFalse
)

func InputScript(name string, script *Sieve) Input {
	return interp.InputScript(name, script)
}

func DefaultOptions() Options {
	return Options{
		Lexer: lexer.Options{
			MaxTokens:     5000,
			MaxScriptSize: 1 << 20,
		},
		Parser: parser.Options{
			MaxBlockNesting:    15,
			MaxTestNesting:     15,
			MaxVariableNameLen: 32,
		},
	}
}

// Compile tokenizes and parses a script into an immutable program.
func Compile(r io.Reader, opts Options) (*Sieve, error) {
	toks, err := lexer.Lex(r, &opts.Lexer)
	if err != nil {
		return nil, err
	}
	return parser.Parse(toks, &opts.Parser)
}

// CompileBytes is Compile over an in-memory script.
func CompileBytes(script []byte, opts Options) (*Sieve, error) {
	return Compile(bytes.NewReader(script), opts)
}

// NewRuntime builds the shared evaluation configuration.
func NewRuntime(allowed []Capability, limits Limits) *Runtime {
	return interp.NewRuntime(allowed, limits)
}

// DefaultLimits returns the stock execution limits.
func DefaultLimits() Limits {
	return interp.DefaultLimits()
}

// NewContext prepares a per-message execution state. Feed the main script
// with ctx.Run(InputScript(name, program)) and keep calling Run until it
// returns a nil event.
func NewContext(runtime *Runtime, rawMessage []byte) *Context {
	return interp.NewContext(runtime, rawMessage)
}

// AllCapabilities lists every extension this engine knows.
func AllCapabilities() []Capability {
	return interp.AllCapabilities()
}
