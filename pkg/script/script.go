// Package script evaluates detector descriptions written in a small Lisp.
// It wraps zygomys in a sandboxed environment and records every builtin
// call into a detector.Description, which the detector builder then turns
// into a world.
//
// A script sees the unit constants (mm, cm, m, deg, rad, g-per-cm3,
// percent, full-circle) and the build parameters (fast-length, fast-width,
// world-half) as predefined variables.
package script

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chazu/detgeom/pkg/detector"
	"github.com/chazu/detgeom/pkg/units"
	zygo "github.com/glycerine/zygomys/zygo"
	"github.com/sirupsen/logrus"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Engine wraps the zygomys interpreter. It is safe for concurrent use;
// each call to Evaluate creates a fresh sandboxed environment.
type Engine struct {
	mu         sync.Mutex
	generation uint64
	timeout    time.Duration
	log        *logrus.Entry
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout overrides EvalTimeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the logger for abandoned evaluations.
func WithLogger(log *logrus.Entry) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// NewEngine creates a new Engine instance.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{timeout: EvalTimeout, log: logrus.NewEntry(logrus.StandardLogger())}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Evaluate runs source with the parameters p bound as variables and
// returns the description it recorded.
//
// Return semantics:
//   - On success: returns description + nil errors + nil error
//   - On parse/eval failure: returns nil description + eval errors + nil error
//   - On fatal failure (timeout, panic, superseded): returns nil + nil +
//     *FatalError
func (e *Engine) Evaluate(source string, p detector.Params) (*detector.Description, []EvalError, error) {
	return e.EvaluateContext(context.Background(), source, p)
}

// EvaluateContext is Evaluate bounded by ctx as well as the engine timeout.
func (e *Engine) EvaluateContext(ctx context.Context, source string, p detector.Params) (*detector.Description, []EvalError, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		d, evalErrs, err := e.evaluate(source, p)
		ch <- outcome{desc: d, errors: evalErrs, err: err}
	}()

	return e.await(ctx, ch, gen, source)
}

// Describe returns a detector.DescribeFunc that evaluates source on every
// build. Evaluation errors are joined into a single error.
func (e *Engine) Describe(source string) detector.DescribeFunc {
	return func(p detector.Params) (detector.Description, error) {
		d, evalErrs, err := e.Evaluate(source, p)
		if err != nil {
			return detector.Description{}, err
		}
		if len(evalErrs) > 0 {
			errs := make([]error, len(evalErrs))
			for i, ee := range evalErrs {
				errs[i] = ee
			}
			return detector.Description{}, fmt.Errorf("script: %w", errors.Join(errs...))
		}
		return *d, nil
	}
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string, p detector.Params) (*detector.Description, []EvalError, error) {
	rec := newRecorder()

	// Empty source is a valid program that describes nothing.
	if strings.TrimSpace(source) == "" {
		return rec.desc, nil, nil
	}

	// Sandbox mode prevents user code from accessing the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()
	registerBuiltins(env, rec)

	// The prelude shares the first line with the source so that line
	// numbers in errors still refer to the user's text.
	err := env.LoadString(preprocessSource(prelude(p) + source))
	if err != nil {
		return nil, parseZygomysError(err), nil
	}

	_, err = env.Run()
	if err != nil {
		return nil, parseZygomysError(err), nil
	}
	return rec.desc, nil, nil
}

// prelude defines the unit constants and the build parameters on a single
// line.
func prelude(p detector.Params) string {
	vars := []struct {
		name  string
		value float64
	}{
		{"mm", units.MM},
		{"cm", units.CM},
		{"m", units.M},
		{"rad", units.Radian},
		{"deg", units.Degree},
		{"g-per-cm3", units.GramPerCm3},
		{"percent", units.PerCent},
		{"full-circle", units.FullCircle},
		{"fast-length", p.FastLength},
		{"fast-width", p.FastWidth},
		{"world-half", p.WorldHalf},
	}
	var b strings.Builder
	for _, v := range vars {
		fmt.Fprintf(&b, "(def %s %s) ", v.name, floatLiteral(v.value))
	}
	return b.String()
}

// floatLiteral formats v so that it reads back as exactly the same float.
func floatLiteral(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
// It attempts to extract line number information from the error message.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{
				Line:    line,
				Message: strings.TrimSpace(m[2]),
			}}
		}
	}

	// Fallback: no line info available.
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
