package script

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chazu/detgeom/pkg/detector"
)

// EvalTimeout is the default limit for a single evaluation.
const EvalTimeout = 5 * time.Second

var (
	// ErrTimeout means the script ran past the engine's time limit.
	ErrTimeout = errors.New("evaluation timed out")
	// ErrSuperseded means a newer evaluation started on the same engine
	// before this one finished; its result was dropped.
	ErrSuperseded = errors.New("evaluation superseded by a newer one")
)

// FatalError is an evaluation that produced neither a description nor
// line-numbered errors.
type FatalError struct {
	Script     string // first code line of the source
	Generation uint64
	Err        error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("script %q (evaluation %d): %v", e.Script, e.Generation, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// outcome is what an evaluation goroutine hands back.
type outcome struct {
	desc   *detector.Description
	errors []EvalError
	err    error
}

// await waits for evaluation gen of source. The goroutine behind ch keeps
// running after ctx is done; its result is discarded.
func (e *Engine) await(ctx context.Context, ch <-chan outcome, gen uint64, source string) (*detector.Description, []EvalError, error) {
	select {
	case res := <-ch:
		if e.Generation() != gen {
			return nil, nil, e.fatal(gen, source, ErrSuperseded)
		}
		if res.err != nil {
			return nil, nil, e.fatal(gen, source, res.err)
		}
		return res.desc, res.errors, nil

	case <-ctx.Done():
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s", ErrTimeout, e.timeout)
		}
		e.log.WithField("generation", gen).WithError(err).Warn("script evaluation abandoned")
		return nil, nil, e.fatal(gen, source, err)
	}
}

// Generation counts the evaluations started on e.
func (e *Engine) Generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}

func (e *Engine) fatal(gen uint64, source string, err error) *FatalError {
	return &FatalError{Script: scriptLabel(source), Generation: gen, Err: err}
}

// scriptLabel names a script by its first line that is neither blank nor
// a comment, cut to 40 characters.
func scriptLabel(source string) string {
	for _, line := range strings.Split(source, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		if len(line) > 40 {
			line = line[:37] + "..."
		}
		return line
	}
	return "<empty>"
}
