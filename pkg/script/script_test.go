package script

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/chazu/detgeom/pkg/detector"
	"github.com/chazu/detgeom/pkg/solid"
)

func TestEvaluateEmptyString(t *testing.T) {
	eng := NewEngine()

	for _, src := range []string{"", "   \n\t  \n  "} {
		d, evalErrs, err := eng.Evaluate(src, detector.DefaultParams())
		if err != nil {
			t.Fatalf("unexpected fatal error: %v", err)
		}
		if len(evalErrs) > 0 {
			t.Fatalf("unexpected eval errors: %v", evalErrs)
		}
		if d == nil {
			t.Fatal("expected non-nil description")
		}
		if len(d.Volumes) != 0 || len(d.Primitives) != 0 {
			t.Errorf("expected empty description, got %d volumes", len(d.Volumes))
		}
		if d.OverlapCheck != nil {
			t.Error("overlap check should be left to the parameters")
		}
	}
}

func TestEvaluateArithmetic(t *testing.T) {
	eng := NewEngine()

	source := `
(def x 10)
(def y 20)
(+ x y)
`
	d, evalErrs, err := eng.Evaluate(source, detector.DefaultParams())
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}
	if d == nil {
		t.Fatal("expected non-nil description")
	}
}

func TestEvaluateSyntaxError(t *testing.T) {
	eng := NewEngine()

	// Unmatched paren is a parse error.
	d, evalErrs, err := eng.Evaluate("(+ 1 2", detector.DefaultParams())
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if d != nil {
		t.Fatal("expected nil description on syntax error")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected at least one eval error for syntax error")
	}
	if evalErrs[0].Message == "" {
		t.Error("eval error message should not be empty")
	}
}

func TestEvaluateUndefinedSymbol(t *testing.T) {
	eng := NewEngine()

	d, evalErrs, err := eng.Evaluate("(+ 1 undefined-symbol)", detector.DefaultParams())
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if d != nil {
		t.Fatal("expected nil description on eval error")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected at least one eval error for undefined symbol")
	}
}

func TestEvaluateSyntaxErrorHasLineInfo(t *testing.T) {
	eng := NewEngine()

	// Put the error on line 2.
	_, evalErrs, err := eng.Evaluate("(+ 1 2)\n(+ 3", detector.DefaultParams())
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected at least one eval error")
	}

	// Line info depends on the zygomys message format.
	e := evalErrs[0]
	if e.Message == "" {
		t.Error("eval error message should not be empty")
	}
	if e.Line > 0 {
		t.Logf("extracted line info: line=%d, message=%q", e.Line, e.Message)
	} else {
		t.Logf("no line info extracted (line=0), message=%q", e.Message)
	}
}

func TestEvalErrorImplementsError(t *testing.T) {
	e := EvalError{Line: 5, Message: "something went wrong"}
	s := e.Error()
	if !strings.Contains(s, "line 5") {
		t.Errorf("Error() should contain line info, got: %s", s)
	}
	if !strings.Contains(s, "something went wrong") {
		t.Errorf("Error() should contain message, got: %s", s)
	}

	e2 := EvalError{Message: "no location"}
	if strings.Contains(e2.Error(), "line") {
		t.Errorf("Error() with no line should not contain 'line', got: %s", e2.Error())
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	eng := NewEngine()
	src := `(box "B" 1 2 3)`

	first, _, err := eng.Evaluate(src, detector.DefaultParams())
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	for i := 0; i < 5; i++ {
		d, evalErrs, err := eng.Evaluate(src, detector.DefaultParams())
		if err != nil {
			t.Fatalf("iteration %d: unexpected fatal error: %v", i, err)
		}
		if len(evalErrs) > 0 {
			t.Fatalf("iteration %d: unexpected eval errors: %v", i, evalErrs)
		}
		if len(d.Primitives) != 1 || d.Primitives[0] != first.Primitives[0] {
			t.Errorf("iteration %d: got %v, want %v", i, d.Primitives, first.Primitives)
		}
	}
}

func TestPreludeParameters(t *testing.T) {
	eng := NewEngine()
	p := detector.DefaultParams()
	p.FastLength = 80
	p.FastWidth = 9.5

	d, evalErrs, err := eng.Evaluate(`(box "B" fast-width (* 2 cm) fast-length)`, p)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	b, ok := d.Primitives[0].(solid.Box)
	if !ok {
		t.Fatalf("expected box, got %T", d.Primitives[0])
	}
	if b.HalfX != 9.5 || b.HalfY != 20 || b.HalfZ != 80 {
		t.Errorf("box half-lengths = (%g, %g, %g), want (9.5, 20, 80)", b.HalfX, b.HalfY, b.HalfZ)
	}
}

func TestFloatLiteral(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1, "1.0"},
		{-1, "-1.0"},
		{13.875, "13.875"},
		{3000, "3000.0"},
	}
	for _, tt := range tests {
		if got := floatLiteral(tt.in); got != tt.want {
			t.Errorf("floatLiteral(%g) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func quietEngine(opts ...Option) *Engine {
	l, _ := test.NewNullLogger()
	return NewEngine(append([]Option{WithLogger(logrus.NewEntry(l))}, opts...)...)
}

func TestEvaluateTimeout(t *testing.T) {
	e := quietEngine(WithTimeout(50 * time.Millisecond))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	ch := make(chan outcome) // never sends

	start := time.Now()
	_, _, err := e.await(ctx, ch, 0, "; bench\n\n(box \"B\" 1 2 3)\n")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got: %v", err)
	}
	var fe *FatalError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FatalError, got %T", err)
	}
	if fe.Script != `(box "B" 1 2 3)` {
		t.Errorf("script label = %q", fe.Script)
	}
	if !strings.Contains(err.Error(), "50ms") {
		t.Errorf("message should name the limit: %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("timeout took %s", time.Since(start))
	}
}

func TestEvaluateContextCancelled(t *testing.T) {
	e := quietEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := e.await(ctx, make(chan outcome), 0, "(+ 1 2)")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got: %v", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("cancellation is not a timeout")
	}
}

func TestEvaluateGenerationDiscardsStale(t *testing.T) {
	e := quietEngine()
	e.generation = 2

	ch := make(chan outcome, 1)
	ch <- outcome{desc: &detector.Description{}}

	d, _, err := e.await(context.Background(), ch, 1, "(world w)")
	if !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got: %v", err)
	}
	if d != nil {
		t.Error("stale description should be dropped")
	}
	var fe *FatalError
	if !errors.As(err, &fe) || fe.Generation != 1 {
		t.Errorf("expected generation 1 in %v", err)
	}
}

func TestEvaluatePanicIsFatal(t *testing.T) {
	e := quietEngine()
	ch := make(chan outcome, 1)
	ch <- outcome{err: errors.New("panic during evaluation: boom")}

	_, _, err := e.await(context.Background(), ch, 0, "(boom)")
	var fe *FatalError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FatalError, got %v", err)
	}
	if !strings.Contains(err.Error(), "boom") || fe.Script != "(boom)" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestScriptLabel(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"", "<empty>"},
		{"; only a comment\n  \n", "<empty>"},
		{"\n  (def x 1)\n(def y 2)", "(def x 1)"},
		{"(def a-rather-long-name (box \"B\" 1 2 3 4 5 6 7))", "(def a-rather-long-name (box \"B\" 1 2 ..."},
	}
	for _, tt := range tests {
		if got := scriptLabel(tt.source); got != tt.want {
			t.Errorf("scriptLabel(%q) = %q, want %q", tt.source, got, tt.want)
		}
	}
}

func TestDescribeJoinsErrors(t *testing.T) {
	eng := NewEngine()
	_, err := eng.Describe(`(box "B" 1 2)`)(detector.DefaultParams())
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "box requires") {
		t.Errorf("error should carry the builtin message, got: %v", err)
	}
}

func TestParseZygomysError(t *testing.T) {
	tests := []struct {
		name     string
		msg      string
		wantLine int
		wantMsg  string
	}{
		{
			name:     "error on line format",
			msg:      "Error on line 5: unexpected token\n",
			wantLine: 5,
			wantMsg:  "unexpected token",
		},
		{
			name:     "no line info",
			msg:      "some generic error",
			wantLine: 0,
			wantMsg:  "some generic error",
		},
		{
			name:     "line format lowercase",
			msg:      "error on line 12: missing paren",
			wantLine: 12,
			wantMsg:  "missing paren",
		},
		{
			name:     "short line format",
			msg:      "line 3: box requires a name",
			wantLine: 3,
			wantMsg:  "box requires a name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := parseZygomysError(errString(tt.msg))
			if len(errs) == 0 {
				t.Fatal("expected at least one error")
			}
			e := errs[0]
			if e.Line != tt.wantLine {
				t.Errorf("line = %d, want %d", e.Line, tt.wantLine)
			}
			if !strings.Contains(e.Message, tt.wantMsg) {
				t.Errorf("message = %q, want containing %q", e.Message, tt.wantMsg)
			}
		})
	}
}

// errString is a simple error type for testing.
type errString string

func (e errString) Error() string { return string(e) }
