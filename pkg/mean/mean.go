// Package mean computes intensity-weighted centroids of response curves:
// the ratio of the integrals of x·f(x) and f(x) over an interval.
//
// Both integrals are evaluated by the same globally adaptive Gauss–Legendre
// scheme with the same tolerances, so systematic quadrature bias cancels in
// the ratio instead of skewing it.
package mean

import (
	"container/heap"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate/quad"
)

var (
	ErrInvalidInterval = errors.New("invalid interval")
	ErrUndefined       = errors.New("function undefined")
	ErrZeroDenominator = errors.New("zero denominator")
	ErrNotConverged    = errors.New("quadrature did not converge")
)

// NumericalError reports a failed integration or mean over [Lower, Upper].
type NumericalError struct {
	Op           string
	Lower, Upper float64
	Err          error
}

func (e *NumericalError) Error() string {
	return fmt.Sprintf("mean: %s on [%g, %g]: %v", e.Op, e.Lower, e.Upper, e.Err)
}

func (e *NumericalError) Unwrap() error {
	return e.Err
}

// Func is a scalar function of one variable.
type Func func(x float64) float64

// Defaults for a zero-option Estimator.
const (
	DefaultRelTol       = 1e-10
	DefaultAbsTol       = 1e-12
	DefaultMaxIntervals = 2000

	initialPartition = 4
	highOrder        = 15
	lowOrder         = 7

	// denominators below this fraction of ∫|f| are lost to cancellation
	cancellation = 1e-10
)

// Estimator integrates and averages functions. It is immutable and safe for
// concurrent use.
type Estimator struct {
	relTol       float64
	absTol       float64
	maxIntervals int
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithRelTol sets the relative error target.
func WithRelTol(tol float64) Option {
	return func(e *Estimator) { e.relTol = tol }
}

// WithAbsTol sets the absolute error target.
func WithAbsTol(tol float64) Option {
	return func(e *Estimator) { e.absTol = tol }
}

// WithMaxIntervals caps the number of subintervals. Reaching the cap
// before the error target fails with ErrNotConverged.
func WithMaxIntervals(n int) Option {
	return func(e *Estimator) { e.maxIntervals = n }
}

// New returns an estimator. Non-positive option values fall back to the
// defaults.
func New(opts ...Option) *Estimator {
	e := &Estimator{
		relTol:       DefaultRelTol,
		absTol:       DefaultAbsTol,
		maxIntervals: DefaultMaxIntervals,
	}
	for _, o := range opts {
		o(e)
	}
	if !(e.relTol > 0) {
		e.relTol = DefaultRelTol
	}
	if !(e.absTol > 0) {
		e.absTol = DefaultAbsTol
	}
	if e.maxIntervals <= 0 {
		e.maxIntervals = DefaultMaxIntervals
	}
	return e
}

var defaultEstimator = New()

// ComputeWeightedMean returns ∫x·f(x)dx / ∫f(x)dx over [lower, upper]
// using the default tolerances.
func ComputeWeightedMean(f Func, lower, upper float64) (float64, error) {
	return defaultEstimator.WeightedMean(f, lower, upper)
}

// Result is a converged integral.
type Result struct {
	Value     float64
	AbsErr    float64 // estimated absolute error
	Magnitude float64 // estimate of ∫|f|, the scale of Value
	Intervals int
}

// WeightedMean returns ∫x·f(x)dx / ∫f(x)dx over [lower, upper].
func (e *Estimator) WeightedMean(f Func, lower, upper float64) (float64, error) {
	fail := func(err error) (float64, error) {
		var ne *NumericalError
		if errors.As(err, &ne) {
			ne.Op = "weighted mean"
			return 0, ne
		}
		return 0, &NumericalError{Op: "weighted mean", Lower: lower, Upper: upper, Err: err}
	}

	den, err := e.Integrate(f, lower, upper)
	if err != nil {
		return fail(err)
	}
	if math.Abs(den.Value) <= math.Max(den.AbsErr, cancellation*den.Magnitude) {
		return fail(fmt.Errorf("%w: ∫f = %g ± %g", ErrZeroDenominator, den.Value, den.AbsErr))
	}
	num, err := e.Integrate(func(x float64) float64 { return x * f(x) }, lower, upper)
	if err != nil {
		return fail(err)
	}
	return num.Value / den.Value, nil
}

// Integrate returns ∫f(x)dx over [lower, upper]. f must be finite at both
// end points and at every quadrature node.
func (e *Estimator) Integrate(f Func, lower, upper float64) (res Result, err error) {
	wrap := func(err error) error {
		return &NumericalError{Op: "integrate", Lower: lower, Upper: upper, Err: err}
	}
	switch {
	case f == nil:
		return Result{}, wrap(fmt.Errorf("%w: nil function", ErrInvalidInterval))
	case math.IsNaN(lower) || math.IsNaN(upper) || math.IsInf(lower, 0) || math.IsInf(upper, 0):
		return Result{}, wrap(fmt.Errorf("%w: bounds must be finite", ErrInvalidInterval))
	case !(lower < upper):
		return Result{}, wrap(fmt.Errorf("%w: lower bound must be below upper", ErrInvalidInterval))
	}

	defer func() {
		if r := recover(); r != nil {
			res, err = Result{}, wrap(fmt.Errorf("%w: evaluation panicked: %v", ErrUndefined, r))
		}
	}()

	ev := &evaluator{f: f}
	ev.at(lower)
	ev.at(upper)
	if ev.err != nil {
		return Result{}, wrap(ev.err)
	}

	res, err = e.adapt(ev, lower, upper)
	if err != nil {
		return Result{}, wrap(err)
	}
	return res, nil
}

// evaluator records the first point where f is not finite.
type evaluator struct {
	f   Func
	err error
}

func (ev *evaluator) at(x float64) float64 {
	y := ev.f(x)
	if (math.IsNaN(y) || math.IsInf(y, 0)) && ev.err == nil {
		ev.err = fmt.Errorf("%w: f(%g) = %g", ErrUndefined, x, y)
	}
	return y
}

type interval struct {
	a, b   float64
	value  float64
	absErr float64
}

// intervalHeap orders intervals by decreasing error estimate.
type intervalHeap []interval

func (h intervalHeap) Len() int           { return len(h) }
func (h intervalHeap) Less(i, j int) bool { return h[i].absErr > h[j].absErr }
func (h intervalHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intervalHeap) Push(x any)        { *h = append(*h, x.(interval)) }
func (h *intervalHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

func (e *Estimator) rule(ev *evaluator, a, b float64) (interval, error) {
	hi := quad.Fixed(ev.at, a, b, highOrder, quad.Legendre{}, 0)
	lo := quad.Fixed(ev.at, a, b, lowOrder, quad.Legendre{}, 0)
	if ev.err != nil {
		return interval{}, ev.err
	}
	return interval{a: a, b: b, value: hi, absErr: math.Abs(hi - lo)}, nil
}

// adapt repeatedly bisects the interval with the largest error estimate
// until the total error meets the tolerance.
func (e *Estimator) adapt(ev *evaluator, lower, upper float64) (Result, error) {
	n := min(initialPartition, e.maxIntervals)
	h := make(intervalHeap, 0, n)
	width := (upper - lower) / float64(n)
	for i := 0; i < n; i++ {
		a := lower + float64(i)*width
		b := lower + float64(i+1)*width
		if i == n-1 {
			b = upper
		}
		it, err := e.rule(ev, a, b)
		if err != nil {
			return Result{}, err
		}
		h = append(h, it)
	}
	heap.Init(&h)

	for {
		var value, absErr, magnitude float64
		for _, it := range h {
			value += it.value
			absErr += it.absErr
			magnitude += math.Abs(it.value)
		}
		if absErr <= math.Max(e.absTol, e.relTol*math.Abs(value)) {
			return Result{Value: value, AbsErr: absErr, Magnitude: magnitude, Intervals: len(h)}, nil
		}
		if len(h) >= e.maxIntervals {
			return Result{}, fmt.Errorf("%w: error %g after %d intervals", ErrNotConverged, absErr, len(h))
		}

		worst := heap.Pop(&h).(interval)
		mid := worst.a + (worst.b-worst.a)/2
		if !(mid > worst.a && mid < worst.b) {
			return Result{}, fmt.Errorf("%w: interval [%g, %g] cannot be split", ErrNotConverged, worst.a, worst.b)
		}
		for _, span := range [2][2]float64{{worst.a, mid}, {mid, worst.b}} {
			it, err := e.rule(ev, span[0], span[1])
			if err != nil {
				return Result{}, err
			}
			heap.Push(&h, it)
		}
	}
}
