// Package sensitive tracks the named detector regions that an external
// tracking engine reports energy deposits to.
//
// The Registry owns its handles. Registering a name that is already present
// releases the earlier handle before the fresh one is inserted, so rebuilding
// the geometry never leaves two live handles under one name.
package sensitive

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync/atomic"

	"github.com/chazu/detgeom/pkg/geom"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnknownDetector = errors.New("unknown sensitive detector")
	ErrReleased        = errors.New("sensitive detector released")
)

// Hit is a single energy deposit inside a sensitive volume.
type Hit struct {
	Volume   string    // name of the volume the step occurred in
	Edep     float64   // deposited energy, MeV
	Position geom.Vec3 // global position, mm
	Time     float64   // global time, ns
	TrackID  int
}

// Processor handles deposits for one detector. It is supplied by the
// tracking engine; if it also implements io.Closer it is closed when its
// detector is released.
type Processor interface {
	ProcessHit(Hit) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(Hit) error

func (f ProcessorFunc) ProcessHit(h Hit) error { return f(h) }

// Detector is a live handle for one named sensitive region.
type Detector struct {
	name     string
	id       uuid.UUID
	proc     Processor
	hits     atomic.Int64
	released atomic.Bool
}

// Name returns the registry key.
func (d *Detector) Name() string { return d.name }

// ID distinguishes this handle from earlier handles of the same name.
func (d *Detector) ID() uuid.UUID { return d.id }

// Hits returns the number of deposits delivered so far.
func (d *Detector) Hits() int64 { return d.hits.Load() }

// Released reports whether the handle was replaced or released.
func (d *Detector) Released() bool { return d.released.Load() }

func (d *Detector) String() string {
	return fmt.Sprintf("%s[%s]", d.name, d.id.String()[:8])
}

// Deliver routes a hit to the detector's processor.
func (d *Detector) Deliver(h Hit) error {
	if d.released.Load() {
		return fmt.Errorf("%w: %s", ErrReleased, d)
	}
	d.hits.Add(1)
	if d.proc == nil {
		return nil
	}
	return d.proc.ProcessHit(h)
}

// release marks d dead and closes its processor. It is idempotent.
func (d *Detector) release() error {
	if d.released.Swap(true) {
		return nil
	}
	if c, ok := d.proc.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Option configures a Registry.
type Option func(*Registry)

// WithProcessorFactory sets the function used to create a processor for
// each newly registered detector.
func WithProcessorFactory(f func(name string) Processor) Option {
	return func(r *Registry) { r.factory = f }
}

// WithLogger sets the logger used for registration events.
func WithLogger(log *logrus.Entry) Option {
	return func(r *Registry) { r.log = log }
}

// Registry maps detector names to live handles. It is not safe for
// concurrent mutation; Deliver on distinct detectors may run concurrently.
type Registry struct {
	detectors map[string]*Detector
	factory   func(name string) Processor
	log       *logrus.Entry
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		detectors: make(map[string]*Detector),
		log:       logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Register creates a fresh handle under name. Any handle already registered
// under that name is released and dropped first.
func (r *Registry) Register(name string) (*Detector, error) {
	if name == "" {
		return nil, errors.New("sensitive: detector name is empty")
	}
	if old, ok := r.detectors[name]; ok {
		delete(r.detectors, name)
		if err := old.release(); err != nil {
			r.log.WithError(err).WithField("detector", name).Warn("closing replaced detector processor")
		}
		r.log.WithField("detector", old.String()).Debug("released replaced detector")
	}

	d := &Detector{name: name, id: uuid.New()}
	if r.factory != nil {
		d.proc = r.factory(name)
	}
	r.detectors[name] = d
	r.log.WithField("detector", d.String()).Debug("registered sensitive detector")
	return d, nil
}

// Lookup returns the live handle registered under name.
func (r *Registry) Lookup(name string) (*Detector, bool) {
	d, ok := r.detectors[name]
	return d, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.detectors))
	for n := range r.detectors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered detectors.
func (r *Registry) Len() int {
	return len(r.detectors)
}

// Deliver routes a hit to the detector registered under name.
func (r *Registry) Deliver(name string, h Hit) error {
	d, ok := r.detectors[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDetector, name)
	}
	return d.Deliver(h)
}

// Release drops and releases the detector registered under name.
func (r *Registry) Release(name string) error {
	d, ok := r.detectors[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDetector, name)
	}
	delete(r.detectors, name)
	return d.release()
}

// ReleaseAll releases every handle and empties the registry.
func (r *Registry) ReleaseAll() error {
	var errs []error
	for _, name := range r.Names() {
		if err := r.Release(name); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
