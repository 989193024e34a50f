// Package detector assembles a complete detector geometry from a
// declarative Description.
//
// Build runs a fixed sequence of stages: materials, primitive solids,
// boolean solids, volumes and placements, sensitive detectors and display
// styles. Any failure aborts the build and no partial world is returned;
// the registry is only changed after every other stage has succeeded.
package detector

import (
	"errors"
	"fmt"

	"github.com/chazu/detgeom/pkg/failure"
	"github.com/chazu/detgeom/pkg/geom"
	"github.com/chazu/detgeom/pkg/material"
	"github.com/chazu/detgeom/pkg/sensitive"
	"github.com/chazu/detgeom/pkg/solid"
	"github.com/chazu/detgeom/pkg/vis"
	"github.com/chazu/detgeom/pkg/volume"
	"github.com/sirupsen/logrus"
)

// World is the result of a build: the root volume and the registry holding
// the detectors attached to it.
type World struct {
	Root         *volume.Volume
	Registry     *sensitive.Registry
	OverlapCheck bool
}

// Find returns the named volume, or nil.
func (w *World) Find(name string) *volume.Volume {
	return volume.Find(w.Root, name)
}

// Position returns the origin of the named volume in world coordinates.
func (w *World) Position(name string) (geom.Vec3, error) {
	t, err := volume.GlobalTransform(w.Root, name)
	if err != nil {
		return geom.Vec3{}, err
	}
	return t.Translation, nil
}

// DescribeFunc produces the description to build from the parameters.
type DescribeFunc func(Params) (Description, error)

// Builder builds worlds. It holds no state between builds.
type Builder struct {
	params   Params
	describe DescribeFunc
	log      *logrus.Entry
}

// Option configures a Builder.
type Option func(*Builder)

// WithParams sets the build parameters.
func WithParams(p Params) Option {
	return func(b *Builder) { b.params = p }
}

// WithLogger sets the logger for stage progress.
func WithLogger(log *logrus.Entry) Option {
	return func(b *Builder) { b.log = log }
}

// WithDescription replaces the reference description, e.g. with one
// evaluated from a script.
func WithDescription(f DescribeFunc) Option {
	return func(b *Builder) { b.describe = f }
}

// New returns a builder for the reference detector with default parameters.
func New(opts ...Option) *Builder {
	b := &Builder{
		params: DefaultParams(),
		describe: func(p Params) (Description, error) {
			return Reference(p), nil
		},
		log: logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Params returns the builder's parameters.
func (b *Builder) Params() Params {
	return b.params
}

// Build constructs the world. Materials are fetched from or added to cat;
// detectors are registered in reg, replacing (and releasing) any handle of
// the same name left by an earlier build. A nil cat or reg is replaced by
// a fresh one.
//
// reg is only touched once every other stage has succeeded, so a failed
// build leaves the handles of the previous world live.
func (b *Builder) Build(cat *material.Catalog, reg *sensitive.Registry) (*World, error) {
	if cat == nil {
		var err error
		if cat, err = material.NewCatalog(); err != nil {
			return nil, err
		}
	}
	if reg == nil {
		reg = sensitive.NewRegistry(sensitive.WithLogger(b.log))
	}

	desc, err := b.describe(b.params)
	if err != nil {
		return nil, fmt.Errorf("describing detector: %w", err)
	}

	bs := &buildState{
		desc:    desc,
		overlap: desc.OverlapEnabled(b.params),
		cat:     cat,
		reg:     reg,
		log:     b.log,
		mats:    make(map[string]*material.Material),
		solids:  make(map[string]solid.Solid),
		vols:    make(map[string]*volume.Volume),
	}
	type stage struct {
		name string
		run  func() error
	}
	stages := []stage{
		{"materials", bs.resolveMaterials},
		{"primitives", bs.buildPrimitives},
		{"booleans", bs.composeBooleans},
		{"volumes", bs.assembleVolumes},
		{"sensitive", bs.checkSensitive},
	}
	if b.params.Decorate {
		stages = append(stages, stage{"vis", bs.decorate})
	}
	stages = append(stages, stage{"registry", bs.bindSensitive})

	for _, st := range stages {
		if err := st.run(); err != nil {
			err = failure.WithStage(err, st.name)
			b.log.WithField("stage", st.name).WithError(err).Error("geometry build failed")
			return nil, err
		}
		b.log.WithField("stage", st.name).Debug("stage complete")
	}

	b.log.WithFields(logrus.Fields{
		"volumes":   volume.Count(bs.world),
		"detectors": reg.Len(),
		"overlap":   bs.overlap,
	}).Info("geometry built")

	return &World{Root: bs.world, Registry: reg, OverlapCheck: bs.overlap}, nil
}

// buildState carries the lookups of one build.
type buildState struct {
	desc    Description
	overlap bool
	cat     *material.Catalog
	reg     *sensitive.Registry
	log     *logrus.Entry

	mats   map[string]*material.Material
	solids map[string]solid.Solid
	vols   map[string]*volume.Volume
	world  *volume.Volume
}

func (bs *buildState) resolveMaterials() error {
	for _, sym := range bs.desc.Elements {
		if _, err := bs.cat.FindOrBuildElement(sym); err != nil {
			return err
		}
	}
	for _, c := range bs.desc.Composites {
		m, err := bs.cat.DefineComposite(c.Name, c.Density, c.Fractions)
		if err != nil {
			return err
		}
		bs.mats[c.Name] = m
	}
	for _, name := range bs.desc.Materials {
		m, err := bs.cat.FindOrBuildMaterial(name)
		if err != nil {
			return err
		}
		bs.mats[name] = m
	}
	bs.log.WithField("count", len(bs.mats)).Debug("materials resolved")
	return nil
}

func (bs *buildState) buildPrimitives() error {
	for _, s := range bs.desc.Primitives {
		if _, ok := s.(solid.Boolean); ok {
			return failure.Configuration("primitives", s.SolidName(), "boolean solids belong in the boolean list")
		}
		if err := solid.Validate(s); err != nil {
			return err
		}
		if err := bs.addSolid(s); err != nil {
			return err
		}
	}
	return nil
}

func (bs *buildState) composeBooleans() error {
	for _, spec := range bs.desc.Booleans {
		left, ok := bs.solids[spec.Left]
		if !ok {
			return failure.Composition("booleans", spec.Name, "left operand %q not built", spec.Left)
		}
		right, ok := bs.solids[spec.Right]
		if !ok {
			return failure.Composition("booleans", spec.Name, "right operand %q not built", spec.Right)
		}
		s, err := solid.NewBoolean(spec.Name, spec.Op, left, right, spec.Placement)
		if err != nil {
			return err
		}
		if err := bs.addSolid(s); err != nil {
			return err
		}
		bs.log.WithField("solid", spec.Name).Tracef("%s of %s and %s", spec.Op, spec.Left, spec.Right)
	}
	return nil
}

func (bs *buildState) addSolid(s solid.Solid) error {
	name := s.SolidName()
	if _, dup := bs.solids[name]; dup {
		return failure.Configuration("", name, "duplicate solid name")
	}
	bs.solids[name] = s
	return nil
}

func (bs *buildState) assembleVolumes() error {
	for _, spec := range bs.desc.Volumes {
		if _, dup := bs.vols[spec.Name]; dup {
			return failure.Configuration("", spec.Name, "duplicate volume name")
		}
		s, ok := bs.solids[spec.Solid]
		if !ok {
			return failure.Composition("", spec.Name, "solid %q not built", spec.Solid)
		}
		m, err := bs.material(spec.Material)
		if err != nil {
			return err
		}
		v, err := volume.New(spec.Name, s, m)
		if err != nil {
			return err
		}
		bs.vols[spec.Name] = v
	}

	world, ok := bs.vols[bs.desc.World]
	if !ok {
		return failure.Composition("", bs.desc.World, "world volume not built")
	}
	bs.world = world

	for _, p := range bs.desc.Placements {
		child, ok := bs.vols[p.Volume]
		if !ok {
			return failure.Composition("placements", p.Volume, "volume not built")
		}
		mother, ok := bs.vols[p.Mother]
		if !ok {
			return failure.Composition("placements", p.Volume, "mother %q not built", p.Mother)
		}
		if _, err := mother.Place(child, p.Transform, p.CopyNo, bs.overlap); err != nil {
			return err
		}
	}

	for _, spec := range bs.desc.Volumes {
		v := bs.vols[spec.Name]
		if v != world && v.Mother() == nil {
			bs.log.WithField("volume", spec.Name).Warn("volume is never placed")
		}
	}
	return volume.Validate(world)
}

// material returns a material resolved in the first stage, falling back to
// the catalog for names only the volumes mention.
func (bs *buildState) material(name string) (*material.Material, error) {
	if m, ok := bs.mats[name]; ok {
		return m, nil
	}
	m, err := bs.cat.FindOrBuildMaterial(name)
	if err != nil {
		return nil, err
	}
	bs.mats[name] = m
	return m, nil
}

// checkSensitive validates the detector specs against the built volumes.
func (bs *buildState) checkSensitive() error {
	seen := make(map[string]bool)
	bound := make(map[string]string)
	for _, s := range bs.desc.Sensitive {
		if s.Detector == "" {
			return failure.Configuration("", s.Volume, "sensitive detector without a name")
		}
		if seen[s.Detector] {
			return failure.Configuration("", s.Detector, "sensitive detector declared twice")
		}
		seen[s.Detector] = true
		if s.Volume == "" {
			continue
		}
		v, ok := bs.vols[s.Volume]
		if !ok {
			return failure.Composition("", s.Detector, "volume %q not built", s.Volume)
		}
		if v != bs.world && volume.Find(bs.world, s.Volume) != v {
			return failure.Composition("", s.Detector, "volume %q is not part of the world", s.Volume)
		}
		if prev, dup := bound[s.Volume]; dup {
			return failure.Configuration("", s.Volume, "bound to both %q and %q", prev, s.Detector)
		}
		bound[s.Volume] = s.Detector
	}
	return nil
}

// bindSensitive registers the checked detectors and attaches them. It runs
// last; nothing after it can fail the build.
func (bs *buildState) bindSensitive() error {
	for _, s := range bs.desc.Sensitive {
		d, err := bs.reg.Register(s.Detector)
		if err != nil {
			return err
		}
		if s.Volume == "" {
			bs.log.WithField("detector", s.Detector).Debug("registered unattached detector")
			continue
		}
		if err := bs.vols[s.Volume].SetSensitive(d); err != nil {
			return err
		}
	}
	return nil
}

func (bs *buildState) decorate() error {
	for _, s := range bs.desc.Styles {
		v, ok := bs.vols[s.Volume]
		if !ok {
			return failure.Composition("", s.Volume, "styled volume not built")
		}
		if !s.Style.Color.Valid() {
			return failure.Configuration("", s.Volume, "colour components outside [0, 1]")
		}
		if err := v.SetStyle(s.Style); err != nil {
			return err
		}
	}
	// Mothers default to invisible so that only leaves render.
	return volume.Walk(bs.world, func(v *volume.Volume, _ geom.Transform, _ int) error {
		if _, styled := v.Style(); styled || len(v.Placements()) == 0 {
			return nil
		}
		if err := v.SetStyle(vis.Invisible); err != nil {
			return errors.Join(err, fmt.Errorf("defaulting mother %q", v.Name()))
		}
		return nil
	})
}
