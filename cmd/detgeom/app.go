package main

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/chazu/detgeom/pkg/config"
	"github.com/chazu/detgeom/pkg/detector"
	"github.com/chazu/detgeom/pkg/kernel"
	"github.com/chazu/detgeom/pkg/kernel/sdfx"
	"github.com/chazu/detgeom/pkg/overlap"
	"github.com/chazu/detgeom/pkg/script"
	"github.com/chazu/detgeom/pkg/tessellate"
	"github.com/chazu/detgeom/pkg/vis"
)

// App runs the whole pipeline: script, world, overlap probe and meshes.
type App struct {
	cfg    *config.Config
	engine *script.Engine
	kernel kernel.Kernel
	log    *logrus.Entry
}

// MeshData is the JSON-serializable mesh format written by the mesh command.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	PartName string    `json:"partName"`
	Material string    `json:"material"`
	Color    string    `json:"color"`
	Solid    bool      `json:"solid"`
}

// EvalErrorData is a JSON-serializable error or warning.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// EvalResult is the full result of one evaluation.
type EvalResult struct {
	Meshes   []MeshData      `json:"meshes"`
	Errors   []EvalErrorData `json:"errors"`
	Warnings []EvalErrorData `json:"warnings"`
}

// NewApp creates an App from cfg with the sdfx kernel.
func NewApp(cfg *config.Config, log *logrus.Entry) *App {
	return &App{
		cfg:    cfg,
		engine: script.NewEngine(script.WithTimeout(cfg.Script.Timeout), script.WithLogger(log)),
		kernel: sdfx.New(sdfx.WithMeshCells(cfg.Mesh.Cells)),
		log:    log,
	}
}

// Build builds the world described by source. Blank source selects the
// reference detector.
func (a *App) Build(source string) (*detector.World, error) {
	if strings.TrimSpace(source) == "" {
		return a.build(nil)
	}
	return a.build(a.engine.Describe(source))
}

// build builds describe, or the reference detector when it is nil.
func (a *App) build(describe detector.DescribeFunc) (*detector.World, error) {
	opts := []detector.Option{
		detector.WithParams(a.cfg.Detector),
		detector.WithLogger(a.log),
	}
	if describe != nil {
		opts = append(opts, detector.WithDescription(describe))
	}
	return detector.New(opts...).Build(nil, nil)
}

// CheckOverlaps probes w when its description asked for overlap checks.
func (a *App) CheckOverlaps(w *detector.World) ([]overlap.Overlap, error) {
	if !w.OverlapCheck {
		return nil, nil
	}
	opts := append(a.cfg.OverlapOptions(), overlap.WithLogger(a.log))
	return overlap.New(a.kernel, opts...).Check(w.Root)
}

// Evaluate takes detector Lisp and returns mesh data, errors and overlap
// warnings. Blank source evaluates the reference detector.
func (a *App) Evaluate(source string) EvalResult {
	result := EvalResult{
		Meshes:   []MeshData{},
		Errors:   []EvalErrorData{},
		Warnings: []EvalErrorData{},
	}

	// Step 1: script errors carry line numbers, so report them first.
	var describe detector.DescribeFunc
	if strings.TrimSpace(source) != "" {
		d, evalErrs, err := a.engine.Evaluate(source, a.cfg.Detector)
		if err != nil {
			a.log.WithError(err).Error("evaluate fatal error")
			result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
			return result
		}
		if len(evalErrs) > 0 {
			for _, e := range evalErrs {
				result.Errors = append(result.Errors, EvalErrorData{
					Line:    e.Line,
					Col:     e.Col,
					Message: e.Message,
				})
			}
			return result
		}
		describe = func(detector.Params) (detector.Description, error) { return *d, nil }
	}

	// Step 2: build the world from the description already evaluated.
	w, err := a.build(describe)
	if err != nil {
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}

	// Step 3: overlaps are advisory.
	found, err := a.CheckOverlaps(w)
	if err != nil {
		result.Errors = append(result.Errors, EvalErrorData{Message: "overlap check failed: " + err.Error()})
		return result
	}
	for _, o := range found {
		result.Warnings = append(result.Warnings, EvalErrorData{Message: o.String()})
	}

	// Step 4: tessellate the visible volumes.
	meshes, err := tessellate.Tessellate(w.Root, a.kernel)
	if err != nil {
		a.log.WithError(err).Error("tessellate error")
		result.Errors = append(result.Errors, EvalErrorData{Message: "tessellation failed: " + err.Error()})
		return result
	}
	for _, m := range meshes {
		c := vis.Color{R: float64(m.Color[0]), G: float64(m.Color[1]), B: float64(m.Color[2]), A: float64(m.Color[3])}
		result.Meshes = append(result.Meshes, MeshData{
			Vertices: m.Vertices,
			Normals:  m.Normals,
			Indices:  m.Indices,
			PartName: m.PartName,
			Material: m.Material,
			Color:    c.Hex(),
			Solid:    m.Solid,
		})
	}

	return result
}
