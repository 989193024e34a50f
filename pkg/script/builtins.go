package script

import (
	"fmt"
	"strings"

	"github.com/chazu/detgeom/pkg/detector"
	"github.com/chazu/detgeom/pkg/geom"
	"github.com/chazu/detgeom/pkg/material"
	"github.com/chazu/detgeom/pkg/solid"
	"github.com/chazu/detgeom/pkg/units"
	"github.com/chazu/detgeom/pkg/vis"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites detector Lisp into something zygomys accepts:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal), so
//     keywords never collide with user variables.
//
//  2. Kebab-case to underscore: full-circle -> full_circle. zygomys reads a
//     hyphen inside an identifier as subtraction.
//
//  3. ; line comments become // comments.
//
// String literals are left untouched.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				result = append(result, '"')
				result = append(result, kwPrefix...)
				result = append(result, b[i+1:j]...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Only a hyphen between identifier characters; a minus sign or a
		// negative literal stays as is.
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpMaterial names a catalog or composite material.
type sexpMaterial struct {
	name string
}

func (m *sexpMaterial) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(material %q)", m.name)
}
func (m *sexpMaterial) Type() *zygo.RegisteredType { return nil }

type sexpFraction struct {
	f material.Fraction
}

func (f *sexpFraction) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(fraction %q %g)", f.f.Element, f.f.Fraction)
}
func (f *sexpFraction) Type() *zygo.RegisteredType { return nil }

// sexpSolid refers to a solid already recorded, by name.
type sexpSolid struct {
	name string
	kind string
}

func (s *sexpSolid) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(%s %q)", s.kind, s.name)
}
func (s *sexpSolid) Type() *zygo.RegisteredType { return nil }

// sexpVolume refers to a volume already recorded, by name.
type sexpVolume struct {
	name string
}

func (v *sexpVolume) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(volume %q)", v.name)
}
func (v *sexpVolume) Type() *zygo.RegisteredType { return nil }

type sexpVec3 struct {
	vec geom.Vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

type sexpRotation struct {
	m geom.Mat3
}

func (r *sexpRotation) SexpString(ps *zygo.PrintState) string {
	x, y, z := r.m.EulerXYZ()
	return fmt.Sprintf("(rotate :x %g :y %g :z %g)", x, y, z)
}
func (r *sexpRotation) Type() *zygo.RegisteredType { return nil }

type sexpColor struct {
	c vis.Color
}

func (c *sexpColor) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(rgb %g %g %g)", c.c.R, c.c.G, c.c.B)
}
func (c *sexpColor) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW reports whether s is a preprocessed keyword and returns its name.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value: a flag.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toInt extracts a whole number.
func toInt(s zygo.Sexp) (int, error) {
	if v, ok := s.(*zygo.SexpInt); ok {
		return int(v.Val), nil
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

// toBool accepts true/false; a bare keyword flag (SexpNull) counts as true.
func toBool(s zygo.Sexp) (bool, error) {
	switch v := s.(type) {
	case *zygo.SexpBool:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return true, nil
		}
	}
	return false, fmt.Errorf("expected true or false, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], nil
	}
	return str.S, nil
}

// toMaterialName accepts a material value or a plain name.
func toMaterialName(s zygo.Sexp) (string, error) {
	switch v := s.(type) {
	case *sexpMaterial:
		return v.name, nil
	case *zygo.SexpStr:
		return v.S, nil
	}
	return "", fmt.Errorf("expected material, got %T (%s)", s, s.SexpString(nil))
}

// toSolidName accepts a solid value or a plain name.
func toSolidName(s zygo.Sexp) (string, error) {
	switch v := s.(type) {
	case *sexpSolid:
		return v.name, nil
	case *zygo.SexpStr:
		return v.S, nil
	}
	return "", fmt.Errorf("expected solid, got %T (%s)", s, s.SexpString(nil))
}

// toVolumeName accepts a volume value or a plain name.
func toVolumeName(s zygo.Sexp) (string, error) {
	switch v := s.(type) {
	case *sexpVolume:
		return v.name, nil
	case *zygo.SexpStr:
		return v.S, nil
	}
	return "", fmt.Errorf("expected volume, got %T (%s)", s, s.SexpString(nil))
}

// toVec3 extracts a Vec3 from a sexpVec3.
func toVec3(s zygo.Sexp) (geom.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return geom.Vec3{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

func toRotation(s zygo.Sexp) (geom.Mat3, error) {
	if r, ok := s.(*sexpRotation); ok {
		return r.m, nil
	}
	return geom.Mat3{}, fmt.Errorf("expected rotation, got %T (%s)", s, s.SexpString(nil))
}

func toColor(s zygo.Sexp) (vis.Color, error) {
	if c, ok := s.(*sexpColor); ok {
		return c.c, nil
	}
	return vis.Color{}, fmt.Errorf("expected colour, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// toFloats converts a list of numbers.
func toFloats(s zygo.Sexp) ([]float64, error) {
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(items))
	for i, it := range items {
		if out[i], err = toFloat64(it); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return out, nil
}

// floatKW reads an optional numeric keyword, returning def when absent.
func floatKW(pa kwArgs, key string, def float64) (float64, error) {
	v, ok := pa.kw[key]
	if !ok {
		return def, nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

// phiKW reads the optional :sphi and :dphi keywords.
func phiKW(pa kwArgs) (start, delta float64, err error) {
	if start, err = floatKW(pa, "sphi", 0); err != nil {
		return 0, 0, err
	}
	if delta, err = floatKW(pa, "dphi", units.FullCircle); err != nil {
		return 0, 0, err
	}
	return start, delta, nil
}

// planesKW reads the :z, :rmin and :rmax tables of a polyhedra or
// polycone. A missing :rmin means a solid profile.
func planesKW(pa kwArgs) ([]solid.ZPlane, error) {
	zv, ok := pa.kw["z"]
	if !ok {
		return nil, fmt.Errorf("missing :z")
	}
	z, err := toFloats(zv)
	if err != nil {
		return nil, fmt.Errorf("z: %w", err)
	}
	rv, ok := pa.kw["rmax"]
	if !ok {
		return nil, fmt.Errorf("missing :rmax")
	}
	rMax, err := toFloats(rv)
	if err != nil {
		return nil, fmt.Errorf("rmax: %w", err)
	}
	rMin := make([]float64, len(z))
	if v, ok := pa.kw["rmin"]; ok {
		if rMin, err = toFloats(v); err != nil {
			return nil, fmt.Errorf("rmin: %w", err)
		}
	}
	return solid.PlanesFromArrays(z, rMin, rMax)
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// recorder accumulates the description while a script runs.
type recorder struct {
	desc      *detector.Description
	materials map[string]bool
	solids    map[string]bool
	volumes   map[string]bool
}

func newRecorder() *recorder {
	return &recorder{
		desc:      &detector.Description{},
		materials: make(map[string]bool),
		solids:    make(map[string]bool),
		volumes:   make(map[string]bool),
	}
}

func (r *recorder) addPrimitive(kind string, s solid.Solid, err error) (zygo.Sexp, error) {
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("%s: %w", kind, err)
	}
	if r.solids[s.SolidName()] {
		return zygo.SexpNull, fmt.Errorf("%s: solid %q already defined", kind, s.SolidName())
	}
	r.solids[s.SolidName()] = true
	r.desc.Primitives = append(r.desc.Primitives, s)
	return &sexpSolid{name: s.SolidName(), kind: kind}, nil
}

// booleanBuiltin returns the builtin for one boolean operation:
//
//	(subtract "name" left right :at (vec3 ...) :rotate (rotate ...))
func (r *recorder) booleanBuiltin(op solid.Op) func(*zygo.Zlisp, string, []zygo.Sexp) (zygo.Sexp, error) {
	return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 3 {
			return zygo.SexpNull, fmt.Errorf("%s requires a name and two solids", name)
		}
		solidName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: name: %w", name, err)
		}
		left, err := toSolidName(pa.positional[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: left: %w", name, err)
		}
		right, err := toSolidName(pa.positional[2])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: right: %w", name, err)
		}
		if r.solids[solidName] {
			return zygo.SexpNull, fmt.Errorf("%s: solid %q already defined", name, solidName)
		}

		spec := detector.BooleanSpec{Name: solidName, Op: op, Left: left, Right: right}
		t, set, err := transformKW(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: %w", name, err)
		}
		if set {
			spec.Placement = &t
		}

		r.solids[solidName] = true
		r.desc.Booleans = append(r.desc.Booleans, spec)
		return &sexpSolid{name: solidName, kind: name}, nil
	}
}

// transformKW reads the optional :at and :rotate keywords.
func transformKW(pa kwArgs) (geom.Transform, bool, error) {
	var t geom.Transform
	set := false
	if v, ok := pa.kw["at"]; ok {
		vec, err := toVec3(v)
		if err != nil {
			return t, false, fmt.Errorf("at: %w", err)
		}
		t.Translation = vec
		set = true
	}
	if v, ok := pa.kw["rotate"]; ok {
		m, err := toRotation(v)
		if err != nil {
			return t, false, fmt.Errorf("rotate: %w", err)
		}
		t = t.WithRotation(m)
		set = true
	}
	return t, set, nil
}

// registerBuiltins installs the detector DSL into a zygomys environment.
// Every builtin appends to rec in call order, so a script is a detector
// description written leaf first.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, rec *recorder) {
	d := rec.desc

	// -----------------------------------------------------------------------
	// (element "Si")
	// -----------------------------------------------------------------------
	env.AddFunction("element", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("element requires a chemical symbol")
		}
		sym, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("element: %w", err)
		}
		d.Elements = append(d.Elements, sym)
		return &zygo.SexpStr{S: sym}, nil
	})

	// -----------------------------------------------------------------------
	// (material "G4_AIR")
	// -----------------------------------------------------------------------
	env.AddFunction("material", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("material requires a name")
		}
		matName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("material: %w", err)
		}
		if !rec.materials[matName] {
			rec.materials[matName] = true
			d.Materials = append(d.Materials, matName)
		}
		return &sexpMaterial{name: matName}, nil
	})

	// -----------------------------------------------------------------------
	// (fraction "Si" 0.006)
	// -----------------------------------------------------------------------
	env.AddFunction("fraction", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("fraction requires an element and a mass fraction")
		}
		sym, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("fraction: element: %w", err)
		}
		f, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("fraction: %w", err)
		}
		return &sexpFraction{f: material.Fraction{Element: sym, Fraction: f}}, nil
	})

	// -----------------------------------------------------------------------
	// (composite "Al_6061" :density 2.70 :fractions (list (fraction ...) ...))
	// -----------------------------------------------------------------------
	env.AddFunction("composite", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("composite requires a name")
		}
		matName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("composite: name: %w", err)
		}
		spec := detector.CompositeSpec{Name: matName}
		if spec.Density, err = floatKW(pa, "density", 0); err != nil {
			return zygo.SexpNull, fmt.Errorf("composite: %w", err)
		}
		v, ok := pa.kw["fractions"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("composite: missing :fractions")
		}
		items, err := sexpListToSlice(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("composite: fractions: %w", err)
		}
		for i, it := range items {
			f, ok := it.(*sexpFraction)
			if !ok {
				return zygo.SexpNull, fmt.Errorf("composite: fraction %d: expected fraction, got %T", i, it)
			}
			spec.Fractions = append(spec.Fractions, f.f)
		}
		d.Composites = append(d.Composites, spec)
		return &sexpMaterial{name: matName}, nil
	})

	// -----------------------------------------------------------------------
	// (box "name" hx hy hz), half-lengths
	// -----------------------------------------------------------------------
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 4 {
			return zygo.SexpNull, fmt.Errorf("box requires a name and three half-lengths")
		}
		boxName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("box: name: %w", err)
		}
		var half [3]float64
		for i := range half {
			if half[i], err = toFloat64(args[i+1]); err != nil {
				return zygo.SexpNull, fmt.Errorf("box: half-length %c: %w", "xyz"[i], err)
			}
		}
		s, err := solid.NewBox(boxName, half[0], half[1], half[2])
		return rec.addPrimitive("box", s, err)
	})

	// -----------------------------------------------------------------------
	// (tube "name" :rmin 0 :rmax 10 :dz 25 :sphi 0 :dphi full-circle)
	// -----------------------------------------------------------------------
	env.AddFunction("tube", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("tube requires a name")
		}
		tubeName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("tube: name: %w", err)
		}
		rMin, err := floatKW(pa, "rmin", 0)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("tube: %w", err)
		}
		rMax, err := floatKW(pa, "rmax", 0)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("tube: %w", err)
		}
		dz, err := floatKW(pa, "dz", 0)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("tube: %w", err)
		}
		start, delta, err := phiKW(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("tube: %w", err)
		}
		s, err := solid.NewTube(tubeName, rMin, rMax, dz, start, delta)
		return rec.addPrimitive("tube", s, err)
	})

	// -----------------------------------------------------------------------
	// (polyhedra "name" :sides 6 :z (list z0 z1) :rmax (list r r))
	// -----------------------------------------------------------------------
	env.AddFunction("polyhedra", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("polyhedra requires a name")
		}
		phName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("polyhedra: name: %w", err)
		}
		v, ok := pa.kw["sides"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("polyhedra: missing :sides")
		}
		sides, err := toInt(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("polyhedra: sides: %w", err)
		}
		start, delta, err := phiKW(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("polyhedra: %w", err)
		}
		planes, err := planesKW(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("polyhedra: %w", err)
		}
		s, err := solid.NewPolyhedra(phName, start, delta, sides, planes)
		return rec.addPrimitive("polyhedra", s, err)
	})

	// -----------------------------------------------------------------------
	// (polycone "name" :z (list ...) :rmin (list ...) :rmax (list ...))
	// -----------------------------------------------------------------------
	env.AddFunction("polycone", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("polycone requires a name")
		}
		pcName, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("polycone: name: %w", err)
		}
		start, delta, err := phiKW(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("polycone: %w", err)
		}
		planes, err := planesKW(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("polycone: %w", err)
		}
		s, err := solid.NewPolycone(pcName, start, delta, planes)
		return rec.addPrimitive("polycone", s, err)
	})

	env.AddFunction("union", rec.booleanBuiltin(solid.Union))
	env.AddFunction("subtract", rec.booleanBuiltin(solid.Subtraction))
	env.AddFunction("intersect", rec.booleanBuiltin(solid.Intersection))

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}

		x, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: x: %w", err)
		}
		y, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: y: %w", err)
		}
		z, err := toFloat64(args[2])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: z: %w", err)
		}

		return &sexpVec3{vec: geom.Vec3{X: x, Y: y, Z: z}}, nil
	})

	// -----------------------------------------------------------------------
	// (rotate :x a :y b :z c), applied x first
	// -----------------------------------------------------------------------
	env.AddFunction("rotate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) > 0 {
			return zygo.SexpNull, fmt.Errorf("rotate takes only :x, :y and :z")
		}
		var angles [3]float64
		for i, axis := range []string{"x", "y", "z"} {
			a, err := floatKW(pa, axis, 0)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("rotate: %w", err)
			}
			angles[i] = a
		}
		return &sexpRotation{m: geom.RotateXYZ(angles[0], angles[1], angles[2])}, nil
	})

	// -----------------------------------------------------------------------
	// (volume "name" solid material)
	// -----------------------------------------------------------------------
	env.AddFunction("volume", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("volume requires a name, a solid and a material")
		}
		volName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("volume: name: %w", err)
		}
		solidName, err := toSolidName(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("volume: %w", err)
		}
		matName, err := toMaterialName(args[2])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("volume: %w", err)
		}
		if rec.volumes[volName] {
			return zygo.SexpNull, fmt.Errorf("volume: %q already defined", volName)
		}
		rec.volumes[volName] = true
		d.Volumes = append(d.Volumes, detector.VolumeSpec{Name: volName, Solid: solidName, Material: matName})
		return &sexpVolume{name: volName}, nil
	})

	// -----------------------------------------------------------------------
	// (place child :in mother :at (vec3 ...) :rotate (rotate ...) :copy 0)
	// -----------------------------------------------------------------------
	env.AddFunction("place", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("place requires a volume as first argument")
		}
		child, err := toVolumeName(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("place: %w", err)
		}
		v, ok := pa.kw["in"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("place: missing :in")
		}
		mother, err := toVolumeName(v)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("place: in: %w", err)
		}
		t, _, err := transformKW(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("place: %w", err)
		}
		spec := detector.PlacementSpec{Volume: child, Mother: mother, Transform: t}
		if v, ok := pa.kw["copy"]; ok {
			if spec.CopyNo, err = toInt(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("place: copy: %w", err)
			}
		}
		d.Placements = append(d.Placements, spec)
		return pa.positional[0], nil
	})

	// -----------------------------------------------------------------------
	// (world volume)
	// -----------------------------------------------------------------------
	env.AddFunction("world", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("world requires a volume")
		}
		w, err := toVolumeName(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("world: %w", err)
		}
		d.World = w
		return args[0], nil
	})

	// -----------------------------------------------------------------------
	// (sensitive "fastSD" volume) or (sensitive "SASSD")
	// -----------------------------------------------------------------------
	env.AddFunction("sensitive", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 || len(args) > 2 {
			return zygo.SexpNull, fmt.Errorf("sensitive requires a detector name and an optional volume")
		}
		det, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("sensitive: name: %w", err)
		}
		spec := detector.SensitiveSpec{Detector: det}
		if len(args) == 2 {
			if spec.Volume, err = toVolumeName(args[1]); err != nil {
				return zygo.SexpNull, fmt.Errorf("sensitive: %w", err)
			}
		}
		d.Sensitive = append(d.Sensitive, spec)
		return &zygo.SexpStr{S: det}, nil
	})

	// -----------------------------------------------------------------------
	// (rgb 0.6 0.6 1.0)
	// -----------------------------------------------------------------------
	env.AddFunction("rgb", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("rgb requires 3 components, got %d", len(args))
		}
		var c [3]float64
		for i := range c {
			v, err := toFloat64(args[i])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("rgb: %w", err)
			}
			c[i] = v
		}
		col := vis.RGB(c[0], c[1], c[2])
		if !col.Valid() {
			return zygo.SexpNull, fmt.Errorf("rgb: components must lie in [0, 1]")
		}
		return &sexpColor{c: col}, nil
	})

	// -----------------------------------------------------------------------
	// (style volume :color (rgb ...) :fill :solid)
	// -----------------------------------------------------------------------
	env.AddFunction("style", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("style requires a volume")
		}
		vol, err := toVolumeName(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("style: %w", err)
		}
		col := vis.Grey
		if v, ok := pa.kw["color"]; ok {
			if col, err = toColor(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("style: color: %w", err)
			}
		}
		st := vis.Solid(col)
		if v, ok := pa.kw["fill"]; ok {
			fill, err := toKeywordString(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("style: fill: %w", err)
			}
			switch fill {
			case "solid":
			case "wireframe":
				st = vis.Wireframe(col)
			default:
				return zygo.SexpNull, fmt.Errorf("style: fill %q, expected solid or wireframe", fill)
			}
		}
		d.Styles = append(d.Styles, detector.StyleSpec{Volume: vol, Style: st})
		return pa.positional[0], nil
	})

	// -----------------------------------------------------------------------
	// (invisible volume ...)
	// -----------------------------------------------------------------------
	env.AddFunction("invisible", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		for i, a := range args {
			vol, err := toVolumeName(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("invisible: argument %d: %w", i, err)
			}
			d.Styles = append(d.Styles, detector.StyleSpec{Volume: vol, Style: vis.Invisible})
		}
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (overlap-check false)
	// -----------------------------------------------------------------------
	env.AddFunction("overlap_check", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("overlap-check requires true or false")
		}
		on, err := toBool(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("overlap-check: %w", err)
		}
		d.OverlapCheck = &on
		return args[0], nil
	})
}
