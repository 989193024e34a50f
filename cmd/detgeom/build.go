package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
	"github.com/spf13/cobra"

	"github.com/chazu/detgeom/pkg/config"
	"github.com/chazu/detgeom/pkg/detector"
	"github.com/chazu/detgeom/pkg/volume"
)

var (
	nameStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	sdStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	enumStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("238")).MarginRight(1)
	titleStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if checkOverlaps {
		cfg.Detector.OverlapCheck = true
	}
	src, err := readScript(cfg)
	if err != nil {
		return err
	}

	app := NewApp(cfg, config.NamedLogger("build"))
	w, err := app.Build(src)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render("volumes"))
	fmt.Fprintln(out, renderTree(w))
	fmt.Fprintln(out)
	fmt.Fprintln(out, titleStyle.Render("sensitive detectors"))
	for _, name := range w.Registry.Names() {
		fmt.Fprintf(out, "  %s\n", sdStyle.Render(name))
	}

	if !checkOverlaps {
		return nil
	}
	found, err := app.CheckOverlaps(w)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	if len(found) == 0 {
		fmt.Fprintln(out, okStyle.Render("no overlaps found"))
		return nil
	}
	for _, o := range found {
		fmt.Fprintln(out, warnStyle.Render(o.String()))
	}
	return fmt.Errorf("%d overlap(s) found", len(found))
}

// renderTree draws the placement hierarchy of w.
func renderTree(w *detector.World) string {
	t := tree.Root(volumeLabel(w.Root)).
		EnumeratorStyle(enumStyle)
	addDaughters(t, w.Root)
	return t.String()
}

func addDaughters(t *tree.Tree, v *volume.Volume) {
	for _, p := range v.Placements() {
		child := p.Child()
		label := volumeLabel(child) + dimStyle.Render(fmt.Sprintf(" #%d %s", p.CopyNo(), p.Transform()))
		if len(child.Placements()) == 0 {
			t.Child(label)
			continue
		}
		sub := tree.Root(label)
		addDaughters(sub, child)
		t.Child(sub)
	}
}

// volumeLabel is "name [material] sensitive".
func volumeLabel(v *volume.Volume) string {
	var b strings.Builder
	b.WriteString(nameStyle.Render(v.Name()))
	if m := v.Material(); m != nil {
		b.WriteString(dimStyle.Render(" [" + m.Name() + "]"))
	}
	if sd := v.Sensitive(); sd != nil {
		b.WriteString(" " + sdStyle.Render(sd.Name()))
	}
	return b.String()
}
