package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chazu/detgeom/pkg/config"
)

func runMesh(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cells > 0 {
		cfg.Mesh.Cells = cells
	}
	src, err := readScript(cfg)
	if err != nil {
		return err
	}

	log := config.NamedLogger("mesh")
	result := NewApp(cfg, log).Evaluate(src)

	out := cmd.OutOrStdout()
	for _, e := range result.Errors {
		if e.Line > 0 {
			fmt.Fprintf(out, "error %d:%d: %s\n", e.Line, e.Col, e.Message)
		} else {
			fmt.Fprintf(out, "error: %s\n", e.Message)
		}
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w.Message)
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("%d error(s)", len(result.Errors))
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PART\tMATERIAL\tCOLOR\tSOLID\tVERTICES\tTRIANGLES")
	for _, m := range result.Meshes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%v\t%d\t%d\n",
			m.PartName, m.Material, m.Color, m.Solid, len(m.Vertices)/3, len(m.Indices)/3)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if outFile == "" {
		return nil
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding meshes: %w", err)
	}
	if err := os.WriteFile(outFile, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outFile, err)
	}
	log.WithField("path", outFile).WithField("meshes", len(result.Meshes)).Info("meshes written")
	return nil
}
