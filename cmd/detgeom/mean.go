package main

import (
	"fmt"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/chazu/detgeom/pkg/mean"
)

const plotPoints = 80

func runMean(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c, err := mean.LoadCurve(args[0])
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("lower") {
		c.Lower = lower
	}
	if cmd.Flags().Changed("upper") {
		c.Upper = upper
	}

	m, err := c.Mean(cfg.Estimator())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if plot {
		fmt.Fprintln(out, plotCurve(c))
		fmt.Fprintln(out)
	}
	name := c.Name
	if name == "" {
		name = args[0]
	}
	fmt.Fprintf(out, "%s: weighted mean on [%g, %g] = %.6g %s\n", name, c.Lower, c.Upper, m, c.Unit)
	return nil
}

// plotCurve samples c evenly across its integration interval.
func plotCurve(c *mean.Curve) string {
	data := make([]float64, plotPoints)
	step := (c.Upper - c.Lower) / float64(plotPoints-1)
	for i := range data {
		data[i] = c.Func.At(min(c.Lower+float64(i)*step, c.Upper))
	}
	return asciigraph.Plot(data,
		asciigraph.Height(12),
		asciigraph.Width(plotPoints),
		asciigraph.Caption(fmt.Sprintf("%s over [%g, %g] %s", c.Name, c.Lower, c.Upper, c.Unit)),
	)
}
