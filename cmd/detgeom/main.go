package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chazu/detgeom/pkg/config"
)

var (
	configFile string
	logLevel   string
	scriptFile string

	checkOverlaps bool

	lower, upper float64
	plot         bool

	cells   int
	outFile string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "detgeom",
		Short:        "detector geometry builder and response tools",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides config)")

	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "build the detector and print its volume tree",
		Args:  cobra.NoArgs,
		RunE:  runBuild,
	}
	buildCmd.Flags().StringVar(&scriptFile, "script", "", "detector script (default: built-in reference)")
	buildCmd.Flags().BoolVar(&checkOverlaps, "check-overlaps", false, "probe placements for overlaps")

	meanCmd := &cobra.Command{
		Use:   "mean [curve.yaml]",
		Short: "weighted mean of a tabulated response curve",
		Args:  cobra.ExactArgs(1),
		RunE:  runMean,
	}
	meanCmd.Flags().Float64Var(&lower, "lower", 0, "lower bound (default: first sample)")
	meanCmd.Flags().Float64Var(&upper, "upper", 0, "upper bound (default: last sample)")
	meanCmd.Flags().BoolVar(&plot, "plot", false, "plot the curve")

	meshCmd := &cobra.Command{
		Use:   "mesh",
		Short: "tessellate the visible volumes",
		Args:  cobra.NoArgs,
		RunE:  runMesh,
	}
	meshCmd.Flags().StringVar(&scriptFile, "script", "", "detector script (default: built-in reference)")
	meshCmd.Flags().IntVar(&cells, "cells", 0, "marching cubes cells along the longest axis")
	meshCmd.Flags().StringVarP(&outFile, "out", "o", "", "write meshes as JSON to this file")

	rootCmd.AddCommand(buildCmd, meanCmd, meshCmd)
	return rootCmd
}

// loadConfig reads --config over the defaults and applies --log-level.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return nil, err
		}
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := config.SetupLogging(cfg.Log); err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	return cfg, nil
}

// readScript returns the script named by --script, falling back to the
// configured path. An empty result selects the reference detector.
func readScript(cfg *config.Config) (string, error) {
	path := scriptFile
	if path == "" {
		path = cfg.Script.Path
	}
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
