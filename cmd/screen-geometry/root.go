package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	screengeometry "github.com/menta2k/screen-geometry"
	"github.com/menta2k/screen-geometry/internal/config"
	"github.com/menta2k/screen-geometry/internal/logger"
	"github.com/menta2k/screen-geometry/pkg/coords"
	"github.com/menta2k/screen-geometry/pkg/geometry"
)

// app carries state shared by every subcommand
type app struct {
	configPath string
	verbose    bool
	jsonOut    bool
	output     string

	cfg *config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "screen-geometry",
		Short: "Screenshot geometry for vision-language desktop agents",
		Long: `screen-geometry sizes screenshots for vision-language models and
converts the coordinates those models return back to screen pixels.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.init,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", fmt.Sprintf("config file (default is %s)", config.GetConfigPath()))
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	pf.BoolVar(&a.jsonOut, "json", false, "shorthand for --output json")
	pf.StringVarP(&a.output, "output", "o", "text", "output format: text, json or yaml")

	root.AddCommand(
		a.resizeCmd(),
		a.sizeCmd(),
		a.convertCmd(),
		a.hashCmd(),
		a.downscaleCmd(),
		a.annotateCmd(),
		a.groundCmd(),
		a.observeCmd(),
		versionCmd(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.Logging.Level
	if a.verbose {
		level = "debug"
	}
	l, err := logger.New(level, cfg.Logging.JSON)
	if err != nil {
		return err
	}
	a.log = l
	cmd.SetContext(logger.ContextWithLogger(cmd.Context(), l))

	if a.jsonOut {
		a.output = "json"
	}
	switch a.output {
	case "text", "json", "yaml":
		return nil
	default:
		return fmt.Errorf("unknown output format %q", a.output)
	}
}

// print writes v as JSON or YAML, or calls text for the human-readable form
func (a *app) print(w io.Writer, v any, text func(io.Writer)) error {
	switch a.output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		text(w)
		return nil
	}
}

// profile resolves a named profile, falling back to the configured one
func (a *app) profile(name string) (config.Profile, coords.Format, error) {
	if name == "" {
		name = a.cfg.Model.Profile
	}
	p, err := a.cfg.FindProfile(name)
	if err != nil {
		return config.Profile{}, 0, err
	}
	f, err := p.CoordFormat()
	if err != nil {
		return config.Profile{}, 0, err
	}
	return p, f, nil
}

// sizedElement builds an element for a width x height screenshot sized under budget
func sizedElement(width, height int, budget geometry.TokenBudget) (*geometry.ImageElement, error) {
	return geometry.UpdateImageSize(geometry.NewImageElement(width, height), budget)
}

func parseInts(args ...string) ([]int, error) {
	out := make([]int, len(args))
	for i, s := range args {
		v, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", s)
		}
		out[i] = v
	}
	return out, nil
}

func parseFloats(args ...string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, s := range args {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", s)
		}
		out[i] = v
	}
	return out, nil
}

// parseTuple parses "a,b,..." into exactly n numbers
func parseTuple(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma-separated numbers, got %q", n, s)
	}
	return parseFloats(parts...)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), screengeometry.GetVersion())
		},
	}
}
