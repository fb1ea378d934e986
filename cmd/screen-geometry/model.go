package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/menta2k/screen-geometry/internal/config"
	"github.com/menta2k/screen-geometry/internal/logger"
	"github.com/menta2k/screen-geometry/pkg/client"
	"github.com/menta2k/screen-geometry/pkg/coords"
	"github.com/menta2k/screen-geometry/pkg/grounding"
	"github.com/menta2k/screen-geometry/pkg/llamacpp"
	"github.com/menta2k/screen-geometry/pkg/observe"
	"github.com/menta2k/screen-geometry/pkg/ollama"
	"github.com/menta2k/screen-geometry/pkg/processing"
)

// newVisionClient creates the backend named in the config
func newVisionClient(cfg config.BackendConfig) (client.VisionClient, error) {
	switch cfg.Type {
	case config.BackendOllama:
		c, err := ollama.NewClient(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return c, nil
	case config.BackendLlamaCpp:
		c, err := llamacpp.NewClient(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown backend: %s (use 'ollama' or 'llamacpp')", cfg.Type)
	}
}

func (a *app) groundCmd() *cobra.Command {
	var profile, model, annotate string
	cmd := &cobra.Command{
		Use:   "ground IMAGE INSTRUCTION",
		Short: "Ask the vision model where an instruction points on a screenshot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if model == "" {
				model = a.cfg.Model.Name
			}
			p, format, err := a.profile(profile)
			if err != nil {
				return err
			}
			vc, err := newVisionClient(a.cfg.Backend)
			if err != nil {
				return err
			}

			proc := processing.NewProcessor()
			shot, err := proc.LoadImageBytes(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if a.cfg.Backend.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, a.cfg.Backend.Timeout)
				defer cancel()
			}

			g := grounding.NewGrounder(vc, grounding.WithBudget(p.Budget), grounding.WithFormat(format))
			res, err := g.Locate(ctx, model, args[1], shot)
			if err != nil {
				return err
			}

			if annotate != "" {
				if err := writeGroundingOverlay(proc, shot, res, annotate); err != nil {
					logger.L(ctx).Warn("overlay save failed", zap.String("path", annotate), zap.Error(err))
				}
			}

			return a.print(cmd.OutOrStdout(), res, func(w io.Writer) {
				fmt.Fprintf(w, "%s: click (%g, %g)", res.Label, res.Point[0], res.Point[1])
				if res.BBox != nil {
					fmt.Fprintf(w, " box %v", formatValues(res.BBox[:]))
				}
				fmt.Fprintln(w)
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&profile, "profile", "", "model profile (default from config)")
	f.StringVar(&model, "model", "", "model name sent to the backend (default from config)")
	f.StringVar(&annotate, "annotate", "", "also write the screenshot with the result drawn on it")
	return cmd
}

func writeGroundingOverlay(proc *processing.Processor, shot []byte, res *grounding.Result, path string) error {
	img, err := processing.DecodeImage(shot)
	if err != nil {
		return err
	}
	ann := processing.Annotation{Points: []coords.Point{res.Point}}
	if res.BBox != nil {
		ann.Boxes = []coords.BBox{*res.BBox}
	}
	return proc.SaveImage(proc.Annotate(img, ann), path, 92, false)
}

func (a *app) observeCmd() *cobra.Command {
	var source, dir string
	var count int
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "observe",
		Short: "Capture screenshots from a file, directory or URL and report changes",
		Long: `Capture screenshots from a file, directory or URL and report changes.

Each capture is downscaled, hashed and compared with the previous one.
A count of 0 keeps observing until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if source == "" {
				source = a.cfg.Observe.Source
			}
			if source == "" {
				return fmt.Errorf("no screenshot source: pass --source or set observe.source")
			}
			if !cmd.Flags().Changed("dir") {
				dir = a.cfg.Observe.Dir
			}

			p, _, err := a.profile("")
			if err != nil {
				return err
			}
			opts := observe.Options{
				Dir:           dir,
				MaxWidth:      a.cfg.Downscale.MaxWidth,
				MaxHeight:     a.cfg.Downscale.MaxHeight,
				HashThreshold: a.cfg.Observe.HashThreshold,
				Budget:        p.Budget,
			}
			obs := observe.NewObserver(observe.NewFileSource(source), opts)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return a.runObserve(ctx, cmd.OutOrStdout(), obs, count, interval)
		},
	}

	f := cmd.Flags()
	f.StringVar(&source, "source", "", "screenshot file, directory or URL (default from config)")
	f.StringVar(&dir, "dir", "", "directory receiving a copy of each capture (default from config)")
	f.IntVar(&count, "count", 1, "number of captures, 0 for unlimited")
	f.DurationVar(&interval, "interval", 2*time.Second, "time between captures")
	return cmd
}

func (a *app) runObserve(ctx context.Context, w io.Writer, obs *observe.Observer, count int, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("--interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 0; count == 0 || i < count; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}

		o, err := obs.Capture(ctx)
		if err != nil {
			return err
		}
		err = a.print(w, o, func(w io.Writer) {
			fmt.Fprintf(w, "%s screen=%dx%d sent=%dx%d hash=%016x changed=%t", o.Timestamp.Format(time.RFC3339),
				o.Screen.Width, o.Screen.Height, o.Element.Width, o.Element.Height, o.Hash, o.Changed)
			if o.Path != "" {
				fmt.Fprintf(w, " saved=%s", o.Path)
			}
			fmt.Fprintln(w)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
