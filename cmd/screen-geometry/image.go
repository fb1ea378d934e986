package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/menta2k/screen-geometry/internal/logger"
	"github.com/menta2k/screen-geometry/internal/utils"
	"github.com/menta2k/screen-geometry/pkg/coords"
	"github.com/menta2k/screen-geometry/pkg/geometry"
	"github.com/menta2k/screen-geometry/pkg/processing"
)

type hashResult struct {
	Files    []string `json:"files" yaml:"files"`
	Hashes   []string `json:"hashes" yaml:"hashes"`
	Distance *int     `json:"distance,omitempty" yaml:"distance,omitempty"`
	Same     *bool    `json:"same,omitempty" yaml:"same,omitempty"`
}

func (a *app) hashCmd() *cobra.Command {
	var size, threshold int
	cmd := &cobra.Command{
		Use:   "hash IMAGE [IMAGE]",
		Short: "Print perceptual hashes; with two images, compare them",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("threshold") {
				threshold = a.cfg.Observe.HashThreshold
			}

			p := processing.NewProcessor()
			res := hashResult{Files: args}
			var hashes []uint64
			for _, path := range args {
				data, err := p.LoadImageBytes(path)
				if err != nil {
					return err
				}
				h := processing.DHash(data, size)
				if processing.HashUnavailable(h) {
					logger.L(cmd.Context()).Warn("hash unavailable", zap.String("file", path))
				}
				hashes = append(hashes, h)
				res.Hashes = append(res.Hashes, fmt.Sprintf("%016x", h))
			}

			if len(hashes) == 2 {
				d := processing.HammingDistance(hashes[0], hashes[1])
				same := processing.SameScreen(hashes[0], hashes[1], threshold)
				res.Distance, res.Same = &d, &same
			}

			return a.print(cmd.OutOrStdout(), res, func(w io.Writer) {
				for i, f := range res.Files {
					fmt.Fprintf(w, "%s  %s\n", res.Hashes[i], f)
				}
				if res.Distance != nil {
					fmt.Fprintf(w, "distance=%d same=%t\n", *res.Distance, *res.Same)
				}
			})
		},
	}

	cmd.Flags().IntVar(&size, "size", processing.DefaultHashSize, "hash grid size (1-8)")
	cmd.Flags().IntVar(&threshold, "threshold", 5, "maximum distance counted as the same screen (default from config)")
	return cmd
}

type downscaleResult struct {
	Input      string                `json:"input" yaml:"input"`
	Output     string                `json:"output" yaml:"output"`
	InputSize  int                   `json:"input_bytes" yaml:"input_bytes"`
	OutputSize int                   `json:"output_bytes" yaml:"output_bytes"`
	Element    geometry.ImageElement `json:"element" yaml:"element"`
}

func (a *app) downscaleCmd() *cobra.Command {
	var maxW, maxH int
	cmd := &cobra.Command{
		Use:   "downscale IN OUT",
		Short: "Shrink a screenshot to fit the transmission bounds",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("max-width") {
				maxW = a.cfg.Downscale.MaxWidth
			}
			if !cmd.Flags().Changed("max-height") {
				maxH = a.cfg.Downscale.MaxHeight
			}

			raw, err := processing.NewProcessor().LoadImageBytes(args[0])
			if err != nil {
				return err
			}
			out := processing.Downscale(raw, maxW, maxH)
			el, err := processing.ElementFromBytes(out)
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[1], out, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", args[1], err)
			}

			res := downscaleResult{Input: args[0], Output: args[1], InputSize: len(raw), OutputSize: len(out), Element: *el}
			return a.print(cmd.OutOrStdout(), res, func(w io.Writer) {
				fmt.Fprintf(w, "wrote %s %dx%d (%s -> %s)\n", res.Output, el.Width, el.Height,
					utils.FormatFileSize(int64(res.InputSize)), utils.FormatFileSize(int64(res.OutputSize)))
			})
		},
	}

	cmd.Flags().IntVar(&maxW, "max-width", processing.DefaultMaxWidth, "maximum width, 0 for unbounded (default from config)")
	cmd.Flags().IntVar(&maxH, "max-height", processing.DefaultMaxHeight, "maximum height, 0 for unbounded (default from config)")
	return cmd
}

func (a *app) annotateCmd() *cobra.Command {
	var boxes, points []string
	var format, profile string
	cmd := &cobra.Command{
		Use:   "annotate IN OUT",
		Short: "Draw boxes and points on a screenshot",
		Long: `Draw boxes and points on a screenshot.

Coordinates are given in --format and converted to screen pixels first,
so model output can be checked by eye.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := coords.ParseFormat(format)
			if err != nil {
				return err
			}
			p, _, err := a.profile(profile)
			if err != nil {
				return err
			}

			proc := processing.NewProcessor()
			data, err := proc.LoadImageBytes(args[0])
			if err != nil {
				return err
			}
			img, err := processing.DecodeImage(data)
			if err != nil {
				return err
			}
			b := img.Bounds()
			el, err := sizedElement(b.Dx(), b.Dy(), p.Budget)
			if err != nil {
				return err
			}

			ann, err := toAnnotation(boxes, points, *el, src)
			if err != nil {
				return err
			}
			if err := proc.SaveImage(proc.Annotate(img, ann), args[1], 92, false); err != nil {
				return fmt.Errorf("failed to save %s: %w", args[1], err)
			}
			logger.L(cmd.Context()).Debug("annotated screenshot",
				zap.Int("boxes", len(ann.Boxes)), zap.Int("points", len(ann.Points)))

			return a.print(cmd.OutOrStdout(), ann, func(w io.Writer) {
				fmt.Fprintf(w, "wrote %s (%d boxes, %d points)\n", args[1], len(ann.Boxes), len(ann.Points))
			})
		},
	}

	f := cmd.Flags()
	f.StringArrayVar(&boxes, "bbox", nil, "box as x1,y1,x2,y2 (repeatable)")
	f.StringArrayVar(&points, "point", nil, "point as x,y (repeatable)")
	f.StringVar(&format, "format", coords.AbsOrigin.String(), "format of the given coordinates")
	f.StringVar(&profile, "profile", "", "model profile used to size the screenshot (default from config)")
	return cmd
}

func toAnnotation(boxes, points []string, el geometry.ImageElement, src coords.Format) (processing.Annotation, error) {
	var ann processing.Annotation
	for _, s := range boxes {
		v, err := parseTuple(s, 4)
		if err != nil {
			return ann, err
		}
		b, err := coords.ConvertBBox(coords.BBox(v), el, src, coords.AbsOrigin)
		if err != nil {
			return ann, err
		}
		ann.Boxes = append(ann.Boxes, b)
	}
	for _, s := range points {
		v, err := parseTuple(s, 2)
		if err != nil {
			return ann, err
		}
		pt, err := coords.ConvertPoint(coords.Point(v), el, src, coords.AbsOrigin)
		if err != nil {
			return ann, err
		}
		ann.Points = append(ann.Points, pt)
	}
	return ann, nil
}
