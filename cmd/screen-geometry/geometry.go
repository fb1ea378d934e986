package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/menta2k/screen-geometry/pkg/coords"
	"github.com/menta2k/screen-geometry/pkg/geometry"
	"github.com/menta2k/screen-geometry/pkg/processing"
)

type resizeResult struct {
	Height int `json:"height" yaml:"height"`
	Width  int `json:"width" yaml:"width"`
}

func (a *app) resizeCmd() *cobra.Command {
	opts := geometry.DefaultResizeOptions()
	cmd := &cobra.Command{
		Use:   "resize HEIGHT WIDTH",
		Short: "Snap image dimensions to the model grid under a pixel budget",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dims, err := parseInts(args...)
			if err != nil {
				return err
			}
			h, w, err := geometry.SmartResize(dims[0], dims[1], opts)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), resizeResult{Height: h, Width: w}, func(out io.Writer) {
				fmt.Fprintf(out, "height=%d width=%d\n", h, w)
			})
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.Factor, "factor", opts.Factor, "grid both dimensions snap to")
	f.IntVar(&opts.MinPixels, "min-pixels", opts.MinPixels, "minimum resized area")
	f.IntVar(&opts.MaxPixels, "max-pixels", opts.MaxPixels, "maximum resized area")
	f.IntVar(&opts.MaxLongSide, "max-long-side", opts.MaxLongSide, "long side limit applied before snapping (0 disables)")
	return cmd
}

func (a *app) sizeCmd() *cobra.Command {
	var image, profile string
	cmd := &cobra.Command{
		Use:   "size [WIDTH HEIGHT]",
		Short: "Compute the resized dimensions and token count of a screenshot",
		Args: func(cmd *cobra.Command, args []string) error {
			if image == "" && len(args) != 2 {
				return fmt.Errorf("give WIDTH HEIGHT or --image")
			}
			if image != "" && len(args) != 0 {
				return fmt.Errorf("WIDTH HEIGHT and --image are exclusive")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := a.profile(profile)
			if err != nil {
				return err
			}
			el, err := a.element(image, args)
			if err != nil {
				return err
			}
			if _, err := geometry.UpdateImageSize(el, p.Budget); err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), el, func(out io.Writer) {
				fmt.Fprintf(out, "%dx%d -> %dx%d (%d tokens, profile %s)\n",
					el.Width, el.Height, el.ResizedWidth, el.ResizedHeight, el.SeqLen, p.Name)
			})
		},
	}

	cmd.Flags().StringVar(&image, "image", "", "read dimensions from a screenshot file or URL")
	cmd.Flags().StringVar(&profile, "profile", "", "model profile (default from config)")
	return cmd
}

// element reads raw dimensions from an image source or WIDTH HEIGHT arguments
func (a *app) element(image string, args []string) (*geometry.ImageElement, error) {
	if image != "" {
		data, err := processing.NewProcessor().LoadImageBytes(image)
		if err != nil {
			return nil, err
		}
		return processing.ElementFromBytes(data)
	}
	dims, err := parseInts(args...)
	if err != nil {
		return nil, err
	}
	return geometry.NewImageElement(dims[0], dims[1]), nil
}

type convertFlags struct {
	from, to string
	width    int
	height   int
	image    string
	profile  string
}

type convertResult struct {
	From    string                `json:"from" yaml:"from"`
	To      string                `json:"to" yaml:"to"`
	Input   []float64             `json:"input" yaml:"input"`
	Output  []float64             `json:"output" yaml:"output"`
	Element geometry.ImageElement `json:"element" yaml:"element"`
}

func (a *app) convertCmd() *cobra.Command {
	cf := &convertFlags{}
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a box or point between coordinate formats",
		Long: fmt.Sprintf(`Convert a box or point between coordinate formats.

Formats: %v`, coords.Formats()),
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&cf.from, "from", "", "source format")
	pf.StringVar(&cf.to, "to", coords.AbsOrigin.String(), "target format")
	pf.IntVar(&cf.width, "width", 0, "raw screenshot width")
	pf.IntVar(&cf.height, "height", 0, "raw screenshot height")
	pf.StringVar(&cf.image, "image", "", "read raw dimensions from a screenshot")
	pf.StringVar(&cf.profile, "profile", "", "model profile used to size the screenshot (default from config)")
	_ = cmd.MarkPersistentFlagRequired("from")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "bbox X1 Y1 X2 Y2",
			Short: "Convert a bounding box",
			Args:  cobra.ExactArgs(4),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.runConvert(cmd, cf, args, func(in []float64, el geometry.ImageElement, src, tgt coords.Format) ([]float64, error) {
					out, err := coords.ConvertBBox(coords.BBox(in), el, src, tgt)
					return out[:], err
				})
			},
		},
		&cobra.Command{
			Use:   "point X Y",
			Short: "Convert a point",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.runConvert(cmd, cf, args, func(in []float64, el geometry.ImageElement, src, tgt coords.Format) ([]float64, error) {
					out, err := coords.ConvertPoint(coords.Point(in), el, src, tgt)
					return out[:], err
				})
			},
		},
	)
	return cmd
}

type convertFunc func(in []float64, el geometry.ImageElement, src, tgt coords.Format) ([]float64, error)

func (a *app) runConvert(cmd *cobra.Command, cf *convertFlags, args []string, convert convertFunc) error {
	in, err := parseFloats(args...)
	if err != nil {
		return err
	}
	src, err := coords.ParseFormat(cf.from)
	if err != nil {
		return err
	}
	tgt, err := coords.ParseFormat(cf.to)
	if err != nil {
		return err
	}

	var dims []string
	if cf.image == "" {
		dims = []string{fmt.Sprint(cf.width), fmt.Sprint(cf.height)}
	}
	el, err := a.element(cf.image, dims)
	if err != nil {
		return err
	}
	p, _, err := a.profile(cf.profile)
	if err != nil {
		return err
	}
	if _, err := geometry.UpdateImageSize(el, p.Budget); err != nil {
		return err
	}

	out, err := convert(in, *el, src, tgt)
	if err != nil {
		return err
	}

	res := convertResult{From: src.String(), To: tgt.String(), Input: in, Output: out, Element: *el}
	return a.print(cmd.OutOrStdout(), res, func(w io.Writer) {
		fmt.Fprintf(w, "%s %v -> %s %v\n", src, formatValues(in), tgt, formatValues(out))
	})
}

func formatValues(vs []float64) string {
	s := ""
	for i, v := range vs {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%g", v)
	}
	return s
}
