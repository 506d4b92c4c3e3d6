package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dunamismax/avifconv/internal/pipeline"
	"github.com/spf13/cobra"
)

type convertOptions struct {
	output      string
	quality     float32
	format      string
	premultiply bool
	speed       int
	colorSpace  string
	threads     int
}

func newConvertCommand(root *rootOptions) *cobra.Command {
	opts := &convertOptions{}

	cmd := &cobra.Command{
		Use:   "convert <input>...",
		Short: "Convert PNG/JPEG files to AVIF or WebP",
		Long: `Converts each input and writes the result next to it with the output
extension, or to --output when a single input is given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, root, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "", "output file (single input only)")
	flags.Float32VarP(&opts.quality, "quality", "q", pipeline.DefaultQuality, "quality 0-100")
	flags.StringVarP(&opts.format, "format", "f", "avif", "output format: avif or webp")
	flags.BoolVar(&opts.premultiply, "premultiply", false, "premultiply color by alpha before encoding")
	flags.IntVarP(&opts.speed, "speed", "s", pipeline.DefaultSpeed, "encoder speed 0-10 (lower is slower and smaller)")
	flags.StringVar(&opts.colorSpace, "color-space", "rgb", "internal color space: rgb or ycbcr")
	flags.IntVar(&opts.threads, "threads", 0, "encoder threads (0 = automatic)")
	return cmd
}

func (o *convertOptions) pipelineOptions() (pipeline.Options, error) {
	format, err := pipeline.ParseOutputFormat(o.format)
	if err != nil {
		return pipeline.Options{}, err
	}
	colorSpace, err := pipeline.ParseColorSpace(o.colorSpace)
	if err != nil {
		return pipeline.Options{}, err
	}
	if o.speed < 0 || o.speed > pipeline.MaxSpeed {
		return pipeline.Options{}, fmt.Errorf("--speed must be between 0 and %d, got %d", pipeline.MaxSpeed, o.speed)
	}
	if o.quality < 0 || o.quality > 100 {
		return pipeline.Options{}, fmt.Errorf("--quality must be between 0 and 100, got %v", o.quality)
	}
	if o.threads < 0 {
		return pipeline.Options{}, fmt.Errorf("--threads must not be negative, got %d", o.threads)
	}
	return pipeline.Options{
		Format:             format,
		Speed:              o.speed,
		ColorSpace:         colorSpace,
		Threads:            o.threads,
		PremultipliedAlpha: o.premultiply,
	}, nil
}

func runConvert(cmd *cobra.Command, root *rootOptions, opts *convertOptions, inputs []string) error {
	if opts.output != "" && len(inputs) > 1 {
		return errors.New("--output requires exactly one input")
	}
	popts, err := opts.pipelineOptions()
	if err != nil {
		return err
	}
	if opts.output == "" {
		if err := checkOutputCollisions(inputs, popts.Format); err != nil {
			return err
		}
	}

	if err := pipeline.Startup(popts.Threads); err != nil {
		return fmt.Errorf("start encoder runtime: %w", err)
	}
	defer pipeline.Shutdown()

	processor, err := pipeline.NewProcessor(pipeline.LocalFileFetcher{}, pipeline.FileEmitter{Path: opts.output}, popts)
	if err != nil {
		return err
	}

	root.logger.Printf("format=%s quality=%.1f speed=%d color_space=%s premultiply=%t",
		popts.Format, opts.quality, popts.Speed, popts.ColorSpace, popts.PremultipliedAlpha)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var failed int
	for _, input := range inputs {
		result, err := processor.Process(ctx, pipeline.Request{
			ConversionID: input,
			SourceKey:    input,
			Quality:      opts.quality,
			Format:       popts.Format,
		})
		if err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", input, err)
			continue
		}

		out := result.Output
		root.logger.Printf("Success: %s input=%s", out.Summary(), input)
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s  %s  (%s -> %s, %dx%d)\n",
			input, result.OutputKey, out.Summary(),
			formatBytes(int64(result.SourceBytes)), formatBytes(int64(out.TotalBytes())),
			out.Width, out.Height)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d conversions failed", failed, len(inputs))
	}
	return nil
}

// checkOutputCollisions refuses inputs whose default outputs would overwrite
// each other, such as a.png and a.jpg.
func checkOutputCollisions(inputs []string, format pipeline.OutputFormat) error {
	seen := make(map[string]string, len(inputs))
	for _, input := range inputs {
		target := filepath.Clean(pipeline.DefaultOutputPath(input, format))
		if prev, ok := seen[target]; ok {
			return fmt.Errorf("%s and %s would both write %s; convert them separately with --output", prev, input, target)
		}
		seen[target] = input
	}
	return nil
}
