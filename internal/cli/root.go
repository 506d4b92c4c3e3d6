// Package cli implements the avifconv command line.
package cli

import (
	"fmt"
	"io"
	"log"
	"runtime"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

type rootOptions struct {
	verbose bool
	logger  *log.Logger
}

// NewRootCommand builds the command tree. Diagnostics go to stderr, results
// to stdout.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "avifconv",
		Short: "Convert PNG and JPEG images to AVIF",
		Long: `avifconv decodes PNG or JPEG input, normalizes it to 8-bit RGBA and
encodes it as AVIF (or WebP) with quality-derived alpha settings.

Grayscale JPEGs are expanded to RGB. CMYK JPEGs are rejected.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			out := io.Discard
			if opts.verbose {
				out = cmd.ErrOrStderr()
			}
			opts.logger = log.New(out, "[avifconv] ", log.LstdFlags|log.Lmsgprefix)
		},
	}
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	root.SetVersionTemplate(fmt.Sprintf(
		"avifconv %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))

	root.AddCommand(newConvertCommand(opts), newDetectCommand())
	return root
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
