package cli

import (
	"fmt"
	"os"

	"github.com/dunamismax/avifconv/internal/pipeline"
	"github.com/spf13/cobra"
)

func newDetectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "detect <input>...",
		Short: "Print the format, pixel layout and dimensions of images",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runDetect,
	}
}

func runDetect(cmd *cobra.Command, args []string) error {
	var failed int
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
			continue
		}

		format, layout, size, err := pipeline.Inspect(data)
		if err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
			continue
		}

		status := "ok"
		if err := pipeline.CheckLayout(format, layout); err != nil {
			status = err.Error()
		} else if err := pipeline.CheckDimensions(size); err != nil {
			status = err.Error()
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%dx%d\t%s\n", path, format, layout, size.X, size.Y, status)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be inspected", failed, len(args))
	}
	return nil
}
