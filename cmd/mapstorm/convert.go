package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/mapstorm/internal/format"
)

var convertCmd = &cobra.Command{
	Use:   "convert <input> <output>",
	Short: "Convert a map between formats",
	Long: `Convert a map file from one format to another.

Formats are picked by file extension unless overridden with
--input-format or --output-format. Extension-provided formats work the
same as built-in ones.

Examples:
  mapstorm convert level.json level.xml
  mapstorm convert --input-format json --output-format csv level.dat level.csv
  mapstorm convert --minimize level.xml level.json`,
	Args: cobra.ExactArgs(2),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVar(&inputFormat, "input-format", "", "input format name (default: by file extension)")
	convertCmd.Flags().StringVar(&outputFormat, "output-format", "", "output format name (default: by file extension)")
	convertCmd.Flags().BoolVar(&minimized, "minimize", false, "write compact output")
}

func runConvert(cmd *cobra.Command, args []string) error {
	inputPath, outputPath := args[0], args[1]

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close(cmd.Context())

	reader, err := a.Reader(inputPath, inputFormat)
	if err != nil {
		return err
	}
	writer, err := a.Writer(outputPath, outputFormat)
	if err != nil {
		return err
	}

	m, err := reader.Read(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", inputPath, err)
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%s: %w", inputPath, err)
	}

	opts := a.WriteOptions()
	if minimized {
		opts |= format.WriteMinimized
	}

	if err := writer.Write(m, outputPath, opts); err != nil {
		return fmt.Errorf("failed to write %s: %w", outputPath, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) -> %s (%s)\n",
		inputPath, reader.Name(), outputPath, writer.Name())
	return nil
}
