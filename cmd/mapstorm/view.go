package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/mapstorm/internal/preview"
)

var viewCmd = &cobra.Command{
	Use:   "view <file>",
	Short: "Preview a map in the terminal",
	Long: `Render a map as colored cells in the terminal. Each tile ID gets
a stable color; objects appear as markers. Arrow keys or hjkl scroll,
tab cycles through single-layer view, q quits.`,
	Args: cobra.ExactArgs(1),
	RunE: runView,
}

func init() {
	viewCmd.Flags().StringVar(&inputFormat, "input-format", "", "format name (default: by file extension)")
}

func runView(cmd *cobra.Command, args []string) error {
	path := args[0]

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close(cmd.Context())

	reader, err := a.Reader(path, inputFormat)
	if err != nil {
		return err
	}

	m, err := reader.Read(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	viewer, err := preview.NewViewer(m)
	if err != nil {
		return err
	}
	return viewer.Run()
}
