package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Validate map files",
	Long: `Read each map file and check its structural invariants: layer
sizes match the map, tileset GID ranges do not overlap, and every
non-empty tile references a known tileset.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&inputFormat, "input-format", "", "format name (default: by file extension)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close(cmd.Context())

	out := cmd.OutOrStdout()
	failures := 0

	for _, path := range args {
		reader, err := a.Reader(path, inputFormat)
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", path, err)
			failures++
			continue
		}

		m, err := reader.Read(path)
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", path, err)
			failures++
			continue
		}

		if err := m.Validate(); err != nil {
			fmt.Fprintf(out, "%s: %v\n", path, err)
			failures++
			continue
		}

		fmt.Fprintf(out, "%s: ok (%s)\n", path, m)
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d files failed validation", failures, len(args))
	}
	return nil
}
