package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/dshills/mapstorm/internal/format"
)

// Styles
var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	capStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00CC66"))
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List available map formats",
	Long: `List all registered map formats: the built-in ones and any
contributed by loaded extensions.`,
	RunE: runFormats,
}

func runFormats(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close(cmd.Context())

	entries := a.Registry.List()
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%-12s %-12s %s", "NAME", "CAPABILITIES", "FILTER")))
	for _, e := range entries {
		fmt.Fprintf(out, "%-12s %-12s %s\n",
			e.Name,
			capStyle.Render(capabilityLabel(e.Capabilities)),
			mutedStyle.Render(e.NameFilter))
	}

	fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("\n%d formats, %d extensions loaded",
		len(entries), a.Extensions.Count())))
	return nil
}

// capabilityLabel renders capabilities as "read/write", "read" or "write".
func capabilityLabel(c format.Capability) string {
	var parts []string
	if c.Has(format.CanRead) {
		parts = append(parts, "read")
	}
	if c.Has(format.CanWrite) {
		parts = append(parts, "write")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "/")
}
