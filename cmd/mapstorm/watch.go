package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/mapstorm/internal/extension"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run with live extension reloading",
	Long: `Load all extensions and keep running, reloading an extension
whenever its files change on disk. Useful while developing a format
extension: edit the Lua, save, and the format updates in place.

Stops on Ctrl-C.`,
	RunE: runWatchExtensions,
}

func runWatchExtensions(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close(cmd.Context())

	watcher, err := a.Watch()
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer watcher.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "watching extensions (%d loaded), Ctrl-C to stop\n",
		a.Extensions.Count())

	unsubscribe := a.Extensions.Subscribe(func(e extension.ManagerEvent) {
		if e.Error != nil {
			fmt.Fprintf(out, "%s: %s (%v)\n", e.Extension, e.Type, e.Error)
			return
		}
		fmt.Fprintf(out, "%s: %s\n", e.Extension, e.Type)
	})
	defer unsubscribe()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sig:
	case <-cmd.Context().Done():
	}

	fmt.Fprintln(out, "stopping")
	return nil
}
