package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/beeep"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/retrotoast/internal/adapter/input"
	"github.com/jmylchreest/retrotoast/internal/adapter/output"
	"github.com/jmylchreest/retrotoast/internal/daemon"
	"github.com/jmylchreest/retrotoast/internal/model"
)

var showOpts struct {
	app     string
	icon    string
	timeout string
	sound   string
	silent  bool
	native  bool
	format  string
}

var showCmd = &cobra.Command{
	Use:   "show TITLE [BODY]",
	Short: "Show a single toast and wait for it to close",
	Long: `Show a single toast and wait until it expires or is dismissed.

A shown and a closed event are written to stdout, the closed event carrying
the reason (expired, dismissed, ...).

Examples:
  retrotoast show "Build finished" "All 42 tests passed"
  retrotoast show --timeout never --icon ~/icons/app.ico "Reminder"
  retrotoast show --native "Handed to the desktop's own notifier"`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().StringVarP(&showOpts.app, "app", "a", "",
		"Application name shown in the header (default: the executable's name)")
	showCmd.Flags().StringVarP(&showOpts.icon, "icon", "i", "",
		"Icon file (.png, .jpg, .gif, .ico)")
	showCmd.Flags().StringVarP(&showOpts.timeout, "timeout", "t", "default",
		"How long to show the toast: default, never, a duration like 10s, or milliseconds")
	showCmd.Flags().StringVar(&showOpts.sound, "sound", "",
		"Sound file to play instead of the configured one")
	showCmd.Flags().BoolVarP(&showOpts.silent, "silent", "s", false,
		"Do not play a sound")
	showCmd.Flags().BoolVar(&showOpts.native, "native", false,
		"Send through the desktop's notification service instead of drawing a toast")
	showCmd.Flags().StringVarP(&showOpts.format, "format", "f", string(output.FormatPlain),
		"Event output format: plain, json")
}

func runShow(cmd *cobra.Command, args []string) error {
	timeout, err := model.ParseTimeout(showOpts.timeout)
	if err != nil {
		return err
	}

	n := model.Notification{
		AppName:   appName(showOpts.app),
		Title:     args[0],
		Silent:    showOpts.silent,
		Timeout:   timeout,
		SoundFile: showOpts.sound,
	}
	if len(args) > 1 {
		n.Body = args[1]
	}
	if err := n.Validate(); err != nil {
		return err
	}

	if showOpts.native {
		return showNative(n)
	}

	return runDaemon(cmd, daemon.Options{
		Commands: []input.Command{
			{Op: input.OpNotify, Notification: n, IconPath: showOpts.icon},
		},
		Output:       os.Stdout,
		Format:       output.FormatType(showOpts.format),
		ExitWhenIdle: true,
	})
}

// showNative hands the toast to the desktop's own notifier. Alert adds
// the system sound.
func showNative(n model.Notification) error {
	send := beeep.Alert
	if n.Silent {
		send = beeep.Notify
	}
	if err := send(n.Title, n.Body, showOpts.icon); err != nil {
		return fmt.Errorf("native notification failed: %w", err)
	}
	return nil
}

// appName falls back to the running executable's name.
func appName(name string) string {
	if name != "" {
		return name
	}
	exe, err := os.Executable()
	if err != nil {
		return "retrotoast"
	}
	return strings.TrimSuffix(filepath.Base(exe), ".exe")
}
