package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/retrotoast/internal/adapter/output"
	"github.com/jmylchreest/retrotoast/internal/daemon"
)

var serveOpts struct {
	dbus         bool
	stdin        bool
	watch        bool
	exitWhenIdle bool
	format       string
	themesDir    string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as a long-lived toast server",
	Long: `Run as a long-lived toast server.

Requests are read from stdin as JSON lines, one per line:

  {"title":"Build finished","body":"All tests passed","timeout":"10s"}
  {"ref":"job-7","app":"ci","title":"Deploying","timeout":"never"}
  {"op":"close","id":"01HV3K9Q6T8B3N4W5X6Y7Z8A9B"}
  {"op":"close_all"}

Every toast produces a shown and a closed event on stdout, echoing the
request's ref. With --dbus the server also claims
org.freedesktop.Notifications on the session bus, so notify-send and
desktop applications can show toasts through it.

The configuration file is watched and changes apply to live toasts.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveOpts.dbus, "dbus", false,
		"Serve the freedesktop notification interface on the session bus")
	serveCmd.Flags().BoolVar(&serveOpts.stdin, "stdin", true,
		"Read JSON-lines requests from stdin")
	serveCmd.Flags().BoolVar(&serveOpts.watch, "watch", true,
		"Reload the configuration file when it changes")
	serveCmd.Flags().BoolVar(&serveOpts.exitWhenIdle, "exit-when-idle", false,
		"Exit once stdin is closed and no toast is showing (ignored with --dbus)")
	serveCmd.Flags().StringVarP(&serveOpts.format, "format", "f", string(output.FormatJSON),
		"Event output format: plain, json")
	serveCmd.Flags().StringVar(&serveOpts.themesDir, "themes-dir", "",
		"Directory of user themes (default: ~/.config/retrotoast/themes)")
}

func runServe(cmd *cobra.Command, args []string) error {
	opts := daemon.Options{
		ConfigPath:   globalOpts.configPath,
		WatchConfig:  serveOpts.watch,
		DBus:         serveOpts.dbus,
		Output:       os.Stdout,
		Format:       output.FormatType(serveOpts.format),
		ThemesDir:    serveOpts.themesDir,
		ExitWhenIdle: serveOpts.exitWhenIdle,
	}
	if serveOpts.stdin {
		opts.Stdin = os.Stdin
	}

	logger.Info("starting retrotoast server", "version", version, "dbus", serveOpts.dbus, "stdin", serveOpts.stdin)
	return runDaemon(cmd, opts)
}
