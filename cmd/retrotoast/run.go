package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/retrotoast/internal/daemon"
	"github.com/jmylchreest/retrotoast/internal/platform/term"
)

// runDaemon hosts a daemon on the selected platform until it exits on its
// own or a signal arrives.
func runDaemon(cmd *cobra.Command, opts daemon.Options) error {
	adapter, err := newAdapter(globalOpts.platform, opts.Stdin != nil)
	if err != nil {
		return err
	}

	// The terminal host owns stdout.
	if _, ok := adapter.(*term.Adapter); ok && opts.Output == os.Stdout {
		logger.Debug("terminal host active, not writing events to stdout")
		opts.Output = nil
	}
	opts.Version = version

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := daemon.New(adapter, cfg, opts, logger)
	return d.Run(ctx)
}
