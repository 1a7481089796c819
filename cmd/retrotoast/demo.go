package main

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/retrotoast/internal/adapter/input"
	"github.com/jmylchreest/retrotoast/internal/adapter/output"
	"github.com/jmylchreest/retrotoast/internal/daemon"
	"github.com/jmylchreest/retrotoast/internal/icon"
	"github.com/jmylchreest/retrotoast/internal/model"
)

var demoOpts struct {
	icon   string
	format string
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Show four stacked example toasts",
	Long: `Show four example toasts at once. The first and third never expire and
have to be closed with the mouse; the second and fourth use the default
timeout. The command exits once all four have closed.`,
	Args: cobra.NoArgs,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)

	demoCmd.Flags().StringVarP(&demoOpts.icon, "icon", "i", "",
		"Icon file to use instead of the built-in one")
	demoCmd.Flags().StringVarP(&demoOpts.format, "format", "f", string(output.FormatPlain),
		"Event output format: plain, json")
}

func runDemo(cmd *cobra.Command, args []string) error {
	return runDaemon(cmd, daemon.Options{
		Commands:     demoCommands(demoOpts.icon),
		Output:       os.Stdout,
		Format:       output.FormatType(demoOpts.format),
		ExitWhenIdle: true,
	})
}

func demoCommands(iconPath string) []input.Command {
	var ic *model.Icon
	if iconPath == "" {
		ic = demoIcon()
	}

	timeouts := []model.Timeout{model.TimeoutNever, model.TimeoutDefault, model.TimeoutNever, model.TimeoutDefault}
	cmds := make([]input.Command, len(timeouts))
	for i, timeout := range timeouts {
		cmds[i] = input.Command{
			Op:  input.OpNotify,
			Ref: fmt.Sprintf("demo-%d", i+1),
			Notification: model.Notification{
				AppName: "App name",
				Title:   "Critical Error",
				Body:    fmt.Sprintf("Just kidding, this is just the notification example %d.", i+1),
				Icon:    ic,
				Timeout: timeout,
			},
			IconPath: iconPath,
		}
	}
	return cmds
}

// demoIcon is a blue tile with a white frame.
func demoIcon() *model.Icon {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(3, 3, 29, 29), image.NewUniform(color.RGBA{R: 0x1e, G: 0x5a, B: 0xc8, A: 0xff}), image.Point{}, draw.Src)
	return icon.FromImage(img)
}
