package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"androidmirror/adb"
	"androidmirror/logger"

	"github.com/spf13/cobra"
)

// NewMirrorCmd creates the `mirror` command
func NewMirrorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror <device-id> [package]",
		Short: "Mirror a device, or one of its applications, with scrcpy",
		Long: `Launches scrcpy with the stored mirror settings and waits until the window
is closed. With a package the app is started on a new virtual display.`,
		Args: cobra.RangeArgs(1, 2),
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.refresh(ctx); err != nil {
			return err
		}

		var inv adb.Invocation
		if len(args) == 2 {
			inv, err = a.launcher.AppInvocation(ctx, args[0], args[1])
		} else {
			inv, err = a.launcher.ScreenInvocation(ctx, args[0])
		}
		if err != nil {
			return err
		}

		logger.Info().Str("device", args[0]).Strs("args", inv.Args).Msg("Launching scrcpy")
		if err := a.launcher.Run(ctx, inv); err != nil && !adb.IsKind(err, adb.ErrKindCanceled) {
			return err
		}
		return nil
	}

	return cmd
}
