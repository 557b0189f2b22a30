package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"androidmirror/models"

	"github.com/spf13/cobra"
)

// NewDevicesCmd creates the `devices` command
func NewDevicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List connected devices and their applications",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().Bool("json", false, "Print the catalog snapshot as JSON")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		snapshot, err := a.refresh(cmd.Context())
		if err != nil {
			return err
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return writeJSON(cmd.OutOrStdout(), snapshot)
		}
		return writeDeviceTable(cmd.OutOrStdout(), snapshot.Devices)
	}

	return cmd
}

// NewAppsCmd creates the `apps` command
func NewAppsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apps <device-id>",
		Short: "List the applications installed on a device",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().Bool("json", false, "Print the applications as JSON")
	cmd.Flags().StringP("filter", "f", "", "Only show packages containing this text")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.refresh(cmd.Context()); err != nil {
			return err
		}
		device, err := a.manager.GetDevice(args[0])
		if err != nil {
			return err
		}

		filter, _ := cmd.Flags().GetString("filter")
		apps := device.FilterApplications(filter)

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return writeJSON(cmd.OutOrStdout(), apps)
		}
		if device.Warning != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", device.Warning)
		}
		for _, app := range apps {
			fmt.Fprintln(cmd.OutOrStdout(), app.PackageID)
		}
		return nil
	}

	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeDeviceTable(w io.Writer, devices []models.Device) error {
	if len(devices) == 0 {
		_, err := fmt.Fprintln(w, "No devices found")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCONNECTION\tSTATE\tAPPS")
	for _, d := range devices {
		apps := fmt.Sprintf("%d", len(d.Applications))
		if d.Warning != "" {
			apps = "?"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.ID, d.DisplayName, d.Connection, d.State, apps)
	}
	return tw.Flush()
}
