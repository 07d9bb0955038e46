package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(usageCmd)
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show anonymous usage against the free limit",
	Args:  cobra.NoArgs,
	RunE:  runUsage,
}

func runUsage(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	u, err := a.svc.Usage(cmd.Context())
	if err != nil {
		return err
	}
	id, err := a.svc.DeviceID(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Device:  %s\n", id)
	fmt.Printf("Usage:   %d/%d anonymous requests\n", u.Count, u.Limit)
	if u.HasAPIKey {
		fmt.Println("API key: stored (requests are not counted)")
	} else {
		fmt.Printf("Settings: %s/settings\n", a.cfg.APIBaseURL())
	}
	return nil
}
