package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	keyCmd.AddCommand(keySetCmd, keyClearCmd, keyShowCmd)
	rootCmd.AddCommand(keyCmd)
}

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the stored API key",
}

var keySetCmd = &cobra.Command{
	Use:   "set <key>",
	Short: "Store an API key (must be longer than 10 characters)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.svc.SetAPIKey(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("API key saved")
		return nil
	},
}

var keyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored API key and fall back to anonymous usage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.svc.ClearAPIKey(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("API key removed")
		return nil
	},
}

var keyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored API key (masked)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.Close()
		key, ok, err := a.svc.APIKey(cmd.Context())
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("No API key stored")
			return nil
		}
		fmt.Println(maskKey(key))
		return nil
	},
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
