package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"llmsecrets/internal/browser"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(targetsCmd)
}

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List browser pages available over DevTools",
	Args:  cobra.NoArgs,
	RunE:  runTargets,
}

func runTargets(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.Close()

	targets, err := a.svc.ListTargets(cmd.Context())
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMATCH\tTITLE\tURL")
	for _, t := range targets {
		match := ""
		if browser.MatchURL(t.URL, a.cfg.Browser.TargetURL) {
			match = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.ID, match, t.Title, t.URL)
	}
	return tw.Flush()
}
