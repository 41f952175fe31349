package cmd

import (
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

var proposalsServer string

var proposalsCmd = &cobra.Command{
	Use:   "proposals",
	Short: "Inspect proposals on a running intentctl server",
}

var proposalsShowCmd = &cobra.Command{
	Use:   "show <proposalId>",
	Short: "Print a proposal's current lifecycle state",
	Args:  cobra.ExactArgs(1),
	RunE:  runProposalsShow,
}

func init() {
	proposalsCmd.PersistentFlags().StringVar(&proposalsServer, "server", "http://localhost:8080", "base URL of the running intentctl server")
	proposalsCmd.AddCommand(proposalsShowCmd)
}

func runProposalsShow(_ *cobra.Command, args []string) error {
	client := resty.New()
	resp, err := client.R().Get(proposalsServer + "/proposals/" + args[0])
	if err != nil {
		return fmt.Errorf("intentctl: get proposal: %w", err)
	}
	fmt.Printf("%d %s\n", resp.StatusCode(), resp.String())
	return nil
}
