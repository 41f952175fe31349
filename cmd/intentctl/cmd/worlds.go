package cmd

import (
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

var worldsServer string

var worldsCmd = &cobra.Command{
	Use:   "worlds",
	Short: "Inspect worlds on a running intentctl server",
}

var worldsShowCmd = &cobra.Command{
	Use:   "show <worldId>",
	Short: "Print a world's identity record and reconstructed data",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorldsShow,
}

func init() {
	worldsCmd.PersistentFlags().StringVar(&worldsServer, "server", "http://localhost:8080", "base URL of the running intentctl server")
	worldsCmd.AddCommand(worldsShowCmd)
}

func runWorldsShow(_ *cobra.Command, args []string) error {
	client := resty.New()
	resp, err := client.R().Get(worldsServer + "/worlds/" + args[0])
	if err != nil {
		return fmt.Errorf("intentctl: get world: %w", err)
	}
	fmt.Printf("%d %s\n", resp.StatusCode(), resp.String())
	return nil
}
