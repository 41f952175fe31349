package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

var (
	submitServer    string
	submitActor     string
	submitInput     string
	submitBaseWorld string
)

var submitCmd = &cobra.Command{
	Use:   "submit <action>",
	Short: "Submit an intent to a running intentctl server",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitServer, "server", "http://localhost:8080", "base URL of the running intentctl server")
	submitCmd.Flags().StringVar(&submitActor, "actor", "cli", "actor id recorded on the proposal")
	submitCmd.Flags().StringVar(&submitInput, "input", "{}", "JSON object passed as the intent's input")
	submitCmd.Flags().StringVar(&submitBaseWorld, "base-world", "root", "world id to submit the intent against")
}

func runSubmit(_ *cobra.Command, args []string) error {
	var input map[string]any
	if err := json.Unmarshal([]byte(submitInput), &input); err != nil {
		return fmt.Errorf("intentctl: --input is not valid JSON: %w", err)
	}

	client := resty.New()
	resp, err := client.R().
		SetBody(map[string]any{
			"actor":     submitActor,
			"action":    args[0],
			"input":     input,
			"baseWorld": submitBaseWorld,
		}).
		Post(submitServer + "/intents")
	if err != nil {
		return fmt.Errorf("intentctl: submit request: %w", err)
	}

	fmt.Printf("%d %s\n", resp.StatusCode(), resp.String())
	return nil
}
