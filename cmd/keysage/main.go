// Keysage — conversational browser for Akeyless secrets.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "keysage",
	Short: "Keysage — ask questions about your Akeyless secrets in plain English.",
	Long: `Keysage is a read-only conversational front-end for Akeyless.
It classifies natural-language questions into secret-browsing intents
(list, fetch, count, search) and answers them against the Akeyless REST API.
Run without a subcommand for the interactive chat prompt.`,
	RunE:          runChat, // Default to interactive chat.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(chatCmd, serveCmd, queryCmd, versionCmd)
	_ = godotenv.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
