package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the pushbox application
var rootCmd = &cobra.Command{
	Use:   "pushbox",
	Short: "MCP server for Gmail and Calendar with Pub/Sub push notifications",
	Long: `pushbox is an MCP (Model Context Protocol) server that gives AI assistants
access to Gmail and Google Calendar, and turns Gmail push notifications
delivered over Cloud Pub/Sub into prompt material for the assistant.

It can run as:
  - An MCP server over stdio (default)
  - An MCP server over streamable HTTP with OAuth and the push webhook`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "pushbox version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newVersionCmd())
}
