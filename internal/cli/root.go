// Package cli implements the promptmap command line client.
package cli

import (
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Kripu77/prompt-map-sub001/pkg/promptmap/client"
)

var (
	serverURL string
	token     string
	timeout   time.Duration
	noColor   bool
)

var (
	titleColor  = color.New(color.FgCyan, color.Bold)
	branchColor = color.New(color.FgGreen)
	leafColor   = color.New(color.FgWhite)
	noticeColor = color.New(color.FgYellow)
	errorColor  = color.New(color.FgRed, color.Bold)
	dimColor    = color.New(color.Faint)
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "promptmap",
	Short: "Generate mind maps from prompts",
	Long:  "A terminal client for a PromptMap server. Generates, streams and refines markdown mind maps.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
	},
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "", "Server URL (default: $PROMPTMAP_SERVER or "+client.DefaultBaseURL+")")
	RootCmd.PersistentFlags().StringVarP(&token, "token", "t", "", "Bearer token (default: $PROMPTMAP_TOKEN)")
	RootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Per-generation timeout")
	RootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable coloured output")
}

func getServer() string {
	if serverURL != "" {
		return serverURL
	}
	if env := os.Getenv("PROMPTMAP_SERVER"); env != "" {
		return env
	}
	return client.DefaultBaseURL
}

func getToken() string {
	if token != "" {
		return token
	}
	return os.Getenv("PROMPTMAP_TOKEN")
}

func newClient() *client.Client {
	var opts []client.Option
	if t := getToken(); t != "" {
		opts = append(opts, client.WithToken(t))
	}
	return client.New(getServer(), opts...)
}

func exitErr(msg string, err error) {
	errorColor.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
