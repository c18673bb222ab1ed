package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version 由 -ldflags "-X main.version=..." 注入
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "youcom-proxy",
		Short: "OpenAI-compatible proxy for the You.com agent API",
		Long:  "Accepts OpenAI-style chat completion requests, forwards them to the You.com agent API and returns OpenAI-shaped chat.completion responses.",
		// 不带子命令时等同于 serve
		RunE:          runServe,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "Path to YAML config file")
	root.PersistentFlags().String("env-file", ".env", "Path to .env file, missing file is ignored")
	addServeFlags(root)

	root.AddCommand(newServeCmd())
	root.AddCommand(newMockUpstreamCmd())
	root.AddCommand(newVersionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
