package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "supportbot",
		Short:         "Customer support chat backend with FAQ retrieval and LLM fallback",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ./config.yaml or ~/.config/supportbot/config.yaml if not provided)")

	root.AddCommand(
		newServeCmd(&cfgPath),
		newChatCmd(&cfgPath),
		newAskCmd(&cfgPath),
	)
	return root
}
