package main

import (
	"fmt"
	"os"

	_ "simple_calculator/docs"

	"github.com/spf13/cobra"
)

// @title           Simple Calculator API
// @version         1.0
// @description     Four-function calculator sessions per user, over REST and WebSocket.
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "simple_calculator",
		Short:         "Calculator engine served over HTTP and WebSocket",
		SilenceUsage:  true,
		SilenceErrors: true,
		// serve is the default command
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default configs/config.yml)")

	root.AddCommand(newServeCmd(&configPath), newPressCmd())
	return root
}
