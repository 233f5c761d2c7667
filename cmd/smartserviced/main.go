package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hasd52636-a11y/smartservice-sub001/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "smartserviced",
		Short: "Smartservice daemon",
		Long:  "Smartservice daemon for running the customer support chat API server",
	}

	rootCmd.AddCommand(cli.ServeCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
