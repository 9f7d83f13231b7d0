package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"xwire/xutil"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "xwired",
		Short:         "Framed, checksummed message transport over tcp, kcp and websocket",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (.toml or .yaml)")

	rootCmd.AddCommand(
		serveCmd(),
		pingCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), xutil.VersionString())
		},
	}
}
