package cmd

import (
	"fmt"
	"github.com/ValentinKolb/xtrl/cmd/probe"
	"github.com/ValentinKolb/xtrl/cmd/serve"
	"github.com/ValentinKolb/xtrl/cmd/util"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "xtrl",
		Short: "display protocol request/reply toolkit",
		Long: fmt.Sprintf(`xtrl (v%s)

A client library for a display protocol written in Go. Requests are pipelined
and correlated with their replies and errors through cookies. Includes an
in-memory reference server to run clients against.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of xtrl",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("xtrl v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(probe.ProbeCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use for frames (binary, json, gob), client and server must agree"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "unix", util.WrapString("transport to use (tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
