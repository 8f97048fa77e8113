package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/memKV/cmd/mem"
	"github.com/ValentinKolb/memKV/cmd/serve"
	"github.com/ValentinKolb/memKV/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "memkv",
		Short: "namespaced in-memory key-value store",
		Long: fmt.Sprintf(`memkv (v%s)

A namespaced in-memory key-value store with per-entry expiry,
background sweeping and JSON snapshot export and import.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of memkv",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("memkv v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(mem.MemoryCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport to use (http, tcp, unix). Metrics are only served by http"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
