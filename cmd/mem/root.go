package mem

import (
	"github.com/ValentinKolb/memKV/cmd/util"
	"github.com/ValentinKolb/memKV/lib/store"
	"github.com/ValentinKolb/memKV/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcStore store.IStore

	// MemoryCommands represents the store command group
	MemoryCommands = &cobra.Command{
		Use:                "mem",
		Short:              "Perform store operations on a memkv server",
		PersistentPreRunE:  setupClient,
		PersistentPostRunE: closeClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common RPC flags to the mem command
	util.SetupRPCClientFlags(MemoryCommands)

	// Add subcommands
	MemoryCommands.AddCommand(storeCmd)
	MemoryCommands.AddCommand(retrieveCmd)
	MemoryCommands.AddCommand(persistCmd)
	MemoryCommands.AddCommand(clearCmd)
	MemoryCommands.AddCommand(statsCmd)
}

// setupClient initializes the RPC store client
func setupClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Get client configuration components
	config := util.GetClientConfig()

	// Get serializer and transport
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	// Create the store client
	rpcStore, err = client.NewRPCStore(
		*config,
		t,
		s,
	)

	return err
}

// closeClient releases the connections of the client
func closeClient(_ *cobra.Command, _ []string) error {
	if rpcStore == nil {
		return nil
	}
	return rpcStore.Destroy()
}
