package mem

import (
	"context"

	"github.com/ValentinKolb/memKV/cmd/util"
	"github.com/ValentinKolb/memKV/lib/store"
	"github.com/ValentinKolb/memKV/lib/table"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	storeCmd = &cobra.Command{
		Use:   "store [key] [value]",
		Short: "Stores a value under a key",
		Long: `Stores a value under a key. The value is parsed as JSON if possible
(e.g. 42, true, {"a":1}), otherwise it is stored as a string.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			namespace, _ := cmd.Flags().GetString("namespace")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			rawMetadata, _ := cmd.Flags().GetString("metadata")

			opts := store.StoreOptions{Namespace: namespace, TTL: ttl}
			if rawMetadata != "" {
				v, err := table.DecodeValue([]byte(rawMetadata))
				metadata, ok := v.(map[string]any)
				if err != nil || !ok {
					return errors.Errorf("metadata must be a JSON object: %s", rawMetadata)
				}
				opts.Metadata = metadata
			}

			res := rpcStore.Store(args[0], parseValue(args[1]), opts)
			return report(cmd, res, res.Result)
		},
	}
	retrieveCmd = &cobra.Command{
		Use:   "retrieve [key]",
		Short: "Retrieves the value of a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			namespace, _ := cmd.Flags().GetString("namespace")
			res := rpcStore.Retrieve(args[0], namespace)
			return report(cmd, res, res.Result)
		},
	}
	persistCmd = &cobra.Command{
		Use:   "persist [export|import]",
		Short: "Exports entries to or imports entries from a JSON document",
		Long: `Exports entries to or imports entries from a JSON document on the server.
File paths are resolved below the server's export directory; paths leaving it
are rejected. Without a file the export is written to <export-dir>/memory-export.json.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(store.ActionExport), string(store.ActionImport)},
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			namespace, _ := cmd.Flags().GetString("namespace")
			compress, _ := cmd.Flags().GetBool("compress")
			format, _ := cmd.Flags().GetString("format")

			res := rpcStore.Persist(context.Background(), store.PersistRequest{
				Action:      store.PersistAction(args[0]),
				FilePath:    file,
				Namespace:   namespace,
				Compression: compress,
				Format:      format,
			})
			return report(cmd, res, res.Result)
		},
	}
	clearCmd = &cobra.Command{
		Use:   "clear [namespace]",
		Short: "Removes all entries of a namespace",
		Long: `Removes all entries of exactly one namespace. There is no wildcard: "all" is an
ordinary namespace name and clearing it leaves every other namespace untouched.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := rpcStore.Clear(args[0])
			return report(cmd, res, res.Result)
		},
	}
	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Prints usage statistics of the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res := rpcStore.Stats()
			return report(cmd, res, res.Result)
		},
	}
)

func init() {
	storeCmd.Flags().String("namespace", "", util.WrapString("Namespace of the entry (default namespace if empty)"))
	storeCmd.Flags().Duration("ttl", 0, util.WrapString("Time to live of the entry, e.g. 30s or 1h (0 never expires)"))
	storeCmd.Flags().String("metadata", "", util.WrapString("Metadata of the entry as JSON object"))

	retrieveCmd.Flags().String("namespace", "", util.WrapString("Namespace of the entry (default namespace if empty)"))

	persistCmd.Flags().String("file", "", util.WrapString("Path of the document relative to the server's export directory (required for import)"))
	persistCmd.Flags().String("namespace", "", util.WrapString("Only export entries of this namespace (all if empty)"))
	persistCmd.Flags().Bool("compress", false, util.WrapString("Compress the exported document with the configured algorithm"))
	persistCmd.Flags().String("format", "json", util.WrapString("Document format (only json is supported)"))
}

// parseValue decodes raw as JSON, falling back to the plain string.
// Integral numbers are kept exact.
func parseValue(raw string) any {
	v, err := table.DecodeValue([]byte(raw))
	if err != nil {
		return raw
	}
	return v
}

// report prints the result and turns a failure into a command error
func report(cmd *cobra.Command, res any, base store.Result) error {
	if err := util.PrintJSON(cmd, res); err != nil {
		return err
	}
	return base.Err()
}
