package serve

import (
	"github.com/ValentinKolb/memKV/cmd/util"
	"github.com/ValentinKolb/memKV/lib/snapshot"
	"github.com/ValentinKolb/memKV/rpc/common"
	"github.com/ValentinKolb/memKV/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the memkv server",
		Long:    `Start the memkv server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is MEMKV_<flag> (e.g. MEMKV_SWEEP_INTERVAL=60)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", util.WrapString("The address on which the API will listen (e.g. localhost:8080, /tmp/memkv.sock for the unix transport)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 30, util.WrapString("Timeout in seconds for reading a request, writing a response and running a persist operation (0 disables the timeout)"))

	key = "sweep-interval"
	ServeCmd.PersistentFlags().Int64(key, 60, util.WrapString("Interval in seconds between two background sweeps removing expired entries"))

	key = "export-dir"
	ServeCmd.PersistentFlags().String(key, ".", util.WrapString("Root directory of all export and import files; persist paths outside of it are rejected"))

	key = "compression"
	ServeCmd.PersistentFlags().String(key, string(snapshot.DefaultAlgorithm), util.WrapString("Algorithm used for compressed exports (gzip, zstd)"))

	key = "exported-by"
	ServeCmd.PersistentFlags().String(key, snapshot.DefaultExportedBy, util.WrapString("Label written to the exportedBy field of exported documents"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.SweepIntervalSecond = viper.GetInt64("sweep-interval")
	serveCmdConfig.ExportDir = viper.GetString("export-dir")
	serveCmdConfig.Compression = viper.GetString("compression")
	serveCmdConfig.ExportedBy = viper.GetString("exported-by")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	// validate early, before the server is started
	if _, err := serveCmdConfig.StoreOptions(); err != nil {
		return err
	}
	_, err := common.ParseLogLevel(serveCmdConfig.LogLevel)
	return err
}

// run starts the memkv server
func run(_ *cobra.Command, _ []string) error {
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetServerTransport()
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
	)

	return serv.Serve()
}
