package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/memKV/lib/snapshot"
	"github.com/ValentinKolb/memKV/lib/store/lstore"
)

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters of a memkv server.
type ServerConfig struct {
	// HTTP api settings
	Endpoint      string
	TimeoutSecond int64

	// Store settings
	SweepIntervalSecond int64
	ExportDir           string
	Compression         string
	ExportedBy          string

	// Logging configuration
	LogLevel string
}

// StoreOptions converts the store settings into options for the local store
func (c *ServerConfig) StoreOptions() (*lstore.Options, error) {
	algo, err := snapshot.ParseAlgorithm(c.Compression)
	if err != nil {
		return nil, err
	}

	opts := lstore.DefaultOptions()
	if c.SweepIntervalSecond > 0 {
		opts.SweepInterval = time.Duration(c.SweepIntervalSecond) * time.Second
	}
	opts.ExportDir = c.ExportDir
	opts.Compression = algo
	if c.ExportedBy != "" {
		opts.ExportedBy = c.ExportedBy
	}
	return opts, nil
}

// Timeout returns the request timeout of the server
func (c *ServerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	orDefault := func(value, fallback string) string {
		if value == "" {
			return fallback
		}
		return value
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	// Store settings
	addSection("Store")
	addField("Sweep Interval", fmt.Sprintf("%d sec", c.SweepIntervalSecond))
	addField("Export Directory", orDefault(c.ExportDir, "(working directory)"))
	addField("Compression", orDefault(c.Compression, string(snapshot.DefaultAlgorithm)))
	addField("Exported By", orDefault(c.ExportedBy, snapshot.DefaultExportedBy))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Endpoints     []string
	TimeoutSecond int
	RetryCount    int
}

// Attempts returns how often a request is sent before giving up (at least once)
func (c *ClientConfig) Attempts() int {
	return int(math.Max(1, float64(c.RetryCount+1)))
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.RetryCount))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
