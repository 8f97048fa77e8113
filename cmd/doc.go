// Package cmd implements the command-line interface of memkv. It provides a
// hierarchical command structure with operations for running the server and
// interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - mem: Client commands for the store operations (store, retrieve, persist, clear, stats)
//   - serve: Command for starting and configuring the memkv server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See memkv -help for a list of all commands.
package cmd
