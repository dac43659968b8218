// Package cmd implements the command-line interface for xtrl. It provides a
// hierarchical command structure with operations for running the reference
// display server and issuing requests against it as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Command for starting and configuring the reference server
//   - probe: Commands that send requests and print replies, events and errors,
//     plus a benchmark for round trips, pipelining and checked requests
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See xtrl -help for a list of all commands.
package cmd
