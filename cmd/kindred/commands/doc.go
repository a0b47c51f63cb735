// Package commands defines the kindred CLI and wires dependencies for subcommands.
//
// Commands
//
//   - init           Derive the local key pair and publish the public key
//   - fingerprint    Print the local public-key fingerprint
//   - send           Send a message on a match
//   - listen         Follow a conversation live
//
// # Implementation
//
// The root command loads configuration and builds a dependency graph
// (stores, feed, services) before any subcommand runs, so handlers share one
// app context with a pooled database connection.
package commands
