// Package app wires application dependencies for the CLI.
//
// It loads Config via viper and builds the concrete stores, clients and
// high-level services from it, exposing them via the Wire struct for
// commands to use.
package app
