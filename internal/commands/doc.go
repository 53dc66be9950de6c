// Package commands implements the notifyd subcommands. Each command is a
// struct created with NewXCmd and attached to the root command with
// Register.
package commands
