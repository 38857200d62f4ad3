// Package cliconfig loads spirebot configuration from defaults, a TOML
// file, SPIRE_* environment variables and command-line flags, in that
// order of precedence.
package cliconfig
