// Command magmactl is a thin TCP client for the operator console
// internal/console.Server exposes: it dials the console port and pipes
// stdin to the connection and the connection to stdout line by line,
// the same shape a plain `nc host port` session would have. Connection
// defaults can also come from a small YAML config file, since the
// teacher has no CLI client of its own to pattern this on beyond its
// getenv/flag precedence.
package main
