// Command volcano runs one MAGMA storage node: it parses the
// configuration described in internal/config, brings up local storage
// (catalog + flare store), joins or bootstraps the ring, and serves the
// client-protocol, inter-node and console sockets until a shutdown
// signal arrives. The overall shape — background listeners started in
// goroutines, a signal-cancelled context, deferred teardown of each
// component with no shutdown timeout — is adapted from cmd/node/main.go's
// main().
package main
