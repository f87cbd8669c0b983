// Package config parses the CLI/environment surface of cmd/volcano:
// flags bound with github.com/spf13/pflag through a single
// github.com/spf13/cobra root command, each additionally resolvable
// from an environment variable in the teacher's getenv/mustGetenv
// style. Required: --hashpath, --nickname, --secretkey. Optional:
// --bootstrap xor --bootserver, --ip, --port, --fqdn, --bandwidth,
// --storage, --debug.
package config
