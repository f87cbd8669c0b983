package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Default ports (flare and node are UDP, console is TCP), per
// net_layer.h's MAGMA_PORTS enum: the
// client-protocol port is configurable per node (myself.port, falling
// back to MAGMA_PORT), while the inter-node and console ports are
// fixed across the whole ring.
const (
	DefaultFlarePort uint16 = 12000
	NodePort         uint16 = 12001
	ConsolePort      uint16 = 12002
)

// Config is the fully resolved startup configuration for a volcano.
type Config struct {
	Hashpath   string
	Nickname   string
	SecretKey  string
	Bootstrap  bool
	BootServer string
	IP         string
	Port       uint16
	FQDN       string
	Bandwidth  uint32
	Storage    uint32

	// Debug is the set of debug channel names enabled at startup
	// (--debug a,b,c), toggled further at runtime via the console's
	// "debug on/off" commands.
	Debug []string
}

// Parse builds a Config from args (typically os.Args[1:]), resolving
// each flag from the command line first and an environment variable
// second, mirroring the teacher's getenv/mustGetenv pattern: the
// environment value is the flag's default, so an explicit flag always
// overrides it. It returns an error rather than exiting,
// so callers control process termination.
func Parse(args []string) (*Config, error) {
	cfg := &Config{}
	var debugRaw string

	cmd := &cobra.Command{
		Use:           "volcano",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          func(*cobra.Command, []string) error { return nil },
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.Hashpath, "hashpath", getenv("MAGMA_HASHPATH", ""), "path to this node's on-disk blob store")
	flags.StringVar(&cfg.Nickname, "nickname", getenv("MAGMA_NICKNAME", ""), "unique short name for this node within the ring")
	flags.StringVar(&cfg.SecretKey, "secretkey", getenv("MAGMA_SECRETKEY", ""), "shared secret compared by equality to authorize joins")
	flags.BoolVar(&cfg.Bootstrap, "bootstrap", getenvBool("MAGMA_BOOTSTRAP", false), "create a new ring owning the whole key space")
	flags.StringVar(&cfg.BootServer, "bootserver", getenv("MAGMA_BOOTSERVER", ""), "host:port of an existing node to join through")
	flags.StringVar(&cfg.IP, "ip", getenv("MAGMA_IP", "127.0.0.1"), "IPv4 address peers use to reach this node")
	flags.Uint16Var(&cfg.Port, "port", getenvUint16("MAGMA_PORT", DefaultFlarePort), "client-protocol (flare) UDP port")
	flags.StringVar(&cfg.FQDN, "fqdn", getenv("MAGMA_FQDN", ""), "fully qualified hostname of this node")
	flags.Uint32Var(&cfg.Bandwidth, "bandwidth", getenvUint32("MAGMA_BANDWIDTH", 100), "declared bandwidth class, used by the balancer's load metric")
	flags.Uint32Var(&cfg.Storage, "storage", getenvUint32("MAGMA_STORAGE", 0), "declared storage capacity in bytes; 0 measures it from hashpath at startup")
	flags.StringVar(&debugRaw, "debug", getenv("MAGMA_DEBUG", ""), "comma-separated debug channel mask enabled at startup")

	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		return nil, errors.Wrap(err, "parse flags")
	}

	if debugRaw != "" {
		cfg.Debug = strings.Split(debugRaw, ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the required-flag and mutual-exclusion rules spec.md
// §6's CLI/environment section lays out.
func (c *Config) Validate() error {
	var missing []string
	if c.Hashpath == "" {
		missing = append(missing, "--hashpath/MAGMA_HASHPATH")
	}
	if c.Nickname == "" {
		missing = append(missing, "--nickname/MAGMA_NICKNAME")
	}
	if c.SecretKey == "" {
		missing = append(missing, "--secretkey/MAGMA_SECRETKEY")
	}
	if len(missing) > 0 {
		return errors.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.Bootstrap && c.BootServer != "" {
		return errors.New("--bootstrap and --bootserver are mutually exclusive")
	}
	if !c.Bootstrap && c.BootServer == "" {
		return errors.New("one of --bootstrap or --bootserver is required")
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvUint16(key string, def uint16) uint16 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 16)
	if err != nil {
		return def
	}
	return uint16(n)
}

func getenvUint32(key string, def uint32) uint32 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return def
	}
	return uint32(n)
}
