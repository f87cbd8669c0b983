package main

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/config"
)

// fileConfig is the optional on-disk default for host/port, so an
// operator managing several nodes doesn't have to retype --host every
// time; --host/--port on the command line always win over it.
type fileConfig struct {
	Host string `yaml:"host"`
	Port uint16 `yaml:"port"`
}

func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	if path == "" {
		return fc, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fc, nil
		}
		return fc, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fc, errors.Wrapf(err, "parse config %s", path)
	}
	return fc, nil
}

func main() {
	var host string
	var port uint16
	var configPath string
	var command string

	root := &cobra.Command{
		Use:           "magmactl",
		Short:         "connect to a volcano node's operator console",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := loadFileConfig(configPath)
			if err != nil {
				return err
			}
			if host == "" {
				host = fc.Host
			}
			if host == "" {
				host = "127.0.0.1"
			}
			if port == 0 {
				port = fc.Port
			}
			if port == 0 {
				port = config.ConsolePort
			}

			addr := net.JoinHostPort(host, strconv.Itoa(int(port)))
			conn, err := net.Dial("tcp", addr)
			if err != nil {
				return errors.Wrapf(err, "dial %s", addr)
			}
			defer conn.Close()

			if command != "" {
				return runOneShot(conn, command)
			}
			return runInteractive(conn)
		},
	}

	root.Flags().StringVar(&host, "host", getenv("MAGMACTL_HOST", ""), "console host to connect to")
	root.Flags().Uint16Var(&port, "port", getenvUint16("MAGMACTL_PORT", 0), "console port to connect to")
	root.Flags().StringVar(&configPath, "config", getenv("MAGMACTL_CONFIG", ""), "optional YAML file with default host/port")
	root.Flags().StringVarP(&command, "command", "c", "", "run a single console command and exit, instead of an interactive session")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runOneShot sends command, reads everything the console writes back
// until it closes the connection (the console has no message framing
// beyond the newline-terminated prompt, so a one-shot client simply
// reads to EOF), and copies it to stdout.
func runOneShot(conn net.Conn, command string) error {
	if _, err := fmt.Fprintln(conn, command); err != nil {
		return errors.Wrap(err, "send command")
	}
	if _, err := fmt.Fprintln(conn, "exit"); err != nil {
		return errors.Wrap(err, "send exit")
	}
	if _, err := io.Copy(os.Stdout, conn); err != nil {
		return errors.Wrap(err, "read reply")
	}
	return nil
}

// runInteractive pipes the connection to stdout and stdin to the
// connection concurrently, so the console's banner/prompt/reply stream
// appears live while the operator types commands.
func runInteractive(conn net.Conn) error {
	done := make(chan struct{})
	go func() {
		io.Copy(os.Stdout, conn)
		close(done)
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if _, err := fmt.Fprintln(conn, scanner.Text()); err != nil {
			return errors.Wrap(err, "send command")
		}
	}
	<-done
	return nil
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getenvUint16(key string, def uint16) uint16 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 16)
	if err != nil {
		return def
	}
	return uint16(n)
}
