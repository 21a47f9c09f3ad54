package cli

import (
	"fmt"

	"github.com/harun/relaycat/internal/config"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

// NewRootCmd builds the relaycat command with fresh flag state
func NewRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "relaycat [flags] <relay-url>...",
		Short: "relaycat - send requests to many relays and merge their replies",
		Long: `relaycat reads request lines from stdin, sends them to every relay given on
the command line and prints what the relays send back, one message per line.

Without --stream each relay is closed after its first OK, NOTICE, EOSE or COUNT
reply, or after --connect-timeout passes without a message. Failures are
reported on stderr and never stop the other relays.`,
		Example: `  echo '["REQ","sub",{"kinds":[1],"limit":5}]' | relaycat wss://relay.one wss://relay.two
  relaycat --stream --unique wss://relay.one wss://relay.two < requests.jsonl`,
		Version: version,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Argument errors above print usage; runtime errors below do not.
			cmd.SilenceUsage = true
			return run(cmd, cfgFile, args)
		},
	}

	flags := cmd.Flags()
	flags.BoolP("stream", "s", false, "keep listening after terminal replies and disable read timeouts")
	flags.BoolP("unique", "u", false, "print each distinct message only once across all relays")
	flags.Int("connect-timeout", config.DefaultConnectTimeoutMS, fmt.Sprintf("handshake and read timeout in milliseconds (%d-%d)", config.MinConnectTimeoutMS, config.MaxConnectTimeoutMS))
	flags.Bool("show-eose", false, "print EOSE replies instead of omitting them")
	flags.Bool("validate-input", false, "reject stdin lines that are not client messages before connecting")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address (host:port)")

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.relaycat/relaycat.json)")
	cmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-file", "", "append logs to this file")

	// Version template
	cmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)

	return cmd
}

// Execute builds and runs the root command. This is called by main.main().
func Execute() error {
	return NewRootCmd().Execute()
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}
