// Package cmd provides the command-line interface for udptherbone.
package cmd

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/awygle/udptherbone/config"
	"github.com/awygle/udptherbone/observability"
)

const appName = "udptherbone"

type app struct {
	configPath string
	envFiles   []string
	logLevel   string

	cfg    config.Config
	logger zerolog.Logger
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath, a.envFiles...)
	if err != nil {
		return err
	}

	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}

	logger, err := observability.InitLogger(appName, cfg.LogLevel)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger

	return nil
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   appName,
		Short: "Bridge Etherbone over UDP over SLIP to a Wishbone bus.",
		Long: `udptherbone moves Etherbone requests, carried in UDP datagrams ` +
			`over a SLIP serial link, onto a Wishbone bus and sends the ` +
			`responses back. It can serve a serial port or simulate both ` +
			`ends of the link in one process.`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.load()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "TOML configuration file")
	flags.StringSliceVar(&a.envFiles, "env-file", nil,
		"environment files to load instead of .env")
	flags.StringVar(&a.logLevel, "log-level", "",
		"log level, overriding the configuration")

	root.AddCommand(
		newServeCmd(a),
		newSimulateCmd(a),
		newEncodeCmd(a),
		newDecodeCmd(a),
	)

	return root
}

// Execute runs the command line and exits through atexit on failure.
func Execute() {
	err := newRootCmd().Execute()
	if err != nil {
		atexit.Exit(1)
	}
}
