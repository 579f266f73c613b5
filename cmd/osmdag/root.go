package main

import (
	"encoding/json"
	"log/slog"
	"os"

	"github.com/nasdf/osmdag"
	"github.com/nasdf/osmdag/config"
	"github.com/nasdf/osmdag/core"

	"github.com/spf13/cobra"
)

var (
	configPath string
	backend    string
	dataPath   string
	logLevel   string

	cfg    config.Config
	logger *slog.Logger
	db     *core.DB
)

var rootCmd = &cobra.Command{
	Use:   "osmdag",
	Short: "Versioned map document store",
	Long: `osmdag stores OpenStreetMap style nodes, ways, and relations in a
content addressed log and answers bounding box queries over them.

Document values are read and written as JSON.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("backend") {
			cfg.Backend = backend
		}
		if cmd.Flags().Changed("path") {
			cfg.Path = dataPath
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		logger, err = osmdag.NewLogger(os.Stderr, cfg)
		if err != nil {
			return err
		}
		db, err = osmdag.Open(cmd.Context(), cfg, logger)
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if db == nil {
			return nil
		}
		return db.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a yaml config file")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "storage backend (pebble, badger, memory)")
	rootCmd.PersistentFlags().StringVarP(&dataPath, "path", "p", "", "path to the database directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

// printJSON writes v to stdout as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
