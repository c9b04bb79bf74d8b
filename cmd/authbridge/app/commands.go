// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the authbridge command-line application.
package app

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/mcp-authbridge/pkg/bridge"
	"github.com/stacklok/mcp-authbridge/pkg/config"
	"github.com/stacklok/mcp-authbridge/pkg/logger"
)

// flagKeys binds persistent flags to configuration keys.
var flagKeys = map[string]string{
	"config":       "config",
	"debug":        "debug",
	"address":      "address",
	"base-url":     "base_url",
	"disable-auth": "disable_auth",
}

// NewRootCmd creates the root command bound to the global viper instance.
func NewRootCmd() *cobra.Command {
	return newRootCmd(viper.GetViper())
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	var envFiles []string

	rootCmd := &cobra.Command{
		Use:               "authbridge",
		DisableAutoGenTag: true,
		Short:             "OAuth 2.1 authorization bridge for MCP servers",
		Long: `authbridge puts an MCP server behind OAuth 2.1.

It proxies authorization to Google, registers clients through Dynamic Client
Registration or Client ID Metadata Documents, introspects the tokens it hands
out and accepts API keys verified by an identity API. Authenticated MCP
sessions are bound to the caller's email and stored in redis.

Running authbridge without a subcommand is the same as "authbridge serve".`,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(envFiles...); err != nil {
				return err
			}
			logger.Initialize()
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, v)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "Path to a YAML configuration file")
	flags.Bool("debug", false, "Enable debug logging")
	flags.String("address", config.DefaultAddress, "Address to listen on")
	flags.String("base-url", "", "Public base URL of the bridge, used as the OAuth issuer")
	flags.Bool("disable-auth", false, "Serve the MCP endpoint without authentication (development only)")
	flags.StringSliceVar(&envFiles, "env-file", nil, "Load environment variables from these files (default .env)")

	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			logger.Errorw("Error binding flag", "flag", flag, "error", err)
		}
	}

	rootCmd.AddCommand(newServeCmd(v))
	rootCmd.AddCommand(newMigrateCmd(v))
	rootCmd.AddCommand(newConfigCmd(v))
	rootCmd.AddCommand(newVersionCmd())

	// Silence printing the usage on error
	rootCmd.SilenceUsage = true

	return rootCmd
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the auth bridge",
		Long: `Start the auth bridge HTTP server.

The server exposes the OAuth authorization server endpoints, the RFC 8414 and
RFC 9728 metadata documents, /healthz, /metrics and the protected MCP endpoint.
It stops gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, v)
		},
	}
}

func runServe(cmd *cobra.Command, v *viper.Viper) error {
	ctx := cmd.Context()

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	logger.Debugw("configuration loaded", "config", cfg.Redacted())

	b, err := bridge.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to start auth bridge: %w", err)
	}
	return b.Run(ctx)
}

func newMigrateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending store migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}

			store, err := bridge.OpenStore(cmd.Context(), cfg.Store)
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					logger.Warnw("failed to close store", "error", err)
				}
			}()

			version, err := store.SchemaVersion(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read schema version: %w", err)
			}

			logger.Infow("store is up to date", "type", cfg.Store.Type, "version", version)
			fmt.Fprintf(cmd.OutOrStdout(), "%s store migrated to version %d\n", cfg.Store.Type, version)
			return nil
		},
	}
}
