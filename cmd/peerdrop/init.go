package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/avelinot/peerdrop/config"
	"github.com/avelinot/peerdrop/identity"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the node identity and a config scaffold",
	Long: `Generate the node's identity key if it does not exist yet and write
a config.yaml scaffold with the effective configuration. Safe to run
repeatedly: an existing key or config file is never overwritten.`,
	RunE: runInit,
}

var initConfigPath string

func init() {
	initCmd.Flags().StringVar(&initConfigPath, "config-out", "config.yaml", "path for the generated config file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	secret, err := identity.LoadOrCreate(cfg.Identity.KeyFile)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}
	slog.Info("identity ready", "node_id", secret.Public().String(), "key_file", cfg.Identity.KeyFile)

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("render config: %w", err)
	}

	f, err := os.OpenFile(initConfigPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			slog.Info("config file exists, leaving as-is", "path", initConfigPath)
			return nil
		}
		return fmt.Errorf("create config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	slog.Info("config scaffold written", "path", initConfigPath)
	return nil
}
