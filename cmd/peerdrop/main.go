package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/avelinot/peerdrop/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "peerdrop",
	Short:   "Content-sharing gateway node",
	Long: `Peerdrop is a small gateway node: upload a file over HTTP and
receive a portable ticket any peer can redeem to fetch that exact
content from this node over QUIC.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFiles, _ := cmd.Flags().GetStringSlice("config")
		cfg, err := config.Load(configFiles, cmd.Flags())
		if err != nil {
			return err
		}
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		setupLogging(cfg.Log.Level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringSlice("config", nil, "config file paths (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("key-file", "", "identity key file path (default: secret/secret_key.bin, env: PEERDROP_IDENTITY_KEY_FILE)")
	rootCmd.PersistentFlags().String("storage-path", "", "blob storage directory (default: ./data, env: PEERDROP_STORAGE_PATH)")
	rootCmd.PersistentFlags().String("index-dsn", "", "blob index database path (default: blobs.db, env: PEERDROP_STORAGE_INDEX_DSN)")
	rootCmd.PersistentFlags().String("listen", "", "peer endpoint UDP listen address (default: 0.0.0.0:4433, env: PEERDROP_NODE_LISTEN_ADDR)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
