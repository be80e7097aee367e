package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/avelinot/peerdrop"
	"github.com/avelinot/peerdrop/client"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <ticket>",
	Short: "Fetch a blob from a peer using a ticket",
	Long: `Redeem a ticket against the node that issued it: dial the node over
QUIC, download the blob, verify it against the ticket's content hash,
and write it to a file.

Examples:
  # Fetch into a file named after the content hash
  peerdrop fetch pdt1...

  # Fetch to a specific path
  peerdrop fetch -o photo.jpg pdt1...

  # Stream to stdout
  peerdrop fetch -o - pdt1...`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

var (
	fetchOutput  string
	fetchTimeout time.Duration
)

func init() {
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "output path ('-' for stdout, default: content hash)")
	fetchCmd.Flags().DurationVar(&fetchTimeout, "timeout", time.Minute, "overall fetch timeout")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	t, err := peerdrop.ParseTicket(args[0])
	if err != nil {
		return fmt.Errorf("parse ticket: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), fetchTimeout)
	defer cancel()

	if fetchOutput == "-" {
		_, err = client.Fetch(ctx, t, os.Stdout)
		return err
	}

	path := fetchOutput
	if path == "" {
		path = t.Hash
	}

	f, err := os.Create(path) //nolint:gosec // Path is caller-chosen output
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}

	n, fetchErr := client.Fetch(ctx, t, f)
	closeErr := f.Close()

	if fetchErr != nil {
		_ = os.Remove(path)
		return fetchErr
	}
	if closeErr != nil {
		return fmt.Errorf("close output file: %w", closeErr)
	}

	slog.Info("fetched blob", "hash", t.Hash, "bytes", n, "output", path)
	return nil
}
