package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResetCommand(cmdCtx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Discard all checkpoints and start a fresh session",
		Long: "Reset deletes every champion checkpoint and the session progress record.\n" +
			"Downloaded and converted audio under the work directory is left in place;\n" +
			"the next crawl re-verifies it by checksum instead of re-downloading.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("reset discards all crawl state; pass --force to confirm")
			}
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := cmdCtx.newLogger(cfg)
			if err != nil {
				return err
			}
			store, err := cmdCtx.openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Reset(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Crawl state cleared from %s\n", cfg.Paths.StateDir)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Confirm discarding all crawl state")
	return cmd
}
