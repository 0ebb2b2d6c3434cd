package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRetryCommand(cmdCtx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry <champion-id> [champion-id ...]",
		Short: "Reopen failed champions for another attempt",
		Long: "Retry moves the named failed champions back to pending and clears their\n" +
			"recorded errors. Files already downloaded keep their verified state, so\n" +
			"the next crawl or resume only redoes the work that failed.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			out := cmd.OutOrStdout()
			var firstErr error
			for _, id := range args {
				if _, err := store.RetryItem(id); err != nil {
					fmt.Fprintf(out, "%s: %v\n", id, err)
					if firstErr == nil {
						firstErr = err
					}
					continue
				}
				fmt.Fprintf(out, "%s: reopened for retry\n", id)
			}
			return firstErr
		},
	}
	return cmd
}
