package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"voxcrawl/internal/checkpoint"
	"voxcrawl/internal/config"
	"voxcrawl/internal/pipeline"
	"voxcrawl/internal/scraper"
)

func newResumeCommand(cmdCtx *commandContext) *cobra.Command {
	var retryFailed bool

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume an interrupted crawl from its checkpoints",
		Long: "Resume picks up the persisted session: the item left in flight continues\n" +
			"from its current stage, then remaining pending champions are processed in\n" +
			"order. Completed champions are skipped; failed ones only run with\n" +
			"--retry-failed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			if retryFailed {
				cfg.Workflow.RetryFailed = true
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

			client := scraper.NewClient(cfg)
			orch := cmdCtx.buildPipeline(cfg, store, client, logger)

			return runWithSignals(cmd.Context(), orch, logger, func(ctx context.Context) error {
				requests, err := resumeRequests(ctx, cmdCtx, cfg, store, cfg.Workflow.RetryFailed)
				if err != nil {
					return err
				}
				progress, err := store.LoadOrCreateSession()
				if err != nil {
					return err
				}
				if len(requests) == 0 && progress.InProgress == "" {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing to resume")
					return printSummary(cmd.OutOrStdout(), store)
				}
				logger.Info("resuming session", slog.Int("items", len(requests)))
				if err := orch.Run(ctx, requests); err != nil {
					return err
				}
				return printSummary(cmd.OutOrStdout(), store)
			})
		},
	}

	cmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "Also re-attempt champions that previously failed")
	return cmd
}

// resumeRequests rebuilds the work list from persisted state: pending items
// first, then failed ones when retries are requested. Display names come
// from the item checkpoints, falling back to the catalog cache.
func resumeRequests(ctx context.Context, cmdCtx *commandContext, cfg *config.Config, store *checkpoint.Store, includeFailed bool) ([]pipeline.WorkRequest, error) {
	progress, err := store.LoadOrCreateSession()
	if err != nil {
		return nil, err
	}

	ids, err := store.PendingItems()
	if err != nil {
		return nil, err
	}
	if includeFailed {
		ids = append(ids, progress.FailedItems...)
	}

	cat, err := cmdCtx.openCatalog(cfg)
	if err != nil {
		cat = nil
	}
	if cat != nil {
		defer cat.Close()
	}

	requests := make([]pipeline.WorkRequest, 0, len(ids))
	for _, id := range ids {
		name := id
		if item, err := store.LoadItem(id); err == nil && item != nil && item.Name != "" {
			name = item.Name
		} else {
			name = lookupName(ctx, cat, id)
		}
		requests = append(requests, pipeline.WorkRequest{ID: id, Name: name})
	}
	return requests, nil
}
