package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"voxcrawl/internal/catalog"
	"voxcrawl/internal/config"
	"voxcrawl/internal/pipeline"
	"voxcrawl/internal/scraper"
	"voxcrawl/internal/textutil"
)

func newCrawlCommand(cmdCtx *commandContext) *cobra.Command {
	var limit int
	var retryFailed bool
	var championsFile string

	cmd := &cobra.Command{
		Use:   "crawl [champion ...]",
		Short: "Crawl champion audio pages and build voice references",
		Long: "Crawl discovers champion audio pages, downloads the Original skin voice lines,\n" +
			"converts them to normalized WAV clips, and assembles reference and training\n" +
			"artifacts per champion. With no arguments every champion on the wiki category\n" +
			"page is processed; otherwise only the named champions are.",
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

			names := args
			if championsFile != "" {
				fromFile, err := readChampionsFile(championsFile)
				if err != nil {
					return err
				}
				names = append(names, fromFile...)
			}

			return runWithSignals(cmd.Context(), orch, logger, func(ctx context.Context) error {
				requests, err := resolveRequests(ctx, cmdCtx, cfg, client, names, limit, logger)
				if err != nil {
					return err
				}
				logger.Info("starting crawl", slog.Int("items", len(requests)))
				if err := orch.Run(ctx, requests); err != nil {
					return err
				}
				return printSummary(cmd.OutOrStdout(), store)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Process at most N champions (0 means all)")
	cmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "Re-attempt champions that previously failed")
	cmd.Flags().StringVar(&championsFile, "champions-file", "", "File listing champion names, one per line")
	return cmd
}

// readChampionsFile parses a newline-separated champion list. Blank lines
// and lines starting with '#' are ignored.
func readChampionsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read champions file: %w", err)
	}
	var names []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	return names, nil
}

// resolveRequests turns command arguments, or the scraped champion list
// when no arguments were given, into ordered pipeline work requests. The
// scraped list also refreshes the catalog cache when enabled.
func resolveRequests(ctx context.Context, cmdCtx *commandContext, cfg *config.Config, client *scraper.Client, args []string, limit int, logger *slog.Logger) ([]pipeline.WorkRequest, error) {
	var requests []pipeline.WorkRequest

	if len(args) > 0 {
		seen := make(map[string]bool, len(args))
		for _, name := range args {
			id := textutil.Slug(name)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			requests = append(requests, pipeline.WorkRequest{ID: id, Name: name})
		}
	} else {
		champions, err := client.ChampionList(ctx)
		if err != nil {
			return nil, err
		}
		logger.Info("champion list scraped", slog.Int("champions", len(champions)))

		if cat, err := cmdCtx.openCatalog(cfg); err != nil {
			logger.Warn("catalog cache unavailable", slog.String("error", err.Error()))
		} else if cat != nil {
			if err := cat.Replace(ctx, champions); err != nil {
				logger.Warn("catalog refresh failed", slog.String("error", err.Error()))
			}
			_ = cat.Close()
		}

		for _, champion := range champions {
			requests = append(requests, pipeline.WorkRequest{ID: champion.ID, Name: champion.Name})
		}
	}

	if limit > 0 && len(requests) > limit {
		requests = requests[:limit]
	}
	if len(requests) == 0 {
		return nil, fmt.Errorf("no champions to process")
	}
	return requests, nil
}

// lookupName resolves a champion's display name from the catalog cache,
// falling back to the identifier itself.
func lookupName(ctx context.Context, cat *catalog.Store, id string) string {
	if cat == nil {
		return id
	}
	champion, err := cat.Lookup(ctx, id)
	if err != nil || champion == nil {
		return id
	}
	return champion.Name
}
