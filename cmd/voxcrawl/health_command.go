package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"voxcrawl/internal/deps"
	"voxcrawl/internal/scraper"
)

func newHealthCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check external binaries and stage readiness",
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

			statuses := deps.CheckBinaries(deps.Defaults(cfg))
			rows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				state := "ok"
				if !status.Available {
					state = "missing"
					if status.Detail != "" {
						state = status.Detail
					}
				}
				rows = append(rows, []string{status.Name, status.Command, state})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Dependency", "Command", "Status"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))

			client := scraper.NewClient(cfg)
			orch := cmdCtx.buildPipeline(cfg, store, client, logger)
			stageRows := make([][]string, 0, 4)
			for _, health := range orch.HealthCheck(cmd.Context()) {
				state := "ready"
				if !health.Ready {
					state = health.Detail
				}
				stageRows = append(stageRows, []string{health.Name, state})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Stage", "Status"},
				stageRows,
				[]columnAlignment{alignLeft, alignLeft},
			))

			if missing := deps.MissingRequired(statuses); len(missing) > 0 {
				return fmt.Errorf("missing required dependencies: %v", missing)
			}
			return nil
		},
	}
}
