package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"voxcrawl/internal/scraper"
)

func newCatalogCommand(cmdCtx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and refresh the champion catalog cache",
	}

	catalogCmd.AddCommand(newCatalogRefreshCommand(cmdCtx))
	catalogCmd.AddCommand(newCatalogListCommand(cmdCtx))
	return catalogCmd
}

func newCatalogRefreshCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Scrape the champion list and rebuild the catalog cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			cat, err := cmdCtx.openCatalog(cfg)
			if err != nil {
				return err
			}
			if cat == nil {
				return fmt.Errorf("catalog cache is disabled in configuration")
			}
			defer cat.Close()

			client := scraper.NewClient(cfg)
			champions, err := client.ChampionList(cmd.Context())
			if err != nil {
				return err
			}
			if err := cat.Replace(cmd.Context(), champions); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Catalog refreshed with %d champions\n", len(champions))
			return nil
		},
	}
}

func newCatalogListCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached champions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			cat, err := cmdCtx.openCatalog(cfg)
			if err != nil {
				return err
			}
			if cat == nil {
				return fmt.Errorf("catalog cache is disabled in configuration")
			}
			defer cat.Close()

			champions, err := cat.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(champions) == 0 {
				fmt.Fprintln(out, "Catalog is empty; run `voxcrawl catalog refresh`")
				return nil
			}

			rows := make([][]string, 0, len(champions))
			for _, champion := range champions {
				rows = append(rows, []string{champion.ID, champion.Name, champion.AudioURL})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Champion", "Audio page"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}
