package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"voxcrawl/internal/checkpoint"
	"voxcrawl/internal/config"
	"voxcrawl/internal/logging"
	"voxcrawl/internal/services"
	"voxcrawl/internal/stage"
)

// URLResolver maps a work item to its audio page location. The pipeline
// wires a catalog-backed resolver; the zero behavior constructs the URL from
// the champion name.
type URLResolver func(ctx context.Context, item *checkpoint.WorkItem) (string, error)

// Handler is the discovery stage: it scrapes a champion's audio page and
// populates the work item's sub-item list, all-or-nothing.
type Handler struct {
	store     *checkpoint.Store
	client    *Client
	extractor Extractor
	resolve   URLResolver
	logger    *slog.Logger
}

// NewHandler constructs the discovery stage handler with the default
// page-scan extractor.
func NewHandler(cfg *config.Config, store *checkpoint.Store, client *Client, logger *slog.Logger) *Handler {
	h := &Handler{
		store:     store,
		client:    client,
		extractor: PageScanExtractor{BaseURL: cfg.Source.BaseURL},
		logger:    logging.NewComponentLogger(logger, "scraper"),
	}
	h.resolve = func(_ context.Context, item *checkpoint.WorkItem) (string, error) {
		return client.AudioPageURL(item.Name), nil
	}
	return h
}

// WithExtractor swaps the extraction heuristic.
func (h *Handler) WithExtractor(extractor Extractor) *Handler {
	h.extractor = extractor
	return h
}

// WithURLResolver swaps the audio page resolver.
func (h *Handler) WithURLResolver(resolve URLResolver) *Handler {
	h.resolve = resolve
	return h
}

func (h *Handler) Prepare(ctx context.Context, item *checkpoint.WorkItem) error {
	if strings.TrimSpace(item.Name) == "" {
		return services.Wrap(services.ErrValidation, "scraping", "validate inputs",
			"work item has no display name", nil)
	}
	return h.store.SetStage(item, checkpoint.StageScraping)
}

func (h *Handler) Execute(ctx context.Context, item *checkpoint.WorkItem) error {
	logger := logging.WithContext(ctx, h.logger)

	pageURL, err := h.resolve(ctx, item)
	if err != nil {
		return services.Wrap(services.ErrTransient, "scraping", "resolve audio page", item.ID, err)
	}
	logger.Info("scraping audio page", logging.String("url", pageURL))

	doc, err := h.client.GetDocument(ctx, pageURL)
	if err != nil {
		return err
	}

	subItems := h.extractor.Extract(doc, item.Name)
	if len(subItems) == 0 {
		return services.Wrap(services.ErrNothingFound, "scraping", "extract audio",
			fmt.Sprintf("no Original skin audio files found for %s", item.Name), nil)
	}

	item.Files = subItems
	item.RecomputeStats()
	if err := h.store.SetStage(item, checkpoint.StageDownloading); err != nil {
		return err
	}

	logger.Info("audio files discovered", logging.Int("files", len(subItems)))
	return nil
}

func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if strings.TrimSpace(h.client.BaseURL()) == "" {
		return stage.Unhealthy("scraper", "no base URL configured")
	}
	return stage.Healthy("scraper")
}
