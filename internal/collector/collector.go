// Package collector walks the paginated order listing and extracts one record
// id per order container.
package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ledger-cli/api/schemas"
	"github.com/xkilldash9x/ledger-cli/internal/config"
)

// Collector extracts record ids from the listing the page is positioned on.
type Collector struct {
	cfg      config.CollectorConfig
	pageLoad time.Duration
	logger   *zap.Logger
}

func New(cfg config.CollectorConfig, pageLoad time.Duration, logger *zap.Logger) *Collector {
	return &Collector{cfg: cfg, pageLoad: pageLoad, logger: logger.Named("collector")}
}

// pagination is the state of the next-page control on one listing page.
type pagination int

const (
	paginationAbsent pagination = iota
	paginationDisabled
	paginationEnabled
)

func (p pagination) String() string {
	switch p {
	case paginationAbsent:
		return "absent"
	case paginationDisabled:
		return "disabled"
	default:
		return "enabled"
	}
}

// Collect returns every record id of the listing in page order, top to bottom.
// Each page is waited for before it is read; a load that exceeds the bound
// fails the whole collection. Collection ends on the page whose next control
// is absent or disabled.
func (c *Collector) Collect(ctx context.Context, page schemas.Page) ([]schemas.RecordID, error) {
	var ids []schemas.RecordID

	for n := 1; ; n++ {
		if err := page.WaitForLoad(ctx, c.pageLoad); err != nil {
			return nil, fmt.Errorf("listing page %d did not load: %w", n, err)
		}
		html, err := page.Content(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read listing page %d: %w", n, err)
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return nil, fmt.Errorf("parse listing page %d: %w", n, err)
		}

		found := c.extract(doc)
		ids = append(ids, found...)
		next := c.pagination(doc)
		c.logger.Debug("Listing page read.",
			zap.Int("page", n),
			zap.Int("records", len(found)),
			zap.Stringer("next", next))

		if next != paginationEnabled {
			break
		}
		if c.cfg.MaxPages > 0 && n >= c.cfg.MaxPages {
			c.logger.Warn("Stopping at the page limit with the listing not exhausted.", zap.Int("max_pages", c.cfg.MaxPages))
			break
		}
		if err := page.Click(ctx, c.cfg.NextSelector); err != nil {
			return nil, fmt.Errorf("failed to advance past listing page %d: %w", n, err)
		}
	}

	c.logger.Info("Collected record ids.", zap.Int("count", len(ids)))
	return ids, nil
}

// Extract reads the record ids of a single listing document.
func (c *Collector) Extract(html string) ([]schemas.RecordID, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return c.extract(doc), nil
}

// extract takes the first id element of each container. Containers without
// one, or whose id element has no text, are skipped.
func (c *Collector) extract(doc *goquery.Document) []schemas.RecordID {
	var ids []schemas.RecordID
	doc.Find(c.cfg.ContainerSelector).Each(func(_ int, container *goquery.Selection) {
		id := strings.TrimSpace(container.Find(c.cfg.IDSelector).First().Text())
		if id == "" {
			return
		}
		ids = append(ids, schemas.RecordID(id))
	})
	return ids
}

func (c *Collector) pagination(doc *goquery.Document) pagination {
	next := doc.Find(c.cfg.NextSelector).First()
	switch {
	case next.Length() == 0:
		return paginationAbsent
	case next.HasClass(c.cfg.DisabledClass):
		return paginationDisabled
	default:
		return paginationEnabled
	}
}
