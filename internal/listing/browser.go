package listing

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/guidance"
)

// BrowserStrategy loads the catalog page in headless Chrome and parses
// the rendered listing table. The table is populated client-side, so a
// plain GET of the page never sees it.
type BrowserStrategy struct {
	cfg    BrowserConfig
	base   *url.URL
	logger *zap.Logger
}

// BrowserConfig configures the headless listing strategy.
type BrowserConfig struct {
	CatalogURL string
	BaseURL    string
	UserAgent  string
	NavTimeout time.Duration
}

// NewBrowserStrategy constructs the headless listing strategy. Chrome is
// launched per acquisition, not at construction: the strategy usually
// never runs.
func NewBrowserStrategy(cfg BrowserConfig, logger *zap.Logger) (*BrowserStrategy, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BrowserStrategy{cfg: cfg, base: base, logger: logger}, nil
}

// Name implements guidance.ListingStrategy.
func (s *BrowserStrategy) Name() string { return "browser" }

// Acquire renders the catalog page and parses the listing table.
func (s *BrowserStrategy) Acquire(ctx context.Context, limit int) ([]guidance.Candidate, error) {
	tableHTML, err := s.render(ctx)
	if err != nil {
		return nil, &guidance.AcquisitionError{Strategy: s.Name(), Reason: "render catalog page", Err: err}
	}
	cands, err := s.parseTable(tableHTML)
	if err != nil {
		return nil, &guidance.AcquisitionError{Strategy: s.Name(), Reason: "parse listing table", Err: err}
	}
	return clamp(cands, limit), nil
}

func (s *BrowserStrategy) render(ctx context.Context) (string, error) {
	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(s.cfg.UserAgent),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	taskCtx, cancelTask := context.WithTimeout(browserCtx, s.cfg.NavTimeout)
	defer cancelTask()

	var tableHTML string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(s.cfg.CatalogURL),
		chromedp.WaitVisible("table.dataTable tbody tr", chromedp.ByQuery),
		chromedp.OuterHTML("table.dataTable", &tableHTML, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("chromedp run: %w", err)
	}
	return tableHTML, nil
}

// parseTable walks the rendered listing rows. Rows without a document
// link or with too few columns are skipped, not fatal.
func (s *BrowserStrategy) parseTable(tableHTML string) ([]guidance.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(tableHTML)))
	if err != nil {
		return nil, err
	}

	var out []guidance.Candidate
	doc.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		if cand, ok := s.parseRow(row); ok {
			out = append(out, cand)
		}
	})
	return out, nil
}

func (s *BrowserStrategy) parseRow(row *goquery.Selection) (guidance.Candidate, bool) {
	cells := row.Find("td, th")
	if cells.Length() < 5 {
		return guidance.Candidate{}, false
	}

	link := cells.Eq(0).Find("a").First()
	href, ok := link.Attr("href")
	title := strings.TrimSpace(link.Text())
	if !ok || href == "" || title == "" {
		return guidance.Candidate{}, false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return guidance.Candidate{}, false
	}

	cand := guidance.Candidate{
		URL:            s.base.ResolveReference(ref).String(),
		Title:          title,
		IssueDate:      strings.TrimSpace(cells.Eq(1).Text()),
		Organization:   strings.TrimSpace(cells.Eq(2).Text()),
		Topic:          strings.TrimSpace(cells.Eq(3).Text()),
		GuidanceStatus: strings.TrimSpace(cells.Eq(4).Text()),
	}

	row.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		dl, ok := a.Attr("href")
		if !ok || !strings.Contains(strings.ToLower(dl), "download") {
			return true
		}
		if ref, err := url.Parse(dl); err == nil {
			cand.AttachmentURL = s.base.ResolveReference(ref).String()
		}
		return false
	})

	return cand, true
}
