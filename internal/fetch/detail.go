package fetch

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/guidance"
)

// DetailScraper implements guidance.DetailFetcher using a Colly
// collector and goquery for the page structure.
type DetailScraper struct {
	baseCollector *colly.Collector
	baseURL       *url.URL
	logger        *zap.Logger
}

// NewDetailScraper constructs a configured scraper. baseURL anchors
// relative links found on detail pages.
func NewDetailScraper(cfg ClientConfig, baseURL string, logger *zap.Logger) (*DetailScraper, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	collector := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(cfg.UserAgent),
	)
	collector.AllowURLRevisit = true
	collector.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          128,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ForceAttemptHTTP2:     true,
	})
	collector.SetRequestTimeout(cfg.Timeout)

	return &DetailScraper{
		baseCollector: collector,
		baseURL:       base,
		logger:        logger,
	}, nil
}

// FetchDetail loads the document detail page and extracts the metadata
// the listing does not carry.
func (s *DetailScraper) FetchDetail(ctx context.Context, rawURL string) (guidance.Candidate, error) {
	body, err := s.fetch(ctx, rawURL)
	if err != nil {
		return guidance.Candidate{}, err
	}
	return s.parse(rawURL, body)
}

func (s *DetailScraper) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	collector := s.baseCollector.Clone()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnResponse(func(r *colly.Response) {
		send(fetchResult{body: append([]byte{}, r.Body...)})
	})
	collector.OnError(func(_ *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		send(fetchResult{err: err})
	})

	if err := collector.Visit(rawURL); err != nil {
		return nil, err
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return res.body, res.err
	default:
		return nil, errors.New("detail fetch produced no result")
	}
}

func (s *DetailScraper) parse(rawURL string, body []byte) (guidance.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return guidance.Candidate{}, err
	}

	cand := guidance.Candidate{URL: rawURL}
	cand.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	cand.Summary = s.findSummary(doc)
	cand.DocketNumber = s.findDefinition(doc, "docket")
	cand.Organization = s.findDefinition(doc, "issued by")
	cand.AttachmentURL = s.findAttachmentURL(doc)
	return cand, nil
}

// findSummary picks the first substantial paragraph that reads like the
// document abstract rather than navigation chrome.
func (s *DetailScraper) findSummary(doc *goquery.Document) string {
	var summary string
	doc.Find("p").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if len(text) > 100 && strings.Contains(strings.ToLower(text), "guidance") {
			summary = text
			return false
		}
		return true
	})
	return summary
}

// findDefinition scans dt/dd pairs for a term containing key.
func (s *DetailScraper) findDefinition(doc *goquery.Document, key string) string {
	var value string
	doc.Find("dt").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if !strings.Contains(strings.ToLower(sel.Text()), key) {
			return true
		}
		dd := sel.NextFiltered("dd")
		if dd.Length() == 0 {
			return true
		}
		if link := dd.Find("a").First(); link.Length() > 0 {
			value = strings.TrimSpace(link.Text())
		} else {
			value = strings.TrimSpace(dd.Text())
		}
		return false
	})
	return value
}

func (s *DetailScraper) findAttachmentURL(doc *goquery.Document) string {
	var href string
	doc.Find("a").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.ToLower(sel.Text())
		link, ok := sel.Attr("href")
		if !ok {
			return true
		}
		if strings.Contains(text, "download") && strings.Contains(link, "/media/") {
			href = link
			return false
		}
		return true
	})
	if href == "" {
		return ""
	}
	return s.absolutize(href)
}

func (s *DetailScraper) absolutize(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	return s.baseURL.ResolveReference(u).String()
}

type fetchResult struct {
	body []byte
	err  error
}
