package listing

import (
	"bytes"
	"context"
	"encoding/json"
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

// APIStrategy reads the catalog's static JSON export. Each row carries
// the listing cell markup, so the document link still has to be parsed
// out of an HTML fragment.
type APIStrategy struct {
	collector *colly.Collector
	apiURL    string
	base      *url.URL
	logger    *zap.Logger
}

// APIConfig configures the JSON listing strategy.
type APIConfig struct {
	APIURL    string
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// NewAPIStrategy constructs the JSON listing strategy.
func NewAPIStrategy(cfg APIConfig, logger *zap.Logger) (*APIStrategy, error) {
	base, err := url.Parse(cfg.BaseURL)
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
		MaxIdleConns:          32,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ForceAttemptHTTP2:     true,
	})
	collector.SetRequestTimeout(cfg.Timeout)

	return &APIStrategy{
		collector: collector,
		apiURL:    cfg.APIURL,
		base:      base,
		logger:    logger,
	}, nil
}

// Name implements guidance.ListingStrategy.
func (s *APIStrategy) Name() string { return "api" }

// Acquire fetches and decodes the JSON export.
func (s *APIStrategy) Acquire(ctx context.Context, limit int) ([]guidance.Candidate, error) {
	body, err := s.fetch(ctx)
	if err != nil {
		return nil, &guidance.AcquisitionError{Strategy: s.Name(), Reason: "fetch catalog export", Err: err}
	}
	cands, err := s.decode(body)
	if err != nil {
		return nil, &guidance.AcquisitionError{Strategy: s.Name(), Reason: "decode catalog export", Err: err}
	}
	return clamp(cands, limit), nil
}

func (s *APIStrategy) fetch(ctx context.Context) ([]byte, error) {
	collector := s.collector.Clone()
	resultCh := make(chan apiResult, 1)
	var once sync.Once
	send := func(res apiResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnResponse(func(r *colly.Response) {
		send(apiResult{body: append([]byte{}, r.Body...)})
	})
	collector.OnError(func(_ *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		send(apiResult{err: err})
	})

	if err := collector.Visit(s.apiURL); err != nil {
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
		return nil, errors.New("listing fetch produced no result")
	}
}

// apiRow mirrors one element of the JSON export. Unknown fields are
// ignored; only the title markup is load-bearing.
type apiRow struct {
	Title string `json:"title"`
}

func (s *APIStrategy) decode(body []byte) ([]guidance.Candidate, error) {
	var rows []apiRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, err
	}

	var out []guidance.Candidate
	for _, row := range rows {
		cand, ok := s.parseTitleCell(row.Title)
		if !ok {
			continue
		}
		out = append(out, cand)
	}
	return out, nil
}

// parseTitleCell extracts the document link from a listing cell fragment.
func (s *APIStrategy) parseTitleCell(fragment string) (guidance.Candidate, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(fragment)))
	if err != nil {
		return guidance.Candidate{}, false
	}
	link := doc.Find("a").First()
	if link.Length() == 0 {
		return guidance.Candidate{}, false
	}
	href, ok := link.Attr("href")
	if !ok || href == "" {
		return guidance.Candidate{}, false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return guidance.Candidate{}, false
	}
	return guidance.Candidate{
		URL:   s.base.ResolveReference(ref).String(),
		Title: strings.TrimSpace(link.Text()),
	}, true
}

type apiResult struct {
	body []byte
	err  error
}
