package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const detailPageHTML = `<!DOCTYPE html>
<html>
<body>
	<h1>Animal Food Ingredient Consultation</h1>
	<p>Short nav text</p>
	<p>This guidance describes a voluntary process for firms to consult with the agency
	about ingredients intended for use in animal food, including the information that
	should be included in a consultation submission.</p>
	<dl>
		<dt>Docket Number:</dt>
		<dd><a href="https://example.test/docket/FDA-2023-D-1234">FDA-2023-D-1234</a></dd>
		<dt>Issued by:</dt>
		<dd>Center for Veterinary Medicine</dd>
	</dl>
	<a href="/media/180442/download">Download the Final Guidance Document</a>
</body>
</html>`

func newTestScraper(t *testing.T, baseURL string) *DetailScraper {
	t.Helper()
	cfg := ClientConfig{UserAgent: "test-agent", Timeout: 5 * time.Second}
	s, err := NewDetailScraper(cfg, baseURL, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestParseDetailPage(t *testing.T) {
	t.Parallel()

	s := newTestScraper(t, "https://example.test")
	cand, err := s.parse("https://example.test/doc", []byte(detailPageHTML))
	require.NoError(t, err)

	require.Equal(t, "Animal Food Ingredient Consultation", cand.Title)
	require.Contains(t, cand.Summary, "voluntary process")
	require.Equal(t, "FDA-2023-D-1234", cand.DocketNumber)
	require.Equal(t, "Center for Veterinary Medicine", cand.Organization)
	require.Equal(t, "https://example.test/media/180442/download", cand.AttachmentURL)
}

func TestParseDetailPageMissingPieces(t *testing.T) {
	t.Parallel()

	s := newTestScraper(t, "https://example.test")
	cand, err := s.parse("https://example.test/doc", []byte("<html><body><p>nothing here</p></body></html>"))
	require.NoError(t, err)

	require.Empty(t, cand.Title)
	require.Empty(t, cand.Summary)
	require.Empty(t, cand.AttachmentURL)
	require.Equal(t, "https://example.test/doc", cand.URL)
}

func TestFetchDetailAgainstServer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(detailPageHTML)) //nolint:errcheck
	}))
	defer srv.Close()

	s := newTestScraper(t, srv.URL)
	cand, err := s.FetchDetail(context.Background(), srv.URL+"/doc")
	require.NoError(t, err)
	require.Equal(t, "Animal Food Ingredient Consultation", cand.Title)
	require.Equal(t, srv.URL+"/media/180442/download", cand.AttachmentURL)
}
