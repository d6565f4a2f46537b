package listing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const listingTableHTML = `
<table class="dataTable">
<tbody>
	<tr>
		<td><a href="/regulatory-information/search-fda-guidance-documents/doc-one">Document One</a></td>
		<td>07/31/2025</td>
		<td>Center for Devices and Radiological Health</td>
		<td>Premarket</td>
		<td>Final</td>
		<td><a href="/media/176439/download">Download (418 KB)</a></td>
	</tr>
	<tr>
		<td>No link in this row</td>
		<td>07/30/2025</td>
		<td>CDER</td>
		<td>Labeling</td>
		<td>Draft</td>
	</tr>
	<tr>
		<td><a href="/regulatory-information/search-fda-guidance-documents/doc-two">Document Two</a></td>
		<td>07/21/2025</td>
	</tr>
</tbody>
</table>`

func TestBrowserStrategyParsesRenderedTable(t *testing.T) {
	t.Parallel()

	s, err := NewBrowserStrategy(BrowserConfig{
		CatalogURL: "https://example.test/catalog",
		BaseURL:    "https://example.test",
		UserAgent:  "test-agent",
		NavTimeout: time.Second,
	}, zap.NewNop())
	require.NoError(t, err)

	cands, err := s.parseTable(listingTableHTML)
	require.NoError(t, err)
	require.Len(t, cands, 1, "rows without a link or with too few columns are skipped")

	got := cands[0]
	require.Equal(t, "https://example.test/regulatory-information/search-fda-guidance-documents/doc-one", got.URL)
	require.Equal(t, "Document One", got.Title)
	require.Equal(t, "07/31/2025", got.IssueDate)
	require.Equal(t, "Center for Devices and Radiological Health", got.Organization)
	require.Equal(t, "Premarket", got.Topic)
	require.Equal(t, "Final", got.GuidanceStatus)
	require.Equal(t, "https://example.test/media/176439/download", got.AttachmentURL)
}
