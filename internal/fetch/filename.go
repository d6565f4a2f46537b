package fetch

import (
	"regexp"
	"strings"
)

var (
	slugPattern = regexp.MustCompile(`[^a-z0-9]+`)
	datePattern = regexp.MustCompile(`[^0-9-]`)
)

// AttachmentFilename derives a deterministic filename for an attachment
// from its document metadata and source URL. The same inputs always
// produce the same name, so re-downloads overwrite rather than duplicate.
func AttachmentFilename(title, issueDate, sourceURL string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(title), "_")
	slug = strings.Trim(slug, "_")
	if slug == "" {
		slug = "untitled"
	}
	if len(slug) > 50 {
		slug = slug[:50]
	}

	date := datePattern.ReplaceAllString(strings.ReplaceAll(issueDate, "/", "-"), "")
	if date == "" {
		date = "unknown"
	}

	name := date + "_" + slug
	if id := mediaID(sourceURL); id != "" {
		name += "_" + id
	}
	return name + ".pdf"
}

// mediaID pulls the numeric ID out of catalog media URLs shaped like
// .../media/<id>/download.
func mediaID(sourceURL string) string {
	_, rest, ok := strings.Cut(sourceURL, "/media/")
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(rest, "/")
	return id
}
