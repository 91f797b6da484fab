package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aluiziolira/go-torrent-relay/models"
)

const torrentSuffix = ".torrent"

var sizePattern = regexp.MustCompile(`(?i)\d+(?:\.\d+)?\s*(?:GB|MB|KB)`)

// ExtractSize returns the first size token (e.g. "1.2GB", "700 mb") found in
// text, preserving its original formatting, or models.UnknownSize.
func ExtractSize(text string) string {
	if match := sizePattern.FindString(text); match != "" {
		return match
	}
	return models.UnknownSize
}

// ValidateFile ensures the parser captured the fields needed for delivery.
func ValidateFile(f *models.File) error {
	if f == nil {
		return fmt.Errorf("file is nil")
	}
	if strings.TrimSpace(f.Link) == "" {
		return fmt.Errorf("file missing link")
	}
	if strings.TrimSpace(f.Title) == "" {
		return fmt.Errorf("file missing title for %s", f.Link)
	}
	return nil
}

// NormalizeText collapses runs of whitespace into single spaces.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// CleanTitle strips the site prefix and everything from the ".torrent"
// suffix onwards, then trims spaces and separator characters.
func CleanTitle(raw, prefix string) string {
	title := NormalizeText(raw)
	if prefix != "" {
		title = prefixPattern(prefix).ReplaceAllString(title, "")
	}
	if idx := strings.LastIndex(strings.ToLower(title), torrentSuffix); idx >= 0 {
		title = title[:idx]
	}
	return strings.Trim(title, " -|")
}

// FileName derives the upload file name for a title.
func FileName(title string) string {
	return strings.ReplaceAll(title, " ", "_") + torrentSuffix
}

// Caption renders the message shown under a delivered file.
func Caption(f models.File, tag string) string {
	var b strings.Builder
	b.WriteString(f.Title)
	b.WriteString("\n📦 ")
	b.WriteString(f.Size)
	if tag != "" {
		b.WriteString("\n")
		if !strings.HasPrefix(tag, "#") {
			b.WriteString("#")
		}
		b.WriteString(tag)
	}
	return b.String()
}

// NewListing builds a listing from parsed files. It reports false when there
// is nothing to deliver.
func NewListing(topicURL string, files []models.File) (models.Listing, bool) {
	if len(files) == 0 {
		return models.Listing{}, false
	}
	return models.Listing{
		TopicURL: topicURL,
		Title:    files[0].Title,
		Size:     files[0].Size,
		Files:    files,
	}, true
}

func prefixPattern(prefix string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + regexp.QuoteMeta(prefix))
}
