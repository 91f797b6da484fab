package parser

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/go-torrent-relay/models"
)

const (
	// DefaultTopicMarker identifies topic links on the homepage.
	DefaultTopicMarker = "/forums/topic/"
	// DefaultMaxTopics bounds how many topics are visited per cycle.
	DefaultMaxTopics = 15
	// DefaultFileSelector matches torrent attachment anchors on a topic page.
	DefaultFileSelector = `a[data-fileext="torrent"]`
	// DefaultTitlePrefix is the boilerplate the site prepends to attachment names.
	DefaultTitlePrefix = "www.1TamilMV"
)

// HomepageRules controls topic discovery.
type HomepageRules struct {
	TopicMarker string
	MaxTopics   int
}

// TopicRules controls file extraction from a topic page.
type TopicRules struct {
	FileSelector string
	TitlePrefix  string
}

// ParseHomepage returns absolute topic URLs in first-seen order, without
// duplicates, truncated to rules.MaxTopics.
func ParseHomepage(base *url.URL, body []byte, rules HomepageRules) ([]string, error) {
	page := base.String()
	doc, err := newDocument(page, body)
	if err != nil {
		return nil, err
	}

	marker := rules.TopicMarker
	if marker == "" {
		marker = DefaultTopicMarker
	}
	limit := rules.MaxTopics
	if limit <= 0 {
		limit = DefaultMaxTopics
	}

	seen := make(map[string]struct{})
	topics := make([]string, 0, limit)
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if !strings.Contains(href, marker) {
			return true
		}
		abs, ok := resolve(base, href)
		if !ok {
			return true
		}
		if _, dup := seen[abs]; dup {
			return true
		}
		seen[abs] = struct{}{}
		topics = append(topics, abs)
		return len(topics) < limit
	})

	if len(topics) == 0 {
		return nil, &ParseError{Page: page, Err: ErrNoTopics}
	}
	return topics, nil
}

// ParseTopicPage extracts the torrent files attached to a topic page.
// Anchors without an href are skipped.
func ParseTopicPage(pageURL string, body []byte, rules TopicRules) ([]models.File, error) {
	doc, err := newDocument(pageURL, body)
	if err != nil {
		return nil, err
	}

	selector := rules.FileSelector
	if selector == "" {
		selector = DefaultFileSelector
	}
	base, _ := url.Parse(pageURL)

	var files []models.File
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			return
		}
		link := href
		if base != nil {
			if abs, ok := resolve(base, href); ok {
				link = abs
			}
		}

		raw := NormalizeText(s.Text())
		files = append(files, models.File{
			Title: CleanTitle(raw, rules.TitlePrefix),
			Link:  link,
			Size:  ExtractSize(raw),
		})
	})
	return files, nil
}

func newDocument(page string, body []byte) (*goquery.Document, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &ParseError{Page: page, Err: ErrEmptyPage}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{Page: page, Err: err}
	}
	return doc, nil
}

func resolve(base *url.URL, href string) (string, bool) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	abs.Fragment = ""
	return abs.String(), true
}
