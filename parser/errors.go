package parser

import (
	"errors"
	"fmt"
)

var (
	// ErrNoTopics is returned when a homepage contains no topic links.
	ErrNoTopics = errors.New("no topic links found")
	// ErrEmptyPage is returned when a page body is empty.
	ErrEmptyPage = errors.New("empty page body")
)

// ParseError reports markup that could not be turned into listings.
type ParseError struct {
	Page string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Page, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
