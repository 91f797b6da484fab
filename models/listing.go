// Package models defines data structures for the relay.
package models

import "time"

// UnknownSize is reported when no size token is found in a file's text.
const UnknownSize = "Unknown"

// File is one downloadable torrent parsed from a topic page.
type File struct {
	Title string `csv:"title" json:"title"`
	Link  string `csv:"link" json:"link"`
	Size  string `csv:"size" json:"size"`
}

// Listing is a forum topic together with the files parsed from it.
// Title and Size mirror the first file.
type Listing struct {
	TopicURL string
	Title    string
	Size     string
	Files    []File
}

// Document is the payload handed to the delivery channel.
type Document struct {
	FileName string
	Caption  string
	Content  []byte
}

// DeliveryRecord is appended to the delivery journal for every delivered file.
type DeliveryRecord struct {
	TopicURL    string    `csv:"topic_url" json:"topic_url"`
	Title       string    `csv:"title" json:"title"`
	Size        string    `csv:"size" json:"size"`
	Link        string    `csv:"link" json:"link"`
	FileName    string    `csv:"file_name" json:"file_name"`
	DeliveredAt time.Time `csv:"delivered_at" json:"delivered_at"`
}
