package main

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/go-torrent-relay/metrics"
	"github.com/aluiziolira/go-torrent-relay/models"
)

func TestHealthHandler(t *testing.T) {
	m := metrics.New()
	m.IncDelivery("delivered")
	server := httptest.NewServer(newHealthHandler(m.Registry))
	defer server.Close()

	tests := []struct {
		path     string
		status   int
		contains string
	}{
		{path: "/", status: http.StatusOK, contains: "Bot is running!"},
		{path: "/healthz", status: http.StatusOK, contains: "ok"},
		{path: "/metrics", status: http.StatusOK, contains: "relay_deliveries_total"},
		{path: "/missing", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(server.URL + tt.path)
			if err != nil {
				t.Fatalf("get %s: %v", tt.path, err)
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)

			if resp.StatusCode != tt.status {
				t.Fatalf("status=%d, want %d", resp.StatusCode, tt.status)
			}
			if !strings.Contains(string(body), tt.contains) {
				t.Fatalf("body %q missing %q", body, tt.contains)
			}
		})
	}
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")
	if err := os.WriteFile(path, []byte("poll_interval: 5m\nmax_topics: 7\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd := NewRootCmd()
	run, _, err := cmd.Find([]string{"run"})
	if err != nil {
		t.Fatalf("find run: %v", err)
	}
	if err := run.ParseFlags([]string{"--config", path, "--env-file", filepath.Join(dir, "none.env"), "--max-topics", "3", "--ledger", "SQLite"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := loadConfig(run)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.PollInterval != 5*time.Minute {
		t.Fatalf("interval=%v, want file value", cfg.PollInterval)
	}
	if cfg.MaxTopics != 3 {
		t.Fatalf("max topics=%d, want flag value", cfg.MaxTopics)
	}
	if cfg.LedgerBackend != "sqlite" {
		t.Fatalf("ledger=%q", cfg.LedgerBackend)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	cmd := NewRootCmd()
	once, _, err := cmd.Find([]string{"once"})
	if err != nil {
		t.Fatalf("find once: %v", err)
	}
	if err := once.ParseFlags([]string{"--env-file", filepath.Join(t.TempDir(), "none.env"), "--workers", "0"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if _, err := loadConfig(once); err == nil {
		t.Fatal("expected validation error")
	}
}

type recordingJournal struct {
	calls []string
}

func (j *recordingJournal) Write([]*models.DeliveryRecord) error { return nil }

func (j *recordingJournal) Close() error {
	j.calls = append(j.calls, "close")
	return nil
}

func (j *recordingJournal) Validate() error {
	j.calls = append(j.calls, "validate")
	return errors.New("json journal is empty")
}

func TestRelayCloseValidatesJournal(t *testing.T) {
	journal := &recordingJournal{}
	r := &relay{journal: journal}

	r.close()

	if strings.Join(journal.calls, ",") != "validate,close" {
		t.Fatalf("calls=%v, want validate then close", journal.calls)
	}
}

func TestPrintListings(t *testing.T) {
	var buf bytes.Buffer
	printListings(&buf, []models.Listing{
		{TopicURL: "https://example.test/forums/topic/1/", Files: []models.File{{Title: "Movie.Name.2024", Size: "1.2GB", Link: "https://example.test/a.torrent"}}},
		{TopicURL: "https://example.test/forums/topic/2/"},
	})

	out := buf.String()
	for _, want := range []string{"Movie.Name.2024", "1.2GB", "https://example.test/a.torrent", "(no files)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	cmd := NewRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "relay version ") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}
