package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	raw := `{
		"job": "faers-q1",
		"source": {"kind": "file", "file": {"path": "data/2024q1"}},
		"storage": {"kind": "sqlite", "db": {"dsn": "faers.db"}}
	}`
	path := filepath.Join(t.TempDir(), "pipeline.json")
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.Runtime.CommitEvery != DefaultCommitEvery {
		t.Errorf("CommitEvery = %d, want default %d", p.Runtime.CommitEvery, DefaultCommitEvery)
	}
	if p.Runtime.ChannelBuffer != DefaultChannelBuffer {
		t.Errorf("ChannelBuffer = %d, want default %d", p.Runtime.ChannelBuffer, DefaultChannelBuffer)
	}
	if p.Storage.Policy != "ignore" {
		t.Errorf("Policy = %q, want ignore", p.Storage.Policy)
	}
	if p.Source.Options == nil {
		t.Error("missing options should decode to empty, non-nil Options")
	}
}

func TestLoadRejectsBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("malformed config accepted")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("missing config accepted")
	}
}

func TestOptionsString(t *testing.T) {
	o := Options{
		"pattern": "*.json",
		"n":       float64(7),
	}

	if got := o.String("pattern", "x"); got != "*.json" {
		t.Errorf("String = %q", got)
	}
	if got := o.String("missing", "x"); got != "x" {
		t.Errorf("String default = %q", got)
	}
	if got := o.String("n", "x"); got != "x" {
		t.Errorf("String on number = %q, want default", got)
	}
}

func TestOptionsNullDecodesToEmpty(t *testing.T) {
	var s Source
	if err := json.Unmarshal([]byte(`{"kind":"file","options":null}`), &s); err != nil {
		t.Fatal(err)
	}
	if s.Options == nil {
		t.Fatal("null options decoded to nil map")
	}
}
