// Package config defines the canonical, JSON-serializable configuration model
// for the loader. It is intentionally small, explicit, and dependency-free so
// that pipelines can be loaded from disk and passed through the program
// without additional glue code.
//
// Example (trimmed):
//
//	{
//	  "job":     "faers-2024q1",
//	  "source":  { "kind": "file", "file": { "path": "data/2024q1" }, "options": { "pattern": "*.json" } },
//	  "storage": { "kind": "sqlite", "db": { "dsn": "faers.db" }, "policy": "ignore" },
//	  "runtime": { "commit_every": 1000, "max_payload_bytes": 8388608 }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Pipeline describes one load end to end. It is the top-level object decoded
// from a pipeline file (e.g., configs/pipelines/*.json).
type Pipeline struct {
	// Job names the run; it labels metrics and log lines.
	Job string `json:"job"`

	// Source describes where input records come from.
	Source Source `json:"source"`

	// Storage describes where decomposed rows are written.
	Storage Storage `json:"storage"`

	// Runtime controls batching, limits, and buffer sizes.
	Runtime RuntimeConfig `json:"runtime"`
}

// Source identifies the data source. Additional kinds can be added over time.
type Source struct {
	// Kind selects the source implementation. Current value: "file".
	Kind string `json:"kind"`

	// File carries options for the "file" source kind.
	File SourceFile `json:"file"`

	// Options is a free-form bag for source tuning. For "file", the key
	// "pattern" restricts which files a directory path expands to.
	Options Options `json:"options"`
}

// SourceFile holds configuration for the "file" source kind.
type SourceFile struct {
	// Path is a single input file or a directory of input files.
	Path string `json:"path"`
}

// Storage selects the backend used to persist decomposed rows.
type Storage struct {
	// Kind selects the registered backend: "sqlite", "postgres", "mongo".
	Kind string `json:"kind"`

	// DB configures the backend connection.
	DB DBConfig `json:"db"`

	// Policy selects how an existing report with the same id is treated:
	// "ignore" (default) keeps the stored row, "replace" overwrites it.
	// Child rows are always insert-or-ignore regardless of policy.
	Policy string `json:"policy"`
}

// DBConfig configures the backend connection.
type DBConfig struct {
	// DSN is the connection string (file path, pgx DSN, mongo URI).
	DSN string `json:"dsn"`

	// Namespace is the schema/database the relations live in. Backends that
	// encode it in the DSN may ignore it.
	Namespace string `json:"namespace"`
}

// RuntimeConfig controls batching, limits, and channel buffer sizes.
type RuntimeConfig struct {
	// CommitEvery is the number of records per transaction.
	CommitEvery int `json:"commit_every"`

	// Limit stops the run after this many records; 0 means unlimited.
	Limit int64 `json:"limit"`

	// ChannelBuffer sizes the stream-to-loader channel.
	ChannelBuffer int `json:"channel_buffer"`

	// MaxPayloadBytes diverts records whose estimated size exceeds it; 0
	// disables the check.
	MaxPayloadBytes int `json:"max_payload_bytes"`

	// OversizedPath is the JSON-lines side file diverted records are logged
	// to. Required when MaxPayloadBytes > 0.
	OversizedPath string `json:"oversized_path"`

	// ProgressEvery emits a progress log line every N records.
	ProgressEvery int64 `json:"progress_every"`
}

// Defaults applied by Load for zero-valued runtime knobs.
const (
	DefaultCommitEvery     = 1000
	DefaultChannelBuffer   = 64
	DefaultMaxPayloadBytes = 8 << 20
	DefaultProgressEvery   = 10000
	DefaultPolicy          = "ignore"
	DefaultPattern         = "*.json"
)

// Load reads and decodes a pipeline file, filling in defaults.
func Load(path string) (Pipeline, error) {
	var p Pipeline
	b, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read pipeline config: %w", err)
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("decode pipeline config %s: %w", path, err)
	}
	p.ApplyDefaults()
	return p, nil
}

// ApplyDefaults fills zero-valued knobs with their defaults. Load calls it;
// callers constructing a Pipeline in code should too.
func (p *Pipeline) ApplyDefaults() {
	if p.Source.Options == nil {
		p.Source.Options = Options{}
	}
	if p.Storage.Policy == "" {
		p.Storage.Policy = DefaultPolicy
	}
	if p.Runtime.CommitEvery <= 0 {
		p.Runtime.CommitEvery = DefaultCommitEvery
	}
	if p.Runtime.ChannelBuffer <= 0 {
		p.Runtime.ChannelBuffer = DefaultChannelBuffer
	}
	if p.Runtime.MaxPayloadBytes < 0 {
		p.Runtime.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	if p.Runtime.ProgressEvery <= 0 {
		p.Runtime.ProgressEvery = DefaultProgressEvery
	}
}

// Options is a small helper to fetch typed values from arbitrary JSON maps
// without introducing third-party configuration libraries. It performs only
// minimal type coercion and returns provided defaults when a key is absent or
// of an unexpected type.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// UnmarshalJSON implements json.Unmarshaler so that a missing or null
// "options" object decodes to a non-nil, empty Options map. This removes the
// need to nil-check Options at call sites.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
