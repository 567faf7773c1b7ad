// This file adds a lightweight linter/validator for Pipeline values. It
// performs static checks over a decoded Pipeline and returns a list of issues
// (errors and warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "storage.kind",
// "runtime.commit_every"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue in the slice is error severity.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidatePipeline performs static validation / linting of a Pipeline. It
// does not mutate the pipeline; callers decide whether warnings are fatal.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}
	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateRuntime(p.Runtime)...)

	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  "source.kind must not be empty",
		})
		return issues
	}

	// Unknown kinds are warnings, for forward compatibility.
	known := map[string]struct{}{
		"file": {},
	}
	if _, ok := known[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "source.kind",
			Message:  fmt.Sprintf("unknown source kind %q; ensure a matching implementation exists", s.Kind),
		})
	}

	switch s.Kind {
	case "file":
		if strings.TrimSpace(s.File.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.file.path",
				Message:  "file source requires a non-empty path",
			})
		}
	}

	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind must not be empty",
		})
		return issues
	}

	known := map[string]struct{}{
		"sqlite":   {},
		"postgres": {},
		"mongo":    {},
	}
	if _, ok := known[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind),
		})
	}

	if strings.TrimSpace(s.DB.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.dsn",
			Message:  "storage.db.dsn must not be empty",
		})
	}

	switch s.Policy {
	case "", "ignore", "replace":
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.policy",
			Message:  fmt.Sprintf("policy %q is not one of ignore, replace", s.Policy),
		})
	}

	return issues
}

func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue

	if r.CommitEvery < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.commit_every",
			Message:  "commit_every must not be negative",
		})
	}
	if r.Limit < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.limit",
			Message:  "limit must not be negative",
		})
	}
	if r.ChannelBuffer < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.channel_buffer",
			Message:  "channel_buffer must not be negative",
		})
	}
	if r.MaxPayloadBytes > 0 && strings.TrimSpace(r.OversizedPath) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.oversized_path",
			Message:  "max_payload_bytes is set but oversized_path is empty; diverted records would be lost",
		})
	}
	if r.CommitEvery == 1 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "runtime.commit_every",
			Message:  "commit_every=1 commits per record; expect poor throughput",
		})
	}

	return issues
}
