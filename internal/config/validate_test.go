package config

import (
	"strings"
	"testing"
)

func valid() Pipeline {
	p := Pipeline{
		Job:     "faers-q1",
		Source:  Source{Kind: "file", File: SourceFile{Path: "data/2024q1"}},
		Storage: Storage{Kind: "sqlite", DB: DBConfig{DSN: "faers.db"}},
	}
	p.ApplyDefaults()
	return p
}

func findIssue(issues []Issue, path string) *Issue {
	for i := range issues {
		if issues[i].Path == path {
			return &issues[i]
		}
	}
	return nil
}

func TestValidatePipelineAcceptsValid(t *testing.T) {
	if issues := ValidatePipeline(valid()); HasErrors(issues) {
		t.Fatalf("valid pipeline has errors: %v", issues)
	}
}

func TestValidatePipelineRequiredFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Pipeline)
		path   string
	}{
		{"empty job", func(p *Pipeline) { p.Job = " " }, "job"},
		{"empty source kind", func(p *Pipeline) { p.Source.Kind = "" }, "source.kind"},
		{"file source without path", func(p *Pipeline) { p.Source.File.Path = "" }, "source.file.path"},
		{"empty storage kind", func(p *Pipeline) { p.Storage.Kind = "" }, "storage.kind"},
		{"empty dsn", func(p *Pipeline) { p.Storage.DB.DSN = "" }, "storage.db.dsn"},
		{"bad policy", func(p *Pipeline) { p.Storage.Policy = "merge" }, "storage.policy"},
		{"negative limit", func(p *Pipeline) { p.Runtime.Limit = -1 }, "runtime.limit"},
		{"negative buffer", func(p *Pipeline) { p.Runtime.ChannelBuffer = -1 }, "runtime.channel_buffer"},
		{
			"payload cap without side file",
			func(p *Pipeline) { p.Runtime.MaxPayloadBytes = 1024; p.Runtime.OversizedPath = "" },
			"runtime.oversized_path",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := valid()
			c.mutate(&p)
			issues := ValidatePipeline(p)
			iss := findIssue(issues, c.path)
			if iss == nil {
				t.Fatalf("no issue at %s: %v", c.path, issues)
			}
			if iss.Severity != SeverityError {
				t.Fatalf("issue at %s is %s, want error", c.path, iss.Severity)
			}
		})
	}
}

func TestValidatePipelineWarnings(t *testing.T) {
	p := valid()
	p.Storage.Kind = "cassandra"
	issues := ValidatePipeline(p)
	iss := findIssue(issues, "storage.kind")
	if iss == nil || iss.Severity != SeverityWarning {
		t.Fatalf("unknown storage kind should warn: %v", issues)
	}
	if !strings.Contains(iss.Message, "cassandra") {
		t.Errorf("warning does not name the kind: %q", iss.Message)
	}

	p = valid()
	p.Runtime.CommitEvery = 1
	if iss := findIssue(ValidatePipeline(p), "runtime.commit_every"); iss == nil || iss.Severity != SeverityWarning {
		t.Fatal("commit_every=1 should warn")
	}
}

func TestIssueError(t *testing.T) {
	iss := Issue{Severity: SeverityError, Path: "storage.db.dsn", Message: "must not be empty"}
	got := iss.Error()
	if !strings.Contains(got, "storage.db.dsn") || !strings.Contains(got, "error") {
		t.Fatalf("Error() = %q", got)
	}
}
