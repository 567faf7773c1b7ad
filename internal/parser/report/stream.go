// Package report implements the streaming record source. Inputs are openFDA
// drug-event exports: one JSON object per file whose "results" array holds
// the report records. The stream decodes one record at a time with
// encoding/json token walking, so memory stays constant regardless of file
// size. Directory inputs are transparently concatenated in sorted filename
// order; callers cannot distinguish a multi-file corpus from one file.
package report

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"faersload/internal/datasource/file"
	"faersload/pkg/records"
)

const resultsKey = "results"

// Source streams report records from a file or directory of files.
type Source struct {
	path    string
	pattern string
}

// NewSource returns a Source over path. pattern filters directory entries and
// defaults to "*.json".
func NewSource(path, pattern string) *Source {
	return &Source{path: path, pattern: pattern}
}

// Stream sends every record in the corpus to out, in file order, one at a
// time. The sequence is finite and single-pass. Stream does not close out;
// the caller owns the channel.
//
// A truncated or malformed input aborts the stream with a
// *MalformedInputError naming the offending file — partial output for the
// broken file is never silently yielded as success.
func (s *Source) Stream(ctx context.Context, out chan<- records.Record) error {
	paths, err := file.Expand(s.path, s.pattern)
	if err != nil {
		return err
	}
	for _, p := range paths {
		if err := s.streamFile(ctx, p, out); err != nil {
			return err
		}
	}
	return nil
}

func (s *Source) streamFile(ctx context.Context, path string, out chan<- records.Record) error {
	f, err := file.Open(ctx, path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := streamResults(ctx, bufio.NewReaderSize(f, 1<<20), out); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return &MalformedInputError{File: path, Err: err}
	}
	return nil
}

// streamResults walks the top-level object of r, skips keys other than
// "results" (the meta envelope), and decodes each element of the results
// array as one record.
func streamResults(ctx context.Context, r io.Reader, out chan<- records.Record) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	if err := expectDelim(dec, '{'); err != nil {
		return err
	}

	seenResults := false
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("read key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("object key is %T, want string", keyTok)
		}

		if key != resultsKey {
			if err := skipValue(dec); err != nil {
				return fmt.Errorf("skip %q: %w", key, err)
			}
			continue
		}

		seenResults = true
		if err := expectDelim(dec, '['); err != nil {
			return err
		}
		for dec.More() {
			var rec map[string]any
			if err := dec.Decode(&rec); err != nil {
				return fmt.Errorf("decode record: %w", err)
			}
			select {
			case out <- records.Record(rec):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := expectDelim(dec, ']'); err != nil {
			return err
		}
	}

	if _, err := dec.Token(); err != nil { // closing brace
		return fmt.Errorf("close object: %w", err)
	}
	if !seenResults {
		return fmt.Errorf("no %q array in input", resultsKey)
	}
	return nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("unexpected token %v, want %q", tok, want)
	}
	return nil
}

// skipValue consumes one complete JSON value token by token, without
// buffering it, by tracking bracket depth.
func skipValue(dec *json.Decoder) error {
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
		if depth == 0 {
			return nil
		}
	}
}
