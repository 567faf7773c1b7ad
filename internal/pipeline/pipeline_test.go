package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"faersload/internal/config"
	"faersload/internal/storage"
)

// fakeRepo is an in-memory Repository keyed by each table's natural key. It
// survives across Run calls so re-run semantics can be asserted.
type fakeRepo struct {
	rows    map[string]map[string][]any
	catalog []storage.CatalogEntry

	begins, commits, upserts int
	failTable                string
	onInsert                 func(table string)
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: map[string]map[string][]any{}}
}

func (f *fakeRepo) key(table string, columns []string, values []any) string {
	byCol := map[string]any{}
	for i, c := range columns {
		byCol[c] = values[i]
	}
	parts := make([]string, 0, len(storage.Keys[table]))
	for _, k := range storage.Keys[table] {
		parts = append(parts, fmt.Sprint(byCol[k]))
	}
	return strings.Join(parts, "|")
}

func (f *fakeRepo) EnsureSchema(context.Context) error { return nil }

func (f *fakeRepo) InsertIgnore(_ context.Context, table string, columns []string, values []any) (storage.Outcome, error) {
	if table == f.failTable {
		return 0, errors.New("injected write failure")
	}
	t := f.rows[table]
	if t == nil {
		t = map[string][]any{}
		f.rows[table] = t
	}
	k := f.key(table, columns, values)
	if _, ok := t[k]; ok {
		return storage.OutcomeDuplicate, nil
	}
	t[k] = values
	if table == storage.TableDrugCatalog {
		f.catalog = append(f.catalog, storage.CatalogEntry{
			ID:  values[0].(int64),
			Key: values[1].(string),
		})
	}
	if f.onInsert != nil {
		f.onInsert(table)
	}
	return storage.OutcomeInserted, nil
}

func (f *fakeRepo) Upsert(_ context.Context, table string, _, columns []string, values []any) error {
	f.upserts++
	t := f.rows[table]
	if t == nil {
		t = map[string][]any{}
		f.rows[table] = t
	}
	t[f.key(table, columns, values)] = values
	return nil
}

func (f *fakeRepo) Begin(context.Context) error  { f.begins++; return nil }
func (f *fakeRepo) Commit(context.Context) error { f.commits++; return nil }

func (f *fakeRepo) DrugCatalog(context.Context) ([]storage.CatalogEntry, error) {
	return f.catalog, nil
}

func (f *fakeRepo) Close() {}

func (f *fakeRepo) count(table string) int { return len(f.rows[table]) }

// install wires repo in through the constructor seam for one test.
func install(t *testing.T, repo storage.Repository) {
	t.Helper()
	orig := newRepositoryFn
	newRepositoryFn = func(context.Context, storage.Config) (storage.Repository, error) {
		return repo, nil
	}
	t.Cleanup(func() { newRepositoryFn = orig })
}

func writeInput(t *testing.T, reports ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.json")
	doc := `{"meta":{"disclaimer":"test"},"results":[` + strings.Join(reports, ",") + `]}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func reportJSON(id string) string {
	return fmt.Sprintf(`{
		"safetyreportid": %q,
		"serious": "1",
		"receivedateformat": "102",
		"receivedate": "20240115",
		"patient": {
			"patientsex": "2",
			"reaction": [{"reactionmeddrapt": "Nausea"}],
			"drug": [{"medicinalproduct": "ASPIRIN", "drugcharacterization": "1"}]
		}
	}`, id)
}

func spec(inputPath string) config.Pipeline {
	p := config.Pipeline{
		Job:     "test-load",
		Source:  config.Source{Kind: "file", File: config.SourceFile{Path: inputPath}},
		Storage: config.Storage{Kind: "fake", DB: config.DBConfig{DSN: "fake"}},
	}
	p.ApplyDefaults()
	return p
}

func TestRunLoadsRecords(t *testing.T) {
	repo := newFakeRepo()
	install(t, repo)

	input := writeInput(t, reportJSON("1001"), reportJSON("1002"))
	stats, err := Run(context.Background(), spec(input))
	if err != nil {
		t.Fatal(err)
	}

	if stats.Processed != 2 || stats.Inserted != 2 {
		t.Fatalf("stats = %+v, want processed=2 inserted=2", stats)
	}
	if stats.Drugs != 1 {
		t.Fatalf("drugs = %d, want 1 (same drug in both reports)", stats.Drugs)
	}
	if repo.count(storage.TableReport) != 2 {
		t.Errorf("%d report rows", repo.count(storage.TableReport))
	}
	if repo.count(storage.TableReaction) != 2 {
		t.Errorf("%d reaction rows", repo.count(storage.TableReaction))
	}
	if repo.count(storage.TableDrugCatalog) != 1 {
		t.Errorf("%d catalog rows", repo.count(storage.TableDrugCatalog))
	}
	if repo.commits == 0 || repo.begins == 0 {
		t.Error("no transactions used")
	}
}

func TestRunIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	install(t, repo)

	input := writeInput(t, reportJSON("1001"))
	if _, err := Run(context.Background(), spec(input)); err != nil {
		t.Fatal(err)
	}

	stats, err := Run(context.Background(), spec(input))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Duplicates != 1 || stats.Inserted != 0 {
		t.Fatalf("rerun stats = %+v, want duplicates=1 inserted=0", stats)
	}
	if repo.count(storage.TableReport) != 1 || repo.count(storage.TableDrugCatalog) != 1 {
		t.Fatalf("rerun duplicated rows: %d reports, %d catalog",
			repo.count(storage.TableReport), repo.count(storage.TableDrugCatalog))
	}
	// Hydration must reuse the persisted drug id space.
	if stats.Drugs != 1 {
		t.Fatalf("drugs after hydrate = %d, want 1", stats.Drugs)
	}
}

func TestRunReplacePolicyUpsertsReport(t *testing.T) {
	repo := newFakeRepo()
	install(t, repo)

	input := writeInput(t, reportJSON("1001"))
	s := spec(input)
	s.Storage.Policy = "replace"

	stats, err := Run(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	if repo.upserts != 1 {
		t.Fatalf("upserts = %d, want 1 (report row only)", repo.upserts)
	}
	if stats.Inserted != 1 || stats.Duplicates != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestRunHonorsLimit(t *testing.T) {
	repo := newFakeRepo()
	install(t, repo)

	input := writeInput(t, reportJSON("1"), reportJSON("2"), reportJSON("3"))
	s := spec(input)
	s.Runtime.Limit = 2

	stats, err := Run(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Processed != 2 {
		t.Fatalf("processed = %d, want 2", stats.Processed)
	}
	if repo.count(storage.TableReport) != 2 {
		t.Fatalf("%d report rows, want 2", repo.count(storage.TableReport))
	}
}

func TestRunCountsRejectedRecords(t *testing.T) {
	repo := newFakeRepo()
	install(t, repo)

	input := writeInput(t, `{"serious": "1"}`, reportJSON("1001"))
	stats, err := Run(context.Background(), spec(input))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Rejected != 1 || stats.Inserted != 1 {
		t.Fatalf("stats = %+v, want rejected=1 inserted=1", stats)
	}
}

func TestRunDivertsOversizedRecords(t *testing.T) {
	repo := newFakeRepo()
	install(t, repo)

	sidePath := filepath.Join(t.TempDir(), "oversized.jsonl")
	big := fmt.Sprintf(`{"safetyreportid": "9", "patient": {"summary": {"narrativeincludeclinical": %q}}}`,
		strings.Repeat("x", 4096))
	input := writeInput(t, big, reportJSON("1001"))

	s := spec(input)
	s.Runtime.MaxPayloadBytes = 1024
	s.Runtime.OversizedPath = sidePath

	stats, err := Run(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Oversized != 1 || stats.Inserted != 1 {
		t.Fatalf("stats = %+v, want oversized=1 inserted=1", stats)
	}

	raw, err := os.ReadFile(sidePath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"safetyreportid":"9"`) {
		t.Fatalf("side file missing diverted id: %s", raw)
	}
	if repo.count(storage.TableReport) != 1 {
		t.Error("oversized record still wrote rows")
	}
}

func TestRunContinuesPastWriteFailures(t *testing.T) {
	repo := newFakeRepo()
	repo.failTable = storage.TableReaction
	install(t, repo)

	input := writeInput(t, reportJSON("1001"), reportJSON("1002"))
	stats, err := Run(context.Background(), spec(input))
	if err != nil {
		t.Fatal(err)
	}
	if stats.WriteErrors != 2 || stats.Inserted != 0 {
		t.Fatalf("stats = %+v, want write_errors=2", stats)
	}
}

func TestRunPropagatesStreamError(t *testing.T) {
	repo := newFakeRepo()
	install(t, repo)

	path := filepath.Join(t.TempDir(), "input.json")
	if err := os.WriteFile(path, []byte(`{"results": [{"safetyreportid"`), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Run(context.Background(), spec(path)); err == nil {
		t.Fatal("truncated input did not fail the run")
	}
}

func TestRunCancellation(t *testing.T) {
	repo := newFakeRepo()
	install(t, repo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	input := writeInput(t, reportJSON("1001"))
	if _, err := Run(ctx, spec(input)); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestRunCancellationCommitsOpenBatch(t *testing.T) {
	repo := newFakeRepo()
	install(t, repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	repo.onInsert = func(table string) {
		if table == storage.TableReport {
			cancel()
		}
	}

	input := writeInput(t, reportJSON("1001"), reportJSON("1002"))
	stats, err := Run(ctx, spec(input))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if stats.Processed != 1 {
		t.Fatalf("processed = %d, want 1", stats.Processed)
	}
	// The record written before the cancel must not be rolled back.
	if repo.commits == 0 {
		t.Fatal("open batch was not committed on cancellation")
	}
	if repo.count(storage.TableReport) != 1 {
		t.Fatalf("%d report rows survived, want 1", repo.count(storage.TableReport))
	}
}
