package decompose

import (
	"context"
	"errors"
	"testing"

	"faersload/internal/storage"
	"faersload/pkg/records"
)

func byTable(ws []Write, table string) []Write {
	var out []Write
	for _, w := range ws {
		if w.Table == table {
			out = append(out, w)
		}
	}
	return out
}

func value(t *testing.T, w Write, column string) any {
	t.Helper()
	for i, c := range w.Columns {
		if c == column {
			return w.Values[i]
		}
	}
	t.Fatalf("column %q not in write for %s: %v", column, w.Table, w.Columns)
	return nil
}

func sampleRecord() records.Record {
	return records.Record{
		"safetyreportid":    "10003301",
		"receivedateformat": "102",
		"receivedate":       "20240115",
		"receiptdateformat": "610",
		"receiptdate":       "202401",
		"serious":           "1",
		"companynumb":       " US-ACME-001 ",
		"sender":            map[string]any{"sendertype": "2", "senderorganization": "FDA-Public Use"},
		"primarysource":     map[string]any{"qualification": "5", "reportercountry": "US"},
		"patient": map[string]any{
			"patientonsetage":     "64",
			"patientonsetageunit": "801",
			"patientsex":          "2",
			"reaction": []any{
				map[string]any{"reactionmeddrapt": "Nausea", "reactionoutcome": "6"},
				map[string]any{"reactionmeddrapt": "Dizziness"},
			},
			"summary": map[string]any{
				"narrativeincludeclinical": "CASE EVENT DATE: 20231104 patient reported nausea",
			},
			"drug": []any{
				map[string]any{
					"medicinalproduct":          "ASPIRIN",
					"drugcharacterization":      "1",
					"drugstartdateformat":       "102",
					"drugstartdate":             "20231001",
					"drugstructuredosagenumb":   "81",
					"drugrecurreadministration": "2",
				},
				map[string]any{
					"medicinalproduct":     "ASPIRIN",
					"drugcharacterization": "2",
				},
			},
		},
	}
}

func TestDecomposeFullRecord(t *testing.T) {
	d := New()
	ws, err := d.Decompose(context.Background(), sampleRecord())
	if err != nil {
		t.Fatal(err)
	}

	if ws[0].Table != storage.TableReport {
		t.Fatalf("first write is %s, want report", ws[0].Table)
	}
	report := ws[0]
	if got := value(t, report, "safetyreportid"); got != int64(10003301) {
		t.Errorf("safetyreportid = %v (%T)", got, got)
	}
	if got := value(t, report, "receivedate"); got != "2024-01-15" {
		t.Errorf("receivedate = %v, want 2024-01-15", got)
	}
	if got := value(t, report, "receiptdate"); got != "2024-01-01" {
		t.Errorf("receiptdate = %v, want month-precision fill", got)
	}
	if got := value(t, report, "companynumb"); got != "US-ACME-001" {
		t.Errorf("companynumb = %v, want trimmed", got)
	}
	if got := value(t, report, "sendertype"); got != int64(2) {
		t.Errorf("sendertype = %v", got)
	}
	if got := value(t, report, "primarysource_reportercountry"); got != "US" {
		t.Errorf("reportercountry = %v", got)
	}
	if got := value(t, report, "transmissiondate"); got != nil {
		t.Errorf("absent date = %v, want nil", got)
	}

	reactions := byTable(ws, storage.TableReaction)
	if len(reactions) != 2 {
		t.Fatalf("%d reaction rows, want 2", len(reactions))
	}
	if value(t, reactions[0], "seq") != int64(0) || value(t, reactions[1], "seq") != int64(1) {
		t.Error("reaction seq not source-ordered from 0")
	}
	if value(t, reactions[1], "reactionoutcome") != nil {
		t.Error("absent outcome should be nil")
	}

	sum := byTable(ws, storage.TableSummary)
	if len(sum) != 1 {
		t.Fatalf("%d summary rows, want 1", len(sum))
	}
	if got := value(t, sum[0], "case_event_date_extracted"); got != "2023-11-04" {
		t.Errorf("extracted event date = %v", got)
	}

	if n := len(byTable(ws, storage.TablePatientAge)); n != 1 {
		t.Errorf("%d patient_age rows, want 1", n)
	}
	if n := len(byTable(ws, storage.TableWeight)); n != 0 {
		t.Errorf("patient_weight row emitted for absent field")
	}
	if n := len(byTable(ws, storage.TableAuthority)); n != 0 {
		t.Errorf("report_authority row emitted for absent field")
	}
}

func TestDecomposeDrugDedupWithinRecord(t *testing.T) {
	d := New()
	ws, err := d.Decompose(context.Background(), sampleRecord())
	if err != nil {
		t.Fatal(err)
	}

	catalog := byTable(ws, storage.TableDrugCatalog)
	if len(catalog) != 1 {
		t.Fatalf("%d catalog rows, want 1 for same-identity drugs", len(catalog))
	}
	instances := byTable(ws, storage.TableDrugInstance)
	if len(instances) != 2 {
		t.Fatalf("%d instance rows, want 2", len(instances))
	}
	id0 := value(t, instances[0], "drug_id")
	id1 := value(t, instances[1], "drug_id")
	if id0 != id1 {
		t.Errorf("instances of same drug got ids %v and %v", id0, id1)
	}
	if value(t, instances[0], "drug_instance_index") != int64(0) ||
		value(t, instances[1], "drug_instance_index") != int64(1) {
		t.Error("instance indices not 0 and 1")
	}
	if value(t, instances[0], "drugcharacterization") != int64(1) {
		t.Error("instance-level field lost in dedup")
	}
	if value(t, instances[0], "drugrecurreadministration") != int64(2) {
		t.Error("drugrecurreadministration not carried on the instance row")
	}
}

func TestDecomposeCatalogRowsOnlyOnFirstSight(t *testing.T) {
	d := New()
	ctx := context.Background()

	if _, err := d.Decompose(ctx, sampleRecord()); err != nil {
		t.Fatal(err)
	}
	rec2 := sampleRecord()
	rec2["safetyreportid"] = "10003302"
	ws2, err := d.Decompose(ctx, rec2)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(byTable(ws2, storage.TableDrugCatalog)); n != 0 {
		t.Fatalf("second report re-emitted %d catalog rows", n)
	}
	if n := len(byTable(ws2, storage.TableDrugInstance)); n != 2 {
		t.Fatalf("second report has %d instance rows, want 2", n)
	}
	if d.Drugs() != 1 {
		t.Fatalf("Drugs() = %d, want 1", d.Drugs())
	}
}

func TestDecomposeRejectsWithoutReportID(t *testing.T) {
	d := New()
	for _, rec := range []records.Record{
		{},
		{"safetyreportid": "abc"},
		{"safetyreportid": nil},
	} {
		_, err := d.Decompose(context.Background(), rec)
		var rejected *RejectedRecordError
		if !errors.As(err, &rejected) {
			t.Errorf("Decompose(%v) err = %v, want RejectedRecordError", rec, err)
		}
	}
}

func TestDecomposeUnregistrableDrugSkipped(t *testing.T) {
	d := New()
	rec := records.Record{
		"safetyreportid": "1",
		"patient": map[string]any{
			"drug": []any{
				map[string]any{"drugindication": "UNKNOWN"},
				map[string]any{"medicinalproduct": "REAL"},
			},
		},
	}
	ws, err := d.Decompose(context.Background(), rec)
	if err != nil {
		t.Fatal(err)
	}
	instances := byTable(ws, storage.TableDrugInstance)
	if len(instances) != 1 {
		t.Fatalf("%d instance rows, want 1", len(instances))
	}
	if value(t, instances[0], "drug_instance_index") != int64(1) {
		t.Error("source position lost when earlier instance skipped")
	}
}

func TestDecomposeNullSatellitePayload(t *testing.T) {
	d := New()
	rec := records.Record{
		"safetyreportid": "1",
		"patient":        map[string]any{"patientsex": nil},
	}
	ws, err := d.Decompose(context.Background(), rec)
	if err != nil {
		t.Fatal(err)
	}
	sex := byTable(ws, storage.TableSex)
	if len(sex) != 1 {
		t.Fatalf("explicit null should still produce a row, got %d", len(sex))
	}
	if value(t, sex[0], "patientsex") != nil {
		t.Error("payload should be nil")
	}
}

func TestDecomposeDuplicateShapes(t *testing.T) {
	d := New()
	asMap := records.Record{
		"safetyreportid":  "1",
		"reportduplicate": map[string]any{"duplicatesource": "FDA", "duplicatenumb": "X1"},
	}
	ws, err := d.Decompose(context.Background(), asMap)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(byTable(ws, storage.TableDuplicate)); n != 1 {
		t.Fatalf("single-map shape: %d rows, want 1", n)
	}

	asList := records.Record{
		"safetyreportid": "2",
		"reportduplicate": []any{
			map[string]any{"duplicatesource": "FDA", "duplicatenumb": "X1"},
			map[string]any{"duplicatesource": "MFR", "duplicatenumb": "X2"},
		},
	}
	ws, err = d.Decompose(context.Background(), asList)
	if err != nil {
		t.Fatal(err)
	}
	dups := byTable(ws, storage.TableDuplicate)
	if len(dups) != 2 {
		t.Fatalf("list shape: %d rows, want 2", len(dups))
	}
	if value(t, dups[1], "seq") != int64(1) {
		t.Error("second duplicate seq != 1")
	}
}

func TestDecomposeLiteratureStringAndList(t *testing.T) {
	d := New()
	rec := records.Record{
		"safetyreportid": "1",
		"primarysource": map[string]any{
			"literaturereference": []any{"Smith J. et al, 2023.", "  ", "Doe A, 2024."},
		},
	}
	ws, err := d.Decompose(context.Background(), rec)
	if err != nil {
		t.Fatal(err)
	}
	refs := byTable(ws, storage.TableLiterature)
	if len(refs) != 2 {
		t.Fatalf("%d literature rows, want 2 (blank skipped)", len(refs))
	}
	if value(t, refs[1], "seq") != int64(1) {
		t.Error("literature seq not dense after skipping blank entry")
	}
}

func TestEstimateSizeGrowsWithPayload(t *testing.T) {
	small := records.Record{"safetyreportid": "1"}
	big := sampleRecord()
	if EstimateSize(small) >= EstimateSize(big) {
		t.Fatal("estimate does not grow with record size")
	}
	if EstimateSize(records.Record{}) <= 0 {
		t.Fatal("empty record estimate should still be positive")
	}
}
