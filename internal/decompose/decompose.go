// Package decompose flattens one raw adverse-event record into the ordered
// relational write set. It owns the field mapping from the nested source shape
// onto the fixed table columns; field coercion is delegated to normalize and
// drug identity to registry.
package decompose

import (
	"context"
	"fmt"

	"faersload/internal/normalize"
	"faersload/internal/registry"
	"faersload/internal/storage"
	"faersload/pkg/records"
)

// Write is one row destined for one table, in emission order. Parent rows
// always precede the rows referencing them within a single write set.
type Write struct {
	Table   string
	Columns []string
	Values  []any
}

// RejectedRecordError marks a record that cannot be decomposed at all. The
// caller skips the whole record and counts it; nothing partial is written.
type RejectedRecordError struct {
	Reason string
}

func (e *RejectedRecordError) Error() string {
	return "record rejected: " + e.Reason
}

// Decomposer turns records into write sets. It is stateful across records:
// the embedded drug registry deduplicates drug entities for the whole run,
// so the catalog rows for a drug appear in the write set of the report that
// first mentioned it. Not safe for concurrent use.
type Decomposer struct {
	reg    *registry.Registry
	writes []Write
}

func New() *Decomposer {
	d := &Decomposer{}
	d.reg = registry.New((*registrySink)(d))
	return d
}

// Hydrate preloads the drug registry from previously persisted catalog rows.
func (d *Decomposer) Hydrate(entries []storage.CatalogEntry) {
	d.reg.Hydrate(entries)
}

// Drugs reports the number of distinct drugs registered so far.
func (d *Decomposer) Drugs() int {
	return d.reg.Len()
}

// Decompose flattens rec into its write set. A record without a usable
// safetyreportid is rejected wholesale with RejectedRecordError.
func (d *Decomposer) Decompose(ctx context.Context, rec records.Record) ([]Write, error) {
	sid := normalize.IntStrict(rec.Value("safetyreportid"))
	if sid == nil {
		return nil, &RejectedRecordError{Reason: "missing or non-numeric safetyreportid"}
	}

	d.writes = d.writes[:0]

	d.emit(storage.TableReport, reportFields, rec)

	if normalize.String(rec.Value("authoritynumb")) != nil {
		d.row(storage.TableAuthority,
			[]string{"safetyreportid", "authoritynumb"},
			[]any{sid, normalize.String(rec.Value("authoritynumb"))})
	}

	patient := rec.Map("patient")
	d.patientSatellites(sid, patient)
	d.reactions(sid, patient)
	d.duplicates(sid, rec)
	d.summary(sid, patient)
	d.literature(sid, rec.Map("primarysource"))
	if err := d.drugs(ctx, sid, patient); err != nil {
		return nil, err
	}

	out := make([]Write, len(d.writes))
	copy(out, d.writes)
	return out, nil
}

func (d *Decomposer) row(table string, columns []string, values []any) {
	d.writes = append(d.writes, Write{Table: table, Columns: columns, Values: values})
}

// emit materializes a declarative field mapping into one row.
func (d *Decomposer) emit(table string, fields []field, src records.Record) {
	columns := make([]string, len(fields))
	values := make([]any, len(fields))
	for i, f := range fields {
		columns[i] = f.column
		values[i] = f.extract(src)
	}
	d.row(table, columns, values)
}

// patientSatellites emits the single-valued optional patient rows. Presence
// of the driving field, not its parseability, decides whether a row exists:
// an explicit null still yields a row with a null payload.
func (d *Decomposer) patientSatellites(sid any, patient records.Record) {
	if patient == nil {
		return
	}
	if patient.Has("patientonsetage") {
		d.row(storage.TablePatientAge,
			[]string{"safetyreportid", "patientonsetage", "patientonsetageunit"},
			[]any{sid,
				normalize.IntStrict(patient.Value("patientonsetage")),
				normalize.IntStrict(patient.Value("patientonsetageunit"))})
	}
	if patient.Has("patientagegroup") {
		d.row(storage.TableAgeGroup,
			[]string{"safetyreportid", "patientagegroup"},
			[]any{sid, normalize.IntStrict(patient.Value("patientagegroup"))})
	}
	if patient.Has("patientweight") {
		d.row(storage.TableWeight,
			[]string{"safetyreportid", "patientweight"},
			[]any{sid, normalize.FloatStrict(patient.Value("patientweight"))})
	}
	if patient.Has("patientsex") {
		d.row(storage.TableSex,
			[]string{"safetyreportid", "patientsex"},
			[]any{sid, normalize.IntStrict(patient.Value("patientsex"))})
	}
}

func (d *Decomposer) reactions(sid any, patient records.Record) {
	for seq, r := range patient.Maps("reaction") {
		d.row(storage.TableReaction,
			[]string{"safetyreportid", "seq", "reactionmeddrapt", "reactionmeddraversionpt", "reactionoutcome"},
			[]any{sid, int64(seq),
				normalize.String(r.Value("reactionmeddrapt")),
				normalize.FloatStrict(r.Value("reactionmeddraversionpt")),
				normalize.IntStrict(r.Value("reactionoutcome"))})
	}
}

// duplicates emits report_duplicate rows. The source field is a single
// mapping or a list of mappings depending on the record.
func (d *Decomposer) duplicates(sid any, rec records.Record) {
	groups := rec.Maps("reportduplicate")
	if groups == nil {
		if m := rec.Map("reportduplicate"); m != nil {
			groups = []records.Record{m}
		}
	}
	for seq, dup := range groups {
		d.row(storage.TableDuplicate,
			[]string{"safetyreportid", "seq", "duplicatesource", "duplicatenumb"},
			[]any{sid, int64(seq),
				normalize.String(dup.Value("duplicatesource")),
				normalize.String(dup.Value("duplicatenumb"))})
	}
}

// summary emits the narrative row when present, together with the event date
// mined out of the narrative text.
func (d *Decomposer) summary(sid any, patient records.Record) {
	sum := patient.Map("summary")
	if sum == nil || !sum.Has("narrativeincludeclinical") {
		return
	}
	narrative := normalize.Text(sum.Value("narrativeincludeclinical"))
	var extracted any
	if s, ok := narrative.(string); ok {
		extracted = normalize.ExtractCaseEventDate(s)
	}
	d.row(storage.TableSummary,
		[]string{"safetyreportid", "narrativeincludeclinical", "case_event_date_extracted"},
		[]any{sid, narrative, extracted})
}

// literature emits one row per literature reference. The source value is a
// string or a list of strings.
func (d *Decomposer) literature(sid any, primary records.Record) {
	if primary == nil {
		return
	}
	var refs []any
	switch v := primary.Value("literaturereference").(type) {
	case string:
		refs = []any{v}
	case []any:
		refs = v
	}
	seq := int64(0)
	for _, ref := range refs {
		text := normalize.String(ref)
		if text == nil {
			continue
		}
		d.row(storage.TableLiterature,
			[]string{"safetyreportid", "seq", "literature_reference"},
			[]any{sid, seq, text})
		seq++
	}
}

// drugs emits one patient_drug_history row per drug instance, resolving each
// against the registry first so catalog rows precede the instance rows that
// reference them. Unregistrable instances are skipped; the instance index
// still reflects source position.
func (d *Decomposer) drugs(ctx context.Context, sid any, patient records.Record) error {
	for idx, drug := range patient.Maps("drug") {
		id, err := d.reg.GetOrCreate(ctx, drug)
		if err != nil {
			return fmt.Errorf("drug instance %d: %w", idx, err)
		}
		if id == 0 {
			continue
		}

		columns := make([]string, 0, len(drugFields)+3)
		values := make([]any, 0, len(drugFields)+3)
		columns = append(columns, "safetyreportid", "drug_instance_index", "drug_id")
		values = append(values, sid, int64(idx), id)
		for _, f := range drugFields {
			columns = append(columns, f.column)
			values = append(values, f.extract(drug))
		}
		d.row(storage.TableDrugInstance, columns, values)
	}
	return nil
}

// registrySink routes the registry's first-creation rows into the write set
// currently under construction.
type registrySink Decomposer

func (s *registrySink) CatalogRow(_ context.Context, id int64, key, product string) error {
	(*Decomposer)(s).row(storage.TableDrugCatalog,
		[]string{"drug_id", "identity_key", "medicinalproduct"},
		[]any{id, key, product})
	return nil
}

func (s *registrySink) SubstanceRow(_ context.Context, id int64, name string) error {
	(*Decomposer)(s).row(storage.TableActiveSubst,
		[]string{"drug_id", "activesubstancename"},
		[]any{id, name})
	return nil
}

func (s *registrySink) VariantRow(_ context.Context, id int64, v registry.Variant) error {
	columns := make([]string, 0, len(v.Fields)+2)
	values := make([]any, 0, len(v.Fields)+2)
	columns = append(columns, "drug_id", "variant_hash")
	values = append(values, id, v.Hash)
	for _, col := range registry.VariantColumns() {
		if val, ok := v.Fields[col]; ok {
			columns = append(columns, col)
			values = append(values, val)
		}
	}
	(*Decomposer)(s).row(storage.TableOpenFDA, columns, values)
	return nil
}
