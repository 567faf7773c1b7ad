package storage

// Target relation names. The schema itself is fixed and externally defined;
// each backend carries its own DDL rendering of it, but table names and
// natural keys are shared so the decomposer and the document backend agree on
// identity.
const (
	TableReport        = "report"
	TableAuthority     = "report_authority"
	TablePatientAge    = "patient_age"
	TableAgeGroup      = "patient_age_group"
	TableWeight        = "patient_weight"
	TableSex           = "patient_sex"
	TableReaction      = "reaction"
	TableDuplicate     = "report_duplicate"
	TableSummary       = "summary"
	TableLiterature    = "primarysource_literature_reference"
	TableDrugCatalog   = "drug_catalog"
	TableActiveSubst   = "drug_activesubstance"
	TableOpenFDA       = "drug_openfda_variant"
	TableDrugInstance  = "patient_drug_history"
)

// Keys maps every relation to its natural key columns. Idempotence of
// re-runs rests on these keys, never on auto-increment ids: repeated groups
// carry an explicit seq column reflecting source order.
var Keys = map[string][]string{
	TableReport:       {"safetyreportid"},
	TableAuthority:    {"safetyreportid"},
	TablePatientAge:   {"safetyreportid"},
	TableAgeGroup:     {"safetyreportid"},
	TableWeight:       {"safetyreportid"},
	TableSex:          {"safetyreportid"},
	TableReaction:     {"safetyreportid", "seq"},
	TableDuplicate:    {"safetyreportid", "seq"},
	TableSummary:      {"safetyreportid"},
	TableLiterature:   {"safetyreportid", "seq"},
	TableDrugCatalog:  {"drug_id"},
	TableActiveSubst:  {"drug_id", "activesubstancename"},
	TableOpenFDA:      {"drug_id", "variant_hash"},
	TableDrugInstance: {"safetyreportid", "drug_instance_index"},
}
