package postgres

import "strings"

// renderDDL returns the fixed relational schema rendered for Postgres,
// qualified with the given schema name when non-empty. The statements use
// IF NOT EXISTS so bootstrap is safe to repeat.
func renderDDL(schema string) string {
	prefix := ""
	if schema != "" {
		prefix = pgIdent(schema) + "."
	}
	return strings.ReplaceAll(ddlTemplate, "{{.}}", prefix)
}

const ddlTemplate = `
CREATE TABLE IF NOT EXISTS {{.}}report (
    safetyreportid BIGINT PRIMARY KEY,
    safetyreportversion BIGINT,
    receivedateformat BIGINT,
    receivedate TEXT,
    receiptdateformat BIGINT,
    receiptdate TEXT,
    transmissiondateformat BIGINT,
    transmissiondate TEXT,
    companynumb TEXT,
    reporttype BIGINT,
    fulfillexpeditecriteria BIGINT,
    serious BIGINT,
    seriousnessdeath BIGINT,
    seriousnesslifethreatening BIGINT,
    seriousnesshospitalization BIGINT,
    seriousnessdisabling BIGINT,
    seriousnesscongenitalanomali BIGINT,
    seriousnessother BIGINT,
    primarysourcecountry TEXT,
    sendertype BIGINT,
    senderorganization TEXT,
    receivertype BIGINT,
    receiverorganization TEXT,
    primarysource_qualification BIGINT,
    primarysource_reportercountry TEXT,
    occurcountry TEXT,
    duplicate BIGINT
);

CREATE TABLE IF NOT EXISTS {{.}}report_authority (
    safetyreportid BIGINT PRIMARY KEY REFERENCES {{.}}report(safetyreportid),
    authoritynumb TEXT
);

CREATE TABLE IF NOT EXISTS {{.}}patient_age (
    safetyreportid BIGINT PRIMARY KEY REFERENCES {{.}}report(safetyreportid),
    patientonsetage BIGINT,
    patientonsetageunit BIGINT
);

CREATE TABLE IF NOT EXISTS {{.}}patient_age_group (
    safetyreportid BIGINT PRIMARY KEY REFERENCES {{.}}report(safetyreportid),
    patientagegroup BIGINT
);

CREATE TABLE IF NOT EXISTS {{.}}patient_weight (
    safetyreportid BIGINT PRIMARY KEY REFERENCES {{.}}report(safetyreportid),
    patientweight DOUBLE PRECISION
);

CREATE TABLE IF NOT EXISTS {{.}}patient_sex (
    safetyreportid BIGINT PRIMARY KEY REFERENCES {{.}}report(safetyreportid),
    patientsex BIGINT
);

CREATE TABLE IF NOT EXISTS {{.}}reaction (
    safetyreportid BIGINT REFERENCES {{.}}report(safetyreportid),
    seq BIGINT,
    reactionmeddrapt TEXT,
    reactionmeddraversionpt DOUBLE PRECISION,
    reactionoutcome BIGINT,
    PRIMARY KEY (safetyreportid, seq)
);

CREATE TABLE IF NOT EXISTS {{.}}report_duplicate (
    safetyreportid BIGINT REFERENCES {{.}}report(safetyreportid),
    seq BIGINT,
    duplicatesource TEXT,
    duplicatenumb TEXT,
    PRIMARY KEY (safetyreportid, seq)
);

CREATE TABLE IF NOT EXISTS {{.}}summary (
    safetyreportid BIGINT PRIMARY KEY REFERENCES {{.}}report(safetyreportid),
    narrativeincludeclinical TEXT,
    case_event_date_extracted TEXT
);

CREATE TABLE IF NOT EXISTS {{.}}primarysource_literature_reference (
    safetyreportid BIGINT REFERENCES {{.}}report(safetyreportid),
    seq BIGINT,
    literature_reference TEXT,
    PRIMARY KEY (safetyreportid, seq)
);

CREATE TABLE IF NOT EXISTS {{.}}drug_catalog (
    drug_id BIGINT PRIMARY KEY,
    identity_key TEXT NOT NULL UNIQUE,
    medicinalproduct TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS {{.}}drug_activesubstance (
    drug_id BIGINT REFERENCES {{.}}drug_catalog(drug_id),
    activesubstancename TEXT,
    PRIMARY KEY (drug_id, activesubstancename)
);

CREATE TABLE IF NOT EXISTS {{.}}drug_openfda_variant (
    drug_id BIGINT REFERENCES {{.}}drug_catalog(drug_id),
    variant_hash TEXT,
    application_number TEXT,
    brand_name TEXT,
    generic_name TEXT,
    manufacturer_name TEXT,
    nui TEXT,
    package_ndc TEXT,
    pharm_class_cs TEXT,
    pharm_class_epc TEXT,
    pharm_class_moa TEXT,
    pharm_class_pe TEXT,
    product_ndc TEXT,
    product_type TEXT,
    route TEXT,
    rxcui TEXT,
    spl_id TEXT,
    spl_set_id TEXT,
    substance_name TEXT,
    unii TEXT,
    PRIMARY KEY (drug_id, variant_hash)
);

CREATE TABLE IF NOT EXISTS {{.}}patient_drug_history (
    safetyreportid BIGINT REFERENCES {{.}}report(safetyreportid),
    drug_instance_index BIGINT,
    drug_id BIGINT REFERENCES {{.}}drug_catalog(drug_id),
    drugauthorizationnumb TEXT,
    drugcharacterization BIGINT,
    drugstartdate TEXT,
    drugenddate TEXT,
    drugindication TEXT,
    actiondrug BIGINT,
    drugadministrationroute BIGINT,
    drugdosagetext TEXT,
    drugdosageform TEXT,
    drugstructuredosagenumb DOUBLE PRECISION,
    drugstructuredosageunit BIGINT,
    drugseparatedosagenumb DOUBLE PRECISION,
    drugseparatedosageunit TEXT,
    drugintervaldosagedefinition BIGINT,
    drugintervaldosageunitnumb DOUBLE PRECISION,
    drugcumulativedosagenumb DOUBLE PRECISION,
    drugcumulativedosageunit BIGINT,
    drugbatchnumb TEXT,
    drugtreatmentduration DOUBLE PRECISION,
    drugtreatmentdurationunit BIGINT,
    drugrecurreadministration BIGINT,
    drugadditional BIGINT,
    PRIMARY KEY (safetyreportid, drug_instance_index)
);
`
