package sqlite

// schemaDDL is the fixed, externally-defined relational schema rendered for
// SQLite. Natural/composite keys carry the idempotence guarantees; there are
// no auto-increment surrogate keys anywhere.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS report (
    safetyreportid INTEGER PRIMARY KEY,
    safetyreportversion INTEGER,
    receivedateformat INTEGER,
    receivedate TEXT,
    receiptdateformat INTEGER,
    receiptdate TEXT,
    transmissiondateformat INTEGER,
    transmissiondate TEXT,
    companynumb TEXT,
    reporttype INTEGER,
    fulfillexpeditecriteria INTEGER,
    serious INTEGER,
    seriousnessdeath INTEGER,
    seriousnesslifethreatening INTEGER,
    seriousnesshospitalization INTEGER,
    seriousnessdisabling INTEGER,
    seriousnesscongenitalanomali INTEGER,
    seriousnessother INTEGER,
    primarysourcecountry TEXT,
    sendertype INTEGER,
    senderorganization TEXT,
    receivertype INTEGER,
    receiverorganization TEXT,
    primarysource_qualification INTEGER,
    primarysource_reportercountry TEXT,
    occurcountry TEXT,
    duplicate INTEGER
);

CREATE TABLE IF NOT EXISTS report_authority (
    safetyreportid INTEGER PRIMARY KEY,
    authoritynumb TEXT,
    FOREIGN KEY (safetyreportid) REFERENCES report(safetyreportid)
);

CREATE TABLE IF NOT EXISTS patient_age (
    safetyreportid INTEGER PRIMARY KEY,
    patientonsetage INTEGER,
    patientonsetageunit INTEGER,
    FOREIGN KEY (safetyreportid) REFERENCES report(safetyreportid)
);

CREATE TABLE IF NOT EXISTS patient_age_group (
    safetyreportid INTEGER PRIMARY KEY,
    patientagegroup INTEGER,
    FOREIGN KEY (safetyreportid) REFERENCES report(safetyreportid)
);

CREATE TABLE IF NOT EXISTS patient_weight (
    safetyreportid INTEGER PRIMARY KEY,
    patientweight REAL,
    FOREIGN KEY (safetyreportid) REFERENCES report(safetyreportid)
);

CREATE TABLE IF NOT EXISTS patient_sex (
    safetyreportid INTEGER PRIMARY KEY,
    patientsex INTEGER,
    FOREIGN KEY (safetyreportid) REFERENCES report(safetyreportid)
);

CREATE TABLE IF NOT EXISTS reaction (
    safetyreportid INTEGER,
    seq INTEGER,
    reactionmeddrapt TEXT,
    reactionmeddraversionpt REAL,
    reactionoutcome INTEGER,
    PRIMARY KEY (safetyreportid, seq),
    FOREIGN KEY (safetyreportid) REFERENCES report(safetyreportid)
);

CREATE TABLE IF NOT EXISTS report_duplicate (
    safetyreportid INTEGER,
    seq INTEGER,
    duplicatesource TEXT,
    duplicatenumb TEXT,
    PRIMARY KEY (safetyreportid, seq),
    FOREIGN KEY (safetyreportid) REFERENCES report(safetyreportid)
);

CREATE TABLE IF NOT EXISTS summary (
    safetyreportid INTEGER PRIMARY KEY,
    narrativeincludeclinical TEXT,
    case_event_date_extracted TEXT,
    FOREIGN KEY (safetyreportid) REFERENCES report(safetyreportid)
);

CREATE TABLE IF NOT EXISTS primarysource_literature_reference (
    safetyreportid INTEGER,
    seq INTEGER,
    literature_reference TEXT,
    PRIMARY KEY (safetyreportid, seq),
    FOREIGN KEY (safetyreportid) REFERENCES report(safetyreportid)
);

CREATE TABLE IF NOT EXISTS drug_catalog (
    drug_id INTEGER PRIMARY KEY,
    identity_key TEXT NOT NULL UNIQUE,
    medicinalproduct TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS drug_activesubstance (
    drug_id INTEGER,
    activesubstancename TEXT,
    PRIMARY KEY (drug_id, activesubstancename),
    FOREIGN KEY (drug_id) REFERENCES drug_catalog(drug_id)
);

CREATE TABLE IF NOT EXISTS drug_openfda_variant (
    drug_id INTEGER,
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
    PRIMARY KEY (drug_id, variant_hash),
    FOREIGN KEY (drug_id) REFERENCES drug_catalog(drug_id)
);

CREATE TABLE IF NOT EXISTS patient_drug_history (
    safetyreportid INTEGER,
    drug_instance_index INTEGER,
    drug_id INTEGER,
    drugauthorizationnumb TEXT,
    drugcharacterization INTEGER,
    drugstartdate TEXT,
    drugenddate TEXT,
    drugindication TEXT,
    actiondrug INTEGER,
    drugadministrationroute INTEGER,
    drugdosagetext TEXT,
    drugdosageform TEXT,
    drugstructuredosagenumb REAL,
    drugstructuredosageunit INTEGER,
    drugseparatedosagenumb REAL,
    drugseparatedosageunit TEXT,
    drugintervaldosagedefinition INTEGER,
    drugintervaldosageunitnumb REAL,
    drugcumulativedosagenumb REAL,
    drugcumulativedosageunit INTEGER,
    drugbatchnumb TEXT,
    drugtreatmentduration REAL,
    drugtreatmentdurationunit INTEGER,
    drugrecurreadministration INTEGER,
    drugadditional INTEGER,
    PRIMARY KEY (safetyreportid, drug_instance_index),
    FOREIGN KEY (safetyreportid) REFERENCES report(safetyreportid),
    FOREIGN KEY (drug_id) REFERENCES drug_catalog(drug_id)
);
`
