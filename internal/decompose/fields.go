package decompose

import (
	"faersload/internal/normalize"
	"faersload/pkg/records"
)

// field binds one target column to its extraction from a source record.
type field struct {
	column  string
	extract func(records.Record) any
}

func intf(key string) field {
	return field{key, func(r records.Record) any { return normalize.IntStrict(r.Value(key)) }}
}

func floatf(key string) field {
	return field{key, func(r records.Record) any { return normalize.FloatStrict(r.Value(key)) }}
}

func strf(key string) field {
	return field{key, func(r records.Record) any { return normalize.String(r.Value(key)) }}
}

// datef normalizes a raw digit-string date according to its sibling format
// code field.
func datef(key, formatKey string) field {
	return field{key, func(r records.Record) any {
		return normalize.DateByFormatCode(r.Value(key), r.Value(formatKey))
	}}
}

// nested extracts from a sub-mapping, writing to column. coerce is one of the
// normalize coercions.
func nested(column, mapKey, key string, coerce func(any) any) field {
	return field{column, func(r records.Record) any {
		m := r.Map(mapKey)
		if m == nil {
			return nil
		}
		return coerce(m.Value(key))
	}}
}

// reportFields maps the report table from the record root. Sender, receiver
// and primary source are nested objects in the source but columns here.
var reportFields = []field{
	intf("safetyreportid"),
	intf("safetyreportversion"),
	intf("receivedateformat"),
	datef("receivedate", "receivedateformat"),
	intf("receiptdateformat"),
	datef("receiptdate", "receiptdateformat"),
	intf("transmissiondateformat"),
	datef("transmissiondate", "transmissiondateformat"),
	strf("companynumb"),
	intf("reporttype"),
	intf("fulfillexpeditecriteria"),
	intf("serious"),
	intf("seriousnessdeath"),
	intf("seriousnesslifethreatening"),
	intf("seriousnesshospitalization"),
	intf("seriousnessdisabling"),
	intf("seriousnesscongenitalanomali"),
	intf("seriousnessother"),
	strf("primarysourcecountry"),
	nested("sendertype", "sender", "sendertype", normalize.IntStrict),
	nested("senderorganization", "sender", "senderorganization", normalize.String),
	nested("receivertype", "receiver", "receivertype", normalize.IntStrict),
	nested("receiverorganization", "receiver", "receiverorganization", normalize.String),
	nested("primarysource_qualification", "primarysource", "qualification", normalize.IntStrict),
	nested("primarysource_reportercountry", "primarysource", "reportercountry", normalize.String),
	strf("occurcountry"),
	intf("duplicate"),
}

// drugFields maps the per-instance columns of patient_drug_history. The
// identity columns (safetyreportid, drug_instance_index, drug_id) are
// prepended by the caller.
var drugFields = []field{
	strf("drugauthorizationnumb"),
	intf("drugcharacterization"),
	datef("drugstartdate", "drugstartdateformat"),
	datef("drugenddate", "drugenddateformat"),
	strf("drugindication"),
	intf("actiondrug"),
	intf("drugadministrationroute"),
	strf("drugdosagetext"),
	strf("drugdosageform"),
	floatf("drugstructuredosagenumb"),
	intf("drugstructuredosageunit"),
	floatf("drugseparatedosagenumb"),
	strf("drugseparatedosageunit"),
	intf("drugintervaldosagedefinition"),
	floatf("drugintervaldosageunitnumb"),
	floatf("drugcumulativedosagenumb"),
	intf("drugcumulativedosageunit"),
	strf("drugbatchnumb"),
	floatf("drugtreatmentduration"),
	intf("drugtreatmentdurationunit"),
	intf("drugrecurreadministration"),
	intf("drugadditional"),
}
