package registry

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"faersload/pkg/records"
)

// Identity-key policy (fixed): a drug's identity is the composite of its
// canonicalized product name, the sorted set of its canonicalized active
// substance names, and its regulatory authorization number when present.
// Records describing the same administration may carry different optional
// metadata (dosage, openfda variants); none of that participates in identity.
// Canonicalization folds diacritics to ASCII, uppercases, and collapses
// whitespace, so "Doliprane", "DOLIPRANE " and "doliprané" key identically.

// Key field separators, chosen to never occur in source text.
const (
	fieldSep = "\x1f"
	listSep  = "\x1e"
)

// asciiFold strips combining marks after NFD decomposition.
var asciiFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// IdentityKey computes the identity key for a raw drug record. It returns ""
// when the record has no usable product name, which marks the entity
// unregistrable.
func IdentityKey(drug records.Record) string {
	name := canonical(drug.String("medicinalproduct"))
	if name == "" {
		return ""
	}

	subs := substanceNames(drug)
	appnum := canonical(drug.String("drugauthorizationnumb"))

	return name + fieldSep + strings.Join(subs, listSep) + fieldSep + appnum
}

// substanceNames extracts the distinct, sorted, canonical active substance
// names. The raw field may be a single mapping or a list of mappings; both
// shapes (and junk entries) are tolerated.
func substanceNames(drug records.Record) []string {
	seen := map[string]struct{}{}

	add := func(r records.Record) {
		if name := canonical(r.String("activesubstancename")); name != "" {
			seen[name] = struct{}{}
		}
	}
	if m := drug.Map("activesubstance"); m != nil {
		add(m)
	} else {
		for _, m := range drug.Maps("activesubstance") {
			add(m)
		}
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// canonical folds s to uppercase ASCII with single-space word separation.
func canonical(s string) string {
	folded, _, err := transform.String(asciiFold, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToUpper(folded)), " ")
}
