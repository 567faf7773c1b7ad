package normalize

import (
	"regexp"
	"strings"
	"time"
)

// FDA date format codes carried alongside raw date digit strings.
// Partial dates are anchored to the start of their period, never interpolated.
const (
	codeExactDate = "102" // YYYYMMDD
	codeYearMonth = "610" // YYYYMM, day forced to 01
	codeYearOnly  = "602" // YYYY, month and day forced to 01
)

// DateByFormatCode converts a raw digit string plus a 3-digit format code into
// an ISO YYYY-MM-DD string. Any unrecognized code, length mismatch, or
// non-digit input yields nil. Both arguments tolerate non-string values.
func DateByFormatCode(digits, code any) any {
	d, ok1 := stringish(digits)
	c, ok2 := stringish(code)
	if !ok1 || !ok2 || !allDigits(d) {
		return nil
	}
	switch c {
	case codeExactDate:
		if len(d) == 8 {
			return d[:4] + "-" + d[4:6] + "-" + d[6:]
		}
	case codeYearMonth:
		if len(d) == 6 {
			return d[:4] + "-" + d[4:6] + "-01"
		}
	case codeYearOnly:
		if len(d) == 4 {
			return d + "-01-01"
		}
	}
	return nil
}

// caseEventDateRe matches the literal narrative marker followed by an 8-digit
// date token. Only the first match is used.
var caseEventDateRe = regexp.MustCompile(`CASE EVENT DATE[:\s]*?(\d{8})`)

// ExtractCaseEventDate scans clinical narrative text for an embedded
// "CASE EVENT DATE" token and returns its date in ISO form. The token must be
// a real calendar date; otherwise nil is returned.
func ExtractCaseEventDate(text string) any {
	m := caseEventDateRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	raw := m[1]
	if _, err := time.Parse("20060102", raw); err != nil {
		return nil
	}
	return raw[:4] + "-" + raw[4:6] + "-" + raw[6:]
}

func stringish(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, true
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
