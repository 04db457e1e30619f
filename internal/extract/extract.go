// Package extract pulls typed field values out of free-text utterances and
// provides the strict validators applied to a narrow set of fields.
package extract

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/crestline/loanintake/internal/models"
)

// Patterns are compiled once at package init. The substring patterns are
// used for extraction; the full-string forms are the validators. The
// substring amount pattern requires the currency symbol so that phone
// numbers, date parts, and account numbers are never misread as amounts; a
// bare number is only accepted as an amount through ValidAmount, when the
// amount field itself is being answered.
var (
	emailPattern    = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePattern    = regexp.MustCompile(`\b\d{10}\b`)
	amountPattern   = regexp.MustCompile(`\$\d+(?:,\d{3})*(?:\.\d{2})?`)
	datePattern     = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{4}\b`)
	maritalPattern  = regexp.MustCompile(`(?i)\b(married|single|divorced|widowed)\b`)
	memberPattern   = regexp.MustCompile(`(?i)\b(non-member|member)\b`)
	accountPattern  = regexp.MustCompile(`\b\d{11,16}\b`)
	phoneFullMatch  = regexp.MustCompile(`^\d{10}$`)
	emailFullMatch  = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	amountFullMatch = regexp.MustCompile(`^\$?\d+(?:,\d{3})*(?:\.\d{2})?$`)
	dateFullMatch   = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`)
)

// patternFields maps each extractable field to its substring pattern, in a
// fixed order so extraction is deterministic.
var patternFields = []struct {
	id models.FieldID
	re *regexp.Regexp
}{
	{models.FieldEmail, emailPattern},
	{models.FieldPhone, phonePattern},
	{models.FieldLoanAmount, amountPattern},
	{models.FieldDOB, datePattern},
	{models.FieldMaritalStatus, maritalPattern},
	{models.FieldMembership, memberPattern},
	{models.FieldAccountNumber, accountPattern},
}

// Extract applies every known pattern independently to the utterance and
// returns the raw matched substring for each field that matched. Absence of
// a key means the field was not found in this utterance, not that it is
// invalid. A single utterance may populate several fields at once.
func Extract(utterance string) models.AnswerMap {
	found := make(models.AnswerMap)
	for _, pf := range patternFields {
		if m := pf.re.FindString(utterance); m != "" {
			found[pf.id] = m
		}
	}
	// An 11-16 digit account number also contains a 10 digit run; prefer the
	// account interpretation when the longer pattern matched the same text.
	if acct, ok := found[models.FieldAccountNumber]; ok {
		if phone, okPhone := found[models.FieldPhone]; okPhone && len(acct) > len(phone) {
			delete(found, models.FieldPhone)
		}
	}
	if len(found) > 0 {
		slog.Debug("Extract matched fields", "count", len(found))
	}
	return found
}

// ExtractField pulls a value for one specific field out of an utterance
// given in answer to that field's question. The field's substring pattern
// is tried first; failing that, the whole trimmed input is accepted when it
// passes the field's validator. The validator fallback is what lets a bare
// "5000" answer the amount question even though unmarked digit runs are
// ignored during compound extraction.
func ExtractField(id models.FieldID, utterance string) (string, bool) {
	for _, pf := range patternFields {
		if pf.id != id {
			continue
		}
		if m := pf.re.FindString(utterance); m != "" {
			return m, true
		}
		break
	}

	trimmed := strings.TrimSpace(utterance)
	switch id {
	case models.FieldPhone:
		if ValidPhone(trimmed) {
			return trimmed, true
		}
	case models.FieldEmail:
		if ValidEmail(trimmed) {
			return trimmed, true
		}
	case models.FieldLoanAmount:
		if ValidAmount(trimmed) {
			return trimmed, true
		}
	case models.FieldDOB:
		if ValidDate(trimmed) {
			return trimmed, true
		}
	}
	return "", false
}

// HasPattern reports whether id has an extraction pattern. Fields without
// one are accepted as the full raw utterance verbatim.
func HasPattern(id models.FieldID) bool {
	for _, pf := range patternFields {
		if pf.id == id {
			return true
		}
	}
	return false
}

// ValidPhone reports whether the entire input is exactly 10 ASCII digits.
func ValidPhone(phone string) bool {
	return phoneFullMatch.MatchString(phone)
}

// ValidEmail reports whether the entire input matches the address shape.
func ValidEmail(email string) bool {
	return emailFullMatch.MatchString(email)
}

// ValidAmount reports whether the entire input is a currency amount.
func ValidAmount(amount string) bool {
	return amountFullMatch.MatchString(amount)
}

// ValidDate reports whether the entire input has the D/M/YYYY shape. No
// calendar validity check is applied; 31/13/9999 parses structurally.
func ValidDate(date string) bool {
	return dateFullMatch.MatchString(date)
}
