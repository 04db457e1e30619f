package extract

import (
	"testing"

	"github.com/crestline/loanintake/internal/models"
)

func TestExtractCompoundUtterance(t *testing.T) {
	found := Extract("Reach me at john@example.com or 9876543210")
	if found[models.FieldEmail] != "john@example.com" {
		t.Errorf("expected email extracted, got %q", found[models.FieldEmail])
	}
	if found[models.FieldPhone] != "9876543210" {
		t.Errorf("expected phone extracted, got %q", found[models.FieldPhone])
	}
}

func TestExtractTable(t *testing.T) {
	cases := []struct {
		name      string
		utterance string
		field     models.FieldID
		want      string
	}{
		{"email", "my email is a@b.co thanks", models.FieldEmail, "a@b.co"},
		{"phone", "call 1234567890 anytime", models.FieldPhone, "1234567890"},
		{"amount dollar", "I need $5,000.00 by friday", models.FieldLoanAmount, "$5,000.00"},
		{"amount plain dollar", "give me $5000", models.FieldLoanAmount, "$5000"},
		{"dob", "born 1/2/1990", models.FieldDOB, "1/2/1990"},
		{"dob structural only", "31/13/9999", models.FieldDOB, "31/13/9999"},
		{"marital", "I am Married with kids", models.FieldMaritalStatus, "Married"},
		{"membership", "I'm a non-member currently", models.FieldMembership, "non-member"},
		{"membership member", "yes, a MEMBER", models.FieldMembership, "MEMBER"},
		{"account", "account 123456789012", models.FieldAccountNumber, "123456789012"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			found := Extract(c.utterance)
			if got := found[c.field]; got != c.want {
				t.Errorf("Extract(%q)[%s] = %q, want %q", c.utterance, c.field, got, c.want)
			}
		})
	}
}

func TestExtractIgnoresBareDigitRuns(t *testing.T) {
	cases := []struct {
		name      string
		utterance string
	}{
		{"phone digits", "Hi, I'm reachable at john@example.com or 9876543210"},
		{"date parts", "I was born 12/11/1990"},
		{"account digits", "account 123456789012"},
		{"bare number", "around 5000"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got, ok := Extract(c.utterance)[models.FieldLoanAmount]; ok {
				t.Errorf("Extract(%q) reported loan_amount = %q; digit runs without a currency symbol are not amounts", c.utterance, got)
			}
		})
	}
}

func TestExtractField(t *testing.T) {
	cases := []struct {
		name      string
		field     models.FieldID
		utterance string
		want      string
		ok        bool
	}{
		{"amount with symbol", models.FieldLoanAmount, "I need $5,000.00 by friday", "$5,000.00", true},
		{"amount bare number", models.FieldLoanAmount, "5000", "5000", true},
		{"amount words", models.FieldLoanAmount, "five thousand", "", false},
		{"phone in sentence", models.FieldPhone, "call 1234567890 anytime", "1234567890", true},
		{"email whole input", models.FieldEmail, "a@b.co", "a@b.co", true},
		{"date whole input", models.FieldDOB, "12/11/1990", "12/11/1990", true},
		{"verbatim field", models.FieldOccupation, "teacher", "", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := ExtractField(c.field, c.utterance)
			if got != c.want || ok != c.ok {
				t.Errorf("ExtractField(%s, %q) = (%q, %v), want (%q, %v)", c.field, c.utterance, got, ok, c.want, c.ok)
			}
		})
	}
}

func TestExtractNoMatch(t *testing.T) {
	found := Extract("just some words")
	if len(found) != 0 {
		t.Errorf("expected no matches, got %v", found)
	}
}

func TestExtractAccountNumberNotPhone(t *testing.T) {
	found := Extract("123456789012345")
	if _, ok := found[models.FieldPhone]; ok {
		t.Error("a 15-digit run should not be reported as a phone number")
	}
	if found[models.FieldAccountNumber] != "123456789012345" {
		t.Errorf("expected account number, got %q", found[models.FieldAccountNumber])
	}
}

func TestValidPhone(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"1234567890", true},
		{"123-456-7890", false},
		{"12345678901", false},
		{"123456789", false},
		{" 1234567890", false},
		{"", false},
	}
	for _, c := range cases {
		if got := ValidPhone(c.in); got != c.want {
			t.Errorf("ValidPhone(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestValidEmail(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"a@b.co", true},
		{"john.smith+tag@example.ORG", true},
		{"a@b", false},
		{"a.com", false},
		{"contact me at a@b.co", false}, // must be the entire input
	}
	for _, c := range cases {
		if got := ValidEmail(c.in); got != c.want {
			t.Errorf("ValidEmail(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestValidAmountAndDate(t *testing.T) {
	if !ValidAmount("$1,234.56") || !ValidAmount("5000") {
		t.Error("expected amounts to validate")
	}
	if ValidAmount("five thousand") {
		t.Error("words are not an amount")
	}
	if !ValidDate("31/13/9999") {
		t.Error("date validity is structural only")
	}
	if ValidDate("1990-01-02") {
		t.Error("ISO dates are not the expected shape")
	}
}

func TestHasPattern(t *testing.T) {
	if !HasPattern(models.FieldEmail) {
		t.Error("email should have a pattern")
	}
	if HasPattern(models.FieldOccupation) {
		t.Error("occupation should be verbatim")
	}
}
