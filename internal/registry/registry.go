// Package registry supplies the ordered loan application field definitions
// and their question prompts.
//
// The registry is immutable configuration built once at startup; all lookups
// are pure functions over it.
package registry

import (
	"fmt"
	"math/rand"

	"github.com/crestline/loanintake/internal/models"
)

// Field describes one required applicant field: its prompts, whether a
// document upload answers it, and an optional condition gating whether it is
// asked at all for a given session.
type Field struct {
	ID      models.FieldID
	Prompts []string
	Upload  bool
	// When reports whether the field applies given the answers so far.
	// Nil means always asked.
	When func(models.AnswerMap) bool
}

// Registry holds the fixed, ordered field list.
type Registry struct {
	fields []Field
	byID   map[models.FieldID]*Field
}

// New builds the default loan application registry.
func New() *Registry {
	return newWithFields(defaultFields())
}

func newWithFields(fields []Field) *Registry {
	r := &Registry{fields: fields, byID: make(map[models.FieldID]*Field, len(fields))}
	for i := range r.fields {
		r.byID[r.fields[i].ID] = &r.fields[i]
	}
	return r
}

// Fields returns the field definitions in question order.
func (r *Registry) Fields() []Field {
	return r.fields
}

// Lookup returns the field definition for id.
func (r *Registry) Lookup(id models.FieldID) (Field, bool) {
	f, ok := r.byID[id]
	if !ok {
		return Field{}, false
	}
	return *f, true
}

// IsUploadField reports whether id is answered by a document upload.
func (r *Registry) IsUploadField(id models.FieldID) bool {
	f, ok := r.byID[id]
	return ok && f.Upload
}

// NextUnfilled scans the fixed order and returns the first field absent from
// answers whose condition holds, or false when every applicable field has a
// value.
func (r *Registry) NextUnfilled(answers models.AnswerMap) (models.FieldID, bool) {
	for i := range r.fields {
		f := &r.fields[i]
		if _, filled := answers[f.ID]; filled {
			continue
		}
		if f.When != nil && !f.When(answers) {
			continue
		}
		return f.ID, true
	}
	return "", false
}

// PromptFor returns a question prompt for id, picked uniformly at random
// when the field has more than one template.
func (r *Registry) PromptFor(id models.FieldID) string {
	f, ok := r.byID[id]
	if !ok || len(f.Prompts) == 0 {
		return fmt.Sprintf("Please provide a value for %s.", id)
	}
	if len(f.Prompts) == 1 {
		return f.Prompts[0]
	}
	return f.Prompts[rand.Intn(len(f.Prompts))]
}

// promoApplied gates the promotion code question on an affirmative answer to
// promotion_applied.
func promoApplied(answers models.AnswerMap) bool {
	return models.IsAffirmative(answers[models.FieldPromotion])
}

func defaultFields() []Field {
	return []Field{
		{ID: models.FieldName, Prompts: []string{"What is your full name?"}},
		{ID: models.FieldPhone, Prompts: []string{"Please provide your 10-digit contact number."}},
		{ID: models.FieldEmail, Prompts: []string{"What is your email address?"}},
		{ID: models.FieldLoanPurpose, Prompts: []string{
			"What are you planning to use the loan for?",
			"What is the purpose of this loan?",
		}},
		{ID: models.FieldIncome, Prompts: []string{"What's your primary monthly income?"}},
		{ID: models.FieldDOB, Prompts: []string{"What is your date of birth? (DD/MM/YYYY)"}},
		{ID: models.FieldOccupation, Prompts: []string{"What is your occupation?"}},
		{ID: models.FieldAddress, Prompts: []string{"What is your current address?"}},
		{ID: models.FieldLoanAmount, Prompts: []string{
			"What loan amount are you requesting?",
			"How much would you like to borrow?",
		}},
		{ID: models.FieldPromotion, Prompts: []string{"Did you use a promotional code? (yes/no)"}},
		{ID: models.FieldPromoCode, Prompts: []string{"Please enter the promotional code."}, When: promoApplied},
		{ID: models.FieldHowHeard, Prompts: []string{"How did you find out about us?"}},
		{ID: models.FieldMembership, Prompts: []string{"Are you a member or non-member?"}},
		{ID: models.FieldAccountNumber, Prompts: []string{"What is your account number?"}},
		{ID: models.FieldMaritalStatus, Prompts: []string{"What is your marital status? (married/single/divorced/widowed)"}},
		{ID: models.FieldWhatsAppOptIn, Prompts: []string{"Would you like updates via WhatsApp? (yes/no)"}},
		{ID: models.FieldEmployerName, Prompts: []string{"What is your employer's name?"}},
		{ID: models.FieldSelfEmployed, Prompts: []string{"Are you self-employed? (yes/no)"}},
		{ID: models.FieldAddlIncome, Prompts: []string{"Do you have any other sources of income?"}},
		{ID: models.FieldTotalIncome, Prompts: []string{"What is your total monthly income?"}},
		{ID: models.FieldCommitments, Prompts: []string{"Do you have any financial commitments?"}},
		{ID: models.FieldDeclaration, Prompts: []string{"Do you confirm that the provided information is true? (yes/no)"}},
		{ID: models.FieldUploadedIDs, Prompts: []string{"Please upload your ID document (PDF)."}, Upload: true},
		{ID: models.FieldUploadedDocs, Prompts: []string{"Please upload supporting loan documents (PDF)."}, Upload: true},
		{ID: models.FieldRef1Name, Prompts: []string{"Who is your first reference?"}},
		{ID: models.FieldRef1Relation, Prompts: []string{"What is your relationship with the first reference?"}},
		{ID: models.FieldRef1Address, Prompts: []string{"What is the address of your first reference?"}},
		{ID: models.FieldRef1Contact, Prompts: []string{"What is the contact number of your first reference?"}},
		{ID: models.FieldRef1Occupation, Prompts: []string{"What is the occupation of your first reference?"}},
		{ID: models.FieldRef2Name, Prompts: []string{"Who is your second reference?"}},
		{ID: models.FieldRef2Relation, Prompts: []string{"What is your relationship with the second reference?"}},
		{ID: models.FieldRef2Address, Prompts: []string{"What is the address of your second reference?"}},
		{ID: models.FieldRef2Contact, Prompts: []string{"What is the contact number of your second reference?"}},
		{ID: models.FieldRef2Occupation, Prompts: []string{"What is the occupation of your second reference?"}},
	}
}
