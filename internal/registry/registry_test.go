package registry

import (
	"testing"

	"github.com/crestline/loanintake/internal/models"
)

func TestNextUnfilledEmptyAnswers(t *testing.T) {
	r := New()
	next, ok := r.NextUnfilled(models.AnswerMap{})
	if !ok {
		t.Fatal("expected an unfilled field")
	}
	if next != models.FieldName {
		t.Errorf("expected first field %s, got %s", models.FieldName, next)
	}
}

func TestNextUnfilledOrdering(t *testing.T) {
	r := New()
	answers := models.AnswerMap{}

	// Filling fields in order must always yield the next field in sequence.
	for {
		next, ok := r.NextUnfilled(answers)
		if !ok {
			break
		}
		for i := range r.Fields() {
			f := r.Fields()[i]
			if f.ID == next {
				break
			}
			_, filled := answers[f.ID]
			applicable := f.When == nil || f.When(answers)
			if !filled && applicable {
				t.Fatalf("NextUnfilled returned %s but earlier field %s is unfilled", next, f.ID)
			}
		}
		answers[next] = "x"
	}

	if _, ok := r.NextUnfilled(answers); ok {
		t.Error("expected no unfilled field after filling everything")
	}
}

func TestPromoCodeConditional(t *testing.T) {
	r := New()

	answers := models.AnswerMap{}
	for _, f := range r.Fields() {
		if f.ID == models.FieldPromoCode {
			continue
		}
		answers[f.ID] = "x"
	}
	answers[models.FieldPromotion] = "no"

	if next, ok := r.NextUnfilled(answers); ok {
		t.Errorf("promo code should be skipped when promotion not applied, got %s", next)
	}

	answers[models.FieldPromotion] = "yes"
	next, ok := r.NextUnfilled(answers)
	if !ok || next != models.FieldPromoCode {
		t.Errorf("expected promo code to be pending, got %s (ok=%v)", next, ok)
	}
}

func TestPromptForSingleTemplate(t *testing.T) {
	r := New()
	want := "Please provide your 10-digit contact number."
	if got := r.PromptFor(models.FieldPhone); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestPromptForMultipleTemplates(t *testing.T) {
	r := New()
	f, ok := r.Lookup(models.FieldLoanAmount)
	if !ok {
		t.Fatal("loan_amount missing from registry")
	}
	if len(f.Prompts) < 2 {
		t.Fatal("loan_amount should have multiple templates")
	}
	valid := make(map[string]bool)
	for _, p := range f.Prompts {
		valid[p] = true
	}
	for i := 0; i < 20; i++ {
		if got := r.PromptFor(models.FieldLoanAmount); !valid[got] {
			t.Fatalf("PromptFor returned unknown template %q", got)
		}
	}
}

func TestIsUploadField(t *testing.T) {
	r := New()
	if !r.IsUploadField(models.FieldUploadedIDs) {
		t.Error("uploaded_ids should be an upload field")
	}
	if r.IsUploadField(models.FieldName) {
		t.Error("name should not be an upload field")
	}
}

func TestRegistryCoversAllModelFields(t *testing.T) {
	r := New()
	for _, id := range models.RegistryOrder {
		if _, ok := r.Lookup(id); !ok {
			t.Errorf("registry missing field %s", id)
		}
	}
	if len(r.Fields()) != len(models.RegistryOrder) {
		t.Errorf("registry has %d fields, models order has %d", len(r.Fields()), len(models.RegistryOrder))
	}
}
