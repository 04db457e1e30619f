package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/crestline/loanintake/internal/models"
	"github.com/crestline/loanintake/internal/registry"
)

// recordingCompletion counts completion handler invocations.
type recordingCompletion struct {
	calls int
	fail  bool
}

func (r *recordingCompletion) HandleCompletion(ctx context.Context, state *models.SessionState) error {
	r.calls++
	if r.fail {
		return errors.New("persistence unavailable")
	}
	return nil
}

// fakeDocuments accepts any path ending in .pdf for any upload field.
type fakeDocuments struct{}

func (fakeDocuments) Store(field models.FieldID, path string) (string, error) {
	if !strings.HasSuffix(path, ".pdf") {
		return "", errors.New("unsupported file")
	}
	return "stored_" + path, nil
}

func newTestEngine(completion CompletionHandler) *Engine {
	return New(registry.New(), fakeDocuments{}, completion)
}

func advance(t *testing.T, e *Engine, state *models.SessionState, utterance string) string {
	t.Helper()
	reply, err := e.Advance(context.Background(), state, utterance)
	if err != nil {
		t.Fatalf("Advance(%q) returned error: %v", utterance, err)
	}
	return reply
}

func TestFirstInputVerbatimAnswersFirstField(t *testing.T) {
	e := newTestEngine(nil)
	state := models.NewSessionState("s_1")

	reply := advance(t, e, state, "John Smith")
	if state.Answers[models.FieldName] != "John Smith" {
		t.Errorf("expected name filled from first utterance, got %q", state.Answers[models.FieldName])
	}
	if state.Pending != models.FieldPhone {
		t.Errorf("expected phone pending, got %s", state.Pending)
	}
	if reply != "Please provide your 10-digit contact number." {
		t.Errorf("unexpected reply %q", reply)
	}
}

func TestFirstInputCompoundPrefill(t *testing.T) {
	e := newTestEngine(nil)
	state := models.NewSessionState("s_1")

	advance(t, e, state, "Hi, I'm reachable at john@example.com or 9876543210")
	if state.Answers[models.FieldEmail] != "john@example.com" {
		t.Errorf("expected email prefilled, got %q", state.Answers[models.FieldEmail])
	}
	if state.Answers[models.FieldPhone] != "9876543210" {
		t.Errorf("expected phone prefilled, got %q", state.Answers[models.FieldPhone])
	}
	// The intro itself must not be recorded as the applicant's name.
	if _, ok := state.Answers[models.FieldName]; ok {
		t.Errorf("name should remain unfilled, got %q", state.Answers[models.FieldName])
	}
	// The phone digits carry no currency symbol and must not be mistaken
	// for a loan amount.
	if got, ok := state.Answers[models.FieldLoanAmount]; ok {
		t.Errorf("loan_amount should remain unfilled, got %q", got)
	}
	if state.Pending != models.FieldName {
		t.Errorf("expected name pending, got %s", state.Pending)
	}
}

func TestFirstInputDigitRunsDoNotPrefillAmount(t *testing.T) {
	e := newTestEngine(nil)
	state := models.NewSessionState("s_1")

	advance(t, e, state, "I was born 12/11/1990")
	if state.Answers[models.FieldDOB] != "12/11/1990" {
		t.Errorf("expected dob prefilled, got %q", state.Answers[models.FieldDOB])
	}
	// The day part of the date must not leak into the amount.
	if got, ok := state.Answers[models.FieldLoanAmount]; ok {
		t.Errorf("loan_amount should remain unfilled, got %q", got)
	}

	state2 := models.NewSessionState("s_2")
	advance(t, e, state2, "My account is 123456789012")
	if state2.Answers[models.FieldAccountNumber] != "123456789012" {
		t.Errorf("expected account prefilled, got %q", state2.Answers[models.FieldAccountNumber])
	}
	if got, ok := state2.Answers[models.FieldLoanAmount]; ok {
		t.Errorf("loan_amount should remain unfilled, got %q", got)
	}
}

func TestLoanAmountDirectAnswer(t *testing.T) {
	e := newTestEngine(nil)
	state := models.NewSessionState("s_1")
	fillUpTo(t, e, state, models.FieldLoanAmount)

	reply := advance(t, e, state, "five thousand")
	if !strings.HasPrefix(reply, "Invalid input for loan_amount.") {
		t.Errorf("expected invalid-input re-prompt, got %q", reply)
	}

	// A bare number is a valid direct answer to the amount question.
	advance(t, e, state, "5000")
	if state.Answers[models.FieldLoanAmount] != "5000" {
		t.Errorf("expected bare amount stored, got %q", state.Answers[models.FieldLoanAmount])
	}
}

func TestPhoneValidateAndRepeat(t *testing.T) {
	e := newTestEngine(nil)
	state := models.NewSessionState("s_1")
	advance(t, e, state, "John Smith")

	reply := advance(t, e, state, "123-456-7890")
	if !strings.HasPrefix(reply, "Invalid input for phone.") {
		t.Errorf("expected invalid-input re-prompt, got %q", reply)
	}
	if state.Pending != models.FieldPhone {
		t.Errorf("pending field must not advance on invalid input, got %s", state.Pending)
	}

	// No retry limit: a second bad answer re-prompts again.
	reply = advance(t, e, state, "12345678901")
	if !strings.HasPrefix(reply, "Invalid input for phone.") {
		t.Errorf("expected repeated re-prompt, got %q", reply)
	}

	advance(t, e, state, "9876543210")
	if state.Answers[models.FieldPhone] != "9876543210" {
		t.Errorf("expected phone stored, got %q", state.Answers[models.FieldPhone])
	}
	if state.Pending != models.FieldEmail {
		t.Errorf("expected email pending, got %s", state.Pending)
	}
}

func TestCompoundUtteranceFillsPendingEmail(t *testing.T) {
	e := newTestEngine(nil)
	state := models.NewSessionState("s_1")
	advance(t, e, state, "John Smith")
	advance(t, e, state, "9876543210")

	advance(t, e, state, "Reach me at john@example.com or 9876543210")
	if state.Answers[models.FieldEmail] != "john@example.com" {
		t.Errorf("expected email filled from compound utterance, got %q", state.Answers[models.FieldEmail])
	}
}

func TestEmptyUtteranceReprompts(t *testing.T) {
	e := newTestEngine(nil)
	state := models.NewSessionState("s_1")
	advance(t, e, state, "John Smith")
	advance(t, e, state, "9876543210")
	advance(t, e, state, "john@example.com")

	reply := advance(t, e, state, "   ")
	if !strings.HasPrefix(reply, "Invalid input for loan_purpose.") {
		t.Errorf("expected re-prompt for loan_purpose, got %q", reply)
	}
}

func TestPromoCodeInvalidSentinelAdvances(t *testing.T) {
	e := newTestEngine(nil)
	state := models.NewSessionState("s_1")
	fillUpTo(t, e, state, models.FieldPromotion)

	advance(t, e, state, "yes")
	if state.Pending != models.FieldPromoCode {
		t.Fatalf("expected promo code pending, got %s", state.Pending)
	}
	advance(t, e, state, "FREE50")
	if state.Answers[models.FieldPromoCode] != models.PromoInvalid {
		t.Errorf("expected Invalid sentinel, got %q", state.Answers[models.FieldPromoCode])
	}
	if state.Pending == models.FieldPromoCode {
		t.Error("conversation must still advance past an invalid promo code")
	}
}

func TestPromoCodeValidStored(t *testing.T) {
	e := newTestEngine(nil)
	state := models.NewSessionState("s_1")
	fillUpTo(t, e, state, models.FieldPromotion)

	advance(t, e, state, "yes")
	advance(t, e, state, "SAVE200")
	if state.Answers[models.FieldPromoCode] != "SAVE200" {
		t.Errorf("expected SAVE200 stored, got %q", state.Answers[models.FieldPromoCode])
	}
}

func TestPromoCodeSkippedWhenNotApplied(t *testing.T) {
	e := newTestEngine(nil)
	state := models.NewSessionState("s_1")
	fillUpTo(t, e, state, models.FieldPromotion)

	advance(t, e, state, "no")
	if state.Pending == models.FieldPromoCode {
		t.Error("promo code must not be asked when promotion not applied")
	}
	if _, ok := state.Answers[models.FieldPromoCode]; ok {
		t.Error("promo code must not be filled when promotion not applied")
	}
}

func TestUploadFieldPathValidation(t *testing.T) {
	e := newTestEngine(nil)
	state := models.NewSessionState("s_1")
	fillUpTo(t, e, state, models.FieldUploadedIDs)

	reply := advance(t, e, state, "id_scan.docx")
	if !strings.HasPrefix(reply, "Invalid input for uploaded_ids.") {
		t.Errorf("expected upload rejection re-prompt, got %q", reply)
	}

	advance(t, e, state, "id_scan.pdf")
	if state.Answers[models.FieldUploadedIDs] != "stored_id_scan.pdf" {
		t.Errorf("expected stored filename, got %q", state.Answers[models.FieldUploadedIDs])
	}
}

func TestSupplyDocument(t *testing.T) {
	e := newTestEngine(nil)
	state := models.NewSessionState("s_1")

	if _, err := e.SupplyDocument(context.Background(), state, "a.pdf"); err != models.ErrNoPendingUpload {
		t.Errorf("expected ErrNoPendingUpload before an upload field is pending, got %v", err)
	}

	fillUpTo(t, e, state, models.FieldUploadedIDs)
	reply, err := e.SupplyDocument(context.Background(), state, "scan.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Answers[models.FieldUploadedIDs] != "scan.pdf" {
		t.Errorf("expected stored name recorded, got %q", state.Answers[models.FieldUploadedIDs])
	}
	if reply == "" {
		t.Error("expected a next prompt after upload")
	}
}

func TestEndToEndCompletion(t *testing.T) {
	completion := &recordingCompletion{}
	e := newTestEngine(completion)
	state := models.NewSessionState("s_1")

	advance(t, e, state, "John Smith")
	advance(t, e, state, "9876543210")
	advance(t, e, state, "john@example.com")
	advance(t, e, state, "personal")
	advance(t, e, state, "5000")
	var closing string
	for !state.Complete() {
		closing = advance(t, e, state, answerFor(state.Pending))
		if len(state.Transcript) > 400 {
			t.Fatal("conversation did not terminate")
		}
	}

	if state.Answers[models.FieldName] != "John Smith" {
		t.Errorf("name = %q", state.Answers[models.FieldName])
	}
	if state.Answers[models.FieldPhone] != "9876543210" {
		t.Errorf("phone = %q", state.Answers[models.FieldPhone])
	}
	if state.Answers[models.FieldEmail] != "john@example.com" {
		t.Errorf("email = %q", state.Answers[models.FieldEmail])
	}
	if closing != ClosingMessage {
		t.Errorf("expected closing message, got %q", closing)
	}
	if completion.calls != 1 {
		t.Errorf("completion handler called %d times, want 1", completion.calls)
	}

	// Post-complete utterances are no-ops re-emitting the closing message.
	reply := advance(t, e, state, "hello?")
	if reply != ClosingMessage {
		t.Errorf("expected closing message after completion, got %q", reply)
	}
	if completion.calls != 1 {
		t.Errorf("completion handler re-fired after completion: %d calls", completion.calls)
	}
}

func TestCompletionFailureDoesNotBlockConversation(t *testing.T) {
	completion := &recordingCompletion{fail: true}
	e := newTestEngine(completion)
	state := models.NewSessionState("s_1")

	advance(t, e, state, "John Smith")
	for !state.Complete() {
		advance(t, e, state, answerFor(state.Pending))
	}
	if !state.Complete() {
		t.Fatal("session should be complete despite persistence failure")
	}
	if state.Persisted {
		t.Error("Persisted must stay false when the handler errors")
	}
}

func TestTranscriptTwoEntriesPerTurn(t *testing.T) {
	e := newTestEngine(nil)
	state := models.NewSessionState("s_1")

	advance(t, e, state, "John Smith")
	advance(t, e, state, "not a phone")
	if len(state.Transcript) != 4 {
		t.Fatalf("expected 4 transcript entries after 2 turns, got %d", len(state.Transcript))
	}
	if state.Transcript[0].Speaker != models.SpeakerUser || state.Transcript[1].Speaker != models.SpeakerBot {
		t.Error("transcript entries out of order")
	}
}

// fillUpTo advances the session until target is the pending field.
func fillUpTo(t *testing.T, e *Engine, state *models.SessionState, target models.FieldID) {
	t.Helper()
	advance(t, e, state, "John Smith")
	for state.Pending != target {
		if state.Complete() {
			t.Fatalf("session completed before reaching %s", target)
		}
		advance(t, e, state, answerFor(state.Pending))
		if len(state.Transcript) > 400 {
			t.Fatalf("did not reach field %s", target)
		}
	}
}

// answerFor produces a structurally valid answer for any field.
func answerFor(id models.FieldID) string {
	switch id {
	case models.FieldPhone:
		return "9876543210"
	case models.FieldEmail:
		return "john@example.com"
	case models.FieldLoanAmount:
		return "$5,000.00"
	case models.FieldDOB:
		return "12/11/1990"
	case models.FieldMaritalStatus:
		return "married"
	case models.FieldMembership:
		return "member"
	case models.FieldAccountNumber:
		return "123456789012"
	case models.FieldPromotion:
		return "no"
	case models.FieldPromoCode:
		return "PROMO123"
	case models.FieldUploadedIDs, models.FieldUploadedDocs:
		return fmt.Sprintf("%s.pdf", id)
	default:
		return "some answer"
	}
}
