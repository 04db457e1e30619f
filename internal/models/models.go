// Package models defines the core data structures for the loan intake service.
//
// It includes field identifiers, session state, and API response types shared
// across modules.
package models

import (
	"errors"
	"strings"
)

// FieldID identifies one required piece of applicant data.
type FieldID string

// Applicant data fields. The order of RegistryOrder defines the question
// sequence for a session and is fixed for the session's lifetime.
const (
	FieldName           FieldID = "name"
	FieldPhone          FieldID = "phone"
	FieldEmail          FieldID = "email"
	FieldLoanPurpose    FieldID = "loan_purpose"
	FieldIncome         FieldID = "income"
	FieldDOB            FieldID = "dob"
	FieldOccupation     FieldID = "occupation"
	FieldAddress        FieldID = "address"
	FieldLoanAmount     FieldID = "loan_amount"
	FieldPromotion      FieldID = "promotion_applied"
	FieldPromoCode      FieldID = "promotion_code"
	FieldHowHeard       FieldID = "how_heard"
	FieldMembership     FieldID = "membership_status"
	FieldAccountNumber  FieldID = "account_number"
	FieldMaritalStatus  FieldID = "marital_status"
	FieldWhatsAppOptIn  FieldID = "whatsapp_opt_in"
	FieldEmployerName   FieldID = "employer_name"
	FieldSelfEmployed   FieldID = "self_employed"
	FieldAddlIncome     FieldID = "additional_income"
	FieldTotalIncome    FieldID = "total_income"
	FieldCommitments    FieldID = "commitments"
	FieldDeclaration    FieldID = "declaration"
	FieldUploadedIDs    FieldID = "uploaded_ids"
	FieldUploadedDocs   FieldID = "uploaded_documents"
	FieldRef1Name       FieldID = "reference1_name"
	FieldRef1Relation   FieldID = "reference1_relation"
	FieldRef1Address    FieldID = "reference1_address"
	FieldRef1Contact    FieldID = "reference1_contact"
	FieldRef1Occupation FieldID = "reference1_occupation"
	FieldRef2Name       FieldID = "reference2_name"
	FieldRef2Relation   FieldID = "reference2_relation"
	FieldRef2Address    FieldID = "reference2_address"
	FieldRef2Contact    FieldID = "reference2_contact"
	FieldRef2Occupation FieldID = "reference2_occupation"
)

// RegistryOrder is the fixed question sequence for a loan application.
var RegistryOrder = []FieldID{
	FieldName, FieldPhone, FieldEmail, FieldLoanPurpose, FieldIncome,
	FieldDOB, FieldOccupation, FieldAddress, FieldLoanAmount,
	FieldPromotion, FieldPromoCode, FieldHowHeard, FieldMembership,
	FieldAccountNumber, FieldMaritalStatus, FieldWhatsAppOptIn,
	FieldEmployerName, FieldSelfEmployed, FieldAddlIncome,
	FieldTotalIncome, FieldCommitments, FieldDeclaration,
	FieldUploadedIDs, FieldUploadedDocs,
	FieldRef1Name, FieldRef1Relation, FieldRef1Address, FieldRef1Contact,
	FieldRef1Occupation, FieldRef2Name, FieldRef2Relation,
	FieldRef2Address, FieldRef2Contact, FieldRef2Occupation,
}

// AnswerMap maps collected fields to their validated values. It grows
// monotonically during a session and never shrinks.
type AnswerMap map[FieldID]string

// Clone returns a shallow copy of the answer map.
func (m AnswerMap) Clone() AnswerMap {
	out := make(AnswerMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// PromoInvalid is the sentinel value recorded when a supplied promotion code
// is not on the allow-list. The field is still considered filled.
const PromoInvalid = "Invalid"

// ValidPromoCodes is the fixed promotion code allow-list. Matching is
// case-sensitive and exact.
var ValidPromoCodes = []string{"PROMO123", "SAVE200", "OFFER500"}

// IsValidPromoCode reports whether code is on the allow-list.
func IsValidPromoCode(code string) bool {
	for _, c := range ValidPromoCodes {
		if code == c {
			return true
		}
	}
	return false
}

// IsAffirmative reports whether a yes/no answer should be treated as yes.
func IsAffirmative(answer string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), "yes")
}

// Validation constants for input validation
const (
	// MaxUtteranceLength defines the maximum allowed length for a single user utterance
	MaxUtteranceLength = 4096
	// MaxSessionIDLength defines the maximum allowed length for a session identifier
	MaxSessionIDLength = 64
)

// Error variables for better error handling and testability
var (
	ErrEmptyUtterance    = errors.New("utterance cannot be empty")
	ErrUtteranceTooLong  = errors.New("utterance exceeds maximum length")
	ErrEmptySessionID    = errors.New("session ID cannot be empty")
	ErrSessionIDTooLong  = errors.New("session ID exceeds maximum length")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionComplete   = errors.New("session is already complete")
	ErrNoPendingUpload   = errors.New("no document upload is currently pending")
	ErrUnknownField      = errors.New("unknown field identifier")
	ErrInvalidPhone      = errors.New("phone must be exactly 10 digits")
	ErrInvalidEmail      = errors.New("email address is not valid")
	ErrApplicationExists = errors.New("application already recorded for session")
)

// TurnRequest is the body of a conversational turn submission.
type TurnRequest struct {
	Utterance string `json:"utterance"`
}

// Validate performs validation on a TurnRequest.
func (r *TurnRequest) Validate() error {
	if strings.TrimSpace(r.Utterance) == "" {
		return ErrEmptyUtterance
	}
	if len(r.Utterance) > MaxUtteranceLength {
		return ErrUtteranceTooLong
	}
	return nil
}

// AskRequest is the body of a knowledge base question.
type AskRequest struct {
	Query string `json:"query"`
}

// Validate performs validation on an AskRequest.
func (r *AskRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return ErrEmptyUtterance
	}
	return nil
}

// APIStatus represents the status field of an API response.
type APIStatus string

const (
	// APIStatusOK indicates a successful operation.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates a failed operation.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{response: APIResponse{}}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}
