package messaging

import (
	"context"
	"testing"
)

func TestNewTwilioClientRequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	if _, err := NewTwilioClient(); err == nil {
		t.Error("expected error when credentials missing")
	}
	if _, err := NewTwilioClient(WithAccountSID("AC123"), WithAuthToken("tok")); err == nil {
		t.Error("expected error when from number missing")
	}
}

func TestNewTwilioClientWithOptions(t *testing.T) {
	c, err := NewTwilioClient(WithAccountSID("AC123"), WithAuthToken("tok"), WithFrom("+15550001111"))
	if err != nil {
		t.Fatalf("NewTwilioClient: %v", err)
	}
	if c.from != "+15550001111" {
		t.Errorf("from = %q", c.from)
	}
}

func TestMockSenderRecords(t *testing.T) {
	m := NewMockSender()
	if err := m.SendMessage(context.Background(), "+15551234567", "hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(m.SentMessages) != 1 || m.SentMessages[0].Body != "hello" {
		t.Errorf("message not recorded: %+v", m.SentMessages)
	}
}
