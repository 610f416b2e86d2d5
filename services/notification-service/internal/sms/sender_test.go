package sms

import (
	"context"
	"errors"
	"testing"

	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type fakeCreator struct {
	params *twilioApi.CreateMessageParams
	resp   *twilioApi.ApiV2010Message
	err    error
}

func (f *fakeCreator) CreateMessage(p *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	f.params = p
	return f.resp, f.err
}

func TestTwilioSenderSetsParams(t *testing.T) {
	fc := &fakeCreator{resp: &twilioApi.ApiV2010Message{}}
	s := &TwilioSender{api: fc, from: "+15550001111"}
	if err := s.Send(context.Background(), "+15552223333", "Reminder"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if fc.params == nil || *fc.params.To != "+15552223333" || *fc.params.From != "+15550001111" || *fc.params.Body != "Reminder" {
		t.Fatalf("unexpected params: %+v", fc.params)
	}
}

func TestTwilioSenderErrors(t *testing.T) {
	s := &TwilioSender{api: &fakeCreator{err: errors.New("boom")}, from: "+1"}
	if err := s.Send(context.Background(), "+2", "x"); err == nil {
		t.Fatal("expected transport error")
	}
	msg := "unreachable"
	s = &TwilioSender{api: &fakeCreator{resp: &twilioApi.ApiV2010Message{ErrorMessage: &msg}}, from: "+1"}
	if err := s.Send(context.Background(), "+2", "x"); err == nil || err.Error() != msg {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestNewTwilioSenderRequiresCredentials(t *testing.T) {
	if _, err := NewTwilioSender("AC123", "", "+1"); err == nil {
		t.Fatal("expected error")
	}
}
