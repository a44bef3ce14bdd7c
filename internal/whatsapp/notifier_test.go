package whatsapp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/segmentio/kafka-go"
)

type fakeSender struct {
	sent []string
	to   []string
	err  error
}

func (s *fakeSender) Send(_ context.Context, to, body string) error {
	s.to = append(s.to, to)
	s.sent = append(s.sent, body)
	return s.err
}

func (s *fakeSender) ProviderID() string { return "fake" }

type fakeLogStore struct {
	phones  []string
	bodies  []string
	errLogs []string
}

func (l *fakeLogStore) RecordWhatsAppLog(_ context.Context, _, clientPhone, messageSent, errLog string) error {
	l.phones = append(l.phones, clientPhone)
	l.bodies = append(l.bodies, messageSent)
	l.errLogs = append(l.errLogs, errLog)
	return nil
}

func newTestNotifier(sender *fakeSender, logs *fakeLogStore) *Notifier {
	return NewNotifier(sender, logs, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandleAppointmentCreated_ConfirmedMessage(t *testing.T) {
	sender := &fakeSender{}
	logs := &fakeLogStore{}
	n := newTestNotifier(sender, logs)

	msg := kafka.Message{Value: []byte(`{
		"appointment_id": "appt-1",
		"business_id": "biz-1",
		"client_name": "Juan",
		"client_phone": "+5491100000001",
		"start_time": "2026-09-14T10:00:00Z",
		"status": "confirmed"
	}`)}
	if err := n.HandleAppointmentCreated(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sender.sent))
	}
	if sender.to[0] != "+5491100000001" {
		t.Fatalf("sent to %q", sender.to[0])
	}
	if !strings.Contains(sender.sent[0], "Juan") || !strings.Contains(sender.sent[0], "confirmado") {
		t.Fatalf("unexpected body: %q", sender.sent[0])
	}
	if !strings.Contains(sender.sent[0], "14/09 10:00") {
		t.Fatalf("start time not formatted: %q", sender.sent[0])
	}
	if len(logs.bodies) != 1 || logs.errLogs[0] != "" {
		t.Fatalf("delivery log missing or marked failed: %+v", logs)
	}
}

func TestHandleAppointmentCreated_PendingMessage(t *testing.T) {
	sender := &fakeSender{}
	n := newTestNotifier(sender, &fakeLogStore{})

	msg := kafka.Message{Value: []byte(`{
		"business_id": "biz-1",
		"client_name": "Ana",
		"client_phone": "+5491100000002",
		"start_time": "2026-09-14T10:00:00Z",
		"status": "pending"
	}`)}
	if err := n.HandleAppointmentCreated(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(sender.sent[0], "reserva") {
		t.Fatalf("pending booking should get the receipt message, got %q", sender.sent[0])
	}
}

func TestHandleAppointmentCreated_DropsBadPayloads(t *testing.T) {
	sender := &fakeSender{}
	n := newTestNotifier(sender, &fakeLogStore{})

	// Malformed JSON and missing phone both drop, never error (no redelivery).
	if err := n.HandleAppointmentCreated(context.Background(), kafka.Message{Value: []byte(`{broken`)}); err != nil {
		t.Fatalf("bad json should not error: %v", err)
	}
	if err := n.HandleAppointmentCreated(context.Background(), kafka.Message{Value: []byte(`{"business_id":"b"}`)}); err != nil {
		t.Fatalf("missing phone should not error: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("nothing should have been sent, got %d", len(sender.sent))
	}
}

func TestHandleReminderDue(t *testing.T) {
	sender := &fakeSender{}
	logs := &fakeLogStore{}
	n := newTestNotifier(sender, logs)

	msg := kafka.Message{Value: []byte(`{
		"appointment_id": "appt-1",
		"business_id": "biz-1",
		"recipient": "+5491100000003",
		"template_data": {"client_name": "Luis", "start_time": "2026-09-15T18:30:00Z"}
	}`)}
	if err := n.HandleReminderDue(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sender.sent))
	}
	body := sender.sent[0]
	if !strings.Contains(body, "Luis") || !strings.Contains(body, "recordamos") || !strings.Contains(body, "15/09 18:30") {
		t.Fatalf("unexpected reminder body: %q", body)
	}
}

func TestDeliver_FailureIsLoggedAndReturned(t *testing.T) {
	sender := &fakeSender{err: errors.New("gateway timeout")}
	logs := &fakeLogStore{}
	n := newTestNotifier(sender, logs)

	msg := kafka.Message{Value: []byte(`{
		"business_id": "biz-1",
		"client_name": "Juan",
		"client_phone": "+5491100000001",
		"start_time": "2026-09-14T10:00:00Z",
		"status": "confirmed"
	}`)}
	err := n.HandleAppointmentCreated(context.Background(), msg)
	if err == nil {
		t.Fatalf("send failure should propagate for retry")
	}
	if len(logs.errLogs) != 1 || logs.errLogs[0] != "gateway timeout" {
		t.Fatalf("failure not recorded in log: %+v", logs.errLogs)
	}
}
