package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// LogStore records outbound delivery attempts for the admin dashboard.
type LogStore interface {
	RecordWhatsAppLog(ctx context.Context, businessID, clientPhone, messageSent, errLog string) error
}

// Notifier turns appointment events into outbound WhatsApp messages.
type Notifier struct {
	sender Sender
	logs   LogStore
	logger *slog.Logger
}

func NewNotifier(sender Sender, logs LogStore, logger *slog.Logger) *Notifier {
	return &Notifier{sender: sender, logs: logs, logger: logger}
}

type appointmentEvent struct {
	AppointmentID string `json:"appointment_id"`
	BusinessID    string `json:"business_id"`
	ClientName    string `json:"client_name"`
	ClientPhone   string `json:"client_phone"`
	StartTime     string `json:"start_time"`
	Status        string `json:"status"`
}

type reminderEvent struct {
	AppointmentID string         `json:"appointment_id"`
	BusinessID    string         `json:"business_id"`
	Recipient     string         `json:"recipient"`
	TemplateData  map[string]any `json:"template_data"`
}

// HandleAppointmentCreated sends the booking receipt to the client.
// Malformed payloads are logged and dropped, not retried.
func (n *Notifier) HandleAppointmentCreated(ctx context.Context, msg kafka.Message) error {
	var evt appointmentEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		n.logger.Error("invalid appointment event payload", "err", err, "topic", msg.Topic)
		return nil
	}
	if evt.ClientPhone == "" {
		return nil
	}

	when := evt.StartTime
	if t, err := time.Parse(time.RFC3339, evt.StartTime); err == nil {
		when = t.Format("02/01 15:04")
	}

	var body string
	if evt.Status == "confirmed" {
		body = fmt.Sprintf("%s, tu turno quedó confirmado para el %s. ¡Te esperamos!", evt.ClientName, when)
	} else {
		body = fmt.Sprintf("%s, recibimos tu reserva para el %s. Te avisamos cuando esté confirmada.", evt.ClientName, when)
	}
	return n.deliver(ctx, evt.BusinessID, evt.ClientPhone, body)
}

// HandleReminderDue sends the pre-appointment reminder.
func (n *Notifier) HandleReminderDue(ctx context.Context, msg kafka.Message) error {
	var evt reminderEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		n.logger.Error("invalid reminder event payload", "err", err, "topic", msg.Topic)
		return nil
	}
	if evt.Recipient == "" {
		return nil
	}

	name, _ := evt.TemplateData["client_name"].(string)
	when, _ := evt.TemplateData["start_time"].(string)
	if t, err := time.Parse(time.RFC3339, when); err == nil {
		when = t.Format("02/01 15:04")
	}
	body := fmt.Sprintf("%s, te recordamos tu turno del %s. Si no podés venir, avisanos para liberar el horario.", name, when)
	return n.deliver(ctx, evt.BusinessID, evt.Recipient, body)
}

func (n *Notifier) deliver(ctx context.Context, businessID, to, body string) error {
	sendErr := n.sender.Send(ctx, to, body)

	errLog := ""
	if sendErr != nil {
		errLog = sendErr.Error()
		n.logger.Error("whatsapp send failed", "err", sendErr, "provider", n.sender.ProviderID())
	}
	if err := n.logs.RecordWhatsAppLog(ctx, businessID, to, body, errLog); err != nil {
		n.logger.Error("whatsapp log write failed", "err", err)
	}
	return sendErr
}
