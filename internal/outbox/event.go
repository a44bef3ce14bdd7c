package outbox

// Event is the domain event envelope written to the outbox table inside the
// booking transaction. The Kafka topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Event types published by the booking engine.
const (
	EventAppointmentCreated   = "turnos.appointment.created.v1"
	EventAppointmentConfirmed = "turnos.appointment.confirmed.v1"
	EventAppointmentCancelled = "turnos.appointment.cancelled.v1"
	EventAppointmentCompleted = "turnos.appointment.completed.v1"
	EventReminderDue          = "turnos.reminder.due.v1"
)
