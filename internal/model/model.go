package model

import "time"

// Appointment statuses. Only pending and confirmed count against
// availability; cancelled and completed are terminal.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// Appointment origins. WhatsApp bookings are auto-confirmed because the
// conversation already closed the loop with the client; everything else
// starts pending until an admin confirms.
const (
	OriginWhatsApp = "whatsapp"
	OriginWeb      = "web"
	OriginAdmin    = "admin"
)

type Business struct {
	ID           string
	Name         string
	ContactPhone string
	Timezone     string
	Plan         string
	IsActive     bool
	CreatedAt    time.Time
}

type Staff struct {
	ID         string
	BusinessID string
	Name       string
	Phone      string
	IsActive   bool
}

type Service struct {
	ID           string
	BusinessID   string
	Name         string
	DurationMins int
	Price        string
	IsActive     bool
}

type Client struct {
	ID            string
	BusinessID    string
	Name          string
	WhatsAppPhone string
	RegisteredAt  time.Time
}

type Appointment struct {
	ID         string
	BusinessID string
	StaffID    string
	ClientID   string
	ServiceID  string
	StartTime  time.Time
	EndTime    time.Time
	Status     string
	Origin     string
	Notes      string
	CreatedAt  time.Time
}

// InitialStatus maps a booking origin to the status a new appointment is
// created with.
func InitialStatus(origin string) string {
	if origin == OriginWhatsApp {
		return StatusConfirmed
	}
	return StatusPending
}

// CountsAgainstAvailability reports whether an appointment in this status
// blocks overlapping bookings.
func CountsAgainstAvailability(status string) bool {
	return status == StatusPending || status == StatusConfirmed
}
