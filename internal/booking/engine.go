package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/agendaya/turnero/internal/model"
)

var (
	// ErrServiceNotFound means the requested service does not exist or is
	// inactive. Not retryable.
	ErrServiceNotFound = errors.New("service not found or inactive")

	// ErrSlotTaken means the requested interval overlaps a pending or
	// confirmed appointment for that staff member. The caller should offer
	// alternative slots instead of retrying.
	ErrSlotTaken = errors.New("time slot already taken")
)

// Store is the persistence surface the engine needs. Implementations must
// map their conflict and not-found failures onto ErrSlotTaken and
// ErrServiceNotFound; anything else propagates unchanged.
type Store interface {
	// ActiveService returns the service by id, ErrServiceNotFound when the
	// id is unknown or the service was deactivated.
	ActiveService(ctx context.Context, businessID, serviceID string) (model.Service, error)

	// BookedIntervals returns the intervals of pending/confirmed
	// appointments for the staff member overlapping [from, to).
	BookedIntervals(ctx context.Context, businessID, staffID string, from, to time.Time) ([]Interval, error)

	// ResolveClient returns the client for (businessID, phone), creating it
	// with nameHint on first contact. The hint never overwrites an existing
	// name, and concurrent first contacts must yield a single record.
	ResolveClient(ctx context.Context, businessID, phone, nameHint string) (model.Client, error)

	// CreateAppointment persists the appointment, returning it with its
	// generated id. Returns ErrSlotTaken when a concurrent writer took the
	// interval first.
	CreateAppointment(ctx context.Context, appt model.Appointment) (model.Appointment, error)
}

// Engine implements the booking core: availability checks, slot enumeration
// and the create-appointment transaction.
type Engine struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewEngine(store Store, logger *slog.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// IsAvailable reports whether the staff member is free for [start, end).
// Only pending and confirmed appointments block; an appointment ending
// exactly at start (or starting exactly at end) does not.
func (e *Engine) IsAvailable(ctx context.Context, businessID, staffID string, start, end time.Time) (bool, error) {
	if !end.After(start) {
		return false, fmt.Errorf("end %s is not after start %s", end, start)
	}
	busy, err := e.store.BookedIntervals(ctx, businessID, staffID, start, end)
	if err != nil {
		return false, err
	}
	return !overlapsAny(start, end, busy), nil
}

// SlotQuery describes one day of candidate slots for a staff member.
// WorkdayOpen and WorkdayClose are offsets from midnight of Day.
type SlotQuery struct {
	BusinessID      string
	StaffID         string
	Day             time.Time
	ServiceDuration time.Duration
	WorkdayOpen     time.Duration
	WorkdayClose    time.Duration
	Step            time.Duration
}

// Business defaults from the workday configuration the admin tooling uses.
const (
	DefaultWorkdayOpen  = 9 * time.Hour
	DefaultWorkdayClose = 20 * time.Hour
	DefaultSlotStep     = 30 * time.Minute
)

// ListOpenSlots returns the ordered bookable start times for the day. An
// empty result just means the day is fully booked. The list is recomputed
// from storage on every call.
func (e *Engine) ListOpenSlots(ctx context.Context, q SlotQuery) ([]time.Time, error) {
	if q.WorkdayOpen <= 0 {
		q.WorkdayOpen = DefaultWorkdayOpen
	}
	if q.WorkdayClose <= 0 {
		q.WorkdayClose = DefaultWorkdayClose
	}
	if q.Step <= 0 {
		q.Step = DefaultSlotStep
	}
	if q.ServiceDuration <= 0 {
		return nil, fmt.Errorf("service duration must be positive, got %s", q.ServiceDuration)
	}

	day := time.Date(q.Day.Year(), q.Day.Month(), q.Day.Day(), 0, 0, 0, 0, q.Day.Location())
	windowStart := day.Add(q.WorkdayOpen)
	windowEnd := day.Add(q.WorkdayClose)

	// Bound the conflict scan to the day's window before filtering.
	busy, err := e.store.BookedIntervals(ctx, q.BusinessID, q.StaffID, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}
	return OpenSlots(windowStart, windowEnd, q.ServiceDuration, q.Step, busy, e.now()), nil
}

type BookingRequest struct {
	BusinessID  string
	StaffID     string
	ServiceID   string
	ClientPhone string
	ClientName  string
	StartTime   time.Time
	Origin      string
	Notes       string
}

// Book runs the create-appointment sequence: service lookup, end-time
// derivation, availability check, client resolution and persistence. The
// end time is captured from the service duration at booking time and is
// never recomputed if the service changes later.
//
// The final insert is guarded by the storage layer's overlap constraint, so
// two concurrent calls for the same staff member and overlapping intervals
// cannot both succeed; the loser gets ErrSlotTaken.
func (e *Engine) Book(ctx context.Context, req BookingRequest) (model.Appointment, error) {
	req.ClientPhone = strings.TrimSpace(req.ClientPhone)
	if req.BusinessID == "" || req.StaffID == "" || req.ServiceID == "" || req.ClientPhone == "" {
		return model.Appointment{}, fmt.Errorf("business, staff, service and client phone are required")
	}
	if req.Origin == "" {
		req.Origin = model.OriginWeb
	}

	svc, err := e.store.ActiveService(ctx, req.BusinessID, req.ServiceID)
	if err != nil {
		return model.Appointment{}, err
	}

	start := req.StartTime
	end := start.Add(time.Duration(svc.DurationMins) * time.Minute)

	free, err := e.IsAvailable(ctx, req.BusinessID, req.StaffID, start, end)
	if err != nil {
		return model.Appointment{}, err
	}
	if !free {
		return model.Appointment{}, ErrSlotTaken
	}

	client, err := e.store.ResolveClient(ctx, req.BusinessID, req.ClientPhone, req.ClientName)
	if err != nil {
		return model.Appointment{}, err
	}

	appt, err := e.store.CreateAppointment(ctx, model.Appointment{
		BusinessID: req.BusinessID,
		StaffID:    req.StaffID,
		ClientID:   client.ID,
		ServiceID:  req.ServiceID,
		StartTime:  start,
		EndTime:    end,
		Status:     model.InitialStatus(req.Origin),
		Origin:     req.Origin,
		Notes:      req.Notes,
	})
	if err != nil {
		return model.Appointment{}, err
	}

	e.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"staff_id", appt.StaffID,
		"service_id", appt.ServiceID,
		"start", appt.StartTime.UTC().Format(time.RFC3339),
		"status", appt.Status,
		"origin", appt.Origin,
	)
	return appt, nil
}
