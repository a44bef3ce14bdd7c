package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/agendaya/turnero/internal/booking"
	"github.com/agendaya/turnero/internal/model"
	"github.com/agendaya/turnero/internal/outbox"
	"github.com/agendaya/turnero/internal/reminders"
)

const apptColumns = `id::text, business_id::text, staff_id::text, client_id::text, service_id::text,
		start_time, end_time, status, origin, COALESCE(notes, ''), created_at`

// BookedIntervals returns the occupied intervals for the staff member that
// overlap [from, to). Cancelled and completed appointments never block.
func (r *Repository) BookedIntervals(ctx context.Context, businessID, staffID string, from, to time.Time) ([]booking.Interval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_time, end_time
		FROM appointments
		WHERE business_id = $1
			AND staff_id = $2
			AND status IN ('pending', 'confirmed')
			AND start_time < $4
			AND end_time > $3
		ORDER BY start_time ASC
	`, businessID, staffID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var busy []booking.Interval
	for rows.Next() {
		var iv booking.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		busy = append(busy, iv)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return busy, nil
}

// CreateAppointment inserts the appointment, the created event and the
// reminder jobs as one transaction. A concurrent overlapping insert fails
// the exclusion constraint and is returned as booking.ErrSlotTaken.
func (r *Repository) CreateAppointment(ctx context.Context, appt model.Appointment) (model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO appointments
			(business_id, staff_id, client_id, service_id, start_time, end_time, status, origin, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id::text, created_at
	`, appt.BusinessID, appt.StaffID, appt.ClientID, appt.ServiceID,
		appt.StartTime, appt.EndTime, appt.Status, appt.Origin, appt.Notes).Scan(&appt.ID, &appt.CreatedAt)
	if err != nil {
		if IsConflict(err) {
			return model.Appointment{}, booking.ErrSlotTaken
		}
		return model.Appointment{}, err
	}

	// Explicit id-based lookup; the event payload and reminders need the
	// client's contact data.
	var clientName, clientPhone string
	err = tx.QueryRow(ctx, `
		SELECT name, whatsapp_phone FROM clients WHERE id = $1
	`, appt.ClientID).Scan(&clientName, &clientPhone)
	if err != nil {
		return model.Appointment{}, err
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"business_id":    appt.BusinessID,
		"staff_id":       appt.StaffID,
		"service_id":     appt.ServiceID,
		"client_id":      appt.ClientID,
		"client_name":    clientName,
		"client_phone":   clientPhone,
		"start_time":     appt.StartTime.UTC().Format(time.RFC3339),
		"end_time":       appt.EndTime.UTC().Format(time.RFC3339),
		"status":         appt.Status,
		"origin":         appt.Origin,
	})
	if err != nil {
		return model.Appointment{}, err
	}
	if err := r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     outbox.EventAppointmentCreated,
		Payload:       payload,
	}); err != nil {
		return model.Appointment{}, err
	}

	if err := r.enqueueReminders(ctx, tx, appt, clientName, clientPhone); err != nil {
		return model.Appointment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		if IsConflict(err) {
			return model.Appointment{}, booking.ErrSlotTaken
		}
		return model.Appointment{}, err
	}
	return appt, nil
}

func (r *Repository) enqueueReminders(ctx context.Context, tx pgx.Tx, appt model.Appointment, clientName, clientPhone string) error {
	if clientPhone == "" {
		return nil
	}
	now := time.Now().UTC()
	for _, offset := range r.reminderOffsets {
		remindAt := appt.StartTime.Add(-offset)
		if remindAt.Before(now) {
			continue
		}
		job := reminders.Job{
			IdempotencyKey: fmt.Sprintf("%s:%d", appt.ID, int(offset.Minutes())),
			AppointmentID:  appt.ID,
			BusinessID:     appt.BusinessID,
			Recipient:      clientPhone,
			RemindAt:       remindAt,
			TemplateData: map[string]any{
				"client_name": clientName,
				"service_id":  appt.ServiceID,
				"start_time":  appt.StartTime.UTC().Format(time.RFC3339),
			},
		}
		if err := r.reminders.Insert(ctx, tx, job); err != nil {
			return err
		}
	}
	return nil
}

// TransitionAppointment moves an appointment to a new status under a row
// lock, enforcing lifecycle legality. Cancelling an already cancelled
// appointment is a no-op rather than an error.
func (r *Repository) TransitionAppointment(ctx context.Context, businessID, appointmentID, to string) (model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := r.getForUpdate(ctx, tx, businessID, appointmentID)
	if err != nil {
		return model.Appointment{}, err
	}

	if appt.Status == to {
		return appt, tx.Commit(ctx)
	}
	if !canTransition(appt.Status, to) {
		return model.Appointment{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, to)
	}

	_, err = tx.Exec(ctx, `
		UPDATE appointments SET status = $3 WHERE id = $1 AND business_id = $2
	`, appointmentID, businessID, to)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.Status = to

	if to == model.StatusCancelled {
		if err := r.reminders.CancelForAppointment(ctx, tx, appt.ID); err != nil {
			return model.Appointment{}, err
		}
	}

	if eventType := transitionEvent(to); eventType != "" {
		payload, err := json.Marshal(map[string]any{
			"appointment_id": appt.ID,
			"business_id":    appt.BusinessID,
			"staff_id":       appt.StaffID,
			"service_id":     appt.ServiceID,
			"start_time":     appt.StartTime.UTC().Format(time.RFC3339),
			"end_time":       appt.EndTime.UTC().Format(time.RFC3339),
			"status":         appt.Status,
		})
		if err != nil {
			return model.Appointment{}, err
		}
		if err := r.outbox.Insert(ctx, tx, outbox.Event{
			AggregateType: "appointment",
			AggregateID:   appt.ID,
			EventType:     eventType,
			Payload:       payload,
		}); err != nil {
			return model.Appointment{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

// canTransition encodes the appointment lifecycle: pending and confirmed
// are live, cancelled and completed are terminal.
func canTransition(from, to string) bool {
	switch from {
	case model.StatusPending:
		return to == model.StatusConfirmed || to == model.StatusCancelled
	case model.StatusConfirmed:
		return to == model.StatusCancelled || to == model.StatusCompleted
	default:
		return false
	}
}

func transitionEvent(to string) string {
	switch to {
	case model.StatusConfirmed:
		return outbox.EventAppointmentConfirmed
	case model.StatusCancelled:
		return outbox.EventAppointmentCancelled
	case model.StatusCompleted:
		return outbox.EventAppointmentCompleted
	default:
		return ""
	}
}

func (r *Repository) getForUpdate(ctx context.Context, tx pgx.Tx, businessID, appointmentID string) (model.Appointment, error) {
	var appt model.Appointment
	err := tx.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE id = $1 AND business_id = $2
		FOR UPDATE
	`, appointmentID, businessID).Scan(
		&appt.ID,
		&appt.BusinessID,
		&appt.StaffID,
		&appt.ClientID,
		&appt.ServiceID,
		&appt.StartTime,
		&appt.EndTime,
		&appt.Status,
		&appt.Origin,
		&appt.Notes,
		&appt.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return model.Appointment{}, ErrNotFound
		}
		return model.Appointment{}, err
	}
	return appt, nil
}

// ListAppointments returns the most recent appointments for a business,
// newest start first. Feeds the admin dashboard.
func (r *Repository) ListAppointments(ctx context.Context, businessID string, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE business_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, businessID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		var appt model.Appointment
		if err := rows.Scan(
			&appt.ID,
			&appt.BusinessID,
			&appt.StaffID,
			&appt.ClientID,
			&appt.ServiceID,
			&appt.StartTime,
			&appt.EndTime,
			&appt.Status,
			&appt.Origin,
			&appt.Notes,
			&appt.CreatedAt,
		); err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}
