package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/agendaya/turnero/internal/booking"
	"github.com/agendaya/turnero/internal/model"
)

// ActiveService returns the service when it exists and is active; inactive
// services are invisible to the booking engine.
func (r *Repository) ActiveService(ctx context.Context, businessID, serviceID string) (model.Service, error) {
	var s model.Service
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, business_id::text, name, duration_minutes, price::text, is_active
		FROM services
		WHERE id = $1 AND business_id = $2 AND is_active
	`, serviceID, businessID).Scan(&s.ID, &s.BusinessID, &s.Name, &s.DurationMins, &s.Price, &s.IsActive)
	if err != nil {
		if IsNoRows(err) {
			return model.Service{}, booking.ErrServiceNotFound
		}
		return model.Service{}, err
	}
	return s, nil
}

func (r *Repository) CreateService(ctx context.Context, businessID, name string, durationMins int, price string) (model.Service, error) {
	s := model.Service{
		ID:           uuid.NewString(),
		BusinessID:   businessID,
		Name:         name,
		DurationMins: durationMins,
		Price:        price,
		IsActive:     true,
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO services (id, business_id, name, duration_minutes, price, is_active)
		VALUES ($1, $2, $3, $4, $5, true)
	`, s.ID, s.BusinessID, s.Name, s.DurationMins, s.Price)
	if err != nil {
		return model.Service{}, err
	}
	return s, nil
}

func (r *Repository) ListServices(ctx context.Context, businessID string, activeOnly bool) ([]model.Service, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, business_id::text, name, duration_minutes, price::text, is_active
		FROM services
		WHERE business_id = $1 AND (is_active OR NOT $2)
		ORDER BY name
	`, businessID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Service
	for rows.Next() {
		var s model.Service
		if err := rows.Scan(&s.ID, &s.BusinessID, &s.Name, &s.DurationMins, &s.Price, &s.IsActive); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// UpdateService edits the catalog entry. Existing appointments keep the end
// times they were booked with; a duration change only affects new bookings.
func (r *Repository) UpdateService(ctx context.Context, businessID, serviceID, name string, durationMins int, price string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE services
		SET name = $3, duration_minutes = $4, price = $5
		WHERE id = $1 AND business_id = $2
	`, serviceID, businessID, name, durationMins, price)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetServiceActive soft-deletes (or restores) a service. Deactivated
// services stop appearing in booking flows but keep their history.
func (r *Repository) SetServiceActive(ctx context.Context, businessID, serviceID string, active bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE services SET is_active = $3 WHERE id = $1 AND business_id = $2
	`, serviceID, businessID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) CreateStaff(ctx context.Context, businessID, name, phone string) (model.Staff, error) {
	s := model.Staff{
		ID:         uuid.NewString(),
		BusinessID: businessID,
		Name:       name,
		Phone:      phone,
		IsActive:   true,
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO staff (id, business_id, name, phone, is_active)
		VALUES ($1, $2, $3, $4, true)
	`, s.ID, s.BusinessID, s.Name, s.Phone)
	if err != nil {
		return model.Staff{}, err
	}
	return s, nil
}

func (r *Repository) ListStaff(ctx context.Context, businessID string, activeOnly bool) ([]model.Staff, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, business_id::text, name, COALESCE(phone, ''), is_active
		FROM staff
		WHERE business_id = $1 AND (is_active OR NOT $2)
		ORDER BY name
	`, businessID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Staff
	for rows.Next() {
		var s model.Staff
		if err := rows.Scan(&s.ID, &s.BusinessID, &s.Name, &s.Phone, &s.IsActive); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *Repository) UpdateStaff(ctx context.Context, businessID, staffID, name, phone string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE staff SET name = $3, phone = $4 WHERE id = $1 AND business_id = $2
	`, staffID, businessID, name, phone)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStaffActive soft-deactivates a staff member, hiding them from booking
// flows without touching existing appointments.
func (r *Repository) SetStaffActive(ctx context.Context, businessID, staffID string, active bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE staff SET is_active = $3 WHERE id = $1 AND business_id = $2
	`, staffID, businessID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
