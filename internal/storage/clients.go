package storage

import (
	"context"
	"strings"

	"github.com/agendaya/turnero/internal/model"
)

// DefaultClientName is the placeholder used when a first-contact message
// carries no usable name.
const DefaultClientName = "Estimado Cliente"

// ResolveClient returns the client keyed by (business, phone), creating it
// on first contact. The insert-then-select pair is race-safe: the unique
// index on (business_id, whatsapp_phone) guarantees at most one row, and
// ON CONFLICT DO NOTHING makes concurrent first contacts converge on it.
// An existing client's name is never overwritten by the hint.
func (r *Repository) ResolveClient(ctx context.Context, businessID, phone, nameHint string) (model.Client, error) {
	name := strings.TrimSpace(nameHint)
	if name == "" {
		name = DefaultClientName
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO clients (business_id, name, whatsapp_phone)
		VALUES ($1, $2, $3)
		ON CONFLICT (business_id, whatsapp_phone) DO NOTHING
	`, businessID, name, phone)
	if err != nil {
		return model.Client{}, err
	}

	var c model.Client
	err = r.pool.QueryRow(ctx, `
		SELECT id::text, business_id::text, name, whatsapp_phone, registered_at
		FROM clients
		WHERE business_id = $1 AND whatsapp_phone = $2
	`, businessID, phone).Scan(&c.ID, &c.BusinessID, &c.Name, &c.WhatsAppPhone, &c.RegisteredAt)
	if err != nil {
		return model.Client{}, err
	}
	return c, nil
}

func (r *Repository) ListClients(ctx context.Context, businessID string, limit int) ([]model.Client, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, business_id::text, name, whatsapp_phone, registered_at
		FROM clients
		WHERE business_id = $1
		ORDER BY registered_at DESC
		LIMIT $2
	`, businessID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []model.Client
	for rows.Next() {
		var c model.Client
		if err := rows.Scan(&c.ID, &c.BusinessID, &c.Name, &c.WhatsAppPhone, &c.RegisteredAt); err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return clients, nil
}

// RenameClient updates the display name only; the phone is the identity key
// and is never edited through this path.
func (r *Repository) RenameClient(ctx context.Context, businessID, clientID, name string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE clients SET name = $3 WHERE id = $1 AND business_id = $2
	`, clientID, businessID, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
