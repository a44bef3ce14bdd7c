package storage

import "context"

// RecordWhatsAppLog keeps an audit trail of outbound WhatsApp deliveries.
// Failures to send are recorded with errLog set; the row is written either way.
func (r *Repository) RecordWhatsAppLog(ctx context.Context, businessID, clientPhone, messageSent, errLog string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO whatsapp_logs (business_id, client_phone, message_sent, error_log)
		VALUES ($1, $2, $3, NULLIF($4, ''))
	`, businessID, clientPhone, messageSent, errLog)
	return err
}
