package storage

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/agendaya/turnero/internal/db"
	"github.com/agendaya/turnero/internal/outbox"
	"github.com/agendaya/turnero/internal/reminders"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrInvalidTransition = errors.New("status transition not allowed")
)

// Repository is the pgx-backed persistence layer. Appointment inserts rely
// on the staff_no_overlap exclusion constraint (see migrations), so the
// check-then-write race resolves at commit time: the losing writer gets a
// 23P01 which is surfaced as booking.ErrSlotTaken.
type Repository struct {
	pool            *db.Pool
	outbox          *outbox.Repository
	reminders       *reminders.Repository
	reminderOffsets []time.Duration
}

func NewRepository(pool *db.Pool, outboxRepo *outbox.Repository, reminderRepo *reminders.Repository, reminderOffsets []time.Duration) *Repository {
	return &Repository{
		pool:            pool,
		outbox:          outboxRepo,
		reminders:       reminderRepo,
		reminderOffsets: reminderOffsets,
	}
}

// IsConflict reports whether err is a Postgres exclusion constraint
// violation (overlapping appointment interval).
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
