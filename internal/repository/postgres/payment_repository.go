package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rentago/payments/internal/domain/errs"
	"github.com/rentago/payments/internal/domain/payment"
)

const paymentColumns = `id, reservation_id, user_id, amount, currency, status, method,
	        reference, provider_transaction_id, last_error, created_at, updated_at`

// PaymentRepository implements payment.Repository using PostgreSQL.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository creates a new PaymentRepository.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

func (r *PaymentRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Create inserts a new pending ledger record. A unique partial index on
// (reservation_id) WHERE status != 'failed' enforces at most one active
// payment attempt per reservation; a violation maps to a conflict error.
func (r *PaymentRepository) Create(ctx context.Context, p *payment.Record) error {
	amountStr := centsToNumericString(p.Amount.ValueCents)

	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO payments
		 (id, reservation_id, user_id, amount, currency, status, method,
		  reference, provider_transaction_id, last_error, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		p.ID, p.ReservationID, p.UserID, amountStr, p.Amount.Currency, string(p.Status),
		p.Method, p.Reference, p.ProviderTransactionID, p.LastError, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return errs.Wrap(errs.KindConflict,
				"an active payment already exists for this reservation", err)
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// GetByID retrieves a record by its ID.
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Record, error) {
	return r.scanRecord(r.db(ctx).QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
}

// GetByReference retrieves a record by its provider reference.
func (r *PaymentRepository) GetByReference(ctx context.Context, reference string) (*payment.Record, error) {
	return r.scanRecord(r.db(ctx).QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE reference = $1`, reference))
}

// GetActiveByReservation retrieves the reservation's non-failed record.
// The partial unique index guarantees at most one exists.
func (r *PaymentRepository) GetActiveByReservation(ctx context.Context, reservationID int64) (*payment.Record, error) {
	return r.scanRecord(r.db(ctx).QueryRow(ctx,
		`SELECT `+paymentColumns+`
		 FROM payments WHERE reservation_id = $1 AND status <> 'failed'`, reservationID))
}

// GetByReferenceForUpdate retrieves a record by reference holding a row
// lock for the duration of the surrounding transaction.
func (r *PaymentRepository) GetByReferenceForUpdate(ctx context.Context, reference string) (*payment.Record, error) {
	return r.scanRecord(r.db(ctx).QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE reference = $1 FOR UPDATE`, reference))
}

// TransitionTerminal persists a terminal transition. The status guard in
// the WHERE clause makes the transition a compare-and-set: if the record
// is no longer pending the update touches zero rows and a conflict is
// returned, so exactly one concurrent confirmation wins.
func (r *PaymentRepository) TransitionTerminal(ctx context.Context, p *payment.Record) error {
	if !p.IsTerminal() {
		return errs.New(errs.KindValidation, "record is not in a terminal state")
	}

	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE payments SET
		  status = $1, provider_transaction_id = $2, last_error = $3, updated_at = $4
		 WHERE id = $5 AND status = 'pending'`,
		string(p.Status), p.ProviderTransactionID, p.LastError, p.UpdatedAt, p.ID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return errs.Wrap(errs.KindConflict,
				"provider transaction id already recorded", err)
		}
		return fmt.Errorf("transition payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.New(errs.KindConflict, "payment already reached a terminal state")
	}
	return nil
}

// ListStalePending returns pending records created before the cutoff,
// oldest first, for the reconciler.
func (r *PaymentRepository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*payment.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+paymentColumns+`
		 FROM payments WHERE status = 'pending' AND created_at < $1
		 ORDER BY created_at ASC
		 LIMIT $2`, olderThan, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list stale pending payments: %w", err)
	}
	defer rows.Close()

	var records []*payment.Record
	for rows.Next() {
		p, err := r.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, p)
	}
	return records, rows.Err()
}

// scanRecord scans a payment record from any source implementing the scanner interface.
func (r *PaymentRepository) scanRecord(s scanner) (*payment.Record, error) {
	p := &payment.Record{}
	var (
		amountStr string
		status    string
	)
	err := s.Scan(
		&p.ID, &p.ReservationID, &p.UserID, &amountStr, &p.Amount.Currency, &status,
		&p.Method, &p.Reference, &p.ProviderTransactionID, &p.LastError, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errs.New(errs.KindNotFound, "payment not found")
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}

	cents, err := numericStringToCents(amountStr)
	if err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	p.Amount.ValueCents = cents
	p.Status = payment.Status(status)
	return p, nil
}
