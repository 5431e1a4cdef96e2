package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"casanova-portal/internal/domains/payment/model"
)

// =====================================================
// INTENT REPOSITORY IMPLEMENTATION
// =====================================================
type intentRepository struct {
	pool *pgxpool.Pool
}

func NewIntentRepository(pool *pgxpool.Pool) IntentRepository {
	return &intentRepository{pool: pool}
}

const intentColumns = `
	id, token, user_id, client_id, folder_id, amount, currency, status,
	payload, collection_recorded_at, created_at, updated_at
`

// Create persists a new intent and fills in the store-owned fields.
func (r *intentRepository) Create(ctx context.Context, intent *model.PaymentIntent) error {
	query := `
		INSERT INTO payment_intents (
			token, user_id, client_id, folder_id, amount, currency, status, payload
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
		RETURNING id, created_at, updated_at
	`

	payloadJSON, err := json.Marshal(intent.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	err = r.pool.QueryRow(ctx, query,
		intent.Token,
		intent.UserID,
		intent.ClientID,
		intent.FolderID,
		intent.Amount,
		intent.Currency,
		intent.Status,
		payloadJSON,
	).Scan(&intent.ID, &intent.CreatedAt, &intent.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create payment intent: %w", err)
	}

	return nil
}

// Update applies a partial merge; the payload, when present, is replaced
// wholesale.
func (r *intentRepository) Update(ctx context.Context, id int64, upd IntentUpdate) error {
	query := `
		UPDATE payment_intents
		SET status = COALESCE($2, status),
			payload = COALESCE($3, payload),
			updated_at = NOW()
		WHERE id = $1
	`

	var payloadJSON []byte
	if upd.Payload != nil {
		var err error
		payloadJSON, err = json.Marshal(upd.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	result, err := r.pool.Exec(ctx, query, id, upd.Status, payloadJSON)
	if err != nil {
		return fmt.Errorf("failed to update payment intent: %w", err)
	}

	if result.RowsAffected() == 0 {
		return model.ErrIntentNotFound
	}

	return nil
}

func (r *intentRepository) GetByToken(ctx context.Context, token string) (*model.PaymentIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM payment_intents WHERE token = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, token))
}

func (r *intentRepository) GetByID(ctx context.Context, id int64) (*model.PaymentIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM payment_intents WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

// MarkPaid is the compare-and-swap transition to paid. The WHERE clause
// excludes terminal statuses so a racing second delivery affects zero rows.
func (r *intentRepository) MarkPaid(ctx context.Context, id int64, payload model.IntentPayload) (bool, error) {
	query := `
		UPDATE payment_intents
		SET status = $2,
			payload = $3,
			updated_at = NOW()
		WHERE id = $1 AND status NOT IN ($4, $5)
	`

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("failed to marshal payload: %w", err)
	}

	result, err := r.pool.Exec(ctx, query,
		id,
		model.IntentStatusPaid,
		payloadJSON,
		model.IntentStatusPaid,
		model.IntentStatusFailed,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark intent as paid: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

func (r *intentRepository) ListPaidPendingCollection(ctx context.Context, limit int) ([]*model.PaymentIntent, error) {
	query := `
		SELECT ` + intentColumns + `
		FROM payment_intents
		WHERE status = $1 AND collection_recorded_at IS NULL
		ORDER BY updated_at ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, model.IntentStatusPaid, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list intents pending collection: %w", err)
	}
	defer rows.Close()

	var intents []*model.PaymentIntent
	for rows.Next() {
		intent, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		intents = append(intents, intent)
	}

	return intents, rows.Err()
}

func (r *intentRepository) MarkCollectionRecorded(ctx context.Context, id int64) error {
	query := `
		UPDATE payment_intents
		SET collection_recorded_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND collection_recorded_at IS NULL
	`

	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to mark collection as recorded: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *intentRepository) scanOne(row rowScanner) (*model.PaymentIntent, error) {
	intent := &model.PaymentIntent{}
	var payloadJSON []byte

	err := row.Scan(
		&intent.ID,
		&intent.Token,
		&intent.UserID,
		&intent.ClientID,
		&intent.FolderID,
		&intent.Amount,
		&intent.Currency,
		&intent.Status,
		&payloadJSON,
		&intent.CollectionRecordedAt,
		&intent.CreatedAt,
		&intent.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrIntentNotFound
		}
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}

	if payloadJSON != nil {
		if err := json.Unmarshal(payloadJSON, &intent.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}

	return intent, nil
}
