/**
 * @description
 * PostgreSQL implementation of the projection storage contracts. Each state
 * store resolves its partition key from the incoming event, loads the current
 * row (or a default zero state when none exists) and saves inside one
 * transaction that first records the event in processed_events:
 *
 *   - the (projection, event_id) marker INSERT uses `ON CONFLICT DO NOTHING`;
 *     a suppressed insert means a prior delivery already applied this event,
 *     so the save returns success without touching the state row. This holds
 *     for sequential redelivery (a lost broker ack after a completed pass),
 *     not just concurrent races.
 *   - the state write itself stays version-guarded as a second line against
 *     concurrent deliveries of different events for the same partition.
 *
 * Ledger inserts rely on the (aggregate_id, original_event_id) unique key
 * with `ON CONFLICT DO NOTHING` so redelivery can never write a second row.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Read-model states and ledger entries.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/transactionprocessing/projection-service/internal/domain"
)

// PostgresRepository bundles the typed stores sharing one connection pool.
type PostgresRepository struct {
	db *pgxpool.Pool

	MerchantBalances *PostgresMerchantBalanceStore
	Vouchers         *PostgresVoucherStore
	Settlements      *PostgresSettlementStore
	Estates          *PostgresEstateStore
	Ledger           *PostgresLedgerStore
}

// NewPostgresRepository creates the repository and its typed store views.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{
		db:               db,
		MerchantBalances: &PostgresMerchantBalanceStore{db: db},
		Vouchers:         &PostgresVoucherStore{db: db},
		Settlements:      &PostgresSettlementStore{db: db},
		Estates:          &PostgresEstateStore{db: db},
		Ledger:           &PostgresLedgerStore{db: db},
	}
}

// EnsureSchema creates the read-model tables if they do not exist yet. The
// per-estate reporting schemas are provisioned separately, driven by estate
// creation events.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS merchant_balances (
            merchant_id      UUID PRIMARY KEY,
            estate_id        UUID NOT NULL DEFAULT '00000000-0000-0000-0000-000000000000',
            merchant_name    TEXT NOT NULL DEFAULT '',
            balance          NUMERIC(18,4) NOT NULL DEFAULT 0,
            available_balance NUMERIC(18,4) NOT NULL DEFAULT 0,
            deposit_count    INTEGER NOT NULL DEFAULT 0,
            total_deposited  NUMERIC(18,4) NOT NULL DEFAULT 0,
            withdrawal_count INTEGER NOT NULL DEFAULT 0,
            total_withdrawn  NUMERIC(18,4) NOT NULL DEFAULT 0,
            sale_count       INTEGER NOT NULL DEFAULT 0,
            authorised_sales NUMERIC(18,4) NOT NULL DEFAULT 0,
            declined_sales   NUMERIC(18,4) NOT NULL DEFAULT 0,
            fee_count        INTEGER NOT NULL DEFAULT 0,
            value_of_fees    NUMERIC(18,4) NOT NULL DEFAULT 0,
            last_deposit     TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
            last_withdrawal  TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
            last_sale        TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
            last_fee         TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
            changes_applied  BOOLEAN NOT NULL DEFAULT FALSE,
            version          BIGINT NOT NULL DEFAULT 1,
            updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE TABLE IF NOT EXISTS voucher_states (
            voucher_id      UUID PRIMARY KEY,
            estate_id       UUID NOT NULL DEFAULT '00000000-0000-0000-0000-000000000000',
            transaction_id  UUID NOT NULL DEFAULT '00000000-0000-0000-0000-000000000000',
            operator_id     TEXT NOT NULL DEFAULT '',
            value           NUMERIC(18,4) NOT NULL DEFAULT 0,
            barcode         TEXT NOT NULL DEFAULT '',
            recipient_email TEXT NOT NULL DEFAULT '',
            recipient_phone TEXT NOT NULL DEFAULT '',
            generated       BOOLEAN NOT NULL DEFAULT FALSE,
            issued          BOOLEAN NOT NULL DEFAULT FALSE,
            redeemed        BOOLEAN NOT NULL DEFAULT FALSE,
            generated_at    TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
            issued_at       TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
            redeemed_at     TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
            expires_at      TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
            changes_applied BOOLEAN NOT NULL DEFAULT FALSE,
            version         BIGINT NOT NULL DEFAULT 1,
            updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE TABLE IF NOT EXISTS settlement_states (
            settlement_id   UUID PRIMARY KEY,
            estate_id       UUID NOT NULL DEFAULT '00000000-0000-0000-0000-000000000000',
            settlement_date TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
            fee_count       INTEGER NOT NULL DEFAULT 0,
            settled_value   NUMERIC(18,4) NOT NULL DEFAULT 0,
            processing_started_at TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
            completed_at    TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
            completed       BOOLEAN NOT NULL DEFAULT FALSE,
            changes_applied BOOLEAN NOT NULL DEFAULT FALSE,
            version         BIGINT NOT NULL DEFAULT 1,
            updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE TABLE IF NOT EXISTS estate_states (
            estate_id       UUID PRIMARY KEY,
            estate_name     TEXT NOT NULL DEFAULT '',
            created_at      TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
            changes_applied BOOLEAN NOT NULL DEFAULT FALSE,
            version         BIGINT NOT NULL DEFAULT 1,
            updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
        CREATE TABLE IF NOT EXISTS merchant_ledger (
            aggregate_id      UUID NOT NULL,
            original_event_id UUID NOT NULL,
            merchant_id       UUID NOT NULL,
            estate_id         UUID NOT NULL,
            change_amount     NUMERIC(18,4) NOT NULL,
            occurred_at       TIMESTAMPTZ NOT NULL,
            reference         TEXT NOT NULL,
            direction         CHAR(1) NOT NULL,
            PRIMARY KEY (aggregate_id, original_event_id)
        );
        CREATE INDEX IF NOT EXISTS idx_merchant_ledger_merchant
            ON merchant_ledger (merchant_id, occurred_at DESC);
        CREATE TABLE IF NOT EXISTS processed_events (
            projection TEXT NOT NULL,
            event_id   UUID NOT NULL,
            applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (projection, event_id)
        );
    `)
	if err != nil {
		return classifyStorageError(fmt.Errorf("ensure schema: %w", err))
	}
	return nil
}

// classifyStorageError wraps retryable driver failures in TransientError.
// Postgres error classes 08 (connection), 40 (serialization), 53 (resources),
// 57 (operator intervention) and 58 (system) are worth a redelivery, as are
// dial failures, timeouts, dropped connections and context cancellation.
// Everything else, including row-scan and decode failures, surfaces as-is so
// a malformed row cannot requeue forever.
func classifyStorageError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if len(pgErr.Code) >= 2 {
			switch pgErr.Code[:2] {
			case "08", "40", "53", "57", "58":
				return &TransientError{Err: err}
			}
		}
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &TransientError{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &TransientError{Err: err}
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &TransientError{Err: err}
	}
	return err
}

// saveWithEventGuard runs write inside a transaction that first marks the
// event as processed for the named projection. A suppressed marker insert
// means a prior delivery already applied this event; the state write is
// skipped and the save reports success, so a redelivered event can never
// re-apply its change.
func saveWithEventGuard(ctx context.Context, db *pgxpool.Pool, projection string, eventID uuid.UUID, write func(pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return classifyStorageError(err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO processed_events (projection, event_id)
		VALUES ($1, $2)
		ON CONFLICT (projection, event_id) DO NOTHING`,
		projection, eventID,
	)
	if err != nil {
		return classifyStorageError(err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}
	if err := write(tx); err != nil {
		return err
	}
	return classifyStorageError(tx.Commit(ctx))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Projection names keying the processed_events marker table.
const (
	merchantBalanceProjection = "merchant_balance"
	voucherProjection         = "voucher"
	settlementProjection      = "settlement"
	estateProjection          = "estate"
)

// ---------------------------------------------------------------------------
// Merchant balance store
// ---------------------------------------------------------------------------

type PostgresMerchantBalanceStore struct {
	db *pgxpool.Pool
}

const merchantBalanceColumns = `
	merchant_id, estate_id, merchant_name, balance, available_balance,
	deposit_count, total_deposited, withdrawal_count, total_withdrawn,
	sale_count, authorised_sales, declined_sales, fee_count, value_of_fees,
	last_deposit, last_withdrawal, last_sale, last_fee, changes_applied, version`

// Load resolves the merchant partition key and returns the stored state, or
// the zero state at version 0 when no row exists yet.
func (s *PostgresMerchantBalanceStore) Load(ctx context.Context, ev domain.Event) (domain.MerchantBalanceState, error) {
	merchantID, ok := domain.MerchantIDFor(ev)
	if !ok {
		return domain.MerchantBalanceState{}, fmt.Errorf("%w: event %s (%s) carries no merchant id", ErrMalformedPartitionKey, ev.ID, ev.Type)
	}

	query := `SELECT` + merchantBalanceColumns + ` FROM merchant_balances WHERE merchant_id = $1`
	var state domain.MerchantBalanceState
	err := s.db.QueryRow(ctx, query, merchantID).Scan(
		&state.MerchantID, &state.EstateID, &state.MerchantName,
		&state.Balance, &state.AvailableBalance,
		&state.DepositCount, &state.TotalDeposited,
		&state.WithdrawalCount, &state.TotalWithdrawn,
		&state.SaleCount, &state.AuthorisedSales, &state.DeclinedSales,
		&state.FeeCount, &state.ValueOfFees,
		&state.LastDeposit, &state.LastWithdrawal, &state.LastSale, &state.LastFee,
		&state.ChangesApplied, &state.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NewMerchantBalanceState(merchantID), nil
		}
		return domain.MerchantBalanceState{}, classifyStorageError(err)
	}
	return state, nil
}

// Save upserts the state, guarded by the processed_events marker so a
// redelivered event is a no-op, and gated on the loaded version against
// concurrent writers.
func (s *PostgresMerchantBalanceStore) Save(ctx context.Context, state domain.MerchantBalanceState, ev domain.Event) error {
	return saveWithEventGuard(ctx, s.db, merchantBalanceProjection, ev.ID, func(tx pgx.Tx) error {
		if state.Version == 0 {
			query := `
				INSERT INTO merchant_balances (` + merchantBalanceColumns + `)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, 1)
				ON CONFLICT (merchant_id) DO NOTHING`
			_, err := tx.Exec(ctx, query,
				state.MerchantID, state.EstateID, state.MerchantName,
				state.Balance, state.AvailableBalance,
				state.DepositCount, state.TotalDeposited,
				state.WithdrawalCount, state.TotalWithdrawn,
				state.SaleCount, state.AuthorisedSales, state.DeclinedSales,
				state.FeeCount, state.ValueOfFees,
				state.LastDeposit, state.LastWithdrawal, state.LastSale, state.LastFee,
				state.ChangesApplied,
			)
			if err != nil {
				return classifyStorageError(err)
			}
			return nil
		}

		query := `
			UPDATE merchant_balances SET
				estate_id = $2, merchant_name = $3, balance = $4, available_balance = $5,
				deposit_count = $6, total_deposited = $7, withdrawal_count = $8, total_withdrawn = $9,
				sale_count = $10, authorised_sales = $11, declined_sales = $12,
				fee_count = $13, value_of_fees = $14,
				last_deposit = $15, last_withdrawal = $16, last_sale = $17, last_fee = $18,
				changes_applied = $19, version = version + 1, updated_at = NOW()
			WHERE merchant_id = $1 AND version = $20`
		_, err := tx.Exec(ctx, query,
			state.MerchantID, state.EstateID, state.MerchantName,
			state.Balance, state.AvailableBalance,
			state.DepositCount, state.TotalDeposited,
			state.WithdrawalCount, state.TotalWithdrawn,
			state.SaleCount, state.AuthorisedSales, state.DeclinedSales,
			state.FeeCount, state.ValueOfFees,
			state.LastDeposit, state.LastWithdrawal, state.LastSale, state.LastFee,
			state.ChangesApplied, state.Version,
		)
		if err != nil {
			return classifyStorageError(err)
		}
		return nil
	})
}

// ---------------------------------------------------------------------------
// Voucher store (duplicate-insert tolerant)
// ---------------------------------------------------------------------------

type PostgresVoucherStore struct {
	db *pgxpool.Pool
}

const voucherColumns = `
	voucher_id, estate_id, transaction_id, operator_id, value, barcode,
	recipient_email, recipient_phone, generated, issued, redeemed,
	generated_at, issued_at, redeemed_at, expires_at, changes_applied, version`

func (s *PostgresVoucherStore) Load(ctx context.Context, ev domain.Event) (domain.VoucherState, error) {
	voucherID, ok := domain.VoucherIDFor(ev)
	if !ok {
		return domain.VoucherState{}, fmt.Errorf("%w: event %s (%s) carries no voucher id", ErrMalformedPartitionKey, ev.ID, ev.Type)
	}

	query := `SELECT` + voucherColumns + ` FROM voucher_states WHERE voucher_id = $1`
	var state domain.VoucherState
	err := s.db.QueryRow(ctx, query, voucherID).Scan(
		&state.VoucherID, &state.EstateID, &state.TransactionID, &state.OperatorID,
		&state.Value, &state.Barcode,
		&state.RecipientEmail, &state.RecipientPhone,
		&state.Generated, &state.Issued, &state.Redeemed,
		&state.GeneratedAt, &state.IssuedAt, &state.RedeemedAt, &state.ExpiresAt,
		&state.ChangesApplied, &state.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NewVoucherState(voucherID), nil
		}
		return domain.VoucherState{}, classifyStorageError(err)
	}
	return state, nil
}

func (s *PostgresVoucherStore) Save(ctx context.Context, state domain.VoucherState, ev domain.Event) error {
	return saveWithEventGuard(ctx, s.db, voucherProjection, ev.ID, func(tx pgx.Tx) error {
		if state.Version == 0 {
			query := `
				INSERT INTO voucher_states (` + voucherColumns + `)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, 1)
				ON CONFLICT (voucher_id) DO NOTHING`
			_, err := tx.Exec(ctx, query,
				state.VoucherID, state.EstateID, state.TransactionID, state.OperatorID,
				state.Value, state.Barcode,
				state.RecipientEmail, state.RecipientPhone,
				state.Generated, state.Issued, state.Redeemed,
				state.GeneratedAt, state.IssuedAt, state.RedeemedAt, state.ExpiresAt,
				state.ChangesApplied,
			)
			if err != nil {
				return classifyStorageError(err)
			}
			return nil
		}

		query := `
			UPDATE voucher_states SET
				estate_id = $2, transaction_id = $3, operator_id = $4, value = $5, barcode = $6,
				recipient_email = $7, recipient_phone = $8,
				generated = $9, issued = $10, redeemed = $11,
				generated_at = $12, issued_at = $13, redeemed_at = $14, expires_at = $15,
				changes_applied = $16, version = version + 1, updated_at = NOW()
			WHERE voucher_id = $1 AND version = $17`
		_, err := tx.Exec(ctx, query,
			state.VoucherID, state.EstateID, state.TransactionID, state.OperatorID,
			state.Value, state.Barcode,
			state.RecipientEmail, state.RecipientPhone,
			state.Generated, state.Issued, state.Redeemed,
			state.GeneratedAt, state.IssuedAt, state.RedeemedAt, state.ExpiresAt,
			state.ChangesApplied, state.Version,
		)
		if err != nil {
			return classifyStorageError(err)
		}
		return nil
	})
}

// ---------------------------------------------------------------------------
// Settlement store
// ---------------------------------------------------------------------------

type PostgresSettlementStore struct {
	db *pgxpool.Pool
}

const settlementColumns = `
	settlement_id, estate_id, settlement_date, fee_count, settled_value,
	processing_started_at, completed_at, completed, changes_applied, version`

func (s *PostgresSettlementStore) Load(ctx context.Context, ev domain.Event) (domain.SettlementState, error) {
	settlementID, ok := domain.SettlementIDFor(ev)
	if !ok {
		return domain.SettlementState{}, fmt.Errorf("%w: event %s (%s) carries no settlement id", ErrMalformedPartitionKey, ev.ID, ev.Type)
	}

	query := `SELECT` + settlementColumns + ` FROM settlement_states WHERE settlement_id = $1`
	var state domain.SettlementState
	err := s.db.QueryRow(ctx, query, settlementID).Scan(
		&state.SettlementID, &state.EstateID, &state.SettlementDate,
		&state.FeeCount, &state.SettledValue,
		&state.ProcessingStartedAt, &state.CompletedAt, &state.Completed,
		&state.ChangesApplied, &state.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NewSettlementState(settlementID), nil
		}
		return domain.SettlementState{}, classifyStorageError(err)
	}
	return state, nil
}

func (s *PostgresSettlementStore) Save(ctx context.Context, state domain.SettlementState, ev domain.Event) error {
	return saveWithEventGuard(ctx, s.db, settlementProjection, ev.ID, func(tx pgx.Tx) error {
		if state.Version == 0 {
			query := `
				INSERT INTO settlement_states (` + settlementColumns + `)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)
				ON CONFLICT (settlement_id) DO NOTHING`
			_, err := tx.Exec(ctx, query,
				state.SettlementID, state.EstateID, state.SettlementDate,
				state.FeeCount, state.SettledValue,
				state.ProcessingStartedAt, state.CompletedAt, state.Completed,
				state.ChangesApplied,
			)
			if err != nil {
				return classifyStorageError(err)
			}
			return nil
		}

		query := `
			UPDATE settlement_states SET
				estate_id = $2, settlement_date = $3, fee_count = $4, settled_value = $5,
				processing_started_at = $6, completed_at = $7, completed = $8,
				changes_applied = $9, version = version + 1, updated_at = NOW()
			WHERE settlement_id = $1 AND version = $10`
		_, err := tx.Exec(ctx, query,
			state.SettlementID, state.EstateID, state.SettlementDate,
			state.FeeCount, state.SettledValue,
			state.ProcessingStartedAt, state.CompletedAt, state.Completed,
			state.ChangesApplied, state.Version,
		)
		if err != nil {
			return classifyStorageError(err)
		}
		return nil
	})
}

// ---------------------------------------------------------------------------
// Estate store and per-estate schema provisioning
// ---------------------------------------------------------------------------

type PostgresEstateStore struct {
	db *pgxpool.Pool
}

func (s *PostgresEstateStore) Load(ctx context.Context, ev domain.Event) (domain.EstateState, error) {
	estateID, ok := domain.EstateIDFor(ev)
	if !ok {
		return domain.EstateState{}, fmt.Errorf("%w: event %s (%s) carries no estate id", ErrMalformedPartitionKey, ev.ID, ev.Type)
	}

	query := `SELECT estate_id, estate_name, created_at, changes_applied, version FROM estate_states WHERE estate_id = $1`
	var state domain.EstateState
	err := s.db.QueryRow(ctx, query, estateID).Scan(
		&state.EstateID, &state.EstateName, &state.CreatedAt,
		&state.ChangesApplied, &state.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NewEstateState(estateID), nil
		}
		return domain.EstateState{}, classifyStorageError(err)
	}
	return state, nil
}

func (s *PostgresEstateStore) Save(ctx context.Context, state domain.EstateState, ev domain.Event) error {
	return saveWithEventGuard(ctx, s.db, estateProjection, ev.ID, func(tx pgx.Tx) error {
		if state.Version == 0 {
			query := `
				INSERT INTO estate_states (estate_id, estate_name, created_at, changes_applied, version)
				VALUES ($1, $2, $3, $4, 1)
				ON CONFLICT (estate_id) DO NOTHING`
			_, err := tx.Exec(ctx, query, state.EstateID, state.EstateName, state.CreatedAt, state.ChangesApplied)
			if err != nil {
				return classifyStorageError(err)
			}
			return nil
		}

		query := `
			UPDATE estate_states SET
				estate_name = $2, created_at = $3, changes_applied = $4,
				version = version + 1, updated_at = NOW()
			WHERE estate_id = $1 AND version = $5`
		_, err := tx.Exec(ctx, query, state.EstateID, state.EstateName, state.CreatedAt, state.ChangesApplied, state.Version)
		if err != nil {
			return classifyStorageError(err)
		}
		return nil
	})
}

// ProvisionEstateSchema creates the per-tenant reporting schema. All DDL is
// IF NOT EXISTS so redelivery of the estate-created event is a no-op.
func (r *PostgresRepository) ProvisionEstateSchema(ctx context.Context, estateID uuid.UUID) error {
	schema := estateSchemaName(estateID)

	statements := []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, schema),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s.transaction_facts (
				transaction_id UUID PRIMARY KEY,
				merchant_id    UUID NOT NULL,
				amount         NUMERIC(18,4) NOT NULL DEFAULT 0,
				is_authorised  BOOLEAN NOT NULL DEFAULT FALSE,
				response_code  TEXT NOT NULL DEFAULT '',
				occurred_at    TIMESTAMPTZ NOT NULL
			)`, schema),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s.settled_fees (
				fee_id           UUID PRIMARY KEY,
				transaction_id   UUID NOT NULL,
				merchant_id      UUID NOT NULL,
				calculated_value NUMERIC(18,4) NOT NULL DEFAULT 0,
				settled_at       TIMESTAMPTZ NOT NULL
			)`, schema),
	}

	for _, stmt := range statements {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return classifyStorageError(fmt.Errorf("provision schema %s: %w", schema, err))
		}
	}
	return nil
}

// estateSchemaName derives a safe schema identifier from the estate id.
// UUID hex only, so no quoting or injection concerns.
func estateSchemaName(estateID uuid.UUID) string {
	return "estate_" + strings.ReplaceAll(estateID.String(), "-", "")
}

// ---------------------------------------------------------------------------
// Ledger store
// ---------------------------------------------------------------------------

type PostgresLedgerStore struct {
	db *pgxpool.Pool
}

// InsertLedgerEntry appends one entry, suppressing duplicates on the
// (aggregate_id, original_event_id) unique key.
func (s *PostgresLedgerStore) InsertLedgerEntry(ctx context.Context, entry domain.LedgerEntry) (bool, error) {
	query := `
		INSERT INTO merchant_ledger
			(aggregate_id, original_event_id, merchant_id, estate_id, change_amount, occurred_at, reference, direction)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (aggregate_id, original_event_id) DO NOTHING`
	result, err := s.db.Exec(ctx, query,
		entry.AggregateID, entry.OriginalEventID, entry.MerchantID, entry.EstateID,
		entry.ChangeAmount, entry.OccurredAt, entry.Reference, string(entry.Direction),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, classifyStorageError(err)
	}
	return result.RowsAffected() == 1, nil
}

// ListLedgerEntries returns a merchant's ledger page, newest first.
func (s *PostgresLedgerStore) ListLedgerEntries(ctx context.Context, merchantID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT aggregate_id, original_event_id, merchant_id, estate_id, change_amount, occurred_at, reference, direction
		FROM merchant_ledger
		WHERE merchant_id = $1
		ORDER BY occurred_at DESC, original_event_id DESC
		LIMIT $2 OFFSET $3`
	rows, err := s.db.Query(ctx, query, merchantID, limit, offset)
	if err != nil {
		return nil, classifyStorageError(err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var entry domain.LedgerEntry
		var direction string
		if err := rows.Scan(
			&entry.AggregateID, &entry.OriginalEventID, &entry.MerchantID, &entry.EstateID,
			&entry.ChangeAmount, &entry.OccurredAt, &entry.Reference, &direction,
		); err != nil {
			return nil, classifyStorageError(err)
		}
		entry.Direction = domain.EntryDirection(direction)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyStorageError(err)
	}
	return entries, nil
}

// ---------------------------------------------------------------------------
// Read-side queries for the API
// ---------------------------------------------------------------------------

// GetMerchantBalance returns the stored balance view for one merchant.
func (r *PostgresRepository) GetMerchantBalance(ctx context.Context, merchantID uuid.UUID) (*domain.MerchantBalanceState, error) {
	query := `SELECT` + merchantBalanceColumns + ` FROM merchant_balances WHERE merchant_id = $1`
	var state domain.MerchantBalanceState
	err := r.db.QueryRow(ctx, query, merchantID).Scan(
		&state.MerchantID, &state.EstateID, &state.MerchantName,
		&state.Balance, &state.AvailableBalance,
		&state.DepositCount, &state.TotalDeposited,
		&state.WithdrawalCount, &state.TotalWithdrawn,
		&state.SaleCount, &state.AuthorisedSales, &state.DeclinedSales,
		&state.FeeCount, &state.ValueOfFees,
		&state.LastDeposit, &state.LastWithdrawal, &state.LastSale, &state.LastFee,
		&state.ChangesApplied, &state.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStateNotFound
		}
		return nil, classifyStorageError(err)
	}
	return &state, nil
}

// GetVoucher returns the stored view of one voucher.
func (r *PostgresRepository) GetVoucher(ctx context.Context, voucherID uuid.UUID) (*domain.VoucherState, error) {
	query := `SELECT` + voucherColumns + ` FROM voucher_states WHERE voucher_id = $1`
	var state domain.VoucherState
	err := r.db.QueryRow(ctx, query, voucherID).Scan(
		&state.VoucherID, &state.EstateID, &state.TransactionID, &state.OperatorID,
		&state.Value, &state.Barcode,
		&state.RecipientEmail, &state.RecipientPhone,
		&state.Generated, &state.Issued, &state.Redeemed,
		&state.GeneratedAt, &state.IssuedAt, &state.RedeemedAt, &state.ExpiresAt,
		&state.ChangesApplied, &state.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStateNotFound
		}
		return nil, classifyStorageError(err)
	}
	return &state, nil
}

// GetSettlement returns the stored view of one settlement run.
func (r *PostgresRepository) GetSettlement(ctx context.Context, settlementID uuid.UUID) (*domain.SettlementState, error) {
	query := `SELECT` + settlementColumns + ` FROM settlement_states WHERE settlement_id = $1`
	var state domain.SettlementState
	err := r.db.QueryRow(ctx, query, settlementID).Scan(
		&state.SettlementID, &state.EstateID, &state.SettlementDate,
		&state.FeeCount, &state.SettledValue,
		&state.ProcessingStartedAt, &state.CompletedAt, &state.Completed,
		&state.ChangesApplied, &state.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStateNotFound
		}
		return nil, classifyStorageError(err)
	}
	return &state, nil
}

// ListLedgerEntries proxies the ledger store for the read API.
func (r *PostgresRepository) ListLedgerEntries(ctx context.Context, merchantID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, error) {
	return r.Ledger.ListLedgerEntries(ctx, merchantID, limit, offset)
}
