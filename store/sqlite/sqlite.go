/*
Package sqlite provides the SQLite-backed implementation of the ledger
storage interfaces.

PURPOSE:
  Implements ledger.Store and ledger.TxStore over SQLite. The same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  owners:    identity, credit balance, owned properties (JSON)
  debts:     one row per (owner, property, year, month) obligation
  payments:  reported and system-generated transactions

INVARIANT ENFORCEMENT:
  idx_debts_slot is a UNIQUE index over (owner_id, street, house, year,
  month). The orchestrators also existence-check before insert inside
  the same transaction; the index is the backstop against races between
  processes sharing the file.

TRANSACTIONS:
  WithTx wraps the callback in BEGIN/COMMIT under a connection-level
  mutex, giving the snapshot-read / all-or-nothing-write semantics the
  orchestrators rely on. An error from the callback rolls back.

AMOUNT STORAGE:
  Monetary fields are stored as decimal strings (TEXT), never REAL.

WAL MODE:
  The database is opened with WAL for better read concurrency and
  crash recovery.

SEE ALSO:
  - ledger/store.go: interface definitions
  - store/memory:    in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/condoflow/billing-engine/ledger"
	"github.com/condoflow/billing-engine/money"
)

// Store implements ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS owners (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		role TEXT,
		balance TEXT NOT NULL DEFAULT '0',
		properties_json TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS debts (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		street TEXT NOT NULL DEFAULT '',
		house TEXT NOT NULL DEFAULT '',
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		amount_usd TEXT NOT NULL,
		description TEXT,
		status TEXT NOT NULL,
		paid_amount_usd TEXT,
		payment_date TEXT,
		payment_id TEXT,
		advance BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	-- One debt per (owner, property, period). Backstop for the
	-- read-before-write existence check in the orchestrators.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_debts_slot
		ON debts(owner_id, street, house, year, month);

	CREATE INDEX IF NOT EXISTS idx_debts_owner_status
		ON debts(owner_id, status);
	CREATE INDEX IF NOT EXISTS idx_debts_payment
		ON debts(payment_id) WHERE payment_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		beneficiaries_json TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		exchange_rate TEXT,
		payment_date TEXT NOT NULL,
		reported_at TEXT NOT NULL,
		method TEXT,
		bank TEXT,
		reference TEXT,
		status TEXT NOT NULL,
		receipt_url TEXT,
		observations TEXT,
		receipt_numbers_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_status
		ON payments(status);
	CREATE INDEX IF NOT EXISTS idx_payments_reference
		ON payments(reference) WHERE reference IS NOT NULL;
	`
	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so every query helper
// works inside and outside WithTx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// OWNERS
// =============================================================================

func (s *Store) GetOwner(ctx context.Context, id string) (*ledger.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getOwner(ctx, s.db, id)
}

func getOwner(ctx context.Context, db dbtx, id string) (*ledger.Owner, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, name, email, role, balance, properties_json, created_at
		FROM owners WHERE id = ?`, id)
	o, err := scanOwner(row)
	if err == sql.ErrNoRows {
		return nil, &ledger.NotFoundError{Kind: "owner", ID: id}
	}
	return o, err
}

func (s *Store) PutOwner(ctx context.Context, o *ledger.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return putOwner(ctx, s.db, o)
}

func putOwner(ctx context.Context, db dbtx, o *ledger.Owner) error {
	props, _ := json.Marshal(o.Properties)
	createdAt := o.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO owners (id, name, email, role, balance, properties_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			role = excluded.role,
			balance = excluded.balance,
			properties_json = excluded.properties_json`,
		o.ID, o.Name, o.Email, o.Role, o.Balance.String(), string(props),
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to put owner: %w", err)
	}
	return nil
}

func (s *Store) UpdateOwnerBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateOwnerBalance(ctx, s.db, id, balance)
}

func updateOwnerBalance(ctx context.Context, db dbtx, id string, balance decimal.Decimal) error {
	res, err := db.ExecContext(ctx,
		`UPDATE owners SET balance = ? WHERE id = ?`, balance.String(), id)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ledger.NotFoundError{Kind: "owner", ID: id}
	}
	return nil
}

func (s *Store) ListOwners(ctx context.Context) ([]*ledger.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listOwners(ctx, s.db, false)
}

func (s *Store) ListOwnersWithCredit(ctx context.Context) ([]*ledger.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listOwners(ctx, s.db, true)
}

func listOwners(ctx context.Context, db dbtx, creditOnly bool) ([]*ledger.Owner, error) {
	query := `
		SELECT id, name, email, role, balance, properties_json, created_at
		FROM owners ORDER BY id ASC`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	defer rows.Close()

	var owners []*ledger.Owner
	for rows.Next() {
		o, err := scanOwner(rows)
		if err != nil {
			return nil, err
		}
		// Balance is a decimal string column; the > 0 filter happens
		// here rather than in SQL to avoid comparing TEXT.
		if creditOnly && !o.Balance.IsPositive() {
			continue
		}
		owners = append(owners, o)
	}
	return owners, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOwner(row rowScanner) (*ledger.Owner, error) {
	var (
		o         ledger.Owner
		email     sql.NullString
		role      sql.NullString
		balance   string
		propsJSON string
		createdAt string
	)
	if err := row.Scan(&o.ID, &o.Name, &email, &role, &balance, &propsJSON, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan owner: %w", err)
	}
	o.Email = email.String
	o.Role = role.String
	o.Balance = money.MustParse(balance)
	if err := json.Unmarshal([]byte(propsJSON), &o.Properties); err != nil {
		return nil, fmt.Errorf("failed to decode properties for owner %s: %w", o.ID, err)
	}
	o.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &o, nil
}

// =============================================================================
// DEBTS
// =============================================================================

const debtColumns = `id, owner_id, street, house, year, month, amount_usd,
	description, status, paid_amount_usd, payment_date, payment_id, advance, created_at`

func (s *Store) GetDebt(ctx context.Context, id string) (*ledger.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getDebt(ctx, s.db, id)
}

func getDebt(ctx context.Context, db dbtx, id string) (*ledger.Debt, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+debtColumns+` FROM debts WHERE id = ?`, id)
	d, err := scanDebt(row)
	if err == sql.ErrNoRows {
		return nil, &ledger.NotFoundError{Kind: "debt", ID: id}
	}
	return d, err
}

func (s *Store) PutDebt(ctx context.Context, d *ledger.Debt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return putDebt(ctx, s.db, d)
}

func putDebt(ctx context.Context, db dbtx, d *ledger.Debt) error {
	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO debts (`+debtColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.OwnerID, d.Property.Street, d.Property.House,
		d.Period.Year, int(d.Period.Month), d.AmountUSD.String(),
		d.Description, d.Status,
		nullDecimal(d.PaidAmountUSD), nullTime(d.PaymentDate), nullString(d.PaymentID),
		d.Advance, createdAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &ledger.DuplicateDebtError{OwnerID: d.OwnerID, Property: d.Property, Period: d.Period}
		}
		return fmt.Errorf("failed to insert debt: %w", err)
	}
	return nil
}

func (s *Store) UpdateDebt(ctx context.Context, d *ledger.Debt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateDebt(ctx, s.db, d)
}

func updateDebt(ctx context.Context, db dbtx, d *ledger.Debt) error {
	res, err := db.ExecContext(ctx, `
		UPDATE debts SET
			owner_id = ?, street = ?, house = ?, year = ?, month = ?,
			amount_usd = ?, description = ?, status = ?,
			paid_amount_usd = ?, payment_date = ?, payment_id = ?, advance = ?
		WHERE id = ?`,
		d.OwnerID, d.Property.Street, d.Property.House,
		d.Period.Year, int(d.Period.Month),
		d.AmountUSD.String(), d.Description, d.Status,
		nullDecimal(d.PaidAmountUSD), nullTime(d.PaymentDate), nullString(d.PaymentID),
		d.Advance, d.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update debt: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ledger.NotFoundError{Kind: "debt", ID: d.ID}
	}
	return nil
}

func (s *Store) DeleteDebt(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteDebt(ctx, s.db, id)
}

func deleteDebt(ctx context.Context, db dbtx, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM debts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete debt: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ledger.NotFoundError{Kind: "debt", ID: id}
	}
	return nil
}

func (s *Store) ListOutstandingDebts(ctx context.Context, ownerID string) ([]*ledger.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listOutstandingDebts(ctx, s.db, ownerID)
}

func listOutstandingDebts(ctx context.Context, db dbtx, ownerID string) ([]*ledger.Debt, error) {
	return queryDebts(ctx, db, `
		SELECT `+debtColumns+` FROM debts
		WHERE owner_id = ? AND status IN (?, ?)
		ORDER BY year ASC, month ASC, id ASC`,
		ownerID, ledger.DebtPending, ledger.DebtOverdue)
}

func (s *Store) ListDebtsByPayment(ctx context.Context, paymentID string) ([]*ledger.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listDebtsByPayment(ctx, s.db, paymentID)
}

func listDebtsByPayment(ctx context.Context, db dbtx, paymentID string) ([]*ledger.Debt, error) {
	return queryDebts(ctx, db, `
		SELECT `+debtColumns+` FROM debts
		WHERE payment_id = ?
		ORDER BY year ASC, month ASC, id ASC`, paymentID)
}

func (s *Store) DebtExists(ctx context.Context, ownerID string, prop ledger.Property, period ledger.Period) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return debtExists(ctx, s.db, ownerID, prop, period)
}

func debtExists(ctx context.Context, db dbtx, ownerID string, prop ledger.Property, period ledger.Period) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM debts
		WHERE owner_id = ? AND street = ? AND house = ? AND year = ? AND month = ?`,
		ownerID, prop.Street, prop.House, period.Year, int(period.Month),
	).Scan(&count)
	return count > 0, err
}

func (s *Store) LatestDebtPeriod(ctx context.Context, ownerID string, prop ledger.Property) (ledger.Period, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return latestDebtPeriod(ctx, s.db, ownerID, prop)
}

func latestDebtPeriod(ctx context.Context, db dbtx, ownerID string, prop ledger.Property) (ledger.Period, bool, error) {
	var year, month int
	err := db.QueryRowContext(ctx, `
		SELECT year, month FROM debts
		WHERE owner_id = ? AND street = ? AND house = ?
		ORDER BY year DESC, month DESC LIMIT 1`,
		ownerID, prop.Street, prop.House,
	).Scan(&year, &month)
	if err == sql.ErrNoRows {
		return ledger.Period{}, false, nil
	}
	if err != nil {
		return ledger.Period{}, false, fmt.Errorf("failed to query latest period: %w", err)
	}
	return ledger.Period{Year: year, Month: time.Month(month)}, true, nil
}

func queryDebts(ctx context.Context, db dbtx, query string, args ...any) ([]*ledger.Debt, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query debts: %w", err)
	}
	defer rows.Close()

	var debts []*ledger.Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		debts = append(debts, d)
	}
	return debts, rows.Err()
}

func scanDebt(row rowScanner) (*ledger.Debt, error) {
	var (
		d           ledger.Debt
		year, month int
		amountUSD   string
		description sql.NullString
		paidAmount  sql.NullString
		paymentDate sql.NullString
		paymentID   sql.NullString
		createdAt   string
	)
	err := row.Scan(
		&d.ID, &d.OwnerID, &d.Property.Street, &d.Property.House,
		&year, &month, &amountUSD, &description, &d.Status,
		&paidAmount, &paymentDate, &paymentID, &d.Advance, &createdAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan debt: %w", err)
	}
	d.Period = ledger.Period{Year: year, Month: time.Month(month)}
	d.AmountUSD = money.MustParse(amountUSD)
	d.Description = description.String
	if paidAmount.Valid {
		d.PaidAmountUSD = money.MustParse(paidAmount.String)
	}
	if paymentDate.Valid {
		d.PaymentDate, _ = time.Parse(time.RFC3339, paymentDate.String)
	}
	d.PaymentID = paymentID.String
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &d, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

const paymentColumns = `id, beneficiaries_json, total_amount, exchange_rate,
	payment_date, reported_at, method, bank, reference, status,
	receipt_url, observations, receipt_numbers_json, created_at`

func (s *Store) GetPayment(ctx context.Context, id string) (*ledger.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPayment(ctx, s.db, id)
}

func getPayment(ctx context.Context, db dbtx, id string) (*ledger.Payment, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id)
	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, &ledger.NotFoundError{Kind: "payment", ID: id}
	}
	return p, err
}

func (s *Store) PutPayment(ctx context.Context, p *ledger.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return putPayment(ctx, s.db, p)
}

func putPayment(ctx context.Context, db dbtx, p *ledger.Payment) error {
	bens, _ := json.Marshal(beneficiariesToJSON(p.Beneficiaries))
	receipts, _ := json.Marshal(p.ReceiptNumbers)
	_, err := db.ExecContext(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, string(bens), p.TotalAmount.String(), nullDecimal(p.ExchangeRate),
		p.PaymentDate.Format(time.RFC3339), p.ReportedAt.Format(time.RFC3339),
		p.Method, p.Bank, p.Reference, p.Status,
		p.ReceiptURL, p.Observations, string(receipts),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func (s *Store) UpdatePayment(ctx context.Context, p *ledger.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updatePayment(ctx, s.db, p)
}

func updatePayment(ctx context.Context, db dbtx, p *ledger.Payment) error {
	bens, _ := json.Marshal(beneficiariesToJSON(p.Beneficiaries))
	receipts, _ := json.Marshal(p.ReceiptNumbers)
	res, err := db.ExecContext(ctx, `
		UPDATE payments SET
			beneficiaries_json = ?, total_amount = ?, exchange_rate = ?,
			payment_date = ?, reported_at = ?, method = ?, bank = ?,
			reference = ?, status = ?, receipt_url = ?, observations = ?,
			receipt_numbers_json = ?
		WHERE id = ?`,
		string(bens), p.TotalAmount.String(), nullDecimal(p.ExchangeRate),
		p.PaymentDate.Format(time.RFC3339), p.ReportedAt.Format(time.RFC3339),
		p.Method, p.Bank, p.Reference, p.Status,
		p.ReceiptURL, p.Observations, string(receipts), p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ledger.NotFoundError{Kind: "payment", ID: p.ID}
	}
	return nil
}

func (s *Store) DeletePayment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deletePayment(ctx, s.db, id)
}

func deletePayment(ctx context.Context, db dbtx, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM payments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ledger.NotFoundError{Kind: "payment", ID: id}
	}
	return nil
}

func (s *Store) ListPayments(ctx context.Context, status ledger.PaymentStatus) ([]*ledger.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listPayments(ctx, s.db, status)
}

func listPayments(ctx context.Context, db dbtx, status ledger.PaymentStatus) ([]*ledger.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY reported_at ASC, id ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []*ledger.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// beneficiaryJSON keeps decimal amounts as strings inside the JSON blob.
type beneficiaryJSON struct {
	OwnerID   string `json:"owner_id"`
	OwnerName string `json:"owner_name,omitempty"`
	Street    string `json:"street,omitempty"`
	House     string `json:"house,omitempty"`
	Amount    string `json:"amount"`
}

func beneficiariesToJSON(bens []ledger.Beneficiary) []beneficiaryJSON {
	out := make([]beneficiaryJSON, len(bens))
	for i, b := range bens {
		out[i] = beneficiaryJSON{
			OwnerID:   b.OwnerID,
			OwnerName: b.OwnerName,
			Street:    b.Street,
			House:     b.House,
			Amount:    b.Amount.String(),
		}
	}
	return out
}

func scanPayment(row rowScanner) (*ledger.Payment, error) {
	var (
		p            ledger.Payment
		bensJSON     string
		totalAmount  string
		exchangeRate sql.NullString
		paymentDate  string
		reportedAt   string
		method       sql.NullString
		bank         sql.NullString
		reference    sql.NullString
		receiptURL   sql.NullString
		observations sql.NullString
		receiptsJSON sql.NullString
		createdAt    string
	)
	err := row.Scan(
		&p.ID, &bensJSON, &totalAmount, &exchangeRate,
		&paymentDate, &reportedAt, &method, &bank, &reference, &p.Status,
		&receiptURL, &observations, &receiptsJSON, &createdAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}

	var bens []beneficiaryJSON
	if err := json.Unmarshal([]byte(bensJSON), &bens); err != nil {
		return nil, fmt.Errorf("failed to decode beneficiaries for payment %s: %w", p.ID, err)
	}
	p.Beneficiaries = make([]ledger.Beneficiary, len(bens))
	for i, b := range bens {
		p.Beneficiaries[i] = ledger.Beneficiary{
			OwnerID:   b.OwnerID,
			OwnerName: b.OwnerName,
			Street:    b.Street,
			House:     b.House,
			Amount:    money.MustParse(b.Amount),
		}
	}

	p.TotalAmount = money.MustParse(totalAmount)
	if exchangeRate.Valid {
		p.ExchangeRate = money.MustParse(exchangeRate.String)
	}
	p.PaymentDate, _ = time.Parse(time.RFC3339, paymentDate)
	p.ReportedAt, _ = time.Parse(time.RFC3339, reportedAt)
	p.Method = method.String
	p.Bank = bank.String
	p.Reference = reference.String
	p.ReceiptURL = receiptURL.String
	p.Observations = observations.String
	if receiptsJSON.Valid && receiptsJSON.String != "" {
		json.Unmarshal([]byte(receiptsJSON.String), &p.ReceiptNumbers)
	}
	return &p, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction under the store
// mutex. An error from fn rolls everything back.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore routes every Store call through the open *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

func (t *txStore) GetOwner(ctx context.Context, id string) (*ledger.Owner, error) {
	return getOwner(ctx, t.tx, id)
}

func (t *txStore) PutOwner(ctx context.Context, o *ledger.Owner) error {
	return putOwner(ctx, t.tx, o)
}

func (t *txStore) UpdateOwnerBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	return updateOwnerBalance(ctx, t.tx, id, balance)
}

func (t *txStore) ListOwners(ctx context.Context) ([]*ledger.Owner, error) {
	return listOwners(ctx, t.tx, false)
}

func (t *txStore) ListOwnersWithCredit(ctx context.Context) ([]*ledger.Owner, error) {
	return listOwners(ctx, t.tx, true)
}

func (t *txStore) GetDebt(ctx context.Context, id string) (*ledger.Debt, error) {
	return getDebt(ctx, t.tx, id)
}

func (t *txStore) PutDebt(ctx context.Context, d *ledger.Debt) error {
	return putDebt(ctx, t.tx, d)
}

func (t *txStore) UpdateDebt(ctx context.Context, d *ledger.Debt) error {
	return updateDebt(ctx, t.tx, d)
}

func (t *txStore) DeleteDebt(ctx context.Context, id string) error {
	return deleteDebt(ctx, t.tx, id)
}

func (t *txStore) ListOutstandingDebts(ctx context.Context, ownerID string) ([]*ledger.Debt, error) {
	return listOutstandingDebts(ctx, t.tx, ownerID)
}

func (t *txStore) ListDebtsByPayment(ctx context.Context, paymentID string) ([]*ledger.Debt, error) {
	return listDebtsByPayment(ctx, t.tx, paymentID)
}

func (t *txStore) DebtExists(ctx context.Context, ownerID string, prop ledger.Property, period ledger.Period) (bool, error) {
	return debtExists(ctx, t.tx, ownerID, prop, period)
}

func (t *txStore) LatestDebtPeriod(ctx context.Context, ownerID string, prop ledger.Property) (ledger.Period, bool, error) {
	return latestDebtPeriod(ctx, t.tx, ownerID, prop)
}

func (t *txStore) GetPayment(ctx context.Context, id string) (*ledger.Payment, error) {
	return getPayment(ctx, t.tx, id)
}

func (t *txStore) PutPayment(ctx context.Context, p *ledger.Payment) error {
	return putPayment(ctx, t.tx, p)
}

func (t *txStore) UpdatePayment(ctx context.Context, p *ledger.Payment) error {
	return updatePayment(ctx, t.tx, p)
}

func (t *txStore) DeletePayment(ctx context.Context, id string) error {
	return deletePayment(ctx, t.tx, id)
}

func (t *txStore) ListPayments(ctx context.Context, status ledger.PaymentStatus) ([]*ledger.Payment, error) {
	return listPayments(ctx, t.tx, status)
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullDecimal(d decimal.Decimal) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(time.RFC3339)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
