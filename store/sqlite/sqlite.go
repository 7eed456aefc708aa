/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements finance.TxStore plus the read-only SessionSource and
  TeacherDirectory collaborators using SQLite. In production, the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  finance.TxStore:          Records + multi-statement transactions
  finance.SessionSource:    Completed-session reads for payroll
  finance.TeacherDirectory: Teacher profile reads

UNIQUENESS ENFORCEMENT:
  The schema carries the invariants the domain relies on:
  - idx_transactions_receipt: receipt numbers are unique
  - idx_transactions_refund_of: at most one refund per original receipt,
    which makes refund creation idempotent under retry
  - idx_salaries_teacher_period: one Salary per (teacher, month, year)
  - idx_invoices_number: invoice numbers are unique
  Violations are mapped to finance.ErrDuplicateNumber /
  finance.ErrAlreadyRefunded rather than surfacing raw driver errors.

TRANSACTIONS:
  WithTx wraps database/sql transactions. Every multi-write ledger
  operation (refund pair, salary regeneration, adjustment, invoice with
  items) runs through it, so there is no window where the store holds a
  partial result.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety within the process. WAL mode keeps
  readers unblocked by the single writer.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - finance/store.go: Interface definitions
  - finance/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tutorhall/ledger-engine/finance"
)

// Store implements finance.TxStore, finance.SessionSource and
// finance.TeacherDirectory using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: a ":memory:" database exists per connection, and
	// the store serializes writers anyway.
	db.SetMaxOpenConns(1)

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

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Tuition payments and refunds
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		receipt_number TEXT NOT NULL,
		student_id TEXT NOT NULL,
		batch_id TEXT,
		course_id TEXT,
		amount TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		status TEXT NOT NULL,
		notes TEXT,
		refund_of TEXT,
		paid_at TEXT,
		created_at TEXT NOT NULL,
		created_by TEXT
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_receipt
		ON transactions(receipt_number);

	-- CRITICAL: at most one refund per original transaction.
	-- Refund creation retries hit this index instead of duplicating.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_refund_of
		ON transactions(refund_of) WHERE refund_of IS NOT NULL;

	CREATE INDEX IF NOT EXISTS idx_transactions_student
		ON transactions(student_id, created_at DESC);

	-- Salaries: one row per (teacher, month, year)
	CREATE TABLE IF NOT EXISTS salaries (
		id TEXT PRIMARY KEY,
		teacher_id TEXT NOT NULL,
		month INTEGER NOT NULL,
		year INTEGER NOT NULL,
		sessions_count INTEGER NOT NULL DEFAULT 0,
		session_earnings TEXT NOT NULL DEFAULT '0',
		total_amount TEXT NOT NULL DEFAULT '0',
		bonus TEXT NOT NULL DEFAULT '0',
		deductions TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL DEFAULT 'pending',
		paid_at TEXT,
		payment_method TEXT,
		payment_reference TEXT,
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_salaries_teacher_period
		ON salaries(teacher_id, month, year);

	-- Salary line items, owned by exactly one salary
	CREATE TABLE IF NOT EXISTS salary_items (
		id TEXT PRIMARY KEY,
		salary_id TEXT NOT NULL REFERENCES salaries(id) ON DELETE CASCADE,
		description TEXT NOT NULL,
		item_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		session_id TEXT,
		created_at TEXT NOT NULL
	);

	-- Hot path for regeneration deletes (derived types only)
	CREATE INDEX IF NOT EXISTS idx_salary_items_salary_type
		ON salary_items(salary_id, item_type);

	-- Invoices
	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		invoice_number TEXT NOT NULL,
		teacher_id TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		subtotal TEXT NOT NULL,
		custom_amount TEXT NOT NULL DEFAULT '0',
		total_amount TEXT NOT NULL,
		notes TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_invoices_number
		ON invoices(invoice_number);
	CREATE INDEX IF NOT EXISTS idx_invoices_teacher
		ON invoices(teacher_id, created_at DESC);

	-- Invoice line items, owned by exactly one invoice
	CREATE TABLE IF NOT EXISTS invoice_items (
		id TEXT PRIMARY KEY,
		invoice_id TEXT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		description TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 1,
		amount TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_invoice_items_invoice
		ON invoice_items(invoice_id);

	-- Read-only collaborator data, synced from the main platform.
	-- This engine never writes business changes to these tables.
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		teacher_id TEXT NOT NULL,
		course_id TEXT,
		held_at TEXT NOT NULL,
		status TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_teacher_held
		ON sessions(teacher_id, status, held_at);

	CREATE TABLE IF NOT EXISTS teachers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		hourly_rate TEXT
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so the query helpers can
// run standalone or inside WithTx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TRANSACTIONS (finance.TransactionStore)
// =============================================================================

func (s *Store) InsertTransaction(ctx context.Context, tx finance.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertTransaction(ctx, s.db, tx)
}

func insertTransaction(ctx context.Context, db dbtx, tx finance.Transaction) error {
	query := `
		INSERT INTO transactions
		(id, receipt_number, student_id, batch_id, course_id, amount,
		 tx_type, status, notes, refund_of, paid_at, created_at, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		tx.ID,
		tx.ReceiptNumber,
		tx.StudentID,
		nullString(string(tx.BatchID)),
		nullString(string(tx.CourseID)),
		tx.Amount.String(),
		tx.Type,
		tx.Status,
		nullString(tx.Notes),
		nullString(tx.RefundOf),
		nullTime(tx.PaidAt),
		tx.CreatedAt.UTC().Format(time.RFC3339Nano),
		nullString(tx.CreatedBy),
	)

	if err != nil {
		if isUniqueConstraintError(err) {
			if strings.Contains(err.Error(), "refund_of") {
				return finance.ErrAlreadyRefunded
			}
			return finance.ErrDuplicateNumber
		}
		return &finance.PersistenceError{Op: "insert transaction", Err: err}
	}

	return nil
}

const transactionColumns = `id, receipt_number, student_id, batch_id, course_id, amount,
	tx_type, status, notes, refund_of, paid_at, created_at, created_by`

func (s *Store) GetTransaction(ctx context.Context, id finance.TransactionID) (*finance.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getTransaction(ctx, s.db, id)
}

func getTransaction(ctx context.Context, db dbtx, id finance.TransactionID) (*finance.Transaction, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &finance.PersistenceError{Op: "get transaction", Err: err}
	}
	return tx, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx finance.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateTransaction(ctx, s.db, tx)
}

func updateTransaction(ctx context.Context, db dbtx, tx finance.Transaction) error {
	query := `
		UPDATE transactions
		SET status = ?, notes = ?, paid_at = ?, amount = ?
		WHERE id = ?
	`
	res, err := db.ExecContext(ctx, query,
		tx.Status, nullString(tx.Notes), nullTime(tx.PaidAt), tx.Amount.String(), tx.ID)
	if err != nil {
		return &finance.PersistenceError{Op: "update transaction", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &finance.NotFoundError{Kind: "transaction", ID: string(tx.ID)}
	}
	return nil
}

func (s *Store) FindRefundOf(ctx context.Context, receiptNumber string) (*finance.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findRefundOf(ctx, s.db, receiptNumber)
}

func findRefundOf(ctx context.Context, db dbtx, receiptNumber string) (*finance.Transaction, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE refund_of = ?`, receiptNumber)
	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &finance.PersistenceError{Op: "find refund", Err: err}
	}
	return tx, nil
}

func (s *Store) ListTransactionsByStudent(ctx context.Context, studentID finance.StudentID) ([]finance.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listTransactionsByStudent(ctx, s.db, studentID)
}

func listTransactionsByStudent(ctx context.Context, db dbtx, studentID finance.StudentID) ([]finance.Transaction, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE student_id = ? ORDER BY created_at DESC`, studentID)
	if err != nil {
		return nil, &finance.PersistenceError{Op: "list transactions", Err: err}
	}
	defer rows.Close()

	var result []finance.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, &finance.PersistenceError{Op: "scan transaction", Err: err}
		}
		result = append(result, *tx)
	}
	return result, rows.Err()
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (*finance.Transaction, error) {
	var (
		tx        finance.Transaction
		batchID   sql.NullString
		courseID  sql.NullString
		amount    string
		notes     sql.NullString
		refundOf  sql.NullString
		paidAt    sql.NullString
		createdAt string
		createdBy sql.NullString
	)

	err := row.Scan(
		&tx.ID, &tx.ReceiptNumber, &tx.StudentID, &batchID, &courseID, &amount,
		&tx.Type, &tx.Status, &notes, &refundOf, &paidAt, &createdAt, &createdBy,
	)
	if err != nil {
		return nil, err
	}

	tx.BatchID = finance.BatchID(batchID.String)
	tx.CourseID = finance.CourseID(courseID.String)
	tx.Amount = finance.MustParseMoney(amount)
	tx.Notes = notes.String
	tx.RefundOf = refundOf.String
	tx.PaidAt = parseNullTime(paidAt)
	tx.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	tx.CreatedBy = createdBy.String
	return &tx, nil
}

// =============================================================================
// SALARIES (finance.SalaryStore)
// =============================================================================

const salaryColumns = `id, teacher_id, month, year, sessions_count, session_earnings,
	total_amount, bonus, deductions, status, paid_at, payment_method,
	payment_reference, notes, created_at, updated_at`

func (s *Store) GetSalary(ctx context.Context, id finance.SalaryID) (*finance.Salary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getSalary(ctx, s.db, id)
}

func getSalary(ctx context.Context, db dbtx, id finance.SalaryID) (*finance.Salary, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+salaryColumns+` FROM salaries WHERE id = ?`, id)
	return scanSalaryRow(row, "get salary")
}

func (s *Store) FindSalary(ctx context.Context, teacherID finance.TeacherID, month, year int) (*finance.Salary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findSalary(ctx, s.db, teacherID, month, year)
}

func findSalary(ctx context.Context, db dbtx, teacherID finance.TeacherID, month, year int) (*finance.Salary, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+salaryColumns+` FROM salaries
		 WHERE teacher_id = ? AND month = ? AND year = ?`, teacherID, month, year)
	return scanSalaryRow(row, "find salary")
}

func scanSalaryRow(row *sql.Row, op string) (*finance.Salary, error) {
	sal, err := scanSalary(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &finance.PersistenceError{Op: op, Err: err}
	}
	return sal, nil
}

func (s *Store) UpsertSalary(ctx context.Context, sal finance.Salary) (*finance.Salary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return upsertSalary(ctx, s.db, sal)
}

func upsertSalary(ctx context.Context, db dbtx, sal finance.Salary) (*finance.Salary, error) {
	// Keyed on (teacher_id, month, year): the conflict clause overwrites
	// the aggregate fields while keeping the original row id, so salary
	// items keep their owner across regenerations.
	query := `
		INSERT INTO salaries
		(id, teacher_id, month, year, sessions_count, session_earnings,
		 total_amount, bonus, deductions, status, paid_at, payment_method,
		 payment_reference, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(teacher_id, month, year) DO UPDATE SET
			sessions_count = excluded.sessions_count,
			session_earnings = excluded.session_earnings,
			total_amount = excluded.total_amount,
			bonus = excluded.bonus,
			deductions = excluded.deductions,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`
	_, err := db.ExecContext(ctx, query,
		sal.ID, sal.TeacherID, sal.Month, sal.Year,
		sal.SessionsCount, sal.SessionEarnings.String(),
		sal.TotalAmount.String(), sal.Bonus.String(), sal.Deductions.String(),
		sal.Status, nullTime(sal.PaidAt),
		nullString(sal.PaymentMethod), nullString(sal.PaymentRef),
		nullString(sal.Notes),
		sal.CreatedAt.UTC().Format(time.RFC3339Nano),
		sal.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, &finance.PersistenceError{Op: "upsert salary", Err: err}
	}

	return findSalary(ctx, db, sal.TeacherID, sal.Month, sal.Year)
}

func (s *Store) UpdateSalary(ctx context.Context, sal finance.Salary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateSalary(ctx, s.db, sal)
}

func updateSalary(ctx context.Context, db dbtx, sal finance.Salary) error {
	query := `
		UPDATE salaries
		SET sessions_count = ?, session_earnings = ?, total_amount = ?,
		    bonus = ?, deductions = ?, status = ?, paid_at = ?,
		    payment_method = ?, payment_reference = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := db.ExecContext(ctx, query,
		sal.SessionsCount, sal.SessionEarnings.String(), sal.TotalAmount.String(),
		sal.Bonus.String(), sal.Deductions.String(), sal.Status, nullTime(sal.PaidAt),
		nullString(sal.PaymentMethod), nullString(sal.PaymentRef), nullString(sal.Notes),
		sal.UpdatedAt.UTC().Format(time.RFC3339Nano),
		sal.ID,
	)
	if err != nil {
		return &finance.PersistenceError{Op: "update salary", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &finance.NotFoundError{Kind: "salary", ID: string(sal.ID)}
	}
	return nil
}

func (s *Store) ListSalariesByTeacher(ctx context.Context, teacherID finance.TeacherID) ([]finance.Salary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listSalariesByTeacher(ctx, s.db, teacherID)
}

func listSalariesByTeacher(ctx context.Context, db dbtx, teacherID finance.TeacherID) ([]finance.Salary, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+salaryColumns+` FROM salaries
		 WHERE teacher_id = ? ORDER BY year DESC, month DESC`, teacherID)
	if err != nil {
		return nil, &finance.PersistenceError{Op: "list salaries", Err: err}
	}
	defer rows.Close()

	var result []finance.Salary
	for rows.Next() {
		sal, err := scanSalary(rows)
		if err != nil {
			return nil, &finance.PersistenceError{Op: "scan salary", Err: err}
		}
		result = append(result, *sal)
	}
	return result, rows.Err()
}

func scanSalary(row scanner) (*finance.Salary, error) {
	var (
		sal             finance.Salary
		sessionEarnings string
		totalAmount     string
		bonus           string
		deductions      string
		paidAt          sql.NullString
		paymentMethod   sql.NullString
		paymentRef      sql.NullString
		notes           sql.NullString
		createdAt       string
		updatedAt       string
	)

	err := row.Scan(
		&sal.ID, &sal.TeacherID, &sal.Month, &sal.Year,
		&sal.SessionsCount, &sessionEarnings, &totalAmount, &bonus, &deductions,
		&sal.Status, &paidAt, &paymentMethod, &paymentRef, &notes,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	sal.SessionEarnings = finance.MustParseMoney(sessionEarnings)
	sal.TotalAmount = finance.MustParseMoney(totalAmount)
	sal.Bonus = finance.MustParseMoney(bonus)
	sal.Deductions = finance.MustParseMoney(deductions)
	sal.PaidAt = parseNullTime(paidAt)
	sal.PaymentMethod = paymentMethod.String
	sal.PaymentRef = paymentRef.String
	sal.Notes = notes.String
	sal.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	sal.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &sal, nil
}

func (s *Store) InsertSalaryItem(ctx context.Context, item finance.SalaryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertSalaryItem(ctx, s.db, item)
}

func insertSalaryItem(ctx context.Context, db dbtx, item finance.SalaryItem) error {
	query := `
		INSERT INTO salary_items
		(id, salary_id, description, item_type, amount, session_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		item.ID, item.SalaryID, item.Description, item.Type,
		item.Amount.String(), nullString(string(item.SessionID)),
		item.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return &finance.PersistenceError{Op: "insert salary item", Err: err}
	}
	return nil
}

func (s *Store) DeleteDerivedSalaryItems(ctx context.Context, salaryID finance.SalaryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteDerivedSalaryItems(ctx, s.db, salaryID)
}

func deleteDerivedSalaryItems(ctx context.Context, db dbtx, salaryID finance.SalaryID) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM salary_items
		 WHERE salary_id = ? AND item_type IN (?, ?)`,
		salaryID, finance.ItemSession, finance.ItemCourseRevenue)
	if err != nil {
		return &finance.PersistenceError{Op: "delete derived salary items", Err: err}
	}
	return nil
}

func (s *Store) ListSalaryItems(ctx context.Context, salaryID finance.SalaryID) ([]finance.SalaryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listSalaryItems(ctx, s.db, salaryID)
}

func listSalaryItems(ctx context.Context, db dbtx, salaryID finance.SalaryID) ([]finance.SalaryItem, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, salary_id, description, item_type, amount, session_id, created_at
		 FROM salary_items WHERE salary_id = ?
		 ORDER BY created_at ASC, id ASC`, salaryID)
	if err != nil {
		return nil, &finance.PersistenceError{Op: "list salary items", Err: err}
	}
	defer rows.Close()

	var result []finance.SalaryItem
	for rows.Next() {
		var (
			item      finance.SalaryItem
			amount    string
			sessionID sql.NullString
			createdAt string
		)
		if err := rows.Scan(&item.ID, &item.SalaryID, &item.Description,
			&item.Type, &amount, &sessionID, &createdAt); err != nil {
			return nil, &finance.PersistenceError{Op: "scan salary item", Err: err}
		}
		item.Amount = finance.MustParseMoney(amount)
		item.SessionID = finance.SessionID(sessionID.String)
		item.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		result = append(result, item)
	}
	return result, rows.Err()
}

// =============================================================================
// INVOICES (finance.InvoiceStore)
// =============================================================================

func (s *Store) InsertInvoice(ctx context.Context, inv finance.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertInvoice(ctx, s.db, inv)
}

func insertInvoice(ctx context.Context, db dbtx, inv finance.Invoice) error {
	query := `
		INSERT INTO invoices
		(id, invoice_number, teacher_id, period_start, period_end,
		 subtotal, custom_amount, total_amount, notes, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		inv.ID, inv.InvoiceNumber, inv.TeacherID,
		inv.PeriodStart.UTC().Format(time.RFC3339),
		inv.PeriodEnd.UTC().Format(time.RFC3339),
		inv.Subtotal.String(), inv.CustomAmount.String(), inv.TotalAmount.String(),
		nullString(inv.Notes), inv.Status,
		inv.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return finance.ErrDuplicateNumber
		}
		return &finance.PersistenceError{Op: "insert invoice", Err: err}
	}
	return nil
}

func (s *Store) InsertInvoiceItems(ctx context.Context, items []finance.InvoiceItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertInvoiceItems(ctx, s.db, items)
}

func insertInvoiceItems(ctx context.Context, db dbtx, items []finance.InvoiceItem) error {
	for _, item := range items {
		_, err := db.ExecContext(ctx,
			`INSERT INTO invoice_items (id, invoice_id, description, quantity, amount)
			 VALUES (?, ?, ?, ?, ?)`,
			item.ID, item.InvoiceID, item.Description, item.Quantity, item.Amount.String())
		if err != nil {
			return &finance.PersistenceError{Op: "insert invoice item", Err: err}
		}
	}
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, id finance.InvoiceID) (*finance.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getInvoice(ctx, s.db, id)
}

func getInvoice(ctx context.Context, db dbtx, id finance.InvoiceID) (*finance.Invoice, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, invoice_number, teacher_id, period_start, period_end,
		        subtotal, custom_amount, total_amount, notes, status, created_at
		 FROM invoices WHERE id = ?`, id)

	var (
		inv          finance.Invoice
		periodStart  string
		periodEnd    string
		subtotal     string
		customAmount string
		totalAmount  string
		notes        sql.NullString
		createdAt    string
	)
	err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.TeacherID,
		&periodStart, &periodEnd, &subtotal, &customAmount, &totalAmount,
		&notes, &inv.Status, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &finance.PersistenceError{Op: "get invoice", Err: err}
	}

	inv.PeriodStart, _ = time.Parse(time.RFC3339, periodStart)
	inv.PeriodEnd, _ = time.Parse(time.RFC3339, periodEnd)
	inv.Subtotal = finance.MustParseMoney(subtotal)
	inv.CustomAmount = finance.MustParseMoney(customAmount)
	inv.TotalAmount = finance.MustParseMoney(totalAmount)
	inv.Notes = notes.String
	inv.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &inv, nil
}

func (s *Store) ListInvoiceItems(ctx context.Context, invoiceID finance.InvoiceID) ([]finance.InvoiceItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listInvoiceItems(ctx, s.db, invoiceID)
}

func listInvoiceItems(ctx context.Context, db dbtx, invoiceID finance.InvoiceID) ([]finance.InvoiceItem, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, invoice_id, description, quantity, amount
		 FROM invoice_items WHERE invoice_id = ? ORDER BY id ASC`, invoiceID)
	if err != nil {
		return nil, &finance.PersistenceError{Op: "list invoice items", Err: err}
	}
	defer rows.Close()

	var result []finance.InvoiceItem
	for rows.Next() {
		var (
			item   finance.InvoiceItem
			amount string
		)
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.Description,
			&item.Quantity, &amount); err != nil {
			return nil, &finance.PersistenceError{Op: "scan invoice item", Err: err}
		}
		item.Amount = finance.MustParseMoney(amount)
		result = append(result, item)
	}
	return result, rows.Err()
}

// =============================================================================
// READ-ONLY COLLABORATORS (finance.SessionSource, finance.TeacherDirectory)
// =============================================================================

func (s *Store) CompletedSessions(ctx context.Context, teacherID finance.TeacherID, from, to time.Time) ([]finance.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, teacher_id, course_id, held_at, status
		 FROM sessions
		 WHERE teacher_id = ? AND status = ? AND held_at >= ? AND held_at <= ?
		 ORDER BY held_at ASC`,
		teacherID, finance.SessionCompleted,
		from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, &finance.PersistenceError{Op: "list sessions", Err: err}
	}
	defer rows.Close()

	var result []finance.SessionRecord
	for rows.Next() {
		var (
			rec      finance.SessionRecord
			courseID sql.NullString
			heldAt   string
		)
		if err := rows.Scan(&rec.ID, &rec.TeacherID, &courseID, &heldAt, &rec.Status); err != nil {
			return nil, &finance.PersistenceError{Op: "scan session", Err: err}
		}
		rec.CourseID = finance.CourseID(courseID.String)
		rec.HeldAt, _ = time.Parse(time.RFC3339, heldAt)
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (s *Store) GetTeacher(ctx context.Context, id finance.TeacherID) (*finance.TeacherProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, hourly_rate FROM teachers WHERE id = ?`, id)

	var (
		t    finance.TeacherProfile
		rate sql.NullString
	)
	err := row.Scan(&t.ID, &t.Name, &rate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &finance.PersistenceError{Op: "get teacher", Err: err}
	}
	if rate.Valid {
		m := finance.MustParseMoney(rate.String)
		t.HourlyRate = &m
	}
	return &t, nil
}

// SeedTeacher upserts a teacher profile. Used by the sync job that mirrors
// platform data into this store, and by tests.
func (s *Store) SeedTeacher(ctx context.Context, t finance.TeacherProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rate any
	if t.HourlyRate != nil {
		rate = t.HourlyRate.String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO teachers (id, name, hourly_rate) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, hourly_rate = excluded.hourly_rate`,
		t.ID, t.Name, rate)
	return err
}

// SeedSession upserts a session record.
func (s *Store) SeedSession(ctx context.Context, rec finance.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, teacher_id, course_id, held_at, status) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status = excluded.status, held_at = excluded.held_at`,
		rec.ID, rec.TeacherID, nullString(string(rec.CourseID)),
		rec.HeldAt.UTC().Format(time.RFC3339), rec.Status)
	return err
}

// =============================================================================
// MULTI-STATEMENT TRANSACTIONS (finance.TxStore)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(finance.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &finance.PersistenceError{Op: "begin transaction", Err: err}
	}
	defer sqlTx.Rollback()

	if err := fn(&txView{tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return &finance.PersistenceError{Op: "commit transaction", Err: err}
	}
	return nil
}

// txView implements finance.Store against an open *sql.Tx.
type txView struct {
	tx *sql.Tx
}

func (v *txView) InsertTransaction(ctx context.Context, tx finance.Transaction) error {
	return insertTransaction(ctx, v.tx, tx)
}

func (v *txView) GetTransaction(ctx context.Context, id finance.TransactionID) (*finance.Transaction, error) {
	return getTransaction(ctx, v.tx, id)
}

func (v *txView) UpdateTransaction(ctx context.Context, tx finance.Transaction) error {
	return updateTransaction(ctx, v.tx, tx)
}

func (v *txView) FindRefundOf(ctx context.Context, receiptNumber string) (*finance.Transaction, error) {
	return findRefundOf(ctx, v.tx, receiptNumber)
}

func (v *txView) ListTransactionsByStudent(ctx context.Context, studentID finance.StudentID) ([]finance.Transaction, error) {
	return listTransactionsByStudent(ctx, v.tx, studentID)
}

func (v *txView) GetSalary(ctx context.Context, id finance.SalaryID) (*finance.Salary, error) {
	return getSalary(ctx, v.tx, id)
}

func (v *txView) FindSalary(ctx context.Context, teacherID finance.TeacherID, month, year int) (*finance.Salary, error) {
	return findSalary(ctx, v.tx, teacherID, month, year)
}

func (v *txView) UpsertSalary(ctx context.Context, sal finance.Salary) (*finance.Salary, error) {
	return upsertSalary(ctx, v.tx, sal)
}

func (v *txView) UpdateSalary(ctx context.Context, sal finance.Salary) error {
	return updateSalary(ctx, v.tx, sal)
}

func (v *txView) ListSalariesByTeacher(ctx context.Context, teacherID finance.TeacherID) ([]finance.Salary, error) {
	return listSalariesByTeacher(ctx, v.tx, teacherID)
}

func (v *txView) InsertSalaryItem(ctx context.Context, item finance.SalaryItem) error {
	return insertSalaryItem(ctx, v.tx, item)
}

func (v *txView) DeleteDerivedSalaryItems(ctx context.Context, salaryID finance.SalaryID) error {
	return deleteDerivedSalaryItems(ctx, v.tx, salaryID)
}

func (v *txView) ListSalaryItems(ctx context.Context, salaryID finance.SalaryID) ([]finance.SalaryItem, error) {
	return listSalaryItems(ctx, v.tx, salaryID)
}

func (v *txView) InsertInvoice(ctx context.Context, inv finance.Invoice) error {
	return insertInvoice(ctx, v.tx, inv)
}

func (v *txView) InsertInvoiceItems(ctx context.Context, items []finance.InvoiceItem) error {
	return insertInvoiceItems(ctx, v.tx, items)
}

func (v *txView) GetInvoice(ctx context.Context, id finance.InvoiceID) (*finance.Invoice, error) {
	return getInvoice(ctx, v.tx, id)
}

func (v *txView) ListInvoiceItems(ctx context.Context, invoiceID finance.InvoiceID) ([]finance.InvoiceItem, error) {
	return listInvoiceItems(ctx, v.tx, invoiceID)
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
