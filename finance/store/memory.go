// Package store provides an in-memory Store implementation (for testing/dev).
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tutorhall/ledger-engine/finance"
)

// =============================================================================
// MEMORY STORE - In-memory implementation of finance.TxStore
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	transactions map[finance.TransactionID]finance.Transaction
	receipts     map[string]finance.TransactionID // receipt number -> id
	refunds      map[string]finance.TransactionID // original receipt -> refund id

	salaries    map[finance.SalaryID]finance.Salary
	salaryKeys  map[salaryKey]finance.SalaryID
	salaryItems map[finance.SalaryItemID]finance.SalaryItem
	itemSeq     int // preserves insertion order for ListSalaryItems

	invoices       map[finance.InvoiceID]finance.Invoice
	invoiceNumbers map[string]finance.InvoiceID
	invoiceItems   map[finance.InvoiceItemID]finance.InvoiceItem

	// Seeded read-only collaborator data
	sessions []finance.SessionRecord
	teachers map[finance.TeacherID]finance.TeacherProfile

	itemOrder map[finance.SalaryItemID]int
}

type salaryKey struct {
	TeacherID finance.TeacherID
	Month     int
	Year      int
}

func NewMemory() *Memory {
	return &Memory{
		transactions:   make(map[finance.TransactionID]finance.Transaction),
		receipts:       make(map[string]finance.TransactionID),
		refunds:        make(map[string]finance.TransactionID),
		salaries:       make(map[finance.SalaryID]finance.Salary),
		salaryKeys:     make(map[salaryKey]finance.SalaryID),
		salaryItems:    make(map[finance.SalaryItemID]finance.SalaryItem),
		invoices:       make(map[finance.InvoiceID]finance.Invoice),
		invoiceNumbers: make(map[string]finance.InvoiceID),
		invoiceItems:   make(map[finance.InvoiceItemID]finance.InvoiceItem),
		teachers:       make(map[finance.TeacherID]finance.TeacherProfile),
		itemOrder:      make(map[finance.SalaryItemID]int),
	}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (m *Memory) InsertTransaction(_ context.Context, tx finance.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertTransactionLocked(tx)
}

func (m *Memory) insertTransactionLocked(tx finance.Transaction) error {
	if _, exists := m.receipts[tx.ReceiptNumber]; exists {
		return finance.ErrDuplicateNumber
	}
	if tx.Type == finance.TxRefund && tx.RefundOf != "" {
		if _, exists := m.refunds[tx.RefundOf]; exists {
			return finance.ErrAlreadyRefunded
		}
		m.refunds[tx.RefundOf] = tx.ID
	}
	m.transactions[tx.ID] = tx
	m.receipts[tx.ReceiptNumber] = tx.ID
	return nil
}

func (m *Memory) GetTransaction(_ context.Context, id finance.TransactionID) (*finance.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if tx, ok := m.transactions[id]; ok {
		return &tx, nil
	}
	return nil, nil
}

func (m *Memory) UpdateTransaction(_ context.Context, tx finance.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateTransactionLocked(tx)
}

func (m *Memory) updateTransactionLocked(tx finance.Transaction) error {
	if _, ok := m.transactions[tx.ID]; !ok {
		return &finance.NotFoundError{Kind: "transaction", ID: string(tx.ID)}
	}
	m.transactions[tx.ID] = tx
	return nil
}

func (m *Memory) FindRefundOf(_ context.Context, receiptNumber string) (*finance.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.refunds[receiptNumber]; ok {
		tx := m.transactions[id]
		return &tx, nil
	}
	return nil, nil
}

func (m *Memory) ListTransactionsByStudent(_ context.Context, studentID finance.StudentID) ([]finance.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []finance.Transaction
	for _, tx := range m.transactions {
		if tx.StudentID == studentID {
			result = append(result, tx)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// =============================================================================
// SALARIES
// =============================================================================

func (m *Memory) GetSalary(_ context.Context, id finance.SalaryID) (*finance.Salary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.salaries[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (m *Memory) FindSalary(_ context.Context, teacherID finance.TeacherID, month, year int) (*finance.Salary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.salaryKeys[salaryKey{teacherID, month, year}]; ok {
		s := m.salaries[id]
		return &s, nil
	}
	return nil, nil
}

func (m *Memory) UpsertSalary(_ context.Context, s finance.Salary) (*finance.Salary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertSalaryLocked(s)
}

func (m *Memory) upsertSalaryLocked(s finance.Salary) (*finance.Salary, error) {
	k := salaryKey{s.TeacherID, s.Month, s.Year}
	if existingID, ok := m.salaryKeys[k]; ok {
		s.ID = existingID
		s.CreatedAt = m.salaries[existingID].CreatedAt
	}
	m.salaries[s.ID] = s
	m.salaryKeys[k] = s.ID
	stored := s
	return &stored, nil
}

func (m *Memory) UpdateSalary(_ context.Context, s finance.Salary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateSalaryLocked(s)
}

func (m *Memory) updateSalaryLocked(s finance.Salary) error {
	if _, ok := m.salaries[s.ID]; !ok {
		return &finance.NotFoundError{Kind: "salary", ID: string(s.ID)}
	}
	m.salaries[s.ID] = s
	return nil
}

func (m *Memory) ListSalariesByTeacher(_ context.Context, teacherID finance.TeacherID) ([]finance.Salary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []finance.Salary
	for _, s := range m.salaries {
		if s.TeacherID == teacherID {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Year != result[j].Year {
			return result[i].Year > result[j].Year
		}
		return result[i].Month > result[j].Month
	})
	return result, nil
}

func (m *Memory) InsertSalaryItem(_ context.Context, item finance.SalaryItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertSalaryItemLocked(item)
}

func (m *Memory) insertSalaryItemLocked(item finance.SalaryItem) error {
	m.itemSeq++
	m.itemOrder[item.ID] = m.itemSeq
	m.salaryItems[item.ID] = item
	return nil
}

func (m *Memory) DeleteDerivedSalaryItems(_ context.Context, salaryID finance.SalaryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteDerivedSalaryItemsLocked(salaryID)
}

func (m *Memory) deleteDerivedSalaryItemsLocked(salaryID finance.SalaryID) error {
	for id, item := range m.salaryItems {
		if item.SalaryID == salaryID && item.Type.IsDerived() {
			delete(m.salaryItems, id)
			delete(m.itemOrder, id)
		}
	}
	return nil
}

func (m *Memory) ListSalaryItems(_ context.Context, salaryID finance.SalaryID) ([]finance.SalaryItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []finance.SalaryItem
	for _, item := range m.salaryItems {
		if item.SalaryID == salaryID {
			result = append(result, item)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return m.itemOrder[result[i].ID] < m.itemOrder[result[j].ID]
	})
	return result, nil
}

// =============================================================================
// INVOICES
// =============================================================================

func (m *Memory) InsertInvoice(_ context.Context, inv finance.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertInvoiceLocked(inv)
}

func (m *Memory) insertInvoiceLocked(inv finance.Invoice) error {
	if _, exists := m.invoiceNumbers[inv.InvoiceNumber]; exists {
		return finance.ErrDuplicateNumber
	}
	m.invoices[inv.ID] = inv
	m.invoiceNumbers[inv.InvoiceNumber] = inv.ID
	return nil
}

func (m *Memory) InsertInvoiceItems(_ context.Context, items []finance.InvoiceItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertInvoiceItemsLocked(items)
}

func (m *Memory) insertInvoiceItemsLocked(items []finance.InvoiceItem) error {
	for _, item := range items {
		m.invoiceItems[item.ID] = item
	}
	return nil
}

func (m *Memory) GetInvoice(_ context.Context, id finance.InvoiceID) (*finance.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if inv, ok := m.invoices[id]; ok {
		return &inv, nil
	}
	return nil, nil
}

func (m *Memory) ListInvoiceItems(_ context.Context, invoiceID finance.InvoiceID) ([]finance.InvoiceItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []finance.InvoiceItem
	for _, item := range m.invoiceItems {
		if item.InvoiceID == invoiceID {
			result = append(result, item)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// =============================================================================
// READ-ONLY COLLABORATOR DATA (seeded by tests)
// =============================================================================

// SeedTeacher registers a teacher profile.
func (m *Memory) SeedTeacher(t finance.TeacherProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teachers[t.ID] = t
}

// SeedSession registers a session record.
func (m *Memory) SeedSession(s finance.SessionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, s)
}

func (m *Memory) CompletedSessions(_ context.Context, teacherID finance.TeacherID, from, to time.Time) ([]finance.SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []finance.SessionRecord
	for _, s := range m.sessions {
		if s.TeacherID != teacherID || s.Status != finance.SessionCompleted {
			continue
		}
		if s.HeldAt.Before(from) || s.HeldAt.After(to) {
			continue
		}
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].HeldAt.Before(result[j].HeldAt) })
	return result, nil
}

func (m *Memory) GetTeacher(_ context.Context, id finance.TeacherID) (*finance.TeacherProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.teachers[id]; ok {
		return &t, nil
	}
	return nil, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn under the store lock with snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(finance.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()

	view := &txMemoryView{parent: tm}
	if err := fn(view); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	transactions map[finance.TransactionID]finance.Transaction
	receipts     map[string]finance.TransactionID
	refunds      map[string]finance.TransactionID

	salaries    map[finance.SalaryID]finance.Salary
	salaryKeys  map[salaryKey]finance.SalaryID
	salaryItems map[finance.SalaryItemID]finance.SalaryItem
	itemOrder   map[finance.SalaryItemID]int
	itemSeq     int

	invoices       map[finance.InvoiceID]finance.Invoice
	invoiceNumbers map[string]finance.InvoiceID
	invoiceItems   map[finance.InvoiceItemID]finance.InvoiceItem
}

func (tm *TxMemory) snapshot() memorySnapshot {
	return memorySnapshot{
		transactions:   copyMap(tm.transactions),
		receipts:       copyMap(tm.receipts),
		refunds:        copyMap(tm.refunds),
		salaries:       copyMap(tm.salaries),
		salaryKeys:     copyMap(tm.salaryKeys),
		salaryItems:    copyMap(tm.salaryItems),
		itemOrder:      copyMap(tm.itemOrder),
		itemSeq:        tm.itemSeq,
		invoices:       copyMap(tm.invoices),
		invoiceNumbers: copyMap(tm.invoiceNumbers),
		invoiceItems:   copyMap(tm.invoiceItems),
	}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.transactions = s.transactions
	tm.receipts = s.receipts
	tm.refunds = s.refunds
	tm.salaries = s.salaries
	tm.salaryKeys = s.salaryKeys
	tm.salaryItems = s.salaryItems
	tm.itemOrder = s.itemOrder
	tm.itemSeq = s.itemSeq
	tm.invoices = s.invoices
	tm.invoiceNumbers = s.invoiceNumbers
	tm.invoiceItems = s.invoiceItems
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	c := make(map[K]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// txMemoryView runs against the parent's maps while the parent lock is
// already held, so the locked variants are called directly.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) InsertTransaction(_ context.Context, tx finance.Transaction) error {
	return tv.parent.insertTransactionLocked(tx)
}

func (tv *txMemoryView) GetTransaction(_ context.Context, id finance.TransactionID) (*finance.Transaction, error) {
	if tx, ok := tv.parent.transactions[id]; ok {
		return &tx, nil
	}
	return nil, nil
}

func (tv *txMemoryView) UpdateTransaction(_ context.Context, tx finance.Transaction) error {
	return tv.parent.updateTransactionLocked(tx)
}

func (tv *txMemoryView) FindRefundOf(_ context.Context, receiptNumber string) (*finance.Transaction, error) {
	if id, ok := tv.parent.refunds[receiptNumber]; ok {
		tx := tv.parent.transactions[id]
		return &tx, nil
	}
	return nil, nil
}

func (tv *txMemoryView) ListTransactionsByStudent(ctx context.Context, studentID finance.StudentID) ([]finance.Transaction, error) {
	var result []finance.Transaction
	for _, tx := range tv.parent.transactions {
		if tx.StudentID == studentID {
			result = append(result, tx)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (tv *txMemoryView) GetSalary(_ context.Context, id finance.SalaryID) (*finance.Salary, error) {
	if s, ok := tv.parent.salaries[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (tv *txMemoryView) FindSalary(_ context.Context, teacherID finance.TeacherID, month, year int) (*finance.Salary, error) {
	if id, ok := tv.parent.salaryKeys[salaryKey{teacherID, month, year}]; ok {
		s := tv.parent.salaries[id]
		return &s, nil
	}
	return nil, nil
}

func (tv *txMemoryView) UpsertSalary(_ context.Context, s finance.Salary) (*finance.Salary, error) {
	return tv.parent.upsertSalaryLocked(s)
}

func (tv *txMemoryView) UpdateSalary(_ context.Context, s finance.Salary) error {
	return tv.parent.updateSalaryLocked(s)
}

func (tv *txMemoryView) ListSalariesByTeacher(ctx context.Context, teacherID finance.TeacherID) ([]finance.Salary, error) {
	var result []finance.Salary
	for _, s := range tv.parent.salaries {
		if s.TeacherID == teacherID {
			result = append(result, s)
		}
	}
	return result, nil
}

func (tv *txMemoryView) InsertSalaryItem(_ context.Context, item finance.SalaryItem) error {
	return tv.parent.insertSalaryItemLocked(item)
}

func (tv *txMemoryView) DeleteDerivedSalaryItems(_ context.Context, salaryID finance.SalaryID) error {
	return tv.parent.deleteDerivedSalaryItemsLocked(salaryID)
}

func (tv *txMemoryView) ListSalaryItems(_ context.Context, salaryID finance.SalaryID) ([]finance.SalaryItem, error) {
	var result []finance.SalaryItem
	for _, item := range tv.parent.salaryItems {
		if item.SalaryID == salaryID {
			result = append(result, item)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return tv.parent.itemOrder[result[i].ID] < tv.parent.itemOrder[result[j].ID]
	})
	return result, nil
}

func (tv *txMemoryView) InsertInvoice(_ context.Context, inv finance.Invoice) error {
	return tv.parent.insertInvoiceLocked(inv)
}

func (tv *txMemoryView) InsertInvoiceItems(_ context.Context, items []finance.InvoiceItem) error {
	return tv.parent.insertInvoiceItemsLocked(items)
}

func (tv *txMemoryView) GetInvoice(_ context.Context, id finance.InvoiceID) (*finance.Invoice, error) {
	if inv, ok := tv.parent.invoices[id]; ok {
		return &inv, nil
	}
	return nil, nil
}

func (tv *txMemoryView) ListInvoiceItems(_ context.Context, invoiceID finance.InvoiceID) ([]finance.InvoiceItem, error) {
	var result []finance.InvoiceItem
	for _, item := range tv.parent.invoiceItems {
		if item.InvoiceID == invoiceID {
			result = append(result, item)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}
