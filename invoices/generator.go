/*
Package invoices builds billing documents for teachers.

PURPOSE:
  Creates an Invoice plus its line items from caller-supplied data. The
  admin UI computes subtotal/total client-side; this generator recomputes
  them from the item list and rejects a mismatch instead of trusting the
  caller blindly.

TOTALS:
  subtotal    == sum(item.amount)   item.amount is the line total;
                                    quantity is informational
  total       == subtotal + custom_amount
  custom_amount covers out-of-band corrections (a one-off credit, a
  prior-period carryover) and may be negative.

SEE ALSO:
  - finance/types.go: Invoice and InvoiceItem records
  - finance/numbers.go: INV- number generation
*/
package invoices

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tutorhall/ledger-engine/finance"
)

// Generator creates invoices with their line items.
type Generator struct {
	store finance.TxStore
	now   func() time.Time
}

func NewGenerator(store finance.TxStore) *Generator {
	return &Generator{store: store, now: time.Now}
}

// WithClock overrides the generator's clock. Tests only.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// ItemInput is one caller-supplied invoice line.
type ItemInput struct {
	Description string
	Quantity    int
	Amount      finance.Money // line total
}

// CreateInput carries the invoice header and its items.
type CreateInput struct {
	TeacherID    finance.TeacherID
	PeriodStart  time.Time
	PeriodEnd    time.Time
	Subtotal     finance.Money
	CustomAmount finance.Money
	TotalAmount  finance.Money
	Notes        string
	Items        []ItemInput
}

// Create generates an invoice number, verifies the caller's totals
// against the item list, and persists the invoice with all items in one
// store transaction.
func (g *Generator) Create(ctx context.Context, in CreateInput) (*finance.Invoice, error) {
	if in.TeacherID == "" {
		return nil, finance.NewValidationError("teacher_id", "is required")
	}
	if in.PeriodStart.IsZero() || in.PeriodEnd.IsZero() {
		return nil, finance.NewValidationError("period", "period_start and period_end are required")
	}
	if in.PeriodEnd.Before(in.PeriodStart) {
		return nil, finance.NewValidationError("period", "period_end is before period_start")
	}
	if len(in.Items) == 0 {
		return nil, finance.NewValidationError("items", "at least one item is required")
	}

	computed := finance.Zero()
	for i, item := range in.Items {
		if item.Description == "" {
			return nil, finance.NewValidationError("items", "item description is required")
		}
		qty := item.Quantity
		if qty == 0 {
			qty = 1
			in.Items[i].Quantity = 1
		}
		if qty < 0 {
			return nil, finance.NewValidationError("items", "item quantity must be positive")
		}
		computed = computed.Add(item.Amount)
	}

	if !computed.Equal(in.Subtotal) {
		return nil, finance.NewValidationError("subtotal",
			"does not match the sum of item amounts ("+computed.String()+")")
	}
	if !in.Subtotal.Add(in.CustomAmount).Equal(in.TotalAmount) {
		return nil, finance.NewValidationError("total_amount",
			"does not equal subtotal + custom_amount")
	}

	now := g.now().UTC()
	inv := finance.Invoice{
		ID:            finance.InvoiceID(uuid.NewString()),
		InvoiceNumber: finance.NewInvoiceNumber(now),
		TeacherID:     in.TeacherID,
		PeriodStart:   in.PeriodStart,
		PeriodEnd:     in.PeriodEnd,
		Subtotal:      in.Subtotal,
		CustomAmount:  in.CustomAmount,
		TotalAmount:   in.TotalAmount,
		Notes:         in.Notes,
		Status:        finance.InvoicePending,
		CreatedAt:     now,
	}

	items := make([]finance.InvoiceItem, len(in.Items))
	for i, it := range in.Items {
		items[i] = finance.InvoiceItem{
			ID:          finance.InvoiceItemID(uuid.NewString()),
			InvoiceID:   inv.ID,
			Description: it.Description,
			Quantity:    it.Quantity,
			Amount:      it.Amount,
		}
	}

	err := g.store.WithTx(ctx, func(s finance.Store) error {
		if err := s.InsertInvoice(ctx, inv); err != nil {
			return err
		}
		return s.InsertInvoiceItems(ctx, items)
	})
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// Get returns the invoice together with its items.
func (g *Generator) Get(ctx context.Context, id finance.InvoiceID) (*finance.Invoice, []finance.InvoiceItem, error) {
	inv, err := g.store.GetInvoice(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if inv == nil {
		return nil, nil, &finance.NotFoundError{Kind: "invoice", ID: string(id)}
	}
	items, err := g.store.ListInvoiceItems(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return inv, items, nil
}
