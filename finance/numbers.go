/*
numbers.go - Receipt and invoice number generation

PURPOSE:
  Generates human-readable document numbers:

    receipts:  REC-YYYYMMDD-NNNN
    invoices:  INV-YYYYMMDD-NNNN

  where NNNN is four random digits. Numbers are unique per document table;
  uniqueness is enforced by the store's unique index, not by this
  generator - a collision surfaces as ErrDuplicateNumber on insert and the
  operation is rejected rather than silently overwriting.

RANDOMNESS:
  crypto/rand, so concurrent generators on different processes cannot
  share a seed-derived sequence.
*/
package finance

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"time"
)

const (
	receiptPrefix = "REC"
	invoicePrefix = "INV"
)

var (
	receiptNumberPattern = regexp.MustCompile(`^REC-\d{8}-\d{4}$`)
	invoiceNumberPattern = regexp.MustCompile(`^INV-\d{8}-\d{4}$`)
)

// NewReceiptNumber generates a receipt number dated at the given time.
func NewReceiptNumber(at time.Time) string {
	return documentNumber(receiptPrefix, at)
}

// NewInvoiceNumber generates an invoice number dated at the given time.
func NewInvoiceNumber(at time.Time) string {
	return documentNumber(invoicePrefix, at)
}

// IsReceiptNumber reports whether s matches the receipt number format.
func IsReceiptNumber(s string) bool { return receiptNumberPattern.MatchString(s) }

// IsInvoiceNumber reports whether s matches the invoice number format.
func IsInvoiceNumber(s string) bool { return invoiceNumberPattern.MatchString(s) }

func documentNumber(prefix string, at time.Time) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, at.Format("20060102"), randomBelow(10000))
}

func randomBelow(n int64) int64 {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		// crypto/rand failing means the platform's entropy source is
		// broken; fall back to a time-derived value rather than panic.
		return time.Now().UnixNano() % n
	}
	return v.Int64()
}
