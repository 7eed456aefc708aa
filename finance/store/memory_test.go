package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorhall/ledger-engine/finance"
	"github.com/tutorhall/ledger-engine/finance/store"
)

func TestTxMemory_RollbackOnError(t *testing.T) {
	// GIVEN: An empty store
	// WHEN: A transaction inserts a record and then fails
	// THEN: The insert is rolled back; the store stays empty

	m := store.NewTxMemory()
	ctx := context.Background()

	boom := errors.New("boom")
	err := m.WithTx(ctx, func(s finance.Store) error {
		tx := finance.Transaction{
			ID:            "tx-1",
			ReceiptNumber: "REC-20260310-0001",
			StudentID:     "student-1",
			Amount:        finance.NewMoneyFromInt(500),
			Type:          finance.TxPayment,
			Status:        finance.TxPending,
			CreatedAt:     time.Now().UTC(),
		}
		if err := s.InsertTransaction(ctx, tx); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := m.GetTransaction(ctx, "tx-1")
	require.NoError(t, err)
	assert.Nil(t, got, "rolled-back insert must not be visible")
}

func TestTxMemory_CommitOnSuccess(t *testing.T) {
	m := store.NewTxMemory()
	ctx := context.Background()

	err := m.WithTx(ctx, func(s finance.Store) error {
		return s.InsertTransaction(ctx, finance.Transaction{
			ID:            "tx-1",
			ReceiptNumber: "REC-20260310-0001",
			StudentID:     "student-1",
			Amount:        finance.NewMoneyFromInt(500),
			Type:          finance.TxPayment,
			Status:        finance.TxPending,
			CreatedAt:     time.Now().UTC(),
		})
	})
	require.NoError(t, err)

	got, err := m.GetTransaction(ctx, "tx-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "REC-20260310-0001", got.ReceiptNumber)
}

func TestMemory_UpsertSalary_PreservesID(t *testing.T) {
	// GIVEN: A salary for (teacher-1, 3, 2026)
	// WHEN: Upserting again for the same period with a new candidate ID
	// THEN: The stored row keeps the original ID

	m := store.NewMemory()
	ctx := context.Background()

	first, err := m.UpsertSalary(ctx, finance.Salary{
		ID:        "sal-1",
		TeacherID: "teacher-1",
		Month:     3,
		Year:      2026,
		Status:    finance.SalaryPending,
	})
	require.NoError(t, err)

	second, err := m.UpsertSalary(ctx, finance.Salary{
		ID:        "sal-2",
		TeacherID: "teacher-1",
		Month:     3,
		Year:      2026,
		Status:    finance.SalaryPending,
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "upsert must not re-key the salary")
}

func TestMemory_DeleteDerivedSalaryItems_KeepsManualItems(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	sal, err := m.UpsertSalary(ctx, finance.Salary{
		ID:        "sal-1",
		TeacherID: "teacher-1",
		Month:     3,
		Year:      2026,
		Status:    finance.SalaryPending,
	})
	require.NoError(t, err)

	require.NoError(t, m.InsertSalaryItem(ctx, finance.SalaryItem{
		ID: "item-1", SalaryID: sal.ID, Type: finance.ItemSession,
		Description: "Session on 2026-03-02", Amount: finance.NewMoneyFromInt(100),
	}))
	require.NoError(t, m.InsertSalaryItem(ctx, finance.SalaryItem{
		ID: "item-2", SalaryID: sal.ID, Type: finance.ItemBonus,
		Description: "March bonus", Amount: finance.NewMoneyFromInt(50),
	}))

	require.NoError(t, m.DeleteDerivedSalaryItems(ctx, sal.ID))

	items, err := m.ListSalaryItems(ctx, sal.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, finance.ItemBonus, items[0].Type, "manual items survive regeneration")
}

func TestMemory_FindRefundOf(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.InsertTransaction(ctx, finance.Transaction{
		ID:            "tx-refund",
		ReceiptNumber: "REC-20260310-0002",
		StudentID:     "student-1",
		Amount:        finance.NewMoneyFromInt(200),
		Type:          finance.TxRefund,
		Status:        finance.TxCompleted,
		RefundOf:      "REC-20260310-0001",
	}))

	found, err := m.FindRefundOf(ctx, "REC-20260310-0001")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, finance.TransactionID("tx-refund"), found.ID)

	missing, err := m.FindRefundOf(ctx, "REC-20260310-9999")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
