package services

import (
	"context"
	"testing"

	"tripsplit-backend/models"
	"tripsplit-backend/settlement"
	"tripsplit-backend/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*SettlementService, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })
	return NewSettlementService(db, nil), db
}

func findTransfer(views []models.TransferView, fromName, toName string) *models.TransferView {
	for i := range views {
		if views[i].FromName == fromName && views[i].ToName == toName {
			return &views[i]
		}
	}
	return nil
}

func TestComputeForTrip(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	alice := testutil.CreateTestUser(t, db, "Alice")
	bob := testutil.CreateTestUser(t, db, "Bob")
	carol := testutil.CreateTestUser(t, db, "Carol")
	trip := testutil.CreateTestTrip(t, db, "USD", alice, bob, carol)

	testutil.CreateEqualExpense(t, db, trip, alice, 9000, alice, bob, carol)
	testutil.CreateEqualExpense(t, db, trip, bob, 3000, alice, bob, carol)

	resp, err := svc.ComputeForTrip(ctx, trip.ID, "USD")
	require.NoError(t, err)
	require.Len(t, resp.Active, 2)
	assert.Empty(t, resp.Settled)
	assert.Empty(t, resp.Warnings)

	ca := findTransfer(resp.Active, "Carol", "Alice")
	require.NotNil(t, ca)
	assert.Equal(t, "40.00", ca.Amount)

	ba := findTransfer(resp.Active, "Bob", "Alice")
	require.NotNil(t, ba)
	assert.Equal(t, "10.00", ba.Amount)

	// Both transfers persisted for confirmation tracking.
	assert.EqualValues(t, 2, testutil.SettlementKeyCount(t, db, trip.ID))

	// Net positions sum to zero.
	require.Len(t, resp.Totals, 3)
}

func TestComputeForTripRejectsForeignCurrency(t *testing.T) {
	svc, db := newTestService(t)

	alice := testutil.CreateTestUser(t, db, "Alice")
	trip := testutil.CreateTestTrip(t, db, "USD,EUR", alice)

	_, err := svc.ComputeForTrip(context.Background(), trip.ID, "JPY")
	require.Error(t, err)
}

func TestComputeForTripUnknownTrip(t *testing.T) {
	svc, db := newTestService(t)

	alice := testutil.CreateTestUser(t, db, "Alice")
	_, err := svc.ComputeForTrip(context.Background(), alice.ID, "USD")
	require.ErrorIs(t, err, ErrTripNotFound)
}

func TestSettledConfirmationSurvivesRecompute(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	alice := testutil.CreateTestUser(t, db, "Alice")
	bob := testutil.CreateTestUser(t, db, "Bob")
	carol := testutil.CreateTestUser(t, db, "Carol")
	trip := testutil.CreateTestTrip(t, db, "USD", alice, bob, carol)

	testutil.CreateEqualExpense(t, db, trip, alice, 9000, alice, bob, carol)

	resp, err := svc.ComputeForTrip(ctx, trip.ID, "USD")
	require.NoError(t, err)
	require.Len(t, resp.Active, 2)

	key := settlement.TransferKey{From: carol.ID, To: alice.ID, Currency: "USD"}
	record, err := svc.MarkSettled(ctx, trip.ID, key)
	require.NoError(t, err)
	require.NotNil(t, record.SettledAt)

	// Recompute with unchanged expenses: the confirmation holds.
	resp, err = svc.ComputeForTrip(ctx, trip.ID, "USD")
	require.NoError(t, err)
	require.Len(t, resp.Settled, 1)
	require.Len(t, resp.Active, 1)
	assert.Equal(t, "Carol", resp.Settled[0].FromName)
	assert.NotNil(t, resp.Settled[0].SettledAt)

	// Settling again is a no-op, not an error.
	again, err := svc.MarkSettled(ctx, trip.ID, key)
	require.NoError(t, err)
	assert.Equal(t, record.SettledAt.Unix(), again.SettledAt.Unix())
}

func TestSettledAmountDriftReopensTransfer(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	alice := testutil.CreateTestUser(t, db, "Alice")
	bob := testutil.CreateTestUser(t, db, "Bob")
	carol := testutil.CreateTestUser(t, db, "Carol")
	trip := testutil.CreateTestTrip(t, db, "USD", alice, bob, carol)

	testutil.CreateEqualExpense(t, db, trip, alice, 9000, alice, bob, carol)

	_, err := svc.ComputeForTrip(ctx, trip.ID, "USD")
	require.NoError(t, err)

	key := settlement.TransferKey{From: carol.ID, To: alice.ID, Currency: "USD"}
	_, err = svc.MarkSettled(ctx, trip.ID, key)
	require.NoError(t, err)

	// A new expense changes Carol's debt to Alice.
	testutil.CreateEqualExpense(t, db, trip, alice, 3000, alice, bob, carol)

	resp, err := svc.ComputeForTrip(ctx, trip.ID, "USD")
	require.NoError(t, err)
	assert.Empty(t, resp.Settled)

	reopened := findTransfer(resp.Active, "Carol", "Alice")
	require.NotNil(t, reopened)
	assert.Equal(t, "40.00", reopened.Amount)
	assert.Nil(t, reopened.SettledAt)

	var found bool
	for _, w := range resp.Warnings {
		if w.Code == settlement.WarnSettledAmountDrift {
			found = true
		}
	}
	assert.True(t, found, "expected a settled_amount_drift warning")
}

func TestDroppedTransfersAreDeleted(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	alice := testutil.CreateTestUser(t, db, "Alice")
	bob := testutil.CreateTestUser(t, db, "Bob")
	trip := testutil.CreateTestTrip(t, db, "USD", alice, bob)

	expense := testutil.CreateEqualExpense(t, db, trip, alice, 3000, alice, bob)

	resp, err := svc.ComputeForTrip(ctx, trip.ID, "USD")
	require.NoError(t, err)
	require.Len(t, resp.Active, 1)
	assert.EqualValues(t, 1, testutil.SettlementKeyCount(t, db, trip.ID))

	require.NoError(t, db.Where("expense_id = ?", expense.ID).Delete(&models.ExpenseShare{}).Error)
	require.NoError(t, db.Delete(expense).Error)

	resp, err = svc.ComputeForTrip(ctx, trip.ID, "USD")
	require.NoError(t, err)
	assert.Empty(t, resp.Active)
	assert.EqualValues(t, 0, testutil.SettlementKeyCount(t, db, trip.ID))
}

func TestCurrenciesSettleIndependently(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	alice := testutil.CreateTestUser(t, db, "Alice")
	bob := testutil.CreateTestUser(t, db, "Bob")
	trip := testutil.CreateTestTrip(t, db, "USD,EUR", alice, bob)

	testutil.CreateEqualExpense(t, db, trip, alice, 3000, alice, bob)

	eur := &models.Expense{
		TripID:      trip.ID,
		PaidBy:      bob.ID,
		Description: "Train tickets",
		AmountMinor: 5000,
		Currency:    "EUR",
		Split:       "equal",
	}
	require.NoError(t, db.Create(eur).Error)
	for _, u := range []*models.User{alice, bob} {
		paid := int64(0)
		if u.ID == bob.ID {
			paid = 5000
		}
		require.NoError(t, db.Create(&models.ExpenseShare{
			ExpenseID: eur.ID, UserID: u.ID, Weight: 1, OwedMinor: 2500, PaidMinor: paid,
		}).Error)
	}

	usd, err := svc.ComputeForTrip(ctx, trip.ID, "USD")
	require.NoError(t, err)
	require.Len(t, usd.Active, 1)
	assert.Equal(t, "Bob", usd.Active[0].FromName)
	assert.Equal(t, "15.00", usd.Active[0].Amount)

	eurResp, err := svc.ComputeForTrip(ctx, trip.ID, "EUR")
	require.NoError(t, err)
	require.Len(t, eurResp.Active, 1)
	assert.Equal(t, "Alice", eurResp.Active[0].FromName)
	assert.Equal(t, "25.00", eurResp.Active[0].Amount)
}

func TestMarkSettledUnknownTransfer(t *testing.T) {
	svc, db := newTestService(t)

	alice := testutil.CreateTestUser(t, db, "Alice")
	bob := testutil.CreateTestUser(t, db, "Bob")
	trip := testutil.CreateTestTrip(t, db, "USD", alice, bob)

	key := settlement.TransferKey{From: bob.ID, To: alice.ID, Currency: "USD"}
	_, err := svc.MarkSettled(context.Background(), trip.ID, key)
	require.ErrorIs(t, err, settlement.ErrTransferNotFound)
}

func TestMarkUnsettledReopens(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	alice := testutil.CreateTestUser(t, db, "Alice")
	bob := testutil.CreateTestUser(t, db, "Bob")
	trip := testutil.CreateTestTrip(t, db, "USD", alice, bob)

	testutil.CreateEqualExpense(t, db, trip, alice, 3000, alice, bob)

	_, err := svc.ComputeForTrip(ctx, trip.ID, "USD")
	require.NoError(t, err)

	key := settlement.TransferKey{From: bob.ID, To: alice.ID, Currency: "USD"}
	_, err = svc.MarkSettled(ctx, trip.ID, key)
	require.NoError(t, err)

	record, err := svc.MarkUnsettled(ctx, trip.ID, key)
	require.NoError(t, err)
	assert.Equal(t, string(settlement.StatusActive), record.Status)
	assert.Nil(t, record.SettledAt)
}

func TestExplainTransfer(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	alice := testutil.CreateTestUser(t, db, "Alice")
	bob := testutil.CreateTestUser(t, db, "Bob")
	trip := testutil.CreateTestTrip(t, db, "USD", alice, bob)

	testutil.CreateEqualExpense(t, db, trip, alice, 3000, alice, bob)

	_, err := svc.ComputeForTrip(ctx, trip.ID, "USD")
	require.NoError(t, err)

	key := settlement.TransferKey{From: bob.ID, To: alice.ID, Currency: "USD"}
	breakdown, err := svc.Explain(trip.ID, key)
	require.NoError(t, err)

	assert.Equal(t, "Bob", breakdown.Transfer.FromName)
	assert.Equal(t, "Alice", breakdown.Transfer.ToName)
	require.Len(t, breakdown.Relevant, 1)
	assert.Equal(t, "15.00", breakdown.Relevant[0].Net)

	_, err = svc.Explain(trip.ID, settlement.TransferKey{From: alice.ID, To: bob.ID, Currency: "USD"})
	require.ErrorIs(t, err, settlement.ErrTransferNotFound)
}
