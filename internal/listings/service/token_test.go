package service

import (
	"context"
	"errors"
	"testing"

	"stayledger/pkg/model"
)

const (
	investorA = "investor-a"
	investorB = "investor-b"
)

// zeroFees removes platform fees so rent credits land in the accumulator at
// face value.
func (h *harness) zeroFees() {
	h.directory.policy.TenantFeeBps = 0
	h.directory.policy.LandlordFeeBps = 0
}

func TestInvestAndClaim_ProRataSplit(t *testing.T) {
	h := newHarness()
	h.zeroFees()
	property := h.newProperty()
	booking := h.newBooking(property)

	if err := h.svc.TokeniseBooking(context.Background(), booking.ID, landlord, 100, 10, 0); err != nil {
		t.Fatalf("tokenise failed: %v", err)
	}

	h.vault.balances[investorA] = 400
	h.vault.balances[investorB] = 600
	if _, err := h.svc.Invest(context.Background(), booking.ID, investorA, 40); err != nil {
		t.Fatalf("invest A failed: %v", err)
	}
	if _, err := h.svc.Invest(context.Background(), booking.ID, investorB, 60); err != nil {
		t.Fatalf("invest B failed: %v", err)
	}

	stored, _ := h.svc.GetBooking(context.Background(), booking.ID)
	if stored.SoldUnits != 100 {
		t.Fatalf("sold units: got %d, want 100", stored.SoldUnits)
	}
	// Sale proceeds accrue to the landlord balance.
	if stored.LandlordAccrued != 1000 {
		t.Errorf("landlord accrued: got %d, want sale proceeds 1000", stored.LandlordAccrued)
	}
	// Full subscription freezes secondary transfers.
	if !h.shares.locked[stored.ShareClassID()] {
		t.Error("full subscription must lock share transfers")
	}

	// Credit 1000 of rent across the 100 sold units.
	h.vault.balances[tenant] = 1000
	if _, err := h.svc.PayRent(context.Background(), booking.ID, tenant, 700); err != nil {
		t.Fatalf("pay rent failed: %v", err)
	}
	if _, err := h.svc.PayRent(context.Background(), booking.ID, tenant, 300); err != nil {
		t.Fatalf("pay rent failed: %v", err)
	}

	claimedA, err := h.svc.Claim(context.Background(), booking.ID, investorA)
	if err != nil {
		t.Fatalf("claim A failed: %v", err)
	}
	if claimedA != 400 {
		t.Errorf("claim A: got %d, want 400", claimedA)
	}
	claimedB, err := h.svc.Claim(context.Background(), booking.ID, investorB)
	if err != nil {
		t.Fatalf("claim B failed: %v", err)
	}
	if claimedB != 600 {
		t.Errorf("claim B: got %d, want 600", claimedB)
	}

	if _, err := h.svc.Claim(context.Background(), booking.ID, investorA); err == nil {
		t.Error("claim with nothing pending should fail")
	}
}

func TestInvest_LateBuyerOwesNothingForPastRent(t *testing.T) {
	h := newHarness()
	h.zeroFees()
	property := h.newProperty()
	booking := h.newBooking(property)

	if err := h.svc.TokeniseBooking(context.Background(), booking.ID, landlord, 100, 10, 0); err != nil {
		t.Fatalf("tokenise failed: %v", err)
	}

	h.vault.balances[investorA] = 400
	if _, err := h.svc.Invest(context.Background(), booking.ID, investorA, 40); err != nil {
		t.Fatalf("invest A failed: %v", err)
	}

	// 400 of rent accrues over 40 sold units (10 per unit).
	h.vault.balances[tenant] = 400
	if _, err := h.svc.PayRent(context.Background(), booking.ID, tenant, 400); err != nil {
		t.Fatalf("pay rent failed: %v", err)
	}

	// B buys after the credit; the debt snapshot cancels the past accrual.
	h.vault.balances[investorB] = 400
	position, err := h.svc.Invest(context.Background(), booking.ID, investorB, 40)
	if err != nil {
		t.Fatalf("invest B failed: %v", err)
	}
	if position.Debt != 400 {
		t.Errorf("debt snapshot: got %d, want 400", position.Debt)
	}
	if _, err := h.svc.Claim(context.Background(), booking.ID, investorB); err == nil {
		t.Error("late buyer must have nothing to claim for past rent")
	}

	claimed, err := h.svc.Claim(context.Background(), booking.ID, investorA)
	if err != nil {
		t.Fatalf("claim A failed: %v", err)
	}
	if claimed != 400 {
		t.Errorf("claim A: got %d, want the full 400", claimed)
	}
}

func TestInvest_SupplyAndFunds(t *testing.T) {
	h := newHarness()
	property := h.newProperty()
	booking := h.newBooking(property)

	if _, err := h.svc.Invest(context.Background(), booking.ID, investorA, 10); err == nil {
		t.Error("investing in an untokenised booking should fail")
	}

	if err := h.svc.TokeniseBooking(context.Background(), booking.ID, landlord, 100, 10, 0); err != nil {
		t.Fatalf("tokenise failed: %v", err)
	}

	h.vault.balances[investorA] = 10000
	if _, err := h.svc.Invest(context.Background(), booking.ID, investorA, 150); err == nil {
		t.Error("purchase above total supply should fail")
	}
	if _, err := h.svc.Invest(context.Background(), booking.ID, investorB, 10); err == nil {
		t.Error("purchase without funds should fail")
	}
}

func TestInvest_TransferLockFailureIsAdvisory(t *testing.T) {
	h := newHarness()
	property := h.newProperty()
	booking := h.newBooking(property)

	if err := h.svc.TokeniseBooking(context.Background(), booking.ID, landlord, 10, 10, 0); err != nil {
		t.Fatalf("tokenise failed: %v", err)
	}

	h.shares.lockError = errors.New("registrar unavailable")
	h.vault.balances[investorA] = 100
	if _, err := h.svc.Invest(context.Background(), booking.ID, investorA, 10); err != nil {
		t.Fatalf("a failed transfer lock must not unwind the investment: %v", err)
	}

	stored, _ := h.svc.GetBooking(context.Background(), booking.ID)
	if stored.SoldUnits != 10 {
		t.Errorf("sold units: got %d, want 10", stored.SoldUnits)
	}
}

func TestTokeniseBooking_Guards(t *testing.T) {
	h := newHarness()
	property := h.newProperty()
	booking := h.newBooking(property)

	if err := h.svc.TokeniseBooking(context.Background(), booking.ID, tenant, 100, 10, 0); err == nil {
		t.Error("only the property owner may tokenise")
	}
	if err := h.svc.TokeniseBooking(context.Background(), booking.ID, landlord, 0, 10, 0); err == nil {
		t.Error("zero unit supply should fail")
	}

	if err := h.svc.TokeniseBooking(context.Background(), booking.ID, landlord, 100, 10, 0); err != nil {
		t.Fatalf("tokenise failed: %v", err)
	}
	if err := h.svc.TokeniseBooking(context.Background(), booking.ID, landlord, 50, 20, 0); err == nil {
		t.Error("second tokenisation should fail")
	}
	if _, err := h.svc.AssignDelegate(context.Background(), booking.ID, landlord, "operator-1"); err == nil {
		t.Error("a directly tokenised booking cannot be delegated")
	}
}

func TestAssignDelegate(t *testing.T) {
	h := newHarness()
	property := h.newProperty()
	booking := h.newBooking(property)

	if _, err := h.svc.AssignDelegate(context.Background(), booking.ID, tenant, "operator-1"); err == nil {
		t.Error("only the owner or the platform may assign a delegate")
	}

	delegate, err := h.svc.AssignDelegate(context.Background(), booking.ID, landlord, "operator-1")
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if delegate.Operator != "operator-1" {
		t.Errorf("operator: got %s, want operator-1", delegate.Operator)
	}

	// The delegate calendar caps subleases at the booking's reserved units.
	capacity, ok := h.registry.calendars[delegate.CalendarID()]
	if !ok {
		t.Fatal("delegate calendar was not created")
	}
	if capacity != booking.Units {
		t.Errorf("delegate calendar capacity: got %d, want %d", capacity, booking.Units)
	}

	// At most one delegate per booking; delegated bookings tokenise through
	// the delegate only.
	if _, err := h.svc.AssignDelegate(context.Background(), booking.ID, landlord, "operator-2"); err == nil {
		t.Error("second delegate assignment should fail")
	}
	if err := h.svc.TokeniseBooking(context.Background(), booking.ID, landlord, 100, 10, 0); err == nil {
		t.Error("direct tokenisation of a delegated booking should fail")
	}
}

func TestApproveTokenisation(t *testing.T) {
	h := newHarness()
	property := h.newProperty()
	booking := h.newBooking(property)

	delegate, err := h.svc.AssignDelegate(context.Background(), booking.ID, landlord, "operator-1")
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	if err := h.svc.ApproveTokenisation(context.Background(), booking.ID, landlord); err == nil {
		t.Error("approval without a pending proposal should fail")
	}

	// Terms arrive from the delegate side; seed the pending proposal.
	if err := h.tokens.Create(context.Background(), &model.TokenisationProposal{
		BookingID:  booking.ID,
		DelegateID: delegate.ID,
		TotalUnits: 80,
		UnitPrice:  25,
		FeeBps:     500,
	}); err != nil {
		t.Fatalf("seed proposal failed: %v", err)
	}

	if err := h.svc.ApproveTokenisation(context.Background(), booking.ID, tenant); err == nil {
		t.Error("only the owner or the platform may approve")
	}
	if err := h.svc.ApproveTokenisation(context.Background(), booking.ID, landlord); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if !h.tokens.proposals[booking.ID].Approved {
		t.Error("approval must mark the proposal approved")
	}
}
