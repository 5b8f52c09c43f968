package service

import (
	"context"
	"testing"

	"stayledger/pkg/model"
)

func TestProposeDepositSplit(t *testing.T) {
	h := newHarness()
	property := h.newProperty()
	booking := h.newBooking(property)

	if _, err := h.svc.ProposeDepositSplit(context.Background(), booking.ID, tenant, 3000); err == nil {
		t.Error("only the property owner may propose a split")
	}
	if _, err := h.svc.ProposeDepositSplit(context.Background(), booking.ID, landlord, 12000); err == nil {
		t.Error("tenant share above 10000 bps should fail")
	}

	proposal, err := h.svc.ProposeDepositSplit(context.Background(), booking.ID, landlord, 3000)
	if err != nil {
		t.Fatalf("propose failed: %v", err)
	}
	if proposal.TenantBps != 3000 {
		t.Errorf("tenant bps: got %d, want 3000", proposal.TenantBps)
	}

	// One live proposal per booking.
	if _, err := h.svc.ProposeDepositSplit(context.Background(), booking.ID, landlord, 5000); err == nil {
		t.Error("second proposal on the same booking should fail")
	}
}

func TestConfirmDepositSplit_PaysTenantFloorLandlordRemainder(t *testing.T) {
	h := newHarness()
	property := h.newProperty()
	booking := h.newBooking(property)

	if _, err := h.svc.ProposeDepositSplit(context.Background(), booking.ID, landlord, 3000); err != nil {
		t.Fatalf("propose failed: %v", err)
	}

	if err := h.svc.ConfirmDepositSplit(context.Background(), booking.ID, landlord); err == nil {
		t.Error("only the platform may confirm a split")
	}

	if err := h.svc.ConfirmDepositSplit(context.Background(), booking.ID, platformAccount); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	// Deposit 500 at 3000 bps: tenant 150, landlord path 350.
	if h.vault.balances[tenant] != 150 {
		t.Errorf("tenant share: got %d, want 150", h.vault.balances[tenant])
	}
	final, _ := h.svc.GetBooking(context.Background(), booking.ID)
	if final.LandlordAccrued != 350 {
		t.Errorf("landlord accrued: got %d, want 350", final.LandlordAccrued)
	}
	if !final.DepositReleased {
		t.Error("confirmation must mark the deposit released")
	}
	if _, ok := h.deposits.proposals[booking.ID]; ok {
		t.Error("confirmed proposal must be cleared")
	}

	// Confirming an unstarted active booking doubles as cancellation.
	if final.Status != model.BookingCancelled {
		t.Errorf("status: got %s, want cancelled", final.Status)
	}
	if !final.CalendarReleased {
		t.Error("cancellation must release the calendar slot")
	}

	// Second settlement attempt finds the deposit already handled.
	if _, err := h.svc.ProposeDepositSplit(context.Background(), booking.ID, landlord, 5000); err == nil {
		t.Error("proposal after deposit release should fail")
	}
	if err := h.svc.ConfirmDepositSplit(context.Background(), booking.ID, platformAccount); err == nil {
		t.Error("second confirmation should fail")
	}
}

func TestConfirmDepositSplit_KeepsStartedBookingActive(t *testing.T) {
	h := newHarness()
	property := h.newProperty()
	booking := h.newBooking(property)

	if _, err := h.svc.ProposeDepositSplit(context.Background(), booking.ID, landlord, 10000); err != nil {
		t.Fatalf("propose failed: %v", err)
	}

	// Move the stay in progress; settlement must not cancel it.
	stored := h.bookings.bookings[booking.ID]
	stored.StartTime = stored.StartTime.AddDate(0, 0, -5)
	stored.EndTime = stored.EndTime.AddDate(0, 0, -5)

	if err := h.svc.ConfirmDepositSplit(context.Background(), booking.ID, platformAccount); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	final, _ := h.svc.GetBooking(context.Background(), booking.ID)
	if final.Status != model.BookingActive {
		t.Errorf("status: got %s, want active", final.Status)
	}
	// Full refund at 10000 bps.
	if h.vault.balances[tenant] != 500 {
		t.Errorf("tenant share: got %d, want full deposit 500", h.vault.balances[tenant])
	}
	if final.LandlordAccrued != 0 {
		t.Errorf("landlord accrued: got %d, want 0", final.LandlordAccrued)
	}
}

func TestConfirmDepositSplit_FrozenProposal(t *testing.T) {
	h := newHarness()
	property := h.newProperty()
	booking := h.newBooking(property)

	if _, err := h.svc.ProposeDepositSplit(context.Background(), booking.ID, landlord, 3000); err != nil {
		t.Fatalf("propose failed: %v", err)
	}
	h.deposits.proposals[booking.ID].Frozen = true

	if err := h.svc.ConfirmDepositSplit(context.Background(), booking.ID, platformAccount); err == nil {
		t.Error("confirming a frozen proposal should fail")
	}
}

func TestConfirmDepositSplit_BlockedByDelegateFundraising(t *testing.T) {
	h := newHarness()
	property := h.newProperty()
	booking := h.newBooking(property)

	delegate, err := h.svc.AssignDelegate(context.Background(), booking.ID, landlord, "operator-1")
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	d := h.delegates.delegates[delegate.ID]
	d.SoldUnits = 40
	d.Open = true

	if _, err := h.svc.ProposeDepositSplit(context.Background(), booking.ID, landlord, 3000); err != nil {
		t.Fatalf("propose failed: %v", err)
	}

	// Confirming before the lease starts doubles as cancellation, so the
	// delegate guard applies to this path too.
	if err := h.svc.ConfirmDepositSplit(context.Background(), booking.ID, platformAccount); err == nil {
		t.Error("pre-start confirm must fail while the delegate holds sold units")
	}

	current, _ := h.svc.GetBooking(context.Background(), booking.ID)
	if current.Status != model.BookingActive {
		t.Errorf("status: got %s, want active", current.Status)
	}
	if current.DepositReleased {
		t.Error("deposit must stay escrowed")
	}
	if h.vault.balances[tenant] != 0 {
		t.Errorf("tenant balance: got %d, want 0", h.vault.balances[tenant])
	}
}
