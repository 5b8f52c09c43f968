package service

import (
	"context"
	"errors"
	"testing"
)

func TestConfigureFundraising(t *testing.T) {
	h := newHarness()
	delegate := h.newDelegate()
	ctx := context.Background()

	if _, err := h.svc.ConfigureFundraising(ctx, delegate.ID, "stranger", 100, 10, 500); err == nil {
		t.Error("only the operator may configure fundraising")
	}
	if _, err := h.svc.ConfigureFundraising(ctx, delegate.ID, operator, 0, 10, 500); err == nil {
		t.Error("zero unit supply should fail")
	}

	updated, err := h.svc.ConfigureFundraising(ctx, delegate.ID, operator, 100, 10, 500)
	if err != nil {
		t.Fatalf("configure failed: %v", err)
	}
	if updated.TotalUnits != 100 || updated.UnitPrice != 10 || updated.FeeBps != 500 {
		t.Errorf("terms not recorded: %+v", updated)
	}

	// Terms stay mutable until fundraising opens.
	if _, err := h.svc.ConfigureFundraising(ctx, delegate.ID, operator, 80, 25, 0); err != nil {
		t.Fatalf("reconfigure before open failed: %v", err)
	}
}

func TestOpenFundraising_RequiresApprovedMatchingTerms(t *testing.T) {
	h := newHarness()
	delegate := h.newDelegate()
	ctx := context.Background()

	// No terms configured yet.
	if _, err := h.svc.ProposeTerms(ctx, delegate.ID, operator); err == nil {
		t.Error("proposing unconfigured terms should fail")
	}

	if _, err := h.svc.ConfigureFundraising(ctx, delegate.ID, operator, 100, 10, 500); err != nil {
		t.Fatalf("configure failed: %v", err)
	}

	// No proposal yet.
	if err := h.svc.OpenFundraising(ctx, delegate.ID, operator); err == nil {
		t.Error("opening without a proposal should fail")
	}

	proposal, err := h.svc.ProposeTerms(ctx, delegate.ID, operator)
	if err != nil {
		t.Fatalf("propose failed: %v", err)
	}
	if proposal.BookingID != delegate.BookingID || proposal.DelegateID != delegate.ID {
		t.Errorf("proposal binding wrong: %+v", proposal)
	}

	// Not yet approved by the listing side.
	if err := h.svc.OpenFundraising(ctx, delegate.ID, operator); err == nil {
		t.Error("opening an unapproved proposal should fail")
	}

	if err := h.proposals.Approve(ctx, delegate.BookingID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	// Reconfiguring after approval makes the approval stale.
	if _, err := h.svc.ConfigureFundraising(ctx, delegate.ID, operator, 100, 20, 500); err != nil {
		t.Fatalf("reconfigure failed: %v", err)
	}
	if err := h.svc.OpenFundraising(ctx, delegate.ID, operator); err == nil {
		t.Error("opening on terms differing from the approval should fail")
	}

	// Back to the approved terms.
	if _, err := h.svc.ConfigureFundraising(ctx, delegate.ID, operator, 100, 10, 500); err != nil {
		t.Fatalf("reconfigure failed: %v", err)
	}
	if err := h.svc.OpenFundraising(ctx, delegate.ID, operator); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	final, _ := h.svc.GetDelegate(ctx, delegate.ID)
	if !final.Open {
		t.Error("fundraising must be open")
	}
	// The approval is single-use.
	if _, ok := h.proposals.proposals[delegate.BookingID]; ok {
		t.Error("opening must consume the proposal")
	}
	if err := h.svc.OpenFundraising(ctx, delegate.ID, operator); err == nil {
		t.Error("second open should fail")
	}
}

func TestInvest_AutoCloseAtCap(t *testing.T) {
	h := newHarness()
	delegate := h.newDelegate()
	ctx := context.Background()

	// Closed pipeline until the handshake completes.
	if _, err := h.svc.Invest(ctx, delegate.ID, investorA, 10); err == nil {
		t.Error("investing before fundraising opens should fail")
	}

	h.openFundraising(delegate, 100, 10, 500)

	h.vault.balances[investorA] = 400
	h.vault.balances[investorB] = 700

	if _, err := h.svc.Invest(ctx, delegate.ID, investorA, 150); err == nil {
		t.Error("purchase above total supply should fail")
	}

	position, err := h.svc.Invest(ctx, delegate.ID, investorA, 40)
	if err != nil {
		t.Fatalf("invest A failed: %v", err)
	}
	if position.Units != 40 || position.Debt != 0 {
		t.Errorf("position: got units=%d debt=%d, want 40/0", position.Units, position.Debt)
	}

	// Lock failures at close are advisory.
	h.shares.lockError = errors.New("registrar unavailable")
	if _, err := h.svc.Invest(ctx, delegate.ID, investorB, 60); err != nil {
		t.Fatalf("a failed transfer lock must not unwind the investment: %v", err)
	}

	final, _ := h.svc.GetDelegate(ctx, delegate.ID)
	if !final.Closed || final.Open {
		t.Error("reaching the cap must close fundraising")
	}
	if final.Raised != 1000 {
		t.Errorf("raised: got %d, want 1000", final.Raised)
	}
	if h.vault.balances[escrowAccount] != 1000 {
		t.Errorf("escrow balance: got %d, want 1000", h.vault.balances[escrowAccount])
	}

	// Closing is irreversible regardless of the failed lock.
	h.shares.lockError = nil
	if _, err := h.svc.Invest(ctx, delegate.ID, investorA, 1); err == nil {
		t.Error("investing after close should fail")
	}
	if _, err := h.svc.ConfigureFundraising(ctx, delegate.ID, operator, 200, 10, 500); err == nil {
		t.Error("reconfiguring after close should fail")
	}
}

func TestCollectRent_FeeSplitAndClaims(t *testing.T) {
	h := newHarness()
	delegate := h.newDelegate()
	ctx := context.Background()

	// No denominator before any units are sold.
	h.vault.balances[operator] = 5000
	if _, err := h.svc.CollectRent(ctx, delegate.ID, operator, 1000); err == nil {
		t.Error("collecting with no sold units should fail")
	}

	h.openFundraising(delegate, 100, 10, 500)
	h.vault.balances[investorA] = 400
	h.vault.balances[investorB] = 600
	if _, err := h.svc.Invest(ctx, delegate.ID, investorA, 40); err != nil {
		t.Fatalf("invest A failed: %v", err)
	}
	if _, err := h.svc.Invest(ctx, delegate.ID, investorB, 60); err != nil {
		t.Fatalf("invest B failed: %v", err)
	}

	// 5% delegate fee on 1000: 50 withheld, 950 distributed.
	updated, err := h.svc.CollectRent(ctx, delegate.ID, operator, 1000)
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if updated.FeeAccrued != 50 {
		t.Errorf("fee accrued: got %d, want 50", updated.FeeAccrued)
	}

	claimedA, err := h.svc.Claim(ctx, delegate.ID, investorA)
	if err != nil {
		t.Fatalf("claim A failed: %v", err)
	}
	if claimedA != 380 {
		t.Errorf("claim A: got %d, want 40%% of 950 = 380", claimedA)
	}
	claimedB, err := h.svc.Claim(ctx, delegate.ID, investorB)
	if err != nil {
		t.Fatalf("claim B failed: %v", err)
	}
	if claimedB != 570 {
		t.Errorf("claim B: got %d, want 60%% of 950 = 570", claimedB)
	}

	// Conservation: claims plus withheld fee equal the credit.
	if claimedA+claimedB+updated.FeeAccrued != 1000 {
		t.Errorf("conservation broken: %d+%d+%d != 1000", claimedA, claimedB, updated.FeeAccrued)
	}

	if _, err := h.svc.Claim(ctx, delegate.ID, investorA); err == nil {
		t.Error("second claim with no new credit should fail")
	}
}

func TestWithdrawFees(t *testing.T) {
	h := newHarness()
	delegate := h.newDelegate()
	ctx := context.Background()

	if _, err := h.svc.WithdrawFees(ctx, delegate.ID, operator); err == nil {
		t.Error("withdrawing with nothing accrued should fail")
	}

	h.openFundraising(delegate, 100, 10, 1000)
	h.vault.balances[investorA] = 1000
	if _, err := h.svc.Invest(ctx, delegate.ID, investorA, 100); err != nil {
		t.Fatalf("invest failed: %v", err)
	}
	h.vault.balances[subTenant] = 500
	if _, err := h.svc.CollectRent(ctx, delegate.ID, subTenant, 500); err != nil {
		t.Fatalf("collect failed: %v", err)
	}

	if _, err := h.svc.WithdrawFees(ctx, delegate.ID, "stranger"); err == nil {
		t.Error("only the operator may withdraw fees")
	}

	amount, err := h.svc.WithdrawFees(ctx, delegate.ID, operator)
	if err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}
	// 10% of 500.
	if amount != 50 {
		t.Errorf("withdrawn fees: got %d, want 50", amount)
	}
	if h.vault.balances[operator] != 50 {
		t.Errorf("operator balance: got %d, want 50", h.vault.balances[operator])
	}

	if _, err := h.svc.WithdrawFees(ctx, delegate.ID, operator); err == nil {
		t.Error("second withdrawal with nothing accrued should fail")
	}
}
