package accrual

import (
	"testing"
)

func TestCredit_SpreadsAcrossSoldUnits(t *testing.T) {
	acc, err := Credit("", 1000, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 1000 * 1e18 / 100
	if acc != "10000000000000000000" {
		t.Errorf("expected acc 10000000000000000000, got %s", acc)
	}

	got, err := Accrued(40, acc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 400 {
		t.Errorf("expected 40 units to accrue 400, got %d", got)
	}
}

func TestCredit_RejectsZeroAmountAndZeroUnits(t *testing.T) {
	if _, err := Credit("", 0, 100); err == nil {
		t.Error("expected error for zero amount")
	}
	if _, err := Credit("", 100, 0); err == nil {
		t.Error("expected error for zero sold units")
	}
}

func TestPending_LatePurchaseOwesNothing(t *testing.T) {
	// 1000 credited across 100 units before the holder buys.
	acc, err := Credit("", 1000, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Buyer of 25 units snapshots debt at purchase time.
	debt, err := Accrued(25, acc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if debt != 250 {
		t.Errorf("expected purchase debt 250, got %d", debt)
	}

	pending, err := Pending(25, acc, debt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pending != 0 {
		t.Errorf("expected nothing pending right after purchase, got %d", pending)
	}

	// Only rent credited after the purchase is claimable.
	acc, err = Credit(acc, 400, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pending, err = Pending(25, acc, debt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pending != 100 {
		t.Errorf("expected 25/100 of 400 = 100 pending, got %d", pending)
	}
}

func TestPending_SettleThenNothing(t *testing.T) {
	acc, err := Credit("", 999, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pending, err := Pending(7, acc, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pending == 0 {
		t.Fatal("expected nonzero pending before settle")
	}

	// Full settle: debt snapshots to the accrued value.
	debt, err := Accrued(7, acc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pending, err = Pending(7, acc, debt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pending != 0 {
		t.Errorf("expected zero pending after settle, got %d", pending)
	}
}

// Conservation: over any schedule of credits, purchases and claims, the sum
// of claims never exceeds the sum of credits, and the shortfall stays below
// one unit of dust per credit event times (soldUnits - 1).
func TestConservation_UnderChurn(t *testing.T) {
	type holder struct {
		units int64
		debt  int64
	}

	holders := map[string]*holder{}
	acc := ""
	var sold int64
	var credited, claimed int64
	var creditEvents int64

	buy := func(name string, n int64) {
		h, ok := holders[name]
		if !ok {
			h = &holder{}
			holders[name] = h
		}
		d, err := Accrued(n, acc)
		if err != nil {
			t.Fatalf("accrued: %v", err)
		}
		h.units += n
		h.debt += d
		sold += n
	}
	credit := func(amount int64) {
		var err error
		acc, err = Credit(acc, amount, sold)
		if err != nil {
			t.Fatalf("credit: %v", err)
		}
		credited += amount
		creditEvents++
	}
	claim := func(name string) {
		h := holders[name]
		p, err := Pending(h.units, acc, h.debt)
		if err != nil {
			t.Fatalf("pending: %v", err)
		}
		claimed += p
		h.debt, err = Accrued(h.units, acc)
		if err != nil {
			t.Fatalf("accrued: %v", err)
		}
	}

	buy("ava", 13)
	buy("ben", 29)
	credit(1003)
	claim("ava")
	buy("cam", 31)
	credit(997)
	buy("ava", 7)
	credit(5000)
	claim("ben")
	claim("cam")
	credit(123)
	claim("ava")
	claim("ben")
	claim("cam")

	if claimed > credited {
		t.Fatalf("claims %d exceed credits %d", claimed, credited)
	}
	maxDust := creditEvents * (sold - 1)
	if credited-claimed > maxDust {
		t.Errorf("rounding shortfall %d exceeds bound %d", credited-claimed, maxDust)
	}

	// Fully settled book: nobody has anything left to claim.
	for name, h := range holders {
		p, err := Pending(h.units, acc, h.debt)
		if err != nil {
			t.Fatalf("pending: %v", err)
		}
		if p != 0 {
			t.Errorf("holder %s still pends %d after settle", name, p)
		}
	}
}

func TestParse_RejectsMalformed(t *testing.T) {
	for _, bad := range []string{"abc", "-5", "1.5"} {
		if _, err := Parse(bad); err == nil {
			t.Errorf("expected parse error for %q", bad)
		}
	}
	v, err := Parse("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Sign() != 0 {
		t.Error("empty accumulator should parse as zero")
	}
}
