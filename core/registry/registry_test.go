package registry

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/railops/wagonmatch/core/model"
)

func testIndent(id string, prio model.Priority, age int) model.Indent {
	return model.Indent{
		ID:                 id,
		Commodity:          "Coal",
		QuantityTons:       500,
		Origin:             "Jharia",
		Destination:        "Mumbai",
		Priority:           prio,
		AgePendingDays:     age,
		WagonTypeRequired:  "BOXN",
		WagonCountRequired: 9,
		PenaltyRisk:        decimal.NewFromInt(420000),
	}
}

func TestUrgencyScore(t *testing.T) {
	cases := []struct {
		prio model.Priority
		age  int
		want float64
	}{
		{model.PriorityHigh, 0, 90},
		{model.PriorityHigh, 1, 95},
		{model.PriorityHigh, 6, 100}, // age bonus capped at 10, total capped at 100
		{model.PriorityMedium, 0, 60},
		{model.PriorityMedium, 2, 70},
		{model.PriorityMedium, 10, 70},
		{model.PriorityLow, 1, 35},
	}
	for _, c := range cases {
		if got := UrgencyScore(c.prio, c.age); got != c.want {
			t.Errorf("UrgencyScore(%v, %d) = %v, want %v", c.prio, c.age, got, c.want)
		}
	}
}

func TestCriticalBand(t *testing.T) {
	r := New(Config{})
	in := testIndent("IN001", model.PriorityHigh, 6)
	if err := r.Add(in); err != nil {
		t.Fatalf("add: %v", err)
	}
	got, err := r.Get("IN001")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UrgencyScore != 100 {
		t.Errorf("expected capped urgency 100, got %v", got.UrgencyScore)
	}
	if r.BandOf(got.AgePendingDays) != BandCritical {
		t.Errorf("expected Critical band for age 6")
	}
	if r.BandOf(4) != BandWarning {
		t.Errorf("expected Warning band for age 4")
	}
	if r.BandOf(2) != BandNormal {
		t.Errorf("expected Normal band for age 2")
	}
}

func TestListOpenOrdering(t *testing.T) {
	r := New(Config{})
	for _, in := range []model.Indent{
		testIndent("IN003", model.PriorityLow, 1),
		testIndent("IN002", model.PriorityMedium, 3),
		testIndent("IN004", model.PriorityHigh, 7),
		testIndent("IN001", model.PriorityHigh, 5),
	} {
		if err := r.Add(in); err != nil {
			t.Fatalf("add %s: %v", in.ID, err)
		}
	}
	got := r.ListOpen()
	want := []string{"IN004", "IN001", "IN002", "IN003"}
	if len(got) != len(want) {
		t.Fatalf("expected %d indents, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: expected %s got %s", i, id, got[i].ID)
		}
	}
	// Both High with equal (capped) urgency: older one first.
	if got[0].AgePendingDays < got[1].AgePendingDays {
		t.Errorf("tie should be broken by age descending")
	}
}

func TestListOpenTieByID(t *testing.T) {
	r := New(Config{})
	for _, id := range []string{"IN002", "IN001"} {
		if err := r.Add(testIndent(id, model.PriorityHigh, 2)); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	got := r.ListOpen()
	if got[0].ID != "IN001" || got[1].ID != "IN002" {
		t.Errorf("equal urgency and age should order by id ascending, got %s, %s", got[0].ID, got[1].ID)
	}
}

func TestStatusProgression(t *testing.T) {
	r := New(Config{})
	if err := r.Add(testIndent("IN001", model.PriorityHigh, 1)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := r.MarkMatched("IN001"); err != nil {
		t.Fatalf("match: %v", err)
	}
	if err := r.MarkAllotted("IN001"); err != nil {
		t.Fatalf("allot: %v", err)
	}
	// Allotted indents cannot be allotted again.
	var ise model.InvalidStateError
	if err := r.MarkAllotted("IN001"); !errors.As(err, &ise) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
	if err := r.Reopen("IN001"); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, _ := r.Get("IN001")
	if got.Status != model.IndentOpen {
		t.Errorf("expected Open after reopen, got %s", got.Status)
	}
	if err := r.MarkAllotted("IN001"); err != nil {
		t.Fatalf("re-allot after reopen: %v", err)
	}
	if err := r.Close("IN001"); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := r.Reopen("IN001"); !errors.As(err, &ise) {
		t.Fatalf("closed indent must not reopen, got %v", err)
	}
}

func TestCancelOnlyWhilePending(t *testing.T) {
	r := New(Config{})
	if err := r.Add(testIndent("IN001", model.PriorityHigh, 1)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := r.MarkAllotted("IN001"); err != nil {
		t.Fatalf("allot: %v", err)
	}
	var ise model.InvalidStateError
	if err := r.Cancel("IN001"); !errors.As(err, &ise) {
		t.Fatalf("allotted indent must not cancel directly, got %v", err)
	}
}

func TestNotFound(t *testing.T) {
	r := New(Config{})
	var nf model.NotFoundError
	if _, err := r.Get("missing"); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if err := r.MarkAllotted("missing"); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestAddValidation(t *testing.T) {
	r := New(Config{})
	bad := testIndent("IN001", model.PriorityHigh, 1)
	bad.WagonCountRequired = 0
	if err := r.Add(bad); err == nil {
		t.Fatalf("expected validation error for zero wagon count")
	}
}

func TestBandCounts(t *testing.T) {
	r := New(Config{})
	for _, in := range []model.Indent{
		testIndent("IN001", model.PriorityHigh, 6),
		testIndent("IN002", model.PriorityMedium, 3),
		testIndent("IN003", model.PriorityLow, 0),
	} {
		if err := r.Add(in); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	counts := r.BandCounts()
	if counts[BandCritical] != 1 || counts[BandWarning] != 1 || counts[BandNormal] != 1 {
		t.Errorf("unexpected band counts: %v", counts)
	}
}
