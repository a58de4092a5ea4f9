package allot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/railops/wagonmatch/core/audit"
	"github.com/railops/wagonmatch/core/catalog"
	"github.com/railops/wagonmatch/core/match"
	"github.com/railops/wagonmatch/core/metrics"
	"github.com/railops/wagonmatch/core/model"
	"github.com/railops/wagonmatch/core/registry"
	"github.com/railops/wagonmatch/infra/logger"
	"github.com/railops/wagonmatch/internal/eventbus"
)

type fixture struct {
	reg   *registry.Registry
	cat   *catalog.Catalog
	store *audit.MemoryStore
	orch  *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := registry.New(registry.Config{})
	cat := catalog.New()
	store := audit.NewMemoryStore()
	orch := New(reg, cat, match.New(match.Config{}), store, nil, eventbus.New[metrics.AllotmentEvent](), logger.NopLogger{})
	return &fixture{reg: reg, cat: cat, store: store, orch: orch}
}

func (f *fixture) addIndent(t *testing.T, id string, count int) {
	t.Helper()
	err := f.reg.Add(model.Indent{
		ID:                 id,
		Commodity:          "Coal",
		QuantityTons:       500,
		Origin:             "Jharia",
		Destination:        "Mumbai",
		Priority:           model.PriorityHigh,
		AgePendingDays:     5,
		WagonTypeRequired:  "BOXN",
		WagonCountRequired: count,
		PenaltyRisk:        decimal.NewFromInt(420000),
	})
	if err != nil {
		t.Fatalf("add indent: %v", err)
	}
}

func (f *fixture) seedPool(t *testing.T, location string, count int) {
	t.Helper()
	err := f.cat.Seed(model.WagonSource{
		Location:             location,
		WagonType:            "BOXN",
		CountAvailable:       count,
		CapacityPerWagonTons: 58.8,
		DistanceToOriginKM:   1240,
		EmptyRunCost:         decimal.NewFromInt(210000),
		Availability:         model.Immediate(),
	})
	if err != nil {
		t.Fatalf("seed pool: %v", err)
	}
}

func TestProposeConfirmDecrementsSupply(t *testing.T) {
	f := newFixture(t)
	f.addIndent(t, "IN001", 9)
	f.seedPool(t, "Kalyan Yard", 45)
	ctx := context.Background()

	a, err := f.orch.Propose(ctx, "op1", "IN001", "Kalyan Yard", "BOXN", 9)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if a.State != model.AllotmentProposed {
		t.Fatalf("expected Proposed, got %s", a.State)
	}
	// Proposal must not touch the pool.
	ws, _ := f.cat.Get("Kalyan Yard", "BOXN")
	if ws.CountAvailable != 45 {
		t.Fatalf("propose must not reserve, pool at %d", ws.CountAvailable)
	}
	in, _ := f.reg.Get("IN001")
	if in.Status != model.IndentMatched {
		t.Fatalf("expected Matched indent, got %s", in.Status)
	}

	a, err = f.orch.Confirm(ctx, "op1", a.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if a.State != model.AllotmentConfirmed {
		t.Fatalf("expected Confirmed, got %s", a.State)
	}
	ws, _ = f.cat.Get("Kalyan Yard", "BOXN")
	if ws.CountAvailable != 36 {
		t.Fatalf("expected 36 wagons left, got %d", ws.CountAvailable)
	}
	in, _ = f.reg.Get("IN001")
	if in.Status != model.IndentAllotted {
		t.Fatalf("expected Allotted indent, got %s", in.Status)
	}
}

func TestEconomicsCopied(t *testing.T) {
	f := newFixture(t)
	f.addIndent(t, "IN001", 9)
	f.seedPool(t, "Kalyan Yard", 45)

	a, err := f.orch.Propose(context.Background(), "op1", "IN001", "Kalyan Yard", "BOXN", 9)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if !a.Economics.EmptyRunCost.Equal(decimal.NewFromInt(210000)) {
		t.Errorf("empty run cost not copied from pool: %s", a.Economics.EmptyRunCost)
	}
	if !a.Economics.PenaltyAvoided.Equal(decimal.NewFromInt(420000)) {
		t.Errorf("penalty avoided not copied from indent: %s", a.Economics.PenaltyAvoided)
	}
}

func TestDuplicateAllotmentRejected(t *testing.T) {
	f := newFixture(t)
	f.addIndent(t, "IN001", 9)
	f.seedPool(t, "Kalyan Yard", 45)
	f.seedPool(t, "Whitefield", 28)
	ctx := context.Background()

	if _, err := f.orch.Propose(ctx, "op1", "IN001", "Kalyan Yard", "BOXN", 9); err != nil {
		t.Fatalf("propose: %v", err)
	}
	_, err := f.orch.Propose(ctx, "op2", "IN001", "Whitefield", "BOXN", 9)
	var dup DuplicateAllotmentError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateAllotmentError, got %v", err)
	}
}

func TestProposeRejectsAllottedIndent(t *testing.T) {
	f := newFixture(t)
	f.addIndent(t, "IN001", 9)
	f.seedPool(t, "Kalyan Yard", 45)
	ctx := context.Background()

	a, err := f.orch.Propose(ctx, "op1", "IN001", "Kalyan Yard", "BOXN", 9)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := f.orch.Confirm(ctx, "op1", a.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	_, err = f.orch.Propose(ctx, "op2", "IN001", "Kalyan Yard", "BOXN", 9)
	var dup DuplicateAllotmentError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateAllotmentError for allotted indent, got %v", err)
	}
	if dup.AllotmentID != a.ID {
		t.Fatalf("duplicate error names allotment %s, want %s", dup.AllotmentID, a.ID)
	}
}

func TestProposeRejectsClosedIndent(t *testing.T) {
	f := newFixture(t)
	f.addIndent(t, "IN001", 9)
	f.seedPool(t, "Kalyan Yard", 45)
	ctx := context.Background()

	a, err := f.orch.Propose(ctx, "op1", "IN001", "Kalyan Yard", "BOXN", 9)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := f.orch.Confirm(ctx, "op1", a.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := f.orch.Dispatch(ctx, "op1", a.ID); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if _, err := f.orch.Complete(ctx, "op1", a.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	_, err = f.orch.Propose(ctx, "op2", "IN001", "Kalyan Yard", "BOXN", 9)
	var bad model.InvalidStateError
	if !errors.As(err, &bad) {
		t.Fatalf("expected InvalidStateError for closed indent, got %v", err)
	}
}

func TestCancelConfirmedRestoresSupplyAndReopens(t *testing.T) {
	f := newFixture(t)
	f.addIndent(t, "IN001", 9)
	f.seedPool(t, "Kalyan Yard", 45)
	ctx := context.Background()

	a, _ := f.orch.Propose(ctx, "op1", "IN001", "Kalyan Yard", "BOXN", 9)
	a, err := f.orch.Confirm(ctx, "op1", a.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	a, err = f.orch.Cancel(ctx, "op1", a.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if a.State != model.AllotmentCancelled {
		t.Fatalf("expected Cancelled, got %s", a.State)
	}
	ws, _ := f.cat.Get("Kalyan Yard", "BOXN")
	if ws.CountAvailable != 45 {
		t.Fatalf("expected exact restore to 45, got %d", ws.CountAvailable)
	}
	in, _ := f.reg.Get("IN001")
	if in.Status != model.IndentOpen {
		t.Fatalf("expected Open indent after cancel, got %s", in.Status)
	}
	// The indent is free for a new allotment.
	if _, err := f.orch.Propose(ctx, "op2", "IN001", "Kalyan Yard", "BOXN", 9); err != nil {
		t.Fatalf("re-propose after cancel: %v", err)
	}
}

func TestCancelProposedLeavesSupplyUntouched(t *testing.T) {
	f := newFixture(t)
	f.addIndent(t, "IN001", 9)
	f.seedPool(t, "Kalyan Yard", 45)
	ctx := context.Background()

	a, _ := f.orch.Propose(ctx, "op1", "IN001", "Kalyan Yard", "BOXN", 9)
	if _, err := f.orch.Cancel(ctx, "op1", a.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	ws, _ := f.cat.Get("Kalyan Yard", "BOXN")
	if ws.CountAvailable != 45 {
		t.Fatalf("cancelling a proposal must not touch supply, got %d", ws.CountAvailable)
	}
}

func TestConcurrentConfirmExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	f.addIndent(t, "IN001", 3)
	f.addIndent(t, "IN002", 4)
	f.seedPool(t, "Kalyan Yard", 5)
	ctx := context.Background()

	a1, err := f.orch.Propose(ctx, "op1", "IN001", "Kalyan Yard", "BOXN", 3)
	if err != nil {
		t.Fatalf("propose a1: %v", err)
	}
	a2, err := f.orch.Propose(ctx, "op2", "IN002", "Kalyan Yard", "BOXN", 4)
	if err != nil {
		t.Fatalf("propose a2: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{a1.ID, a2.ID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.orch.Confirm(ctx, fmt.Sprintf("op%d", i+1), id)
		}(i, id)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		var ise catalog.InsufficientSupplyError
		switch {
		case err == nil:
			won++
		case errors.As(err, &ise):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 || lost != 1 {
		t.Fatalf("expected exactly one confirmed and one refused, got %d/%d", won, lost)
	}

	// The loser was cancelled and its indent reopened.
	for i, id := range []string{a1.ID, a2.ID} {
		a, _ := f.orch.Get(id)
		if errs[i] != nil {
			if a.State != model.AllotmentCancelled {
				t.Errorf("losing allotment must be Cancelled, got %s", a.State)
			}
			in, _ := f.reg.Get(a.IndentID)
			if in.Status != model.IndentOpen {
				t.Errorf("losing indent must reopen, got %s", in.Status)
			}
		}
	}
	ws, _ := f.cat.Get("Kalyan Yard", "BOXN")
	if ws.CountAvailable < 0 {
		t.Fatalf("pool went negative: %d", ws.CountAvailable)
	}
}

func TestForwardOnlyTransitions(t *testing.T) {
	f := newFixture(t)
	f.addIndent(t, "IN001", 9)
	f.seedPool(t, "Kalyan Yard", 45)
	ctx := context.Background()

	a, _ := f.orch.Propose(ctx, "op1", "IN001", "Kalyan Yard", "BOXN", 9)

	// Dispatch before confirm is illegal.
	var ise model.InvalidStateError
	if _, err := f.orch.Dispatch(ctx, "op1", a.ID); !errors.As(err, &ise) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}

	a, _ = f.orch.Confirm(ctx, "op1", a.ID)
	a, err := f.orch.Dispatch(ctx, "op1", a.ID)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	// Dispatched allotments can no longer be cancelled.
	if _, err := f.orch.Cancel(ctx, "op1", a.ID); !errors.As(err, &ise) {
		t.Fatalf("expected InvalidStateError cancelling dispatched, got %v", err)
	}
	a, err = f.orch.Complete(ctx, "op1", a.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if a.State != model.AllotmentCompleted {
		t.Fatalf("expected Completed, got %s", a.State)
	}
	in, _ := f.reg.Get("IN001")
	if in.Status != model.IndentClosed {
		t.Fatalf("expected Closed indent, got %s", in.Status)
	}
	// Completed wagons are consumed, not returned.
	ws, _ := f.cat.Get("Kalyan Yard", "BOXN")
	if ws.CountAvailable != 36 {
		t.Fatalf("completed allotment must not restore supply, got %d", ws.CountAvailable)
	}
}

func TestEveryTransitionAudited(t *testing.T) {
	f := newFixture(t)
	f.addIndent(t, "IN001", 9)
	f.seedPool(t, "Kalyan Yard", 45)
	ctx := context.Background()

	a, _ := f.orch.Propose(ctx, "op1", "IN001", "Kalyan Yard", "BOXN", 9)
	a, _ = f.orch.Confirm(ctx, "op1", a.ID)
	a, _ = f.orch.Dispatch(ctx, "op1", a.ID)
	if _, err := f.orch.Complete(ctx, "op1", a.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	entries, err := f.store.Query(ctx, audit.Query{IndentID: "IN001"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 audit entries, got %d", len(entries))
	}
	actions := []string{"propose", "confirm", "dispatch", "complete"}
	for i, want := range actions {
		if entries[i].Action != want {
			t.Errorf("entry %d: expected %s got %s", i, want, entries[i].Action)
		}
		if entries[i].Actor != "op1" {
			t.Errorf("entry %d: expected actor op1 got %s", i, entries[i].Actor)
		}
	}
}

func TestAuditFailureAbortsTransition(t *testing.T) {
	f := newFixture(t)
	f.addIndent(t, "IN001", 9)
	f.seedPool(t, "Kalyan Yard", 45)
	ctx := context.Background()

	a, _ := f.orch.Propose(ctx, "op1", "IN001", "Kalyan Yard", "BOXN", 9)
	f.store.FailNext = fmt.Errorf("disk full")
	if _, err := f.orch.Confirm(ctx, "op1", a.ID); err == nil {
		t.Fatalf("expected confirm to fail on audit error")
	}
	// Nothing committed: still Proposed, supply untouched.
	got, _ := f.orch.Get(a.ID)
	if got.State != model.AllotmentProposed {
		t.Fatalf("expected Proposed after aborted confirm, got %s", got.State)
	}
	ws, _ := f.cat.Get("Kalyan Yard", "BOXN")
	if ws.CountAvailable != 45 {
		t.Fatalf("aborted confirm must release wagons, got %d", ws.CountAvailable)
	}
	// Retry succeeds once the store recovers.
	if _, err := f.orch.Confirm(ctx, "op1", a.ID); err != nil {
		t.Fatalf("retry confirm: %v", err)
	}
}

func TestProposeOversizedRejected(t *testing.T) {
	f := newFixture(t)
	f.addIndent(t, "IN001", 50)
	f.seedPool(t, "Kalyan Yard", 45)

	_, err := f.orch.Propose(context.Background(), "op1", "IN001", "Kalyan Yard", "BOXN", 50)
	var ise catalog.InsufficientSupplyError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InsufficientSupplyError at proposal time, got %v", err)
	}
}

func TestCancelIndentReleasesSupply(t *testing.T) {
	f := newFixture(t)
	f.addIndent(t, "IN001", 9)
	f.seedPool(t, "Kalyan Yard", 45)
	ctx := context.Background()

	a, _ := f.orch.Propose(ctx, "op1", "IN001", "Kalyan Yard", "BOXN", 9)
	if _, err := f.orch.Confirm(ctx, "op1", a.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := f.orch.CancelIndent(ctx, "op1", "IN001"); err != nil {
		t.Fatalf("cancel indent: %v", err)
	}
	ws, _ := f.cat.Get("Kalyan Yard", "BOXN")
	if ws.CountAvailable != 45 {
		t.Fatalf("expected supply restored on indent withdrawal, got %d", ws.CountAvailable)
	}
	in, _ := f.reg.Get("IN001")
	if in.Status != model.IndentClosed {
		t.Fatalf("expected Closed indent, got %s", in.Status)
	}
}

func TestRankCandidatesThroughOrchestrator(t *testing.T) {
	f := newFixture(t)
	f.addIndent(t, "IN001", 9)
	f.seedPool(t, "Kalyan Yard", 45)

	cands, err := f.orch.RankCandidates("IN001")
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(cands) != 1 || cands[0].Source.Location != "Kalyan Yard" {
		t.Fatalf("unexpected candidates: %+v", cands)
	}
	var nf model.NotFoundError
	if _, err := f.orch.RankCandidates("missing"); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestConfirmUnknownAllotment(t *testing.T) {
	f := newFixture(t)
	var nf model.NotFoundError
	if _, err := f.orch.Confirm(context.Background(), "op1", "missing"); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestCompleteRetiresReservation(t *testing.T) {
	f := newFixture(t)
	f.addIndent(t, "IN001", 9)
	f.seedPool(t, "Kalyan Yard", 45)
	ctx := context.Background()

	a, err := f.orch.Propose(ctx, "op1", "IN001", "Kalyan Yard", "BOXN", 9)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := f.orch.Confirm(ctx, "op1", a.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if n := f.cat.OpenReservations(); n != 1 {
		t.Fatalf("expected 1 open reservation after confirm, got %d", n)
	}
	if _, err := f.orch.Dispatch(ctx, "op1", a.ID); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if _, err := f.orch.Complete(ctx, "op1", a.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if n := f.cat.OpenReservations(); n != 0 {
		t.Errorf("expected 0 open reservations after complete, got %d", n)
	}
	ws, err := f.cat.Get("Kalyan Yard", "BOXN")
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	if ws.CountAvailable != 36 {
		t.Errorf("delivered wagons must stay deducted, got %d", ws.CountAvailable)
	}
}
