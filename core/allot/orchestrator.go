// Package allot drives the allotment lifecycle: Proposed -> Confirmed ->
// Dispatched -> Completed, with Cancelled reachable from Proposed or
// Confirmed. Supply is reserved at confirm time, not at proposal, so an
// operator always sees the consequence of an allotment before it becomes
// irreversible.
package allot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/railops/wagonmatch/core/audit"
	"github.com/railops/wagonmatch/core/catalog"
	"github.com/railops/wagonmatch/core/logger"
	"github.com/railops/wagonmatch/core/match"
	"github.com/railops/wagonmatch/core/metrics"
	"github.com/railops/wagonmatch/core/model"
	"github.com/railops/wagonmatch/core/registry"
	"github.com/railops/wagonmatch/internal/eventbus"
)

// Orchestrator owns all allotments and enforces the at-most-one-active
// allotment per indent invariant. Propose and Confirm are serialized per
// indent; every committed transition appends exactly one audit entry
// before it becomes visible.
type Orchestrator struct {
	registry *registry.Registry
	catalog  *catalog.Catalog
	matcher  *match.Matcher
	store    audit.Store
	sink     metrics.Sink
	bus      eventbus.EventBus[metrics.AllotmentEvent]
	log      logger.Logger

	mu             sync.Mutex
	allotments     map[string]model.Allotment
	activeByIndent map[string]string
	reservations   map[string]string
	indentLocks    map[string]*sync.Mutex
}

// New creates an orchestrator. Sink and bus may be nil; log must not be.
func New(reg *registry.Registry, cat *catalog.Catalog, m *match.Matcher, store audit.Store, sink metrics.Sink, bus eventbus.EventBus[metrics.AllotmentEvent], log logger.Logger) *Orchestrator {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Orchestrator{
		registry:       reg,
		catalog:        cat,
		matcher:        m,
		store:          store,
		sink:           sink,
		bus:            bus,
		log:            log,
		allotments:     make(map[string]model.Allotment),
		activeByIndent: make(map[string]string),
		reservations:   make(map[string]string),
		indentLocks:    make(map[string]*sync.Mutex),
	}
}

// lockIndent serializes propose/confirm/cancel per indent id.
func (o *Orchestrator) lockIndent(id string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.indentLocks[id]
	if !ok {
		l = &sync.Mutex{}
		o.indentLocks[id] = l
	}
	return l
}

func (o *Orchestrator) record(ctx context.Context, actor, action, indentID, location, summary string) error {
	e := audit.Entry{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Actor:     actor,
		Action:    action,
		IndentID:  indentID,
		Location:  location,
		Summary:   summary,
	}
	if err := o.store.Append(ctx, e); err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

func (o *Orchestrator) publish(a model.Allotment, actor string) {
	ev := metrics.AllotmentEvent{
		AllotmentID: a.ID,
		IndentID:    a.IndentID,
		Location:    a.Location,
		WagonType:   a.WagonType,
		Count:       a.CountAssigned,
		State:       a.State,
		Actor:       actor,
		Time:        time.Now(),
	}
	if err := o.sink.RecordAllotment(ev); err != nil {
		o.log.Warnf("record allotment metric: %v", err)
	}
	if o.bus != nil {
		o.bus.Publish(ev)
	}
}

// RankCandidates runs the matching engine for the indent against the
// current catalog. The snapshot is taken once; ranking itself is pure.
func (o *Orchestrator) RankCandidates(indentID string) ([]match.ScoredCandidate, error) {
	in, err := o.registry.Get(indentID)
	if err != nil {
		return nil, err
	}
	cands := o.matcher.RankCandidates(in, o.catalog.ListAvailable(""))
	top := 0.0
	if len(cands) > 0 {
		top = cands[0].Score
	}
	if err := o.sink.RecordMatch(metrics.MatchEvent{IndentID: indentID, Candidates: len(cands), TopScore: top, Time: time.Now()}); err != nil {
		o.log.Warnf("record match metric: %v", err)
	}
	return cands, nil
}

// Propose creates a Proposed allotment pairing the indent with the wagon
// pool at (location, wagonType). The indent must be Open or Matched and
// have no other active allotment; the requested count must not exceed
// the pool at proposal time. Supply is not reserved yet. The wagon type
// is taken as given so operators can allot substitute types manually.
func (o *Orchestrator) Propose(ctx context.Context, actor, indentID, location, wagonType string, count int) (model.Allotment, error) {
	if count <= 0 {
		return model.Allotment{}, fmt.Errorf("allotment count must be positive, got %d", count)
	}
	l := o.lockIndent(indentID)
	l.Lock()
	defer l.Unlock()

	in, err := o.registry.Get(indentID)
	if err != nil {
		return model.Allotment{}, err
	}
	// An indent with an active allotment gets the duplicate error even
	// when it is already Allotted; InvalidStateError is reserved for
	// indents no allotment could ever attach to, such as Closed ones.
	o.mu.Lock()
	if activeID, ok := o.activeByIndent[indentID]; ok {
		o.mu.Unlock()
		return model.Allotment{}, DuplicateAllotmentError{IndentID: indentID, AllotmentID: activeID}
	}
	o.mu.Unlock()
	if !in.Allottable() {
		return model.Allotment{}, model.InvalidStateError{Kind: "indent", ID: indentID, State: in.Status.String(), Op: "propose allotment for"}
	}

	pool, err := o.catalog.Get(location, wagonType)
	if err != nil {
		return model.Allotment{}, err
	}
	if count > pool.CountAvailable {
		return model.Allotment{}, catalog.InsufficientSupplyError{
			Location:  location,
			WagonType: wagonType,
			Requested: count,
			Available: pool.CountAvailable,
		}
	}

	now := time.Now()
	a := model.Allotment{
		ID:            uuid.NewString(),
		IndentID:      indentID,
		Location:      location,
		WagonType:     wagonType,
		CountAssigned: count,
		Economics: model.Economics{
			EmptyRunCost:   pool.EmptyRunCost,
			PenaltyAvoided: in.PenaltyRisk,
		},
		State:     model.AllotmentProposed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	summary := fmt.Sprintf("proposed %d x %s from %s for %s", count, wagonType, location, indentID)
	if err := o.record(ctx, actor, "propose", indentID, location, summary); err != nil {
		return model.Allotment{}, err
	}
	if err := o.registry.MarkMatched(indentID); err != nil {
		return model.Allotment{}, err
	}
	o.mu.Lock()
	o.allotments[a.ID] = a
	o.activeByIndent[indentID] = a.ID
	o.mu.Unlock()
	o.publish(a, actor)
	o.log.Infof("allotment %s proposed: %s", a.ID, summary)
	return a, nil
}

// Confirm reserves the supply behind a Proposed allotment. On success the
// allotment moves to Confirmed and the indent to Allotted. If the pool
// was drained by a concurrent confirmation, the allotment is cancelled,
// the indent reopened and the supply error surfaced; the caller decides
// whether to re-propose elsewhere.
func (o *Orchestrator) Confirm(ctx context.Context, actor, allotmentID string) (model.Allotment, error) {
	a, err := o.getAllotment(allotmentID)
	if err != nil {
		return model.Allotment{}, err
	}
	l := o.lockIndent(a.IndentID)
	l.Lock()
	defer l.Unlock()

	a, err = o.getAllotment(allotmentID)
	if err != nil {
		return model.Allotment{}, err
	}
	if a.State != model.AllotmentProposed {
		return model.Allotment{}, model.InvalidStateError{Kind: "allotment", ID: allotmentID, State: a.State.String(), Op: "confirm"}
	}

	res, err := o.catalog.Reserve(a.Location, a.WagonType, a.CountAssigned)
	if rerr := o.sink.RecordReservation(metrics.ReservationEvent{
		Location:  a.Location,
		WagonType: a.WagonType,
		Count:     a.CountAssigned,
		Granted:   err == nil,
		Time:      time.Now(),
	}); rerr != nil {
		o.log.Warnf("record reservation metric: %v", rerr)
	}
	var supplyErr catalog.InsufficientSupplyError
	if errors.As(err, &supplyErr) {
		summary := fmt.Sprintf("confirmation lost supply race: %v", err)
		if aerr := o.record(ctx, actor, "confirm_failed", a.IndentID, a.Location, summary); aerr != nil {
			return model.Allotment{}, aerr
		}
		a = o.commit(a, model.AllotmentCancelled, "")
		if rerr := o.registry.Reopen(a.IndentID); rerr != nil {
			o.log.Errorf("reopen indent %s: %v", a.IndentID, rerr)
		}
		o.publish(a, actor)
		return a, err
	}
	if err != nil {
		return model.Allotment{}, err
	}

	summary := fmt.Sprintf("confirmed %d x %s from %s", a.CountAssigned, a.WagonType, a.Location)
	if err := o.record(ctx, actor, "confirm", a.IndentID, a.Location, summary); err != nil {
		// Transition is not committed without its audit entry; give the
		// wagons back before failing.
		if relErr := o.catalog.Release(res.Token); relErr != nil {
			o.log.Errorf("release after audit failure: %v", relErr)
		}
		return model.Allotment{}, err
	}
	a = o.commit(a, model.AllotmentConfirmed, res.Token)
	if err := o.registry.MarkAllotted(a.IndentID); err != nil {
		o.log.Errorf("mark indent %s allotted: %v", a.IndentID, err)
	}
	o.publish(a, actor)
	o.log.Infof("allotment %s confirmed: %s", a.ID, summary)
	return a, nil
}

// Dispatch moves a Confirmed allotment to Dispatched. No supply side
// effects; the wagons were reserved at confirm time.
func (o *Orchestrator) Dispatch(ctx context.Context, actor, allotmentID string) (model.Allotment, error) {
	return o.forward(ctx, actor, allotmentID, model.AllotmentConfirmed, model.AllotmentDispatched, "dispatch")
}

// Complete moves a Dispatched allotment to Completed and closes the
// indent.
func (o *Orchestrator) Complete(ctx context.Context, actor, allotmentID string) (model.Allotment, error) {
	a, err := o.forward(ctx, actor, allotmentID, model.AllotmentDispatched, model.AllotmentCompleted, "complete")
	if err != nil {
		return a, err
	}
	if cerr := o.registry.Close(a.IndentID); cerr != nil {
		o.log.Errorf("close indent %s: %v", a.IndentID, cerr)
	}
	return a, nil
}

func (o *Orchestrator) forward(ctx context.Context, actor, allotmentID string, from, to model.AllotmentState, op string) (model.Allotment, error) {
	a, err := o.getAllotment(allotmentID)
	if err != nil {
		return model.Allotment{}, err
	}
	l := o.lockIndent(a.IndentID)
	l.Lock()
	defer l.Unlock()

	a, err = o.getAllotment(allotmentID)
	if err != nil {
		return model.Allotment{}, err
	}
	if a.State != from {
		return model.Allotment{}, model.InvalidStateError{Kind: "allotment", ID: allotmentID, State: a.State.String(), Op: op}
	}
	summary := fmt.Sprintf("%s %d x %s from %s", to, a.CountAssigned, a.WagonType, a.Location)
	if err := o.record(ctx, actor, op, a.IndentID, a.Location, summary); err != nil {
		return model.Allotment{}, err
	}
	token := ""
	o.mu.Lock()
	token = o.reservations[a.ID]
	o.mu.Unlock()
	a = o.commit(a, to, token)
	if to == model.AllotmentCompleted && token != "" {
		// The wagons left the yard; retire the reservation without
		// restoring the count.
		if cerr := o.catalog.Consume(token); cerr != nil {
			o.log.Errorf("consume reservation for allotment %s: %v", a.ID, cerr)
		}
	}
	o.publish(a, actor)
	return a, nil
}

// Cancel aborts an allotment. From Proposed there is nothing to undo;
// from Confirmed the reserved wagons are released before the
// cancellation is acknowledged. The indent reverts to Open either way.
func (o *Orchestrator) Cancel(ctx context.Context, actor, allotmentID string) (model.Allotment, error) {
	a, err := o.getAllotment(allotmentID)
	if err != nil {
		return model.Allotment{}, err
	}
	l := o.lockIndent(a.IndentID)
	l.Lock()
	defer l.Unlock()
	return o.cancelLocked(ctx, actor, allotmentID)
}

func (o *Orchestrator) cancelLocked(ctx context.Context, actor, allotmentID string) (model.Allotment, error) {
	a, err := o.getAllotment(allotmentID)
	if err != nil {
		return model.Allotment{}, err
	}
	if a.State != model.AllotmentProposed && a.State != model.AllotmentConfirmed {
		return model.Allotment{}, model.InvalidStateError{Kind: "allotment", ID: allotmentID, State: a.State.String(), Op: "cancel"}
	}
	if a.State == model.AllotmentConfirmed {
		o.mu.Lock()
		token := o.reservations[a.ID]
		o.mu.Unlock()
		if err := o.catalog.Release(token); err != nil {
			return model.Allotment{}, fmt.Errorf("release reservation: %w", err)
		}
	}
	summary := fmt.Sprintf("cancelled %s allotment of %d x %s from %s", a.State, a.CountAssigned, a.WagonType, a.Location)
	if err := o.record(ctx, actor, "cancel", a.IndentID, a.Location, summary); err != nil {
		return model.Allotment{}, err
	}
	a = o.commit(a, model.AllotmentCancelled, "")
	if err := o.registry.Reopen(a.IndentID); err != nil {
		o.log.Errorf("reopen indent %s: %v", a.IndentID, err)
	}
	o.publish(a, actor)
	o.log.Infof("allotment %s cancelled", a.ID)
	return a, nil
}

// CancelIndent withdraws demand. An active Proposed or Confirmed
// allotment is cancelled first, releasing any reserved supply; a
// Dispatched allotment blocks the withdrawal.
func (o *Orchestrator) CancelIndent(ctx context.Context, actor, indentID string) error {
	l := o.lockIndent(indentID)
	l.Lock()
	defer l.Unlock()

	o.mu.Lock()
	activeID, hasActive := o.activeByIndent[indentID]
	o.mu.Unlock()
	if hasActive {
		if _, err := o.cancelLocked(ctx, actor, activeID); err != nil {
			return err
		}
	}
	if err := o.record(ctx, actor, "cancel_indent", indentID, "", "indent withdrawn"); err != nil {
		return err
	}
	return o.registry.Cancel(indentID)
}

// commit applies the state change and bookkeeping under the orchestrator
// lock. A reservation token is kept for Confirmed and Dispatched states
// and dropped otherwise; terminal states clear the active marker.
func (o *Orchestrator) commit(a model.Allotment, to model.AllotmentState, token string) model.Allotment {
	o.mu.Lock()
	defer o.mu.Unlock()
	a.State = to
	a.UpdatedAt = time.Now()
	o.allotments[a.ID] = a
	if token != "" && to.Active() {
		o.reservations[a.ID] = token
	} else {
		delete(o.reservations, a.ID)
	}
	if !to.Active() {
		if o.activeByIndent[a.IndentID] == a.ID {
			delete(o.activeByIndent, a.IndentID)
		}
	}
	return a
}

func (o *Orchestrator) getAllotment(id string) (model.Allotment, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	a, ok := o.allotments[id]
	if !ok {
		return model.Allotment{}, model.NotFoundError{Kind: "allotment", ID: id}
	}
	return a, nil
}

// Get returns the allotment with the given id.
func (o *Orchestrator) Get(id string) (model.Allotment, error) {
	return o.getAllotment(id)
}

// List returns all allotments ordered by creation time.
func (o *Orchestrator) List() []model.Allotment {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]model.Allotment, 0, len(o.allotments))
	for _, a := range o.allotments {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
