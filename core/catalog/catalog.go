package catalog

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/railops/wagonmatch/core/model"
)

// InsufficientSupplyError is returned when a reservation asks for more
// wagons than a pool currently holds.
type InsufficientSupplyError struct {
	Location  string
	WagonType string
	Requested int
	Available int
}

func (e InsufficientSupplyError) Error() string {
	return fmt.Sprintf("pool %s/%s holds %d wagons, %d requested",
		e.Location, e.WagonType, e.Available, e.Requested)
}

// Reservation is the token handed out by a successful reserve. Release
// restores exactly the reserved count.
type Reservation struct {
	Token     string
	Location  string
	WagonType string
	Count     int
}

type poolKey struct {
	location  string
	wagonType string
}

// Catalog owns the wagon supply. Reserve is a single check-and-decrement
// under the catalog lock, so two overlapping reservations can never
// oversubscribe a pool.
type Catalog struct {
	mu           sync.RWMutex
	pools        map[poolKey]model.WagonSource
	reservations map[string]Reservation
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{
		pools:        make(map[poolKey]model.WagonSource),
		reservations: make(map[string]Reservation),
	}
}

// Seed inserts or replaces the pool for (location, wagonType). Yard
// inventory refreshes go through here.
func (c *Catalog) Seed(ws model.WagonSource) error {
	if err := ws.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.pools[poolKey{ws.Location, ws.WagonType}] = ws
	c.mu.Unlock()
	return nil
}

// Get returns the pool at (location, wagonType).
func (c *Catalog) Get(location, wagonType string) (model.WagonSource, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ws, ok := c.pools[poolKey{location, wagonType}]
	if !ok {
		return model.WagonSource{}, model.NotFoundError{Kind: "wagon pool", ID: location + "/" + wagonType}
	}
	return ws, nil
}

// ListAvailable returns pools with wagons on hand, optionally filtered by
// wagon type. Ordered by location then type for stable output.
func (c *Catalog) ListAvailable(wagonType string) []model.WagonSource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.WagonSource, 0, len(c.pools))
	for _, ws := range c.pools {
		if ws.CountAvailable == 0 {
			continue
		}
		if wagonType != "" && ws.WagonType != wagonType {
			continue
		}
		out = append(out, ws)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Location != out[j].Location {
			return out[i].Location < out[j].Location
		}
		return out[i].WagonType < out[j].WagonType
	})
	return out
}

// Snapshot returns every pool, including empty ones.
func (c *Catalog) Snapshot() []model.WagonSource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.WagonSource, 0, len(c.pools))
	for _, ws := range c.pools {
		out = append(out, ws)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Location != out[j].Location {
			return out[i].Location < out[j].Location
		}
		return out[i].WagonType < out[j].WagonType
	})
	return out
}

// Reserve atomically decrements the pool by count and returns a token.
// The check and the decrement execute under one lock acquisition; of two
// overlapping reservations whose sum exceeds the pool, exactly one
// receives InsufficientSupplyError.
func (c *Catalog) Reserve(location, wagonType string, count int) (Reservation, error) {
	if count <= 0 {
		return Reservation{}, fmt.Errorf("reservation count must be positive, got %d", count)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := poolKey{location, wagonType}
	ws, ok := c.pools[key]
	if !ok {
		return Reservation{}, model.NotFoundError{Kind: "wagon pool", ID: location + "/" + wagonType}
	}
	if count > ws.CountAvailable {
		return Reservation{}, InsufficientSupplyError{
			Location:  location,
			WagonType: wagonType,
			Requested: count,
			Available: ws.CountAvailable,
		}
	}
	ws.CountAvailable -= count
	c.pools[key] = ws
	res := Reservation{
		Token:     uuid.NewString(),
		Location:  location,
		WagonType: wagonType,
		Count:     count,
	}
	c.reservations[res.Token] = res
	return res, nil
}

// Release restores the count held by the reservation token. Unknown
// tokens fail with NotFoundError; releasing twice is therefore caught.
func (c *Catalog) Release(token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.reservations[token]
	if !ok {
		return model.NotFoundError{Kind: "reservation", ID: token}
	}
	delete(c.reservations, token)
	key := poolKey{res.Location, res.WagonType}
	ws, ok := c.pools[key]
	if !ok {
		// Pool removed after reservation; nothing to restore into.
		return model.NotFoundError{Kind: "wagon pool", ID: res.Location + "/" + res.WagonType}
	}
	ws.CountAvailable += res.Count
	c.pools[key] = ws
	return nil
}

// Consume retires a reservation whose wagons have been delivered. The
// count is not restored; the entry is removed so tokens do not
// accumulate over the life of the service. Unknown tokens fail with
// NotFoundError.
func (c *Catalog) Consume(token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.reservations[token]; !ok {
		return model.NotFoundError{Kind: "reservation", ID: token}
	}
	delete(c.reservations, token)
	return nil
}

// OpenReservations reports the number of outstanding reservation tokens.
func (c *Catalog) OpenReservations() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.reservations)
}
