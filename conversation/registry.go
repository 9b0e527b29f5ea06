package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"clementus360/clinic-assistant/config"
)

const (
	registrySweepInterval = 5 * time.Minute
	// RegistryIdleTimeout is how long a Store may go unused before Run
	// drops it. The next request for that user rebuilds it from the
	// durable store.
	RegistryIdleTimeout = 30 * time.Minute
)

// Opener builds the durable store for a user.
type Opener func(userID string) (DurableStore, error)

// Registry holds one Store per signed-in user. A Store is built on the
// user's first request and lives until Forget or until it sits idle past
// the sweep timeout.
type Registry struct {
	open Opener
	now  func() time.Time

	mu         sync.Mutex
	stores     map[string]*Store
	lastAccess map[string]time.Time
}

func NewRegistry(open Opener) *Registry {
	return &Registry{
		open:       open,
		now:        time.Now,
		stores:     make(map[string]*Store),
		lastAccess: make(map[string]time.Time),
	}
}

// Get returns the user's Store, creating it on first use.
func (r *Registry) Get(userID string) (*Store, error) {
	if userID == "" {
		return nil, fmt.Errorf("missing user ID")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if store, ok := r.stores[userID]; ok {
		r.lastAccess[userID] = r.now()
		return store, nil
	}
	durable, err := r.open(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to open durable store: %w", err)
	}
	store := NewStore(userID, durable)
	r.stores[userID] = store
	r.lastAccess[userID] = r.now()
	return store, nil
}

// Forget drops the user's Store. It reports whether one existed.
func (r *Registry) Forget(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.stores[userID]
	delete(r.stores, userID)
	delete(r.lastAccess, userID)
	return ok
}

// Sweep drops stores not requested within maxIdle and returns how many
// were dropped. Stores with a turn in flight are kept.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxIdle)
	removed := 0
	for userID, last := range r.lastAccess {
		if !last.Before(cutoff) || r.stores[userID].busy() {
			continue
		}
		delete(r.stores, userID)
		delete(r.lastAccess, userID)
		removed++
	}
	return removed
}

// Run sweeps idle stores until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(registrySweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(RegistryIdleTimeout); n > 0 {
				config.Logger.Debugf("Dropped %d idle session stores", n)
			}
		}
	}
}

// Len returns the number of live stores.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}
