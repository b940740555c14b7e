package service

import (
	"context"
	"log"
	"path/filepath"
	"sync"

	"github.com/rrirrirr/training-json/internal/draft"
	"github.com/rrirrirr/training-json/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserState bundles one account's state containers: its draft store, plan
// cache, mode state machine, route tracker, and dialog flags. Each account
// behaves like its own single-user app; there is no coordination between
// two sessions of the same account (accepted limitation).
type UserState struct {
	Drafts draft.Store
	Cache  *PlanCacheService
	Mode   *PlanModeService
	UI     *UIStateService
	Routes *RouteTracker
}

// StateRegistry hands out per-account UserState instances, creating them
// lazily on first use. The state containers are constructor-injected rather
// than process-wide singletons, so tests can build independent instances.
type StateRegistry struct {
	planRepo repository.PlanRepository
	stateDir string

	mu    sync.Mutex
	users map[string]*UserState
}

func NewStateRegistry(planRepo repository.PlanRepository, stateDir string) *StateRegistry {
	return &StateRegistry{
		planRepo: planRepo,
		stateDir: stateDir,
		users:    make(map[string]*UserState),
	}
}

// ForUser returns the account's state, building and rehydrating it on first
// access: load the metadata cache, restore the last active plan, then
// restore any persisted draft (which may self-heal if stale).
func (r *StateRegistry) ForUser(ctx context.Context, userID primitive.ObjectID) *UserState {
	key := userID.Hex()

	r.mu.Lock()
	if st, ok := r.users[key]; ok {
		r.mu.Unlock()
		return st
	}
	r.mu.Unlock()

	drafts := draft.Open(filepath.Join(r.stateDir, key+".db"))
	cache := NewPlanCacheService(r.planRepo, drafts, userID)
	routes := NewRouteTracker()
	mode := NewPlanModeService(drafts, cache, routes)

	st := &UserState{
		Drafts: drafts,
		Cache:  cache,
		Mode:   mode,
		UI:     NewUIStateService(mode, cache),
		Routes: routes,
	}

	// First fetch may fail against a flaky store; rehydration then treats
	// every persisted originalPlanId as stale, which errs toward wiping a
	// draft rather than restoring one against an unknown plan list.
	if _, err := cache.FetchPlanMetadata(ctx); err != nil {
		log.Printf("registry: initial metadata fetch for %s failed: %s", key, cache.LastError())
	}
	cache.RestoreActivePlan(ctx)
	mode.Rehydrate()

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another request may have built the same state concurrently; keep the
	// first one registered.
	if existing, ok := r.users[key]; ok {
		_ = st.Drafts.Close()
		return existing
	}
	r.users[key] = st
	return st
}

// Close releases every account's draft store.
func (r *StateRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, st := range r.users {
		if err := st.Drafts.Close(); err != nil {
			log.Printf("registry: closing draft store for %s: %v", key, err)
		}
	}
	r.users = make(map[string]*UserState)
}
