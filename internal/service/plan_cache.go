package service

import (
	"context"
	"errors"
	"sync"

	"github.com/rrirrirr/training-json/internal/domain"
	"github.com/rrirrirr/training-json/internal/draft"
	"github.com/rrirrirr/training-json/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrPlanNotFound  = errors.New("plan not found")
	ErrInvalidPlanID = errors.New("invalid plan id")
	ErrStoreFailed   = errors.New("store operation failed")
)

// PlanCacheService owns the cached list of plan summaries and the currently
// active (normal-mode) plan for one account. It is the sole writer of both.
// Every store call is wrapped: a failure records a cache-level error string
// and leaves prior cached state intact, so a flaky store never wipes what
// the user already sees.
type PlanCacheService struct {
	planRepo repository.PlanRepository
	drafts   draft.Store
	ownerID  primitive.ObjectID

	mu           sync.Mutex
	metadata     []domain.PlanMetadata
	fetched      bool
	activePlan   *domain.TrainingPlanDocument
	activePlanID string
	hidden       map[string]bool
	lastErr      string
}

// NewPlanCacheService creates a cache bound to one owner. The draft store
// mirrors the last-viewed plan id and the locally removed ids, so both
// survive a restart.
func NewPlanCacheService(planRepo repository.PlanRepository, drafts draft.Store, ownerID primitive.ObjectID) *PlanCacheService {
	hidden := make(map[string]bool)
	for _, id := range drafts.HiddenPlanIDs() {
		hidden[id] = true
	}
	return &PlanCacheService{
		planRepo: planRepo,
		drafts:   drafts,
		ownerID:  ownerID,
		hidden:   hidden,
	}
}

// FetchPlanMetadata queries the store for the owner's plan summaries and
// replaces the cached list, minus any locally removed plans. On store
// failure the previous list is returned unchanged and LastError is set.
func (s *PlanCacheService) FetchPlanMetadata(ctx context.Context) ([]domain.PlanMetadata, error) {
	list, err := s.planRepo.ListMetadata(ctx, s.ownerID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastErr = "failed to fetch plan list: " + err.Error()
		return s.copyMetadataLocked(), ErrStoreFailed
	}
	kept := list[:0]
	for _, m := range list {
		if !s.hidden[m.ID.Hex()] {
			kept = append(kept, m)
		}
	}
	s.metadata = kept
	s.fetched = true
	s.lastErr = ""
	return s.copyMetadataLocked(), nil
}

// Metadata returns the cached summaries without touching the store.
func (s *PlanCacheService) Metadata() []domain.PlanMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyMetadataLocked()
}

func (s *PlanCacheService) copyMetadataLocked() []domain.PlanMetadata {
	out := make([]domain.PlanMetadata, len(s.metadata))
	copy(out, s.metadata)
	return out
}

// Fetched reports whether the summary list has been loaded from the store
// at least once this session. Until it has, an id being absent from the
// cache proves nothing.
func (s *PlanCacheService) Fetched() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetched
}

// HasPlan reports whether id is present in the cached summary list. Used by
// the state machine's rehydration to detect stale draft references.
func (s *PlanCacheService) HasPlan(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.metadata {
		if m.ID.Hex() == id {
			return true
		}
	}
	return false
}

// CreatePlan inserts a new document, makes it the active plan, and adds its
// summary to the cached list. Returns the store-assigned id.
func (s *PlanCacheService) CreatePlan(ctx context.Context, doc *domain.TrainingPlanDocument) (string, error) {
	id, err := s.planRepo.Insert(ctx, s.ownerID, doc)
	if err != nil {
		s.setError("failed to create plan: " + err.Error())
		return "", ErrStoreFailed
	}

	s.SetActivePlan(doc, id.Hex())

	// Re-fetch the summary list so the new entry carries store timestamps.
	// A failed refresh is not fatal: the plan was created.
	if _, err := s.FetchPlanMetadata(ctx); err == nil {
		s.clearError()
	}
	return id.Hex(), nil
}

// UpdatePlan writes an updated document to the store. On success the cached
// entry is refreshed.
func (s *PlanCacheService) UpdatePlan(ctx context.Context, id string, doc *domain.TrainingPlanDocument) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrInvalidPlanID
	}
	if err := s.planRepo.Update(ctx, s.ownerID, oid, doc); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.setError("plan not found: " + id)
			return ErrPlanNotFound
		}
		s.setError("failed to update plan: " + err.Error())
		return ErrStoreFailed
	}
	if _, err := s.FetchPlanMetadata(ctx); err == nil {
		s.clearError()
	}
	return nil
}

// RemoveLocalPlan drops the entry from the local list only. The store
// record is never deleted by this application; the id is remembered as
// hidden so later refreshes do not resurrect it. If the removed id was the
// active plan, the active plan is cleared.
func (s *PlanCacheService) RemoveLocalPlan(id string) bool {
	s.mu.Lock()
	removed := false
	kept := s.metadata[:0]
	for _, m := range s.metadata {
		if m.ID.Hex() == id {
			removed = true
			continue
		}
		kept = append(kept, m)
	}
	s.metadata = kept
	wasActive := s.activePlanID == id
	var hiddenIDs []string
	if removed {
		s.hidden[id] = true
		hiddenIDs = make([]string, 0, len(s.hidden))
		for h := range s.hidden {
			hiddenIDs = append(hiddenIDs, h)
		}
	}
	s.mu.Unlock()

	if removed {
		s.drafts.SetHiddenPlanIDs(hiddenIDs)
	}
	if removed && wasActive {
		s.ClearActivePlan()
	}
	return removed
}

// FetchPlanByID loads a full document on demand, for viewers and editors
// that only held metadata. Lookups are by id alone: shared plan links work
// across accounts.
func (s *PlanCacheService) FetchPlanByID(ctx context.Context, id string) (*domain.StoredPlan, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidPlanID
	}
	stored, err := s.planRepo.GetByID(ctx, oid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		s.setError("failed to fetch plan: " + err.Error())
		return nil, ErrStoreFailed
	}
	return stored, nil
}

// SetActivePlan selects the normal-mode plan and mirrors its id so the next
// start can restore it.
func (s *PlanCacheService) SetActivePlan(doc *domain.TrainingPlanDocument, id string) {
	s.mu.Lock()
	s.activePlan = doc
	s.activePlanID = id
	s.mu.Unlock()
	s.drafts.SetLastViewedPlanID(id)
}

// ClearActivePlan deselects the normal-mode plan.
func (s *PlanCacheService) ClearActivePlan() {
	s.mu.Lock()
	s.activePlan = nil
	s.activePlanID = ""
	s.mu.Unlock()
	s.drafts.SetLastViewedPlanID("")
}

// ActivePlan returns the current normal-mode selection, if any.
func (s *PlanCacheService) ActivePlan() (*domain.TrainingPlanDocument, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activePlan, s.activePlanID
}

// RestoreActivePlan loads the last-viewed plan persisted by a previous
// session, if it still exists. Called once on startup after the first
// metadata fetch; a vanished plan is silently forgotten.
func (s *PlanCacheService) RestoreActivePlan(ctx context.Context) {
	id := s.drafts.LastViewedPlanID()
	if id == "" || !s.HasPlan(id) {
		if id != "" {
			s.drafts.SetLastViewedPlanID("")
		}
		return
	}
	stored, err := s.FetchPlanByID(ctx, id)
	if err != nil {
		return
	}
	s.SetActivePlan(&stored.PlanData, id)
}

// LastError returns the cache-level error string, empty when the last store
// interaction succeeded.
func (s *PlanCacheService) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *PlanCacheService) setError(msg string) {
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()
}

func (s *PlanCacheService) clearError() {
	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()
}
