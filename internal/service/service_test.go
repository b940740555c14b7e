package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rrirrirr/training-json/internal/domain"
	"github.com/rrirrirr/training-json/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakePlanRepo is an in-memory PlanRepository. Setting failWith makes every
// store call fail, for exercising the non-destructive failure paths.
type fakePlanRepo struct {
	mu       sync.Mutex
	plans    map[primitive.ObjectID]*domain.StoredPlan
	order    []primitive.ObjectID // insertion order, newest listed first
	failWith error
}

func newFakePlanRepo() *fakePlanRepo {
	return &fakePlanRepo{plans: make(map[primitive.ObjectID]*domain.StoredPlan)}
}

func (f *fakePlanRepo) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith = err
}

func (f *fakePlanRepo) Insert(ctx context.Context, ownerID primitive.ObjectID, doc *domain.TrainingPlanDocument) (primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return primitive.NilObjectID, f.failWith
	}
	copied := *doc
	now := time.Now().UTC()
	stored := &domain.StoredPlan{
		ID:        primitive.NewObjectID(),
		OwnerID:   ownerID,
		PlanData:  copied,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.plans[stored.ID] = stored
	f.order = append([]primitive.ObjectID{stored.ID}, f.order...)
	return stored.ID, nil
}

func (f *fakePlanRepo) Update(ctx context.Context, ownerID, id primitive.ObjectID, doc *domain.TrainingPlanDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	stored, ok := f.plans[id]
	if !ok || stored.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	stored.PlanData = *doc
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakePlanRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.StoredPlan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	stored, ok := f.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *stored
	return &copied, nil
}

func (f *fakePlanRepo) ListMetadata(ctx context.Context, ownerID primitive.ObjectID) ([]domain.PlanMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []domain.PlanMetadata
	for _, id := range f.order {
		stored := f.plans[id]
		if stored.OwnerID != ownerID {
			continue
		}
		out = append(out, domain.PlanMetadata{
			ID:        stored.ID,
			Name:      stored.PlanData.Metadata.PlanName,
			CreatedAt: stored.CreatedAt,
			UpdatedAt: stored.UpdatedAt,
		})
	}
	return out, nil
}

var errStoreDown = errors.New("store unreachable")

// testPlan builds a minimal valid document.
func testPlan(name string) *domain.TrainingPlanDocument {
	return &domain.TrainingPlanDocument{
		Metadata: domain.PlanDocumentMetadata{PlanName: name},
		ExerciseDefinitions: []domain.ExerciseDefinition{
			{ID: "squat", Name: "Squat"},
		},
		Weeks: []domain.Week{
			{
				WeekNumber: 1,
				Sessions: []domain.Session{
					{
						SessionName: "Day 1",
						Exercises: []domain.ExerciseInstance{
							{ExerciseID: "squat", Sets: "3", Reps: "5", Load: "100 kg"},
						},
					},
				},
			},
		},
		MonthBlocks: []domain.MonthBlock{
			{ID: 1, Name: "Month 1", Weeks: []int{1}},
		},
	}
}
