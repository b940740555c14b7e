package repository

import (
	"context" // Standard for request-scoped deadlines, cancellation signals, etc.

	"github.com/rrirrirr/training-json/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive" // For using ObjectIDs
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrUpdateFailed = RepositoryError("update failed")
	ErrDuplicate    = RepositoryError("duplicate key")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with account data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
}

// PlanRepository defines the interface for interacting with stored plan
// documents. Listings are owner-scoped summary projections (no full
// documents); full documents are fetched individually on demand.
//
// There is deliberately no Delete: the application never removes a store
// record, "delete" only drops the entry from the local metadata cache.
type PlanRepository interface {
	// Insert stores a new plan document and returns the store-assigned id.
	Insert(ctx context.Context, ownerID primitive.ObjectID, doc *domain.TrainingPlanDocument) (primitive.ObjectID, error)
	// Update replaces the plan_data of an existing record owned by ownerID.
	Update(ctx context.Context, ownerID, id primitive.ObjectID, doc *domain.TrainingPlanDocument) error
	// GetByID fetches a full stored document.
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.StoredPlan, error)
	// ListMetadata projects id + plan name + timestamps for every plan the
	// owner has, newest created first.
	ListMetadata(ctx context.Context, ownerID primitive.ObjectID) ([]domain.PlanMetadata, error)
}
