package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rrirrirr/training-json/internal/repository"
	"github.com/rrirrirr/training-json/internal/storage"

	"github.com/google/uuid" // For generating unique identifiers for snapshot keys
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrShareFailed = errors.New("failed to create plan snapshot")

// ShareService exports a frozen JSON snapshot of a plan to object storage
// and returns a time-limited link. Viewers open the snapshot without owning
// the plan; "save to my plans" later copies it into their own collection.
type ShareService interface {
	SharePlan(ctx context.Context, planID string) (url string, err error)
}

type shareService struct {
	planRepo    repository.PlanRepository
	fileStorage storage.FileStorage
}

func NewShareService(planRepo repository.PlanRepository, fileStorage storage.FileStorage) ShareService {
	return &shareService{
		planRepo:    planRepo,
		fileStorage: fileStorage,
	}
}

// SharePlan uploads the plan's current document under a unique key and
// presigns a download URL for it. The snapshot is intentionally detached:
// later edits to the plan do not change what the link serves.
func (s *shareService) SharePlan(ctx context.Context, planID string) (string, error) {
	oid, err := primitive.ObjectIDFromHex(planID)
	if err != nil {
		return "", ErrInvalidPlanID
	}
	stored, err := s.planRepo.GetByID(ctx, oid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrPlanNotFound
		}
		return "", ErrStoreFailed
	}

	raw, err := json.Marshal(stored.PlanData)
	if err != nil {
		return "", ErrShareFailed
	}

	uniqueID := uuid.NewString()
	objectKey := fmt.Sprintf("shares/%s/%s.json", planID, uniqueID)

	if err := s.fileStorage.UploadObject(ctx, objectKey, "application/json", raw); err != nil {
		return "", ErrShareFailed
	}

	url, err := s.fileStorage.GeneratePresignedDownloadURL(ctx, objectKey, storage.DefaultPresignedURLExpiry)
	if err != nil {
		return "", ErrShareFailed
	}
	return url, nil
}
