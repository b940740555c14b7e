package mongo

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/rrirrirr/training-json/internal/domain"
	"github.com/rrirrirr/training-json/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const planCollectionName = "plans"

// mongoPlanRepository implements repository.PlanRepository
type mongoPlanRepository struct {
	collection *mongo.Collection
}

// NewMongoPlanRepository creates a new plan repository.
func NewMongoPlanRepository(db *mongo.Database) repository.PlanRepository {
	return &mongoPlanRepository{
		collection: db.Collection(planCollectionName),
	}
}

// Insert stores a new plan document and returns the store-assigned id.
func (r *mongoPlanRepository) Insert(ctx context.Context, ownerID primitive.ObjectID, doc *domain.TrainingPlanDocument) (primitive.ObjectID, error) {
	if ownerID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("plan requires an owner id")
	}
	if doc == nil {
		return primitive.NilObjectID, errors.New("plan document is required")
	}
	now := time.Now().UTC()
	stored := domain.StoredPlan{
		ID:        primitive.NewObjectID(),
		OwnerID:   ownerID,
		PlanData:  *doc,
		CreatedAt: now,
		UpdatedAt: now,
	}

	result, err := r.collection.InsertOne(ctx, stored)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted plan ID")
	}
	return insertedID, nil
}

// Update replaces the plan_data of an existing record. The filter includes
// the owner so one account can never overwrite another's plan.
func (r *mongoPlanRepository) Update(ctx context.Context, ownerID, id primitive.ObjectID, doc *domain.TrainingPlanDocument) error {
	if id == primitive.NilObjectID {
		return errors.New("plan ID is required for update")
	}
	if doc == nil {
		return errors.New("plan document is required for update")
	}

	filter := bson.M{"_id": id, "ownerId": ownerID}
	// created_at and ownerId are immutable; only the document and the
	// update timestamp change.
	updateDoc := bson.M{
		"$set": bson.M{
			"plan_data":  doc,
			"updated_at": time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, updateDoc)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound // No such plan, or it belongs to someone else
	}
	// result.ModifiedCount could be 0 if data was the same, which is not an error.
	return nil
}

// GetByID retrieves a single stored plan by its ID.
func (r *mongoPlanRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.StoredPlan, error) {
	var stored domain.StoredPlan
	filter := bson.M{"_id": id}
	err := r.collection.FindOne(ctx, filter).Decode(&stored)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &stored, nil
}

// ListMetadata projects id + plan name + timestamps for the owner's plans,
// newest created first. Full documents are never pulled for listings.
func (r *mongoPlanRepository) ListMetadata(ctx context.Context, ownerID primitive.ObjectID) ([]domain.PlanMetadata, error) {
	filter := bson.M{"ownerId": ownerID}
	findOptions := options.Find().
		SetProjection(bson.M{
			"plan_data.metadata.planName": 1,
			"created_at":                  1,
			"updated_at":                  1,
		}).
		SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	// Decode into the stored shape, then flatten to the summary projection.
	var rows []struct {
		ID       primitive.ObjectID `bson:"_id"`
		PlanData struct {
			Metadata struct {
				PlanName string `bson:"planName"`
			} `bson:"metadata"`
		} `bson:"plan_data"`
		CreatedAt time.Time `bson:"created_at"`
		UpdatedAt time.Time `bson:"updated_at"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}

	metadata := make([]domain.PlanMetadata, len(rows))
	for i, row := range rows {
		metadata[i] = domain.PlanMetadata{
			ID:        row.ID,
			Name:      row.PlanData.Metadata.PlanName,
			CreatedAt: row.CreatedAt,
			UpdatedAt: row.UpdatedAt,
		}
	}
	// Return empty slice if no plans found (not an error)
	return metadata, nil
}

// EnsurePlanIndexes creates necessary indexes. Call during startup.
func EnsurePlanIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// Compound index for the main query pattern: listing an owner's
			// plans by recency.
			Keys:    bson.D{{Key: "ownerId", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
