package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TrainingPlanDocument is the normalized T-JSON document this application
// visualizes, imports, edits, and persists. It is stored wholesale under the
// plan_data field of a StoredPlan; the bson tags keep nested projections
// (e.g. plan_data.metadata.planName) addressable from the repository layer.
type TrainingPlanDocument struct {
	Metadata            PlanDocumentMetadata `bson:"metadata" json:"metadata"`
	ExerciseDefinitions []ExerciseDefinition `bson:"exerciseDefinitions" json:"exerciseDefinitions"`
	Weeks               []Week               `bson:"weeks" json:"weeks"`
	MonthBlocks         []MonthBlock         `bson:"monthBlocks" json:"monthBlocks"`
	WeekTypes           []WeekType           `bson:"weekTypes,omitempty" json:"weekTypes,omitempty"`
	SessionTypes        []SessionType        `bson:"sessionTypes,omitempty" json:"sessionTypes,omitempty"`
	Blocks              []Block              `bson:"blocks,omitempty" json:"blocks,omitempty"`
}

// EmptyPlanDocument returns a well-formed document with no content, the
// starting point for a brand-new plan.
func EmptyPlanDocument() *TrainingPlanDocument {
	return &TrainingPlanDocument{
		ExerciseDefinitions: []ExerciseDefinition{},
		Weeks:               []Week{},
		MonthBlocks:         []MonthBlock{},
	}
}

// PlanDocumentMetadata describes the plan itself rather than its contents.
// PlanName is the only field callers are required to fill in; CreationDate is
// normalized to an ISO-8601 date on save when missing.
type PlanDocumentMetadata struct {
	PlanName     string `bson:"planName" json:"planName"`
	CreationDate string `bson:"creationDate,omitempty" json:"creationDate,omitempty"`
	Description  string `bson:"description,omitempty" json:"description,omitempty"`
	Author       string `bson:"author,omitempty" json:"author,omitempty"`
	Version      string `bson:"version,omitempty" json:"version,omitempty"`
}

// ExerciseDefinition is one entry of the plan's exercise library. Sessions
// reference these by ID rather than repeating the fields inline.
type ExerciseDefinition struct {
	ID              string   `bson:"id" json:"id"`
	Name            string   `bson:"name" json:"name"`
	IsMainLift      bool     `bson:"isMainLift,omitempty" json:"isMainLift,omitempty"`
	IsAccessory     bool     `bson:"isAccessory,omitempty" json:"isAccessory,omitempty"`
	TargetMuscles   []string `bson:"targetMuscles,omitempty" json:"targetMuscles,omitempty"`
	VideoURL        string   `bson:"videoUrl,omitempty" json:"videoUrl,omitempty"`
	GeneralTips     string   `bson:"generalTips,omitempty" json:"generalTips,omitempty"`
}

// Week is a single training week. WeekNumber must be a unique positive
// integer within the document; BlockID and WeekTypeIDs are references into
// the document's blocks and weekTypes lists.
type Week struct {
	WeekNumber  int       `bson:"weekNumber" json:"weekNumber"`
	BlockID     string    `bson:"blockId,omitempty" json:"blockId,omitempty"`
	WeekTypeIDs []string  `bson:"weekTypeIds,omitempty" json:"weekTypeIds,omitempty"`
	GymDays     int       `bson:"gymDays,omitempty" json:"gymDays,omitempty"`
	Sessions    []Session `bson:"sessions" json:"sessions"`
}

// Session is one training day within a week.
type Session struct {
	SessionName   string             `bson:"sessionName" json:"sessionName"`
	SessionTypeID string             `bson:"sessionTypeId,omitempty" json:"sessionTypeId,omitempty"`
	SessionStyle  *SessionStyle      `bson:"sessionStyle,omitempty" json:"sessionStyle,omitempty"`
	Exercises     []ExerciseInstance `bson:"exercises" json:"exercises"`
}

// SessionStyle carries presentation hints for a session card. The server
// round-trips it untouched.
type SessionStyle struct {
	StyleClass string `bson:"styleClass,omitempty" json:"styleClass,omitempty"`
	Icon       string `bson:"icon,omitempty" json:"icon,omitempty"`
	Note       string `bson:"note,omitempty" json:"note,omitempty"`
}

// ExerciseInstance is a prescribed exercise inside a session. ExerciseID must
// resolve to an ExerciseDefinition in the same document.
type ExerciseInstance struct {
	ExerciseID   string  `bson:"exerciseId" json:"exerciseId"`
	Sets         string  `bson:"sets" json:"sets"` // free-form: "3", "3-4", "5x5" all occur in the wild
	Reps         string  `bson:"reps" json:"reps"`
	Load         string  `bson:"load" json:"load"`
	Comment      string  `bson:"comment,omitempty" json:"comment,omitempty"`
	LoadStyle    string  `bson:"loadStyle,omitempty" json:"loadStyle,omitempty"`
	CommentStyle string  `bson:"commentStyle,omitempty" json:"commentStyle,omitempty"`
	TargetRPE    float64 `bson:"targetRPE,omitempty" json:"targetRPE,omitempty"`
	Tips         string  `bson:"tips,omitempty" json:"tips,omitempty"`
}

// MonthBlock groups week numbers into a named tab. Together the monthBlocks
// must partition the document's week numbers: every week number in exactly
// one block.
type MonthBlock struct {
	ID    int    `bson:"id" json:"id"`
	Name  string `bson:"name" json:"name"`
	Weeks []int  `bson:"weeks" json:"weeks"`
	Style string `bson:"style,omitempty" json:"style,omitempty"`
}

// WeekType is a named, colored classification (e.g. "Deload", "Test") that
// weeks reference via weekTypeIds.
type WeekType struct {
	ID        string `bson:"id" json:"id"`
	Name      string `bson:"name" json:"name"`
	ColorName string `bson:"colorName,omitempty" json:"colorName,omitempty"`
}

// SessionType is an optional named session classification.
type SessionType struct {
	ID   string `bson:"id" json:"id"`
	Name string `bson:"name" json:"name"`
}

// Block is an optional named training phase referenced by weeks[].blockId.
type Block struct {
	ID          string `bson:"id" json:"id"`
	Name        string `bson:"name" json:"name"`
	Color       string `bson:"color,omitempty" json:"color,omitempty"`
	Description string `bson:"description,omitempty" json:"description,omitempty"`
}

// StoredPlan is a TrainingPlanDocument as the store returns it: the document
// plus the store-assigned identity, owner, and timestamps.
type StoredPlan struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	OwnerID   primitive.ObjectID   `bson:"ownerId" json:"ownerId"`
	PlanData  TrainingPlanDocument `bson:"plan_data" json:"planData"`
	CreatedAt time.Time            `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time            `bson:"updated_at" json:"updatedAt"`
}

// PlanMetadata is the summary projection used for plan listings, so the list
// view never loads full documents. Regenerated whenever the metadata cache
// refreshes.
type PlanMetadata struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	Name      string             `bson:"name" json:"name"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updatedAt"`
}
