package domain

import (
	"encoding/json"
	"fmt"
)

// ValidationError names the offending field so the UI can show it inline.
// It never escapes as a panic; callers branch on it with errors.As.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ValidateImport parses raw JSON (clipboard paste or file upload) and applies
// the import contract: the payload must be an object with weeks, monthBlocks,
// and exerciseDefinitions arrays and a non-empty metadata.planName. Any
// violation comes back as a *ValidationError, never a panic or a partially
// applied document.
func ValidateImport(raw []byte) (*TrainingPlanDocument, error) {
	// Probe the top-level shape first so a wrong-typed field reports the
	// field instead of a generic decode error.
	var shape struct {
		Metadata            json.RawMessage `json:"metadata"`
		Weeks               json.RawMessage `json:"weeks"`
		MonthBlocks         json.RawMessage `json:"monthBlocks"`
		ExerciseDefinitions json.RawMessage `json:"exerciseDefinitions"`
	}
	if err := json.Unmarshal(raw, &shape); err != nil {
		return nil, newValidationError("", "not a valid JSON object")
	}
	if !isJSONArray(shape.Weeks) {
		return nil, newValidationError("weeks", "must contain a 'weeks' array")
	}
	if !isJSONArray(shape.MonthBlocks) {
		return nil, newValidationError("monthBlocks", "must contain a 'monthBlocks' array")
	}
	if !isJSONArray(shape.ExerciseDefinitions) {
		return nil, newValidationError("exerciseDefinitions", "must contain an 'exerciseDefinitions' array")
	}

	var doc TrainingPlanDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, newValidationError("", fmt.Sprintf("malformed plan document: %v", err))
	}
	if doc.Metadata.PlanName == "" {
		return nil, newValidationError("metadata.planName", "a non-empty plan name is required")
	}
	return &doc, nil
}

func isJSONArray(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '[':
			return true
		default:
			return false
		}
	}
	return false
}

// ValidateReferences enforces the document's referential invariants: unique
// positive week numbers, every session exerciseId resolving to an exercise
// definition, every blockId/weekTypeId/sessionTypeId reference resolving, and
// the monthBlocks partitioning the week numbers (each week number in exactly
// one block, no block naming an unknown week).
//
// Historically only the upload path checked any of this; it now runs on every
// import and save path.
func ValidateReferences(doc *TrainingPlanDocument) error {
	exerciseIDs := make(map[string]bool, len(doc.ExerciseDefinitions))
	for i, def := range doc.ExerciseDefinitions {
		if def.ID == "" {
			return newValidationError(fmt.Sprintf("exerciseDefinitions[%d].id", i), "exercise definition id must not be empty")
		}
		if exerciseIDs[def.ID] {
			return newValidationError(fmt.Sprintf("exerciseDefinitions[%d].id", i), fmt.Sprintf("duplicate exercise definition id %q", def.ID))
		}
		exerciseIDs[def.ID] = true
	}

	blockIDs := make(map[string]bool, len(doc.Blocks))
	for _, b := range doc.Blocks {
		blockIDs[b.ID] = true
	}
	weekTypeIDs := make(map[string]bool, len(doc.WeekTypes))
	for _, wt := range doc.WeekTypes {
		weekTypeIDs[wt.ID] = true
	}
	sessionTypeIDs := make(map[string]bool, len(doc.SessionTypes))
	for _, st := range doc.SessionTypes {
		sessionTypeIDs[st.ID] = true
	}

	weekNumbers := make(map[int]bool, len(doc.Weeks))
	for i, week := range doc.Weeks {
		field := fmt.Sprintf("weeks[%d]", i)
		if week.WeekNumber <= 0 {
			return newValidationError(field+".weekNumber", "week number must be a positive integer")
		}
		if weekNumbers[week.WeekNumber] {
			return newValidationError(field+".weekNumber", fmt.Sprintf("duplicate week number %d", week.WeekNumber))
		}
		weekNumbers[week.WeekNumber] = true

		if week.BlockID != "" && !blockIDs[week.BlockID] {
			return newValidationError(field+".blockId", fmt.Sprintf("blockId %q does not resolve to a block", week.BlockID))
		}
		for _, wt := range week.WeekTypeIDs {
			if !weekTypeIDs[wt] {
				return newValidationError(field+".weekTypeIds", fmt.Sprintf("weekTypeId %q does not resolve to a week type", wt))
			}
		}
		for j, session := range week.Sessions {
			sField := fmt.Sprintf("%s.sessions[%d]", field, j)
			if session.SessionTypeID != "" && !sessionTypeIDs[session.SessionTypeID] {
				return newValidationError(sField+".sessionTypeId", fmt.Sprintf("sessionTypeId %q does not resolve to a session type", session.SessionTypeID))
			}
			for k, ex := range session.Exercises {
				if !exerciseIDs[ex.ExerciseID] {
					return newValidationError(
						fmt.Sprintf("%s.exercises[%d].exerciseId", sField, k),
						fmt.Sprintf("exerciseId %q does not resolve to an exercise definition", ex.ExerciseID),
					)
				}
			}
		}
	}

	// monthBlocks must partition the week numbers.
	seen := make(map[int]int, len(weekNumbers)) // week number -> monthBlock id
	for i, mb := range doc.MonthBlocks {
		field := fmt.Sprintf("monthBlocks[%d]", i)
		for _, wn := range mb.Weeks {
			if !weekNumbers[wn] {
				return newValidationError(field+".weeks", fmt.Sprintf("week number %d does not exist in the plan", wn))
			}
			if prev, dup := seen[wn]; dup {
				return newValidationError(field+".weeks", fmt.Sprintf("week number %d appears in month blocks %d and %d", wn, prev, mb.ID))
			}
			seen[wn] = mb.ID
		}
	}
	for wn := range weekNumbers {
		if _, ok := seen[wn]; !ok {
			return newValidationError("monthBlocks", fmt.Sprintf("week number %d is not assigned to any month block", wn))
		}
	}
	return nil
}
