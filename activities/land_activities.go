package activities

import (
	"context"

	"go.temporal.io/sdk/activity"

	"land-assessment-system/models"
)

// LandStore persists land records.
type LandStore interface {
	CreateLand(ctx context.Context, req models.CreateLandRequest) (string, error)
}

// Activities contains the land record activities
type Activities struct {
	lands LandStore
}

// NewActivities creates a new Activities instance
func NewActivities(lands LandStore) *Activities {
	return &Activities{lands: lands}
}

// CreateLandRecord registers the land draft with the backend and returns the land id.
// The attempt key is sent as the idempotency key so a resubmitted draft maps to the
// record created by the first attempt.
func (a *Activities) CreateLandRecord(ctx context.Context, req models.AssessmentRequest) (string, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Creating land record", "attempt_key", req.AttemptKey, "size", req.Draft.Size)

	activity.RecordHeartbeat(ctx, "creating land record")

	landID, err := a.lands.CreateLand(ctx, models.CreateLandRequest{
		UserID:         req.OwnerID,
		Size:           req.Draft.Size,
		Location:       req.Draft.Location,
		IdempotencyKey: req.AttemptKey,
	})
	if err != nil {
		logger.Error("Land record creation failed", "attempt_key", req.AttemptKey, "error", err)
		return "", toApplicationError(ctx, err)
	}

	logger.Info("Land record created", "attempt_key", req.AttemptKey, "land_id", landID)
	return landID, nil
}
