// Package activity records user events for the admin dashboard.
package activity

import (
	"context"
	"encoding/json"
	"time"

	"wellness/wellness/sources/psql/dao"
	"wellness/wellness/sources/psql/models"
	"wellness/wellness/utils/logging"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Activity types written by the server.
const (
	Query                    = "query"
	OnboardingComplete       = "onboarding_complete"
	DocumentUpload           = "document_upload"
	RoadmapItemAdded         = "roadmap_item_added"
	RoadmapItemCompleted     = "roadmap_item_completed"
	RoadmapItemRemoved       = "roadmap_item_removed"
	RoadmapItemAddedFromChat = "roadmap_item_added_from_chat"
	RecommendationGenerated  = "recommendation_generated"
	FeedbackPositive         = "feedback_positive"
	FeedbackNegative         = "feedback_negative"
	FeedbackDeleted          = "feedback_deleted"
)

// ClientTypes are the only types a client may log directly.
var ClientTypes = []string{"goal_completed", "goal_added", "goal_removed", "mfa_enabled", "mfa_disabled"}

func IsClientType(t string) bool {
	for _, c := range ClientTypes {
		if c == t {
			return true
		}
	}
	return false
}

type Recorder struct {
	dao *dao.ActivityDAO
}

func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{dao: dao.NewActivityDAO(db)}
}

// Log stores an activity and returns it. Use it when the caller needs the row.
func (r *Recorder) Log(ctx context.Context, userID, typ string, metadata map[string]any) (*models.ActivityLog, error) {
	a := &models.ActivityLog{
		UserID:      userID,
		RequestType: typ,
		Metadata:    toJSON(metadata),
	}
	if err := r.dao.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Record stores an activity. Failures are logged and never reach the caller.
func (r *Recorder) Record(ctx context.Context, userID, typ string, metadata map[string]any) {
	if _, err := r.Log(ctx, userID, typ, metadata); err != nil {
		logging.ErrorLogger.Error("failed to record activity",
			zap.String("type", typ), zap.String("user_id", userID), zap.Error(err))
	}
}

// StartQuery records a query and returns its id, or "" on failure.
func (r *Recorder) StartQuery(ctx context.Context, userID, sessionID, question string) string {
	a := &models.ActivityLog{
		UserID:      userID,
		RequestType: Query,
		SessionID:   sessionID,
		Query:       question,
		Metadata:    toJSON(map[string]any{"query": question, "sessionId": sessionID}),
	}
	if err := r.dao.Create(ctx, a); err != nil {
		logging.ErrorLogger.Error("failed to record query", zap.String("user_id", userID), zap.Error(err))
		return ""
	}
	return a.ID
}

// FinishQuery attaches the serialized answer and the elapsed time.
func (r *Recorder) FinishQuery(ctx context.Context, id string, result any, started time.Time) {
	if id == "" {
		return
	}
	body, err := json.Marshal(result)
	if err != nil {
		body = []byte(`{}`)
	}
	if err := r.dao.Complete(ctx, id, string(body), time.Since(started).Milliseconds()); err != nil {
		logging.ErrorLogger.Error("failed to record query response", zap.String("activity_id", id), zap.Error(err))
	}
}

func (r *Recorder) List(ctx context.Context, f dao.ActivityFilter) ([]models.ActivityLog, error) {
	return r.dao.List(ctx, f)
}

func (r *Recorder) DeleteUser(ctx context.Context, userID string) (int64, error) {
	return r.dao.DeleteByUser(ctx, userID)
}

// Janitor deletes expired rows every interval until ctx ends.
func (r *Recorder) Janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := r.dao.DeleteExpired(ctx, now.UTC())
			if err != nil {
				logging.ErrorLogger.Error("activity janitor failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logging.AppLogger.Info("expired activities removed", zap.Int64("count", n))
			}
		}
	}
}

func toJSON(m map[string]any) datatypes.JSON {
	if m == nil {
		return datatypes.JSON("{}")
	}
	b, err := json.Marshal(m)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(b)
}
