package controllers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wellness/wellness/services/activity"
	"wellness/wellness/sources/psql/dao"
	"wellness/wellness/sources/psql/models"
	"wellness/wellness/utils/types"

	"gorm.io/gorm"
)

var feedbackObjectTypes = []string{"chat_message", "recommendation", "roadmap_item"}

func validFeedbackType(t string) bool {
	return t == "positive" || t == "negative"
}

type FeedbackController struct {
	feedbackDAO *dao.FeedbackDAO
	activity    *activity.Recorder
}

func NewFeedbackController(feedbackDAO *dao.FeedbackDAO, rec *activity.Recorder) *FeedbackController {
	return &FeedbackController{feedbackDAO: feedbackDAO, activity: rec}
}

func (c *FeedbackController) Submit(ctx context.Context, userID string, req types.FeedbackRequest) (*types.FeedbackResponse, error) {
	if strings.TrimSpace(req.MessageID) == "" || req.FeedbackType == "" {
		return nil, badRequest("messageId and feedbackType are required")
	}
	if !validFeedbackType(req.FeedbackType) {
		return nil, badRequest("feedbackType must be positive or negative")
	}
	if req.ObjectType == "" {
		req.ObjectType = "chat_message"
	}
	valid := false
	for _, t := range feedbackObjectTypes {
		valid = valid || t == req.ObjectType
	}
	if !valid {
		return nil, &Error{Kind: ErrBadRequest, Message: "Invalid objectType", Fields: map[string]any{"validTypes": feedbackObjectTypes}}
	}
	if req.SessionID == "" {
		req.SessionID = "unknown"
	}

	existing, err := c.feedbackDAO.GetByMessage(ctx, userID, req.MessageID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, conflict("Feedback already submitted for this message")
	}

	fb := &models.Feedback{
		UserID:         userID,
		MessageID:      req.MessageID,
		SessionID:      req.SessionID,
		FeedbackType:   req.FeedbackType,
		Comment:        req.Comment,
		ObjectType:     req.ObjectType,
		ObjectID:       req.ObjectID,
		MessageContent: req.MessageContent,
	}
	if err := c.feedbackDAO.Create(ctx, fb); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, conflict("Feedback already submitted for this message")
		}
		return nil, err
	}

	typ := activity.FeedbackPositive
	if fb.FeedbackType == "negative" {
		typ = activity.FeedbackNegative
	}
	c.activity.Record(ctx, userID, typ, map[string]any{
		"messageId":  fb.MessageID,
		"objectType": fb.ObjectType,
		"objectId":   fb.ObjectID,
		"sessionId":  fb.SessionID,
	})
	return &types.FeedbackResponse{
		FeedbackID:   fb.ID,
		MessageID:    fb.MessageID,
		FeedbackType: fb.FeedbackType,
		Timestamp:    fb.CreatedAt,
		Message:      "Feedback submitted successfully",
	}, nil
}

func (c *FeedbackController) Get(ctx context.Context, userID, messageID string) (*models.Feedback, error) {
	fb, err := c.feedbackDAO.GetByMessage(ctx, userID, messageID)
	if err != nil {
		return nil, err
	}
	if fb == nil {
		return nil, notFound("Feedback not found")
	}
	return fb, nil
}

func (c *FeedbackController) Update(ctx context.Context, userID, messageID string, req types.FeedbackUpdate) (*models.Feedback, error) {
	fb, err := c.Get(ctx, userID, messageID)
	if err != nil {
		return nil, err
	}
	if req.FeedbackType != nil {
		if !validFeedbackType(*req.FeedbackType) {
			return nil, badRequest("feedbackType must be positive or negative")
		}
		fb.FeedbackType = *req.FeedbackType
	}
	if req.Comment != nil {
		fb.Comment = *req.Comment
	}
	fb.UpdatedAt = time.Now().UTC()
	if err := c.feedbackDAO.Save(ctx, fb); err != nil {
		return nil, err
	}
	c.activity.Record(ctx, userID, "feedback_"+fb.FeedbackType+"_updated", map[string]any{
		"messageId":  fb.MessageID,
		"objectType": fb.ObjectType,
		"sessionId":  fb.SessionID,
	})
	return fb, nil
}

func (c *FeedbackController) Delete(ctx context.Context, userID, messageID string) (map[string]string, error) {
	ok, err := c.feedbackDAO.Delete(ctx, userID, messageID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound("Feedback not found")
	}
	c.activity.Record(ctx, userID, activity.FeedbackDeleted, map[string]any{"messageId": messageID})
	return map[string]string{"message": "Feedback deleted successfully", "messageId": messageID}, nil
}

// ActivityController accepts the few activity types clients may log themselves.
type ActivityController struct {
	activity *activity.Recorder
}

func NewActivityController(rec *activity.Recorder) *ActivityController {
	return &ActivityController{activity: rec}
}

func (c *ActivityController) Log(ctx context.Context, userID string, req types.ActivityLogRequest) (map[string]any, error) {
	if !activity.IsClientType(req.ActivityType) {
		return nil, &Error{
			Kind:    ErrBadRequest,
			Message: "Invalid activityType",
			Fields:  map[string]any{"validTypes": activity.ClientTypes},
		}
	}
	a, err := c.activity.Log(ctx, userID, req.ActivityType, req.Metadata)
	if err != nil {
		return nil, fmt.Errorf("log activity: %w", err)
	}
	return map[string]any{
		"activityId": a.ID,
		"timestamp":  a.Timestamp,
		"message":    "Activity logged successfully",
	}, nil
}
