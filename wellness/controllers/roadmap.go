package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"wellness/wellness/services/activity"
	"wellness/wellness/services/roadmap"
	"wellness/wellness/sources/psql/dao"
	"wellness/wellness/sources/psql/models"
	"wellness/wellness/utils/types"

	"gorm.io/datatypes"
)

type RoadmapController struct {
	roadmapDAO  *dao.RoadmapDAO
	transformer *roadmap.Transformer
	activity    *activity.Recorder
}

func NewRoadmapController(roadmapDAO *dao.RoadmapDAO, transformer *roadmap.Transformer, rec *activity.Recorder) *RoadmapController {
	return &RoadmapController{roadmapDAO: roadmapDAO, transformer: transformer, activity: rec}
}

func (c *RoadmapController) List(ctx context.Context, userID string) ([]models.RoadmapItem, error) {
	items, err := c.roadmapDAO.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.RoadmapItem{}
	}
	return items, nil
}

func validSource(s string) bool {
	return s == "manual" || s == roadmap.SourceChat || s == roadmap.SourceGenerated
}

// apply copies the set fields of req onto item.
func apply(item *models.RoadmapItem, req types.RoadmapItemRequest) error {
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return badRequest("Title is required")
		}
		item.Title = title
	}
	if req.Description != nil {
		item.Description = *req.Description
	}
	if req.Category != nil {
		cat := strings.ToLower(strings.TrimSpace(*req.Category))
		if !models.IsRoadmapCategory(cat) {
			return badRequest("Invalid category")
		}
		item.Category = cat
	}
	if req.Status != nil {
		if !models.IsRoadmapStatus(*req.Status) {
			return badRequest("Invalid status")
		}
		item.Status = *req.Status
	}
	if req.DueDate != nil {
		item.DueDate = *req.DueDate
	}
	if req.Notes != nil {
		item.Notes = datatypes.JSONSlice[string](*req.Notes)
	}
	if req.ThumbsUpGiven != nil {
		item.ThumbsUpGiven = *req.ThumbsUpGiven
	}
	if req.Source != nil {
		if !validSource(*req.Source) {
			return badRequest("Invalid source")
		}
		item.Source = *req.Source
	}
	return nil
}

func (c *RoadmapController) Create(ctx context.Context, userID string, req types.RoadmapItemRequest) (*models.RoadmapItem, error) {
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		return nil, badRequest("Title is required")
	}
	item := &models.RoadmapItem{
		UserID:   userID,
		Category: "other",
		Status:   models.RoadmapStatusNotStarted,
		Source:   "manual",
	}
	if err := apply(item, req); err != nil {
		return nil, err
	}
	if item.Status == models.RoadmapStatusCompleted {
		now := time.Now().UTC()
		item.CompletedAt = &now
	}
	if err := c.roadmapDAO.Create(ctx, item); err != nil {
		return nil, err
	}
	c.activity.Record(ctx, userID, activity.RoadmapItemAdded, map[string]any{
		"itemId":   item.ID,
		"title":    item.Title,
		"category": item.Category,
	})
	return item, nil
}

func (c *RoadmapController) Update(ctx context.Context, userID, id string, req types.RoadmapItemRequest) (*models.RoadmapItem, error) {
	item, err := c.roadmapDAO.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, notFound("Roadmap item not found")
	}
	before := item.Status
	if err := apply(item, req); err != nil {
		return nil, err
	}

	completed := false
	switch {
	case item.Status == models.RoadmapStatusCompleted && before != models.RoadmapStatusCompleted:
		now := time.Now().UTC()
		item.CompletedAt = &now
		completed = true
	case item.Status != models.RoadmapStatusCompleted:
		item.CompletedAt = nil
	}
	item.UpdatedAt = time.Now().UTC()
	if err := c.roadmapDAO.Save(ctx, item); err != nil {
		return nil, err
	}
	if completed {
		c.activity.Record(ctx, userID, activity.RoadmapItemCompleted, map[string]any{
			"itemId":   item.ID,
			"title":    item.Title,
			"category": item.Category,
		})
	}
	return item, nil
}

func (c *RoadmapController) Delete(ctx context.Context, userID, id string) error {
	item, err := c.roadmapDAO.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if item == nil {
		return notFound("Roadmap item not found")
	}
	if _, err := c.roadmapDAO.Delete(ctx, userID, id); err != nil {
		return err
	}
	c.activity.Record(ctx, userID, activity.RoadmapItemRemoved, map[string]any{
		"itemId":   item.ID,
		"title":    item.Title,
		"category": item.Category,
	})
	return nil
}

// Transform produces an unsaved item from a chat answer or a generate request.
func (c *RoadmapController) Transform(ctx context.Context, userID string, req roadmap.TransformRequest) (*roadmap.Item, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, badRequest("Message is required")
	}
	if req.Mode != "" && req.Mode != roadmap.ModeFormat && req.Mode != roadmap.ModeGenerate {
		return nil, badRequest("Mode must be format or generate")
	}
	item, err := c.transformer.Transform(ctx, userID, req)
	switch {
	case errors.Is(err, roadmap.ErrDuplicate):
		return nil, conflict("Could not generate a unique recommendation")
	case errors.Is(err, roadmap.ErrInvalidResponse):
		return nil, &Error{Kind: errInvalidAI, Message: "Invalid AI response"}
	case err != nil:
		return nil, err
	}
	return item, nil
}

var errInvalidAI = errors.New("invalid AI response")
