// Package roadmap turns chat answers into roadmap items and generates new
// recommendations that do not repeat what the user already has.
package roadmap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wellness/wellness/prompts"
	"wellness/wellness/services/activity"
	"wellness/wellness/services/llm"
	"wellness/wellness/sources/psql/dao"
	"wellness/wellness/sources/psql/models"
	"wellness/wellness/utils/jsonutils"
	"wellness/wellness/utils/logging"

	"go.uber.org/zap"
)

const (
	ModeFormat   = "format"
	ModeGenerate = "generate"

	SourceChat      = "chat"
	SourceGenerated = "generated"

	maxGenerateAttempts = 3
	dueIn               = 30 * 24 * time.Hour
	minPerCategory      = 2
)

var (
	ErrInvalidResponse = errors.New("invalid AI response")
	ErrDuplicate       = errors.New("could not generate a unique recommendation")
)

type TransformRequest struct {
	Mode                    string           `json:"mode"`
	Message                 string           `json:"message"`
	ExistingRecommendations []Recommendation `json:"existingRecommendations"`
	Source                  string           `json:"source"`
}

// Item is an unsaved roadmap item. The client posts it to /roadmap to keep it.
type Item struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Status      string   `json:"status"`
	DueDate     string   `json:"dueDate"`
	Notes       []string `json:"notes"`
	Source      string   `json:"source"`
}

type Transformer struct {
	llm      llm.Client
	model    string
	prompts  *prompts.Catalog
	items    *dao.RoadmapDAO
	activity *activity.Recorder
	now      func() time.Time
}

func NewTransformer(client llm.Client, model string, catalog *prompts.Catalog, items *dao.RoadmapDAO, rec *activity.Recorder) *Transformer {
	return &Transformer{
		llm:      client,
		model:    model,
		prompts:  catalog,
		items:    items,
		activity: rec,
		now:      time.Now,
	}
}

// Transform asks the model for one roadmap item. In generate mode a candidate
// similar to an existing recommendation is retried, up to three attempts.
func (t *Transformer) Transform(ctx context.Context, userID string, req TransformRequest) (*Item, error) {
	defer logging.LogDuration(ctx, "roadmap_transform")()

	if req.Mode != ModeGenerate {
		req.Mode = ModeFormat
	}
	if req.Source == "" {
		if req.Mode == ModeGenerate {
			req.Source = SourceGenerated
		} else {
			req.Source = SourceChat
		}
	}

	existing, err := t.existing(ctx, userID, req.ExistingRecommendations)
	if err != nil {
		return nil, err
	}

	attempts := 1
	if req.Mode == ModeGenerate {
		attempts = maxGenerateAttempts
	}

	rejected := []Recommendation{}
	for attempt := 1; attempt <= attempts; attempt++ {
		candidate, err := t.ask(ctx, req, append(append([]Recommendation{}, existing...), rejected...))
		if err != nil {
			return nil, err
		}
		if match, dup := FindSimilar(*candidate, existing); dup {
			logging.AppLogger.Info("duplicate recommendation rejected",
				zap.String("user_id", userID),
				zap.Int("attempt", attempt),
				zap.String("candidate", candidate.Title),
				zap.String("existing", match.Title))
			rejected = append(rejected, *candidate)
			continue
		}

		item := &Item{
			Title:       candidate.Title,
			Description: candidate.Description,
			Category:    candidate.Category,
			Status:      models.RoadmapStatusNotStarted,
			DueDate:     t.now().UTC().Add(dueIn).Format(time.RFC3339),
			Notes:       []string{},
			Source:      req.Source,
		}

		typ := activity.RecommendationGenerated
		if req.Source == SourceChat {
			typ = activity.RoadmapItemAddedFromChat
		}
		t.activity.Record(ctx, userID, typ, map[string]any{"title": item.Title, "category": item.Category})
		return item, nil
	}
	return nil, ErrDuplicate
}

// existing merges the client's list with the user's stored items.
func (t *Transformer) existing(ctx context.Context, userID string, fromClient []Recommendation) ([]Recommendation, error) {
	stored, err := t.items.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load roadmap: %w", err)
	}
	out := make([]Recommendation, 0, len(fromClient)+len(stored))
	out = append(out, fromClient...)
	for _, it := range stored {
		out = append(out, Recommendation{Title: it.Title, Description: it.Description, Category: it.Category})
	}
	return out, nil
}

func (t *Transformer) ask(ctx context.Context, req TransformRequest, existing []Recommendation) (*Recommendation, error) {
	key := prompts.RoadmapFormat
	if req.Mode == ModeGenerate {
		key = prompts.RoadmapGenerate
	}
	prompt := t.prompts.Render(key, map[string]string{
		"base":       t.prompts.Render(prompts.RoadmapBase, nil),
		"message":    req.Message,
		"existing":   ExistingSection(existing),
		"categories": CategorySection(existing),
	})

	out, err := t.llm.Run(ctx, llm.ChatRequest{
		Model:     t.model,
		Messages:  []llm.Message{llm.User(prompt)},
		MaxTokens: 1000,
	})
	if err != nil {
		return nil, err
	}

	var rec Recommendation
	if err := jsonutils.Decode(out, &rec); err != nil {
		logging.ErrorLogger.Error("roadmap transform returned non-JSON", zap.Error(err))
		return nil, ErrInvalidResponse
	}
	rec.Title = strings.Trim(strings.TrimSpace(rec.Title), "[]")
	rec.Description = strings.TrimSpace(rec.Description)
	rec.Category = strings.ToLower(strings.TrimSpace(rec.Category))
	if rec.Title == "" || rec.Description == "" || rec.Category == "" {
		return nil, ErrInvalidResponse
	}
	if !models.IsRoadmapCategory(rec.Category) {
		rec.Category = "other"
	}
	return &rec, nil
}

// ExistingSection lists recommendations as "N. [category] title" for the prompt.
func ExistingSection(existing []Recommendation) string {
	if len(existing) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\nEXISTING RECOMMENDATIONS (DO NOT DUPLICATE):\n")
	for i, r := range existing {
		category := r.Category
		if category == "" {
			category = "other"
		}
		fmt.Fprintf(&sb, "%d. [%s] %s\n", i+1, category, r.Title)
	}
	return sb.String()
}

// CategorySection names the categories with fewer than two recommendations.
func CategorySection(existing []Recommendation) string {
	counts := map[string]int{}
	for _, r := range existing {
		counts[r.Category]++
	}
	var sparse []string
	for _, c := range models.RoadmapCategories {
		if counts[c] < minPerCategory {
			sparse = append(sparse, c)
		}
	}
	if len(sparse) == 0 {
		return ""
	}
	return "SUGGESTED CATEGORIES (for variety): " + strings.Join(sparse, ", ")
}
