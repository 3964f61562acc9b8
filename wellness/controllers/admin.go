package controllers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"wellness/wellness/services/activity"
	"wellness/wellness/services/ingest"
	"wellness/wellness/services/knowledge"
	"wellness/wellness/services/notify"
	"wellness/wellness/sources/psql/dao"
	"wellness/wellness/sources/psql/models"
	"wellness/wellness/sources/storage"
	"wellness/wellness/utils/logging"
	"wellness/wellness/utils/types"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// AdminController serves the dashboard and account removal.
type AdminController struct {
	users     *dao.UserDAO
	profiles  *dao.ProfileDAO
	sessions  *dao.ChatSessionDAO
	roadmap   *dao.RoadmapDAO
	feedback  *dao.FeedbackDAO
	documents *dao.DocumentDAO
	activity  *activity.Recorder
	kb        *knowledge.Service
	store     storage.ObjectStore
	notifier  notify.Notifier
}

func NewAdminController(db *gorm.DB, rec *activity.Recorder, kb *knowledge.Service, store storage.ObjectStore, notifier notify.Notifier) *AdminController {
	return &AdminController{
		users:     dao.NewUserDAO(db),
		profiles:  dao.NewProfileDAO(db),
		sessions:  dao.NewChatSessionDAO(db),
		roadmap:   dao.NewRoadmapDAO(db),
		feedback:  dao.NewFeedbackDAO(db),
		documents: dao.NewDocumentDAO(db),
		activity:  rec,
		kb:        kb,
		store:     store,
		notifier:  notifier,
	}
}

func (c *AdminController) Users(ctx context.Context) (map[string]any, error) {
	var (
		users    []models.User
		profiles []models.UserProfile
		docs     map[string]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		users, err = c.users.GetAllUsers(gctx)
		return err
	})
	g.Go(func() (err error) {
		profiles, err = c.profiles.ListAll(gctx)
		return err
	})
	g.Go(func() (err error) {
		docs, err = c.documents.CountByUser(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byUser := make(map[string]models.UserProfile, len(profiles))
	for _, p := range profiles {
		byUser[p.UserID] = p
	}
	out := make([]types.UserSummary, 0, len(users))
	for _, u := range users {
		p, ok := byUser[u.ID]
		out = append(out, types.UserSummary{
			UserID:              u.ID,
			Email:               u.Email,
			FullName:            u.FullName,
			Groups:              u.GroupList(),
			CreatedAt:           u.CreatedAt,
			HasProfile:          ok,
			OnboardingCompleted: ok && p.OnboardingCompleted,
			DocumentCount:       docs[u.ID],
		})
	}
	return map[string]any{"users": out, "count": len(out)}, nil
}

// DeleteUser removes every trace of a user: rows in each table, knowledge
// base chunks and stored objects. Failures in one store do not stop the
// others; they are listed in the report.
func (c *AdminController) DeleteUser(ctx context.Context, req types.DeleteUserRequest) (*types.DeleteUserReport, error) {
	defer logging.LogDuration(ctx, "delete_user")()

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, badRequest("Email is required")
	}
	if !req.Confirm {
		return nil, badRequest("Deletion must be confirmed with confirm: true")
	}
	user, err := c.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, notFound("User not found")
	}

	report := &types.DeleteUserReport{UserID: user.ID, Email: user.Email, Deleted: map[string]int64{}, Errors: []string{}}
	var mu sync.Mutex
	record := func(name string, n int64, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", name, err))
			return
		}
		report.Deleted[name] = n
	}

	steps := map[string]func(context.Context, string) (int64, error){
		"profiles":      c.profiles.DeleteByUser,
		"chat_sessions": c.sessions.DeleteByUser,
		"roadmap_items": c.roadmap.DeleteByUser,
		"feedback":      c.feedback.DeleteByUser,
		"documents":     c.documents.DeleteByUser,
		"kb_chunks":     c.kb.DeleteUser,
		"activity_logs": c.activity.DeleteUser,
	}
	var g errgroup.Group
	for name, step := range steps {
		name, step := name, step
		g.Go(func() error {
			n, err := step(ctx, user.ID)
			record(name, n, err)
			return nil
		})
	}
	g.Go(func() error {
		n, err := c.store.RemovePrefix(ctx, ingest.UserPrefix+user.ID+"/")
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("objects: %v", err))
		}
		report.S3ObjectsDeleted = n
		return nil
	})
	_ = g.Wait()

	n, err := c.users.DeleteUser(ctx, user.ID)
	record("users", n, err)

	logging.AppLogger.Info("user deleted",
		zap.String("user_id", user.ID),
		zap.Int("objects", report.S3ObjectsDeleted),
		zap.Strings("errors", report.Errors))

	go func(email string) {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := c.notifier.SendAccountDeleted(nctx, email); err != nil {
			logging.ErrorLogger.Warn("deletion email failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}(user.Email)
	return report, nil
}

func (c *AdminController) KBSync(ctx context.Context) (*knowledge.SyncReport, error) {
	return c.kb.Sync(ctx)
}

func (c *AdminController) AddWebSource(ctx context.Context, req types.WebSourceRequest) (*models.WebSource, bool, error) {
	raw := strings.TrimSpace(req.URL)
	if raw == "" {
		return nil, false, badRequest("url is required")
	}
	src, created, err := c.kb.AddWebSource(ctx, raw, req.Title)
	if errors.Is(err, knowledge.ErrInvalidURL) {
		return nil, false, badRequest("url must be an http(s) URL")
	}
	return src, created, err
}

func (c *AdminController) WebSources(ctx context.Context) ([]models.WebSource, error) {
	sources, err := c.kb.ListWebSources(ctx)
	if err != nil {
		return nil, err
	}
	if sources == nil {
		sources = []models.WebSource{}
	}
	return sources, nil
}
