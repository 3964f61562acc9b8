package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"wellness/wellness/services/activity"
	"wellness/wellness/sources/psql/dao"
	"wellness/wellness/sources/psql/models"
	"wellness/wellness/utils/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type seeded struct {
	admin, one, two *models.User
	now             time.Time
}

// seed creates two families and one admin whose data must never be counted.
func seed(t *testing.T, e *env) seeded {
	t.Helper()
	ctx := context.Background()
	auth := NewAuthController(dao.NewUserDAO(e.db), newFakeNotifier(), testConfig())
	var s seeded
	var err error
	s.admin, err = auth.CreateUser(ctx, "boss@example.com", "Sunrise42", nil, false)
	require.NoError(t, err)
	s.one, err = auth.CreateUser(ctx, "one@example.com", "Sunrise42", nil, false)
	require.NoError(t, err)
	s.two, err = auth.CreateUser(ctx, "two@example.com", "Sunrise42", nil, false)
	require.NoError(t, err)

	profiles := dao.NewProfileDAO(e.db)
	for id, children := range map[string]string{s.one.ID: "2", s.two.ID: "1", s.admin.ID: "5"} {
		_, _, _, err := profiles.Upsert(ctx, id, datatypes.JSON(`{"number_of_children":`+children+`}`), id == s.one.ID)
		require.NoError(t, err)
	}

	docs := dao.NewDocumentDAO(e.db)
	for i, d := range []struct{ user, typ string }{
		{s.one.ID, "health_record"}, {s.one.ID, "other"}, {s.admin.ID, "other"},
	} {
		require.NoError(t, docs.Create(ctx, &models.Document{
			UserID:        d.user,
			Filename:      "f.txt",
			DocumentType:  d.typ,
			S3Key:         "users/" + d.user + "/" + d.typ + "/" + string(rune('a'+i)) + "-f.txt",
			CurrentStatus: models.DocStatusIngestionComplete,
		}))
	}

	fb := dao.NewFeedbackDAO(e.db)
	for _, f := range []models.Feedback{
		{UserID: s.one.ID, MessageID: "m1", FeedbackType: "positive"},
		{UserID: s.two.ID, MessageID: "m2", FeedbackType: "positive"},
		{UserID: s.two.ID, MessageID: "m3", FeedbackType: "negative"},
		{UserID: s.admin.ID, MessageID: "m4", FeedbackType: "negative"},
	} {
		f := f
		require.NoError(t, fb.Create(ctx, &f))
	}

	s.now = time.Now().UTC()
	acts := dao.NewActivityDAO(e.db)
	add := func(user, typ string, ago time.Duration, session, meta string) {
		a := &models.ActivityLog{UserID: user, RequestType: typ, Timestamp: s.now.Add(-ago), SessionID: session}
		if meta != "" {
			a.Metadata = datatypes.JSON(meta)
		}
		require.NoError(t, acts.Create(ctx, a))
	}
	add(s.one.ID, activity.OnboardingComplete, 72*time.Hour, "", "")
	add(s.one.ID, activity.FeedbackPositive, 48*time.Hour, "", `{"objectType":"chat_message"}`)
	add(s.one.ID, activity.FeedbackPositive, 10*time.Hour, "", `{"objectType":"recommendation"}`)
	add(s.one.ID, activity.Query, 50*time.Hour, "s1", "")
	add(s.one.ID, activity.Query, time.Hour, "s2", "")
	add(s.two.ID, activity.Query, 2*time.Hour, "s3", "")
	add(s.one.ID, activity.RoadmapItemAdded, 3*time.Hour, "", `{"category":"sleep"}`)
	add(s.two.ID, activity.RecommendationGenerated, 3*time.Hour, "", `{"category":"fitness","title":"Walk"}`)
	add(s.one.ID, activity.RoadmapItemCompleted, 2*time.Hour, "", `{"category":"sleep"}`)
	add(s.admin.ID, activity.Query, time.Hour, "s4", "")
	add(s.admin.ID, activity.OnboardingComplete, time.Hour, "", "")
	return s
}

func newAdmin(e *env, n *fakeNotifier) *AdminController {
	return NewAdminController(e.db, e.rec, e.kb, e.store, n)
}

func TestAnalytics(t *testing.T) {
	e := newEnv(t)
	seed(t, e)
	ctrl := newAdmin(e, newFakeNotifier())

	a, err := ctrl.Analytics(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, types.FamilyStats{Total: 2, WithDocuments: 1}, a.Families)
	assert.Equal(t, types.ChildrenStats{Total: 3, AveragePerFamily: 1.5}, a.Children)
	assert.Equal(t, types.DocumentStats{
		Total:            2,
		ByType:           map[string]int{"health_record": 1, "other": 1},
		AveragePerFamily: 2,
		FamiliesWithDocs: 1,
	}, a.Documents)
	assert.Equal(t, types.ConversationStats{TotalQueries: 3, UniqueSessions: 3, PeriodDays: 30}, a.Conversations)
	assert.Equal(t, types.FeedbackStats{
		TotalFeedback:      3,
		PositiveCount:      2,
		NegativeCount:      1,
		PositivePercentage: 66.67,
		NegativePercentage: 33.33,
	}, a.Feedback)
	assert.Equal(t, 1, a.Onboarding.TotalCompleted)
	assert.Equal(t, types.FirstWinStats{AverageHours: 24, AverageDays: 1, SampleSize: 1}, a.TimeToFirstWin)
	assert.Equal(t, types.RetentionStats{TotalActiveUsers: 2, ReturningUsers: 1, RetentionRate: 50, AvgSessionsPerUser: 1.5}, a.EngagementRetention)
	assert.Equal(t, types.RoadmapStats{
		TotalItemsCreated:         2,
		TotalItemsCompleted:       1,
		CompletionRate:            50,
		AvgRecommendationsPerUser: 1,
		ByCategory:                map[string]int{"sleep": 1, "fitness": 1},
		CompletionsByCategory:     map[string]int{"sleep": 1},
	}, a.Roadmap)
	assert.Equal(t, types.WeeklyActiveStats{TotalFamilies: 2, ActiveFamiliesLast7Days: 2, ActivePercentage: 100}, a.WeeklyActiveFamilies)
	assert.Nil(t, a.TimeFilterHours)

	day := 24
	a, err = ctrl.Analytics(context.Background(), &day)
	require.NoError(t, err)
	assert.Equal(t, types.ConversationStats{TotalQueries: 2, UniqueSessions: 2, PeriodDays: 1}, a.Conversations)
	assert.Equal(t, 0, a.Onboarding.TotalCompleted)
	assert.Equal(t, &day, a.TimeFilterHours)
}

func TestAnalytics_HugeTimeFilter(t *testing.T) {
	e := newEnv(t)
	seed(t, e)
	ctrl := newAdmin(e, newFakeNotifier())

	huge := 1 << 40
	a, err := ctrl.Analytics(context.Background(), &huge)
	require.NoError(t, err)
	require.NotNil(t, a.TimeFilterHours)
	assert.Equal(t, maxFilterHours, *a.TimeFilterHours)
	assert.Equal(t, float64(365), a.Conversations.PeriodDays)
	assert.Equal(t, 3, a.Conversations.TotalQueries)

	entries, err := ctrl.ActivityLog(context.Background(), types.ActivityLogQuery{Hours: &huge})
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestAnalytics_Empty(t *testing.T) {
	e := newEnv(t)
	a, err := newAdmin(e, newFakeNotifier()).Analytics(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, a.Families.Total)
	assert.Zero(t, a.Feedback.PositivePercentage)
	assert.Equal(t, types.WeeklyActiveStats{}, a.WeeklyActiveFamilies)
}

func TestDescribe(t *testing.T) {
	long := "Establish a consistent family bedtime routine with no screens after eight"
	tests := []struct {
		typ, meta string
		wantType  string
		wantDesc  string
	}{
		{activity.Query, ``, "chat_session_start", "Started chat session"},
		{activity.OnboardingComplete, ``, "onboarding_complete", "Completed onboarding flow"},
		{"mfa_enabled", ``, "mfa_enabled", "Enabled two-factor authentication (MFA)"},
		{activity.DocumentUpload, `{"filename":"plan.pdf"}`, "document_upload", "Uploaded document: plan.pdf"},
		{activity.DocumentUpload, `{}`, "document_upload", "Uploaded document: unknown file"},
		{activity.FeedbackPositive, `{}`, "feedback_positive", "Gave positive feedback on chat response"},
		{activity.FeedbackNegative, `{"objectType":"roadmap_item"}`, "feedback_negative", "Gave negative feedback on roadmap item"},
		{"goal_added", `{"goalTitle":"Sleep by 10"}`, "goal_added", `Added goal to roadmap: "Sleep by 10"`},
		{"goal_removed", `{}`, "goal_removed", `Removed goal from roadmap: "Unknown goal"`},
		{activity.RecommendationGenerated, `{"title":"` + long + `","category":"sleep"}`, "recommendation_generated",
			`AI generated recommendation: "Establish a consistent family bedtime routine with..." (sleep)`},
		{activity.RoadmapItemAddedFromChat, `{"title":"Walk"}`, "roadmap_item_added_from_chat", `Added to roadmap from chat: "Walk" (unknown)`},
		{activity.RoadmapItemAdded, `{"category":"fitness"}`, "roadmap_item_added", "Added roadmap item (fitness)"},
		{activity.RoadmapItemRemoved, `{"category":"fitness"}`, "roadmap_item_removed", "Removed roadmap item"},
		{activity.RoadmapItemCompleted, `{}`, "roadmap_item_completed", "Completed roadmap item"},
		{"feedback_deleted", `{}`, "unknown", "Unknown activity"},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			a := models.ActivityLog{RequestType: tt.typ, Metadata: datatypes.JSON(tt.meta), ProcessingTimeMs: 120}
			typ, desc, _ := Describe(a)
			assert.Equal(t, tt.wantType, typ)
			assert.Equal(t, tt.wantDesc, desc)
		})
	}

	_, _, meta := Describe(models.ActivityLog{RequestType: activity.Query, ProcessingTimeMs: 120})
	assert.Equal(t, map[string]any{"requestType": "query", "processingTimeMs": int64(120)}, meta)
}

func TestActivityLog(t *testing.T) {
	e := newEnv(t)
	s := seed(t, e)
	ctrl := newAdmin(e, newFakeNotifier())
	ctx := context.Background()

	all, err := ctrl.ActivityLog(ctx, types.ActivityLogQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 9)
	for i, entry := range all {
		assert.NotEqual(t, s.admin.ID, entry.UserID)
		if i > 0 {
			assert.False(t, entry.Timestamp.After(all[i-1].Timestamp), "newest first")
		}
	}

	chats, err := ctrl.ActivityLog(ctx, types.ActivityLogQuery{ActivityType: "chat_session_start"})
	require.NoError(t, err)
	require.Len(t, chats, 3)
	assert.Equal(t, "chat_session_start", chats[0].ActivityType)
	var meta map[string]any
	require.NoError(t, json.Unmarshal(chats[0].Metadata, &meta))
	assert.Equal(t, "query", meta["requestType"])

	mine, err := ctrl.ActivityLog(ctx, types.ActivityLogQuery{UserID: s.two.ID})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "two@example.com", mine[0].UserEmail)

	hours := 4
	recent, err := ctrl.ActivityLog(ctx, types.ActivityLogQuery{Hours: &hours, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestUsers(t *testing.T) {
	e := newEnv(t)
	s := seed(t, e)

	out, err := newAdmin(e, newFakeNotifier()).Users(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, out["count"])

	users := out["users"].([]types.UserSummary)
	var one types.UserSummary
	for _, u := range users {
		if u.UserID == s.one.ID {
			one = u
		}
	}
	assert.Equal(t, "one@example.com", one.Email)
	assert.True(t, one.HasProfile)
	assert.True(t, one.OnboardingCompleted)
	assert.Equal(t, 2, one.DocumentCount)
}

func TestDeleteUser(t *testing.T) {
	e := newEnv(t)
	s := seed(t, e)
	n := newFakeNotifier()
	ctrl := newAdmin(e, n)
	ctx := context.Background()

	require.NoError(t, e.store.Put(ctx, "users/"+s.one.ID+"/other/a-f.txt", []byte("x"), "text/plain"))
	require.NoError(t, e.store.Put(ctx, "users/"+s.one.ID+"/other/a-f.txt.metadata.json", []byte("{}"), "application/json"))
	require.NoError(t, e.store.Put(ctx, "users/"+s.two.ID+"/other/b-f.txt", []byte("y"), "text/plain"))
	require.NoError(t, dao.NewChatSessionDAO(e.db).Create(ctx, &models.ChatSession{UserID: s.one.ID, Title: "t"}))

	tests := []struct {
		name   string
		req    types.DeleteUserRequest
		status int
	}{
		{"no email", types.DeleteUserRequest{Confirm: true}, http.StatusBadRequest},
		{"not confirmed", types.DeleteUserRequest{Email: "one@example.com"}, http.StatusBadRequest},
		{"unknown", types.DeleteUserRequest{Email: "ghost@example.com", Confirm: true}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ctrl.DeleteUser(ctx, tt.req)
			assert.Equal(t, tt.status, StatusCode(err))
		})
	}

	report, err := ctrl.DeleteUser(ctx, types.DeleteUserRequest{Email: " One@Example.com", Confirm: true})
	require.NoError(t, err)
	assert.Empty(t, report.Errors)
	assert.Equal(t, int64(1), report.Deleted["users"])
	assert.Equal(t, int64(1), report.Deleted["profiles"])
	assert.Equal(t, int64(1), report.Deleted["chat_sessions"])
	assert.Equal(t, int64(1), report.Deleted["feedback"])
	assert.Equal(t, int64(2), report.Deleted["documents"])
	assert.Equal(t, int64(7), report.Deleted["activity_logs"])
	assert.Equal(t, 2, report.S3ObjectsDeleted)

	select {
	case <-n.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("deletion email not sent")
	}
	assert.Equal(t, []string{"one@example.com"}, n.deleted)

	u, err := dao.NewUserDAO(e.db).GetUserByEmail(ctx, "one@example.com")
	require.NoError(t, err)
	assert.Nil(t, u)
	ok, err := e.store.Exists(ctx, "users/"+s.two.ID+"/other/b-f.txt")
	require.NoError(t, err)
	assert.True(t, ok, "other users keep their objects")

	_, err = ctrl.DeleteUser(ctx, types.DeleteUserRequest{Email: "one@example.com", Confirm: true})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWebSources(t *testing.T) {
	e := newEnv(t)
	ctrl := newAdmin(e, newFakeNotifier())
	ctx := context.Background()

	_, _, err := ctrl.AddWebSource(ctx, types.WebSourceRequest{URL: " "})
	assert.Equal(t, "url is required", ErrorBody(err)["error"])
	_, _, err = ctrl.AddWebSource(ctx, types.WebSourceRequest{URL: "ftp://example.org/file"})
	assert.Equal(t, http.StatusBadRequest, StatusCode(err))

	src, created, err := ctrl.AddWebSource(ctx, types.WebSourceRequest{URL: "https://example.org/sleep", Title: "Sleep guide"})
	require.NoError(t, err)
	assert.True(t, created)
	again, created, err := ctrl.AddWebSource(ctx, types.WebSourceRequest{URL: "https://example.org/sleep"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, src.ID, again.ID)

	list, err := ctrl.WebSources(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
