package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"wellness/wellness/services/activity"
	"wellness/wellness/sources/psql/dao"
	"wellness/wellness/sources/psql/models"
	"wellness/wellness/utils/logging"
	"wellness/wellness/utils/types"

	"golang.org/x/sync/errgroup"
)

const (
	defaultConversationWindow = 30 * 24 * time.Hour
	weeklyWindow              = 7 * 24 * time.Hour
	maxFirstWinHours          = 2160
	maxFilterHours            = 24 * 365
	positiveTarget            = 80.0
)

var roadmapAdditions = []string{
	activity.RoadmapItemAdded,
	activity.RoadmapItemAddedFromChat,
	activity.RecommendationGenerated,
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return round2(float64(part) / float64(whole) * 100)
}

func ratio(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return round2(float64(part) / float64(whole))
}

func metadataMap(raw []byte) map[string]any {
	m := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &m)
	}
	return m
}

func metaString(m map[string]any, key, fallback string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// analyticsData is everything the dashboard aggregates over, admins removed.
type analyticsData struct {
	profiles   []models.UserProfile
	documents  []models.Document
	feedback   []models.Feedback
	activities []models.ActivityLog
	weekly     []models.ActivityLog
}

// Analytics aggregates the dashboard. hours limits the window when set.
func (c *AdminController) Analytics(ctx context.Context, hours *int) (*types.Analytics, error) {
	defer logging.LogDuration(ctx, "admin_analytics")()
	hours = clampHours(hours)

	admins, err := c.users.AdminIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("admin ids: %w", err)
	}
	exclude := make([]string, 0, len(admins))
	for id := range admins {
		exclude = append(exclude, id)
	}

	now := time.Now().UTC()
	var since *time.Time
	if hours != nil {
		t := now.Add(-time.Duration(*hours) * time.Hour)
		since = &t
	}
	weekAgo := now.Add(-weeklyWindow)

	var data analyticsData
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		profiles, err := c.profiles.ListAll(gctx)
		for _, p := range profiles {
			if !admins[p.UserID] {
				data.profiles = append(data.profiles, p)
			}
		}
		return err
	})
	g.Go(func() error {
		docs, err := c.documents.ListAll(gctx)
		for _, d := range docs {
			if !admins[d.UserID] {
				data.documents = append(data.documents, d)
			}
		}
		return err
	})
	g.Go(func() error {
		fb, err := c.feedback.ListSince(gctx, since)
		for _, f := range fb {
			if !admins[f.UserID] {
				data.feedback = append(data.feedback, f)
			}
		}
		return err
	})
	g.Go(func() error {
		var err error
		data.activities, err = c.activity.List(gctx, dao.ActivityFilter{Since: since, ExcludeUserIDs: exclude})
		return err
	})
	g.Go(func() error {
		var err error
		data.weekly, err = c.activity.List(gctx, dao.ActivityFilter{Since: &weekAgo, ExcludeUserIDs: exclude})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load analytics: %w", err)
	}

	out := &types.Analytics{Timestamp: now, TimeFilterHours: hours}
	out.Families, out.Children = familyStats(data.profiles, data.documents)
	out.Documents = documentStats(data.documents)
	out.Conversations = conversationStats(data.activities, hours, now)
	out.Feedback = feedbackStats(data.feedback)
	out.Onboarding = types.OnboardingStats{TotalCompleted: len(ofType(data.activities, activity.OnboardingComplete))}
	out.TimeToFirstWin = firstWinStats(data.activities)
	out.EngagementRetention = retentionStats(data.activities)
	out.Roadmap = roadmapStats(data.activities)
	out.WeeklyActiveFamilies = weeklyStats(len(data.profiles), data.weekly)
	return out, nil
}

func ofType(acts []models.ActivityLog, typs ...string) []models.ActivityLog {
	var out []models.ActivityLog
	for _, a := range acts {
		for _, t := range typs {
			if a.RequestType == t {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

func familyStats(profiles []models.UserProfile, docs []models.Document) (types.FamilyStats, types.ChildrenStats) {
	withDocs := map[string]bool{}
	for _, d := range docs {
		withDocs[d.UserID] = true
	}
	var fam types.FamilyStats
	children := 0
	for _, p := range profiles {
		fam.Total++
		if withDocs[p.UserID] {
			fam.WithDocuments++
		}
		var fp struct {
			NumberOfChildren int `json:"number_of_children"`
		}
		if json.Unmarshal(p.Profile, &fp) == nil {
			children += fp.NumberOfChildren
		}
	}
	return fam, types.ChildrenStats{Total: children, AveragePerFamily: ratio(children, fam.Total)}
}

func documentStats(docs []models.Document) types.DocumentStats {
	stats := types.DocumentStats{Total: len(docs), ByType: map[string]int{}}
	users := map[string]bool{}
	for _, d := range docs {
		t := d.DocumentType
		if t == "" {
			t = "other"
		}
		stats.ByType[t]++
		users[d.UserID] = true
	}
	stats.FamiliesWithDocs = len(users)
	stats.AveragePerFamily = ratio(len(docs), len(users))
	return stats
}

// clampHours caps a time filter at a year so the window never overflows
// time.Duration.
func clampHours(hours *int) *int {
	if hours == nil || *hours <= maxFilterHours {
		return hours
	}
	capped := maxFilterHours
	return &capped
}

func conversationStats(acts []models.ActivityLog, hours *int, now time.Time) types.ConversationStats {
	threshold := now.Add(-defaultConversationWindow)
	period := 30.0
	if hours != nil {
		threshold = now.Add(-time.Duration(*hours) * time.Hour)
		period = float64(*hours) / 24
	}
	stats := types.ConversationStats{PeriodDays: period}
	sessions := map[string]bool{}
	for _, a := range ofType(acts, activity.Query) {
		if a.Timestamp.Before(threshold) {
			continue
		}
		stats.TotalQueries++
		if a.SessionID != "" {
			sessions[a.SessionID] = true
		}
	}
	stats.UniqueSessions = len(sessions)
	return stats
}

func feedbackStats(fb []models.Feedback) types.FeedbackStats {
	var stats types.FeedbackStats
	for _, f := range fb {
		switch f.FeedbackType {
		case "positive":
			stats.PositiveCount++
		case "negative":
			stats.NegativeCount++
		}
	}
	stats.TotalFeedback = stats.PositiveCount + stats.NegativeCount
	stats.PositivePercentage = percent(stats.PositiveCount, stats.TotalFeedback)
	stats.NegativePercentage = percent(stats.NegativeCount, stats.TotalFeedback)
	stats.Meets80PercentTarget = stats.PositivePercentage >= positiveTarget
	return stats
}

// firstWinStats measures onboarding to the first positive feedback per user.
func firstWinStats(acts []models.ActivityLog) types.FirstWinStats {
	onboarded := map[string]time.Time{}
	for _, a := range ofType(acts, activity.OnboardingComplete) {
		onboarded[a.UserID] = a.Timestamp
	}
	firstWin := map[string]time.Time{}
	for _, a := range ofType(acts, activity.FeedbackPositive) {
		if t, ok := firstWin[a.UserID]; !ok || a.Timestamp.Before(t) {
			firstWin[a.UserID] = a.Timestamp
		}
	}

	var total float64
	n := 0
	for user, win := range firstWin {
		start, ok := onboarded[user]
		if !ok {
			continue
		}
		diff := win.Sub(start).Hours()
		if diff > 0 && diff < maxFirstWinHours {
			total += diff
			n++
		}
	}
	if n == 0 {
		return types.FirstWinStats{}
	}
	avg := total / float64(n)
	return types.FirstWinStats{AverageHours: round2(avg), AverageDays: round2(avg / 24), SampleSize: n}
}

func retentionStats(acts []models.ActivityLog) types.RetentionStats {
	days := map[string]map[string]bool{}
	queries := map[string]int{}
	for _, a := range ofType(acts, activity.Query) {
		if a.UserID == "" {
			continue
		}
		if days[a.UserID] == nil {
			days[a.UserID] = map[string]bool{}
		}
		days[a.UserID][a.Timestamp.UTC().Format(time.DateOnly)] = true
		queries[a.UserID]++
	}
	stats := types.RetentionStats{TotalActiveUsers: len(days)}
	total := 0
	for user, d := range days {
		total += queries[user]
		if len(d) > 1 {
			stats.ReturningUsers++
		}
	}
	stats.RetentionRate = percent(stats.ReturningUsers, stats.TotalActiveUsers)
	stats.AvgSessionsPerUser = ratio(total, stats.TotalActiveUsers)
	return stats
}

func byCategory(acts []models.ActivityLog) map[string]int {
	out := map[string]int{}
	for _, a := range acts {
		out[metaString(metadataMap(a.Metadata), "category", "unknown")]++
	}
	return out
}

func roadmapStats(acts []models.ActivityLog) types.RoadmapStats {
	added := ofType(acts, roadmapAdditions...)
	completed := ofType(acts, activity.RoadmapItemCompleted)
	users := map[string]bool{}
	for _, a := range added {
		if a.UserID != "" {
			users[a.UserID] = true
		}
	}
	return types.RoadmapStats{
		TotalItemsCreated:         len(added),
		TotalItemsCompleted:       len(completed),
		CompletionRate:            percent(len(completed), len(added)),
		AvgRecommendationsPerUser: ratio(len(added), len(users)),
		ByCategory:                byCategory(added),
		CompletionsByCategory:     byCategory(completed),
	}
}

func weeklyStats(families int, weekly []models.ActivityLog) types.WeeklyActiveStats {
	if families == 0 {
		return types.WeeklyActiveStats{}
	}
	active := map[string]bool{}
	for _, a := range weekly {
		if a.UserID != "" {
			active[a.UserID] = true
		}
	}
	return types.WeeklyActiveStats{
		TotalFamilies:           families,
		ActiveFamiliesLast7Days: len(active),
		ActivePercentage:        percent(len(active), families),
		InactiveFamilies:        families - len(active),
	}
}

const (
	defaultActivityLimit = 100
	maxActivityLimit     = 500
	maxTitleLength       = 50
)

func truncateTitle(s string) string {
	if r := []rune(s); len(r) > maxTitleLength {
		return string(r[:maxTitleLength]) + "..."
	}
	return s
}

var simpleDescriptions = map[string][2]string{
	activity.Query:              {"chat_session_start", "Started chat session"},
	"user_signup":               {"user_signup", "New user signup"},
	activity.OnboardingComplete: {activity.OnboardingComplete, "Completed onboarding flow"},
	"mfa_enabled":               {"mfa_enabled", "Enabled two-factor authentication (MFA)"},
	"mfa_disabled":              {"mfa_disabled", "Disabled two-factor authentication (MFA)"},
}

var roadmapDescriptions = map[string]string{
	activity.RoadmapItemAdded:     "Added roadmap item",
	activity.RoadmapItemRemoved:   "Removed roadmap item",
	activity.RoadmapItemCompleted: "Completed roadmap item",
}

// Describe maps a stored activity to the type and sentence the dashboard shows.
func Describe(a models.ActivityLog) (typ, description string, metadata any) {
	meta := metadataMap(a.Metadata)
	if d, ok := simpleDescriptions[a.RequestType]; ok {
		if a.RequestType == activity.Query {
			return d[0], d[1], map[string]any{"requestType": a.RequestType, "processingTimeMs": a.ProcessingTimeMs}
		}
		return d[0], d[1], meta
	}

	switch a.RequestType {
	case activity.DocumentUpload:
		name := metaString(meta, "filename", metaString(meta, "fileName", "unknown file"))
		return a.RequestType, "Uploaded document: " + name, meta
	case activity.FeedbackPositive, activity.FeedbackNegative:
		action := "positive"
		if a.RequestType == activity.FeedbackNegative {
			action = "negative"
		}
		target := "chat response"
		switch metaString(meta, "objectType", "chat_message") {
		case "recommendation":
			target = "recommendation"
		case "roadmap_item":
			target = "roadmap item"
		}
		return a.RequestType, fmt.Sprintf("Gave %s feedback on %s", action, target), meta
	case "goal_generated", "goal_completed", "goal_added", "goal_removed":
		title := metaString(meta, "goalTitle", "Unknown goal")
		verb := map[string]string{
			"goal_generated": "Generated new goal",
			"goal_completed": "Completed goal",
			"goal_added":     "Added goal to roadmap",
			"goal_removed":   "Removed goal from roadmap",
		}[a.RequestType]
		return a.RequestType, fmt.Sprintf("%s: %q", verb, title), meta
	case activity.RecommendationGenerated, activity.RoadmapItemAddedFromChat:
		title := truncateTitle(metaString(meta, "title", "Unknown recommendation"))
		category := metaString(meta, "category", "unknown")
		prefix := "AI generated recommendation"
		if a.RequestType == activity.RoadmapItemAddedFromChat {
			prefix = "Added to roadmap from chat"
		}
		return a.RequestType, fmt.Sprintf("%s: %q (%s)", prefix, title, category), meta
	case activity.RoadmapItemAdded, activity.RoadmapItemRemoved, activity.RoadmapItemCompleted:
		desc := roadmapDescriptions[a.RequestType]
		if cat := metaString(meta, "category", ""); cat != "" && a.RequestType != activity.RoadmapItemRemoved {
			desc += " (" + cat + ")"
		}
		return a.RequestType, desc, meta
	}
	return "unknown", "Unknown activity", meta
}

// requestTypes maps a dashboard activity type back to the stored type.
func requestTypes(activityType string) []string {
	switch activityType {
	case "":
		return nil
	case "chat_session_start":
		return []string{activity.Query}
	}
	return []string{activityType}
}

func (c *AdminController) ActivityLog(ctx context.Context, q types.ActivityLogQuery) ([]types.ActivityEntry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultActivityLimit
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}

	var (
		admins map[string]bool
		users  []models.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		admins, err = c.users.AdminIDs(gctx)
		return err
	})
	g.Go(func() (err error) {
		users, err = c.users.GetAllUsers(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	exclude := make([]string, 0, len(admins))
	for id := range admins {
		exclude = append(exclude, id)
	}
	sort.Strings(exclude)

	f := dao.ActivityFilter{
		UserID:         q.UserID,
		Types:          requestTypes(q.ActivityType),
		ExcludeUserIDs: exclude,
		Limit:          limit,
	}
	if hours := clampHours(q.Hours); hours != nil {
		since := time.Now().UTC().Add(-time.Duration(*hours) * time.Hour)
		f.Since = &since
	}
	acts, err := c.activity.List(ctx, f)
	if err != nil {
		return nil, err
	}

	emails := make(map[string]string, len(users))
	for _, u := range users {
		emails[u.ID] = u.Email
	}
	out := make([]types.ActivityEntry, 0, len(acts))
	for _, a := range acts {
		typ, desc, meta := Describe(a)
		raw, _ := json.Marshal(meta)
		email := emails[a.UserID]
		if email == "" {
			email = a.UserID
		}
		out = append(out, types.ActivityEntry{
			ID:           a.ID,
			UserID:       a.UserID,
			UserEmail:    email,
			ActivityType: typ,
			Timestamp:    a.Timestamp,
			Description:  desc,
			Metadata:     raw,
		})
	}
	return out, nil
}
