package types

import (
	"encoding/json"
	"time"
)

type FamilyStats struct {
	Total         int `json:"total"`
	WithDocuments int `json:"with_documents"`
}

type ChildrenStats struct {
	Total            int     `json:"total"`
	AveragePerFamily float64 `json:"average_per_family"`
}

type DocumentStats struct {
	Total            int            `json:"total"`
	ByType           map[string]int `json:"by_type"`
	AveragePerFamily float64        `json:"average_per_family"`
	FamiliesWithDocs int            `json:"families_with_docs"`
}

type ConversationStats struct {
	TotalQueries   int     `json:"total_queries"`
	UniqueSessions int     `json:"unique_sessions"`
	PeriodDays     float64 `json:"period_days"`
}

type FeedbackStats struct {
	TotalFeedback        int     `json:"total_feedback"`
	PositiveCount        int     `json:"positive_count"`
	NegativeCount        int     `json:"negative_count"`
	PositivePercentage   float64 `json:"positive_percentage"`
	NegativePercentage   float64 `json:"negative_percentage"`
	Meets80PercentTarget bool    `json:"meets_80_percent_target"`
}

type OnboardingStats struct {
	TotalCompleted int `json:"total_completed"`
}

type FirstWinStats struct {
	AverageHours float64 `json:"average_hours"`
	AverageDays  float64 `json:"average_days"`
	SampleSize   int     `json:"sample_size"`
}

type RetentionStats struct {
	TotalActiveUsers   int     `json:"total_active_users"`
	ReturningUsers     int     `json:"returning_users"`
	RetentionRate      float64 `json:"retention_rate"`
	AvgSessionsPerUser float64 `json:"avg_sessions_per_user"`
}

type RoadmapStats struct {
	TotalItemsCreated         int            `json:"total_items_created"`
	TotalItemsCompleted       int            `json:"total_items_completed"`
	CompletionRate            float64        `json:"completion_rate"`
	AvgRecommendationsPerUser float64        `json:"avg_recommendations_per_user"`
	ByCategory                map[string]int `json:"by_category"`
	CompletionsByCategory     map[string]int `json:"completions_by_category"`
}

type WeeklyActiveStats struct {
	TotalFamilies           int     `json:"total_families"`
	ActiveFamiliesLast7Days int     `json:"active_families_last_7_days"`
	ActivePercentage        float64 `json:"active_percentage"`
	InactiveFamilies        int     `json:"inactive_families"`
}

// Analytics is the admin dashboard payload.
type Analytics struct {
	Families             FamilyStats       `json:"families"`
	Children             ChildrenStats     `json:"children"`
	Documents            DocumentStats     `json:"documents"`
	Conversations        ConversationStats `json:"conversations"`
	Feedback             FeedbackStats     `json:"feedback"`
	Onboarding           OnboardingStats   `json:"onboarding"`
	TimeToFirstWin       FirstWinStats     `json:"time_to_first_win"`
	EngagementRetention  RetentionStats    `json:"engagement_retention"`
	Roadmap              RoadmapStats      `json:"roadmap"`
	WeeklyActiveFamilies WeeklyActiveStats `json:"weekly_active_families"`
	Timestamp            time.Time         `json:"timestamp"`
	TimeFilterHours      *int              `json:"time_filter_hours"`
}

type ActivityEntry struct {
	ID           string          `json:"id"`
	UserID       string          `json:"userId"`
	UserEmail    string          `json:"userEmail"`
	ActivityType string          `json:"activityType"`
	Timestamp    time.Time       `json:"timestamp"`
	Description  string          `json:"description"`
	Metadata     json.RawMessage `json:"metadata"`
}

type ActivityLogQuery struct {
	Limit        int
	ActivityType string
	UserID       string
	Hours        *int
}
