package models

import "github.com/google/uuid"

// ensureID assigns a random uuid when the caller did not pick one.
func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// All lists every table, in migration order.
func All() []any {
	return []any{
		&User{},
		&UserProfile{},
		&ChatSession{},
		&RoadmapItem{},
		&Feedback{},
		&Document{},
		&ActivityLog{},
		&KnowledgeChunk{},
		&WebSource{},
		&IngestionJob{},
	}
}
