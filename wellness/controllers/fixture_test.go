package controllers

import (
	"context"
	"sync"
	"testing"
	"time"

	"wellness/wellness/config"
	"wellness/wellness/prompts"
	"wellness/wellness/services/activity"
	"wellness/wellness/services/knowledge"
	"wellness/wellness/services/llm/llmtest"
	"wellness/wellness/sources/psql/dao"
	"wellness/wellness/sources/psql/models"
	"wellness/wellness/sources/psql/psqltest"
	"wellness/wellness/sources/storage"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const familyJSON = `{
	"marital_status": "married",
	"number_of_children": 2,
	"location": "Austin, TX",
	"support_system_type": ["family_nearby"],
	"family_members": [
		{"name": "Alex", "age": 8, "wellness_level": "beginner", "primary_goals": ["better_sleep"]},
		{"name": "Sam", "age": 41, "wellness_level": "intermediate", "primary_goals": ["stress_reduction"],
		 "current_activities": [{"type": "yoga", "frequency": "weekly"}]}
	],
	"onboarding_completed": true
}`

func testConfig() config.Config {
	return config.Config{JWTSecret: "test-secret", JWTTTL: time.Hour, AdminEmails: []string{"boss@example.com"}}
}

type fakeNotifier struct {
	mu      sync.Mutex
	welcome []string
	deleted []string
	sent    chan struct{}
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{sent: make(chan struct{}, 8)}
}

func (n *fakeNotifier) SendWelcome(_ context.Context, email, _ string) error {
	n.mu.Lock()
	n.welcome = append(n.welcome, email)
	n.mu.Unlock()
	n.sent <- struct{}{}
	return nil
}

func (n *fakeNotifier) SendAccountDeleted(_ context.Context, email string) error {
	n.mu.Lock()
	n.deleted = append(n.deleted, email)
	n.mu.Unlock()
	n.sent <- struct{}{}
	return nil
}

type fakeRetriever struct {
	results []knowledge.Result
	err     error
	queries []string
}

func (r *fakeRetriever) Retrieve(_ context.Context, userID, query string, k int) ([]knowledge.Result, error) {
	r.queries = append(r.queries, query)
	return r.results, r.err
}

// env is one in-memory backend shared by the controllers under test.
type env struct {
	db    *gorm.DB
	store *storage.MemoryStore
	kb    *knowledge.Service
	rec   *activity.Recorder
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := psqltest.NewDB(t)
	store := storage.NewMemoryStore("docs")
	kb := knowledge.NewService(db, store, nil, nil)
	kb.Start(context.Background())
	t.Cleanup(kb.Stop)
	return &env{db: db, store: store, kb: kb, rec: activity.NewRecorder(db)}
}

func (e *env) profiles() *ProfileController {
	return NewProfileController(dao.NewProfileDAO(e.db), e.rec)
}

func (e *env) query(client *llmtest.Client, r Retriever) *QueryController {
	return NewQueryController(e.profiles(), r, client, "main", prompts.Default(), e.rec)
}

func (e *env) activities(t *testing.T, typ string) []models.ActivityLog {
	t.Helper()
	acts, err := e.rec.List(context.Background(), dao.ActivityFilter{Types: []string{typ}})
	require.NoError(t, err)
	return acts
}

// insertFirst runs stmt inside the next INSERT into table, just before gorm
// writes its own row. It stands in for a concurrent request that won.
func insertFirst(t *testing.T, db *gorm.DB, table, stmt string, args ...any) {
	t.Helper()
	var once sync.Once
	err := db.Callback().Create().Before("gorm:create").Register("test:insert_first", func(tx *gorm.DB) {
		if tx.Statement.Table != table {
			return
		}
		once.Do(func() {
			if _, err := tx.Statement.ConnPool.ExecContext(tx.Statement.Context, stmt, args...); err != nil {
				tx.AddError(err)
			}
		})
	})
	require.NoError(t, err)
}
