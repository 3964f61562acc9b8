// Package sidecar keeps JSON companion objects next to an uploaded document.
package sidecar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"wellness/wellness/sources/storage"
	"wellness/wellness/utils/logging"

	"go.uber.org/zap"
)

type Type string

const (
	Metadata   Type = "metadata"
	Extracted  Type = "extracted"
	Processing Type = "processing"
	Insights   Type = "insights"
	Audit      Type = "audit"
)

// Types in the order they are read and deleted.
var Types = []Type{Metadata, Extracted, Processing, Insights, Audit}

func (t Type) suffix() string {
	return "." + string(t) + ".json"
}

func (t Type) valid() bool {
	for _, known := range Types {
		if known == t {
			return true
		}
	}
	return false
}

// Manager reads and writes sidecars. Read-modify-write helpers are serialized
// per document key inside one process.
type Manager struct {
	store storage.ObjectStore
	locks sync.Map
}

func NewManager(store storage.ObjectStore) *Manager {
	return &Manager{store: store}
}

func Key(docKey string, t Type) string {
	return docKey + t.suffix()
}

func (m *Manager) lock(docKey string) func() {
	v, _ := m.locks.LoadOrStore(docKey, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Write stores data with the bookkeeping fields added and returns the sidecar key.
func (m *Manager) Write(ctx context.Context, docKey string, t Type, data map[string]any) (string, error) {
	if !t.valid() {
		return "", fmt.Errorf("unknown sidecar type %q", t)
	}
	if data == nil {
		data = map[string]any{}
	}
	data["_sidecarType"] = string(t)
	data["_documentKey"] = docKey
	data["_createdAt"] = time.Now().UTC().Format(time.RFC3339)

	body, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	key := Key(docKey, t)
	if err := m.store.Put(ctx, key, body, "application/json"); err != nil {
		return "", fmt.Errorf("write %s sidecar: %w", t, err)
	}
	return key, nil
}

// Read returns nil, nil when the sidecar does not exist.
func (m *Manager) Read(ctx context.Context, docKey string, t Type) (map[string]any, error) {
	if !t.valid() {
		return nil, fmt.Errorf("unknown sidecar type %q", t)
	}
	body, err := m.store.Get(ctx, Key(docKey, t), 0)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("decode %s sidecar: %w", t, err)
	}
	return data, nil
}

// AppendProcessingStatus adds one link to the status chain. An "error" status
// also records details in the errors list.
func (m *Manager) AppendProcessingStatus(ctx context.Context, docKey, status, details string) error {
	defer m.lock(docKey)()

	data, err := m.Read(ctx, docKey, Processing)
	if err != nil {
		return err
	}
	if data == nil {
		data = map[string]any{"statusChain": []any{}, "currentStatus": "pending", "errors": []any{}}
	}
	now := time.Now().UTC().Format(time.RFC3339)

	data["statusChain"] = append(asList(data["statusChain"]), map[string]any{
		"status":    status,
		"timestamp": now,
		"details":   details,
	})
	data["currentStatus"] = status
	data["lastUpdated"] = now
	if status == "error" {
		data["errors"] = append(asList(data["errors"]), map[string]any{
			"timestamp": now,
			"error":     details,
		})
	}

	_, err = m.Write(ctx, docKey, Processing, data)
	return err
}

func (m *Manager) AppendAuditEvent(ctx context.Context, docKey, event, userID string, details map[string]any) error {
	defer m.lock(docKey)()

	data, err := m.Read(ctx, docKey, Audit)
	if err != nil {
		return err
	}
	if data == nil {
		data = map[string]any{"events": []any{}}
	}
	entry := map[string]any{
		"event":     event,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"user":      userID,
	}
	if len(details) > 0 {
		entry["details"] = details
	}
	data["events"] = append(asList(data["events"]), entry)

	_, err = m.Write(ctx, docKey, Audit, data)
	return err
}

// GetAll returns every sidecar that exists, keyed by type.
func (m *Manager) GetAll(ctx context.Context, docKey string) (map[Type]map[string]any, error) {
	out := map[Type]map[string]any{}
	for _, t := range Types {
		data, err := m.Read(ctx, docKey, t)
		if err != nil {
			return nil, err
		}
		if data != nil {
			out[t] = data
		}
	}
	return out, nil
}

// DeleteAll removes every sidecar and reports how many deletes succeeded.
func (m *Manager) DeleteAll(ctx context.Context, docKey string) int {
	deleted := 0
	for _, t := range Types {
		if err := m.store.Delete(ctx, Key(docKey, t)); err != nil {
			logging.AppLogger.Warn("could not delete sidecar",
				zap.String("type", string(t)), zap.Error(err))
			continue
		}
		deleted++
	}
	m.locks.Delete(docKey)
	return deleted
}

func IsSidecarKey(key string) bool {
	for _, t := range Types {
		if strings.HasSuffix(key, t.suffix()) {
			return true
		}
	}
	return false
}

// DocumentKeyFromSidecar strips the sidecar suffix. It returns "" for a non sidecar key.
func DocumentKeyFromSidecar(key string) string {
	for _, t := range Types {
		if strings.HasSuffix(key, t.suffix()) {
			return strings.TrimSuffix(key, t.suffix())
		}
	}
	return ""
}

func asList(v any) []any {
	if l, ok := v.([]any); ok {
		return l
	}
	return []any{}
}
