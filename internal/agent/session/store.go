package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/LambertClark/multi-cloud-sre-agent/internal/logging"
)

// Sentinel errors returned by mutating store operations.
var (
	ErrSessionNotFound = errors.New("session not found or expired")
	ErrTaskNotFound    = errors.New("task not found")
)

// DefaultTTL is the idle duration after which a session is treated as
// expired on the next access. Expiry is checked on every read; there is
// no background sweep.
const DefaultTTL = 24 * time.Hour

// Store owns all conversation sessions. It keeps a process-wide cache
// backed by one JSON file per session; the file is authoritative on
// cold start, the cache once loaded. All operations are safe for
// concurrent use - the store serializes the read-modify-write-persist
// cycle under a single mutex, and every session or task it hands out
// is a copy, a snapshot of the state at call time. Mutating a returned
// value has no effect on the store.
type Store struct {
	dir string
	ttl time.Duration

	mu       sync.RWMutex
	sessions map[string]*ConversationSession
}

// Option configures a Store.
type Option func(*Store)

// WithTTL overrides the session expiry duration.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// NewStore creates a session store persisting under dir.
func NewStore(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session dir: %w", err)
	}
	s := &Store{
		dir:      dir,
		ttl:      DefaultTTL,
		sessions: make(map[string]*ConversationSession),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateSession allocates a new session and persists it immediately.
func (s *Store) CreateSession(userID string, metadata map[string]any) *ConversationSession {
	sess := NewSession(userID, metadata)

	s.mu.Lock()
	s.sessions[sess.SessionID] = sess
	s.saveLocked(sess)
	s.mu.Unlock()

	logging.Infof("created session %s", sess.SessionID)
	return sess.Copy()
}

// GetSession returns a snapshot of the session with the given id, or
// false if it does not exist, is expired, or its persisted record is
// unreadable.
func (s *Store) GetSession(id string) (*ConversationSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.getLocked(id)
	if !ok {
		return nil, false
	}
	return sess.Copy(), true
}

// getLocked is the cache-first, TTL-checked lookup. Callers must hold
// the mutex.
func (s *Store) getLocked(id string) (*ConversationSession, bool) {
	if sess, ok := s.sessions[id]; ok {
		if s.expired(sess) {
			logging.Warnf("session %s has expired", id)
			return nil, false
		}
		return sess, true
	}

	sess := s.load(id)
	if sess == nil {
		return nil, false
	}
	if s.expired(sess) {
		logging.Warnf("session %s has expired", id)
		return nil, false
	}
	s.sessions[id] = sess
	return sess, true
}

func (s *Store) expired(sess *ConversationSession) bool {
	return time.Since(sess.UpdatedAt) > s.ttl
}

// GetOrCreateSession resumes the session with the given id if it is
// still live, and starts a fresh one otherwise. Pass an empty id to
// always start fresh.
func (s *Store) GetOrCreateSession(id, userID string) *ConversationSession {
	if id != "" {
		if sess, ok := s.GetSession(id); ok {
			return sess
		}
	}
	return s.CreateSession(userID, nil)
}

// AddMessage appends a message to a session and re-persists it.
func (s *Store) AddMessage(sessionID string, role Role, content string, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.getLocked(sessionID)
	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
	}
	sess.AddMessage(role, content, metadata)
	s.saveLocked(sess)
	return nil
}

// AddTask creates a new pending task in a session. An empty taskID asks
// the store to allocate one.
func (s *Store) AddTask(sessionID, description, taskID string, metadata map[string]any) (*TaskContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.getLocked(sessionID)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
	}
	task := sess.AddTask(description, taskID, metadata)
	s.saveLocked(sess)
	return copyTask(task), nil
}

// copyTask snapshots a task so the caller never holds a pointer into a
// session's live task slice.
func copyTask(task *TaskContext) *TaskContext {
	cp := *task
	return &cp
}

// UpdateTask applies a partial update to a task.
func (s *Store) UpdateTask(sessionID, taskID string, upd TaskUpdate) (*TaskContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.getLocked(sessionID)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
	}
	task, err := sess.UpdateTask(taskID, upd)
	if err != nil {
		return nil, err
	}
	s.saveLocked(sess)
	return copyTask(task), nil
}

// SetContextVariable stores a context variable on the session.
func (s *Store) SetContextVariable(sessionID, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.getLocked(sessionID)
	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
	}
	sess.ContextVariables[key] = value
	sess.UpdatedAt = time.Now()
	s.saveLocked(sess)
	return nil
}

// GetContextVariable returns a context variable, or def when the
// session or the key is absent. Absence is quiet, not an error.
func (s *Store) GetContextVariable(sessionID, key string, def any) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.getLocked(sessionID)
	if !ok {
		return def
	}
	if v, ok := sess.ContextVariables[key]; ok {
		return v
	}
	return def
}

// GetConversationHistory returns a role-filtered, tail-limited view of
// a session's messages. An empty roleFilter keeps every role; limit <= 0
// keeps everything. The returned slice is a copy.
func (s *Store) GetConversationHistory(sessionID string, limit int, roleFilter Role) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.getLocked(sessionID)
	if !ok {
		return nil
	}

	messages := sess.Messages
	if roleFilter != "" {
		filtered := make([]Message, 0, len(messages))
		for _, msg := range messages {
			if msg.Role == roleFilter {
				filtered = append(filtered, msg)
			}
		}
		messages = filtered
	}
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return append([]Message(nil), messages...)
}

// ConversationSummary aggregates per-session message and task counts.
type ConversationSummary struct {
	SessionID         string    `json:"session_id"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	TotalMessages     int       `json:"total_messages"`
	UserMessages      int       `json:"user_messages"`
	AssistantMessages int       `json:"assistant_messages"`
	TotalTasks        int       `json:"total_tasks"`
	CompletedTasks    int       `json:"completed_tasks"`
	FailedTasks       int       `json:"failed_tasks"`
	PendingTasks      int       `json:"pending_tasks"`
}

// GetConversationSummary computes the summary on demand; nothing is
// cached.
func (s *Store) GetConversationSummary(sessionID string) (ConversationSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.getLocked(sessionID)
	if !ok {
		return ConversationSummary{}, false
	}

	summary := ConversationSummary{
		SessionID:     sess.SessionID,
		CreatedAt:     sess.CreatedAt,
		UpdatedAt:     sess.UpdatedAt,
		TotalMessages: len(sess.Messages),
		TotalTasks:    len(sess.Tasks),
	}
	for _, msg := range sess.Messages {
		switch msg.Role {
		case RoleUser:
			summary.UserMessages++
		case RoleAssistant:
			summary.AssistantMessages++
		}
	}
	for _, task := range sess.Tasks {
		switch task.Status {
		case TaskCompleted:
			summary.CompletedTasks++
		case TaskFailed:
			summary.FailedTasks++
		}
	}
	summary.PendingTasks = summary.TotalTasks - summary.CompletedTasks - summary.FailedTasks
	return summary, true
}

// GetResumableTasks returns the tasks that can be resumed, i.e. those
// in the failed or paused state.
func (s *Store) GetResumableTasks(sessionID string) []TaskContext {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.getLocked(sessionID)
	if !ok {
		return nil
	}
	var resumable []TaskContext
	for _, task := range sess.Tasks {
		if task.Status == TaskFailed || task.Status == TaskPaused {
			resumable = append(resumable, task)
		}
	}
	return resumable
}

// ResumeTask transitions a failed or paused task back to pending,
// optionally clearing its error. Resuming a task in any other state is
// a warned no-op, not an error: the caller gets false and no state
// changes.
func (s *Store) ResumeTask(sessionID, taskID string, resetError bool) (*TaskContext, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.getLocked(sessionID)
	if !ok {
		return nil, false
	}
	task := sess.Task(taskID)
	if task == nil {
		return nil, false
	}
	if task.Status != TaskFailed && task.Status != TaskPaused {
		logging.Warnf("task %s is %s, cannot resume", taskID, task.Status)
		return nil, false
	}

	task.Status = TaskPending
	if resetError {
		task.Error = ""
	}
	now := time.Now()
	task.UpdatedAt = now
	sess.UpdatedAt = now
	s.saveLocked(sess)

	logging.Infof("resumed task %s", taskID)
	return copyTask(task), true
}

// PauseTask forces a task into the paused state regardless of its
// current status. The missing transition guard is deliberate: pausing
// an already-terminal task is a harmless overwrite, and the permissive
// behavior lets an orchestrator freeze a whole session's tasks without
// inspecting each one first.
func (s *Store) PauseTask(sessionID, taskID string) (*TaskContext, error) {
	paused := TaskPaused
	return s.UpdateTask(sessionID, taskID, TaskUpdate{Status: &paused})
}

// ClearSession removes a session from the cache and deletes its
// persisted record.
func (s *Store) ClearSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	path := s.sessionPath(sessionID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Errorf("failed to remove session file %s: %v", path, err)
	}
	logging.Infof("cleared session %s", sessionID)
}

// ListActiveSessions scans the storage directory and returns the ids of
// all non-expired sessions.
func (s *Store) ListActiveSessions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		logging.Errorf("failed to scan session dir: %v", err)
		return nil
	}

	var active []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		if _, ok := s.getLocked(id); ok {
			active = append(active, id)
		}
	}
	return active
}

// StoreStats aggregates counts across all non-expired sessions.
type StoreStats struct {
	ActiveSessions int     `json:"active_sessions"`
	TotalMessages  int     `json:"total_messages"`
	TotalTasks     int     `json:"total_tasks"`
	CompletedTasks int     `json:"completed_tasks"`
	FailedTasks    int     `json:"failed_tasks"`
	SuccessRate    float64 `json:"success_rate"`
}

// GetSessionStats computes global statistics across all active
// sessions, on demand.
func (s *Store) GetSessionStats() StoreStats {
	active := s.ListActiveSessions()

	s.mu.Lock()
	defer s.mu.Unlock()

	stats := StoreStats{ActiveSessions: len(active)}
	for _, id := range active {
		sess, ok := s.getLocked(id)
		if !ok {
			continue
		}
		stats.TotalMessages += len(sess.Messages)
		stats.TotalTasks += len(sess.Tasks)
		for _, task := range sess.Tasks {
			switch task.Status {
			case TaskCompleted:
				stats.CompletedTasks++
			case TaskFailed:
				stats.FailedTasks++
			}
		}
	}
	if stats.TotalTasks > 0 {
		stats.SuccessRate = float64(stats.CompletedTasks) / float64(stats.TotalTasks)
	}
	return stats
}

// ReplaceSession swaps in a new version of an existing session (for
// example the output of the context compressor) and persists it. The
// caller owns the decision to replace; the store does not compare
// versions. The store keeps its own copy, so the caller may continue
// to use the argument freely.
func (s *Store) ReplaceSession(sess *ConversationSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := sess.Copy()
	s.sessions[cp.SessionID] = cp
	s.saveLocked(cp)
}

func (s *Store) sessionPath(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// saveLocked rewrites the session's full persisted record. Write
// failures are logged and swallowed: the in-memory session remains the
// effective truth and the caller is not informed.
func (s *Store) saveLocked(sess *ConversationSession) {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		logging.Errorf("failed to encode session %s: %v", sess.SessionID, err)
		return
	}
	if err := os.WriteFile(s.sessionPath(sess.SessionID), data, 0o644); err != nil {
		logging.Errorf("failed to save session %s: %v", sess.SessionID, err)
	}
}

// load reads a persisted session record. A missing file is a quiet
// absence; a corrupted one is logged and treated as absent.
func (s *Store) load(id string) *ConversationSession {
	data, err := os.ReadFile(s.sessionPath(id))
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Errorf("failed to read session %s: %v", id, err)
		}
		return nil
	}
	var sess ConversationSession
	if err := json.Unmarshal(data, &sess); err != nil {
		logging.Warnf("corrupted session record %s, skipping: %v", id, err)
		return nil
	}
	return &sess
}
