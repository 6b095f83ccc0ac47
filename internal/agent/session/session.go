// Package session implements the conversation session and task store.
// A session owns an append-only message log, the tasks spawned from the
// conversation, and a map of context variables. Sessions persist as one
// JSON file each; the Store in store.go is the only writer.
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskPaused     TaskStatus = "paused"
)

// Message is a single conversation turn. Messages are immutable once
// appended; compression replaces a range of them with a synthetic
// system-role summary but never reorders the survivors.
type Message struct {
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewMessage builds a message stamped with the current time.
func NewMessage(role Role, content string, metadata map[string]any) Message {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}

// TaskContext tracks one unit of work inside a session.
type TaskContext struct {
	TaskID      string         `json:"task_id"`
	Description string         `json:"description"`
	Status      TaskStatus     `json:"status"`
	Result      any            `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ConversationSession is a single user-facing conversation.
type ConversationSession struct {
	SessionID        string         `json:"session_id"`
	UserID           string         `json:"user_id,omitempty"`
	Messages         []Message      `json:"messages"`
	Tasks            []TaskContext  `json:"tasks"`
	ContextVariables map[string]any `json:"context_variables"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// NewSession creates an empty session with a fresh id.
func NewSession(userID string, metadata map[string]any) *ConversationSession {
	if metadata == nil {
		metadata = map[string]any{}
	}
	now := time.Now()
	return &ConversationSession{
		SessionID:        uuid.New().String(),
		UserID:           userID,
		Messages:         []Message{},
		Tasks:            []TaskContext{},
		ContextVariables: map[string]any{},
		CreatedAt:        now,
		UpdatedAt:        now,
		Metadata:         metadata,
	}
}

// AddMessage appends a message and bumps the session timestamp.
func (s *ConversationSession) AddMessage(role Role, content string, metadata map[string]any) {
	s.Messages = append(s.Messages, NewMessage(role, content, metadata))
	s.UpdatedAt = time.Now()
}

// AddTask appends a new pending task. If taskID is empty a UUID is
// generated.
func (s *ConversationSession) AddTask(description, taskID string, metadata map[string]any) *TaskContext {
	if taskID == "" {
		taskID = uuid.New().String()
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	now := time.Now()
	s.Tasks = append(s.Tasks, TaskContext{
		TaskID:      taskID,
		Description: description,
		Status:      TaskPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		Metadata:    metadata,
	})
	s.UpdatedAt = now
	return &s.Tasks[len(s.Tasks)-1]
}

// TaskUpdate carries the optional fields of an UpdateTask call.
// A nil Status leaves the status untouched, a nil Result leaves the
// result untouched, and an empty Error leaves the error untouched.
type TaskUpdate struct {
	Status *TaskStatus
	Result any
	Error  string
}

// UpdateTask applies an update to the task with the given id.
func (s *ConversationSession) UpdateTask(taskID string, upd TaskUpdate) (*TaskContext, error) {
	for i := range s.Tasks {
		task := &s.Tasks[i]
		if task.TaskID != taskID {
			continue
		}
		if upd.Status != nil {
			task.Status = *upd.Status
		}
		if upd.Result != nil {
			task.Result = upd.Result
		}
		if upd.Error != "" {
			task.Error = upd.Error
		}
		now := time.Now()
		task.UpdatedAt = now
		s.UpdatedAt = now
		return task, nil
	}
	return nil, fmt.Errorf("task %s: %w", taskID, ErrTaskNotFound)
}

// Task returns the task with the given id, or nil.
func (s *ConversationSession) Task(taskID string) *TaskContext {
	for i := range s.Tasks {
		if s.Tasks[i].TaskID == taskID {
			return &s.Tasks[i]
		}
	}
	return nil
}

// RecentMessages returns the last n messages.
func (s *ConversationSession) RecentMessages(n int) []Message {
	if n <= 0 || n >= len(s.Messages) {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}

// PendingTasks returns all tasks still in the pending state.
func (s *ConversationSession) PendingTasks() []TaskContext {
	var pending []TaskContext
	for _, task := range s.Tasks {
		if task.Status == TaskPending {
			pending = append(pending, task)
		}
	}
	return pending
}

// ActiveContext is the working set an orchestrator needs to continue a
// conversation: the most recent messages, the tasks still waiting, and
// the accumulated context variables.
type ActiveContext struct {
	RecentMessages   []Message      `json:"recent_messages"`
	PendingTasks     []TaskContext  `json:"pending_tasks"`
	ContextVariables map[string]any `json:"context_variables"`
}

// GetActiveContext returns the session's active working set.
func (s *ConversationSession) GetActiveContext() ActiveContext {
	return ActiveContext{
		RecentMessages:   s.RecentMessages(5),
		PendingTasks:     s.PendingTasks(),
		ContextVariables: s.ContextVariables,
	}
}

// Copy returns a copy of the session whose message list, task list and
// maps are independent of the receiver. Task results and metadata
// values are shared; the containers are not.
func (s *ConversationSession) Copy() *ConversationSession {
	cp := *s
	cp.Messages = append([]Message(nil), s.Messages...)
	cp.Tasks = append([]TaskContext(nil), s.Tasks...)
	cp.ContextVariables = make(map[string]any, len(s.ContextVariables))
	for k, v := range s.ContextVariables {
		cp.ContextVariables[k] = v
	}
	cp.Metadata = make(map[string]any, len(s.Metadata))
	for k, v := range s.Metadata {
		cp.Metadata[k] = v
	}
	return &cp
}
