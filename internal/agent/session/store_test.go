package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/LambertClark/multi-cloud-sre-agent/internal/logging"
)

func TestMain(m *testing.M) {
	logging.Disable()
	os.Exit(m.Run())
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), opts...)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func TestCreateAndGetSession(t *testing.T) {
	store := newTestStore(t)

	sess := store.CreateSession("user-1", map[string]any{"channel": "cli"})
	if sess.SessionID == "" {
		t.Fatal("expected a session id")
	}
	if sess.UserID != "user-1" {
		t.Fatalf("expected user-1, got %q", sess.UserID)
	}
	if len(sess.Messages) != 0 || len(sess.Tasks) != 0 {
		t.Fatal("new session should have no messages or tasks")
	}

	got, ok := store.GetSession(sess.SessionID)
	if !ok {
		t.Fatal("expected session to be found")
	}
	if got.SessionID != sess.SessionID {
		t.Fatalf("expected %s, got %s", sess.SessionID, got.SessionID)
	}

	if _, ok := store.GetSession("no-such-session"); ok {
		t.Fatal("expected absent result for unknown id")
	}
}

func TestSessionPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	sess := store.CreateSession("user-7", map[string]any{"origin": "test"})
	if err := store.AddMessage(sess.SessionID, RoleUser, "check the db latency", map[string]any{"cloud_provider": "aws"}); err != nil {
		t.Fatalf("failed to add message: %v", err)
	}
	task, err := store.AddTask(sess.SessionID, "investigate latency", "task-1", nil)
	if err != nil {
		t.Fatalf("failed to add task: %v", err)
	}
	inProgress := TaskInProgress
	if _, err := store.UpdateTask(sess.SessionID, task.TaskID, TaskUpdate{Status: &inProgress, Result: "partial"}); err != nil {
		t.Fatalf("failed to update task: %v", err)
	}
	if err := store.SetContextVariable(sess.SessionID, "region", "us-east-1"); err != nil {
		t.Fatalf("failed to set context variable: %v", err)
	}

	orig, ok := store.GetSession(sess.SessionID)
	if !ok {
		t.Fatal("expected session to be live")
	}

	// A second store on the same directory simulates a cold start where
	// disk is authoritative.
	reloaded, err := NewStore(dir)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	got, ok := reloaded.GetSession(sess.SessionID)
	if !ok {
		t.Fatal("expected session to load from disk")
	}

	if got.UserID != "user-7" {
		t.Fatalf("user id lost: %q", got.UserID)
	}
	if len(got.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(got.Messages))
	}
	msg := got.Messages[0]
	if msg.Role != RoleUser || msg.Content != "check the db latency" {
		t.Fatalf("message fields lost: %+v", msg)
	}
	if msg.Metadata["cloud_provider"] != "aws" {
		t.Fatalf("message metadata lost: %+v", msg.Metadata)
	}
	if !msg.Timestamp.Equal(orig.Messages[0].Timestamp) {
		t.Fatalf("timestamp precision lost: %v != %v", msg.Timestamp, orig.Messages[0].Timestamp)
	}
	if len(got.Tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(got.Tasks))
	}
	if got.Tasks[0].Status != TaskInProgress {
		t.Fatalf("task status lost: %s", got.Tasks[0].Status)
	}
	if got.Tasks[0].Result != "partial" {
		t.Fatalf("task result lost: %v", got.Tasks[0].Result)
	}
	if got.ContextVariables["region"] != "us-east-1" {
		t.Fatalf("context variables lost: %+v", got.ContextVariables)
	}
	if !got.CreatedAt.Equal(sess.CreatedAt) {
		t.Fatalf("created_at precision lost: %v != %v", got.CreatedAt, sess.CreatedAt)
	}
}

func TestCorruptedSessionFileIsAbsent(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("failed to write corrupt file: %v", err)
	}

	if _, ok := store.GetSession("broken"); ok {
		t.Fatal("corrupted record should be treated as absent")
	}
}

func TestSessionExpiry(t *testing.T) {
	store := newTestStore(t, WithTTL(30*time.Millisecond))

	sess := store.CreateSession("", nil)
	if _, ok := store.GetSession(sess.SessionID); !ok {
		t.Fatal("fresh session should be live")
	}

	time.Sleep(50 * time.Millisecond)

	if _, ok := store.GetSession(sess.SessionID); ok {
		t.Fatal("idle session past TTL should be treated as absent")
	}
	if err := store.AddMessage(sess.SessionID, RoleUser, "hello", nil); err == nil {
		t.Fatal("mutating an expired session should fail")
	}
}

func TestGetOrCreateSession(t *testing.T) {
	store := newTestStore(t)

	sess := store.CreateSession("user-2", nil)
	resumed := store.GetOrCreateSession(sess.SessionID, "user-2")
	if resumed.SessionID != sess.SessionID {
		t.Fatalf("expected resume of %s, got %s", sess.SessionID, resumed.SessionID)
	}

	fresh := store.GetOrCreateSession("missing-id", "user-2")
	if fresh.SessionID == sess.SessionID {
		t.Fatal("expected a fresh session for an unknown id")
	}
	if fresh.UserID != "user-2" {
		t.Fatalf("expected user-2, got %q", fresh.UserID)
	}
}

func TestMutationsRequireLiveSession(t *testing.T) {
	store := newTestStore(t)

	if err := store.AddMessage("ghost", RoleUser, "hi", nil); err == nil {
		t.Fatal("AddMessage on a missing session should fail")
	}
	if _, err := store.AddTask("ghost", "desc", "", nil); err == nil {
		t.Fatal("AddTask on a missing session should fail")
	}
	if err := store.SetContextVariable("ghost", "k", "v"); err == nil {
		t.Fatal("SetContextVariable on a missing session should fail")
	}

	sess := store.CreateSession("", nil)
	done := TaskCompleted
	if _, err := store.UpdateTask(sess.SessionID, "no-task", TaskUpdate{Status: &done}); err == nil {
		t.Fatal("UpdateTask on an unknown task should fail")
	}
}

func TestConversationHistoryFilterAndLimit(t *testing.T) {
	store := newTestStore(t)
	sess := store.CreateSession("", nil)

	for i := 0; i < 4; i++ {
		if err := store.AddMessage(sess.SessionID, RoleUser, "question", nil); err != nil {
			t.Fatalf("failed to add message: %v", err)
		}
		if err := store.AddMessage(sess.SessionID, RoleAssistant, "answer", nil); err != nil {
			t.Fatalf("failed to add message: %v", err)
		}
	}

	all := store.GetConversationHistory(sess.SessionID, 0, "")
	if len(all) != 8 {
		t.Fatalf("expected 8 messages, got %d", len(all))
	}

	users := store.GetConversationHistory(sess.SessionID, 0, RoleUser)
	if len(users) != 4 {
		t.Fatalf("expected 4 user messages, got %d", len(users))
	}
	for _, msg := range users {
		if msg.Role != RoleUser {
			t.Fatalf("role filter leaked %s", msg.Role)
		}
	}

	tail := store.GetConversationHistory(sess.SessionID, 3, "")
	if len(tail) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(tail))
	}
	if tail[len(tail)-1].Role != RoleAssistant {
		t.Fatal("limit should keep the most recent messages")
	}
}

func TestTaskLifecycle(t *testing.T) {
	store := newTestStore(t)
	sess := store.CreateSession("", nil)

	task, err := store.AddTask(sess.SessionID, "restart the pod", "", nil)
	if err != nil {
		t.Fatalf("failed to add task: %v", err)
	}
	if task.Status != TaskPending {
		t.Fatalf("new task should be pending, got %s", task.Status)
	}

	failed := TaskFailed
	if _, err := store.UpdateTask(sess.SessionID, task.TaskID, TaskUpdate{Status: &failed, Error: "timeout"}); err != nil {
		t.Fatalf("failed to fail task: %v", err)
	}

	resumable := store.GetResumableTasks(sess.SessionID)
	if len(resumable) != 1 || resumable[0].TaskID != task.TaskID {
		t.Fatalf("expected the failed task to be resumable, got %+v", resumable)
	}

	resumed, ok := store.ResumeTask(sess.SessionID, task.TaskID, true)
	if !ok {
		t.Fatal("resuming a failed task should succeed")
	}
	if resumed.Status != TaskPending {
		t.Fatalf("resumed task should be pending, got %s", resumed.Status)
	}
	if resumed.Error != "" {
		t.Fatalf("reset_error should clear the error, got %q", resumed.Error)
	}
}

func TestResumeCompletedTaskRejected(t *testing.T) {
	store := newTestStore(t)
	sess := store.CreateSession("", nil)

	task, err := store.AddTask(sess.SessionID, "scale up", "", nil)
	if err != nil {
		t.Fatalf("failed to add task: %v", err)
	}
	done := TaskCompleted
	if _, err := store.UpdateTask(sess.SessionID, task.TaskID, TaskUpdate{Status: &done}); err != nil {
		t.Fatalf("failed to complete task: %v", err)
	}

	if _, ok := store.ResumeTask(sess.SessionID, task.TaskID, true); ok {
		t.Fatal("a completed task must not be resumable")
	}
	got, _ := store.GetSession(sess.SessionID)
	if got.Task(task.TaskID).Status != TaskCompleted {
		t.Fatal("rejected resume must not change state")
	}
}

func TestPauseTaskIsUnguarded(t *testing.T) {
	store := newTestStore(t)
	sess := store.CreateSession("", nil)

	task, err := store.AddTask(sess.SessionID, "rotate keys", "", nil)
	if err != nil {
		t.Fatalf("failed to add task: %v", err)
	}
	done := TaskCompleted
	if _, err := store.UpdateTask(sess.SessionID, task.TaskID, TaskUpdate{Status: &done}); err != nil {
		t.Fatalf("failed to complete task: %v", err)
	}

	paused, err := store.PauseTask(sess.SessionID, task.TaskID)
	if err != nil {
		t.Fatalf("pause is deliberately unguarded and should not fail: %v", err)
	}
	if paused.Status != TaskPaused {
		t.Fatalf("expected paused, got %s", paused.Status)
	}
}

func TestContextVariables(t *testing.T) {
	store := newTestStore(t)
	sess := store.CreateSession("", nil)

	if got := store.GetContextVariable(sess.SessionID, "region", "default"); got != "default" {
		t.Fatalf("expected default for unset key, got %v", got)
	}
	if err := store.SetContextVariable(sess.SessionID, "region", "eu-west-1"); err != nil {
		t.Fatalf("failed to set variable: %v", err)
	}
	if got := store.GetContextVariable(sess.SessionID, "region", "default"); got != "eu-west-1" {
		t.Fatalf("expected eu-west-1, got %v", got)
	}
	if got := store.GetContextVariable("ghost", "region", "fallback"); got != "fallback" {
		t.Fatalf("absent session should yield the default, got %v", got)
	}
}

func TestConversationSummaryAndStats(t *testing.T) {
	store := newTestStore(t)
	sess := store.CreateSession("", nil)

	for i := 0; i < 3; i++ {
		if err := store.AddMessage(sess.SessionID, RoleUser, "q", nil); err != nil {
			t.Fatalf("failed to add message: %v", err)
		}
	}
	if err := store.AddMessage(sess.SessionID, RoleAssistant, "a", nil); err != nil {
		t.Fatalf("failed to add message: %v", err)
	}

	taskA, _ := store.AddTask(sess.SessionID, "a", "", nil)
	taskB, _ := store.AddTask(sess.SessionID, "b", "", nil)
	done := TaskCompleted
	failed := TaskFailed
	if _, err := store.UpdateTask(sess.SessionID, taskA.TaskID, TaskUpdate{Status: &done}); err != nil {
		t.Fatalf("failed to update task: %v", err)
	}
	if _, err := store.UpdateTask(sess.SessionID, taskB.TaskID, TaskUpdate{Status: &failed}); err != nil {
		t.Fatalf("failed to update task: %v", err)
	}

	summary, ok := store.GetConversationSummary(sess.SessionID)
	if !ok {
		t.Fatal("expected a summary")
	}
	if summary.TotalMessages != 4 || summary.UserMessages != 3 || summary.AssistantMessages != 1 {
		t.Fatalf("wrong message counts: %+v", summary)
	}
	if summary.TotalTasks != 2 || summary.CompletedTasks != 1 || summary.FailedTasks != 1 || summary.PendingTasks != 0 {
		t.Fatalf("wrong task counts: %+v", summary)
	}

	stats := store.GetSessionStats()
	if stats.ActiveSessions != 1 {
		t.Fatalf("expected 1 active session, got %d", stats.ActiveSessions)
	}
	if stats.TotalMessages != 4 || stats.TotalTasks != 2 {
		t.Fatalf("wrong global counts: %+v", stats)
	}
	if stats.SuccessRate != 0.5 {
		t.Fatalf("expected success rate 0.5, got %v", stats.SuccessRate)
	}
}

func TestGetSessionReturnsSnapshot(t *testing.T) {
	store := newTestStore(t)
	sess := store.CreateSession("user-3", nil)

	snap, ok := store.GetSession(sess.SessionID)
	if !ok {
		t.Fatal("expected session to be found")
	}
	if err := store.AddMessage(sess.SessionID, RoleUser, "disk pressure on node-4", nil); err != nil {
		t.Fatalf("failed to add message: %v", err)
	}
	if len(snap.Messages) != 0 {
		t.Fatal("a snapshot must not see writes made after it was taken")
	}

	// Mutating a snapshot must not leak back into the store.
	snap.Messages = append(snap.Messages, Message{Role: RoleUser, Content: "rogue"})
	snap.ContextVariables["region"] = "injected"
	got, _ := store.GetSession(sess.SessionID)
	if len(got.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(got.Messages))
	}
	if _, ok := got.ContextVariables["region"]; ok {
		t.Fatal("snapshot mutation leaked into the store")
	}
}

func TestTaskResultsAreSnapshots(t *testing.T) {
	store := newTestStore(t)
	sess := store.CreateSession("", nil)

	task, err := store.AddTask(sess.SessionID, "rollback deploy", "", nil)
	if err != nil {
		t.Fatalf("failed to add task: %v", err)
	}
	task.Status = TaskCompleted
	task.Result = "rogue"

	got, _ := store.GetSession(sess.SessionID)
	if got.Task(task.TaskID).Status != TaskPending {
		t.Fatal("mutating a returned task must not change the store")
	}
	if got.Task(task.TaskID).Result != nil {
		t.Fatal("mutating a returned task must not change the store")
	}
}

func TestClearSession(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	sess := store.CreateSession("", nil)
	path := filepath.Join(dir, sess.SessionID+".json")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected persisted file: %v", err)
	}

	store.ClearSession(sess.SessionID)
	if _, ok := store.GetSession(sess.SessionID); ok {
		t.Fatal("cleared session should be absent")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("cleared session file should be deleted")
	}
}
