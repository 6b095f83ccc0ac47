package sessions

import (
	"net/http"

	"github.com/LambertClark/multi-cloud-sre-agent/internal/agent/session"
	"github.com/LambertClark/multi-cloud-sre-agent/internal/httputil"
	"github.com/LambertClark/multi-cloud-sre-agent/internal/svc"
	"github.com/LambertClark/multi-cloud-sre-agent/internal/types"
)

// List session tasks; ?resumable=true narrows to failed and paused ones
func ListTasksHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.ListTasksRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		sess, ok := svcCtx.Sessions.GetSession(req.SessionID)
		if !ok {
			httputil.NotFound(w, "session not found")
			return
		}

		tasks := sess.Tasks
		if req.Resumable {
			tasks = svcCtx.Sessions.GetResumableTasks(req.SessionID)
		}
		httputil.OkJSON(w, map[string]any{"tasks": tasks})
	}
}

// Create a task in the session
func AddTaskHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.AddTaskRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
		if req.Description == "" {
			httputil.ErrorWithCode(w, http.StatusBadRequest, "description is required")
			return
		}

		task, err := svcCtx.Sessions.AddTask(req.SessionID, req.Description, req.TaskID, req.Metadata)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		httputil.OkJSON(w, task)
	}
}

// Update task status, result or error
func UpdateTaskHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.UpdateTaskRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		upd := session.TaskUpdate{Result: req.Result, Error: req.Error}
		if req.Status != "" {
			status := session.TaskStatus(req.Status)
			switch status {
			case session.TaskPending, session.TaskInProgress, session.TaskCompleted,
				session.TaskFailed, session.TaskPaused:
			default:
				httputil.ErrorWithCode(w, http.StatusBadRequest, "invalid task status")
				return
			}
			upd.Status = &status
		}

		task, err := svcCtx.Sessions.UpdateTask(req.SessionID, req.TaskID, upd)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		httputil.OkJSON(w, task)
	}
}

// Resume a failed or paused task; anything else is rejected
func ResumeTaskHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// reset_error defaults to true; only an explicit false in the
		// body preserves the task's error across a resume.
		req := types.ResumeTaskRequest{ResetError: true}
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		if _, ok := svcCtx.Sessions.GetSession(req.SessionID); !ok {
			httputil.NotFound(w, "session not found")
			return
		}
		_, ok := svcCtx.Sessions.ResumeTask(req.SessionID, req.TaskID, req.ResetError)
		httputil.OkJSON(w, types.TaskActionResponse{Success: ok, TaskID: req.TaskID})
	}
}

// Pause a task
func PauseTaskHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.ResumeTaskRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		if _, err := svcCtx.Sessions.PauseTask(req.SessionID, req.TaskID); err != nil {
			writeStoreError(w, err)
			return
		}
		httputil.OkJSON(w, types.TaskActionResponse{Success: true, TaskID: req.TaskID})
	}
}
