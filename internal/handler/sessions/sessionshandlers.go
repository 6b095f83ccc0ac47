package sessions

import (
	"errors"
	"net/http"

	"github.com/LambertClark/multi-cloud-sre-agent/internal/agent/session"
	"github.com/LambertClark/multi-cloud-sre-agent/internal/httputil"
	"github.com/LambertClark/multi-cloud-sre-agent/internal/svc"
	"github.com/LambertClark/multi-cloud-sre-agent/internal/types"
)

// Create a new session, or resume one when a session id is supplied
func CreateSessionHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.CreateSessionRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
		if req.UserID == "" {
			httputil.ErrorWithCode(w, http.StatusBadRequest, "user_id is required")
			return
		}

		var sess *session.ConversationSession
		if req.SessionID != "" {
			sess = svcCtx.Sessions.GetOrCreateSession(req.SessionID, req.UserID)
		} else {
			sess = svcCtx.Sessions.CreateSession(req.UserID, nil)
		}
		httputil.OkJSON(w, sess)
	}
}

// Get full session state
func GetSessionHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.GetSessionRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		sess, ok := svcCtx.Sessions.GetSession(req.SessionID)
		if !ok {
			httputil.NotFound(w, "session not found")
			return
		}
		httputil.OkJSON(w, sess)
	}
}

// List active session ids
func ListSessionsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.OkJSON(w, map[string]any{
			"sessions": svcCtx.Sessions.ListActiveSessions(),
		})
	}
}

// Clear a session and its persisted record
func DeleteSessionHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.GetSessionRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		svcCtx.Sessions.ClearSession(req.SessionID)
		httputil.OkJSON(w, types.DeleteSessionResponse{Success: true})
	}
}

// Get conversation history, optionally filtered by role
func GetMessagesHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.GetMessagesRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		if _, ok := svcCtx.Sessions.GetSession(req.SessionID); !ok {
			httputil.NotFound(w, "session not found")
			return
		}
		messages := svcCtx.Sessions.GetConversationHistory(req.SessionID, req.Limit, session.Role(req.Role))
		httputil.OkJSON(w, map[string]any{"messages": messages})
	}
}

// Append a message; history is compressed in place once it outgrows
// the configured thresholds
func AddMessageHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.AddMessageRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		role := session.Role(req.Role)
		switch role {
		case session.RoleUser, session.RoleAssistant, session.RoleSystem:
		default:
			httputil.ErrorWithCode(w, http.StatusBadRequest, "role must be user, assistant or system")
			return
		}
		if req.Content == "" {
			httputil.ErrorWithCode(w, http.StatusBadRequest, "content is required")
			return
		}

		if err := svcCtx.Sessions.AddMessage(req.SessionID, role, req.Content, req.Metadata); err != nil {
			writeStoreError(w, err)
			return
		}

		sess, _ := svcCtx.Sessions.GetSession(req.SessionID)
		compressed := false
		if sess != nil && svcCtx.Compressor.ShouldCompress(sess.Messages) {
			svcCtx.Sessions.ReplaceSession(svcCtx.Compressor.CompressSession(r.Context(), sess))
			sess, _ = svcCtx.Sessions.GetSession(req.SessionID)
			compressed = true
		}

		count := 0
		if sess != nil {
			count = len(sess.Messages)
		}
		httputil.OkJSON(w, types.AddMessageResponse{
			Success:      true,
			MessageCount: count,
			Compressed:   compressed,
		})
	}
}

// Get the conversation summary block
func GetSummaryHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.GetSessionRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		summary, ok := svcCtx.Sessions.GetConversationSummary(req.SessionID)
		if !ok {
			httputil.NotFound(w, "session not found")
			return
		}
		httputil.OkJSON(w, summary)
	}
}

// Aggregate statistics over all live sessions
func SessionStatsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.OkJSON(w, svcCtx.Sessions.GetSessionStats())
	}
}

// writeStoreError maps store errors onto HTTP status codes
func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, session.ErrTaskNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	httputil.Error(w, err)
}
