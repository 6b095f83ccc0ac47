package sessions

import (
	"net/http"

	"github.com/LambertClark/multi-cloud-sre-agent/internal/httputil"
	"github.com/LambertClark/multi-cloud-sre-agent/internal/svc"
	"github.com/LambertClark/multi-cloud-sre-agent/internal/types"
)

// Get a context variable
func GetContextVariableHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.ContextVariableRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		if _, ok := svcCtx.Sessions.GetSession(req.SessionID); !ok {
			httputil.NotFound(w, "session not found")
			return
		}
		httputil.OkJSON(w, types.ContextVariableResponse{
			Key:   req.Key,
			Value: svcCtx.Sessions.GetContextVariable(req.SessionID, req.Key, nil),
		})
	}
}

// Set a context variable
func SetContextVariableHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.ContextVariableRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		if err := svcCtx.Sessions.SetContextVariable(req.SessionID, req.Key, req.Value); err != nil {
			writeStoreError(w, err)
			return
		}
		httputil.OkJSON(w, types.ContextVariableResponse{Key: req.Key, Value: req.Value})
	}
}

// Compress the session's history now; ?force=true skips the threshold
// check
func CompressSessionHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.CompressSessionRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		sess, ok := svcCtx.Sessions.GetSession(req.SessionID)
		if !ok {
			httputil.NotFound(w, "session not found")
			return
		}

		if !req.Force && !svcCtx.Compressor.ShouldCompress(sess.Messages) {
			httputil.OkJSON(w, types.CompressSessionResponse{
				Compressed:   false,
				MessageCount: len(sess.Messages),
			})
			return
		}

		original := len(sess.Messages)
		compressed := svcCtx.Compressor.CompressSession(r.Context(), sess)
		svcCtx.Sessions.ReplaceSession(compressed)

		httputil.OkJSON(w, types.CompressSessionResponse{
			Compressed:    true,
			MessageCount:  len(compressed.Messages),
			OriginalCount: original,
		})
	}
}
