package handler

import (
	"net/http"
	"time"

	"github.com/LambertClark/multi-cloud-sre-agent/internal/httputil"
	"github.com/LambertClark/multi-cloud-sre-agent/internal/svc"
	"github.com/LambertClark/multi-cloud-sre-agent/internal/types"
)

const version = "1.0.0"

func HealthCheckHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.OkJSON(w, &types.HealthResponse{
			Status:    "healthy",
			Version:   version,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}
