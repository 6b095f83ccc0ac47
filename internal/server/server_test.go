package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LambertClark/multi-cloud-sre-agent/internal/config"
	"github.com/LambertClark/multi-cloud-sre-agent/internal/logging"
	"github.com/LambertClark/multi-cloud-sre-agent/internal/svc"
	"github.com/LambertClark/multi-cloud-sre-agent/internal/types"
)

func TestMain(m *testing.M) {
	logging.Disable()
	os.Exit(m.Run())
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()

	svcCtx, err := svc.NewServiceContext(cfg)
	require.NoError(t, err)

	ts := httptest.NewServer(NewRouter(svcCtx, Options{Quiet: true}))
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func createSession(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	var sess struct {
		SessionID string `json:"session_id"`
	}
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/sessions",
		map[string]string{"user_id": "sre-1"}, &sess)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, sess.SessionID)
	return sess.SessionID
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	var health types.HealthResponse
	resp := doJSON(t, http.MethodGet, ts.URL+"/health", nil, &health)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", health.Status)
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)

	var added types.AddMessageResponse
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/sessions/"+id+"/messages",
		map[string]string{"role": "user", "content": "the payment api is down"}, &added)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, added.Success)
	assert.Equal(t, 1, added.MessageCount)

	var history struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/sessions/"+id+"/messages", nil, &history)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, history.Messages, 1)
	assert.Equal(t, "user", history.Messages[0].Role)

	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/sessions/"+id, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/sessions/"+id, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAddMessageRejectsBadRole(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/sessions/"+id+"/messages",
		map[string]string{"role": "robot", "content": "hi"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTaskRoutes(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)

	var task struct {
		TaskID string `json:"task_id"`
		Status string `json:"status"`
	}
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/sessions/"+id+"/tasks",
		map[string]string{"description": "restart payment pods"}, &task)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, task.TaskID)
	assert.Equal(t, "pending", task.Status)

	taskURL := ts.URL + "/api/sessions/" + id + "/tasks/" + task.TaskID
	resp = doJSON(t, http.MethodPatch, taskURL,
		map[string]any{"status": "failed", "error": "kubectl timeout"}, &task)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "failed", task.Status)

	var list struct {
		Tasks []struct {
			TaskID string `json:"task_id"`
		} `json:"tasks"`
	}
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/sessions/"+id+"/tasks?resumable=true", nil, &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list.Tasks, 1)

	var action types.TaskActionResponse
	resp = doJSON(t, http.MethodPost, taskURL+"/resume",
		map[string]bool{"reset_error": true}, &action)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, action.Success)

	// Resuming a pending task is rejected.
	resp = doJSON(t, http.MethodPost, taskURL+"/resume", nil, &action)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, action.Success)

	resp = doJSON(t, http.MethodPost, taskURL+"/pause", nil, &action)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, action.Success)

	resp = doJSON(t, http.MethodPatch, taskURL, map[string]string{"status": "sideways"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestResumeWithoutBodyClearsError(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)

	var task struct {
		TaskID string `json:"task_id"`
	}
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/sessions/"+id+"/tasks",
		map[string]string{"description": "drain node"}, &task)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	taskURL := ts.URL + "/api/sessions/" + id + "/tasks/" + task.TaskID
	resp = doJSON(t, http.MethodPatch, taskURL,
		map[string]any{"status": "failed", "error": "kubectl timeout"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var action types.TaskActionResponse
	resp = doJSON(t, http.MethodPost, taskURL+"/resume", nil, &action)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, action.Success)

	var list struct {
		Tasks []struct {
			TaskID string `json:"task_id"`
			Status string `json:"status"`
			Error  string `json:"error"`
		} `json:"tasks"`
	}
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/sessions/"+id+"/tasks", nil, &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list.Tasks, 1)
	assert.Equal(t, "pending", list.Tasks[0].Status)
	assert.Empty(t, list.Tasks[0].Error, "a bodyless resume clears the error by default")
}

func TestResumeCanKeepError(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)

	var task struct {
		TaskID string `json:"task_id"`
	}
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/sessions/"+id+"/tasks",
		map[string]string{"description": "drain node"}, &task)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	taskURL := ts.URL + "/api/sessions/" + id + "/tasks/" + task.TaskID
	resp = doJSON(t, http.MethodPatch, taskURL,
		map[string]any{"status": "failed", "error": "kubectl timeout"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var action types.TaskActionResponse
	resp = doJSON(t, http.MethodPost, taskURL+"/resume",
		map[string]bool{"reset_error": false}, &action)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, action.Success)

	var list struct {
		Tasks []struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		} `json:"tasks"`
	}
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/sessions/"+id+"/tasks", nil, &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list.Tasks, 1)
	assert.Equal(t, "pending", list.Tasks[0].Status)
	assert.Equal(t, "kubectl timeout", list.Tasks[0].Error)
}

func TestContextVariableRoutes(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)

	var v types.ContextVariableResponse
	resp := doJSON(t, http.MethodPut, ts.URL+"/api/sessions/"+id+"/context/cloud_provider",
		map[string]string{"value": "aws"}, &v)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "aws", v.Value)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/sessions/"+id+"/context/cloud_provider", nil, &v)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cloud_provider", v.Key)
	assert.Equal(t, "aws", v.Value)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/sessions/missing/context/k", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCompressRoute(t *testing.T) {
	ts := newTestServer(t)
	id := createSession(t, ts)

	for i := 0; i < 4; i++ {
		resp := doJSON(t, http.MethodPost, ts.URL+"/api/sessions/"+id+"/messages",
			map[string]string{"role": "user", "content": fmt.Sprintf("message %d", i)}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	var res types.CompressSessionResponse
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/sessions/"+id+"/compress", nil, &res)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, res.Compressed, "below thresholds without force")

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/sessions/"+id+"/compress?force=true", nil, &res)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, res.Compressed)
	assert.Equal(t, 4, res.OriginalCount)
}

func TestToolRoutes(t *testing.T) {
	ts := newTestServer(t)

	reg := types.RegisterToolRequest{
		Name:          "ec2_health",
		Description:   "list unhealthy ec2 instances",
		Code:          "def run(): pass",
		CloudProvider: "aws",
		Service:       "ec2",
		Category:      "query",
		Tags:          []string{"ec2"},
	}
	var result struct {
		Success bool   `json:"success"`
		Reason  string `json:"reason"`
		Version string `json:"version"`
	}
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/tools", reg, &result)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, result.Success)
	assert.Equal(t, "1.0.0", result.Version)

	// Identical re-registration is the idempotence signal.
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/tools", reg, &result)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, result.Success)
	assert.Equal(t, "unchanged", result.Reason)

	var search struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/tools?provider=aws&query=unhealthy", nil, &search)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, search.Tools, 1)
	assert.Equal(t, "ec2_health", search.Tools[0].Name)

	var metrics types.UpdateToolMetricsResponse
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/tools/ec2_health/metrics",
		map[string]any{"success": true, "execution_time": 0.4}, &metrics)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, metrics.Success)
	assert.Equal(t, "active", metrics.Status)

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/tools/ghost/metrics",
		map[string]any{"success": true, "execution_time": 0.4}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var stats struct {
		TotalTools int `json:"total_tools"`
	}
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/stats/tools", nil, &stats)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, stats.TotalTools)
}

func TestRegisterToolValidation(t *testing.T) {
	ts := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/tools",
		map[string]string{"name": "incomplete"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
