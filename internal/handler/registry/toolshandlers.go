package registry

import (
	"errors"
	"net/http"
	"strings"

	"github.com/LambertClark/multi-cloud-sre-agent/internal/agent/tools"
	"github.com/LambertClark/multi-cloud-sre-agent/internal/httputil"
	"github.com/LambertClark/multi-cloud-sre-agent/internal/svc"
	"github.com/LambertClark/multi-cloud-sre-agent/internal/types"
)

// Register a generated tool, or advance an existing one
func RegisterToolHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.RegisterToolRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
		if req.Name == "" || req.Code == "" {
			httputil.ErrorWithCode(w, http.StatusBadRequest, "name and code are required")
			return
		}
		if req.CloudProvider == "" || req.Service == "" {
			httputil.ErrorWithCode(w, http.StatusBadRequest, "cloud_provider and service are required")
			return
		}

		params := make([]tools.ToolParameter, 0, len(req.Parameters))
		for _, p := range req.Parameters {
			params = append(params, tools.ToolParameter{
				Name:        p.Name,
				Type:        p.Type,
				Description: p.Description,
				Required:    p.Required,
				Default:     p.Default,
			})
		}

		result := svcCtx.Registry.Register(&tools.GeneratedTool{
			Name:          req.Name,
			Description:   req.Description,
			Code:          req.Code,
			TestCode:      req.TestCode,
			Parameters:    params,
			ReturnType:    req.ReturnType,
			CloudProvider: req.CloudProvider,
			Service:       req.Service,
			Category:      req.Category,
			Tags:          req.Tags,
			Metadata:      req.Metadata,
		}, req.ForceUpdate)
		httputil.OkJSON(w, result)
	}
}

// Search the catalog; all filters are optional and ANDed
func SearchToolsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.SearchToolsRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		var tags []string
		if req.Tags != "" {
			tags = strings.Split(req.Tags, ",")
		}
		results := svcCtx.Registry.SearchTools(tools.SearchOptions{
			Query:           req.Query,
			CloudProvider:   req.CloudProvider,
			Service:         req.Service,
			Category:        req.Category,
			Tags:            tags,
			MinQualityScore: req.MinQuality,
			Limit:           req.Limit,
		})
		httputil.OkJSON(w, map[string]any{"tools": results})
	}
}

// Get a single tool by name
func GetToolHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.GetToolRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		tool, ok := svcCtx.Registry.GetTool(req.Name)
		if !ok {
			httputil.NotFound(w, "tool not found")
			return
		}
		httputil.OkJSON(w, tool)
	}
}

// Record one execution outcome for a tool
func UpdateToolMetricsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.UpdateToolMetricsRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		if err := svcCtx.Registry.UpdateMetrics(req.Name, req.Success, req.ExecutionTime); err != nil {
			if errors.Is(err, tools.ErrToolNotFound) {
				httputil.NotFound(w, err.Error())
				return
			}
			httputil.Error(w, err)
			return
		}

		tool, _ := svcCtx.Registry.GetTool(req.Name)
		httputil.OkJSON(w, types.UpdateToolMetricsResponse{
			Success: true,
			Name:    req.Name,
			Status:  string(tool.Status),
		})
	}
}

// Registry-wide statistics
func ToolStatsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.OkJSON(w, svcCtx.Registry.GetStatistics())
	}
}
