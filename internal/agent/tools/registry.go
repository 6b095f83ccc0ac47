package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/LambertClark/multi-cloud-sre-agent/internal/logging"
)

// ErrToolNotFound is returned when a named tool is not registered.
var ErrToolNotFound = errors.New("tool not found")

const (
	indexFileName = "tool_index.json"
	indexFormat   = "1.0"

	// defaultVersion seeds a first registration and serves as the
	// documented fallback when an existing tool carries an unparseable
	// version string.
	defaultVersion  = "1.0.0"
	fallbackVersion = "1.0.1"

	// Tools whose quality score falls below qualityFloor after more
	// than qualityMinCalls executions are forced into the failed state.
	qualityFloor    = 20.0
	qualityMinCalls = 10
)

// Registry owns the catalog of generated tools. The in-memory index is
// authoritative once loaded; every mutation rewrites the full on-disk
// index, a correctness-over-throughput choice appropriate for low call
// volume. All operations are safe for concurrent use; tools handed out
// by lookups and searches are snapshots, so later metric updates are
// only visible through a fresh lookup.
type Registry struct {
	dir string

	mu    sync.RWMutex
	tools map[string]*GeneratedTool
}

// NewRegistry opens (or creates) a tool registry rooted at dir. A
// corrupted index file is logged and treated as an empty registry,
// never as a fatal error.
func NewRegistry(dir string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create registry dir: %w", err)
	}
	r := &Registry{
		dir:   dir,
		tools: make(map[string]*GeneratedTool),
	}
	r.loadIndex()
	return r, nil
}

// RegisterResult reports the outcome of a registration call.
type RegisterResult struct {
	Success  bool   `json:"success"`
	Reason   string `json:"reason,omitempty"`
	ToolID   string `json:"tool_id"`
	ToolName string `json:"tool_name"`
	Version  string `json:"version"`
	IsUpdate bool   `json:"is_update,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Register adds a tool to the catalog or advances an existing one.
//
// Re-registering unchanged code without forceUpdate is an idempotence
// signal, not an error: the result carries Success=false with reason
// "unchanged" and the existing identity. Changed code (or forceUpdate)
// bumps the patch version; the new version fully replaces the current
// pointer for that name. An unparseable existing version falls back to
// a fixed default rather than failing the call.
func (r *Registry) Register(tool *GeneratedTool, forceUpdate bool) RegisterResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tool.Version == "" {
		tool.Version = defaultVersion
	}
	if tool.Status == "" {
		tool.Status = StatusActive
	}
	if tool.Metrics.CreatedAt.IsZero() {
		tool.Metrics.CreatedAt = time.Now()
	}

	isUpdate := false
	if existing, ok := r.tools[tool.Name]; ok {
		if existing.CodeHash() == tool.CodeHash() && !forceUpdate {
			return RegisterResult{
				Success:  false,
				Reason:   "unchanged",
				ToolID:   existing.ToolID(),
				ToolName: existing.Name,
				Version:  existing.Version,
				Message:  fmt.Sprintf("tool %q already registered with identical code", tool.Name),
			}
		}

		if v, err := ParseVersion(existing.Version); err != nil {
			logging.Warnf("tool %s has malformed version %q, falling back to %s: %v",
				tool.Name, existing.Version, fallbackVersion, err)
			tool.Version = fallbackVersion
		} else {
			tool.Version = v.BumpPatch().String()
		}
		isUpdate = true
	}

	r.tools[tool.Name] = copyTool(tool)
	r.saveToolCode(tool)
	r.saveIndex()

	verb := "registered"
	if isUpdate {
		verb = "updated"
	}
	logging.Infof("%s tool %s (v%s) [%s/%s]", verb, tool.Name, tool.Version, tool.CloudProvider, tool.Service)

	return RegisterResult{
		Success:  true,
		ToolID:   tool.ToolID(),
		ToolName: tool.Name,
		Version:  tool.Version,
		IsUpdate: isUpdate,
		Message:  fmt.Sprintf("tool %q %s", tool.Name, verb),
	}
}

// GetTool returns a snapshot of the current version of the named tool.
func (r *Registry) GetTool(name string) (*GeneratedTool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return copyTool(tool), true
}

// copyTool snapshots a tool so callers never share the registry's live
// record. The copy is shallow: the registry replaces rather than
// mutates the pointer-typed and slice-typed fields, so sharing their
// backing storage is safe.
func copyTool(tool *GeneratedTool) *GeneratedTool {
	cp := *tool
	return &cp
}

// SearchOptions narrows a tool search. All supplied filters are ANDed;
// zero values mean "no filter". Limit defaults to 10.
type SearchOptions struct {
	Query           string
	CloudProvider   string
	Service         string
	Category        string
	Tags            []string
	MinQualityScore float64
	Limit           int
}

// SearchTools returns active tools matching the options, ordered by
// descending quality score. Deprecated and failed tools are excluded
// unconditionally.
func (r *Registry) SearchTools(opts SearchOptions) []*GeneratedTool {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	query := strings.ToLower(opts.Query)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*GeneratedTool
	for _, tool := range r.tools {
		if tool.Status != StatusActive {
			continue
		}
		if tool.Metrics.QualityScore() < opts.MinQualityScore {
			continue
		}
		if opts.CloudProvider != "" && tool.CloudProvider != opts.CloudProvider {
			continue
		}
		if opts.Service != "" && tool.Service != opts.Service {
			continue
		}
		if opts.Category != "" && tool.Category != opts.Category {
			continue
		}
		if len(opts.Tags) > 0 && !tool.HasTag(opts.Tags) {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(tool.Name), query) &&
			!strings.Contains(strings.ToLower(tool.Description), query) {
			continue
		}
		results = append(results, copyTool(tool))
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Metrics.QualityScore() > results[j].Metrics.QualityScore()
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// UpdateMetrics records one execution outcome. The mean execution time
// is a running cumulative mean over all recorded calls, not a moving
// window. A tool whose quality score drops below the floor after
// enough calls is forced into the failed state; this operation never
// brings it back.
func (r *Registry) UpdateMetrics(name string, success bool, executionTime float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tool, ok := r.tools[name]
	if !ok {
		logging.Warnf("cannot update metrics for unknown tool %s", name)
		return fmt.Errorf("tool %s: %w", name, ErrToolNotFound)
	}

	m := &tool.Metrics
	m.TotalCalls++
	if success {
		m.SuccessfulCalls++
	} else {
		m.FailedCalls++
	}

	n := float64(m.TotalCalls)
	m.AverageExecutionTime = (m.AverageExecutionTime*(n-1) + executionTime) / n

	now := time.Now()
	m.LastUsed = &now

	if m.QualityScore() < qualityFloor && m.TotalCalls > qualityMinCalls {
		tool.Status = StatusFailed
		logging.Warnf("tool %s quality score fell below %.0f, marked failed", name, qualityFloor)
	}

	r.saveIndex()
	return nil
}

// ToolRanking is one entry of the statistics top list.
type ToolRanking struct {
	Name         string  `json:"name"`
	QualityScore float64 `json:"quality_score"`
	TotalCalls   int     `json:"total_calls"`
	SuccessRate  float64 `json:"success_rate"`
}

// Statistics aggregates the whole registry.
type Statistics struct {
	TotalTools          int            `json:"total_tools"`
	ActiveTools         int            `json:"active_tools"`
	DeprecatedTools     int            `json:"deprecated_tools"`
	FailedTools         int            `json:"failed_tools"`
	AverageQualityScore float64        `json:"average_quality_score"`
	ByProvider          map[string]int `json:"by_provider"`
	ByCategory          map[string]int `json:"by_category"`
	TopTools            []ToolRanking  `json:"top_tools"`
}

// GetStatistics computes registry statistics fresh from the in-memory
// index.
func (r *Registry) GetStatistics() Statistics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Statistics{
		TotalTools: len(r.tools),
		ByProvider: map[string]int{},
		ByCategory: map[string]int{},
	}

	var qualitySum float64
	all := make([]*GeneratedTool, 0, len(r.tools))
	for _, tool := range r.tools {
		all = append(all, tool)
		switch tool.Status {
		case StatusActive:
			stats.ActiveTools++
		case StatusDeprecated:
			stats.DeprecatedTools++
		case StatusFailed:
			stats.FailedTools++
		}
		stats.ByProvider[tool.CloudProvider]++
		stats.ByCategory[tool.Category]++
		qualitySum += tool.Metrics.QualityScore()
	}
	if stats.TotalTools > 0 {
		stats.AverageQualityScore = qualitySum / float64(stats.TotalTools)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].Metrics.QualityScore() > all[j].Metrics.QualityScore()
	})
	if len(all) > 10 {
		all = all[:10]
	}
	for _, tool := range all {
		stats.TopTools = append(stats.TopTools, ToolRanking{
			Name:         tool.Name,
			QualityScore: tool.Metrics.QualityScore(),
			TotalCalls:   tool.Metrics.TotalCalls,
			SuccessRate:  tool.Metrics.SuccessRate(),
		})
	}
	return stats
}

// indexRecord is the persisted form of one tool: every GeneratedTool
// field plus the derived identifiers and scores. The derived fields
// are written for readers of the file and ignored on load.
type indexRecord struct {
	GeneratedTool
	ToolID       string  `json:"tool_id"`
	CodeHash     string  `json:"code_hash"`
	SuccessRate  float64 `json:"success_rate"`
	QualityScore float64 `json:"quality_score"`
}

type indexFile struct {
	Version    string        `json:"version"`
	UpdatedAt  time.Time     `json:"updated_at"`
	TotalTools int           `json:"total_tools"`
	Tools      []indexRecord `json:"tools"`
}

func (r *Registry) indexPath() string {
	return filepath.Join(r.dir, indexFileName)
}

// loadIndex reads the registry index from disk. Missing and corrupted
// files both leave the registry empty; corruption is logged.
func (r *Registry) loadIndex() {
	data, err := os.ReadFile(r.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			logging.Infof("no tool index at %s, starting empty", r.indexPath())
			r.saveIndex()
			return
		}
		logging.Errorf("failed to read tool index: %v", err)
		return
	}

	var idx indexFile
	if err := json.Unmarshal(data, &idx); err != nil {
		logging.Warnf("corrupted tool index, starting empty: %v", err)
		return
	}
	for i := range idx.Tools {
		tool := idx.Tools[i].GeneratedTool
		r.tools[tool.Name] = &tool
	}
	logging.Infof("loaded %d tools", len(r.tools))
}

// saveIndex rewrites the full registry index. I/O failures are logged
// and swallowed; the in-memory index stays authoritative.
func (r *Registry) saveIndex() {
	idx := indexFile{
		Version:    indexFormat,
		UpdatedAt:  time.Now(),
		TotalTools: len(r.tools),
	}
	for _, tool := range r.tools {
		idx.Tools = append(idx.Tools, indexRecord{
			GeneratedTool: *tool,
			ToolID:        tool.ToolID(),
			CodeHash:      tool.CodeHash(),
			SuccessRate:   tool.Metrics.SuccessRate(),
			QualityScore:  tool.Metrics.QualityScore(),
		})
	}
	sort.Slice(idx.Tools, func(i, j int) bool { return idx.Tools[i].Name < idx.Tools[j].Name })

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		logging.Errorf("failed to encode tool index: %v", err)
		return
	}
	if err := os.WriteFile(r.indexPath(), data, 0o644); err != nil {
		logging.Errorf("failed to save tool index: %v", err)
	}
}

// saveToolCode writes the per-tool artifact files under
// <provider>/<service>/: the source with a human-readable header, and
// the test file when test code is present. Failures are logged and
// swallowed.
func (r *Registry) saveToolCode(tool *GeneratedTool) {
	toolDir := filepath.Join(r.dir, tool.CloudProvider, tool.Service)
	if err := os.MkdirAll(toolDir, 0o755); err != nil {
		logging.Errorf("failed to create tool dir %s: %v", toolDir, err)
		return
	}

	var sb strings.Builder
	sb.WriteString("\"\"\"\n")
	sb.WriteString(tool.Description)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Tool ID: %s\n", tool.ToolID())
	fmt.Fprintf(&sb, "Version: %s\n", tool.Version)
	fmt.Fprintf(&sb, "Generated: %s\n", tool.Metrics.CreatedAt.Format(time.RFC3339))
	sb.WriteString("\"\"\"\n\n")
	sb.WriteString(tool.Code)

	codePath := filepath.Join(toolDir, tool.Name+".py")
	if err := os.WriteFile(codePath, []byte(sb.String()), 0o644); err != nil {
		logging.Errorf("failed to save tool code %s: %v", codePath, err)
		return
	}

	if tool.TestCode != "" {
		testPath := filepath.Join(toolDir, "test_"+tool.Name+".py")
		if err := os.WriteFile(testPath, []byte(tool.TestCode), 0o644); err != nil {
			logging.Errorf("failed to save tool tests %s: %v", testPath, err)
		}
	}
}
