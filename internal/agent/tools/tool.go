// Package tools implements the registry of agent-generated tools:
// versioned, quality-scored, searchable snippets of runnable code that
// the orchestrator can resolve by name instead of regenerating.
package tools

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"
)

// ToolStatus is the availability state of a registered tool.
type ToolStatus string

const (
	StatusActive     ToolStatus = "active"
	StatusDeprecated ToolStatus = "deprecated"
	StatusFailed     ToolStatus = "failed" // quality dropped below the floor
)

// ToolParameter describes one declared parameter of a generated tool.
type ToolParameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`
}

// ToolMetrics accumulates execution statistics for a tool. Only raw
// counters are stored; success rate and quality score are always
// derived on demand.
type ToolMetrics struct {
	TotalCalls           int        `json:"total_calls"`
	SuccessfulCalls      int        `json:"successful_calls"`
	FailedCalls          int        `json:"failed_calls"`
	AverageExecutionTime float64    `json:"average_execution_time"` // cumulative mean, seconds
	LastUsed             *time.Time `json:"last_used,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// SuccessRate returns successful/total, or 0 with no calls.
func (m *ToolMetrics) SuccessRate() float64 {
	if m.TotalCalls == 0 {
		return 0
	}
	return float64(m.SuccessfulCalls) / float64(m.TotalCalls)
}

// QualityScore is the 0-100 composite ranking metric:
//
//   - reliability: success rate weighted at 70
//   - usage: log10(calls+1)*10, capped at 20, so frequency pays off on
//     a diminishing curve
//   - speed: 10 at a 1-second mean, minus 2 per extra second, floored
//     at 0; a neutral 5 when no timing data exists
func (m *ToolMetrics) QualityScore() float64 {
	successScore := m.SuccessRate() * 70

	var frequencyScore float64
	if m.TotalCalls > 0 {
		frequencyScore = math.Min(20, math.Log10(float64(m.TotalCalls)+1)*10)
	}

	speedScore := 5.0
	if m.AverageExecutionTime > 0 {
		speedScore = math.Max(0, 10-(m.AverageExecutionTime-1)*2)
	}

	return successScore + frequencyScore + speedScore
}

// GeneratedTool is a reusable, agent-generated tool. The name is the
// registry's only key: a name maps to exactly one addressable tool,
// whose version advances as its code changes.
type GeneratedTool struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Code          string          `json:"code"`
	TestCode      string          `json:"test_code,omitempty"`
	Parameters    []ToolParameter `json:"parameters"`
	ReturnType    string          `json:"return_type"`
	CloudProvider string          `json:"cloud_provider"`
	Service       string          `json:"service"`
	Category      string          `json:"category"`
	Tags          []string        `json:"tags,omitempty"`
	Version       string          `json:"version"`
	Status        ToolStatus      `json:"status"`
	Metrics       ToolMetrics     `json:"metrics"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
}

// ToolID is the stable short identifier derived from name and version.
func (t *GeneratedTool) ToolID() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s", t.Name, t.Version)))
	return hex.EncodeToString(sum[:])[:16]
}

// CodeHash identifies the tool's source blob, for change detection.
func (t *GeneratedTool) CodeHash() string {
	sum := sha256.Sum256([]byte(t.Code))
	return hex.EncodeToString(sum[:])
}

// HasTag reports whether any of the wanted tags intersects the tool's
// tag set.
func (t *GeneratedTool) HasTag(wanted []string) bool {
	for _, w := range wanted {
		for _, tag := range t.Tags {
			if tag == w {
				return true
			}
		}
	}
	return false
}
