package compress

import (
	"strings"

	"github.com/LambertClark/multi-cloud-sre-agent/internal/agent/session"
)

// Declared context-variable keys recognized in message metadata.
// Anything else must use the ContextKeyPrefix namespace; undeclared
// bare keys are ignored so ad hoc metadata cannot silently collide
// with context variables.
const (
	KeyCloudProvider = "cloud_provider"
	KeyService       = "service"
	KeyBusinessName  = "business_name"
)

// ContextKeyPrefix marks a metadata key as a context variable; the
// prefix is stripped before storage ("ctx_region" -> "region").
const ContextKeyPrefix = "ctx_"

// ExtractContextVariables scans message metadata for the declared keys
// and the ContextKeyPrefix namespace. Later messages overwrite earlier
// ones for the same key; there is no merging beyond last-wins.
func ExtractContextVariables(messages []session.Message) map[string]any {
	context := map[string]any{}

	for _, msg := range messages {
		if len(msg.Metadata) == 0 {
			continue
		}
		for _, key := range []string{KeyCloudProvider, KeyService, KeyBusinessName} {
			if value, ok := msg.Metadata[key]; ok {
				context[key] = value
			}
		}
		for key, value := range msg.Metadata {
			if strings.HasPrefix(key, ContextKeyPrefix) {
				context[strings.TrimPrefix(key, ContextKeyPrefix)] = value
			}
		}
	}

	return context
}
