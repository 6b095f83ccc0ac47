// Package compress implements the adaptive context-compression policy.
// When a conversation grows past a message-count or token-budget
// trigger, everything but the most recent messages is folded into a
// single synthetic system message by a text-generation provider, with
// a deterministic local fallback when the provider is unavailable.
package compress

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/LambertClark/multi-cloud-sre-agent/internal/agent/ai"
	"github.com/LambertClark/multi-cloud-sre-agent/internal/agent/session"
	"github.com/LambertClark/multi-cloud-sre-agent/internal/logging"
)

// Config holds the compression thresholds.
type Config struct {
	MaxMessages    int `yaml:"max_messages"`    // most messages kept overall
	MaxTokens      int `yaml:"max_tokens"`      // estimated token budget
	KeepRecent     int `yaml:"keep_recent"`     // tail always kept verbatim
	SummaryTrigger int `yaml:"summary_trigger"` // message count that triggers a summary
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		MaxMessages:    20,
		MaxTokens:      4000,
		KeepRecent:     5,
		SummaryTrigger: 15,
	}
}

// bulkTokensPerMessage is the flat per-message estimate used by the
// bulk trigger check. Individual texts go through EstimateTokens.
const bulkTokensPerMessage = 200

// summarizeTimeout bounds the provider call; on expiry the local
// fallback summary is used.
const summarizeTimeout = 60 * time.Second

const summarizeTemperature = 0.3

// Metadata keys carried by the synthetic summary message.
const (
	MetaCompressed    = "compressed"
	MetaOriginalCount = "original_count"
)

const summarySystemPrompt = `You are an expert conversation summarizer. Summarize the key information in the following conversation.

Requirements:
1. Extract the user's main needs and intent
2. List completed tasks and their results
3. Record important context (business names, resource IDs, parameters)
4. Keep track of pending work
5. Be concise; stay under 300 words

Format:
**User needs**: ...
**Completed tasks**: ...
**Important context**: ...
**Pending tasks**: ...`

// Compressor shrinks conversation histories to fit a context budget.
type Compressor struct {
	config   Config
	provider ai.Provider
}

// New creates a compressor. provider may be nil, in which case every
// summary uses the local fallback.
func New(config Config, provider ai.Provider) *Compressor {
	if config.KeepRecent <= 0 {
		config.KeepRecent = DefaultConfig().KeepRecent
	}
	if config.SummaryTrigger <= 0 {
		config.SummaryTrigger = DefaultConfig().SummaryTrigger
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultConfig().MaxTokens
	}
	if config.MaxMessages <= 0 {
		config.MaxMessages = DefaultConfig().MaxMessages
	}
	return &Compressor{config: config, provider: provider}
}

// ShouldCompress reports whether the message log is past either
// trigger. It is a pure threshold check with no side effects.
func (c *Compressor) ShouldCompress(messages []session.Message) bool {
	if len(messages) >= c.config.SummaryTrigger {
		return true
	}
	return len(messages)*bulkTokensPerMessage > c.config.MaxTokens
}

// CompressMessages returns a reduced message log: a synthetic summary
// of everything but the last KeepRecent messages, followed by that
// tail verbatim. When compression is not needed the input is returned
// unchanged.
func (c *Compressor) CompressMessages(ctx context.Context, messages []session.Message) []session.Message {
	if !c.ShouldCompress(messages) {
		return messages
	}

	logging.Infof("compressing %d messages", len(messages))

	keep := c.config.KeepRecent
	if keep > len(messages) {
		keep = len(messages)
	}
	recent := messages[len(messages)-keep:]
	history := messages[:len(messages)-keep]

	if len(history) == 0 {
		return append([]session.Message(nil), recent...)
	}

	summary := c.summarize(ctx, history)
	summaryMsg := session.NewMessage(
		session.RoleSystem,
		"[Conversation history summary]\n"+summary,
		map[string]any{
			MetaCompressed:    true,
			MetaOriginalCount: len(history),
		},
	)

	compressed := make([]session.Message, 0, len(recent)+1)
	compressed = append(compressed, summaryMsg)
	compressed = append(compressed, recent...)

	logging.Infof("compression done: %d -> %d messages", len(messages), len(compressed))
	return compressed
}

// summarize asks the provider for a structured summary of the history,
// falling back to a deterministic local summary on any failure. It
// never returns an error.
func (c *Compressor) summarize(ctx context.Context, messages []session.Message) string {
	if c.provider == nil {
		return simpleSummary(messages)
	}

	ctx, cancel := context.WithTimeout(ctx, summarizeTimeout)
	defer cancel()

	prompt := "Summarize the following conversation:\n\n" + formatTranscript(messages)
	text, err := c.provider.Generate(ctx, &ai.Request{
		System:      summarySystemPrompt,
		Prompt:      prompt,
		Temperature: summarizeTemperature,
	})
	if err != nil {
		logging.Errorf("summarization failed, using fallback: %v", err)
		return simpleSummary(messages)
	}
	return strings.TrimSpace(text)
}

// formatTranscript flattens messages into a role-labeled transcript.
func formatTranscript(messages []session.Message) string {
	var sb strings.Builder
	for _, msg := range messages {
		sb.WriteString(string(msg.Role))
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

// simpleSummary is the deterministic fallback: the first few user
// requests, truncated, plus a count of assistant turns.
func simpleSummary(messages []session.Message) string {
	var userMessages, assistantCount int
	var requests []string
	for _, msg := range messages {
		switch msg.Role {
		case session.RoleUser:
			userMessages++
			if len(requests) < 3 {
				requests = append(requests, truncate(msg.Content, 100))
			}
		case session.RoleAssistant:
			assistantCount++
		}
	}

	var parts []string
	if userMessages > 0 {
		parts = append(parts, "**User needs**: "+strings.Join(requests, "; "))
	}
	if assistantCount > 0 {
		parts = append(parts, fmt.Sprintf("**Assistant replies**: %d turns", assistantCount))
	}
	if len(parts) == 0 {
		parts = append(parts, "Conversation history")
	}
	return strings.Join(parts, "\n")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// CompressSession returns a copy of the session with its message log
// compressed and its context variables merged with freshly extracted
// ones. The input session is not mutated and the result is not
// persisted; both are the caller's responsibility.
func (c *Compressor) CompressSession(ctx context.Context, sess *session.ConversationSession) *session.ConversationSession {
	if !c.ShouldCompress(sess.Messages) {
		return sess
	}

	compressed := sess.Copy()
	compressed.Messages = c.CompressMessages(ctx, sess.Messages)
	for key, value := range ExtractContextVariables(sess.Messages) {
		compressed.ContextVariables[key] = value
	}
	return compressed
}

// ForLLM prepares a message log for a provider request: compresses it
// when the estimated token total exceeds maxTokens and flattens the
// result to role/content pairs.
func (c *Compressor) ForLLM(ctx context.Context, messages []session.Message, maxTokens int) []ChatMessage {
	total := 0
	for _, msg := range messages {
		total += EstimateTokens(msg.Content)
	}
	if total > maxTokens {
		messages = c.CompressMessages(ctx, messages)
	}

	out := make([]ChatMessage, 0, len(messages))
	for _, msg := range messages {
		out = append(out, ChatMessage{Role: string(msg.Role), Content: msg.Content})
	}
	return out
}

// ChatMessage is the flat role/content pair providers consume.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
