package types

type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// Session requests

type CreateSessionRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
}

type GetSessionRequest struct {
	SessionID string `path:"id"`
}

type GetMessagesRequest struct {
	SessionID string `path:"id"`
	Limit     int    `form:"limit"`
	Role      string `form:"role"`
}

type AddMessageRequest struct {
	SessionID string         `path:"id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type AddMessageResponse struct {
	Success      bool `json:"success"`
	MessageCount int  `json:"message_count"`
	Compressed   bool `json:"compressed"`
}

type ListTasksRequest struct {
	SessionID string `path:"id"`
	Resumable bool   `form:"resumable"`
}

type AddTaskRequest struct {
	SessionID   string         `path:"id"`
	TaskID      string         `json:"task_id,omitempty"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type UpdateTaskRequest struct {
	SessionID string `path:"id"`
	TaskID    string `path:"taskID"`
	Status    string `json:"status,omitempty"`
	Result    any    `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
}

type ResumeTaskRequest struct {
	SessionID  string `path:"id"`
	TaskID     string `path:"taskID"`
	ResetError bool   `json:"reset_error"` // defaults to true when omitted
}

type TaskActionResponse struct {
	Success bool   `json:"success"`
	TaskID  string `json:"task_id"`
}

type ContextVariableRequest struct {
	SessionID string `path:"id"`
	Key       string `path:"key"`
	Value     any    `json:"value,omitempty"`
}

type ContextVariableResponse struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type CompressSessionRequest struct {
	SessionID string `path:"id"`
	Force     bool   `form:"force"`
}

type CompressSessionResponse struct {
	Compressed    bool `json:"compressed"`
	MessageCount  int  `json:"message_count"`
	OriginalCount int  `json:"original_count,omitempty"`
}

type DeleteSessionResponse struct {
	Success bool `json:"success"`
}

// Tool requests

type RegisterToolRequest struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Code          string          `json:"code"`
	TestCode      string          `json:"test_code,omitempty"`
	Parameters    []ToolParameter `json:"parameters,omitempty"`
	ReturnType    string          `json:"return_type,omitempty"`
	CloudProvider string          `json:"cloud_provider"`
	Service       string          `json:"service"`
	Category      string          `json:"category,omitempty"`
	Tags          []string        `json:"tags,omitempty"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
	ForceUpdate   bool            `json:"force_update,omitempty"`
}

type ToolParameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`
}

type SearchToolsRequest struct {
	Query         string  `form:"query"`
	CloudProvider string  `form:"provider"`
	Service       string  `form:"service"`
	Category      string  `form:"category"`
	Tags          string  `form:"tags"`
	MinQuality    float64 `form:"min_quality"`
	Limit         int     `form:"limit"`
}

type GetToolRequest struct {
	Name string `path:"name"`
}

type UpdateToolMetricsRequest struct {
	Name          string  `path:"name"`
	Success       bool    `json:"success"`
	ExecutionTime float64 `json:"execution_time"`
}

type UpdateToolMetricsResponse struct {
	Success bool   `json:"success"`
	Name    string `json:"name"`
	Status  string `json:"status"`
}
