package types

// AskRequest is the body of POST /ask and POST /ask/sync.
type AskRequest struct {
	// Required question text.
	// example: What is on the table?
	Prompt string `json:"prompt" example:"What is on the table?"`
}

// DescribeRequest is the body of POST /describe.
type DescribeRequest struct {
	// Optional instruction; a default scene description prompt is used when empty.
	// example: Describe the scene in front of me.
	Prompt string `json:"prompt,omitempty" example:"Describe the scene in front of me."`
	// Required JPEG still, base64 encoded.
	ImageBase64 string `json:"image_base64"`
}

// StreamEvent is one NDJSON line of a streamed answer. Exactly one line has
// final=true and it is the last one.
type StreamEvent struct {
	// example: 7f0c6f2e-3b0e-4c55-9d0a-2b1f0f9d3c11
	RequestID string `json:"request_id,omitempty" example:"7f0c6f2e-3b0e-4c55-9d0a-2b1f0f9d3c11"`
	// Token text or terminal notice.
	// example: A red
	Text string `json:"text" example:"A red"`
	// example: false
	Final bool `json:"final" example:"false"`
	// Event kind: token, done, busy, cancelled, overflow, error, timeout.
	// example: token
	Kind  string `json:"kind" example:"token"`
	Error string `json:"error,omitempty"`
}

// SyncResponse is returned by POST /ask/sync.
type SyncResponse struct {
	// Full answer or one of the sentinels "[Busy]", "No response",
	// "[LLM session error. Try again.]".
	// example: A red mug and a laptop.
	Answer string `json:"answer" example:"A red mug and a laptop."`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Admission state: idle, generating, busy, resetting, closed.
	// example: idle
	State string `json:"state" example:"idle"`
	// example: false
	Generating bool `json:"generating" example:"false"`
	// example: false
	Busy bool `json:"busy" example:"false"`
	// example: 3
	MemoryEntries int `json:"memory_entries" example:"3"`
	// example: 5
	MemoryCapacity int `json:"memory_capacity" example:"5"`
	// Sessions opened since start, including recreations.
	// example: 12
	SessionsCreated int `json:"sessions_created" example:"12"`
	// example: /home/user/models/gemma-3n-e2b-it-q4.gguf
	Model string `json:"model" example:"/home/user/models/gemma-3n-e2b-it-q4.gguf"`
	// example: en
	Locale string `json:"locale" example:"en"`
	// example: true
	Vision bool `json:"vision" example:"true"`
	// Last error observed by the manager (if any).
	LastError string `json:"last_error,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

// MemoryResponse is returned by GET /memory.
type MemoryResponse struct {
	Entries []MemoryItem `json:"entries"`
}

// HistoryResponse is returned by GET /history.
type HistoryResponse struct {
	Entries []TranscriptEntry `json:"entries"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	Models []Model `json:"models"`
}
