package types

// Model represents a model file discovered in the models directory.
type Model struct {
	// Stable identifier for the model (file name without extension).
	// example: gemma-3n-e2b-it-q4
	ID string `json:"id" example:"gemma-3n-e2b-it-q4"`
	// Human-friendly name.
	// example: Gemma 3n E2B It Q4
	Name string `json:"name" example:"Gemma 3n E2B It Q4"`
	// Absolute path to the model file on disk.
	// example: /home/user/models/gemma-3n-e2b-it-q4.gguf
	Path string `json:"path" example:"/home/user/models/gemma-3n-e2b-it-q4.gguf"`
	// Quantization level parsed from the file name, if any.
	// example: Q4_K_M
	Quant string `json:"quant,omitempty" example:"Q4_K_M"`
	// File format: gguf or task.
	// example: gguf
	Format string `json:"format" example:"gguf"`
	// Size on disk in bytes.
	// example: 3136226560
	SizeBytes int64 `json:"size_bytes" example:"3136226560"`
}

// MemoryItem is one remembered question/answer exchange.
type MemoryItem struct {
	// example: What is on the table?
	Question string `json:"question" example:"What is on the table?"`
	// example: A red mug and a laptop.
	Answer string `json:"answer" example:"A red mug and a laptop."`
}

// TranscriptEntry is one journaled generation outcome.
type TranscriptEntry struct {
	// example: 0b6e1c9a-51f4-4a7e-b1e8-4f5d2f1b7a90
	ID string `json:"id" example:"0b6e1c9a-51f4-4a7e-b1e8-4f5d2f1b7a90"`
	// example: 7f0c6f2e-3b0e-4c55-9d0a-2b1f0f9d3c11
	RequestID string `json:"request_id" example:"7f0c6f2e-3b0e-4c55-9d0a-2b1f0f9d3c11"`
	// Outcome: done, overflow, error, timeout.
	// example: done
	Outcome string `json:"outcome" example:"done"`
	// Request kind: text or vision.
	// example: text
	Kind string `json:"kind,omitempty" example:"text"`
	// example: What is on the table?
	Query string `json:"query,omitempty" example:"What is on the table?"`
	// example: A red mug and a laptop.
	Answer string `json:"answer,omitempty" example:"A red mug and a laptop."`
	Error  string `json:"error,omitempty"`
	// example: 1700000000
	CreatedUnix int64 `json:"created_unix" example:"1700000000"`
}
