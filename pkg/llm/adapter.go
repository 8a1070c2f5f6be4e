package llm

import "context"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one turn entry in a conversation history.
type Message struct {
	Role Role
	Text string
}

// Context is the full input for one generation call.
type Context struct {
	System   string
	Messages []Message
	Query    string
}

// Response is a completed generation.
type Response struct {
	Text         string
	FinishReason string
}

// Adapter defines the contract for any LLM vendor implementation.
type Adapter interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Generate produces a complete reply for the given context.
	Generate(ctx context.Context, input Context) (Response, error)
}

// CloneHistory returns a copy so callers can mutate freely.
func CloneHistory(history []Message) []Message {
	out := make([]Message, len(history))
	copy(out, history)
	return out
}
