package model

// Role identifies who authored a transcript message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a wizard transcript.
// Transcripts are ordered and append-only; the full slice is replayed on every turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserMessage is shorthand for a user-authored message
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage is shorthand for an assistant-authored message
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// CountUserMessages returns the number of user-role messages in the transcript
func CountUserMessages(messages []Message) int {
	count := 0
	for _, m := range messages {
		if m.Role == RoleUser {
			count++
		}
	}
	return count
}
