package model

// ConversationState is the wizard state derived from a transcript.
// It is never persisted; every request rebuilds it by replaying the transcript.
type ConversationState struct {
	Step     int               `json:"step"`     // Number of user-role messages replayed
	Data     map[string]string `json:"data"`     // Accepted answers keyed by schema field
	Answered int               `json:"answered"` // Schema positions accepted so far
}

// NewConversationState returns an empty state
func NewConversationState() ConversationState {
	return ConversationState{Data: make(map[string]string)}
}

// Clone returns a deep copy so callers can derive a new state without mutating the input
func (s ConversationState) Clone() ConversationState {
	data := make(map[string]string, len(s.Data))
	for k, v := range s.Data {
		data[k] = v
	}
	return ConversationState{Step: s.Step, Data: data, Answered: s.Answered}
}

// StepReply is the Step Transition Engine's answer to one user message
type StepReply struct {
	Message        string `json:"message"`
	ShouldGenerate bool   `json:"should_generate"`
}
