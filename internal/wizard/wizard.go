// Package wizard drives the scripted content wizards.
//
// There is no session object: state is a pure reduction over the transcript,
// rebuilt on every request by replaying each user message through NextStep.
package wizard

import (
	"fmt"

	"github.com/ppiankov/rxwizard/internal/model"
)

// Opening returns the first question of a domain, asked before any user input
func Opening(domain model.Domain) string {
	schema, ok := Lookup(domain)
	if !ok {
		return unsupported(domain)
	}
	f, _ := schema.FieldAt(0, nil)
	return f.Prompt
}

// Reconstruct replays a transcript into the wizard state for a domain.
// Step always equals the number of user messages; answers past the last scripted step are ignored.
func Reconstruct(messages []model.Message, domain model.Domain) model.ConversationState {
	state := model.NewConversationState()
	for _, m := range messages {
		if m.Role != model.RoleUser {
			continue
		}
		state, _ = NextStep(domain, state, m.Content)
	}
	return state
}

// NextStep interprets the latest user message against the current step and decides what comes next.
// state is the state before lastUserMessage; the returned state includes it and the input is not mutated.
//
// An answer the step cannot parse re-issues the same question and leaves the field unset.
// ShouldGenerate is true exactly once, when the final step's answer is accepted.
func NextStep(domain model.Domain, state model.ConversationState, lastUserMessage string) (model.ConversationState, model.StepReply) {
	next := state.Clone()
	next.Step++

	schema, ok := Lookup(domain)
	if !ok {
		return next, model.StepReply{Message: unsupported(domain)}
	}

	field, ok := schema.FieldAt(next.Answered, next.Data)
	if !ok {
		return next, model.StepReply{Message: schema.done()}
	}

	value, accepted := field.Parse(lastUserMessage)
	if !accepted {
		return next, model.StepReply{Message: field.Prompt}
	}
	if value != "" {
		next.Data[field.Name] = value
	}
	next.Answered++

	if next.Answered == schema.Steps() {
		return next, model.StepReply{Message: schema.generating(next.Data), ShouldGenerate: true}
	}

	following, _ := schema.FieldAt(next.Answered, next.Data)
	return next, model.StepReply{Message: following.Prompt}
}

// Advance handles one request: it rebuilds the state from everything before the
// latest user message, then hands that message to NextStep.
// A transcript without user messages gets the opening question.
func Advance(domain model.Domain, messages []model.Message) (model.ConversationState, model.StepReply) {
	last := -1
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == model.RoleUser {
			last = i
			break
		}
	}

	if last < 0 {
		return model.NewConversationState(), model.StepReply{Message: Opening(domain)}
	}

	prior := Reconstruct(messages[:last], domain)
	return NextStep(domain, prior, messages[last].Content)
}

func unsupported(domain model.Domain) string {
	return fmt.Sprintf("Content type %q is not supported. Choose hcp-email, social-media or video.", string(domain))
}
