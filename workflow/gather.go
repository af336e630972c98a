package workflow

import (
	"context"
	"slices"
	"strings"

	"github.com/c360studio/semfolio/conversation"
	"github.com/c360studio/semfolio/graph"
)

// TranscriptSeparator joins user messages in FullTranscript.
const TranscriptSeparator = "\n\n---\n\n"

// GatherContext rebuilds the transcript from completed user messages. It
// runs on every pass so answers to follow-up questions are picked up.
// Repository failures halt the thread with Error set.
func GatherContext(d *Deps) graph.NodeFunc[State, Update] {
	return func(ctx context.Context, s State, _ graph.Input) (graph.Result[Update], error) {
		msgs, err := d.Messages.ListMessages(ctx, conversation.ListOptions{
			ConversationID: s.ConversationID,
			Limit:          d.Tuning.MessageLimit,
		})
		if err != nil {
			d.logger().Warn("Failed to load conversation messages",
				"conversation_id", s.ConversationID, "error", err)
			reason := "gather context: " + err.Error()
			return graph.Halt(reason, Update{Error: &reason}), nil
		}

		texts := UserTranscript(msgs)
		transcript := strings.Join(texts, TranscriptSeparator)
		count := len(texts)

		return graph.Continue(Update{
			FullTranscript: &transcript,
			MessageCount:   &count,
			Error:          ptr(""),
		}), nil
	}
}

// UserTranscript returns the contents of completed user messages in
// chronological order. msgs is expected newest first.
func UserTranscript(msgs []conversation.Message) []string {
	texts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Role != conversation.RoleUser || m.ProcessingStatus != conversation.StatusComplete {
			continue
		}
		text := strings.TrimSpace(m.Text())
		if text == "" {
			continue
		}
		texts = append(texts, text)
	}
	slices.Reverse(texts)
	return texts
}
