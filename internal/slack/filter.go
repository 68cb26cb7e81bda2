package slack

import "strings"

// Verdict is the origin filter's decision for one message event.
type Verdict string

const (
	VerdictAccept       Verdict = "accept"
	VerdictDropMutation Verdict = "drop_mutation"
	VerdictDropEcho     Verdict = "drop_echo"
)

// Drop reports whether the event must not be persisted.
func (v Verdict) Drop() bool {
	return v != VerdictAccept
}

// OriginFilter decides whether an inbound message event is an echo of this
// system's own outbound send, or a mutation notification, neither of which
// is ingested.
type OriginFilter struct {
	botNames map[string]struct{}
}

// NewOriginFilter creates a filter recognizing the given outbound bot
// display names. Name matching is only the fallback; the metadata block
// attached at send time is the primary echo signal.
func NewOriginFilter(botNames []string) *OriginFilter {
	names := make(map[string]struct{}, len(botNames))
	for _, name := range botNames {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			names[name] = struct{}{}
		}
	}
	return &OriginFilter{botNames: names}
}

// Evaluate applies the drop rules in order: mutation subtypes first, then
// echo detection. An edit notification from our own bot is dropped as a
// mutation, not as an echo. Third-party bot messages are legitimate external
// content and pass.
func (f *OriginFilter) Evaluate(ev MessageEvent) Verdict {
	switch ev.Subtype {
	case SubtypeMessageChanged, SubtypeMessageDeleted:
		return VerdictDropMutation
	}

	if ev.Metadata != nil && ev.Metadata.EventType == MetadataEventType {
		return VerdictDropEcho
	}
	if ev.IsBot && f.isOwnBotName(ev.BotName) {
		// TODO: drop the name fallback once metadata round-trip is verified
		// on all workspace plans; a bot rename silently breaks this match.
		return VerdictDropEcho
	}
	return VerdictAccept
}

func (f *OriginFilter) isOwnBotName(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return false
	}
	_, ok := f.botNames[name]
	return ok
}
