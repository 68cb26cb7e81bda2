package slack

import "testing"

func TestOriginFilter_Evaluate(t *testing.T) {
	t.Parallel()

	filter := NewOriginFilter([]string{"Opsdesk", " Opsdesk Staging "})

	cases := []struct {
		name    string
		ev      MessageEvent
		verdict Verdict
	}{
		{
			"plain user message accepted",
			MessageEvent{UserID: "U1", Text: "hello"},
			VerdictAccept,
		},
		{
			"edit dropped as mutation",
			MessageEvent{Subtype: SubtypeMessageChanged, UserID: "U1"},
			VerdictDropMutation,
		},
		{
			"delete dropped as mutation",
			MessageEvent{Subtype: SubtypeMessageDeleted},
			VerdictDropMutation,
		},
		{
			// Mutation rule fires before echo detection.
			"own bot edit is a mutation, not an echo",
			MessageEvent{Subtype: SubtypeMessageChanged, IsBot: true, BotName: "Opsdesk"},
			VerdictDropMutation,
		},
		{
			"metadata echo dropped",
			MessageEvent{IsBot: true, BotName: "Renamed Bot", Metadata: &EventMetadata{EventType: MetadataEventType}},
			VerdictDropEcho,
		},
		{
			"own bot name fallback dropped",
			MessageEvent{IsBot: true, BotName: "opsdesk"},
			VerdictDropEcho,
		},
		{
			"own bot name with whitespace dropped",
			MessageEvent{IsBot: true, BotName: "  Opsdesk Staging"},
			VerdictDropEcho,
		},
		{
			"third-party bot accepted",
			MessageEvent{IsBot: true, BotName: "Deploy Notifier", Text: "build passed"},
			VerdictAccept,
		},
		{
			"foreign metadata accepted",
			MessageEvent{IsBot: true, BotName: "Deploy Notifier", Metadata: &EventMetadata{EventType: "ci_status"}},
			VerdictAccept,
		},
		{
			"bot without name accepted",
			MessageEvent{IsBot: true},
			VerdictAccept,
		},
		{
			"human sharing bot name accepted",
			MessageEvent{UserID: "U1", BotName: "Opsdesk"},
			VerdictAccept,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := filter.Evaluate(tc.ev); got != tc.verdict {
				t.Fatalf("expected %s, got %s", tc.verdict, got)
			}
		})
	}
}

func TestVerdict_Drop(t *testing.T) {
	t.Parallel()

	if VerdictAccept.Drop() {
		t.Fatal("accept must not drop")
	}
	if !VerdictDropMutation.Drop() || !VerdictDropEcho.Drop() {
		t.Fatal("drop verdicts must drop")
	}
}
