package server

import "testing"

func TestShouldSkipJWT(t *testing.T) {
	t.Parallel()

	cases := []struct {
		path string
		want bool
	}{
		{path: "/slack/events", want: true},
		{path: "/auth/login", want: true},
		{path: "/ping", want: true},
		{path: "/health", want: true},
		{path: "/slack/events/extra", want: false},
		{path: "/conversations/conv-1/reply", want: false},
		{path: "/orgs/org-1/conversations", want: false},
	}

	for _, tc := range cases {
		got := shouldSkipJWT(tc.path)
		if got != tc.want {
			t.Fatalf("path=%q want=%v got=%v", tc.path, tc.want, got)
		}
	}
}
