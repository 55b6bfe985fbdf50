package commit

import (
	"testing"

	"github.com/peezy/hyperfy-eliza-client/internal/decision"
)

func strPtr(s string) *string { return &s }

func TestComposeText(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		d         decision.Decision
		corrected bool
		want      string
	}{
		{
			name: "say only",
			d:    decision.Decision{Say: strPtr("hi")},
			want: "hi",
		},
		{
			name: "say with gaze",
			d:    decision.Decision{Say: strPtr("hi"), LookAt: strPtr("player1")},
			want: "hi. Then I looked at player1",
		},
		{
			name: "say with gaze and emote keeps historical trailing and",
			d:    decision.Decision{Say: strPtr("hi"), LookAt: strPtr("player1"), Emote: strPtr("wave")},
			want: "hi. Then I looked at player1 and ",
		},
		{
			name:      "say with gaze and emote corrected",
			d:         decision.Decision{Say: strPtr("hi"), LookAt: strPtr("player1"), Emote: strPtr("wave")},
			corrected: true,
			want:      "hi. Then I looked at player1 and emoted wave",
		},
		{
			name: "emote only historical drops the clause",
			d:    decision.Decision{Say: strPtr("hi"), Emote: strPtr("wave")},
			want: "hi. Then I ",
		},
		{
			name:      "emote only corrected",
			d:         decision.Decision{Say: strPtr("hi"), Emote: strPtr("wave")},
			corrected: true,
			want:      "hi. Then I emoted wave",
		},
		{
			name: "gaze without say",
			d:    decision.Decision{LookAt: strPtr("door")},
			want: ". Then I looked at door",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ComposeText(&tc.d, !tc.corrected); got != tc.want {
				t.Errorf("ComposeText() = %q, want %q", got, tc.want)
			}
		})
	}
}
