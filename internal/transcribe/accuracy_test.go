package transcribe

import "testing"

func TestCompareWords(t *testing.T) {
	tests := []struct {
		name       string
		reference  string
		hypothesis string
		wantRate   float64
		wantSubs   int
		wantIns    int
		wantDels   int
		wantRef    int
	}{
		{
			name:       "identical",
			reference:  "turn on the kitchen lights",
			hypothesis: "turn on the kitchen lights",
			wantRate:   0.0,
			wantRef:    5,
		},
		{
			name:       "one_substitution",
			reference:  "turn on the kitchen lights",
			hypothesis: "turn off the kitchen lights",
			wantRate:   1.0 / 5.0,
			wantSubs:   1,
			wantRef:    5,
		},
		{
			name:       "one_insertion",
			reference:  "what time is it",
			hypothesis: "what time is it now",
			wantRate:   1.0 / 4.0,
			wantIns:    1,
			wantRef:    4,
		},
		{
			name:       "one_deletion",
			reference:  "turn on the kitchen lights",
			hypothesis: "turn on kitchen lights",
			wantRate:   1.0 / 5.0,
			wantDels:   1,
			wantRef:    5,
		},
		{
			name:       "case_insensitive",
			reference:  "Turn On The Lights",
			hypothesis: "turn on the lights",
			wantRate:   0.0,
			wantRef:    4,
		},
		{
			name:       "punctuation_stripped",
			reference:  "Hello, world!",
			hypothesis: "hello world",
			wantRate:   0.0,
			wantRef:    2,
		},
		{
			name:       "empty_reference",
			reference:  "",
			hypothesis: "some words",
			wantRate:   0.0,
			wantRef:    0,
		},
		{
			name:       "empty_hypothesis",
			reference:  "some words",
			hypothesis: "",
			wantRate:   1.0,
			wantDels:   2,
			wantRef:    2,
		},
		{
			name:       "both_empty",
			reference:  "",
			hypothesis: "",
			wantRate:   0.0,
			wantRef:    0,
		},
		{
			name:       "completely_different",
			reference:  "open the door",
			hypothesis: "a dog ran",
			wantRate:   1.0,
			wantSubs:   3,
			wantRef:    3,
		},
		{
			name:       "extra_whitespace",
			reference:  "  open   the  door  ",
			hypothesis: "open the door",
			wantRate:   0.0,
			wantRef:    3,
		},
		{
			name:       "mixed_errors",
			reference:  "set the living room lamp to fifty percent please",
			hypothesis: "set a living room light to fifty percent",
			// sub: the->a, lamp->light; del: please
			wantRate: 3.0 / 9.0,
			wantSubs: 2,
			wantDels: 1,
			wantRef:  9,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CompareWords(tt.reference, tt.hypothesis)

			if diff := got.Rate - tt.wantRate; diff > 0.001 || diff < -0.001 {
				t.Errorf("Rate = %f, want %f", got.Rate, tt.wantRate)
			}
			if got.ReferenceWords != tt.wantRef {
				t.Errorf("ReferenceWords = %d, want %d", got.ReferenceWords, tt.wantRef)
			}
			if got.Substitutions != tt.wantSubs {
				t.Errorf("Substitutions = %d, want %d", got.Substitutions, tt.wantSubs)
			}
			if got.Insertions != tt.wantIns {
				t.Errorf("Insertions = %d, want %d", got.Insertions, tt.wantIns)
			}
			if got.Deletions != tt.wantDels {
				t.Errorf("Deletions = %d, want %d", got.Deletions, tt.wantDels)
			}
		})
	}
}
