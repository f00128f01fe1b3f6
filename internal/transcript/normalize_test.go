package transcript

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "   ", ""},
		{"adds terminal period", "patient is stable", "patient is stable."},
		{"keeps question mark", "any allergies?", "any allergies?"},
		{"sentence ending before capital", "examined the tooth Decay was visible", "examined the tooth. Decay was visible."},
		{"ending before lowercase untouched", "the tooth is sore", "the tooth is sore."},
		{"tooth number comma", "tooth 14 has a crack", "tooth 14, has a crack."},
		{"hash number run", "#3 #4 need work", "#3 #4, need work."},
		{"discourse marker", "however the gum is fine", "however, the gum is fine."},
		{"drops fillers", "um the patient uh reports pain", "the patient reports pain."},
		{"collapses double and", "scaling and and polishing", "scaling and polishing."},
		{"collapses whitespace", "left   upper\n\nmolar", "left upper molar."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in); got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
