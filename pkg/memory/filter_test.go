package memory

import "testing"

func TestShouldSkip(t *testing.T) {
	cases := []struct {
		name string
		fact string
		skip bool
	}{
		{"empty", "", true},
		{"greeting", "hi", true},
		{"ack with punctuation", "thanks!", true},
		{"yes no", "yes", true},
		{"too short", "npm", true},
		{"retrieved result prefix", "Tool result: file contents here", true},
		{"retrieved json blob", `{"results": [1,2,3]}`, true},
		{"substantial input", "Use npm install next and run npm run build", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			skip, _ := shouldSkip(c.fact, 8)
			if skip != c.skip {
				t.Errorf("shouldSkip(%q) = %v, want %v", c.fact, skip, c.skip)
			}
		})
	}
}
