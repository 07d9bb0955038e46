package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchURL(t *testing.T) {
	cases := []struct {
		url, pattern string
		want         bool
	}{
		{"https://chatgpt.com/c/123", "https://chatgpt.com/*", true},
		{"https://example.com/", "https://chatgpt.com/*", false},
		{"https://chatgpt.com/c/123", "*chatgpt.com*", true},
		{"https://chatgpt.com/c/123", "*/c/123", true},
		{"https://chatgpt.com/", "=https://chatgpt.com/", true},
		{"https://chatgpt.com/x", "=https://chatgpt.com/", false},
		{"https://chat.openai.com/", `re:^https://(chatgpt\.com|chat\.openai\.com)/`, true},
		{"https://chatgpt.com/", "re:([", false},
		{"anything", "", true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MatchURL(tc.url, tc.pattern), "%s ~ %s", tc.url, tc.pattern)
	}
}
