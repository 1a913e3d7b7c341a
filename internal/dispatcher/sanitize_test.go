package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeReferrerURL(t *testing.T) {
	allowed := []string{"superbot.work", "app.superbot.work"}

	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"allowed host", "https://superbot.work/jobs/1", "https://superbot.work/jobs/1"},
		{"allowed subdomain entry", "https://app.superbot.work/", "https://app.superbot.work/"},
		{"case-insensitive host", "https://SuperBot.Work/jobs", "https://SuperBot.Work/jobs"},
		{"localhost always allowed", "http://localhost:3000/dev", "http://localhost:3000/dev"},
		{"foreign host", "https://evil.example/", ""},
		{"unlisted subdomain", "https://cdn.superbot.work/x", ""},
		{"javascript scheme", "javascript:alert(1)", ""},
		{"ftp scheme", "ftp://superbot.work/file", ""},
		{"schemeless", "superbot.work/jobs", ""},
		{"empty", "", ""},
		{"garbage", "::::not a url", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SanitizeReferrerURL(tc.raw, allowed))
		})
	}
}
