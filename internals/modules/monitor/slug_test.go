package monitor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "MyCronJob", "mycronjob"},
		{"replaces separators", "my cron job", "my-cron-job"},
		{"collapses runs", "my -- cron  job", "my-cron-job"},
		{"keeps digits", "backup-2024", "backup-2024"},
		{"trims edges", "  my job  ", "my-job"},
		{"non-ascii becomes dash", "héllo wörld", "h-llo-w-rld"},
		{"all symbols", "!!!", ""},
		{"empty", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Slugify(tc.in))
		})
	}
}

func TestSlugify_ClampsToMaxLength(t *testing.T) {
	long := strings.Repeat("a", MaxSlugLength-1) + "-bbbb"

	got := Slugify(long)

	assert.LessOrEqual(t, len(got), MaxSlugLength)
	// the clamp cuts right after the dash; it must not survive as a
	// trailing character
	assert.Equal(t, strings.Repeat("a", MaxSlugLength-1), got)
}
