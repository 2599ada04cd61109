package platforms

import (
	"errors"
	"testing"

	"github.com/sw33tLie/statscope/pkg/stats"
)

func TestExtractUsername(t *testing.T) {
	tests := []struct {
		platform stats.Platform
		url      string
		want     string
	}{
		{stats.LeetCode, "https://leetcode.com/u/alice/", "alice"},
		{stats.LeetCode, "https://leetcode.com/alice", "alice"},
		{stats.LeetCode, "leetcode.com/u/bob_99", "bob_99"},
		{stats.LeetCode, "https://www.leetcode.com/u/carol", "carol"},
		{stats.Codeforces, "https://codeforces.com/profile/tourist", "tourist"},
		{stats.Codeforces, "http://www.codeforces.com/profile/Um_nik/", "Um_nik"},
		{stats.AtCoder, "https://atcoder.jp/users/chokudai", "chokudai"},
		{stats.AtCoder, "https://atcoder.jp/users/chokudai/history", "chokudai"},
		{stats.GitHub, "https://github.com/torvalds", "torvalds"},
		{stats.GitHub, "https://github.com/torvalds?tab=repositories", "torvalds"},
		{stats.GitHub, "github.com/torvalds/linux", "torvalds"},
		{stats.HackerRank, "https://www.hackerrank.com/profile/alice", "alice"},
		{stats.HackerRank, "https://hackerrank.com/alice", "alice"},
	}
	for _, tc := range tests {
		got, err := ExtractUsername(tc.platform, tc.url)
		if err != nil {
			t.Fatalf("%s %q: unexpected error: %v", tc.platform, tc.url, err)
		}
		if got != tc.want {
			t.Fatalf("%s %q: got %q, want %q", tc.platform, tc.url, got, tc.want)
		}
	}
}

func TestExtractUsernameRejects(t *testing.T) {
	tests := []struct {
		platform stats.Platform
		url      string
	}{
		{stats.LeetCode, ""},
		{stats.LeetCode, "https://leetcode.com/problems/"},
		{stats.LeetCode, "https://leetcode.com.evil.io/u/alice"},
		{stats.Codeforces, "https://codeforces.com/contest/1234"},
		{stats.AtCoder, "https://github.com/users/alice"},
		{stats.GitHub, "https://github.com/"},
		{stats.GitHub, "https://github.com/settings/profile"},
		{stats.HackerRank, "https://www.hackerrank.com/dashboard"},
		{stats.Platform("topcoder"), "https://topcoder.com/members/alice"},
	}
	for _, tc := range tests {
		_, err := ExtractUsername(tc.platform, tc.url)
		var ce *ConfigurationError
		if !errors.As(err, &ce) {
			t.Fatalf("%s %q: expected ConfigurationError, got %v", tc.platform, tc.url, err)
		}
	}
}
