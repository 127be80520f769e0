package audit

import "testing"

func Test_SanitiseKey(t *testing.T) {
	t.Parallel()

	cases := []struct {
		key, value, want string
	}{
		{"AI_API_KEY", "sk-secret", "set"},
		{"AI_API_KEY", "", "unset"},
		{"LANGFUSE_SECRET_KEY", "sk-lf", "set"},
		{"AI_MODEL", "gpt-4o", "gpt-4o"},
		{"AI_MODEL", "", "unset"},
	}
	for _, tc := range cases {
		if got := SanitiseKey(tc.key, tc.value); got != tc.want {
			t.Errorf("SanitiseKey(%q, %q) = %q, want %q", tc.key, tc.value, got, tc.want)
		}
	}
}
