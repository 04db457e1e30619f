package util

import (
	"strings"
	"testing"
)

func TestGenerateRandomHexLength(t *testing.T) {
	for _, n := range []int{0, 1, 16, 32} {
		got := GenerateRandomHex(n)
		if len(got) != n {
			t.Errorf("GenerateRandomHex(%d) length = %d", n, len(got))
		}
		for _, r := range got {
			if !strings.ContainsRune("0123456789abcdef", r) {
				t.Errorf("non-hex character %q in %q", r, got)
			}
		}
	}
}

func TestGenerateSessionID(t *testing.T) {
	id := GenerateSessionID()
	if !strings.HasPrefix(id, "s_") {
		t.Errorf("session ID missing prefix: %q", id)
	}
	if len(id) != 34 {
		t.Errorf("session ID length = %d", len(id))
	}
	if id == GenerateSessionID() {
		t.Error("two session IDs should not collide")
	}
}

func TestParseBoolEnv(t *testing.T) {
	cases := []struct {
		value string
		def   bool
		want  bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"off", true, false},
		{"0", true, false},
		{"", true, true},
		{"garbage", false, false},
	}
	for _, c := range cases {
		t.Setenv("LOANINTAKE_TEST_BOOL", c.value)
		if got := ParseBoolEnv("LOANINTAKE_TEST_BOOL", c.def); got != c.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", c.value, c.def, got, c.want)
		}
	}
}
