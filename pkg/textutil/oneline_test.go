package textutil

import (
	"testing"
)

func TestOneLine(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"short string unchanged", "1,2,ten", 10, "1,2,ten"},
		{"exact length unchanged", "hello", 5, "hello"},
		{"long key cut", "alpha,beta,gamma,delta", 15, "alpha,beta,g..."},
		{"newlines collapsed", "fixture failed\n\nwhile closing", 40, "fixture failed while closing"},
		{"tabs and carriage returns", "a\t\tb\r\nc", 10, "a b c"},
		{"surrounding whitespace trimmed", "  x  ", 10, "x"},
		{"unicode cut on runes", "日本語テスト文字列", 6, "日本語..."},
		{"tiny maxLen clamped", "abcdef", 1, "a..."},
		{"empty", "", 10, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OneLine(tt.input, tt.maxLen); got != tt.expected {
				t.Errorf("OneLine(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.expected)
			}
		})
	}
}
