package logger

import "testing"

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: "(unset)"},
		{name: "single char", input: "x", want: "x..."},
		{name: "two chars", input: "ab", want: "a..."},
		{name: "token", input: "123456:ABCDEF", want: "1...F"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaskSecret(tt.input); got != tt.want {
				t.Errorf("MaskSecret(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
