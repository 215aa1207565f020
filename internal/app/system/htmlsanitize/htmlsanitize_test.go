package htmlsanitize_test

import (
	"testing"

	"github.com/dalemusser/teamreg/internal/app/system/htmlsanitize"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain", "Byte Busters", "Byte Busters"},
		{"trims", "  Byte Busters  ", "Byte Busters"},
		{"strips tags", "<b>Byte</b> Busters", "Byte Busters"},
		{"drops script", "Team<script>alert('x')</script>", "Team"},
		{"keeps ampersand", "Tom & Jerry", "Tom & Jerry"},
		{"strips attributes", `<a href="javascript:alert(1)">Click</a>`, "Click"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := htmlsanitize.PlainText(tt.input); got != tt.want {
				t.Errorf("PlainText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
