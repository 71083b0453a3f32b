package facematch

import "testing"

func TestRemoveDiacritics(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Honza", "Honza"},
		{"Jiří", "Jiri"},
		{"café", "cafe"},
		{"naïve", "naive"},
		{"hello", "hello"},
		{"Žluťoučký kůň", "Zlutoucky kun"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := RemoveDiacritics(tt.input)
			if result != tt.expected {
				t.Errorf("RemoveDiacritics(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNormalizePersonName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		mode     NameMatchMode
		expected string
	}{
		{"fold lowercase", "Jan Novák", NameMatchFold, "jan novak"},
		{"fold uppercase", "JOHN DOE", NameMatchFold, "john doe"},
		{"fold trims", "  Alice  ", NameMatchFold, "alice"},
		{"fold collapses inner whitespace", "Jan   Novak", NameMatchFold, "jan novak"},
		{"fold empty", "", NameMatchFold, ""},
		{"exact keeps case", "Jan Novák", NameMatchExact, "Jan Novák"},
		{"exact trims", "  Alice ", NameMatchExact, "Alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizePersonName(tt.input, tt.mode)
			if result != tt.expected {
				t.Errorf("NormalizePersonName(%q, %q) = %q, want %q", tt.input, tt.mode, result, tt.expected)
			}
		})
	}
}
