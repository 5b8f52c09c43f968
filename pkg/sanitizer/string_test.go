package sanitizer

import "testing"

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "basic trim",
			input: "  hello  ",
			want:  "hello",
		},
		{
			name:  "multiple spaces",
			input: "hello    world",
			want:  "hello world",
		},
		{
			name:  "tabs and newlines",
			input: "hello\t\nworld",
			want:  "hello world",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
		{
			name:  "only whitespace",
			input: "   ",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrimAndNormalize(tt.input)
			if got != tt.want {
				t.Errorf("TrimAndNormalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeAccount(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "lowercase and trim",
			input: "  Landlord-07 ",
			want:  "landlord-07",
		},
		{
			name:  "strip punctuation",
			input: "inv:ava@fund",
			want:  "invavafund",
		},
		{
			name:  "keep underscores and hyphens",
			input: "ops_treasury-main",
			want:  "ops_treasury-main",
		},
		{
			name:  "idempotent",
			input: "tenant_42",
			want:  "tenant_42",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeAccount(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeAccount(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if again := NormalizeAccount(got); again != got {
				t.Errorf("NormalizeAccount not idempotent: %q -> %q", got, again)
			}
		})
	}
}
