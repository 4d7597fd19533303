package security

import "testing"

func TestSanitize_RemovesScriptTags(t *testing.T) {
	s := NewContentSanitizer()

	got := s.Sanitize(`Hello <script>alert("xss")</script>world`)
	if got != "Hello world" {
		t.Errorf("Sanitize = %q, want %q", got, "Hello world")
	}
}

func TestSanitize_RemovesAllMarkup(t *testing.T) {
	s := NewContentSanitizer()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"プレーンテキストはそのまま", "Sunset in Kyoto. No filters needed.", "Sunset in Kyoto. No filters needed."},
		{"インラインタグを除去", "<b>bold</b> and <i>italic</i>", "bold and italic"},
		{"イベント属性付きタグを除去", `<img src="x" onerror="alert(1)">caption`, "caption"},
		{"リンクはテキストのみ残す", `<a href="https://evil.example">click</a>`, "click"},
		{"空文字列", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitize_IsIdempotent(t *testing.T) {
	s := NewContentSanitizer()

	in := `text <script>bad()</script> more`
	once := s.Sanitize(in)
	twice := s.Sanitize(once)
	if once != twice {
		t.Errorf("Sanitize is not idempotent: %q != %q", once, twice)
	}
}

func TestSanitize_KeepsEmoji(t *testing.T) {
	s := NewContentSanitizer()

	in := "Building the future one line of code at a time. 🚀"
	if got := s.Sanitize(in); got != in {
		t.Errorf("Sanitize(%q) = %q, emoji text should pass through", in, got)
	}
}
