package encoding

import "testing"

func TestEscapeDXF(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain text", "Hello World", "Hello World"},
		{"newline", "a\nb", `a\Pb`},
		{"carriage return dropped", "a\r\nb", `a\Pb`},
		{"backslash", `C:\dir`, `C:\\dir`},
		{"tab", "a\tb", `a\U+0009b`},
		{"delete", "\x7f", `\U+007F`},
		{"japanese", "平面", `\U+5E73\U+9762`},
		{"latin", "é", `\U+00E9`},
		{"astral", "🎉", `\U+1F389`},
		{"tilde kept", "~", "~"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EscapeDXF(tt.input)
			if got != tt.want {
				t.Errorf("EscapeDXF(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEscapeXML(t *testing.T) {
	tests := []struct {
		input    string
		wantText string
		wantAttr string
	}{
		{"", "", ""},
		{"a < b & c > d", "a &lt; b &amp; c &gt; d", "a &lt; b &amp; c &gt; d"},
		{`say "hi"`, `say "hi"`, "say &quot;hi&quot;"},
		{"bell\x07tab\t", "belltab\t", "belltab\t"},
		{"平面", "平面", "平面"},
	}
	for _, tt := range tests {
		if got := EscapeXMLText(tt.input); got != tt.wantText {
			t.Errorf("EscapeXMLText(%q) = %q, want %q", tt.input, got, tt.wantText)
		}
		if got := EscapeXMLAttr(tt.input); got != tt.wantAttr {
			t.Errorf("EscapeXMLAttr(%q) = %q, want %q", tt.input, got, tt.wantAttr)
		}
	}
}
