package sourcemap

import (
	"errors"
	"net/url"
	"strings"
	"testing"
)

func TestVLQ(t *testing.T) {
	tests := []struct {
		value int
		want  string
	}{
		{0, "A"},
		{1, "C"},
		{-1, "D"},
		{15, "e"},
		{16, "gB"},
		{-16, "hB"},
		{123, "2H"},
	}

	for _, tt := range tests {
		var b strings.Builder
		appendVLQ(&b, tt.value)
		if got := b.String(); got != tt.want {
			t.Errorf("appendVLQ(%d) = %q, want %q", tt.value, got, tt.want)
		}

		v, next, err := readVLQ(tt.want, 0)
		if err != nil || v != tt.value || next != len(tt.want) {
			t.Errorf("readVLQ(%q) = %d, %d, %v", tt.want, v, next, err)
		}
	}
}

func TestDecode_Known(t *testing.T) {
	// Line 0: col 0 -> source 0 line 0 col 0; col 4 -> source 0 line 0 col 2.
	// Line 1: col 0 -> source 1 line 3 col 0, name 0.
	lines, err := Decode("AAAA,IAAE;ACGFA")
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	want0 := []Segment{
		{GenCol: 0, Source: 0, SrcLine: 0, SrcCol: 0, Name: -1},
		{GenCol: 4, Source: 0, SrcLine: 0, SrcCol: 2, Name: -1},
	}
	for i, seg := range want0 {
		if lines[0][i] != seg {
			t.Errorf("line 0 seg %d = %+v, want %+v", i, lines[0][i], seg)
		}
	}

	want1 := Segment{GenCol: 0, Source: 1, SrcLine: 3, SrcCol: 0, Name: 0}
	if lines[1][0] != want1 {
		t.Errorf("line 1 seg 0 = %+v, want %+v", lines[1][0], want1)
	}

	if got := Encode(lines); got != "AAAA,IAAE;ACGFA" {
		t.Errorf("Encode = %q", got)
	}
}

func TestDecode_Invalid(t *testing.T) {
	for _, s := range []string{"A!AA", "AA", "AAAAAA", "g"} {
		if _, err := Decode(s); !errors.Is(err, ErrInvalidMappings) {
			t.Errorf("Decode(%q) err = %v, want ErrInvalidMappings", s, err)
		}
	}
}

func TestIdentity(t *testing.T) {
	m := Identity("app/js/main.js", "a();\nb();\n")
	if m.Mappings != "AAAA;AACA" {
		t.Errorf("Mappings = %q, want AAAA;AACA", m.Mappings)
	}
	if m.Sources[0] != "app/js/main.js" {
		t.Errorf("Sources = %v", m.Sources)
	}
}

func TestLineCount(t *testing.T) {
	tests := map[string]int{
		"":      0,
		"a":     1,
		"a\n":   1,
		"a\nb":  2,
		"a\n\n": 2,
	}
	for in, want := range tests {
		if got := LineCount(in); got != want {
			t.Errorf("LineCount(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestConcat(t *testing.T) {
	c := NewConcat("main.min.js")
	if err := c.Add("vendor.js", "v1\nv2\n", nil); err != nil {
		t.Fatal(err)
	}
	if err := c.Add("app.js", "a1\n", Identity("app.js", "a1\n")); err != nil {
		t.Fatal(err)
	}

	m := c.Map()
	if m.File != "main.min.js" {
		t.Errorf("File = %q", m.File)
	}
	if len(m.Sources) != 2 || m.Sources[0] != "vendor.js" || m.Sources[1] != "app.js" {
		t.Errorf("Sources = %v", m.Sources)
	}

	lines, err := Decode(m.Mappings)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	if s := lines[1][0]; s.Source != 0 || s.SrcLine != 1 {
		t.Errorf("line 1 = %+v, want vendor.js:1", s)
	}
	if s := lines[2][0]; s.Source != 1 || s.SrcLine != 0 {
		t.Errorf("line 2 = %+v, want app.js:0", s)
	}
}

func TestConcat_SharedSource(t *testing.T) {
	c := NewConcat("out.css")
	_ = c.Add("a.css", "x\n", nil)
	_ = c.Add("a.css", "y\n", nil)
	if m := c.Map(); len(m.Sources) != 1 {
		t.Errorf("Sources = %v, want a single entry", m.Sources)
	}
}

func TestEmbedExtract(t *testing.T) {
	m := Identity("style.scss", "a{}\n")

	for _, style := range []Style{StyleCSS, StyleJS} {
		out, err := Embed("a{}", m, style)
		if err != nil {
			t.Fatal(err)
		}
		if style == StyleCSS && !strings.Contains(out, "/*# sourceMappingURL=data:application/json") {
			t.Errorf("css comment missing: %q", out)
		}
		if style == StyleJS && !strings.Contains(out, "//# sourceMappingURL=data:application/json") {
			t.Errorf("js comment missing: %q", out)
		}

		content, got, err := Extract(out)
		if err != nil {
			t.Fatal(err)
		}
		if content != "a{}" {
			t.Errorf("content = %q, want a{}", content)
		}
		if got == nil || got.Mappings != m.Mappings || got.Sources[0] != "style.scss" {
			t.Errorf("map = %+v", got)
		}
	}
}

func TestExtract_PercentEncoded(t *testing.T) {
	raw := `{"version":3,"sources":["main.scss","_vars.scss"],"names":[],"mappings":"AAAA;AACA"}`
	tests := []struct {
		name string
		in   string
	}{
		{"css", "a{}\nb{}\n\n/*# sourceMappingURL=data:application/json;charset=utf-8," + url.PathEscape(raw) + " */\n"},
		{"css no space", "a{}\nb{}\n/*# sourceMappingURL=data:application/json," + url.PathEscape(raw) + "*/"},
		{"js", "a{}\nb{}\n//# sourceMappingURL=data:application/json;charset=utf-8," + url.PathEscape(raw)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, m, err := Extract(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if content != "a{}\nb{}" {
				t.Errorf("content = %q", content)
			}
			if m == nil || len(m.Sources) != 2 || m.Sources[0] != "main.scss" || m.Mappings != "AAAA;AACA" {
				t.Errorf("map = %+v", m)
			}
		})
	}
}

func TestExtract_None(t *testing.T) {
	content, m, err := Extract("body{}")
	if err != nil || m != nil || content != "body{}" {
		t.Errorf("Extract = %q, %v, %v", content, m, err)
	}
}

func TestStyleFor(t *testing.T) {
	if StyleFor("style.min.css") != StyleCSS {
		t.Error("css file should use css comments")
	}
	if StyleFor("main.min.js") != StyleJS {
		t.Error("js file should use js comments")
	}
}
