package sourcemap

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const dataURLPrefix = "data:application/json;charset=utf-8;base64,"

// Style selects the comment syntax of a source mapping URL.
type Style int

const (
	// StyleCSS writes /*# sourceMappingURL=... */.
	StyleCSS Style = iota
	// StyleJS writes //# sourceMappingURL=....
	StyleJS
)

// StyleFor returns the comment style for a file name.
func StyleFor(name string) Style {
	if strings.HasSuffix(name, ".css") {
		return StyleCSS
	}
	return StyleJS
}

// Comment returns a sourceMappingURL comment embedding m as a data URL.
func Comment(m *Map, style Style) (string, error) {
	data, err := m.JSON()
	if err != nil {
		return "", err
	}
	url := dataURLPrefix + base64.StdEncoding.EncodeToString(data)
	if style == StyleCSS {
		return "/*# sourceMappingURL=" + url + " */", nil
	}
	return "//# sourceMappingURL=" + url, nil
}

// Embed appends the inline map comment to content on its own line.
func Embed(content string, m *Map, style Style) (string, error) {
	comment, err := Comment(m, style)
	if err != nil {
		return "", err
	}
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + comment + "\n", nil
}

var inlineComment = regexp.MustCompile(`(?m)(?:/\*|//)[#@] sourceMappingURL=data:application/json(?:;charset=[\w-]+)?(;base64)?,(\S+?)(?:\s*\*/)?\s*$`)

// Extract removes a trailing inline source map comment from content and
// returns the decoded map. Both base64 and percent-encoded data URLs are
// read; dart-sass writes the latter. When content has no inline map, it is
// returned unchanged with a nil map.
func Extract(content string) (string, *Map, error) {
	locs := inlineComment.FindAllStringSubmatchIndex(content, -1)
	if len(locs) == 0 {
		return content, nil, nil
	}
	loc := locs[len(locs)-1]
	data, err := decodeDataURL(content[loc[4]:loc[5]], loc[2] >= 0)
	if err != nil {
		return content, nil, fmt.Errorf("decoding inline source map: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return content, nil, err
	}
	return strings.TrimRight(content[:loc[0]], "\n"), m, nil
}

func decodeDataURL(payload string, isBase64 bool) ([]byte, error) {
	if isBase64 {
		return base64.StdEncoding.DecodeString(payload)
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}
