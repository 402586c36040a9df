// Package sourcemap reads, builds and embeds version 3 source maps.
package sourcemap

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Map is a version 3 source map.
type Map struct {
	Version        int      `json:"version"`
	File           string   `json:"file,omitempty"`
	SourceRoot     string   `json:"sourceRoot,omitempty"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent,omitempty"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

// Segment maps a generated column to a position in a source.
// Source is -1 for a segment without source information.
type Segment struct {
	GenCol  int
	Source  int
	SrcLine int
	SrcCol  int
	// Name is -1 when the segment has no name.
	Name int
}

// Parse decodes a JSON source map.
func Parse(data []byte) (*Map, error) {
	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing source map: %w", err)
	}
	if m.Version != 3 {
		return nil, fmt.Errorf("unsupported source map version %d", m.Version)
	}
	return &m, nil
}

// JSON encodes the map.
func (m *Map) JSON() ([]byte, error) {
	if m.Sources == nil {
		m.Sources = []string{}
	}
	if m.Names == nil {
		m.Names = []string{}
	}
	return json.Marshal(m)
}

// Identity returns a map from content to itself: every line maps to the
// same line of source.
func Identity(source, content string) *Map {
	lines := make([][]Segment, LineCount(content))
	for i := range lines {
		lines[i] = []Segment{{Source: 0, SrcLine: i, Name: -1}}
	}
	return &Map{
		Version:        3,
		Sources:        []string{source},
		SourcesContent: []string{content},
		Names:          []string{},
		Mappings:       Encode(lines),
	}
}

// LineCount returns the number of lines in content. A trailing newline does
// not start a new line.
func LineCount(content string) int {
	if content == "" {
		return 0
	}
	n := strings.Count(content, "\n")
	if !strings.HasSuffix(content, "\n") {
		n++
	}
	return n
}

// Decode parses a mappings string into per-line segments with absolute
// values.
func Decode(mappings string) ([][]Segment, error) {
	var (
		lines                       [][]Segment
		line                        []Segment
		source, srcLine, srcCol, nm int
	)
	genCol := 0
	i := 0
	for i <= len(mappings) {
		if i == len(mappings) || mappings[i] == ';' {
			lines = append(lines, line)
			line = nil
			genCol = 0
			i++
			continue
		}
		if mappings[i] == ',' {
			i++
			continue
		}

		var fields [5]int
		n := 0
		for i < len(mappings) && mappings[i] != ',' && mappings[i] != ';' {
			if n == len(fields) {
				return nil, ErrInvalidMappings
			}
			v, next, err := readVLQ(mappings, i)
			if err != nil {
				return nil, err
			}
			fields[n] = v
			n++
			i = next
		}

		seg := Segment{Source: -1, Name: -1}
		genCol += fields[0]
		seg.GenCol = genCol
		switch n {
		case 1:
		case 4, 5:
			source += fields[1]
			srcLine += fields[2]
			srcCol += fields[3]
			seg.Source, seg.SrcLine, seg.SrcCol = source, srcLine, srcCol
			if n == 5 {
				nm += fields[4]
				seg.Name = nm
			}
		default:
			return nil, ErrInvalidMappings
		}
		line = append(line, seg)
	}
	return lines, nil
}

// Encode serializes per-line segments into a mappings string.
func Encode(lines [][]Segment) string {
	var (
		b                           strings.Builder
		source, srcLine, srcCol, nm int
	)
	for li, line := range lines {
		if li > 0 {
			b.WriteByte(';')
		}
		genCol := 0
		for si, seg := range line {
			if si > 0 {
				b.WriteByte(',')
			}
			appendVLQ(&b, seg.GenCol-genCol)
			genCol = seg.GenCol
			if seg.Source < 0 {
				continue
			}
			appendVLQ(&b, seg.Source-source)
			appendVLQ(&b, seg.SrcLine-srcLine)
			appendVLQ(&b, seg.SrcCol-srcCol)
			source, srcLine, srcCol = seg.Source, seg.SrcLine, seg.SrcCol
			if seg.Name >= 0 {
				appendVLQ(&b, seg.Name-nm)
				nm = seg.Name
			}
		}
	}
	return b.String()
}
