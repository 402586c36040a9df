package sourcemap

// Concat builds the map of several inputs joined one after another.
type Concat struct {
	file    string
	sources []string
	content []string
	names   []string
	index   map[string]int
	nameIdx map[string]int
	lines   [][]Segment
}

// NewConcat starts a map for the combined output file.
func NewConcat(file string) *Concat {
	return &Concat{
		file:    file,
		index:   make(map[string]int),
		nameIdx: make(map[string]int),
	}
}

// Add appends an input. When m is nil the input maps line for line to
// source. Otherwise m's mappings are carried over, shifted to the lines the
// input occupies in the output. Inputs are expected to be joined with each
// one ending in a newline.
func (c *Concat) Add(source string, content string, m *Map) error {
	lines := LineCount(content)
	if m == nil {
		idx := c.source(source, content)
		for i := 0; i < lines; i++ {
			c.lines = append(c.lines, []Segment{{Source: idx, SrcLine: i, Name: -1}})
		}
		return nil
	}

	decoded, err := Decode(m.Mappings)
	if err != nil {
		return err
	}

	srcMap := make([]int, len(m.Sources))
	for i, s := range m.Sources {
		var sc string
		if i < len(m.SourcesContent) {
			sc = m.SourcesContent[i]
		}
		srcMap[i] = c.source(s, sc)
	}
	nameMap := make([]int, len(m.Names))
	for i, n := range m.Names {
		nameMap[i] = c.name(n)
	}

	for i := 0; i < lines; i++ {
		var out []Segment
		if i < len(decoded) {
			for _, seg := range decoded[i] {
				if seg.Source >= 0 {
					if seg.Source >= len(srcMap) {
						return ErrInvalidMappings
					}
					seg.Source = srcMap[seg.Source]
				}
				if seg.Name >= 0 {
					if seg.Name >= len(nameMap) {
						return ErrInvalidMappings
					}
					seg.Name = nameMap[seg.Name]
				}
				out = append(out, seg)
			}
		}
		c.lines = append(c.lines, out)
	}
	return nil
}

// Map returns the combined map.
func (c *Concat) Map() *Map {
	return &Map{
		Version:        3,
		File:           c.file,
		Sources:        append([]string{}, c.sources...),
		SourcesContent: append([]string{}, c.content...),
		Names:          append([]string{}, c.names...),
		Mappings:       Encode(c.lines),
	}
}

func (c *Concat) source(name, content string) int {
	if i, ok := c.index[name]; ok {
		return i
	}
	i := len(c.sources)
	c.index[name] = i
	c.sources = append(c.sources, name)
	c.content = append(c.content, content)
	return i
}

func (c *Concat) name(n string) int {
	if i, ok := c.nameIdx[n]; ok {
		return i
	}
	i := len(c.names)
	c.nameIdx[n] = i
	c.names = append(c.names, n)
	return i
}
