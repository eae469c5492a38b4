package naming

import (
	"strconv"
	"strings"
)

// A Segment is one dot-separated part of a hierarchical name.
type Segment struct {
	Elem    string
	Indices []int
}

// Parse splits a name into its segments. It panics if a bracket is not
// closed or an index is not an integer.
func Parse(name string) []Segment {
	parts := strings.Split(name, ".")
	segments := make([]Segment, 0, len(parts))

	for _, p := range parts {
		segments = append(segments, parseSegment(p))
	}

	return segments
}

func parseSegment(s string) Segment {
	open := strings.IndexByte(s, '[')
	if open < 0 {
		if strings.IndexByte(s, ']') >= 0 {
			panic("unmatched ]")
		}

		return Segment{Elem: s}
	}

	seg := Segment{Elem: s[:open]}
	rest := s[open:]

	for rest != "" {
		if rest[0] != '[' {
			panic("unexpected text after index")
		}

		closing := strings.IndexByte(rest, ']')
		if closing < 0 {
			panic("unmatched [")
		}

		index, err := strconv.Atoi(rest[1:closing])
		if err != nil {
			panic("index must be an integer")
		}

		seg.Indices = append(seg.Indices, index)
		rest = rest[closing+1:]
	}

	return seg
}

// NameMustBeValid panics unless every segment of the name is a non-empty
// CamelCase word starting with a capital letter, optionally followed by
// integer indices in square brackets.
func NameMustBeValid(name string) {
	defer func() {
		if r := recover(); r != nil {
			panic("name \"" + name + "\" is not valid: " + r.(string))
		}
	}()

	for _, seg := range Parse(name) {
		segmentMustBeValid(seg)
	}
}

func segmentMustBeValid(seg Segment) {
	if seg.Elem == "" {
		panic("empty segment")
	}

	if seg.Elem[0] < 'A' || seg.Elem[0] > 'Z' {
		panic("segment must start with a capital letter")
	}

	if strings.ContainsAny(seg.Elem, "_-\"' ") {
		panic("segment must be CamelCase")
	}
}

// BuildName joins a parent name and a child element.
func BuildName(parent, elem string) string {
	if parent == "" {
		return elem
	}

	return parent + "." + elem
}

// BuildNameWithIndex joins a parent name and an indexed child element.
func BuildNameWithIndex(parent, elem string, index int) string {
	return BuildName(parent, elem+"["+strconv.Itoa(index)+"]")
}
