package mpq

import (
	"bytes"
	"sort"
)

// ParseListfile splits a raw (listfile) body into names, tolerating both
// CRLF and bare-LF line endings and the optional ";"-delimited metadata
// suffix some tools append per line (spec.md §4.7).
func ParseListfile(data []byte) []string {
	normalized := bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	lines := bytes.Split(normalized, []byte("\n"))

	names := make([]string, 0, len(lines))
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		if i := bytes.IndexByte(line, ';'); i >= 0 {
			line = line[:i]
		}
		names = append(names, string(line))
	}
	return names
}

// EncodeListfile serializes names into a (listfile) body, sorted and
// CRLF-terminated to match how Blizzard's own tools regenerate the file
// (spec.md §4.6: "(listfile) and (attributes) are regenerated on every
// flush, not incrementally patched").
func EncodeListfile(names []string) []byte {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	var buf bytes.Buffer
	for _, n := range sorted {
		buf.WriteString(n)
		buf.WriteString("\r\n")
	}
	return buf.Bytes()
}
