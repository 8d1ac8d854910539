package build

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// EOFMarker stands in for a line past the end of the shorter input.
const EOFMarker = "<EOF>"

// LineDiff is one differing line; Line is 1-based.
type LineDiff struct {
	Line  int
	Left  string
	Right string
}

func (d LineDiff) String() string {
	return fmt.Sprintf("line %d: %q != %q", d.Line, d.Left, d.Right)
}

// CompareText reports the lines that differ between a and b. Lines are
// compared exactly, except that a trailing carriage return is ignored.
func CompareText(a, b string) []LineDiff {
	left, right := splitLines(a), splitLines(b)
	n := max(len(left), len(right))
	var diffs []LineDiff
	for i := 0; i < n; i++ {
		l, r := EOFMarker, EOFMarker
		if i < len(left) {
			l = left[i]
		}
		if i < len(right) {
			r = right[i]
		}
		if l != r {
			diffs = append(diffs, LineDiff{Line: i + 1, Left: l, Right: r})
		}
	}
	return diffs
}

// CompareFiles compares two files line by line.
func CompareFiles(a, b string) ([]LineDiff, error) {
	left, err := os.ReadFile(a)
	if err != nil {
		return nil, errors.Wrap(err, "compare")
	}
	right, err := os.ReadFile(b)
	if err != nil {
		return nil, errors.Wrap(err, "compare")
	}
	return CompareText(string(left), string(right)), nil
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
