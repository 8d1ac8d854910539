// Package jackos is a minimal runtime for compiled Jack programs: a bump
// allocator, software multiply and divide, fixed-capacity strings and a
// Sys.init that runs Main.main and halts.
package jackos

import (
	"embed"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed *.jack *.vm
var files embed.FS

// ResultAddress is the RAM cell holding Main.main's return value after
// Sys.init halts (temp 0).
const ResultAddress = 5

// ErrorAddress holds the code passed to Sys.error (temp 1).
const ErrorAddress = 6

// File is one runtime source file.
type File struct {
	Name   string // unit name, e.g. "Math"
	Path   string // file name, e.g. "Math.jack"
	Source string
}

// Files returns the runtime sources ordered by file name.
func Files() []File {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		panic(err)
	}
	var out []File
	for _, entry := range entries {
		data, err := files.ReadFile(entry.Name())
		if err != nil {
			panic(err)
		}
		out = append(out, File{
			Name:   strings.TrimSuffix(entry.Name(), path.Ext(entry.Name())),
			Path:   entry.Name(),
			Source: string(data),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
