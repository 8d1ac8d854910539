package build

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"hackc/pkg/asm"
	"hackc/pkg/compiler"
	"hackc/pkg/jackos"
	"hackc/pkg/utils"
	"hackc/pkg/vm"
)

// Source is one input file held in memory. The extension of Path selects
// the front end.
type Source struct {
	Path string
	Text string
}

// Name is the unit name: the file name without its extension.
func (s Source) Name() string {
	return utils.BaseName(s.Path)
}

// Module is a unit lowered to VM commands.
type Module struct {
	Name     string
	Path     string
	Commands []vm.Command
}

// Image is a linked, assembled program.
type Image struct {
	Modules  []Module
	Assembly string
	Words    []uint16
	Symbols  *asm.Assembler
}

// CompileSource lowers a .jack or .vm source to VM commands.
func CompileSource(src Source) (Module, error) {
	mod := Module{Name: src.Name(), Path: src.Path}
	switch strings.ToLower(filepath.Ext(src.Path)) {
	case ".jack":
		prog, err := compiler.CompileClass(src.Text)
		if err != nil {
			return mod, errors.Wrapf(err, "compile %s", filepath.Base(src.Path))
		}
		mod.Commands = prog
	case ".vm":
		cmds, err := vm.Parse(src.Text)
		if err != nil {
			return mod, errors.Wrapf(err, "parse %s", filepath.Base(src.Path))
		}
		mod.Commands = cmds
	default:
		return mod, errors.Errorf("%s: not a .jack or .vm file", filepath.Base(src.Path))
	}
	return mod, nil
}

// withRuntime appends the runtime modules whose unit name is not already
// taken by mods.
func withRuntime(mods []Module) ([]Module, error) {
	have := make(map[string]bool, len(mods))
	for _, m := range mods {
		have[m.Name] = true
	}
	out := append([]Module(nil), mods...)
	for _, f := range jackos.Files() {
		if have[f.Name] {
			continue
		}
		mod, err := CompileSource(Source{Path: f.Path, Text: f.Source})
		if err != nil {
			return nil, errors.Wrap(err, "runtime")
		}
		out = append(out, mod)
	}
	return out, nil
}

func definesFunction(mods []Module, name string) bool {
	for _, m := range mods {
		for _, c := range m.Commands {
			if c.Kind == vm.CmdFunction && c.Name == name {
				return true
			}
		}
	}
	return false
}

// Link translates modules, in order, into one assembly program. Runtime
// modules follow the program's own when requested.
func Link(mods []Module, opts Options) (string, error) {
	if opts.Runtime {
		var err error
		if mods, err = withRuntime(mods); err != nil {
			return "", err
		}
	}

	t := vm.NewTranslator(opts.translatorOptions()...)
	switch opts.Bootstrap {
	case BootstrapOn:
		t.WriteBootstrap()
	case BootstrapAuto:
		if definesFunction(mods, "Sys.init") {
			t.WriteBootstrap()
		}
	}

	for _, m := range mods {
		t.SetUnit(m.Name)
		if err := t.WriteAll(m.Commands); err != nil {
			return "", errors.Wrapf(err, "translate %s", m.Name)
		}
	}
	return t.String(), nil
}

// Assemble encodes assembly text; name is used in error context only.
func Assemble(name, text string) ([]uint16, *asm.Assembler, error) {
	a := asm.NewAssembler()
	words, _, err := a.Assemble(text)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "assemble %s", name)
	}
	return words, a, nil
}

// BuildImage runs every stage in memory.
func BuildImage(srcs []Source, opts Options) (*Image, error) {
	img := &Image{}
	for _, src := range srcs {
		mod, err := CompileSource(src)
		if err != nil {
			return nil, err
		}
		img.Modules = append(img.Modules, mod)
	}

	text, err := Link(img.Modules, opts)
	if err != nil {
		return nil, err
	}
	img.Assembly = text

	img.Words, img.Symbols, err = Assemble("program", text)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// LoadProgram produces machine words for the program named by path. A .hack
// or .asm file is decoded directly; anything else is collected as .jack and
// .vm units and built in memory.
func LoadProgram(path string, opts Options) ([]uint16, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hack":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		words, err := asm.ParseHack(string(data))
		return words, errors.Wrapf(err, "load %s", filepath.Base(path))
	case ".asm":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		words, _, err := Assemble(filepath.Base(path), string(data))
		return words, err
	}

	files, _, err := utils.CollectFiles(path, ".jack", ".vm")
	if err != nil {
		return nil, errors.Wrap(err, "collect inputs")
	}
	units, _ := planInputs(files)
	if len(units) == 0 {
		return nil, errors.Errorf("no .jack or .vm input in %s", path)
	}
	srcs := make([]Source, 0, len(units))
	for _, u := range units {
		data, err := os.ReadFile(u)
		if err != nil {
			return nil, err
		}
		srcs = append(srcs, Source{Path: u, Text: string(data)})
	}
	img, err := BuildImage(srcs, opts)
	if err != nil {
		return nil, err
	}
	return img.Words, nil
}
