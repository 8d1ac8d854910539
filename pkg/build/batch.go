package build

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"hackc/pkg/asm"
	"hackc/pkg/utils"
	"hackc/pkg/vm"
)

// Artifact is the outcome of producing one output file.
type Artifact struct {
	Inputs  []string
	Output  string
	Stage   Stage
	Size    int
	Elapsed time.Duration
	Err     error
}

type Report struct {
	Artifacts []Artifact
}

// Failed counts artifacts that could not be produced.
func (r *Report) Failed() int {
	n := 0
	for _, a := range r.Artifacts {
		if a.Err != nil {
			n++
		}
	}
	return n
}

type unitResult struct {
	mod      Module
	artifact *Artifact
	err      error
}

// Run builds every input under path up to opts.Target and writes the
// outputs next to their inputs. A directory of .jack/.vm files links into
// <dir>/<dir>.asm; a single file links into a file of the same base name.
// Per-file failures are recorded in the report and do not stop other files.
func Run(ctx context.Context, path string, opts Options) (*Report, error) {
	files, isDir, err := utils.CollectFiles(path, ".jack", ".vm", ".asm")
	if err != nil {
		return nil, errors.Wrap(err, "collect inputs")
	}
	units, asmFiles := planInputs(files)
	if len(units) == 0 && len(asmFiles) == 0 {
		return nil, errors.Errorf("no .jack, .vm or .asm input in %s", path)
	}

	report := &Report{}
	if len(units) == 0 {
		if opts.Target != StageHack {
			return nil, errors.Errorf("assembly input needs -to hack, got -to %s", opts.Target)
		}
		report.Artifacts = assembleFiles(ctx, asmFiles, opts)
		return report, nil
	}

	results := compileUnits(ctx, units, opts)
	var mods []Module
	failed := 0
	for _, r := range results {
		if r.artifact != nil {
			report.Artifacts = append(report.Artifacts, *r.artifact)
		}
		if r.err != nil {
			failed++
			continue
		}
		mods = append(mods, r.mod)
	}
	if opts.Target == StageVM {
		return report, nil
	}

	out := utils.SwapExt(units[0], ".asm")
	if isDir {
		dir := filepath.Dir(units[0])
		out = filepath.Join(dir, filepath.Base(dir)+".asm")
	}
	if failed > 0 {
		report.Artifacts = append(report.Artifacts, Artifact{
			Inputs: units,
			Output: out,
			Stage:  StageASM,
			Err:    errors.Errorf("link skipped: %d unit(s) failed", failed),
		})
		return report, nil
	}
	report.Artifacts = append(report.Artifacts, linkAndAssemble(mods, units, out, opts)...)
	return report, nil
}

// planInputs picks the front-end units (.jack, and .vm without a .jack twin)
// and the .asm files to assemble directly. Assembly files are only inputs
// when there is nothing to compile, since they are otherwise earlier outputs.
func planInputs(files []string) (units, asmFiles []string) {
	jack := make(map[string]bool)
	for _, f := range files {
		if strings.EqualFold(filepath.Ext(f), ".jack") {
			jack[utils.SwapExt(f, "")] = true
		}
	}
	for _, f := range files {
		switch strings.ToLower(filepath.Ext(f)) {
		case ".jack":
			units = append(units, f)
		case ".vm":
			if !jack[utils.SwapExt(f, "")] {
				units = append(units, f)
			}
		case ".asm":
			asmFiles = append(asmFiles, f)
		}
	}
	if len(units) > 0 {
		asmFiles = nil
	}
	return units, asmFiles
}

// compileUnits lowers each unit on its own goroutine, bounded by opts.Jobs.
// Every unit owns its compiler state; a failure never cancels its siblings.
func compileUnits(ctx context.Context, units []string, opts Options) []unitResult {
	results := make([]unitResult, len(units))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.jobs())
	for i, path := range units {
		i, path := i, path
		g.Go(func() error {
			results[i] = compileUnit(ctx, path)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func compileUnit(ctx context.Context, path string) unitResult {
	if err := ctx.Err(); err != nil {
		return unitResult{err: err, artifact: &Artifact{Inputs: []string{path}, Err: err}}
	}
	start := time.Now()
	data, err := os.ReadFile(path)
	if err != nil {
		err = errors.Wrapf(err, "read %s", filepath.Base(path))
		return unitResult{err: err, artifact: &Artifact{Inputs: []string{path}, Err: err}}
	}

	mod, err := CompileSource(Source{Path: path, Text: string(data)})
	isJack := strings.EqualFold(filepath.Ext(path), ".jack")
	if !isJack {
		if err != nil {
			return unitResult{err: err, artifact: &Artifact{Inputs: []string{path}, Err: err}}
		}
		return unitResult{mod: mod}
	}

	art := &Artifact{Inputs: []string{path}, Output: utils.SwapExt(path, ".vm"), Stage: StageVM}
	if err == nil {
		text := vm.Program(mod.Commands).String()
		art.Size = len(text)
		err = writeOutput(art.Output, text)
	}
	art.Err = err
	art.Elapsed = time.Since(start)
	return unitResult{mod: mod, artifact: art, err: err}
}

func linkAndAssemble(mods []Module, inputs []string, out string, opts Options) []Artifact {
	start := time.Now()
	link := Artifact{Inputs: inputs, Output: out, Stage: StageASM}
	text, err := Link(mods, opts)
	if err == nil {
		link.Size = len(text)
		err = writeOutput(out, text)
	}
	link.Err = err
	link.Elapsed = time.Since(start)
	if err != nil || opts.Target == StageASM {
		return []Artifact{link}
	}
	return []Artifact{link, assembleText(out, text)}
}

func assembleFiles(ctx context.Context, files []string, opts Options) []Artifact {
	arts := make([]Artifact, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.jobs())
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				arts[i] = Artifact{Inputs: []string{path}, Stage: StageHack, Err: err}
				return nil
			}
			data, err := os.ReadFile(path)
			if err != nil {
				arts[i] = Artifact{Inputs: []string{path}, Stage: StageHack, Err: errors.Wrapf(err, "read %s", filepath.Base(path))}
				return nil
			}
			arts[i] = assembleText(path, string(data))
			return nil
		})
	}
	_ = g.Wait()
	return arts
}

// assembleText encodes the assembly read from (or written to) asmPath into
// the matching .hack file.
func assembleText(asmPath, text string) Artifact {
	start := time.Now()
	art := Artifact{Inputs: []string{asmPath}, Output: utils.SwapExt(asmPath, ".hack"), Stage: StageHack}
	words, _, err := Assemble(filepath.Base(asmPath), text)
	if err == nil {
		hack := asm.Format(words)
		art.Size = len(hack)
		err = writeOutput(art.Output, hack)
	}
	art.Err = err
	art.Elapsed = time.Since(start)
	return art
}

func writeOutput(path, text string) error {
	if err := utils.WriteFileAtomic(path, []byte(text)); err != nil {
		return errors.Wrapf(err, "write %s", filepath.Base(path))
	}
	return nil
}
