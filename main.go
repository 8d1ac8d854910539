package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"hackc/pkg/build"
)

const usage = `usage: hackc [flags] <file or directory>
       hackc -compare <file> <file>

Compiles .jack classes to .vm, links the .vm units of a directory into
<dir>/<dir>.asm and assembles that into <dir>/<dir>.hack. A directory holding
only .asm files is assembled file by file.

flags:
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("hackc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	opts := build.DefaultOptions()
	target := fs.String("to", opts.Target.String(), "last stage to produce: vm, asm or hack")
	jobs := fs.Int("j", opts.Jobs, "number of files compiled in parallel")
	bootstrap := fs.String("bootstrap", "auto", "emit SP=256 and call Sys.init: auto (when Sys.init is defined), on or off")
	fs.BoolVar(&opts.SharedScratch, "shared-scratch", false, "use R13/R14 in every return sequence instead of per-site variables")
	fs.BoolVar(&opts.Comments, "comments", false, "annotate assembly with the VM command of each block")
	fs.BoolVar(&opts.Runtime, "runtime", false, "link the built-in Memory, Math, Array, String and Sys classes")
	compare := fs.Bool("compare", false, "compare two files line by line instead of building")
	verbose := fs.Bool("v", false, "report the time spent on each output")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *compare {
		if fs.NArg() != 2 {
			fs.Usage()
			return 2
		}
		return runCompare(fs.Arg(0), fs.Arg(1), stdout, stderr)
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	var err error
	if opts.Target, err = build.ParseStage(*target); err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	if opts.Bootstrap, err = build.ParseBootstrap(*bootstrap); err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	opts.Jobs = *jobs

	report, err := build.Run(context.Background(), fs.Arg(0), opts)
	if err != nil {
		fmt.Fprintf(stderr, "hackc: %v\n", err)
		return 1
	}

	p := printer{stdout: stdout, stderr: stderr, verbose: *verbose, color: isTerminal(stdout)}
	for _, art := range report.Artifacts {
		p.artifact(art)
	}
	if n := report.Failed(); n > 0 {
		fmt.Fprintf(stderr, "%d of %d outputs failed\n", n, len(report.Artifacts))
		return 1
	}
	return 0
}

func runCompare(a, b string, stdout, stderr io.Writer) int {
	diffs, err := build.CompareFiles(a, b)
	if err != nil {
		fmt.Fprintf(stderr, "hackc: %v\n", err)
		return 1
	}
	if len(diffs) == 0 {
		fmt.Fprintln(stdout, "files match")
		return 0
	}
	for _, d := range diffs {
		fmt.Fprintln(stdout, d)
	}
	fmt.Fprintf(stderr, "%d differing line(s)\n", len(diffs))
	return 1
}

type printer struct {
	stdout, stderr io.Writer
	verbose        bool
	color          bool
}

const (
	ansiRed   = "\033[31m"
	ansiGreen = "\033[32m"
	ansiReset = "\033[0m"
)

func (p printer) paint(s, code string) string {
	if !p.color {
		return s
	}
	return code + s + ansiReset
}

func (p printer) artifact(art build.Artifact) {
	name := filepath.Base(art.Output)
	if art.Output == "" && len(art.Inputs) > 0 {
		name = filepath.Base(art.Inputs[0])
	}
	if art.Err != nil {
		fmt.Fprintf(p.stderr, "%s %s: %v\n", p.paint("FAIL", ansiRed), name, art.Err)
		return
	}
	line := fmt.Sprintf("%s   %s (%s)", p.paint("ok", ansiGreen), name, humanize.Bytes(uint64(art.Size)))
	if p.verbose {
		line += " in " + art.Elapsed.Round(time.Microsecond).String()
	}
	fmt.Fprintln(p.stdout, line)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
