package build

import (
	"fmt"
	"runtime"

	"hackc/pkg/vm"
)

// Stage is the last pipeline stage to run.
type Stage int

const (
	StageVM Stage = iota
	StageASM
	StageHack
)

var stageNames = [...]string{
	StageVM:   "vm",
	StageASM:  "asm",
	StageHack: "hack",
}

func (s Stage) String() string {
	if int(s) >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Ext is the output file extension of the stage.
func (s Stage) Ext() string {
	return "." + s.String()
}

func ParseStage(s string) (Stage, error) {
	for i, name := range stageNames {
		if name == s {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q (want vm, asm or hack)", s)
}

// BootstrapMode decides whether linked programs start with SP=256 and a
// call to Sys.init.
type BootstrapMode int

const (
	BootstrapAuto BootstrapMode = iota // only when some module defines Sys.init
	BootstrapOn
	BootstrapOff
)

func ParseBootstrap(s string) (BootstrapMode, error) {
	switch s {
	case "auto":
		return BootstrapAuto, nil
	case "on":
		return BootstrapOn, nil
	case "off":
		return BootstrapOff, nil
	}
	return 0, fmt.Errorf("unknown bootstrap mode %q (want auto, on or off)", s)
}

type Options struct {
	Target    Stage
	Jobs      int
	Bootstrap BootstrapMode

	// SharedScratch uses R13/R14 for every return sequence.
	SharedScratch bool
	// Comments annotates assembly with the VM command of each block.
	Comments bool
	// Runtime links the built-in runtime classes the program does not
	// define itself.
	Runtime bool
}

func DefaultOptions() Options {
	return Options{
		Target: StageHack,
		Jobs:   runtime.NumCPU(),
	}
}

func (o Options) jobs() int {
	if o.Jobs < 1 {
		return 1
	}
	return o.Jobs
}

func (o Options) translatorOptions() []vm.Option {
	var opts []vm.Option
	if o.SharedScratch {
		opts = append(opts, vm.WithSharedScratch())
	}
	if o.Comments {
		opts = append(opts, vm.WithComments())
	}
	return opts
}
