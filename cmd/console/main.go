package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"hackc/pkg/build"
	"hackc/pkg/cpu"
	"hackc/pkg/utils"
)

// chunk is the number of steps run between snapshot checks.
const chunk = 100_000

func main() {
	maxSteps := flag.Int("steps", 10_000_000, "stop after this many instructions (0 runs until halt)")
	ramRange := flag.String("ram", "5:8", "RAM cells to print, as start:end")
	key := flag.Int("key", 0, "keyboard code held for the whole run")
	runtime := flag.Bool("runtime", true, "link the built-in runtime classes")
	restore := flag.String("restore", "", "resume from a snapshot archive instead of loading a program")
	snapshot := flag.String("snapshot", "", "save the machine to this archive when the run ends")
	screenshot := flag.String("screenshot", "", "write the screen to this PNG file when the run ends")
	scale := flag.Int("scale", 1, "screenshot scale factor")
	flag.Parse()

	from, to, err := parseRange(*ramRange)
	if err != nil {
		log.Fatalf("Bad -ram: %v", err)
	}

	vm := cpu.NewCPU()
	switch {
	case *restore != "":
		if err := vm.RestoreFromFile(*restore); err != nil {
			log.Fatalf("Restore failed: %v", err)
		}
	case flag.NArg() == 1:
		fullPath, _, err := utils.GetPathInfo(flag.Arg(0))
		if err != nil {
			log.Fatalf("Bad path: %v", err)
		}
		opts := build.DefaultOptions()
		opts.Runtime = *runtime
		words, err := build.LoadProgram(fullPath, opts)
		if err != nil {
			log.Fatalf("Build failed: %v", err)
		}
		if err := vm.Load(words); err != nil {
			log.Fatalf("Load failed: %v", err)
		}
	default:
		fmt.Fprintln(os.Stderr, "usage: console [flags] <program.hack | program.asm | file.jack | dir>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	vm.SetKey(uint16(*key))
	run(vm, *maxSteps)

	report(os.Stdout, vm, from, to)

	if *snapshot != "" {
		if err := vm.HibernateToFile(*snapshot); err != nil {
			log.Fatalf("Snapshot failed: %v", err)
		}
		fmt.Printf("snapshot written to %s\n", *snapshot)
	}
	if *screenshot != "" {
		if err := vm.SaveScreenshot(*screenshot, *scale); err != nil {
			log.Fatalf("Screenshot failed: %v", err)
		}
		fmt.Printf("screenshot written to %s\n", *screenshot)
	}
	if vm.Fault != nil {
		os.Exit(1)
	}
}

// run steps vm in chunks until it halts or maxSteps have run.
func run(vm *cpu.CPU, maxSteps int) {
	for done := 0; !vm.Halted; {
		n := chunk
		if maxSteps > 0 {
			if done >= maxSteps {
				return
			}
			n = min(n, maxSteps-done)
		}
		done += vm.Run(n)
	}
}

func parseRange(s string) (int, int, error) {
	lo, hi, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("%q is not start:end", s)
	}
	from, err := strconv.Atoi(lo)
	if err != nil {
		return 0, 0, err
	}
	to, err := strconv.Atoi(hi)
	if err != nil {
		return 0, 0, err
	}
	if from < 0 || to > cpu.RAMSize || from > to {
		return 0, 0, fmt.Errorf("range %d:%d outside RAM", from, to)
	}
	return from, to, nil
}

// report prints the machine state after a run.
func report(w io.Writer, vm *cpu.CPU, from, to int) {
	state := "running"
	switch {
	case vm.Fault != nil:
		state = "fault: " + vm.Fault.Error()
	case vm.Halted:
		state = "halted"
	}
	fmt.Fprintf(w, "%s after %s cycles\n", state, humanize.Comma(int64(vm.Cycles)))
	fmt.Fprintf(w, "PC=%d A=%d D=%d\n", vm.PC, int16(vm.A), int16(vm.D))
	fmt.Fprintf(w, "SP=%d LCL=%d ARG=%d THIS=%d THAT=%d\n", vm.RAM[0], vm.RAM[1], vm.RAM[2], vm.RAM[3], vm.RAM[4])

	stack := vm.Stack()
	values := make([]string, len(stack))
	for i, v := range stack {
		values[i] = strconv.Itoa(int(int16(v)))
	}
	fmt.Fprintf(w, "stack: [%s]\n", strings.Join(values, " "))

	for addr := from; addr < to; addr++ {
		fmt.Fprintf(w, "RAM[%d] = %d\n", addr, int16(vm.RAM[addr]))
	}
}
