package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"hackc/pkg/build"
	"hackc/pkg/cpu"
	"hackc/pkg/utils"
)

type Game struct {
	vm        *cpu.CPU
	screenImg *ebiten.Image // reused 512×256 canvas

	stepsPerFrame int

	held  []ebiten.Key
	typed []rune
	key   uint16

	snapshotPath  string
	snapshotEvery time.Duration
	lastSnapshot  time.Time
}

func (g *Game) Update() error {
	g.held = inpututil.AppendPressedKeys(g.held[:0])
	g.typed = ebiten.AppendInputChars(g.typed[:0])
	g.key = keyCode(g.held, g.typed, g.key)
	g.vm.SetKey(g.key)

	for i := 0; i < g.stepsPerFrame; i++ {
		if g.vm.Halted {
			break
		}
		g.vm.Step()
	}

	if g.snapshotPath != "" && time.Since(g.lastSnapshot) >= g.snapshotEvery {
		if err := g.vm.HibernateToFile(g.snapshotPath); err != nil {
			log.Printf("snapshot failed: %v", err)
		}
		g.lastSnapshot = time.Now()
	}
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	if g.screenImg == nil {
		g.screenImg = ebiten.NewImage(cpu.ScreenWidth, cpu.ScreenHeight)
	}
	g.screenImg.WritePixels(g.vm.GetFramebufferRGBA())
	screen.DrawImage(g.screenImg, nil)

	switch {
	case g.vm.Fault != nil:
		ebitenutil.DebugPrintAt(screen, fmt.Sprintf("fault: %v", g.vm.Fault), 4, cpu.ScreenHeight-16)
	case g.vm.Halted:
		ebitenutil.DebugPrintAt(screen, fmt.Sprintf("halted after %d cycles", g.vm.Cycles), 4, cpu.ScreenHeight-16)
	}
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return cpu.ScreenWidth, cpu.ScreenHeight
}

func main() {
	runtime := flag.Bool("runtime", true, "link the built-in runtime classes")
	speed := flag.Int("speed", 20000, "instructions executed per frame")
	scale := flag.Int("scale", 2, "window scale factor")
	restore := flag.String("restore", "", "resume from a snapshot archive instead of loading a program")
	snapshot := flag.String("snapshot", "", "periodically save the machine to this snapshot archive")
	every := flag.Duration("every", 3*time.Second, "interval between snapshots")
	flag.Parse()

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
		fmt.Fprintln(os.Stderr, "usage: desktop [flags] <program.hack | program.asm | file.jack | dir>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(cpu.ScreenWidth*(*scale), cpu.ScreenHeight*(*scale))
	ebiten.SetWindowTitle("Hack Desktop")

	game := &Game{
		vm:            vm,
		stepsPerFrame: *speed,
		snapshotPath:  *snapshot,
		snapshotEvery: *every,
		lastSnapshot:  time.Now(),
	}
	if err := ebiten.RunGame(game); err != nil {
		log.Fatal(err)
	}

	if *snapshot != "" {
		if err := vm.HibernateToFile(*snapshot); err != nil {
			log.Fatalf("Final snapshot failed: %v", err)
		}
	}
}
