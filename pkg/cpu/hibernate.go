package cpu

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// humanReadableState is the JSON-serializable snapshot of CPU control state.
type humanReadableState struct {
	A           uint16 `json:"a"`
	D           uint16 `json:"d"`
	PC          uint16 `json:"pc"`
	Cycles      uint64 `json:"cycles"`
	Halted      bool   `json:"halted"`
	ProgramSize int    `json:"program_size"`
	SP          uint16 `json:"sp"`
	LCL         uint16 `json:"lcl"`
	ARG         uint16 `json:"arg"`
	THIS        uint16 `json:"this"`
	THAT        uint16 `json:"that"`
}

// HibernateToBytes serialises the machine into an in-memory ZIP archive
// holding cpu_state.json, ram.bin and rom.bin.
func (c *CPU) HibernateToBytes() ([]byte, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	state := humanReadableState{
		A:           c.A,
		D:           c.D,
		PC:          c.PC,
		Cycles:      c.Cycles,
		Halted:      c.Halted,
		ProgramSize: c.ProgramSize,
		SP:          c.RAM[0],
		LCL:         c.RAM[1],
		ARG:         c.RAM[2],
		THIS:        c.RAM[3],
		THAT:        c.RAM[4],
	}
	jsonData, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal cpu_state: %w", err)
	}
	if err := writeZipEntry(zw, "cpu_state.json", jsonData); err != nil {
		return nil, err
	}
	if err := writeZipEntry(zw, "ram.bin", uint16SliceToLE(c.RAM[:])); err != nil {
		return nil, err
	}
	if err := writeZipEntry(zw, "rom.bin", uint16SliceToLE(c.ROM[:c.ProgramSize])); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}

// RestoreFromBytes deserialises a ZIP archive produced by HibernateToBytes and
// applies the saved state to the CPU.
func (c *CPU) RestoreFromBytes(data []byte) error {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}

	fileMap := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		fileMap[f.Name] = f
	}

	jsonData, err := readZipEntry(fileMap, "cpu_state.json")
	if err != nil {
		return err
	}
	var state humanReadableState
	if err := json.Unmarshal(jsonData, &state); err != nil {
		return fmt.Errorf("unmarshal cpu_state: %w", err)
	}
	if state.ProgramSize < 0 || state.ProgramSize > ROMSize {
		return fmt.Errorf("invalid program size %d", state.ProgramSize)
	}

	ram, err := readZipEntry(fileMap, "ram.bin")
	if err != nil {
		return err
	}
	rom, err := readZipEntry(fileMap, "rom.bin")
	if err != nil {
		return err
	}

	c.A = state.A
	c.D = state.D
	c.PC = state.PC
	c.Cycles = state.Cycles
	c.Halted = state.Halted
	c.Fault = nil
	c.ProgramSize = state.ProgramSize
	leToUint16Slice(ram, c.RAM[:])
	c.ROM = [ROMSize]uint16{}
	leToUint16Slice(rom, c.ROM[:c.ProgramSize])
	return nil
}

// HibernateToFile writes the snapshot archive to the given file path.
func (c *CPU) HibernateToFile(path string) error {
	data, err := c.HibernateToBytes()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// RestoreFromFile reads a snapshot archive from the given file path.
func (c *CPU) RestoreFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return c.RestoreFromBytes(data)
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create zip entry %q: %w", name, err)
	}
	_, err = w.Write(data)
	return err
}

func readZipEntry(fileMap map[string]*zip.File, name string) ([]byte, error) {
	f, ok := fileMap[name]
	if !ok {
		return nil, fmt.Errorf("zip entry %q not found", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open zip entry %q: %w", name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func uint16SliceToLE(src []uint16) []byte {
	out := make([]byte, len(src)*2)
	for i, v := range src {
		binary.LittleEndian.PutUint16(out[i*2:], v)
	}
	return out
}

func leToUint16Slice(src []byte, dst []uint16) {
	for i := range dst {
		if i*2+1 < len(src) {
			dst[i] = binary.LittleEndian.Uint16(src[i*2:])
		}
	}
}
