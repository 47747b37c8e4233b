// Command coresim is a host harness for the freestanding core: it builds a
// heap.Heap and a device.Registry directly over a synthetic or file-supplied
// board description, and optionally registers hostconsole's device against
// the real terminal so the registry, heap and device list can be exercised
// end-to-end off-target. It does not construct a kernel.Kernel or call
// Start, so none of the go:linkname'd internal/cpu primitives (which have no
// host-side body) are reached.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/TriHexagon/Polaris/device"
	"github.com/TriHexagon/Polaris/heap"
	"github.com/TriHexagon/Polaris/hostconsole"
	"github.com/TriHexagon/Polaris/internal/diag"
	"github.com/TriHexagon/Polaris/memmap"
)

// boardFile is the JSON shape -board loads, mirroring kernel.BoardSpec
// minus the linker-only fields a host run has no use for.
type boardFile struct {
	Memory []struct {
		Name     string `json:"name"`
		Start    uint32 `json:"start"`
		Size     uint32 `json:"size"`
		Internal bool   `json:"internal"`
	} `json:"memory"`
	DeviceIntCount int    `json:"deviceIntCount"`
	HeapSize       uint32 `json:"heapSize"`
}

func loadBoard(path string) (memmap.Map, uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("coresim: open board file: %w", err)
	}
	defer f.Close()

	var bf boardFile
	if err := json.NewDecoder(f).Decode(&bf); err != nil {
		return nil, 0, fmt.Errorf("coresim: decode board file: %w", err)
	}

	mm := make(memmap.Map, 0, len(bf.Memory))
	for _, s := range bf.Memory {
		mm = append(mm, memmap.Section{
			Name:     s.Name,
			Start:    uintptr(s.Start),
			Size:     s.Size,
			Internal: s.Internal,
		})
	}
	return mm, bf.HeapSize, nil
}

// syntheticBoard demonstrates the STM32F4-class map called out as an
// example: a 128 KiB internal SRAM section and a 64 KiB internal TCM
// section, with a 4 KiB heap carved out of SRAM for this run.
func syntheticBoard() (memmap.Map, uint32) {
	return memmap.Map{
		{Name: "SRAM", Start: 0x20000000, Size: 128 * 1024, Internal: true},
		{Name: "TCM", Start: 0x10000000, Size: 64 * 1024, Internal: true},
	}, 4096
}

// slogSink adapts diag.Sink to a *slog.Logger, so the freestanding core's
// diagnostic lines land in coresim's structured log stream instead of a raw
// UART.
type slogSink struct{ logger *slog.Logger }

func (s slogSink) WriteString(str string) { s.logger.Info(str) }

func main() {
	boardPath := flag.String("board", "", "path to a JSON board description; uses a synthetic STM32F4-class map if empty")
	useConsole := flag.Bool("console", false, "register a real terminal as a char device (requires stdin to be a TTY)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var mm memmap.Map
	var heapSize uint32
	if *boardPath != "" {
		var err error
		mm, heapSize, err = loadBoard(*boardPath)
		if err != nil {
			logger.Error("failed to load board file", "error", err)
			os.Exit(1)
		}
	} else {
		mm, heapSize = syntheticBoard()
	}

	h := heap.New(make([]byte, heapSize))
	logger.Info("heap initialised", "size", heapSize, "regions", len(mm))

	registry := device.New(h)
	registry.RegisterObserver(func(d *device.Device, ev device.Event) {
		logger.Info("device registry event", "device", d.Name, "event", eventName(ev))
	})

	var sink diag.Sink = slogSink{logger: logger}
	diag.Line(sink, "coresim: boot sequence complete")

	if *useConsole {
		console, err := hostconsole.New(os.Stdin, os.Stdout)
		if err != nil {
			logger.Error("console unavailable", "error", err)
			os.Exit(1)
		}
		defer console.Close()

		if err := registry.Register(console.AsDevice("console0", 0)); err != device.ErrNone {
			logger.Error("failed to register console device", "error", err)
			os.Exit(1)
		}
		logger.Info("registered console0, press Ctrl-D to exit")

		buf := make([]byte, 1)
		for {
			n, err := console.Read(0, buf)
			if n > 0 {
				console.Write(0, buf[:n])
			}
			if err != nil {
				break
			}
		}
	}
}

func eventName(ev device.Event) string {
	switch ev {
	case device.EventRegistered:
		return "registered"
	case device.EventUnregistered:
		return "unregistered"
	default:
		return "unknown"
	}
}
