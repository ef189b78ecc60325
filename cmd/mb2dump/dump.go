package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"runtime"
	"strings"
	"unsafe"

	"github.com/rs/zerolog"

	"github.com/robertdigital/acrn-hypervisor/kernel/kfmt"
	"github.com/robertdigital/acrn-hypervisor/kernel/multiboot"
)

// dumpInfoBlock parses blob as a multiboot2 info block and writes its
// normalized form to out. Diagnostics emitted by the translation core are
// forwarded to logger.
func dumpInfoBlock(out io.Writer, logger zerolog.Logger, blob []byte) error {
	if len(blob) < 8 {
		return fmt.Errorf("info block too short: %d bytes", len(blob))
	}

	declared := binary.LittleEndian.Uint32(blob)
	if int(declared) > len(blob) {
		return fmt.Errorf("info block declares %d bytes but the file holds only %d", declared, len(blob))
	}

	bridge := &diagBridge{logger: logger}
	kfmt.SetOutputSink(bridge)
	defer func() {
		bridge.flush()
		kfmt.SetOutputSink(nil)
	}()

	// The tag overlays require the block to start on an 8-byte boundary,
	// which a plain byte slice does not guarantee.
	words := make([]uint64, (len(blob)+7)/8)
	aligned := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(blob))
	copy(aligned, blob)

	var bootInfo multiboot.Info
	if err := multiboot.Parse(&bootInfo, uintptr(unsafe.Pointer(&words[0]))); err != nil {
		return fmt.Errorf("parse failed: %s", err.Error())
	}

	printInfo(out, &bootInfo)

	// The normalized info refers back into the block via raw pointers
	// (e.g. the loader name) so the aligned copy must outlive printInfo.
	runtime.KeepAlive(words)
	return nil
}

// printInfo writes the normalized boot info in a human-readable layout.
func printInfo(out io.Writer, bootInfo *multiboot.Info) {
	fmt.Fprintf(out, "flags: 0x%x\n", uint32(bootInfo.Flags))

	if bootInfo.Flags&multiboot.FlagLoaderName != 0 {
		fmt.Fprintf(out, "loader: %s\n", bootInfo.LoaderNameString())
	}

	if bootInfo.Flags&multiboot.FlagMemoryMap != 0 {
		fmt.Fprintf(out, "memory map (%d entries):\n", bootInfo.MmapEntryCount)
		for _, entry := range bootInfo.MemoryMap() {
			fmt.Fprintf(out, "  [0x%012x - 0x%012x] %s\n",
				entry.PhysAddress, entry.PhysAddress+entry.Length, entry.Type)
		}
	}

	if bootInfo.Flags&multiboot.FlagModules != 0 {
		fmt.Fprintf(out, "modules (%d stored):\n", bootInfo.ModuleCount)
		for _, mod := range bootInfo.ModuleList() {
			fmt.Fprintf(out, "  [0x%08x - 0x%08x] cmdline at 0x%08x\n", mod.Start, mod.End, mod.CmdLine)
		}
	}

	if bootInfo.Flags&multiboot.FlagAcpiRsdp != 0 {
		fmt.Fprintf(out, "ACPI RSDP at 0x%x\n", bootInfo.AcpiRsdp)
	}

	if bootInfo.Flags&multiboot.FlagEfi64 != 0 {
		efi := bootInfo.EfiInfo
		fmt.Fprintf(out, "EFI64: system table 0x%08x, memory map 0x%08x (%d bytes, descriptor %d v%d)\n",
			efi.SystemTable, efi.MemMap, efi.MemMapSize, efi.MemDescSize, efi.MemDescVersion)
	}
}

// diagBridge adapts the kernel diagnostics sink to the tool's structured
// logger. The kernel side writes a few bytes at a time so the bridge buffers
// until it sees a full line and routes it by its severity prefix.
type diagBridge struct {
	logger zerolog.Logger
	line   bytes.Buffer
}

// Write implements io.Writer.
func (b *diagBridge) Write(p []byte) (int, error) {
	for _, ch := range p {
		if ch == '\n' {
			b.flush()
			continue
		}
		b.line.WriteByte(ch)
	}

	return len(p), nil
}

// flush emits the buffered line, if any, at the severity its prefix names.
func (b *diagBridge) flush() {
	msg := b.line.String()
	b.line.Reset()

	switch {
	case msg == "":
	case strings.HasPrefix(msg, "error: "):
		b.logger.Error().Msg(strings.TrimPrefix(msg, "error: "))
	case strings.HasPrefix(msg, "warning: "):
		b.logger.Warn().Msg(strings.TrimPrefix(msg, "warning: "))
	default:
		b.logger.Info().Msg(msg)
	}
}
