package main

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDumpInfoBlock(t *testing.T) {
	blob := buildTestBlob(t)

	var (
		out     bytes.Buffer
		diagOut bytes.Buffer
	)

	logger := zerolog.New(&diagOut)
	require.NoError(t, dumpInfoBlock(&out, logger, blob))

	dump := out.String()
	assert.Contains(t, dump, "loader: GRUB 2.02 test")
	assert.Contains(t, dump, "memory map (2 entries):")
	assert.Contains(t, dump, "available")
	assert.Contains(t, dump, "reserved")
	assert.Contains(t, dump, "modules (1 stored):")
	assert.Contains(t, dump, "[0x00100000 - 0x00200000]")

	// The block carries no EFI system table so the parse should emit the
	// advisory diagnostic through the bridge.
	assert.Contains(t, diagOut.String(), "no EFI system table")
}

func TestDumpInfoBlockRejectsShortInput(t *testing.T) {
	var out bytes.Buffer
	logger := zerolog.Nop()

	err := dumpInfoBlock(&out, logger, []byte{0x01, 0x02})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too short")
}

func TestDumpInfoBlockRejectsTruncatedInput(t *testing.T) {
	// A block that declares more bytes than the file provides.
	blob := make([]byte, 16)
	binary.LittleEndian.PutUint32(blob, 1024)

	var out bytes.Buffer
	logger := zerolog.Nop()

	err := dumpInfoBlock(&out, logger, blob)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declares 1024 bytes")
}

func TestDumpInfoBlockReportsParseFailure(t *testing.T) {
	// Header followed by a tag with a zero size, which the translation core
	// treats as fatal.
	blob := make([]byte, 24)
	binary.LittleEndian.PutUint32(blob, 24)
	binary.LittleEndian.PutUint32(blob[8:], 6)
	binary.LittleEndian.PutUint32(blob[12:], 0)

	var out bytes.Buffer
	logger := zerolog.Nop()

	err := dumpInfoBlock(&out, logger, blob)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse failed")
}

func TestDiagBridgeSeverityRouting(t *testing.T) {
	specs := []struct {
		in       string
		expLevel string
		expMsg   string
	}{
		{"error: zero-size tag\n", "error", "zero-size tag"},
		{"warning: unhandled tag type\n", "warn", "unhandled tag type"},
		{"plain diagnostic\n", "info", "plain diagnostic"},
	}

	for specIndex, spec := range specs {
		var logOut bytes.Buffer
		bridge := &diagBridge{logger: zerolog.New(&logOut)}

		// Feed the line a byte at a time, the way the kernel sink writes.
		for i := 0; i < len(spec.in); i++ {
			n, err := bridge.Write([]byte{spec.in[i]})
			require.NoError(t, err, "[spec %d]", specIndex)
			require.Equal(t, 1, n, "[spec %d]", specIndex)
		}

		assert.Contains(t, logOut.String(), `"level":"`+spec.expLevel+`"`, "[spec %d]", specIndex)
		assert.Contains(t, logOut.String(), spec.expMsg, "[spec %d]", specIndex)
	}
}

func TestDiagBridgeFlushesPartialLine(t *testing.T) {
	var logOut bytes.Buffer
	bridge := &diagBridge{logger: zerolog.New(&logOut)}

	_, err := bridge.Write([]byte("trailing output without a newline"))
	require.NoError(t, err)
	assert.Empty(t, logOut.String())

	bridge.flush()
	assert.Contains(t, logOut.String(), "trailing output without a newline")
}

// buildTestBlob assembles a small multiboot2 info block containing a loader
// name tag, a memory map tag with two entries, a module tag and the
// terminator.
func buildTestBlob(t *testing.T) []byte {
	t.Helper()

	var tags []byte
	tags = appendTag(tags, 2, []byte("GRUB 2.02 test\x00"))
	tags = appendTag(tags, 6, buildMmapPayload())
	tags = appendTag(tags, 3, buildModulePayload())
	tags = appendTag(tags, 0, nil)

	blob := make([]byte, 8+len(tags))
	binary.LittleEndian.PutUint32(blob, uint32(len(blob)))
	copy(blob[8:], tags)
	return blob
}

// appendTag appends a tag header plus payload to buf, padding the result to
// the 8-byte tag alignment.
func appendTag(buf []byte, tagType uint32, payload []byte) []byte {
	var header [8]byte
	binary.LittleEndian.PutUint32(header[0:], tagType)
	binary.LittleEndian.PutUint32(header[4:], uint32(8+len(payload)))

	buf = append(buf, header[:]...)
	buf = append(buf, payload...)
	for len(buf)%8 != 0 {
		buf = append(buf, 0)
	}
	return buf
}

func buildMmapPayload() []byte {
	payload := make([]byte, 8+2*24)
	binary.LittleEndian.PutUint32(payload[0:], 24) // entry size
	binary.LittleEndian.PutUint32(payload[4:], 0)  // entry version

	binary.LittleEndian.PutUint64(payload[8:], 0x0)
	binary.LittleEndian.PutUint64(payload[16:], 0x9fc00)
	binary.LittleEndian.PutUint32(payload[24:], 1) // available

	binary.LittleEndian.PutUint64(payload[32:], 0x9fc00)
	binary.LittleEndian.PutUint64(payload[40:], 0x400)
	binary.LittleEndian.PutUint32(payload[48:], 2) // reserved

	return payload
}

func buildModulePayload() []byte {
	payload := make([]byte, 8, 8+8)
	binary.LittleEndian.PutUint32(payload[0:], 0x100000)
	binary.LittleEndian.PutUint32(payload[4:], 0x200000)
	payload = append(payload, []byte("initrd\x00")...)
	return payload
}
