package kfmt

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintf(t *testing.T) {
	defer func() {
		outputSink = nil
	}()

	// mute vet warnings about malformed printf formatting strings
	printfn := Printf

	specs := []struct {
		fn        func()
		expOutput string
	}{
		{
			func() { printfn("no args") },
			"no args",
		},
		{
			func() { printfn("literal %% escape") },
			"literal % escape",
		},
		// bool values
		{
			func() { printfn("%t", true) },
			"true",
		},
		{
			func() { printfn("%t", false) },
			"false",
		},
		// strings and byte slices
		{
			func() { printfn("%s arg", "STRING") },
			"STRING arg",
		},
		{
			func() { printfn("%s arg", []byte("BYTE SLICE")) },
			"BYTE SLICE arg",
		},
		{
			func() { printfn("'%5s' padded", "abc") },
			"'  abc' padded",
		},
		{
			func() { printfn("'%2s' longer than padding", "abcde") },
			"'abcde' longer than padding",
		},
		// ints
		{
			func() { printfn("int arg: %d", 42) },
			"int arg: 42",
		},
		{
			func() { printfn("negative int arg: %d", -42) },
			"negative int arg: -42",
		},
		{
			func() { printfn("int arg with padding: '%5d'", int64(123)) },
			"int arg with padding: '  123'",
		},
		// uints
		{
			func() { printfn("uint arg: %d", uint8(10)) },
			"uint arg: 10",
		},
		{
			func() { printfn("uint arg: 0x%x", uint32(0xbadf00d)) },
			"uint arg: 0xbadf00d",
		},
		{
			func() { printfn("uintptr arg: 0x%x", uintptr(0xdeadc0de)) },
			"uintptr arg: 0xdeadc0de",
		},
		{
			func() { printfn("uint arg with padding: '0x%10x'", uint64(0xbadf00d)) },
			"uint arg with padding: '0x000badf00d'",
		},
		// errors
		{
			func() { printfn("missing arg: %d") },
			"missing arg: (MISSING)",
		},
		{
			func() { printfn("no verb: %") },
			"no verb: %!(NOVERB)",
		},
		{
			func() { printfn("bad verb: %y", 1) },
			"bad verb: %!(NOVERB)",
		},
		{
			func() { printfn("wrong type: %d", "str") },
			"wrong type: %!(WRONGTYPE)",
		},
		{
			func() { printfn("extra args", 1, 2) },
			"extra args%!(EXTRA)%!(EXTRA)",
		},
	}

	var buf bytes.Buffer
	outputSink = &buf

	for specIndex, spec := range specs {
		buf.Reset()
		spec.fn()

		if got := buf.String(); got != spec.expOutput {
			t.Errorf("[spec %d] expected output %q; got %q", specIndex, spec.expOutput, got)
		}
	}
}

func TestSeverityHelpers(t *testing.T) {
	defer func() {
		outputSink = nil
	}()

	var buf bytes.Buffer
	outputSink = &buf

	Warnf("unhandled tag type: %d\n", 9)
	if exp, got := "warning: unhandled tag type: 9\n", buf.String(); got != exp {
		t.Errorf("expected output %q; got %q", exp, got)
	}

	buf.Reset()
	Errorf("too many modules: %d\n", 5)
	if exp, got := "error: too many modules: 5\n", buf.String(); got != exp {
		t.Errorf("expected output %q; got %q", exp, got)
	}
}

func TestEarlyOutputCapture(t *testing.T) {
	defer func() {
		outputSink = nil
		earlyBuf.rIndex = 0
		earlyBuf.wIndex = 0
	}()

	outputSink = nil
	Printf("captured before sink: %d\n", 1)

	var buf bytes.Buffer
	SetOutputSink(&buf)

	if exp := "captured before sink: 1\n"; !strings.Contains(buf.String(), exp) {
		t.Errorf("expected early buffer to be drained into the sink; got %q", buf.String())
	}
}
