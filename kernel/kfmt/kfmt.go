// Package kfmt provides formatted diagnostic output for code that runs
// before the Go runtime is fully initialized. None of the functions in this
// package allocate any memory.
package kfmt

import (
	"io"
	"unsafe"
)

// numBufSize defines the size of the scratch buffer used for formatting
// numbers. It is large enough for a 64-bit value in base 10 plus a sign.
const numBufSize = 32

var (
	errMissingArg = []byte("(MISSING)")
	errBadVerb    = []byte("%!(NOVERB)")
	errBadArgType = []byte("%!(WRONGTYPE)")
	errExtraArg   = []byte("%!(EXTRA)")
	trueValue     = []byte("true")
	falseValue    = []byte("false")

	warnPrefix  = []byte("warning: ")
	errorPrefix = []byte("error: ")

	// numBuf is a shared scratch buffer where fmtInt renders digits
	// right to left.
	numBuf [numBufSize]byte

	// singleByte is a shared buffer for passing individual characters
	// to doWrite.
	singleByte = []byte{0}

	// earlyBuf captures output emitted before an output sink has been
	// installed.
	earlyBuf ringBuffer

	// outputSink is the io.Writer that receives all diagnostic output.
	// While nil, output is captured by earlyBuf.
	outputSink io.Writer
)

// SetOutputSink sets the target for diagnostic output to w and drains any
// output accumulated in the early buffer into it.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		io.Copy(w, &earlyBuf)
	}
}

// Printf writes formatted output to the active output sink. It supports a
// subset of the fmt.Printf verbs:
//
//	%s  string or byte slice
//	%d  base-10 integer
//	%x  base-16 integer, lower-case, zero-padded when a width is given
//	%t  "true" or "false"
//
// An optional decimal width may precede the verb; shorter values are
// left-padded to the requested width. All built-in integer types including
// uintptr are accepted.
func Printf(format string, args ...interface{}) {
	Fprintf(outputSink, format, args...)
}

// Warnf writes a warning-severity diagnostic to the active output sink.
func Warnf(format string, args ...interface{}) {
	doWrite(outputSink, warnPrefix)
	Fprintf(outputSink, format, args...)
}

// Errorf writes an error-severity diagnostic to the active output sink.
func Errorf(format string, args ...interface{}) {
	doWrite(outputSink, errorPrefix)
	Fprintf(outputSink, format, args...)
}

// Fprintf behaves exactly like Printf but writes the formatted output to w.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var (
		i, argIndex int
		fmtLen      = len(format)
	)

	for i < fmtLen {
		if format[i] != '%' {
			writeByte(w, format[i])
			i++
			continue
		}

		// Scan the optional width followed by the verb.
		i++
		padLen := 0
		for ; i < fmtLen && format[i] >= '0' && format[i] <= '9'; i++ {
			padLen = padLen*10 + int(format[i]-'0')
		}

		if i >= fmtLen {
			doWrite(w, errBadVerb)
			break
		}

		verb := format[i]
		i++

		if verb == '%' {
			writeByte(w, '%')
			continue
		}

		if argIndex >= len(args) {
			doWrite(w, errMissingArg)
			continue
		}

		arg := args[argIndex]
		argIndex++

		switch verb {
		case 'd':
			fmtInt(w, arg, 10, padLen)
		case 'x':
			fmtInt(w, arg, 16, padLen)
		case 's':
			fmtString(w, arg, padLen)
		case 't':
			fmtBool(w, arg)
		default:
			doWrite(w, errBadVerb)
		}
	}

	// Report any unused args.
	for ; argIndex < len(args); argIndex++ {
		doWrite(w, errExtraArg)
	}
}

// fmtBool writes a formatted version of boolean value v.
func fmtBool(w io.Writer, v interface{}) {
	bVal, ok := v.(bool)
	if !ok {
		doWrite(w, errBadArgType)
		return
	}

	if bVal {
		doWrite(w, trueValue)
	} else {
		doWrite(w, falseValue)
	}
}

// fmtString writes a formatted version of string or []byte value v, applying
// the padding specified by padLen.
func fmtString(w io.Writer, v interface{}, padLen int) {
	switch sVal := v.(type) {
	case string:
		pad(w, ' ', padLen-len(sVal))
		// Converting the string to a byte slice would allocate so the
		// bytes are written out one at a time.
		for i := 0; i < len(sVal); i++ {
			writeByte(w, sVal[i])
		}
	case []byte:
		pad(w, ' ', padLen-len(sVal))
		doWrite(w, sVal)
	default:
		doWrite(w, errBadArgType)
	}
}

// fmtInt writes a formatted version of integer value v in the requested
// base, applying the padding specified by padLen. Base-10 output is padded
// with spaces and base-16 output with zeroes.
func fmtInt(w io.Writer, v interface{}, base, padLen int) {
	var (
		uval uint64
		neg  bool
	)

	switch num := v.(type) {
	case uint8:
		uval = uint64(num)
	case uint16:
		uval = uint64(num)
	case uint32:
		uval = uint64(num)
	case uint64:
		uval = num
	case uint:
		uval = uint64(num)
	case uintptr:
		uval = uint64(num)
	case int8:
		neg, uval = num < 0, abs(int64(num))
	case int16:
		neg, uval = num < 0, abs(int64(num))
	case int32:
		neg, uval = num < 0, abs(int64(num))
	case int64:
		neg, uval = num < 0, abs(num)
	case int:
		neg, uval = num < 0, abs(int64(num))
	default:
		doWrite(w, errBadArgType)
		return
	}

	// Render the digits right to left into the scratch buffer.
	pos := numBufSize
	for {
		pos--
		digit := byte(uval % uint64(base))
		if digit < 10 {
			numBuf[pos] = '0' + digit
		} else {
			numBuf[pos] = 'a' + digit - 10
		}

		uval /= uint64(base)
		if uval == 0 || pos == 0 {
			break
		}
	}

	if neg && pos > 0 {
		pos--
		numBuf[pos] = '-'
	}

	padCh := byte(' ')
	if base == 16 {
		padCh = '0'
	}
	pad(w, padCh, padLen-(numBufSize-pos))

	doWrite(w, numBuf[pos:numBufSize])
}

// pad writes count bytes with value ch. Negative counts are ignored.
func pad(w io.Writer, ch byte, count int) {
	for i := 0; i < count; i++ {
		writeByte(w, ch)
	}
}

// writeByte writes a single byte through the shared single-byte buffer.
func writeByte(w io.Writer, ch byte) {
	singleByte[0] = ch
	doWrite(w, singleByte)
}

// abs returns the absolute value of v as a uint64.
func abs(v int64) uint64 {
	if v < 0 {
		return uint64(-v)
	}
	return uint64(v)
}

// doWrite is a proxy that uses the runtime.noescape hack to hide p from the
// compiler's escape analysis. Without it, the compiler cannot prove that p
// does not escape through the yet-unknown io.Writer and flags it as
// escaping, which would make every caller allocate.
func doWrite(w io.Writer, p []byte) {
	doRealWrite(w, noEscape(unsafe.Pointer(&p)))
}

func doRealWrite(w io.Writer, bufPtr unsafe.Pointer) {
	p := *(*[]byte)(bufPtr)
	if w != nil {
		w.Write(p)
	} else {
		earlyBuf.Write(p)
	}
}

// noEscape hides a pointer from escape analysis. This function is copied
// over from runtime/stubs.go.
//
//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
