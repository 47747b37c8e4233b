// Package diag builds short diagnostic strings without allocating and
// without calling fmt, so fault handlers can describe a crash from a
// context where the heap or the stack itself may be suspect. The itoa-style
// loops below are the same shape as the original firmware's bare-metal
// integer-to-ASCII helpers, generalized behind a Sink so any board's UART
// or semihosting channel can receive them.
package diag

// Sink is the byte destination a board supplies (UART, semihosting, a ring
// buffer). The core only ever writes strings to it; formatting stays here.
type Sink interface {
	WriteString(s string)
}

// NopSink discards everything written to it. Used when no board logger is
// configured and by tests that only care about panic behavior, not text.
type NopSink struct{}

func (NopSink) WriteString(string) {}

const hexDigits = "0123456789abcdef"

// PutUint32 writes the decimal representation of v to sink, using a fixed
// stack buffer and no allocation.
func PutUint32(sink Sink, v uint32) {
	var buf [10]byte
	i := len(buf)
	if v == 0 {
		sink.WriteString("0")
		return
	}
	for v > 0 {
		i--
		buf[i] = byte(v % 10)
		v /= 10
	}
	for _, d := range buf[i:] {
		sink.WriteString(hexDigits[d : d+1])
	}
}

// PutHex32 writes v as an 8-digit, zero-padded hexadecimal string prefixed
// with "0x".
func PutHex32(sink Sink, v uint32) {
	sink.WriteString("0x")
	for i := 0; i < 8; i++ {
		shift := uint(28 - 4*i)
		d := (v >> shift) & 0xf
		sink.WriteString(hexDigits[d : d+1])
	}
}

// Line writes parts in sequence followed by a newline, the composition
// primitive every fault handler's diagnostic text is built from instead of
// fmt.Sprintf.
func Line(sink Sink, parts ...string) {
	for _, p := range parts {
		sink.WriteString(p)
	}
	sink.WriteString("\n")
}
