package diag

import (
	"strings"
	"testing"
)

type buf struct{ strings.Builder }

func (b *buf) WriteString(s string) { b.Builder.WriteString(s) }

func TestPutUint32(t *testing.T) {
	cases := []struct {
		v    uint32
		want string
	}{
		{0, "0"},
		{7, "7"},
		{4294967295, "4294967295"},
		{1024, "1024"},
	}
	for _, c := range cases {
		var b buf
		PutUint32(&b, c.v)
		if got := b.String(); got != c.want {
			t.Errorf("PutUint32(%d) = %q, want %q", c.v, got, c.want)
		}
	}
}

func TestPutHex32(t *testing.T) {
	cases := []struct {
		v    uint32
		want string
	}{
		{0, "0x00000000"},
		{0xDEADBEEF, "0xdeadbeef"},
		{0xff, "0x000000ff"},
	}
	for _, c := range cases {
		var b buf
		PutHex32(&b, c.v)
		if got := b.String(); got != c.want {
			t.Errorf("PutHex32(%#x) = %q, want %q", c.v, got, c.want)
		}
	}
}

func TestLine(t *testing.T) {
	var b buf
	Line(&b, "a", "=", "1")
	if got, want := b.String(), "a=1\n"; got != want {
		t.Errorf("Line() = %q, want %q", got, want)
	}
}
