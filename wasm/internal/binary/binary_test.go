package binary

import (
	"bytes"
	"errors"
	"testing"
)

func reader(b ...byte) *Reader {
	return NewReader(bytes.NewReader(b))
}

func TestReadU32(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		want    uint32
		wantErr bool
	}{
		{"zero", []byte{0x00}, 0, false},
		{"one byte", []byte{0x7f}, 127, false},
		{"two bytes", []byte{0x80, 0x01}, 128, false},
		{"max", []byte{0xff, 0xff, 0xff, 0xff, 0x0f}, 0xffffffff, false},
		{"unused bits set", []byte{0xff, 0xff, 0xff, 0xff, 0x1f}, 0, true},
		{"too long", []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x00}, 0, true},
		{"truncated", []byte{0x80}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := reader(tt.input...).ReadU32()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestReadSigned(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  int64
	}{
		{"zero", []byte{0x00}, 0},
		{"minus one", []byte{0x7f}, -1},
		{"minus 64", []byte{0x40}, -64},
		{"positive 64", []byte{0xc0, 0x00}, 64},
		{"min i32", []byte{0x80, 0x80, 0x80, 0x80, 0x78}, -2147483648},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := reader(tt.input...).ReadS64()
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWriterRoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, 63, 64, -64, -65, 1 << 40, -(1 << 40), -9223372036854775808, 9223372036854775807}
	for _, v := range values {
		w := NewWriter()
		w.WriteS64(v)
		got, err := reader(w.Bytes()...).ReadS64()
		if err != nil {
			t.Fatalf("%d: %v", v, err)
		}
		if got != v {
			t.Errorf("round trip %d: got %d", v, got)
		}
	}

	w := NewWriter()
	w.WriteU32(624485)
	if !bytes.Equal(w.Bytes(), []byte{0xe5, 0x8e, 0x26}) {
		t.Errorf("WriteU32(624485) = % x", w.Bytes())
	}
}

func TestReadName(t *testing.T) {
	w := NewWriter()
	w.WriteName("add")
	r := reader(w.Bytes()...)
	name, err := r.ReadName()
	if err != nil {
		t.Fatal(err)
	}
	if name != "add" {
		t.Errorf("name = %q", name)
	}
	if r.Position() != 4 {
		t.Errorf("position = %d, want 4", r.Position())
	}

	if _, err := reader(0x01, 0xff).ReadName(); err == nil {
		t.Error("expected invalid UTF-8 error")
	}
}

func TestFixedWidth(t *testing.T) {
	w := NewWriter()
	w.WriteU32LE(0x6D736100)
	w.WriteU64LE(0x0102030405060708)
	r := reader(w.Bytes()...)
	u32, err := r.ReadU32LE()
	if err != nil || u32 != 0x6D736100 {
		t.Fatalf("ReadU32LE = %x, %v", u32, err)
	}
	u64, err := r.ReadU64LE()
	if err != nil || u64 != 0x0102030405060708 {
		t.Fatalf("ReadU64LE = %x, %v", u64, err)
	}
}

func TestWrapError(t *testing.T) {
	r := reader(0x01)
	_, _ = r.ReadByte()
	err := r.WrapError("code", ErrOverflow)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatal("expected *ParseError")
	}
	if pe.Position != 1 || pe.Section != "code" {
		t.Errorf("unexpected %+v", pe)
	}
	if !errors.Is(err, ErrOverflow) {
		t.Error("errors.Is(ErrOverflow) = false")
	}
}
