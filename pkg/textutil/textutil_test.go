package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBinary_EmptyData(t *testing.T) {
	t.Parallel()

	assert.False(t, IsBinary(nil))
	assert.False(t, IsBinary([]byte{}))
}

func TestIsBinary_PureText(t *testing.T) {
	t.Parallel()

	assert.False(t, IsBinary([]byte("define void @f() {\n  ret void\n}\n")))
}

func TestIsBinary_NullByte(t *testing.T) {
	t.Parallel()

	assert.True(t, IsBinary([]byte("define\x00void")))
}

func TestIsBinary_NullAtSniffBoundary(t *testing.T) {
	t.Parallel()

	data := make([]byte, BinarySniffLength)
	data[BinarySniffLength-1] = 0x00

	assert.True(t, IsBinary(data))
}

func TestIsBinary_NullBeyondSniffBoundary(t *testing.T) {
	t.Parallel()

	data := make([]byte, BinarySniffLength+100)
	for i := range data {
		data[i] = 'a'
	}

	data[BinarySniffLength+50] = 0x00

	assert.False(t, IsBinary(data))
}

func TestIsBitcode(t *testing.T) {
	t.Parallel()

	assert.True(t, IsBitcode([]byte{'B', 'C', 0xC0, 0xDE, 0x35, 0x14}))
	assert.True(t, IsBitcode([]byte{0xDE, 0xC0, 0x17, 0x0B, 0x00}))
	assert.False(t, IsBitcode([]byte("; ModuleID = 'foo'\n")))
	assert.False(t, IsBitcode([]byte("BC")))
	assert.False(t, IsBitcode(nil))
}

func TestLossy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{name: "valid", in: []byte("define @f"), want: "define @f"},
		{name: "empty", in: nil, want: ""},
		{name: "single invalid byte", in: []byte{'a', 0xff, 'b'}, want: "a\uFFFDb"},
		{name: "adjacent invalid bytes", in: []byte("f\xff\xfeg"), want: "f\uFFFD\uFFFDg"},
		{name: "truncated sequence", in: []byte("a\xe2\x82b"), want: "a\uFFFDb"},
		{name: "truncated at end", in: []byte("a\xf0\x9f\x98"), want: "a\uFFFD"},
		{name: "surrogate", in: []byte("\xed\xa0\x80"), want: "\uFFFD\uFFFD\uFFFD"},
		{name: "overlong", in: []byte("\xc0\xaf"), want: "\uFFFD\uFFFD"},
		{name: "valid around invalid", in: []byte("\xe2\x82\xac\x80\u00e9"), want: "\u20ac\uFFFD\u00e9"},
		{name: "literal replacement char kept", in: []byte("\uFFFD\xff"), want: "\uFFFD\uFFFD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, Lossy(tt.in))
		})
	}
}
