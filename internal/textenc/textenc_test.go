package textenc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
)

func TestDecode(t *testing.T) {
	const sample = "你好，世界 hello"

	gbk, err := simplifiedchinese.GBK.NewEncoder().String(sample)
	require.NoError(t, err)
	utf16le, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().String(sample)
	require.NoError(t, err)
	utf16be, err := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder().String(sample)
	require.NoError(t, err)

	tests := []struct {
		name string
		in   []byte
		enc  string
	}{
		{"utf8", []byte(sample), UTF8},
		{"utf8 bom", append([]byte{0xef, 0xbb, 0xbf}, sample...), UTF8BOM},
		{"utf16le", []byte(utf16le), UTF16LE},
		{"utf16be", []byte(utf16be), UTF16BE},
		{"gbk", []byte(gbk), GBK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, enc, err := Decode(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.enc, enc)
			assert.Equal(t, sample, got)
		})
	}
}

func TestDecodeGB18030Only(t *testing.T) {
	// U+20000 has a four-byte GB18030 form that GBK cannot represent.
	const sample = "字𠀀"
	b, err := simplifiedchinese.GB18030.NewEncoder().String(sample)
	require.NoError(t, err)

	got, enc, err := Decode([]byte(b))
	require.NoError(t, err)
	assert.Equal(t, GB18030, enc)
	assert.Equal(t, sample, got)
}

func TestDecodeEmpty(t *testing.T) {
	got, enc, err := Decode(nil)
	require.NoError(t, err)
	assert.Equal(t, UTF8, enc)
	assert.Empty(t, got)
}
