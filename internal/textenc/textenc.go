// Package textenc decodes uploaded text whose encoding is not declared.
package textenc

import (
	"bytes"
	"errors"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
)

// Encoding names reported by Decode.
const (
	UTF8    = "utf-8"
	UTF8BOM = "utf-8-sig"
	UTF16LE = "utf-16le"
	UTF16BE = "utf-16be"
	GBK     = "gbk"
	GB18030 = "gb18030"
)

// ErrUndecodable is returned when no supported encoding fits the input.
var ErrUndecodable = errors.New("unable to detect text encoding")

var (
	bomUTF8    = []byte{0xef, 0xbb, 0xbf}
	bomUTF16LE = []byte{0xff, 0xfe}
	bomUTF16BE = []byte{0xfe, 0xff}
)

// Decode converts b to a UTF-8 string and names the encoding it detected.
// A BOM wins; then strict UTF-8; then GBK (which covers GB2312); then
// GB18030.
func Decode(b []byte) (string, string, error) {
	switch {
	case bytes.HasPrefix(b, bomUTF8):
		return string(b[len(bomUTF8):]), UTF8BOM, nil
	case bytes.HasPrefix(b, bomUTF16LE):
		s, err := decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), b)
		return s, UTF16LE, err
	case bytes.HasPrefix(b, bomUTF16BE):
		s, err := decodeWith(unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), b)
		return s, UTF16BE, err
	}
	if utf8.Valid(b) {
		return string(b), UTF8, nil
	}
	if s, err := decodeStrict(simplifiedchinese.GBK, b); err == nil {
		return s, GBK, nil
	}
	if s, err := decodeStrict(simplifiedchinese.GB18030, b); err == nil {
		return s, GB18030, nil
	}
	return "", "", ErrUndecodable
}

func decodeWith(enc encoding.Encoding, b []byte) (string, error) {
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// decodeStrict fails when the decoder had to substitute U+FFFD for invalid
// input.
func decodeStrict(enc encoding.Encoding, b []byte) (string, error) {
	s, err := decodeWith(enc, b)
	if err != nil {
		return "", err
	}
	if bytes.ContainsRune([]byte(s), utf8.RuneError) {
		return "", ErrUndecodable
	}
	return s, nil
}
