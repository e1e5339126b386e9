package pptx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readPart(t *testing.T, zr *zip.Reader, name string) []byte {
	t.Helper()
	f, err := zr.Open(name)
	require.NoError(t, err, name)
	defer f.Close()
	b, err := io.ReadAll(f)
	require.NoError(t, err)
	return b
}

const relNS = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"

// attrIn returns the value of the attribute with the given namespace and
// local name; the unprefixed id and r:id share a local name.
func attrIn(attrs []xml.Attr, space, local string) string {
	for _, a := range attrs {
		if a.Name.Space == space && a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func TestWriteDeck(t *testing.T) {
	var buf bytes.Buffer
	d := &Deck{Slides: []Slide{
		{Image: []byte("jpeg-1"), Format: "jpeg"},
		{Image: []byte("jpeg-2"), Format: "jpg"},
		{Image: []byte("png-3"), Format: "png"},
	}}
	require.NoError(t, Write(&buf, d))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	var pres struct {
		SldIDs []struct {
			Attrs []xml.Attr `xml:",any,attr"`
		} `xml:"sldIdLst>sldId"`
		Size struct {
			CX int64 `xml:"cx,attr"`
			CY int64 `xml:"cy,attr"`
		} `xml:"sldSz"`
	}
	require.NoError(t, xml.Unmarshal(readPart(t, zr, "ppt/presentation.xml"), &pres))
	require.Len(t, pres.SldIDs, 3)
	for i, sld := range pres.SldIDs {
		id, err := strconv.Atoi(attrIn(sld.Attrs, "", "id"))
		require.NoError(t, err)
		assert.Equal(t, 256+i, id)
		assert.Equal(t, "rId"+strconv.Itoa(3+i), attrIn(sld.Attrs, relNS, "id"))
	}
	assert.Equal(t, int64(9144000), pres.Size.CX)
	assert.Equal(t, int64(5143500), pres.Size.CY)

	assert.Equal(t, []byte("jpeg-2"), readPart(t, zr, "ppt/media/image2.jpeg"))
	assert.Equal(t, []byte("png-3"), readPart(t, zr, "ppt/media/image3.png"))

	slide := string(readPart(t, zr, "ppt/slides/slide1.xml"))
	assert.Contains(t, slide, `<a:ext cx="9144000" cy="5143500"/>`)
	assert.Contains(t, slide, `r:embed="rId2"`)

	types := string(readPart(t, zr, "[Content_Types].xml"))
	assert.Contains(t, types, `Extension="jpeg"`)
	assert.Contains(t, types, `Extension="png"`)
	assert.Contains(t, types, `/ppt/slides/slide3.xml`)

	rels := string(readPart(t, zr, "ppt/slides/_rels/slide3.xml.rels"))
	assert.Contains(t, rels, "../media/image3.png")

	for _, name := range []string{"ppt/theme/theme1.xml", "ppt/slideMasters/slideMaster1.xml", "ppt/slideLayouts/slideLayout1.xml"} {
		var v struct{}
		assert.NoError(t, xml.Unmarshal(readPart(t, zr, name), &v), name)
	}
}

func TestWriteRejects(t *testing.T) {
	assert.Error(t, Write(io.Discard, &Deck{}))
	assert.Error(t, Write(io.Discard, &Deck{Slides: []Slide{{Image: []byte("x"), Format: "gif"}}}))
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "deck.pptx")
	require.NoError(t, WriteFile(p, &Deck{Size: Size{Width: 100, Height: 50}, Slides: []Slide{{Image: []byte("x"), Format: "png"}}}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	zr, err := zip.OpenReader(p)
	require.NoError(t, err)
	defer zr.Close()
	slide := string(readPart(t, &zr.Reader, "ppt/slides/slide1.xml"))
	assert.Contains(t, slide, `cx="100" cy="50"`)

	assert.Error(t, WriteFile(p, &Deck{}))
	_, err = os.Stat(p)
	assert.NoError(t, err, "failed write keeps previous file")
}
