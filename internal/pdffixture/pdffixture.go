// Package pdffixture builds small, valid PDFs for tests. Each page carries
// one line of Helvetica text per entry.
package pdffixture

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
)

// Page describes one fixture page: its text and how many embedded JPEG
// images it draws. Each image gets a distinct solid colour.
type Page struct {
	Text   string
	Images int
}

// Build returns a PDF with one page per element of pages. An empty string
// yields a page with no text layer.
func Build(pages ...string) []byte {
	ps := make([]Page, len(pages))
	for i, t := range pages {
		ps[i] = Page{Text: t}
	}
	return BuildPages(ps...)
}

// BuildPages is Build for pages that may carry images.
func BuildPages(pages ...Page) []byte {
	var b strings.Builder
	b.WriteString("%PDF-1.4\n")

	// 1 catalog, 2 page tree, 3 font; each page then takes a page object, a
	// content stream and one object per image.
	next := 4
	pageObj := make([]int, len(pages))
	for i, p := range pages {
		pageObj[i] = next
		next += 2 + p.Images
	}
	offsets := make([]int, next)

	offsets[1] = b.Len()
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", pageObj[i])
	}
	offsets[2] = b.Len()
	fmt.Fprintf(&b, "2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n", strings.Join(kids, " "), len(pages))

	offsets[3] = b.Len()
	b.WriteString("3 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")

	for i, p := range pages {
		page, content := pageObj[i], pageObj[i]+1
		stream := contentStream(p.Text)
		var xobjects strings.Builder
		for k := 0; k < p.Images; k++ {
			fmt.Fprintf(&xobjects, " /Im%d %d 0 R", k+1, content+1+k)
			stream += fmt.Sprintf("\nq 40 0 0 40 %d 600 cm /Im%d Do Q", 72+50*k, k+1)
		}
		res := "/Font << /F1 3 0 R >>"
		if p.Images > 0 {
			res += " /XObject <<" + xobjects.String() + " >>"
		}

		offsets[page] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R /Resources << %s >> >>\nendobj\n", page, content, res)

		offsets[content] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", content, len(stream), stream)

		for k := 0; k < p.Images; k++ {
			obj := content + 1 + k
			data := solidJPEG(uint8(40*i+90*k), uint8(200-30*k), uint8(60+20*i))
			offsets[obj] = b.Len()
			fmt.Fprintf(&b, "%d 0 obj\n<< /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /DCTDecode /Length %d >>\nstream\n",
				obj, imageSide, imageSide, len(data))
			b.Write(data)
			b.WriteString("\nendstream\nendobj\n")
		}
	}

	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", next)
	b.WriteString("0000000000 65535 f \n")
	for i := 1; i < next; i++ {
		fmt.Fprintf(&b, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", next, xref)
	return []byte(b.String())
}

const imageSide = 8

func solidJPEG(r, g, bl uint8) []byte {
	img := image.NewRGBA(image.Rect(0, 0, imageSide, imageSide))
	c := color.RGBA{R: r, G: g, B: bl, A: 255}
	for y := 0; y < imageSide; y++ {
		for x := 0; x < imageSide; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	// encoding into memory cannot fail
	_ = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func contentStream(text string) string {
	if text == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString("BT\n/F1 12 Tf\n14 TL\n72 720 Td\n")
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			b.WriteString("T*\n")
		}
		b.WriteString("(" + escape(line) + ") Tj\n")
	}
	b.WriteString("ET")
	return b.String()
}

func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "(", `\(`)
	return strings.ReplaceAll(s, ")", `\)`)
}

// Pages returns n page texts "Page text 1" .. "Page text n".
func Pages(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("Page text %d", i+1)
	}
	return out
}

// Write stores Build(pages...) under dir as name and returns the path.
func Write(dir, name string, pages ...string) (string, error) {
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, Build(pages...), 0o644); err != nil {
		return "", err
	}
	return p, nil
}

// WritePages stores BuildPages(pages...) under dir as name and returns the
// path.
func WritePages(dir, name string, pages ...Page) (string, error) {
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, BuildPages(pages...), 0o644); err != nil {
		return "", err
	}
	return p, nil
}
