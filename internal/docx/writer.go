package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	nsW   = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsR   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsWP  = "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"
	nsA   = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsPic = "http://schemas.openxmlformats.org/drawingml/2006/picture"

	relImage     = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
	relStyles    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles"
	relOfficeDoc = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"

	documentPart = "word/document.xml"
	relsPart     = "word/_rels/document.xml.rels"
	typesPart    = "[Content_Types].xml"
)

// WriteFile writes doc to path atomically.
func WriteFile(p string, doc *Document) error {
	tmp, err := os.CreateTemp(filepath.Dir(p), ".docx-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, doc); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p)
}

// Write encodes doc as a complete .docx package.
func Write(w io.Writer, doc *Document) error {
	media := newMediaSet("rIdImg", "image", 1)
	enc := &bodyEncoder{addImage: media.add, nextDocPr: 1}

	var body bytes.Buffer
	body.WriteString(xml.Header)
	fmt.Fprintf(&body, `<w:document xmlns:w="%s" xmlns:r="%s" xmlns:wp="%s" xmlns:a="%s" xmlns:pic="%s"><w:body>`,
		nsW, nsR, nsWP, nsA, nsPic)
	if err := enc.blocks(&body, doc.Blocks); err != nil {
		return err
	}
	sec := doc.Section
	if sec.PageWidth == 0 {
		sec = Letter
	}
	writeSection(&body, sec)
	body.WriteString(`</w:body></w:document>`)

	zw := zip.NewWriter(w)
	parts := []struct {
		name string
		data []byte
	}{
		{typesPart, contentTypes(media.extensions())},
		{"_rels/.rels", []byte(xml.Header + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId1" Type="` + relOfficeDoc + `" Target="word/document.xml"/></Relationships>`)},
		{documentPart, body.Bytes()},
		{"word/styles.xml", []byte(stylesXML)},
		{relsPart, documentRels(media.items)},
	}
	for _, p := range parts {
		if err := writeZipEntry(zw, p.name, p.data); err != nil {
			return err
		}
	}
	for _, m := range media.items {
		if err := writeZipEntry(zw, "word/"+m.target, m.data); err != nil {
			return err
		}
	}
	return zw.Close()
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	f, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("zip %s: %w", name, err)
	}
	_, err = f.Write(data)
	return err
}

type mediaItem struct {
	id     string
	target string // relative to word/
	data   []byte
}

// mediaSet allocates relationship ids and part names for embedded images.
// Ids and targets in reserved are never handed out.
type mediaSet struct {
	idPrefix   string
	namePrefix string
	seq        int
	reserved   map[string]bool
	items      []mediaItem
}

func newMediaSet(idPrefix, namePrefix string, start int) *mediaSet {
	return &mediaSet{idPrefix: idPrefix, namePrefix: namePrefix, seq: start, reserved: map[string]bool{}}
}

func (m *mediaSet) add(img *Image) (string, error) {
	ext := strings.ToLower(path.Ext(img.Name))
	if _, ok := imageContentTypes[ext]; !ok {
		return "", fmt.Errorf("unsupported image type %q", img.Name)
	}
	var id, target string
	for {
		id = m.idPrefix + strconv.Itoa(m.seq)
		target = "media/" + m.namePrefix + strconv.Itoa(m.seq) + ext
		m.seq++
		if !m.reserved[id] && !m.reserved[target] {
			break
		}
	}
	m.items = append(m.items, mediaItem{id: id, target: target, data: img.Data})
	return id, nil
}

func (m *mediaSet) extensions() []string {
	var out []string
	seen := map[string]bool{}
	for _, it := range m.items {
		ext := strings.TrimPrefix(path.Ext(it.target), ".")
		if !seen[ext] {
			seen[ext] = true
			out = append(out, ext)
		}
	}
	return out
}

var imageContentTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
}

func contentTypes(imageExts []string) []byte {
	var b bytes.Buffer
	b.WriteString(xml.Header)
	b.WriteString(`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`)
	b.WriteString(`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`)
	b.WriteString(`<Default Extension="xml" ContentType="application/xml"/>`)
	for _, ext := range imageExts {
		fmt.Fprintf(&b, `<Default Extension="%s" ContentType="%s"/>`, ext, imageContentTypes["."+ext])
	}
	b.WriteString(`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>`)
	b.WriteString(`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>`)
	b.WriteString(`</Types>`)
	return b.Bytes()
}

func documentRels(items []mediaItem) []byte {
	var b bytes.Buffer
	b.WriteString(xml.Header)
	b.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	fmt.Fprintf(&b, `<Relationship Id="rIdStyles" Type="%s" Target="styles.xml"/>`, relStyles)
	for _, it := range items {
		fmt.Fprintf(&b, `<Relationship Id="%s" Type="%s" Target="%s"/>`, it.id, relImage, it.target)
	}
	b.WriteString(`</Relationships>`)
	return b.Bytes()
}

func writeSection(b *bytes.Buffer, s Section) {
	fmt.Fprintf(b, `<w:sectPr><w:pgSz w:w="%d" w:h="%d"/>`, s.PageWidth, s.PageHeight)
	fmt.Fprintf(b, `<w:pgMar w:top="%d" w:right="%d" w:bottom="%d" w:left="%d" w:header="720" w:footer="720" w:gutter="0"/></w:sectPr>`,
		s.MarginTop, s.MarginRight, s.MarginBottom, s.MarginLeft)
}

// bodyEncoder renders blocks as WordprocessingML body XML. addImage
// registers an image part and returns its relationship id.
type bodyEncoder struct {
	addImage  func(*Image) (string, error)
	nextDocPr int
}

func (e *bodyEncoder) blocks(b *bytes.Buffer, blocks []Block) error {
	for _, blk := range blocks {
		switch v := blk.(type) {
		case *Paragraph:
			if err := e.paragraph(b, v); err != nil {
				return err
			}
		case *Table:
			e.table(b, v)
		default:
			return fmt.Errorf("unknown block %T", blk)
		}
	}
	return nil
}

func (e *bodyEncoder) paragraph(b *bytes.Buffer, p *Paragraph) error {
	b.WriteString(`<w:p>`)
	writeParagraphProps(b, p)
	for i := range p.Runs {
		if err := e.run(b, &p.Runs[i]); err != nil {
			return err
		}
	}
	b.WriteString(`</w:p>`)
	return nil
}

func writeParagraphProps(b *bytes.Buffer, p *Paragraph) {
	var props bytes.Buffer
	if p.Style != "" {
		fmt.Fprintf(&props, `<w:pStyle w:val="%s"/>`, attr(p.Style))
	}
	before := p.SpacingSet || p.BeforeSet || p.SpacingBefore != 0
	after := p.SpacingSet || p.AfterSet || p.SpacingAfter != 0
	if before || after || p.LineSpacing != 0 {
		props.WriteString(`<w:spacing`)
		if before {
			fmt.Fprintf(&props, ` w:before="%d"`, p.SpacingBefore)
		}
		if after {
			fmt.Fprintf(&props, ` w:after="%d"`, p.SpacingAfter)
		}
		if p.LineSpacing != 0 {
			fmt.Fprintf(&props, ` w:line="%d" w:lineRule="auto"`, int(p.LineSpacing*240+0.5))
		}
		props.WriteString(`/>`)
	}
	if p.IndentLeft != 0 || p.IndentRight != 0 {
		fmt.Fprintf(&props, `<w:ind w:left="%d" w:right="%d"/>`, p.IndentLeft, p.IndentRight)
	}
	if p.Alignment != "" {
		fmt.Fprintf(&props, `<w:jc w:val="%s"/>`, attr(p.Alignment))
	}
	if props.Len() > 0 {
		b.WriteString(`<w:pPr>`)
		b.Write(props.Bytes())
		b.WriteString(`</w:pPr>`)
	}
}

func (e *bodyEncoder) run(b *bytes.Buffer, r *Run) error {
	b.WriteString(`<w:r>`)
	writeRunProps(b, r)
	switch {
	case r.Break:
		b.WriteString(`<w:br w:type="page"/>`)
	case r.Image != nil:
		id, err := e.addImage(r.Image)
		if err != nil {
			return err
		}
		e.drawing(b, r.Image, id)
	default:
		writeText(b, r.Text)
	}
	b.WriteString(`</w:r>`)
	return nil
}

func writeRunProps(b *bytes.Buffer, r *Run) {
	if !r.Bold && !r.Italic && !r.Underline && r.Size == 0 && r.Color == "" {
		return
	}
	b.WriteString(`<w:rPr>`)
	if r.Bold {
		b.WriteString(`<w:b/>`)
	}
	if r.Italic {
		b.WriteString(`<w:i/>`)
	}
	if r.Color != "" {
		fmt.Fprintf(b, `<w:color w:val="%s"/>`, attr(r.Color))
	}
	if r.Size != 0 {
		hp := int(r.Size*2 + 0.5)
		fmt.Fprintf(b, `<w:sz w:val="%d"/><w:szCs w:val="%d"/>`, hp, hp)
	}
	if r.Underline {
		b.WriteString(`<w:u w:val="single"/>`)
	}
	b.WriteString(`</w:rPr>`)
}

// writeText splits on newlines and tabs so they survive as w:br and w:tab.
func writeText(b *bytes.Buffer, s string) {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if i > 0 {
			b.WriteString(`<w:br/>`)
		}
		for j, seg := range strings.Split(line, "\t") {
			if j > 0 {
				b.WriteString(`<w:tab/>`)
			}
			if seg == "" {
				continue
			}
			b.WriteString(`<w:t xml:space="preserve">`)
			_ = xml.EscapeText(b, []byte(seg))
			b.WriteString(`</w:t>`)
		}
	}
}

func (e *bodyEncoder) drawing(b *bytes.Buffer, img *Image, relID string) {
	id := e.nextDocPr
	e.nextDocPr++
	cx, cy := img.Width, img.Height
	if cx <= 0 || cy <= 0 {
		cx, cy = 72*EMUPerPoint, 72*EMUPerPoint
	}
	fmt.Fprintf(b, `<w:drawing><wp:inline xmlns:wp="%s" distT="0" distB="0" distL="0" distR="0">`, nsWP)
	fmt.Fprintf(b, `<wp:extent cx="%d" cy="%d"/><wp:docPr id="%d" name="Picture %d"/>`, cx, cy, id, id)
	fmt.Fprintf(b, `<a:graphic xmlns:a="%s"><a:graphicData uri="%s">`, nsA, nsPic)
	fmt.Fprintf(b, `<pic:pic xmlns:pic="%s"><pic:nvPicPr><pic:cNvPr id="%d" name="%s"/><pic:cNvPicPr/></pic:nvPicPr>`, nsPic, id, attr(img.Name))
	fmt.Fprintf(b, `<pic:blipFill><a:blip xmlns:r="%s" r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>`, nsR, relID)
	fmt.Fprintf(b, `<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr>`, cx, cy)
	b.WriteString(`</pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing>`)
}

func (e *bodyEncoder) table(b *bytes.Buffer, t *Table) {
	cols := 0
	for _, row := range t.Rows {
		cols = max(cols, len(row))
	}
	b.WriteString(`<w:tbl><w:tblPr><w:tblStyle w:val="TableGrid"/><w:tblW w:w="0" w:type="auto"/></w:tblPr><w:tblGrid>`)
	for i := 0; i < cols; i++ {
		b.WriteString(`<w:gridCol/>`)
	}
	b.WriteString(`</w:tblGrid>`)
	for _, row := range t.Rows {
		b.WriteString(`<w:tr>`)
		for c := 0; c < cols; c++ {
			text := ""
			if c < len(row) {
				text = row[c]
			}
			b.WriteString(`<w:tc><w:tcPr><w:tcW w:w="0" w:type="auto"/></w:tcPr><w:p>`)
			if text != "" {
				b.WriteString(`<w:r>`)
				writeText(b, text)
				b.WriteString(`</w:r>`)
			}
			b.WriteString(`</w:p></w:tc>`)
		}
		b.WriteString(`</w:tr>`)
	}
	b.WriteString(`</w:tbl>`)
}

func attr(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

const stylesXML = xml.Header + `<w:styles xmlns:w="` + nsW + `">` +
	`<w:docDefaults><w:rPrDefault><w:rPr><w:rFonts w:ascii="Calibri" w:hAnsi="Calibri" w:eastAsia="SimSun" w:cs="Calibri"/>` +
	`<w:sz w:val="22"/><w:szCs w:val="22"/></w:rPr></w:rPrDefault>` +
	`<w:pPrDefault><w:pPr><w:spacing w:after="160" w:line="259" w:lineRule="auto"/></w:pPr></w:pPrDefault></w:docDefaults>` +
	`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/><w:qFormat/></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:qFormat/>` +
	`<w:pPr><w:keepNext/><w:spacing w:before="240" w:after="120"/><w:outlineLvl w:val="0"/></w:pPr><w:rPr><w:b/><w:sz w:val="32"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading2"><w:name w:val="heading 2"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:qFormat/>` +
	`<w:pPr><w:keepNext/><w:spacing w:before="120" w:after="120"/><w:outlineLvl w:val="1"/></w:pPr><w:rPr><w:b/><w:sz w:val="26"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading3"><w:name w:val="heading 3"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:qFormat/>` +
	`<w:pPr><w:keepNext/><w:outlineLvl w:val="2"/></w:pPr><w:rPr><w:b/><w:sz w:val="24"/></w:rPr></w:style>` +
	`<w:style w:type="table" w:styleId="TableGrid"><w:name w:val="Table Grid"/><w:tblPr><w:tblBorders>` +
	`<w:top w:val="single" w:sz="4" w:space="0" w:color="auto"/><w:left w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
	`<w:bottom w:val="single" w:sz="4" w:space="0" w:color="auto"/><w:right w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
	`<w:insideH w:val="single" w:sz="4" w:space="0" w:color="auto"/><w:insideV w:val="single" w:sz="4" w:space="0" w:color="auto"/>` +
	`</w:tblBorders></w:tblPr></w:style>` +
	`</w:styles>`
