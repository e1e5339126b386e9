package docx

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
)

// ReadFile parses the body of a .docx file into blocks. Images referenced
// from runs are loaded from the package; unsupported constructs are skipped.
func ReadFile(p string) (*Document, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()
	return read(&zr.Reader)
}

func read(zr *zip.Reader) (*Document, error) {
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}
	docFile := files[documentPart]
	if docFile == nil {
		return nil, fmt.Errorf("%s not found in archive", documentPart)
	}

	rels, err := readRels(files[relsPart])
	if err != nil {
		return nil, err
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	r := &bodyReader{
		dec: xml.NewDecoder(rc),
		loadImage: func(relID string) (*Image, error) {
			target, ok := rels[relID]
			if !ok {
				return nil, nil
			}
			name := path.Clean(path.Join("word", target))
			if strings.HasPrefix(target, "/") {
				name = strings.TrimPrefix(target, "/")
			}
			f := files[name]
			if f == nil {
				return nil, nil
			}
			data, err := readZipFile(f)
			if err != nil {
				return nil, err
			}
			return &Image{Name: path.Base(name), Data: data}, nil
		},
	}
	return r.document()
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

type relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr"`
}

type relationships struct {
	XMLName xml.Name       `xml:"Relationships"`
	Items   []relationship `xml:"Relationship"`
}

// readRels maps image relationship ids to their targets.
func readRels(f *zip.File) (map[string]string, error) {
	out := map[string]string{}
	if f == nil {
		return out, nil
	}
	rs, err := parseRels(f)
	if err != nil {
		return nil, err
	}
	for _, r := range rs.Items {
		if r.Type == relImage && r.TargetMode != "External" {
			out[r.ID] = r.Target
		}
	}
	return out, nil
}

func parseRels(f *zip.File) (*relationships, error) {
	data, err := readZipFile(f)
	if err != nil {
		return nil, fmt.Errorf("read rels: %w", err)
	}
	var rs relationships
	if err := xml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parse rels: %w", err)
	}
	return &rs, nil
}

type bodyReader struct {
	dec       *xml.Decoder
	loadImage func(relID string) (*Image, error)
	// floating holds text box blocks met inside the current paragraph; they
	// are emitted right after it.
	floating []Block
}

func (r *bodyReader) document() (*Document, error) {
	doc := &Document{}
	inBody := false
	for {
		tok, err := r.dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode document.xml: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			if ee, ok := tok.(xml.EndElement); ok && ee.Name.Local == "body" {
				inBody = false
			}
			continue
		}
		switch {
		case se.Name.Local == "body":
			inBody = true
		case !inBody:
		case se.Name.Local == "p":
			p, err := r.paragraph(se)
			if err != nil {
				return nil, err
			}
			doc.Blocks = append(doc.Blocks, p)
			doc.Blocks = append(doc.Blocks, r.floating...)
			r.floating = nil
		case se.Name.Local == "tbl":
			t, err := r.table()
			if err != nil {
				return nil, err
			}
			doc.Blocks = append(doc.Blocks, t)
		case se.Name.Local == "sectPr":
			sec, err := r.section()
			if err != nil {
				return nil, err
			}
			doc.Section = sec
		}
	}
	return doc, nil
}

func (r *bodyReader) paragraph(start xml.StartElement) (*Paragraph, error) {
	p := &Paragraph{}
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode paragraph: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "pPr":
				if err := r.paragraphProps(p); err != nil {
					return nil, err
				}
			case "r":
				runs, err := r.run()
				if err != nil {
					return nil, err
				}
				p.Runs = append(p.Runs, runs...)
			case "drawing":
				img, err := r.drawing()
				if err != nil {
					return nil, err
				}
				if img != nil {
					p.Runs = append(p.Runs, Run{Image: img})
				}
			case "pict":
				if err := r.pict(); err != nil {
					return nil, err
				}
			case "Fallback", "del", "moveFrom":
				if err := r.dec.Skip(); err != nil {
					return nil, err
				}
			}
		case xml.EndElement:
			if t.Name.Local == start.Name.Local && t.Name.Space == start.Name.Space {
				return p, nil
			}
		}
	}
}

func (r *bodyReader) paragraphProps(p *Paragraph) error {
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "pStyle":
				p.Style = attrVal(t, "val")
			case "jc":
				p.Alignment = normalizeAlignment(attrVal(t, "val"))
			case "ind":
				p.IndentLeft = atoiFirst(t, "left", "start")
				p.IndentRight = atoiFirst(t, "right", "end")
			case "spacing":
				p.SpacingBefore = atoiFirst(t, "before")
				p.SpacingAfter = atoiFirst(t, "after")
				p.BeforeSet = hasAttr(t, "before")
				p.AfterSet = hasAttr(t, "after")
				p.SpacingSet = p.BeforeSet && p.AfterSet
				if line := atoiFirst(t, "line"); line > 0 {
					rule := attrVal(t, "lineRule")
					if rule == "" || rule == "auto" {
						p.LineSpacing = float64(line) / 240
					}
				}
			case "rPr", "sectPr", "pPrChange":
				// paragraph mark formatting and section breaks are not carried
				if err := r.dec.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			if t.Name.Local == "pPr" {
				return nil
			}
		}
	}
}

// run returns one Run per content item so that a text/break/image sequence
// inside a single w:r keeps its order.
func (r *bodyReader) run() ([]Run, error) {
	var (
		base  Run
		out   []Run
		text  strings.Builder
		inT   bool
		flush = func() {
			if text.Len() > 0 {
				rr := base
				rr.Text = text.String()
				out = append(out, rr)
				text.Reset()
			}
		}
	)
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode run: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "rPr":
				if err := r.runProps(&base); err != nil {
					return nil, err
				}
			case "t":
				inT = true
			case "tab":
				text.WriteByte('\t')
			case "br", "cr":
				if attrVal(t, "type") == "page" {
					flush()
					rr := base
					rr.Break = true
					out = append(out, rr)
				} else {
					text.WriteByte('\n')
				}
			case "drawing":
				flush()
				img, err := r.drawing()
				if err != nil {
					return nil, err
				}
				if img != nil {
					rr := base
					rr.Image = img
					out = append(out, rr)
				}
			case "pict":
				if err := r.pict(); err != nil {
					return nil, err
				}
			case "Fallback", "instrText", "delText":
				if err := r.dec.Skip(); err != nil {
					return nil, err
				}
			}
		case xml.CharData:
			if inT {
				text.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inT = false
			case "r":
				flush()
				return out, nil
			}
		}
	}
}

func (r *bodyReader) runProps(run *Run) error {
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "b":
				run.Bold = onOff(t)
			case "i":
				run.Italic = onOff(t)
			case "u":
				v := attrVal(t, "val")
				run.Underline = v != "none" && v != "0" && v != "false"
			case "sz":
				if hp := atoiFirst(t, "val"); hp > 0 {
					run.Size = float64(hp) / 2
				}
			case "color":
				if v := attrVal(t, "val"); v != "auto" {
					run.Color = v
				}
			case "rPrChange":
				if err := r.dec.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			if t.Name.Local == "rPr" {
				return nil
			}
		}
	}
}

// drawing extracts the first embedded picture of a w:drawing element. Text
// box content is queued on r.floating.
func (r *bodyReader) drawing() (*Image, error) {
	var (
		relID  string
		cx, cy int64
	)
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode drawing: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "extent":
				if cx == 0 {
					cx, _ = strconv.ParseInt(attrVal(t, "cx"), 10, 64)
					cy, _ = strconv.ParseInt(attrVal(t, "cy"), 10, 64)
				}
			case "blip":
				if relID == "" {
					relID = attrVal(t, "embed")
				}
			case "txbxContent":
				if err := r.textBox(); err != nil {
					return nil, err
				}
			}
		case xml.EndElement:
			if t.Name.Local != "drawing" {
				continue
			}
			if relID == "" {
				return nil, nil
			}
			img, err := r.loadImage(relID)
			if err != nil || img == nil {
				return nil, err
			}
			img.Width, img.Height = cx, cy
			return img, nil
		}
	}
}

// pict reads a legacy VML picture, keeping only its text box content.
func (r *bodyReader) pict() error {
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return fmt.Errorf("decode pict: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "txbxContent" {
				if err := r.textBox(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			if t.Name.Local == "pict" {
				return nil
			}
		}
	}
}

// textBox reads the paragraphs and tables of a w:txbxContent, in order, and
// appends them to r.floating. Nested text boxes follow their host paragraph.
func (r *bodyReader) textBox() error {
	outer := r.floating
	r.floating = nil
	var blocks []Block
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return fmt.Errorf("decode text box: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				p, err := r.paragraph(t)
				if err != nil {
					return err
				}
				blocks = append(blocks, p)
				blocks = append(blocks, r.floating...)
				r.floating = nil
			case "tbl":
				tbl, err := r.table()
				if err != nil {
					return err
				}
				blocks = append(blocks, tbl)
			}
		case xml.EndElement:
			if t.Name.Local == "txbxContent" {
				r.floating = append(outer, blocks...)
				return nil
			}
		}
	}
}

// table reads cell text row by row; paragraphs in a cell are joined by '\n'.
func (r *bodyReader) table() (*Table, error) {
	t := &Table{}
	var (
		row   []string
		cell  []string
		para  strings.Builder
		depth int // nested tables
		inT   bool
	)
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode table: %w", err)
		}
		switch v := tok.(type) {
		case xml.StartElement:
			switch v.Name.Local {
			case "tbl":
				depth++
			case "tr":
				if depth == 0 {
					row = nil
				}
			case "tc":
				if depth == 0 {
					cell = nil
				}
			case "t":
				inT = true
			case "tab":
				para.WriteByte('\t')
			case "Fallback", "delText":
				if err := r.dec.Skip(); err != nil {
					return nil, err
				}
			}
		case xml.CharData:
			if inT {
				para.Write(v)
			}
		case xml.EndElement:
			switch v.Name.Local {
			case "t":
				inT = false
			case "p":
				cell = append(cell, para.String())
				para.Reset()
			case "tc":
				if depth == 0 {
					row = append(row, strings.Join(cell, "\n"))
				}
			case "tr":
				if depth == 0 {
					t.Rows = append(t.Rows, row)
				}
			case "tbl":
				if depth == 0 {
					return t, nil
				}
				depth--
			}
		}
	}
}

func (r *bodyReader) section() (Section, error) {
	var s Section
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return s, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "pgSz":
				s.PageWidth = atoiFirst(t, "w")
				s.PageHeight = atoiFirst(t, "h")
			case "pgMar":
				s.MarginTop = atoiFirst(t, "top")
				s.MarginBottom = atoiFirst(t, "bottom")
				s.MarginLeft = atoiFirst(t, "left", "start")
				s.MarginRight = atoiFirst(t, "right", "end")
			}
		case xml.EndElement:
			if t.Name.Local == "sectPr" {
				return s, nil
			}
		}
	}
}

func attrVal(se xml.StartElement, local string) string {
	for _, a := range se.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func hasAttr(se xml.StartElement, local string) bool {
	for _, a := range se.Attr {
		if a.Name.Local == local {
			return true
		}
	}
	return false
}

func atoiFirst(se xml.StartElement, names ...string) int {
	for _, n := range names {
		if v := attrVal(se, n); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				return i
			}
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return int(f)
			}
		}
	}
	return 0
}

// onOff reads a w:ST_OnOff toggle; a bare element means on.
func onOff(se xml.StartElement) bool {
	switch attrVal(se, "val") {
	case "0", "false", "off", "none":
		return false
	}
	return true
}

func normalizeAlignment(v string) string {
	switch v {
	case "start":
		return AlignLeft
	case "end":
		return AlignRight
	case "justify", "distribute":
		return AlignJustify
	}
	return v
}
