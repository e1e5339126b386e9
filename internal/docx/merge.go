package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MergeError reports a failure to combine documents. Source names the input
// being processed when it failed, if any.
type MergeError struct {
	Source string
	Err    error
}

func (e *MergeError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("merge %s: %v", filepath.Base(e.Source), e.Err)
	}
	return fmt.Sprintf("merge: %v", e.Err)
}

func (e *MergeError) Unwrap() error { return e.Err }

// Merge concatenates srcs into dst in order.
//
// A single source is moved to dst unchanged. Otherwise the first source is
// the base: its package is copied through and every later document's body is
// appended after a page break. Appended content keeps paragraph and run
// formatting, inline images, and table cell text.
func Merge(ctx context.Context, srcs []string, dst string) error {
	switch len(srcs) {
	case 0:
		return &MergeError{Err: errors.New("no documents to merge")}
	case 1:
		if err := moveFile(srcs[0], dst); err != nil {
			return &MergeError{Source: srcs[0], Err: err}
		}
		return nil
	}

	base, err := zip.OpenReader(srcs[0])
	if err != nil {
		return &MergeError{Source: srcs[0], Err: err}
	}
	defer base.Close()

	m, err := newMerger(&base.Reader)
	if err != nil {
		return &MergeError{Source: srcs[0], Err: err}
	}
	for _, src := range srcs[1:] {
		if err := ctx.Err(); err != nil {
			return &MergeError{Source: src, Err: err}
		}
		doc, err := ReadFile(src)
		if err != nil {
			return &MergeError{Source: src, Err: err}
		}
		if err := m.append(doc); err != nil {
			return &MergeError{Source: src, Err: err}
		}
	}
	if err := m.writeFile(dst); err != nil {
		return &MergeError{Err: err}
	}
	return nil
}

type merger struct {
	base     *zip.Reader
	document []byte
	rels     []byte
	types    []byte
	insertAt int
	appended bytes.Buffer
	media    *mediaSet
	enc      *bodyEncoder
}

func newMerger(zr *zip.Reader) (*merger, error) {
	m := &merger{base: zr, media: newMediaSet("rIdMerged", "merged", 1)}
	for _, f := range zr.File {
		m.media.reserved[strings.TrimPrefix(f.Name, "word/")] = true
		var err error
		switch f.Name {
		case documentPart:
			m.document, err = readZipFile(f)
		case relsPart:
			m.rels, err = readZipFile(f)
			if err == nil {
				err = m.reserveRelIDs(f)
			}
		case typesPart:
			m.types, err = readZipFile(f)
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
	}
	if m.document == nil {
		return nil, fmt.Errorf("%s not found in archive", documentPart)
	}
	if m.types == nil {
		return nil, fmt.Errorf("%s not found in archive", typesPart)
	}
	at, err := bodyInsertPoint(m.document)
	if err != nil {
		return nil, err
	}
	m.insertAt = at
	m.enc = &bodyEncoder{addImage: m.media.add, nextDocPr: 100000}
	return m, nil
}

func (m *merger) reserveRelIDs(f *zip.File) error {
	rs, err := parseRels(f)
	if err != nil {
		return err
	}
	for _, r := range rs.Items {
		m.media.reserved[r.ID] = true
	}
	return nil
}

// bodyInsertPoint returns the offset at which appended blocks belong: before
// the body-level w:sectPr if there is one, else before </w:body>.
func bodyInsertPoint(doc []byte) (int, error) {
	end := bytes.LastIndex(doc, []byte("</w:body>"))
	if end < 0 {
		return 0, errors.New("document body not found")
	}
	body := doc[:end]
	sect := bytes.LastIndex(body, []byte("<w:sectPr"))
	lastBlock := max(bytes.LastIndex(body, []byte("</w:p>")), bytes.LastIndex(body, []byte("</w:tbl>")))
	if sect > lastBlock {
		return sect, nil
	}
	return end, nil
}

func (m *merger) append(doc *Document) error {
	if err := m.enc.paragraph(&m.appended, PageBreak()); err != nil {
		return err
	}
	return m.enc.blocks(&m.appended, doc.Blocks)
}

func (m *merger) writeFile(dst string) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".merge-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := m.write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

func (m *merger) write(w io.Writer) error {
	zw := zip.NewWriter(w)

	var doc bytes.Buffer
	doc.Grow(len(m.document) + m.appended.Len())
	doc.Write(m.document[:m.insertAt])
	doc.Write(m.appended.Bytes())
	doc.Write(m.document[m.insertAt:])

	replaced := map[string][]byte{
		documentPart: doc.Bytes(),
		relsPart:     m.mergedRels(),
		typesPart:    m.mergedTypes(),
	}
	for _, f := range m.base.File {
		if data, ok := replaced[f.Name]; ok {
			if err := writeZipEntry(zw, f.Name, data); err != nil {
				return err
			}
			delete(replaced, f.Name)
			continue
		}
		if err := zw.Copy(f); err != nil {
			return fmt.Errorf("copy %s: %w", f.Name, err)
		}
	}
	// The base may have had no rels part.
	if data, ok := replaced[relsPart]; ok {
		if err := writeZipEntry(zw, relsPart, data); err != nil {
			return err
		}
	}
	for _, it := range m.media.items {
		if err := writeZipEntry(zw, "word/"+it.target, it.data); err != nil {
			return err
		}
	}
	return zw.Close()
}

func (m *merger) mergedRels() []byte {
	var add bytes.Buffer
	for _, it := range m.media.items {
		fmt.Fprintf(&add, `<Relationship Id="%s" Type="%s" Target="%s"/>`, it.id, relImage, it.target)
	}
	if m.rels == nil {
		return documentRels(m.media.items)
	}
	return insertBefore(m.rels, "</Relationships>", add.Bytes())
}

func (m *merger) mergedTypes() []byte {
	lower := strings.ToLower(string(m.types))
	var add bytes.Buffer
	for _, ext := range m.media.extensions() {
		if strings.Contains(lower, `extension="`+ext+`"`) {
			continue
		}
		fmt.Fprintf(&add, `<Default Extension="%s" ContentType="%s"/>`, ext, imageContentTypes["."+ext])
	}
	return insertBefore(m.types, "</Types>", add.Bytes())
}

func insertBefore(doc []byte, marker string, add []byte) []byte {
	if len(add) == 0 {
		return doc
	}
	i := bytes.LastIndex(doc, []byte(marker))
	if i < 0 {
		return doc
	}
	out := make([]byte, 0, len(doc)+len(add))
	out = append(out, doc[:i]...)
	out = append(out, add...)
	return append(out, doc[i:]...)
}

func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
