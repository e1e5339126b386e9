// Package pptx writes PresentationML decks made of full-bleed picture
// slides.
package pptx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	nsP = "http://schemas.openxmlformats.org/presentationml/2006/main"
	nsA = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsR = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"

	relBase      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/"
	relsNS       = "http://schemas.openxmlformats.org/package/2006/relationships"
	typesNS      = "http://schemas.openxmlformats.org/package/2006/content-types"
	ctPrefix     = "application/vnd.openxmlformats-officedocument."
	emuPerInch   = 914400
	firstSlideID = 256
)

// Widescreen is the 10in x 5.625in (16:9) slide size in EMU.
var Widescreen = Size{Width: 10 * emuPerInch, Height: 5625 * emuPerInch / 1000}

// Size is a slide size in EMU.
type Size struct {
	Width  int64
	Height int64
}

// Slide is one picture stretched over the whole slide.
type Slide struct {
	Image []byte
	// Format is "jpeg" or "png".
	Format string
}

// Deck is an ordered set of slides.
type Deck struct {
	Size   Size
	Slides []Slide
}

// WriteFile writes d to p atomically.
func WriteFile(p string, d *Deck) error {
	tmp, err := os.CreateTemp(filepath.Dir(p), ".pptx-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := Write(tmp, d); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p)
}

// Write encodes d as a .pptx package.
func Write(w io.Writer, d *Deck) error {
	if len(d.Slides) == 0 {
		return fmt.Errorf("deck has no slides")
	}
	size := d.Size
	if size.Width == 0 || size.Height == 0 {
		size = Widescreen
	}

	exts := map[string]bool{}
	for i, s := range d.Slides {
		ext, err := imageExt(s.Format)
		if err != nil {
			return fmt.Errorf("slide %d: %w", i+1, err)
		}
		exts[ext] = true
	}

	zw := zip.NewWriter(w)
	put := func(name string, data []byte) error {
		f, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("zip %s: %w", name, err)
		}
		_, err = f.Write(data)
		return err
	}

	parts := []struct {
		name string
		data []byte
	}{
		{"[Content_Types].xml", contentTypes(len(d.Slides), exts)},
		{"_rels/.rels", rels(rel{"rId1", relBase + "officeDocument", "ppt/presentation.xml"})},
		{"ppt/presentation.xml", presentation(len(d.Slides), size)},
		{"ppt/_rels/presentation.xml.rels", presentationRels(len(d.Slides))},
		{"ppt/slideMasters/slideMaster1.xml", []byte(slideMasterXML)},
		{"ppt/slideMasters/_rels/slideMaster1.xml.rels", rels(
			rel{"rId1", relBase + "slideLayout", "../slideLayouts/slideLayout1.xml"},
			rel{"rId2", relBase + "theme", "../theme/theme1.xml"},
		)},
		{"ppt/slideLayouts/slideLayout1.xml", []byte(slideLayoutXML)},
		{"ppt/slideLayouts/_rels/slideLayout1.xml.rels", rels(rel{"rId1", relBase + "slideMaster", "../slideMasters/slideMaster1.xml"})},
		{"ppt/theme/theme1.xml", []byte(themeXML)},
	}
	for _, p := range parts {
		if err := put(p.name, p.data); err != nil {
			return err
		}
	}

	for i, s := range d.Slides {
		n := i + 1
		ext, _ := imageExt(s.Format)
		media := fmt.Sprintf("image%d.%s", n, ext)
		if err := put(fmt.Sprintf("ppt/slides/slide%d.xml", n), slide(n, size)); err != nil {
			return err
		}
		if err := put(fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", n), rels(
			rel{"rId1", relBase + "slideLayout", "../slideLayouts/slideLayout1.xml"},
			rel{"rId2", relBase + "image", "../media/" + media},
		)); err != nil {
			return err
		}
		if err := put("ppt/media/"+media, s.Image); err != nil {
			return err
		}
	}
	return zw.Close()
}

func imageExt(format string) (string, error) {
	switch strings.ToLower(format) {
	case "jpeg", "jpg":
		return "jpeg", nil
	case "png":
		return "png", nil
	}
	return "", fmt.Errorf("unsupported slide image format %q", format)
}

type rel struct{ id, typ, target string }

func rels(rs ...rel) []byte {
	var b bytes.Buffer
	b.WriteString(xml.Header)
	fmt.Fprintf(&b, `<Relationships xmlns="%s">`, relsNS)
	for _, r := range rs {
		fmt.Fprintf(&b, `<Relationship Id="%s" Type="%s" Target="%s"/>`, r.id, r.typ, r.target)
	}
	b.WriteString(`</Relationships>`)
	return b.Bytes()
}

func contentTypes(slides int, exts map[string]bool) []byte {
	var b bytes.Buffer
	b.WriteString(xml.Header)
	fmt.Fprintf(&b, `<Types xmlns="%s">`, typesNS)
	b.WriteString(`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`)
	b.WriteString(`<Default Extension="xml" ContentType="application/xml"/>`)
	for _, ext := range []string{"jpeg", "png"} {
		if exts[ext] {
			fmt.Fprintf(&b, `<Default Extension="%s" ContentType="image/%s"/>`, ext, ext)
		}
	}
	override := func(part, ct string) {
		fmt.Fprintf(&b, `<Override PartName="%s" ContentType="%s"/>`, part, ctPrefix+ct)
	}
	override("/ppt/presentation.xml", "presentationml.presentation.main+xml")
	override("/ppt/slideMasters/slideMaster1.xml", "presentationml.slideMaster+xml")
	override("/ppt/slideLayouts/slideLayout1.xml", "presentationml.slideLayout+xml")
	override("/ppt/theme/theme1.xml", "theme+xml")
	for i := 1; i <= slides; i++ {
		override(fmt.Sprintf("/ppt/slides/slide%d.xml", i), "presentationml.slide+xml")
	}
	b.WriteString(`</Types>`)
	return b.Bytes()
}

// Slide relationship ids start after the master (rId1) and theme (rId2).
func presentation(slides int, size Size) []byte {
	var b bytes.Buffer
	b.WriteString(xml.Header)
	fmt.Fprintf(&b, `<p:presentation xmlns:a="%s" xmlns:r="%s" xmlns:p="%s" saveSubsetFonts="1">`, nsA, nsR, nsP)
	b.WriteString(`<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>`)
	b.WriteString(`<p:sldIdLst>`)
	for i := 0; i < slides; i++ {
		fmt.Fprintf(&b, `<p:sldId id="%d" r:id="rId%d"/>`, firstSlideID+i, i+3)
	}
	b.WriteString(`</p:sldIdLst>`)
	fmt.Fprintf(&b, `<p:sldSz cx="%d" cy="%d"/><p:notesSz cx="6858000" cy="9144000"/>`, size.Width, size.Height)
	b.WriteString(`</p:presentation>`)
	return b.Bytes()
}

func presentationRels(slides int) []byte {
	rs := []rel{
		{"rId1", relBase + "slideMaster", "slideMasters/slideMaster1.xml"},
		{"rId2", relBase + "theme", "theme/theme1.xml"},
	}
	for i := 1; i <= slides; i++ {
		rs = append(rs, rel{fmt.Sprintf("rId%d", i+2), relBase + "slide", fmt.Sprintf("slides/slide%d.xml", i)})
	}
	return rels(rs...)
}

func slide(n int, size Size) []byte {
	var b bytes.Buffer
	b.WriteString(xml.Header)
	fmt.Fprintf(&b, `<p:sld xmlns:a="%s" xmlns:r="%s" xmlns:p="%s"><p:cSld><p:spTree>`, nsA, nsR, nsP)
	b.WriteString(emptyGroup)
	fmt.Fprintf(&b, `<p:pic><p:nvPicPr><p:cNvPr id="2" name="Page %d"/><p:cNvPicPr><a:picLocks noChangeAspect="1"/></p:cNvPicPr><p:nvPr/></p:nvPicPr>`, n)
	b.WriteString(`<p:blipFill><a:blip r:embed="rId2"/><a:stretch><a:fillRect/></a:stretch></p:blipFill>`)
	fmt.Fprintf(&b, `<p:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr></p:pic>`,
		size.Width, size.Height)
	b.WriteString(`</p:spTree></p:cSld><p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:sld>`)
	return b.Bytes()
}

const emptyGroup = `<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr>` +
	`<p:grpSpPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="0" cy="0"/><a:chOff x="0" y="0"/><a:chExt cx="0" cy="0"/></a:xfrm></p:grpSpPr>`

const slideMasterXML = xml.Header +
	`<p:sldMaster xmlns:a="` + nsA + `" xmlns:r="` + nsR + `" xmlns:p="` + nsP + `">` +
	`<p:cSld><p:bg><p:bgRef idx="1001"><a:schemeClr val="bg1"/></p:bgRef></p:bg><p:spTree>` + emptyGroup + `</p:spTree></p:cSld>` +
	`<p:clrMap bg1="lt1" tx1="dk1" bg2="lt2" tx2="dk2" accent1="accent1" accent2="accent2" accent3="accent3" accent4="accent4" accent5="accent5" accent6="accent6" hlink="hlink" folHlink="folHlink"/>` +
	`<p:sldLayoutIdLst><p:sldLayoutId id="2147483649" r:id="rId1"/></p:sldLayoutIdLst>` +
	`</p:sldMaster>`

const slideLayoutXML = xml.Header +
	`<p:sldLayout xmlns:a="` + nsA + `" xmlns:r="` + nsR + `" xmlns:p="` + nsP + `" type="blank" preserve="1">` +
	`<p:cSld name="Blank"><p:spTree>` + emptyGroup + `</p:spTree></p:cSld>` +
	`<p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:sldLayout>`

const themeXML = xml.Header +
	`<a:theme xmlns:a="` + nsA + `" name="Office Theme"><a:themeElements>` +
	`<a:clrScheme name="Office">` +
	`<a:dk1><a:sysClr val="windowText" lastClr="000000"/></a:dk1><a:lt1><a:sysClr val="window" lastClr="FFFFFF"/></a:lt1>` +
	`<a:dk2><a:srgbClr val="44546A"/></a:dk2><a:lt2><a:srgbClr val="E7E6E6"/></a:lt2>` +
	`<a:accent1><a:srgbClr val="4472C4"/></a:accent1><a:accent2><a:srgbClr val="ED7D31"/></a:accent2>` +
	`<a:accent3><a:srgbClr val="A5A5A5"/></a:accent3><a:accent4><a:srgbClr val="FFC000"/></a:accent4>` +
	`<a:accent5><a:srgbClr val="5B9BD5"/></a:accent5><a:accent6><a:srgbClr val="70AD47"/></a:accent6>` +
	`<a:hlink><a:srgbClr val="0563C1"/></a:hlink><a:folHlink><a:srgbClr val="954F72"/></a:folHlink>` +
	`</a:clrScheme>` +
	`<a:fontScheme name="Office">` +
	`<a:majorFont><a:latin typeface="Calibri Light"/><a:ea typeface=""/><a:cs typeface=""/></a:majorFont>` +
	`<a:minorFont><a:latin typeface="Calibri"/><a:ea typeface=""/><a:cs typeface=""/></a:minorFont>` +
	`</a:fontScheme>` +
	`<a:fmtScheme name="Office">` +
	`<a:fillStyleLst><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:fillStyleLst>` +
	`<a:lnStyleLst><a:ln w="6350"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln><a:ln w="12700"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln><a:ln w="19050"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln></a:lnStyleLst>` +
	`<a:effectStyleLst><a:effectStyle><a:effectLst/></a:effectStyle><a:effectStyle><a:effectLst/></a:effectStyle><a:effectStyle><a:effectLst/></a:effectStyle></a:effectStyleLst>` +
	`<a:bgFillStyleLst><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:bgFillStyleLst>` +
	`</a:fmtScheme></a:themeElements></a:theme>`
