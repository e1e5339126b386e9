// Package docx reads, writes and concatenates WordprocessingML (.docx)
// documents at the level of paragraphs, runs, inline images and tables.
//
// Lengths are in twips (1/20 pt) unless a field says otherwise.
package docx

// Document is an ordered list of body blocks plus page geometry.
type Document struct {
	Blocks  []Block
	Section Section
}

// Block is a body-level element: *Paragraph or *Table.
type Block interface{ block() }

// Alignment values as written to w:jc.
const (
	AlignLeft    = "left"
	AlignCenter  = "center"
	AlignRight   = "right"
	AlignJustify = "both"
)

type Paragraph struct {
	Style         string
	Alignment     string
	IndentLeft    int
	IndentRight   int
	SpacingBefore int
	SpacingAfter  int
	// SpacingSet writes SpacingBefore and SpacingAfter even when zero, so
	// they override the style.
	SpacingSet bool
	// BeforeSet and AfterSet do the same for one side only.
	BeforeSet bool
	AfterSet  bool
	// LineSpacing is a multiple of single spacing; 0 keeps the style default.
	LineSpacing float64
	Runs        []Run
}

// Run is a span of uniformly formatted content. Exactly one of Text, Break
// or Image is meaningful; Text may carry '\n' and '\t'.
type Run struct {
	Text      string
	Bold      bool
	Italic    bool
	Underline bool
	Size      float64 // points, 0 inherits
	Color     string  // RRGGBB
	Break     bool    // page break
	Image     *Image
}

type Image struct {
	Name string // file name inside word/media, extension decides content type
	Data []byte
	// Extent in EMU.
	Width  int64
	Height int64
}

// Table keeps the grid and cell text only.
type Table struct {
	Rows [][]string
}

func (*Paragraph) block() {}
func (*Table) block()     {}

// Section is the page size and margins.
type Section struct {
	PageWidth    int
	PageHeight   int
	MarginTop    int
	MarginBottom int
	MarginLeft   int
	MarginRight  int
}

// Letter is US Letter with one-inch margins.
var Letter = Section{
	PageWidth:    12240,
	PageHeight:   15840,
	MarginTop:    Inch(1),
	MarginBottom: Inch(1),
	MarginLeft:   Inch(1),
	MarginRight:  Inch(1),
}

// Pt converts points to twips.
func Pt(v float64) int { return int(v * 20) }

// Inch converts inches to twips.
func Inch(v float64) int { return int(v * 1440) }

// EMUPerPoint converts points to EMU for image extents.
const EMUPerPoint = 12700

// PageBreak returns a paragraph holding only a page break.
func PageBreak() *Paragraph {
	return &Paragraph{Runs: []Run{{Break: true}}}
}

// Text concatenates the text of all runs.
func (p *Paragraph) Text() string {
	var n int
	for _, r := range p.Runs {
		n += len(r.Text)
	}
	b := make([]byte, 0, n)
	for _, r := range p.Runs {
		b = append(b, r.Text...)
	}
	return string(b)
}

// IsPageBreak reports whether p is an empty paragraph carrying a page break.
func (p *Paragraph) IsPageBreak() bool {
	if len(p.Runs) == 0 {
		return false
	}
	for _, r := range p.Runs {
		if !r.Break && (r.Text != "" || r.Image != nil) {
			return false
		}
	}
	for _, r := range p.Runs {
		if r.Break {
			return true
		}
	}
	return false
}
