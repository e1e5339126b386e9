// Package pdfpages does structural PDF work with pdfcpu: page counts,
// page-range extraction, and embedded image extraction.
package pdfpages

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog/log"
)

func conf() *model.Configuration {
	c := model.NewDefaultConfiguration()
	c.ValidationMode = model.ValidationRelaxed
	return c
}

// Count returns the number of pages in the PDF at path.
func Count(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("pdf page count failed: %w", err)
	}
	return n, nil
}

// Extract writes pages [start, end) (0-based, end exclusive) of src to dst.
func Extract(src, dst string, start, end int) error {
	if start < 0 || end <= start {
		return fmt.Errorf("invalid page range [%d, %d)", start, end)
	}
	sel := []string{fmt.Sprintf("%d-%d", start+1, end)}
	if err := api.TrimFile(src, dst, sel, conf()); err != nil {
		return fmt.Errorf("failed to extract pages %s: %w", sel[0], err)
	}
	return nil
}

// Image is an embedded image pulled out of a page.
type Image struct {
	Name string
	Data []byte
	obj  int
}

// ExtractImages returns the embedded PNG and JPEG images of pages
// [start, end) (0-based, end exclusive, within the document), keyed by
// 0-based page and in object order within each page. The file is parsed
// once for the whole range. Images in other encodings and page thumbnails
// are skipped.
func ExtractImages(src string, start, end int) (map[int][]Image, error) {
	if start < 0 || end <= start {
		return nil, fmt.Errorf("invalid page range [%d, %d)", start, end)
	}
	f, err := os.Open(src)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[int][]Image)
	sel := []string{fmt.Sprintf("%d-%d", start+1, end)}
	err = api.ExtractImages(f, sel, func(img model.Image, _ bool, _ int) error {
		if img.Thumb {
			return nil
		}
		switch strings.ToLower(img.FileType) {
		case "png", "jpg", "jpeg":
		default:
			log.Debug().Str("type", img.FileType).Int("page", img.PageNr).Msg("skipping unsupported embedded image")
			return nil
		}
		data, err := io.ReadAll(img)
		if err != nil {
			return err
		}
		page := img.PageNr - 1
		out[page] = append(out[page], Image{
			Name: fmt.Sprintf("%s_%d.%s", img.Name, img.ObjNr, img.FileType),
			Data: data,
			obj:  img.ObjNr,
		})
		return nil
	}, conf())
	if err != nil {
		return nil, fmt.Errorf("failed to extract images from pages %s: %w", sel[0], err)
	}
	for _, imgs := range out {
		sort.Slice(imgs, func(i, j int) bool { return imgs[i].obj < imgs[j].obj })
	}
	return out, nil
}
