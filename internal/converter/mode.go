package converter

import "strings"

// Mode is a canonical conversion mode.
type Mode string

const (
	UltraFast Mode = "ultra-fast"
	Fast      Mode = "fast"
	Balanced  Mode = "balanced"
	Quality   Mode = "quality"
)

// BalancedImageCap is the per-page embedded image limit in balanced mode.
const BalancedImageCap = 3

// Profile is what a requested mode name resolves to.
type Profile struct {
	// Requested is the mode as the client sent it, echoed in responses.
	Requested string
	Mode      Mode
	TextOnly  bool
	Options   Options
}

// ParseMode resolves a client mode name. Aliases: text-only for ultra-fast,
// premium for balanced, complex for quality. Anything else, including an
// empty name, is fast with images only when includeImages is set.
func ParseMode(name string, includeImages bool) Profile {
	requested := strings.TrimSpace(name)
	if requested == "" {
		requested = string(Fast)
	}
	p := Profile{Requested: requested}
	switch strings.ToLower(requested) {
	case "ultra-fast", "text-only":
		p.Mode, p.TextOnly = UltraFast, true
	case "fast":
		p.Mode = Fast
	case "balanced", "premium":
		p.Mode = Balanced
		p.Options = Options{IncludeImages: true, MaxImagesPerPage: BalancedImageCap}
	case "quality", "complex":
		p.Mode = Quality
		p.Options = Options{IncludeImages: true, KeepLayout: true}
	default:
		p.Mode = Fast
		p.Options.IncludeImages = includeImages
	}
	return p
}
