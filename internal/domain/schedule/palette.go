package schedule

import (
	"math/rand/v2"
)

// Palette colours. Every color assigned to an event is one of these.
const (
	ColorAmber  = "#F9B232"
	ColorRed    = "#E74C3C"
	ColorGreen  = "#27AE60"
	ColorBlue   = "#2980B9"
	ColorPurple = "#8E44AD"
	ColorTeal   = "#16A085"
	ColorGrey   = "#7F8C8D"
	ColorPink   = "#D35490"
	ColorNavy   = "#2C3E50"
)

// PaletteColors lists every palette member; random fallbacks draw from it.
var PaletteColors = []string{
	ColorAmber, ColorRed, ColorGreen, ColorBlue, ColorPurple,
	ColorTeal, ColorGrey, ColorPink, ColorNavy,
}

// detailColors maps folded detail strings to their fixed colour.
var detailColors = map[string]string{
	"induccion":         ColorBlue,
	"reinduccion":       ColorTeal,
	"capacitacion":      ColorGreen,
	"taller":            ColorAmber,
	"seminario":         ColorPurple,
	"evaluacion":        ColorRed,
	"certificacion":     ColorNavy,
	"acompanamiento":    ColorPink,
	"retroalimentacion": ColorGrey,
}

// Palette assigns display colours to events by their detail string.
type Palette struct {
	known map[string]string
	intn  func(n int) int
}

// NewPalette returns a palette using intn for the random fallback.
// A nil intn uses math/rand/v2.
func NewPalette(intn func(n int) int) *Palette {
	if intn == nil {
		intn = rand.IntN
	}
	return &Palette{known: detailColors, intn: intn}
}

// ColorFor returns the fixed colour for a known detail, or a random palette member otherwise.
// Matching folds case and accents, so "Inducción" and "induccion" share a colour.
func (p *Palette) ColorFor(detail string) string {
	if c, ok := p.known[FoldAccents(detail)]; ok {
		return c
	}
	return PaletteColors[p.intn(len(PaletteColors))]
}

// IsPaletteColor reports whether c is a palette member.
func IsPaletteColor(c string) bool {
	for _, p := range PaletteColors {
		if p == c {
			return true
		}
	}
	return false
}
