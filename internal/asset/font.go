package asset

import (
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

var (
	fontOnce sync.Once
	fontTTF  *truetype.Font
	fontErr  error
)

// Face returns a Go Regular face at size points. Faces are not safe for
// concurrent use, so every drawing context gets its own.
func Face(size float64) (font.Face, error) {
	fontOnce.Do(func() {
		fontTTF, fontErr = truetype.Parse(goregular.TTF)
	})
	if fontErr != nil {
		return nil, fontErr
	}
	return truetype.NewFace(fontTTF, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	}), nil
}
