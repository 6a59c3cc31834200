package asset

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// maxPadSide bounds the padded canvas so huge originals are scaled down.
const maxPadSide = 2000

// Decode reads any of the supported raster formats.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// PadToAspect scales src to fit inside a canvas with the aspect ratio
// widthPt:heightPt and centers it on white. A non-positive ratio keeps src's
// own shape.
func PadToAspect(src image.Image, widthPt, heightPt float64) image.Image {
	sb := src.Bounds()
	sw, sh := float64(sb.Dx()), float64(sb.Dy())
	if sw == 0 || sh == 0 {
		return src
	}
	aspect := sw / sh
	if widthPt > 0 && heightPt > 0 {
		aspect = widthPt / heightPt
	}

	cw, ch := sw, sw/aspect
	if ch < sh {
		cw, ch = sh*aspect, sh
	}
	if k := maxPadSide / max(cw, ch); k < 1 {
		cw, ch = cw*k, ch*k
	}
	canvas := image.NewRGBA(image.Rect(0, 0, max(int(cw), 1), max(int(ch), 1)))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	k := min(float64(canvas.Bounds().Dx())/sw, float64(canvas.Bounds().Dy())/sh)
	dw, dh := int(sw*k), int(sh*k)
	x0 := (canvas.Bounds().Dx() - dw) / 2
	y0 := (canvas.Bounds().Dy() - dh) / 2
	draw.CatmullRom.Scale(canvas, image.Rect(x0, y0, x0+dw, y0+dh), src, sb, draw.Over, nil)
	return canvas
}

// SavePNG writes img to path, creating parent directories.
func SavePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return gg.SavePNG(path, img)
}
