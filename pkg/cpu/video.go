package cpu

import (
	"image"
	"image/png"
	"os"

	"golang.org/x/image/draw"
)

// Pixel colours for cleared and set screen bits.
var (
	paperRGBA = [4]byte{0xFF, 0xFF, 0xFF, 0xFF}
	inkRGBA   = [4]byte{0x00, 0x00, 0x00, 0xFF}
)

// PixelAt reports whether the screen bit at (x, y) is set. Each row is 32
// words; bit 0 of a word is its leftmost pixel.
func (c *CPU) PixelAt(x, y int) bool {
	if x < 0 || x >= ScreenWidth || y < 0 || y >= ScreenHeight {
		return false
	}
	word := c.RAM[Screen+y*(ScreenWidth/16)+x/16]
	return word&(1<<(x%16)) != 0
}

// GetFramebufferRGBA decodes the screen memory map into a 512×256 RGBA8888
// byte slice.
func (c *CPU) GetFramebufferRGBA() []byte {
	pixels := make([]byte, ScreenWidth*ScreenHeight*4)
	for i := 0; i < ScreenWords; i++ {
		word := c.RAM[Screen+i]
		for bit := 0; bit < 16; bit++ {
			px := paperRGBA
			if word&(1<<bit) != 0 {
				px = inkRGBA
			}
			copy(pixels[(i*16+bit)*4:], px[:])
		}
	}
	return pixels
}

// GetFramebufferImage returns the screen as an *image.RGBA.
func (c *CPU) GetFramebufferImage() *image.RGBA {
	return &image.RGBA{
		Pix:    c.GetFramebufferRGBA(),
		Stride: ScreenWidth * 4,
		Rect:   image.Rect(0, 0, ScreenWidth, ScreenHeight),
	}
}

// SaveScreenshot encodes the screen as a PNG, scaled by an integer factor.
func (c *CPU) SaveScreenshot(filename string, scale int) error {
	var img image.Image = c.GetFramebufferImage()
	if scale > 1 {
		dst := image.NewRGBA(image.Rect(0, 0, ScreenWidth*scale, ScreenHeight*scale))
		draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
		img = dst
	}
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
