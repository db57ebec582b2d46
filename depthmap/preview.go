package depthmap

import (
	"fmt"
	"image"

	"github.com/nfnt/resize"
)

// Preview scales img to the given width, keeping its aspect ratio.
// Images already narrower than width are returned unchanged.
func Preview(img *image.Gray, width int) (*image.Gray, error) {
	if width <= 0 {
		return nil, fmt.Errorf("depthmap: preview width %d must be positive", width)
	}
	if img.Rect.Dx() <= width {
		return img, nil
	}
	return ToGray(resize.Resize(uint(width), 0, img, resize.Lanczos3)), nil
}
