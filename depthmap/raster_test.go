package depthmap

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// gradient returns a gray image whose levels cover 0..255.
func gradient(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x*7 + y*31) % 256)})
		}
	}
	return img
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"a.png", FormatPNG},
		{"dir/B.PNG", FormatPNG},
		{"a.tif", FormatTIFF},
		{"a.tiff", FormatTIFF},
		{"a.bmp", FormatBMP},
		{"a.j2k", FormatJ2K},
		{"a.j2c", FormatJ2K},
		{"a.jp2", FormatJP2},
	}
	for _, tt := range tests {
		got, err := FormatFromPath(tt.path)
		if err != nil || got != tt.want {
			t.Errorf("FormatFromPath(%q) = %v, %v; want %v", tt.path, got, err, tt.want)
		}
	}

	for _, p := range []string{"a.jpg", "noext", "a.exr"} {
		if _, err := FormatFromPath(p); !errors.Is(err, ErrUnsupportedRaster) {
			t.Errorf("FormatFromPath(%q) error = %v, want ErrUnsupportedRaster", p, err)
		}
	}
}

func TestEncodeDecodeLossless(t *testing.T) {
	src := gradient(37, 11)
	for _, f := range []Format{FormatPNG, FormatTIFF, FormatBMP} {
		t.Run(f.String(), func(t *testing.T) {
			var buf bytes.Buffer
			if err := Encode(&buf, src, f); err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			got, err := Decode(&buf, f)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got.Rect != src.Rect {
				t.Fatalf("bounds = %v, want %v", got.Rect, src.Rect)
			}
			if !bytes.Equal(Levels(got), Levels(src)) {
				t.Error("decoded levels differ from source")
			}
		})
	}
}

func TestEncodeJPEG2000Unsupported(t *testing.T) {
	for _, f := range []Format{FormatJ2K, FormatJP2} {
		var buf bytes.Buffer
		err := Encode(&buf, gradient(37, 11), f)
		if !errors.Is(err, ErrUnsupportedRaster) {
			t.Errorf("Encode(%v) error = %v, want ErrUnsupportedRaster", f, err)
		}
		if buf.Len() != 0 {
			t.Errorf("Encode(%v) wrote %d bytes", f, buf.Len())
		}
	}
	path := filepath.Join(t.TempDir(), "out.j2k")
	if err := WriteFile(path, gradient(4, 4)); !errors.Is(err, ErrUnsupportedRaster) {
		t.Errorf("WriteFile(.j2k) error = %v, want ErrUnsupportedRaster", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("WriteFile(.j2k) left a file behind: %v", err)
	}
}

func TestDecodeCorrupt(t *testing.T) {
	if _, err := Decode(bytes.NewReader([]byte("not a png")), FormatPNG); err == nil {
		t.Error("Decode() accepted garbage")
	}
}

func TestToGray(t *testing.T) {
	t.Run("gray16 keeps high byte", func(t *testing.T) {
		img := image.NewGray16(image.Rect(0, 0, 2, 1))
		img.SetGray16(0, 0, color.Gray16{Y: 0xABCD})
		img.SetGray16(1, 0, color.Gray16{Y: 0x00FF})
		g := ToGray(img)
		if g.GrayAt(0, 0).Y != 0xAB || g.GrayAt(1, 0).Y != 0x00 {
			t.Errorf("levels = %v, want [171 0]", g.Pix)
		}
	})

	t.Run("rgb neutral", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(0, 0, 1, 1))
		img.SetRGBA(0, 0, color.RGBA{90, 90, 90, 255})
		if y := ToGray(img).GrayAt(0, 0).Y; y != 90 {
			t.Errorf("gray = %d, want 90", y)
		}
	})

	t.Run("offset bounds", func(t *testing.T) {
		src := gradient(8, 8)
		sub := src.SubImage(image.Rect(2, 3, 6, 5)).(*image.Gray)
		g := ToGray(sub)
		if g.Rect != image.Rect(0, 0, 4, 2) {
			t.Fatalf("bounds = %v", g.Rect)
		}
		if !bytes.Equal(Levels(g), Levels(sub)) {
			t.Errorf("levels = %v, want %v", Levels(g), Levels(sub))
		}
	})

	t.Run("gray passthrough", func(t *testing.T) {
		src := gradient(3, 3)
		if ToGray(src) != src {
			t.Error("ToGray copied an origin-anchored gray image")
		}
	})
}

func TestFromLevels(t *testing.T) {
	img, err := FromLevels([]uint8{1, 2, 3, 4, 5, 6}, 3, 2)
	if err != nil {
		t.Fatal(err)
	}
	if img.GrayAt(2, 1).Y != 6 || img.GrayAt(0, 1).Y != 4 {
		t.Errorf("unexpected layout %v", img.Pix)
	}

	for _, tt := range []struct{ n, w, h int }{{5, 3, 2}, {0, 0, 0}, {6, -3, -2}} {
		if _, err := FromLevels(make([]uint8, tt.n), tt.w, tt.h); !errors.Is(err, ErrSizeMismatch) {
			t.Errorf("FromLevels(%d, %d, %d) error = %v, want ErrSizeMismatch", tt.n, tt.w, tt.h, err)
		}
	}
}

func TestReadWriteFile(t *testing.T) {
	dir := t.TempDir()
	src := gradient(16, 9)
	for _, name := range []string{"d.png", "d.tiff", "d.bmp"} {
		path := filepath.Join(dir, name)
		if err := WriteFile(path, src); err != nil {
			t.Fatalf("WriteFile(%s) error = %v", name, err)
		}
		got, err := ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile(%s) error = %v", name, err)
		}
		if !bytes.Equal(Levels(got), Levels(src)) {
			t.Errorf("%s: levels differ after round trip", name)
		}
	}

	if err := WriteFile(filepath.Join(dir, "d.gif"), src); !errors.Is(err, ErrUnsupportedRaster) {
		t.Errorf("WriteFile(gif) error = %v, want ErrUnsupportedRaster", err)
	}
	if _, err := ReadFile(filepath.Join(dir, "missing.png")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ReadFile(missing) error = %v, want ErrNotExist", err)
	}
}

func TestReadFileRGBA(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rgba.png")
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{200, 200, 200, 255})
	img.SetNRGBA(1, 0, color.NRGBA{10, 10, 10, 255})
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()

	g, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := Levels(g); got[0] != 200 || got[1] != 10 {
		t.Errorf("levels = %v, want [200 10]", got)
	}
}
