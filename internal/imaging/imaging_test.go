package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"
)

func createTestJPEG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{255, 0, 0, 255})
		}
	}
	var buf bytes.Buffer
	jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func createTransparentPNG(w, h int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

func TestPrepareJPEG(t *testing.T) {
	p, err := Prepare(bytes.NewReader(createTestJPEG(100, 80)), "IMG_0001.HEIC.jpeg")
	if err != nil {
		t.Fatalf("Prepare JPEG: %v", err)
	}
	if p.Width != 100 || p.Height != 80 {
		t.Errorf("size = %dx%d, want 100x80", p.Width, p.Height)
	}
	if p.Name != "IMG_0001.HEIC.jpg" {
		t.Errorf("name = %q, want %q", p.Name, "IMG_0001.HEIC.jpg")
	}
	if _, err := jpeg.Decode(bytes.NewReader(p.Data)); err != nil {
		t.Errorf("output is not JPEG: %v", err)
	}
}

func TestPrepareTransparentPNGFlattensToWhite(t *testing.T) {
	p, err := Prepare(bytes.NewReader(createTransparentPNG(20, 20)), "tag.png")
	if err != nil {
		t.Fatalf("Prepare PNG: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(p.Data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	r, g, b, _ := img.At(10, 10).RGBA()
	if r>>8 < 240 || g>>8 < 240 || b>>8 < 240 {
		t.Errorf("pixel = (%d,%d,%d), want near white", r>>8, g>>8, b>>8)
	}
}

func TestPrepareGIF(t *testing.T) {
	img := image.NewPaletted(image.Rect(0, 0, 10, 10), []color.Color{color.Black, color.White})
	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode gif: %v", err)
	}
	if _, err := Prepare(&buf, "a.gif"); err != nil {
		t.Errorf("Prepare GIF: %v", err)
	}
}

func TestPrepareDownscale(t *testing.T) {
	p, err := Prepare(bytes.NewReader(createTestJPEG(3200, 1600)), "wide.jpg")
	if err != nil {
		t.Fatalf("Prepare large image: %v", err)
	}
	if p.Width != MaxDimension || p.Height != MaxDimension/2 {
		t.Errorf("size = %dx%d, want %dx%d", p.Width, p.Height, MaxDimension, MaxDimension/2)
	}
}

func TestPrepareRejectsNonImage(t *testing.T) {
	_, err := Prepare(bytes.NewReader([]byte("%PDF-1.4 not an image")), "doc.pdf")
	if err != ErrUnsupported {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
}

func TestPrepareRejectsOversize(t *testing.T) {
	big := make([]byte, MaxUploadBytes+10)
	copy(big, createTestJPEG(2, 2))
	_, err := Prepare(bytes.NewReader(big), "big.jpg")
	if err != ErrTooLarge {
		t.Errorf("err = %v, want ErrTooLarge", err)
	}
}

func TestJPEGName(t *testing.T) {
	tests := map[string]string{
		"":                     "photo.jpg",
		"C:\\Users\\me\\x.png": "x.jpg",
		"../../etc/passwd":     "passwd.jpg",
		"keys.webp":            "keys.jpg",
	}
	for in, want := range tests {
		if got := jpegName(in); got != want {
			t.Errorf("jpegName(%q) = %q, want %q", in, got, want)
		}
	}
}
