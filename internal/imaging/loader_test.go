package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_PNG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.png")

	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	src.SetNRGBA(0, 0, color.NRGBA{255, 0, 0, 255})
	src.SetNRGBA(3, 3, color.NRGBA{0, 0, 255, 128})
	writePNG(t, path, src)

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Bounds().Dx() != 4 || loaded.Bounds().Dy() != 4 {
		t.Errorf("dimensions: got %dx%d, want 4x4", loaded.Bounds().Dx(), loaded.Bounds().Dy())
	}
	got := color.NRGBAModel.Convert(loaded.At(0, 0)).(color.NRGBA)
	if got != (color.NRGBA{255, 0, 0, 255}) {
		t.Errorf("pixel (0,0): got %+v, want opaque red", got)
	}
}

func TestLoad_NonexistentFile(t *testing.T) {
	_, err := Load("/nonexistent/path/image.png")
	if err == nil {
		t.Fatal("expected error for nonexistent file")
	}
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.bmp")
	if err := os.WriteFile(path, []byte("not a real image"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
}

func TestLoad_JPEG(t *testing.T) {
	dir := t.TempDir()
	jpgPath := filepath.Join(dir, "test.jpg")

	src := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			src.SetRGBA(x, y, color.RGBA{128, 128, 128, 255})
		}
	}

	f, err := os.Create(jpgPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := jpeg.Encode(f, src, nil); err != nil {
		f.Close()
		t.Fatal(err)
	}
	f.Close()

	loaded, err := Load(jpgPath)
	if err != nil {
		t.Fatalf("Load JPEG: %v", err)
	}
	if loaded.Bounds().Dx() != 10 || loaded.Bounds().Dy() != 10 {
		t.Errorf("dimensions: got %dx%d, want 10x10", loaded.Bounds().Dx(), loaded.Bounds().Dy())
	}
}

func TestLoad_CorruptPNG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corrupt.png")
	if err := os.WriteFile(path, []byte("not a real png"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for corrupt PNG")
	}
}

func TestDecode_Reader(t *testing.T) {
	var b bytes.Buffer
	if err := png.Encode(&b, image.NewGray(image.Rect(0, 0, 3, 2))); err != nil {
		t.Fatal(err)
	}
	img, err := Decode(&b)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 3 || img.Bounds().Dy() != 2 {
		t.Errorf("dimensions: got %v", img.Bounds())
	}
}

func TestFit(t *testing.T) {
	tests := []struct {
		name         string
		w, h, max    int
		wantW, wantH int
	}{
		{"disabled", 100, 50, 0, 100, 50},
		{"already small", 100, 50, 200, 100, 50},
		{"landscape", 400, 200, 100, 100, 50},
		{"portrait", 200, 400, 100, 50, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fit(image.NewNRGBA(image.Rect(0, 0, tt.w, tt.h)), tt.max)
			if got.Bounds().Dx() != tt.wantW || got.Bounds().Dy() != tt.wantH {
				t.Errorf("got %dx%d, want %dx%d", got.Bounds().Dx(), got.Bounds().Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandPath("~/pics/a.png"); got != filepath.Join(home, "pics", "a.png") {
		t.Errorf("tilde: got %q", got)
	}
	if got := ExpandPath("rel/a.png"); !filepath.IsAbs(got) {
		t.Errorf("relative path not made absolute: %q", got)
	}
	if got := ExpandPath(""); got != "" {
		t.Errorf("empty: got %q", got)
	}
}

func TestSavePNG_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.png")
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.SetNRGBA(2, 1, color.NRGBA{10, 20, 30, 255})

	if err := SavePNG(path, src); err != nil {
		t.Fatalf("SavePNG: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := color.NRGBAModel.Convert(loaded.At(2, 1)).(color.NRGBA)
	if got != (color.NRGBA{10, 20, 30, 255}) {
		t.Errorf("pixel (2,1): got %+v", got)
	}

	if err := SavePNG(filepath.Join(t.TempDir(), "missing", "out.png"), src); err == nil {
		t.Error("expected error for missing directory")
	}
}
