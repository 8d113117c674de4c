package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/maax3v3/yarnmap/internal/cli"
	"github.com/maax3v3/yarnmap/internal/palette"
	"github.com/maax3v3/yarnmap/internal/pipeline"
)

func testConfig() cli.ServerConfig {
	return cli.ServerConfig{
		Analysis:       cli.Analysis{Threshold: 15, MinArea: 10, Matches: 2, ReseedRejected: true},
		Addr:           ":0",
		Timeout:        time.Minute,
		MaxUploadBytes: 1 << 20,
		AllowedOrigins: []string{"https://example.com"},
	}
}

func testPalette(t *testing.T) *palette.Palette {
	t.Helper()
	p, err := palette.New(map[string]string{"cherry": "#d2042d", "sky": "#0000ff", "snow": "#fffafa"})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// halves is a 20x10 image: red on the left, blue on the right.
func halves(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 20, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 20; x++ {
			c := color.NRGBA{255, 0, 0, 255}
			if x >= 10 {
				c = color.NRGBA{0, 0, 255, 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	var b bytes.Buffer
	if err := png.Encode(&b, img); err != nil {
		t.Fatal(err)
	}
	return b.Bytes()
}

func upload(t *testing.T, target, field string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, "upload.png")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	h := New(testConfig(), nil, zerolog.Nop()).Handler()
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"ok"`)) {
		t.Errorf("body: %s", rec.Body.String())
	}
}

func TestPalette(t *testing.T) {
	tests := []struct {
		name string
		pal  *palette.Palette
		want []paletteEntry
	}{
		{"none", nil, []paletteEntry{}},
		{"configured", testPalette(t), []paletteEntry{
			{Name: "cherry", Hex: "#d2042d"},
			{Name: "sky", Hex: "#0000ff"},
			{Name: "snow", Hex: "#fffafa"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(testConfig(), tt.pal, zerolog.Nop()).Handler()
			rec := serve(h, httptest.NewRequest(http.MethodGet, "/v1/palette", nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("status: got %d", rec.Code)
			}
			var got struct {
				Entries []paletteEntry `json:"entries"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got.Entries); diff != "" {
				t.Errorf("entries (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRegions(t *testing.T) {
	h := New(testConfig(), testPalette(t), zerolog.Nop()).Handler()
	rec := serve(h, upload(t, "/v1/regions", formField, halves(t)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type: got %q", ct)
	}

	var report pipeline.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report.Width != 20 || report.Height != 10 {
		t.Errorf("size: got %dx%d", report.Width, report.Height)
	}
	if len(report.Regions) != 2 {
		t.Fatalf("got %d regions, want 2", len(report.Regions))
	}
	for i, want := range []struct{ color, match string }{{"#ff0000", "cherry"}, {"#0000ff", "sky"}} {
		r := report.Regions[i]
		if r.Color != want.color || r.PixelCount != 100 {
			t.Errorf("region %d: got %s/%d", i, r.Color, r.PixelCount)
		}
		if len(r.Matches) != 2 || r.Matches[0].Name != want.match {
			t.Errorf("region %d matches: got %+v", i, r.Matches)
		}
		if r.ImagePart.Base64 == "" {
			t.Errorf("region %d: missing crop", i)
		}
	}
}

func TestRegions_QueryOverrides(t *testing.T) {
	h := New(testConfig(), nil, zerolog.Nop()).Handler()
	rec := serve(h, upload(t, "/v1/regions?minArea=101", formField, halves(t)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
	var report pipeline.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if len(report.Regions) != 0 {
		t.Errorf("minArea=101 should drop both 100-pixel regions, got %d", len(report.Regions))
	}
}

func TestRegions_BadRequests(t *testing.T) {
	h := New(testConfig(), nil, zerolog.Nop()).Handler()
	tests := []struct {
		name string
		req  *http.Request
	}{
		{"threshold out of range", upload(t, "/v1/regions?threshold=150", formField, halves(t))},
		{"threshold not a number", upload(t, "/v1/regions?threshold=abc", formField, halves(t))},
		{"negative min area", upload(t, "/v1/regions?minArea=-1", formField, halves(t))},
		{"matches not a number", upload(t, "/v1/regions?matches=x", formField, halves(t))},
		{"wrong field", upload(t, "/v1/regions", "file", halves(t))},
		{"not an image", upload(t, "/v1/regions", formField, []byte("definitely not a png"))},
		{"not multipart", httptest.NewRequest(http.MethodPost, "/v1/regions", bytes.NewReader([]byte("{}")))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, tt.req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRegions_TooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUploadBytes = 64
	h := New(cfg, nil, zerolog.Nop()).Handler()
	rec := serve(h, upload(t, "/v1/regions", formField, halves(t)))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status: got %d, want 413", rec.Code)
	}
}

func TestRegions_Timeout(t *testing.T) {
	cfg := testConfig()
	cfg.Timeout = time.Nanosecond
	h := New(cfg, nil, zerolog.Nop()).Handler()
	rec := serve(h, upload(t, "/v1/regions", formField, halves(t)))
	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("status: got %d, want 504", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	h := New(testConfig(), nil, zerolog.Nop()).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/v1/regions", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := serve(h, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://example.com" {
		t.Errorf("allowed origin: got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://elsewhere.test")
	rec = serve(h, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin allowed: %q", got)
	}
}
