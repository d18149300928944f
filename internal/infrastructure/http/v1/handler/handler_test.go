package handler

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jaennil/guide_helper/backend/overzoom/internal/overzoom"
	"github.com/jaennil/guide_helper/backend/overzoom/internal/repository/source"
	"github.com/jaennil/guide_helper/backend/overzoom/internal/tile"
	"github.com/jaennil/guide_helper/backend/overzoom/internal/usecase"
	"github.com/jaennil/guide_helper/backend/overzoom/pkg/logger"
	"github.com/jaennil/guide_helper/backend/overzoom/pkg/telemetry"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func solidPNG(t *testing.T, size int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, color.RGBA{G: 180, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

type testServer struct {
	router *gin.Engine
	store  *source.MapStore
	tiles  *usecase.TileUseCase
	remote *usecase.RemoteTileUseCase
}

func newTestServer(t *testing.T, remote *source.RemoteSource) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := source.NewMapStore()
	l := logger.NewNoOpLogger()
	tiles, err := usecase.NewTileUseCase(&usecase.Provider{
		Store:    store,
		TileSize: 256,
		Format:   overzoom.FormatJPEG,
		Quality:  100,
	}, overzoom.NewGuard(2), l)
	if err != nil {
		t.Fatalf("expect no err, got %v", err)
	}

	remoteTiles := usecase.NewRemoteTileUseCase(remote, l)
	h := NewHandler(validator.New(), tiles, remoteTiles)

	r := gin.New()
	r.GET("/api/v1/tile/:z/:x/:y", h.Tile)
	r.GET("/api/v1/remote/:z/:x/:y", h.RemoteTile)
	r.GET("/api/v1/provider", h.GetProvider)
	r.PUT("/api/v1/provider", h.PutProvider)
	r.GET("/api/v1/remote/provider", h.GetRemoteProvider)
	r.PUT("/api/v1/remote/provider", h.PutRemoteProvider)
	r.GET("/api/v1/healthz", h.Healthz)

	return &testServer{router: r, store: store, tiles: tiles, remote: remoteTiles}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestTileExact(t *testing.T) {
	s := newTestServer(t, nil)
	payload := solidPNG(t, 256)
	s.store.Set(tile.Coordinate{X: 1, Y: 2, Z: 3}, payload)

	w := s.do(http.MethodGet, "/api/v1/tile/3/1/2.png", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !bytes.Equal(w.Body.Bytes(), payload) {
		t.Error("exact tile bytes changed")
	}
	if got := w.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("content type %q", got)
	}
	if got := w.Header().Get("X-Tile-Source"); got != "exact" {
		t.Errorf("X-Tile-Source %q", got)
	}
}

func TestTileOverzoom(t *testing.T) {
	s := newTestServer(t, nil)
	s.store.Set(tile.Coordinate{X: 0, Y: 0, Z: 0}, solidPNG(t, 256))

	w := s.do(http.MethodGet, "/api/v1/tile/4/5/3", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "image/jpeg" {
		t.Errorf("content type %q", got)
	}
	if got := w.Header().Get("X-Tile-Source"); got != "overzoom" {
		t.Errorf("X-Tile-Source %q", got)
	}
	if got := w.Header().Get("X-Tile-Source-Zoom"); got != "0" {
		t.Errorf("X-Tile-Source-Zoom %q", got)
	}

	img, err := jpeg.Decode(w.Body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 256 || b.Dy() != 256 {
		t.Errorf("expected 256x256, got %v", b)
	}
}

func TestTileNoContent(t *testing.T) {
	s := newTestServer(t, nil)
	s.store.Set(tile.Coordinate{X: 0, Y: 0, Z: 1}, []byte("not an image"))

	for _, path := range []string{
		"/api/v1/tile/5/0/0",
		"/api/v1/tile/1/1/1",
		"/api/v1/tile/2/1/0",
	} {
		w := s.do(http.MethodGet, path, "")
		if w.Code != http.StatusNoContent {
			t.Errorf("%s: expected 204, got %d", path, w.Code)
		}
		if w.Body.Len() != 0 {
			t.Errorf("%s: expected empty body", path)
		}
	}
}

func TestTileBadRequest(t *testing.T) {
	s := newTestServer(t, nil)

	for _, path := range []string{
		"/api/v1/tile/a/0/0",
		"/api/v1/tile/-1/0/0",
		"/api/v1/tile/1/b/0",
		"/api/v1/tile/1/0/c.png",
	} {
		if w := s.do(http.MethodGet, path, ""); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, w.Code)
		}
	}
}

func TestPutProvider(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodPut, "/api/v1/provider", `{"tile_size":512,"floor_zoom":2,"output_format":"png"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}

	var resp struct {
		Data struct {
			TileSize     int    `json:"tile_size"`
			FloorZoom    int    `json:"floor_zoom"`
			OutputFormat string `json:"output_format"`
			Store        string `json:"store"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Data.TileSize != 512 || resp.Data.FloorZoom != 2 || resp.Data.OutputFormat != "png" || resp.Data.Store != "memory" {
		t.Errorf("unexpected provider %+v", resp.Data)
	}

	p := s.tiles.Provider()
	if p.TileSize != 512 || p.FloorZoom != 2 || p.Format != overzoom.FormatPNG {
		t.Errorf("provider not installed: %+v", p)
	}
}

func TestPutProviderInvalid(t *testing.T) {
	s := newTestServer(t, nil)
	before := s.tiles.Provider()

	for _, body := range []string{
		`not json`,
		`{"tile_size":0,"floor_zoom":0,"output_format":"jpeg"}`,
		`{"tile_size":256,"output_format":"jpeg"}`,
		`{"tile_size":256,"floor_zoom":0,"output_format":"gif"}`,
		`{"tile_size":256,"floor_zoom":0,"output_format":"jpeg","quality":101}`,
		`{"tile_size":4096,"floor_zoom":0,"output_format":"jpeg"}`,
		// memory store has no path template
		`{"tile_size":256,"floor_zoom":0,"output_format":"jpeg","path_template":"{z}/{x}/{y}.png"}`,
	} {
		if w := s.do(http.MethodPut, "/api/v1/provider", body); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, w.Code)
		}
	}

	if s.tiles.Provider() != before {
		t.Error("provider replaced by an invalid request")
	}
}

func TestRemote(t *testing.T) {
	payload := solidPNG(t, 8)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/7/1/2.png" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write(payload)
	}))
	defer upstream.Close()

	s := newTestServer(t, source.NewRemoteSource(source.RemoteConfig{
		URLTemplate: upstream.URL + "/{z}/{x}/{y}.png",
		MinimumZ:    5,
		MaximumZ:    10,
	}))

	w := s.do(http.MethodGet, "/api/v1/remote/7/1/2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !bytes.Equal(w.Body.Bytes(), payload) {
		t.Error("remote tile bytes changed")
	}

	for _, path := range []string{"/api/v1/remote/4/1/2", "/api/v1/remote/11/1/2", "/api/v1/remote/7/0/0"} {
		if w := s.do(http.MethodGet, path, ""); w.Code != http.StatusNoContent {
			t.Errorf("%s: expected 204, got %d", path, w.Code)
		}
	}

	w = s.do(http.MethodPut, "/api/v1/remote/provider", `{"url_template":"`+upstream.URL+`/{z}/{x}/{y}.png","minimum_z":0,"maximum_z":3}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	if w := s.do(http.MethodGet, "/api/v1/remote/7/1/2", ""); w.Code != http.StatusNoContent {
		t.Errorf("expected 204 above new maximum, got %d", w.Code)
	}

	w = s.do(http.MethodPut, "/api/v1/remote/provider", `{"url_template":"`+upstream.URL+`","minimum_z":6,"maximum_z":3}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for inverted range, got %d", w.Code)
	}

	for _, u := range []string{"file:///etc/{z}/{x}/{y}", "gopher://tiles.local/{z}/{x}/{y}"} {
		w = s.do(http.MethodPut, "/api/v1/remote/provider", `{"url_template":"`+u+`"}`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", u, w.Code)
		}
	}
	if got := s.remote.Source().Config().URLTemplate; !strings.HasPrefix(got, upstream.URL) {
		t.Errorf("remote template replaced by rejected request: %q", got)
	}
}

func TestPutProviderKeepsFilesInsideRoot(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	root := filepath.Join(dir, "tiles")
	if err := os.MkdirAll(root, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "secret.txt"), []byte("TOP-SECRET"), 0644); err != nil {
		t.Fatal(err)
	}

	l := logger.NewNoOpLogger()
	tiles, err := usecase.NewTileUseCase(&usecase.Provider{
		Store:    source.NewFilesystemStore(root, "{z}/{x}/{y}.png", 0),
		TileSize: 256,
		Format:   overzoom.FormatJPEG,
	}, nil, l)
	if err != nil {
		t.Fatalf("expect no err, got %v", err)
	}
	h := NewHandler(validator.New(), tiles, usecase.NewRemoteTileUseCase(nil, l))
	r := gin.New()
	r.PUT("/api/v1/provider", h.PutProvider)
	r.GET("/api/v1/tile/:z/:x/:y", h.Tile)
	s := &testServer{router: r, tiles: tiles}

	for _, template := range []string{"../secret.txt", "/etc/passwd", "{z}/../../secret.txt"} {
		w := s.do(http.MethodPut, "/api/v1/provider", `{"path_template":"`+template+`","tile_size":256,"floor_zoom":0,"output_format":"jpeg"}`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", template, w.Code)
		}
	}
	if got := tiles.Provider().PathTemplate(); got != "{z}/{x}/{y}.png" {
		t.Fatalf("path template replaced: %q", got)
	}

	w := s.do(http.MethodGet, "/api/v1/tile/3/1/1", "")
	if w.Code != http.StatusNoContent || strings.Contains(w.Body.String(), "TOP-SECRET") {
		t.Errorf("unexpected response %d %q", w.Code, w.Body.String())
	}
}

func TestRemoteDisabled(t *testing.T) {
	s := newTestServer(t, nil)

	if w := s.do(http.MethodGet, "/api/v1/remote/1/0/0", ""); w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	if w := s.do(http.MethodGet, "/api/v1/remote/provider", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	w := s.do(http.MethodPut, "/api/v1/remote/provider", `{"url_template":"https://tile.example.com/{z}/{x}/{y}.png"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(http.MethodGet, "/api/v1/healthz", "")
	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Errorf("unexpected healthz %d %q", w.Code, w.Body.String())
	}
}

func TestTileAnnotatesSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	s := newTestServer(t, nil)
	s.store.Set(tile.Coordinate{X: 0, Y: 0, Z: 1}, solidPNG(t, 256))

	r := gin.New()
	r.Use(telemetry.GinMiddleware("test"))
	r.GET("/api/v1/tile/:z/:x/:y", NewHandler(validator.New(), s.tiles, s.remote).Tile)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/tile/3/1/1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var server sdktrace.ReadOnlySpan
	for _, span := range recorder.Ended() {
		if span.Name() == "GET /api/v1/tile/:z/:x/:y" {
			server = span
		}
	}
	if server == nil {
		t.Fatal("no server span recorded")
	}

	attrs := map[string]string{}
	for _, kv := range server.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs["tile.source"] != "overzoom" || attrs["tile.source_z"] != "1" || attrs["tile.found"] != "true" {
		t.Errorf("unexpected span attributes %v", attrs)
	}
}
