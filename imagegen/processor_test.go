package imagegen

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color/palette"
	"image/gif"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/HydroGest/lmarena/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func tinyGIF(t *testing.T) []byte {
	t.Helper()
	frame := image.NewPaletted(image.Rect(0, 0, 2, 2), palette.WebSafe)
	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, &gif.GIF{Image: []*image.Paletted{frame}, Delay: []int{0}}))
	return buf.Bytes()
}

func newTestPipeline(t *testing.T) (*Pipeline, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	p, err := NewPipeline(NewDownloaderWithConfig(DownloaderConfig{}), logging.NewFromZap(zap.New(core)))
	require.NoError(t, err)
	return p, logs
}

func TestNewPipeline_NilArgs(t *testing.T) {
	_, err := NewPipeline(nil, logging.NewNop())
	assert.Error(t, err)
	_, err = NewPipeline(NewDownloaderWithConfig(DownloaderConfig{}), nil)
	assert.Error(t, err)
}

func TestPrepare_KeepsOrderAndDropsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/one.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(append(append([]byte{}, pngHeader...), '1'))
		case "/two.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte("jpeg-two"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	p, logs := newTestPipeline(t)
	images, err := p.Prepare(context.Background(), []string{
		server.URL + "/one.png",
		server.URL + "/missing.png",
		server.URL + "/two.jpg",
	})
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, server.URL+"/one.png", images[0].Source)
	assert.Equal(t, "image/png", images[0].MIME)
	assert.Equal(t, server.URL+"/two.jpg", images[1].Source)
	assert.Equal(t, "jpeg-two", string(images[1].Data))

	assert.Equal(t, 1, logs.FilterMessage("image download failed").Len())
}

func TestPrepare_ConvertsGIF(t *testing.T) {
	p, _ := newTestPipeline(t)

	images, err := p.Prepare(context.Background(), []string{EncodeDataURL("image/gif", tinyGIF(t))})
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "image/png", images[0].MIME)
	assert.Equal(t, "image/png", SniffMIME(images[0].Data))
}

func TestBuildRequest_CountsDownloadedGIFSize(t *testing.T) {
	p, _ := newTestPipeline(t)
	converted := append(append([]byte{}, pngHeader...), make([]byte, 4096)...)
	p.firstFrame = func([]byte) ([]byte, error) { return converted, nil }

	raw := tinyGIF(t)
	images, err := p.Prepare(context.Background(), []string{
		EncodeDataURL("image/gif", raw),
		EncodeDataURL("image/png", pngHeader),
	})
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, converted, images[0].Data)
	assert.Equal(t, int64(len(raw)), images[0].RawSize)

	req := BuildRequest("flux-1-kontext-pro", "make it shiny", images)
	assert.Equal(t, int64(len(raw)+len(pngHeader)), req.ImageBytes())
}

func TestPrepare_GIFConversionFailureKeepsOriginal(t *testing.T) {
	p, logs := newTestPipeline(t)
	p.firstFrame = func([]byte) ([]byte, error) { return nil, errors.New("decoder exploded") }

	raw := tinyGIF(t)
	images, err := p.Prepare(context.Background(), []string{EncodeDataURL("image/gif", raw)})
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "image/gif", images[0].MIME)
	assert.Equal(t, raw, images[0].Data)
	assert.Equal(t, 1, logs.FilterMessage("gif conversion failed, sending original").Len())
}

func TestPrepare_AllFail(t *testing.T) {
	p, _ := newTestPipeline(t)

	images, err := p.Prepare(context.Background(), []string{"data:broken", "base64://%%%"})
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestPrepare_Cancelled(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Prepare(ctx, []string{EncodeDataURL("image/png", pngHeader)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildRequest(t *testing.T) {
	images := []InputImage{
		{Source: "a", MIME: "image/png", Data: []byte{1, 2, 3}},
		{Source: "b", MIME: "image/jpeg", Data: []byte{4, 5}},
	}

	req := BuildRequest("flux-1-kontext-pro", "make it shiny", images)
	assert.Equal(t, "flux-1-kontext-pro", req.Model())
	assert.Equal(t, "make it shiny", req.Prompt())
	assert.Equal(t, int64(5), req.ImageBytes())
	assert.Equal(t, []string{
		"data:image/png;base64,AQID",
		"data:image/jpeg;base64,BAU=",
	}, req.Images())
}

func TestTotalBytes(t *testing.T) {
	assert.Equal(t, int64(0), TotalBytes(nil))
	assert.Equal(t, int64(7), TotalBytes([]InputImage{{Data: make([]byte, 3)}, {Data: make([]byte, 4)}}))
	assert.Equal(t, int64(10), TotalBytes([]InputImage{{Data: make([]byte, 3), RawSize: 6}, {Data: make([]byte, 4)}}))
}
