package imagegen

import (
	"context"
	"fmt"

	"github.com/HydroGest/lmarena/logging"
	"github.com/HydroGest/lmarena/vision"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentDownloads bounds the fan-out of one Prepare call.
const maxConcurrentDownloads = 4

// InputImage is one downloaded, ready-to-send image.
type InputImage struct {
	Source string // where it came from
	MIME   string
	Data   []byte

	// RawSize is the downloaded size, before any GIF conversion.
	RawSize int64
}

// DataURL returns the image as a base64 data URL.
func (i InputImage) DataURL() string {
	return EncodeDataURL(i.MIME, i.Data)
}

// Pipeline downloads and normalizes the images of one invocation.
//
// Thread-Safety: Pipeline is stateless apart from its collaborators and safe
// for concurrent use.
type Pipeline struct {
	downloader *Downloader
	logger     *logging.Logger
	firstFrame func([]byte) ([]byte, error)
}

// NewPipeline creates a Pipeline.
func NewPipeline(downloader *Downloader, logger *logging.Logger) (*Pipeline, error) {
	if downloader == nil {
		return nil, fmt.Errorf("imagegen: downloader cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("imagegen: logger cannot be nil")
	}
	return &Pipeline{
		downloader: downloader,
		logger:     logger.Named("imagegen"),
		firstFrame: vision.FirstFramePNG,
	}, nil
}

// Prepare downloads every source concurrently and returns the ones that
// succeeded, in source order.
//
// A failed download is logged and dropped; the caller decides what an empty
// result means. GIFs are replaced by a PNG of their first frame, or sent as
// is when that conversion fails. The only error is ctx's.
func (p *Pipeline) Prepare(ctx context.Context, sources []string) ([]InputImage, error) {
	results := make([]*InputImage, len(sources))

	var g errgroup.Group
	g.SetLimit(maxConcurrentDownloads)
	for i, source := range sources {
		i, source := i, source
		g.Go(func() error {
			img, err := p.prepareOne(ctx, source)
			if err != nil {
				p.logger.Error("image download failed",
					zap.Int("index", i),
					zap.String("source", source),
					zap.Error(err))
				return nil
			}
			results[i] = img
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	images := make([]InputImage, 0, len(results))
	for _, img := range results {
		if img != nil {
			images = append(images, *img)
		}
	}
	return images, nil
}

func (p *Pipeline) prepareOne(ctx context.Context, source string) (*InputImage, error) {
	data, mime, err := p.downloader.DownloadBytes(ctx, source)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("imagegen: empty image")
	}

	img := &InputImage{Source: source, MIME: mime, Data: data, RawSize: int64(len(data))}
	if mime == "image/gif" || vision.IsGIF(data) {
		png, err := p.firstFrame(data)
		if err != nil {
			p.logger.Warn("gif conversion failed, sending original",
				zap.String("source", source),
				zap.Error(err))
			img.MIME = "image/gif"
			return img, nil
		}
		img.MIME = "image/png"
		img.Data = png
	}
	return img, nil
}
