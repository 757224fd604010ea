package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register gif decoding
	"image/jpeg"
	"image/png"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register webp decoding
	"golang.org/x/sync/errgroup"

	"github.com/decksmith/decksmith/pkg/config"
	"github.com/decksmith/decksmith/pkg/models"
)

var (
	// ErrUnsupportedMIME indicates a media type outside the allow-list.
	ErrUnsupportedMIME = errors.New("unsupported media type")
	// ErrTooLarge indicates a decoded payload over the size cap.
	ErrTooLarge = errors.New("media payload too large")
	// ErrBadDataURL indicates an unparseable data URL.
	ErrBadDataURL = errors.New("malformed data URL")
)

var allowedMIME = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// Processor decodes, re-encodes, and uploads a deck's inline media.
type Processor struct {
	uploader Uploader
	cfg      *config.MediaConfig
	logger   *slog.Logger
}

// NewProcessor builds a processor.
func NewProcessor(uploader Uploader, cfg *config.MediaConfig, logger *slog.Logger) *Processor {
	return &Processor{uploader: uploader, cfg: cfg, logger: logger}
}

// Result summarizes one batch.
type Result struct {
	Items     []models.MediaItem
	Processed int
	Failed    int
}

// Process handles every item concurrently in batches. Items that fail carry
// their error message in Error and keep their Data untouched; successful
// items get a durable URL and their Data cleared. The input slice is not
// mutated.
func (p *Processor) Process(ctx context.Context, deckID string, items []models.MediaItem) (*Result, error) {
	out := make([]models.MediaItem, len(items))
	copy(out, items)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.BatchSize)
	for i := range out {
		g.Go(func() error {
			p.processItem(gctx, deckID, &out[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Items: out}
	for i := range out {
		if out[i].Error != "" {
			res.Failed++
		} else if out[i].URL != "" {
			res.Processed++
		}
	}
	p.logger.Info("media batch processed",
		"deck_id", deckID, "total", len(out), "processed", res.Processed, "failed", res.Failed)
	return res, nil
}

func (p *Processor) processItem(ctx context.Context, deckID string, item *models.MediaItem) {
	if item.Processed() {
		return
	}

	start := time.Now()
	mime, payload, err := parseDataURL(item.Data)
	if err != nil {
		p.fail(item, err)
		return
	}
	if !allowedMIME[mime] {
		p.fail(item, fmt.Errorf("%w: %s", ErrUnsupportedMIME, mime))
		return
	}
	if int64(len(payload)) > p.cfg.MaxBytes {
		p.fail(item, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(payload)))
		return
	}

	encoded, outMIME, err := p.reencode(payload, mime)
	if err != nil {
		p.fail(item, fmt.Errorf("re-encode: %w", err))
		return
	}

	key := fmt.Sprintf("decks/%s/media/%s%s", deckID, item.ID, extensionFor(outMIME))
	url, err := p.uploader.Upload(ctx, key, outMIME, encoded)
	if err != nil {
		p.fail(item, fmt.Errorf("upload: %w", err))
		return
	}

	item.URL = url
	item.MIMEType = outMIME
	item.Data = ""
	item.Error = ""
	p.logger.Debug("media item processed",
		"item_id", item.ID, "mime", outMIME, "bytes", len(encoded),
		"duration_ms", time.Since(start).Milliseconds())
}

func (p *Processor) fail(item *models.MediaItem, err error) {
	item.Error = err.Error()
	p.logger.Warn("media item failed", "item_id", item.ID, "error", err)
}

// reencode decodes the image and, when its longest edge exceeds the cap,
// downscales it preserving aspect ratio. GIFs pass through untouched to
// keep animation. Output is JPEG unless the source had alpha, then PNG.
func (p *Processor) reencode(payload []byte, mime string) ([]byte, string, error) {
	if mime == "image/gif" {
		return payload, mime, nil
	}

	img, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, "", err
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := max(w, h)
	if longest > p.cfg.MaxEdge {
		scale := float64(p.cfg.MaxEdge) / float64(longest)
		dst := image.NewRGBA(image.Rect(0, 0, int(float64(w)*scale), int(float64(h)*scale)))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if hasAlpha(img) {
		if err := png.Encode(&buf, img); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/png", nil
	}
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.cfg.JPEGQuality}); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "image/jpeg", nil
}

// hasAlpha samples the image for any non-opaque pixel. Sampling a grid
// rather than every pixel keeps large uploads cheap.
func hasAlpha(img image.Image) bool {
	b := img.Bounds()
	stepX := max(b.Dx()/64, 1)
	stepY := max(b.Dy()/64, 1)
	for y := b.Min.Y; y < b.Max.Y; y += stepY {
		for x := b.Min.X; x < b.Max.X; x += stepX {
			if _, _, _, a := img.At(x, y).RGBA(); a < 0xffff {
				return true
			}
		}
	}
	return false
}

// parseDataURL splits "data:<mime>;base64,<payload>".
func parseDataURL(s string) (mime string, payload []byte, err error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, ErrBadDataURL
	}
	meta, body, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrBadDataURL
	}
	mime, _, _ = strings.Cut(meta, ";")
	mime = strings.TrimSpace(strings.ToLower(mime))
	if !strings.Contains(meta, "base64") {
		return "", nil, fmt.Errorf("%w: not base64", ErrBadDataURL)
	}
	payload, err = base64.StdEncoding.DecodeString(body)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBadDataURL, err)
	}
	return mime, payload, nil
}

func extensionFor(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ""
}
