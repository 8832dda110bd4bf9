package evidence

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/spec-kit/field-audit-service/internal/config"
	"github.com/spec-kit/field-audit-service/internal/observability"
)

var errNotJPEG = errors.New("not a jpeg image")

// Compressor recompresses large JPEG evidence at a size-dependent quality.
type Compressor struct {
	minBytes int64
	tiers    []config.QualityTier
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewCompressor builds a compressor from evidence configuration.
func NewCompressor(cfg config.EvidenceConfig, logger *zap.Logger, metrics *observability.Metrics) *Compressor {
	if logger == nil {
		logger = zap.NewNop()
	}
	tiers := cfg.QualityTiers
	if len(tiers) == 0 {
		tiers = config.DefaultQualityTiers()
	}
	return &Compressor{minBytes: cfg.CompressMinBytes, tiers: tiers, logger: logger, metrics: metrics}
}

// QualityFor returns the JPEG quality for a blob of size bytes, or false when
// the blob is small enough to keep as is.
func (c *Compressor) QualityFor(size int64) (int, bool) {
	if size <= c.minBytes {
		return 0, false
	}
	for _, tier := range c.tiers {
		if tier.MaxBytes == 0 || size <= tier.MaxBytes {
			return tier.Quality, true
		}
	}
	return 0, false
}

// CompressFile recompresses name in place. Failures are logged and the
// original blob is kept.
func (c *Compressor) CompressFile(fs afero.Fs, name string) {
	info, err := fs.Stat(name)
	if err != nil {
		c.logger.Warn("evidence stat failed", zap.String("blob", name), zap.Error(err))
		c.metrics.RecordCompression("error")
		return
	}
	quality, ok := c.QualityFor(info.Size())
	if !ok {
		return
	}

	data, err := afero.ReadFile(fs, name)
	if err != nil {
		c.logger.Warn("evidence read failed", zap.String("blob", name), zap.Error(err))
		c.metrics.RecordCompression("error")
		return
	}
	out, err := Recompress(data, quality)
	if err != nil {
		if errors.Is(err, errNotJPEG) {
			c.metrics.RecordCompression("skipped")
			c.logger.Debug("evidence compression skipped", zap.String("blob", name), zap.Error(err))
			return
		}
		c.logger.Warn("evidence compression failed", zap.String("blob", name), zap.Error(err))
		c.metrics.RecordCompression("error")
		return
	}
	if len(out) >= len(data) {
		c.metrics.RecordCompression("skipped")
		return
	}

	tmp := name + ".tmp"
	if err := afero.WriteFile(fs, tmp, out, 0o644); err != nil {
		_ = fs.Remove(tmp)
		c.logger.Warn("evidence compression write failed", zap.String("blob", name), zap.Error(err))
		c.metrics.RecordCompression("error")
		return
	}
	if err := fs.Rename(tmp, name); err != nil {
		_ = fs.Remove(tmp)
		c.logger.Warn("evidence compression swap failed", zap.String("blob", name), zap.Error(err))
		c.metrics.RecordCompression("error")
		return
	}
	c.metrics.RecordCompression("ok")
	c.logger.Info("evidence compressed",
		zap.String("blob", name),
		zap.Int("quality", quality),
		zap.Int("bytes_before", len(data)),
		zap.Int("bytes_after", len(out)))
}

// Recompress decodes a JPEG, applies its EXIF orientation and re-encodes it.
func Recompress(data []byte, quality int) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if format != "jpeg" {
		return nil, errNotJPEG
	}
	img = orient(img, exifOrientation(data))

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}

func exifOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return v
}

// orient bakes the EXIF orientation into the pixels, since re-encoding drops
// the EXIF block.
func orient(img image.Image, orientation int) image.Image {
	if orientation < 2 || orientation > 8 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	src := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(src, src.Bounds(), img, b.Min, draw.Src)

	dw, dh := w, h
	if orientation >= 5 {
		dw, dh = h, w
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var dx, dy int
			switch orientation {
			case 2:
				dx, dy = w-1-x, y
			case 3:
				dx, dy = w-1-x, h-1-y
			case 4:
				dx, dy = x, h-1-y
			case 5:
				dx, dy = y, x
			case 6:
				dx, dy = h-1-y, x
			case 7:
				dx, dy = h-1-y, w-1-x
			case 8:
				dx, dy = y, w-1-x
			}
			dst.SetRGBA(dx, dy, src.RGBAAt(x, y))
		}
	}
	return dst
}
