package overzoom

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"strings"

	_ "image/gif"

	"github.com/jaennil/guide_helper/backend/overzoom/internal/tile"
	xdraw "golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MemCap bounds the intermediate bitmap at MemCap*tileSize pixels per side,
// however many zoom levels separate source and request.
const MemCap = 8

// MaxTileSize is the largest output tile size a provider may configure.
const MaxTileSize = 1024

// MaxScaleBytes bounds the RGBA intermediate bitmap. Large tile sizes get a
// smaller upscale factor than MemCap so one request stays inside it.
const MaxScaleBytes = 64 << 20

// maxZoomDelta keeps 1<<delta inside an int32 relation.
const maxZoomDelta = 30

type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", s)
	}
}

type Options struct {
	TileSize int
	Format   Format
	// Quality is the JPEG quality, 1..100. Zero means 100.
	Quality int
	// MaxSourcePixels rejects ancestor images with more pixels before a
	// full decode. Zero disables the check.
	MaxSourcePixels int
}

// Geometry describes which part of an ancestor covers a requested tile.
type Geometry struct {
	Relation  int
	Crop      image.Rectangle
	ScaleSize int
}

// ComputeGeometry returns the crop square inside the ancestor tile and the
// size it is scaled to before the final reduction to tileSize.
func ComputeGeometry(source, requested tile.Coordinate, tileSize int) (Geometry, error) {
	delta := requested.Z - source.Z
	if delta <= 0 {
		return Geometry{}, fmt.Errorf("source %s is not an ancestor of %s", source, requested)
	}
	if delta > maxZoomDelta {
		return Geometry{}, fmt.Errorf("%w: zoom delta %d", ErrCropUnderflow, delta)
	}

	if rgbaBytes(tileSize) > MaxScaleBytes {
		return Geometry{}, fmt.Errorf("%w: tile size %d exceeds scale budget", ErrDecode, tileSize)
	}

	relation := 1 << delta
	cropSize := tileSize / relation
	if cropSize == 0 {
		return Geometry{}, fmt.Errorf("%w: tile size %d, relation %d", ErrCropUnderflow, tileSize, relation)
	}

	cropX := (requested.X % relation) * cropSize
	cropY := (requested.Y % relation) * cropSize

	factor := min(relation, MemCap)
	for factor > 1 && rgbaBytes(tileSize*factor) > MaxScaleBytes {
		factor /= 2
	}

	return Geometry{
		Relation:  relation,
		Crop:      image.Rect(cropX, cropY, cropX+cropSize, cropY+cropSize),
		ScaleSize: tileSize * factor,
	}, nil
}

func rgbaBytes(side int) int64 {
	return int64(side) * int64(side) * 4
}

// Reconstruct cuts the region of requested out of the encoded ancestor image
// and returns it re-encoded at exactly opts.TileSize pixels square.
func Reconstruct(src []byte, source, requested tile.Coordinate, opts Options) ([]byte, error) {
	geom, err := ComputeGeometry(source, requested, opts.TileSize)
	if err != nil {
		return nil, err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, source, err)
	}
	if opts.MaxSourcePixels > 0 && cfg.Width*cfg.Height > opts.MaxSourcePixels {
		return nil, fmt.Errorf("%w: %s: %dx%d exceeds pixel limit", ErrDecode, source, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, source, err)
	}

	crop := geom.Crop.Add(img.Bounds().Min)
	if !crop.In(img.Bounds()) {
		return nil, fmt.Errorf("%w: %s: crop %v outside image bounds %v", ErrDecode, source, crop, img.Bounds())
	}

	scaled := image.NewRGBA(image.Rect(0, 0, geom.ScaleSize, geom.ScaleSize))
	xdraw.BiLinear.Scale(scaled, scaled.Bounds(), img, crop, draw.Src, nil)

	out := scaled
	if geom.ScaleSize != opts.TileSize {
		out = image.NewRGBA(image.Rect(0, 0, opts.TileSize, opts.TileSize))
		xdraw.CatmullRom.Scale(out, out.Bounds(), scaled, scaled.Bounds(), draw.Src, nil)
	}

	return encode(out, opts)
}

func encode(img image.Image, opts Options) ([]byte, error) {
	var buf bytes.Buffer

	switch opts.Format {
	case FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncode, err)
		}
	case FormatJPEG, "":
		quality := opts.Quality
		if quality <= 0 || quality > 100 {
			quality = 100
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncode, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrEncode, opts.Format)
	}

	return buf.Bytes(), nil
}
