// Package imageops performs file-to-file image conversions through the imaging library.
package imageops

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rbright/imgworker/internal/config"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported output format")
	ErrDecode            = errors.New("decode input image")
	ErrEncode            = errors.New("encode output image")
)

// Options controls decode and encode behavior.
type Options struct {
	JPEGQuality     int
	PNGCompression  png.CompressionLevel
	AutoOrientation bool
	AtomicWrite     bool
}

// DefaultOptions mirrors the usual OpenCV imwrite defaults.
func DefaultOptions() Options {
	return Options{
		JPEGQuality:     95,
		PNGCompression:  png.DefaultCompression,
		AutoOrientation: true,
		AtomicWrite:     true,
	}
}

// Converter turns images on disk into single-channel grayscale images.
type Converter struct {
	opts Options
}

func NewConverter(opts Options) *Converter {
	return &Converter{opts: opts}
}

// ToGray reads input, converts it to 8-bit gray and writes it to output in the
// format implied by output's extension.
func (c *Converter) ToGray(ctx context.Context, input, output string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	format, err := imaging.FormatFromFilename(output)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(output))
	}

	src, err := imaging.Open(input, imaging.AutoOrientation(c.opts.AutoOrientation))
	if err != nil {
		return fmt.Errorf("%w %q: %w", ErrDecode, input, err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	gray := Gray(src)
	if err := c.write(gray, output, format); err != nil {
		return fmt.Errorf("%w %q: %w", ErrEncode, output, err)
	}
	return nil
}

// Gray converts img to a single-channel image using ITU-R 601 luma weights.
// Alpha is discarded.
func Gray(img image.Image) *image.Gray {
	luma := imaging.Grayscale(img)
	bounds := luma.Bounds()
	out := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	for y := 0; y < bounds.Dy(); y++ {
		src := luma.Pix[y*luma.Stride : y*luma.Stride+bounds.Dx()*4]
		dst := out.Pix[y*out.Stride : y*out.Stride+bounds.Dx()]
		for x := range dst {
			dst[x] = src[x*4]
		}
	}
	return out
}

func (c *Converter) encodeOptions() []imaging.EncodeOption {
	return []imaging.EncodeOption{
		imaging.JPEGQuality(c.opts.JPEGQuality),
		imaging.PNGCompressionLevel(c.opts.PNGCompression),
	}
}

func (c *Converter) write(img image.Image, output string, format imaging.Format) error {
	if !c.opts.AtomicWrite {
		return imaging.Save(img, output, c.encodeOptions()...)
	}

	dir, base := filepath.Split(output)
	if dir == "" {
		dir = "."
	}
	// 0o666 under the process umask, the same mode imaging.Save creates with.
	tmpPath := filepath.Join(dir, "."+base+".tmp-"+uuid.NewString())
	tmp, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o666)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := imaging.Encode(tmp, img, format, c.encodeOptions()...); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, output); err != nil {
		return err
	}
	committed = true
	return nil
}

// OptionsFromConfig maps the image config section to converter options.
func OptionsFromConfig(cfg config.ImageConfig) Options {
	return Options{
		JPEGQuality:     cfg.JPEGQuality,
		PNGCompression:  cfg.PNGCompressionLevel(),
		AutoOrientation: cfg.AutoOrientation,
		AtomicWrite:     cfg.AtomicWrite,
	}
}
