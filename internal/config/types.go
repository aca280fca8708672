// Package config resolves, parses, validates, and defaults imgworker configuration.
package config

import "image/png"

// Config is the fully materialized runtime configuration used by imgworker.
type Config struct {
	Protocol ProtocolConfig
	Image    ImageConfig
	Log      LogConfig
}

// MalformedLinePolicy selects how the command loop treats input lines that are not JSON.
type MalformedLinePolicy string

const (
	MalformedLineReport MalformedLinePolicy = "report"
	MalformedLineExit   MalformedLinePolicy = "exit"
)

// ProtocolConfig controls command loop framing and input limits.
type ProtocolConfig struct {
	MalformedLine MalformedLinePolicy
	MaxLineBytes  int
}

// ImageConfig controls decode and encode options for conversions.
type ImageConfig struct {
	JPEGQuality     int
	PNGCompression  string
	AutoOrientation bool
	AtomicWrite     bool
}

// LogConfig controls the JSONL log sink.
type LogConfig struct {
	Level string
	Path  string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

var pngCompressionLevels = map[string]png.CompressionLevel{
	"default": png.DefaultCompression,
	"none":    png.NoCompression,
	"speed":   png.BestSpeed,
	"best":    png.BestCompression,
}

// PNGCompressionLevel maps the configured name to an encoder level.
func (c ImageConfig) PNGCompressionLevel() png.CompressionLevel {
	if level, ok := pngCompressionLevels[c.PNGCompression]; ok {
		return level
	}
	return png.DefaultCompression
}
