package config

import (
	"fmt"
	"strings"
)

const minLineBytes = 1024

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	switch cfg.Protocol.MalformedLine {
	case MalformedLineReport, MalformedLineExit:
	default:
		return nil, fmt.Errorf("protocol.malformed_line must be one of: report, exit")
	}
	if cfg.Protocol.MaxLineBytes < minLineBytes {
		return nil, fmt.Errorf("protocol.max_line_bytes must be >= %d", minLineBytes)
	}

	if cfg.Image.JPEGQuality < 1 || cfg.Image.JPEGQuality > 100 {
		return nil, fmt.Errorf("image.jpeg_quality must be between 1 and 100")
	}
	if _, ok := pngCompressionLevels[cfg.Image.PNGCompression]; !ok {
		return nil, fmt.Errorf("image.png_compression must be one of: default, none, speed, best")
	}
	if !cfg.Image.AtomicWrite {
		warnings = append(warnings, Warning{Message: "image.atomic_write=false; a failed encode can leave a partial output file"})
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}

	return warnings, nil
}
