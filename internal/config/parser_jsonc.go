package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tailscale/hujson"
)

type jsoncConfig struct {
	Protocol *jsoncProtocol `json:"protocol"`
	Image    *jsoncImage    `json:"image"`
	Log      *jsoncLog      `json:"log"`
}

type jsoncProtocol struct {
	MalformedLine *string `json:"malformed_line"`
	MaxLineBytes  *int    `json:"max_line_bytes"`
}

type jsoncImage struct {
	JPEGQuality     *int    `json:"jpeg_quality"`
	PNGCompression  *string `json:"png_compression"`
	AutoOrientation *bool   `json:"auto_orientation"`
	AtomicWrite     *bool   `json:"atomic_write"`
}

type jsoncLog struct {
	Level *string `json:"level"`
	Path  *string `json:"path"`
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	payload.applyTo(&cfg)

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) {
	if p := payload.Protocol; p != nil {
		if p.MalformedLine != nil {
			cfg.Protocol.MalformedLine = MalformedLinePolicy(strings.ToLower(strings.TrimSpace(*p.MalformedLine)))
		}
		if p.MaxLineBytes != nil {
			cfg.Protocol.MaxLineBytes = *p.MaxLineBytes
		}
	}

	if img := payload.Image; img != nil {
		if img.JPEGQuality != nil {
			cfg.Image.JPEGQuality = *img.JPEGQuality
		}
		if img.PNGCompression != nil {
			cfg.Image.PNGCompression = strings.ToLower(strings.TrimSpace(*img.PNGCompression))
		}
		if img.AutoOrientation != nil {
			cfg.Image.AutoOrientation = *img.AutoOrientation
		}
		if img.AtomicWrite != nil {
			cfg.Image.AtomicWrite = *img.AtomicWrite
		}
	}

	if l := payload.Log; l != nil {
		if l.Level != nil {
			cfg.Log.Level = strings.ToLower(strings.TrimSpace(*l.Level))
		}
		if l.Path != nil {
			cfg.Log.Path = strings.TrimSpace(*l.Path)
		}
	}
}

// normalizeJSONC strips comments and trailing commas. Offsets are preserved
// so decode errors still point at the original line and column.
func normalizeJSONC(content string) (string, error) {
	standard, err := hujson.Standardize([]byte(content))
	if err != nil {
		return "", fmt.Errorf("invalid JSONC: %w", err)
	}
	return string(standard), nil
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := int(offset)
	if limit > len(content) {
		limit = len(content)
	}

	line := 1
	col := 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
