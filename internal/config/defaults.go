package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Protocol: ProtocolConfig{
			MalformedLine: MalformedLineReport,
			MaxLineBytes:  16 << 20,
		},
		Image: ImageConfig{
			JPEGQuality:     95,
			PNGCompression:  "default",
			AutoOrientation: true,
			AtomicWrite:     true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
