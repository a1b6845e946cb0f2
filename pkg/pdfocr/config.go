package pdfocr

import "log/slog"

// Config holds the options for assembling a searchable archive.
type Config struct {
	Debug     bool         // Draw the text layer in red with word boxes instead of hiding it
	LayerName string       // Base name of the text layer; the page number is appended
	DPI       int          // Resolution the page images were rendered at
	Logger    *slog.Logger // slog.Default() when nil
	Font      FontConfig
}

// DefaultConfig returns a config for 300 DPI page images.
func DefaultConfig() Config {
	return Config{
		LayerName: "OCR Text",
		DPI:       300,
		Font:      DefaultFont,
	}
}

// FontConfig contains font settings for the text layer
type FontConfig struct {
	Name        string  // Font name (e.g., "Helvetica")
	Style       string  // Font style ("", "B", "I", "BI")
	Size        float64 // Default font size
	AscentRatio float64 // Vertical positioning ratio
}

// DefaultFont is Helvetica, one of the PDF core fonts, so nothing is embedded.
var DefaultFont = FontConfig{
	Name:        "Helvetica",
	Style:       "",
	Size:        10,
	AscentRatio: 0.718,
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
