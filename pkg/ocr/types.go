package ocr

// BBox is a token bounding box in image pixel coordinates
// with the origin in the upper-left corner of the page image.
type BBox struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Right returns the x coordinate of the right edge.
func (b BBox) Right() int { return b.Left + b.Width }

// Bottom returns the y coordinate of the bottom edge.
func (b BBox) Bottom() int { return b.Top + b.Height }

// Token is a recognized word with its position and confidence (0-100).
// Tokens are treated as immutable once produced by a Recognizer.
type Token struct {
	Text       string `json:"text"`
	BBox       BBox   `json:"bbox"`
	Confidence int    `json:"confidence"`
}

// Line is a run of tokens sharing an approximate vertical position,
// ordered left-to-right.
type Line []Token

// DefaultLineThreshold is the vertical distance in pixels within which
// tokens are considered part of the same line.
const DefaultLineThreshold = 10

// DefaultMinConfidence is the confidence floor used by Filter.
// Tokens must be strictly above it to survive.
const DefaultMinConfidence = 30
