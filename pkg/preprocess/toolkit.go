package preprocess

import "context"

// Image is a raster owned by a Toolkit. Native backends free memory in Close.
type Image interface {
	Size() (width, height int)
	Close() error
}

// PolarLine is a straight line in Hough normal form:
// x*cos(Theta) + y*sin(Theta) = Rho, with Theta in radians.
type PolarLine struct {
	Rho   float64
	Theta float64
}

// Toolkit provides the pixel-level primitives the cleaning pipeline is built
// from. Every operation returns a new Image and leaves its input untouched.
type Toolkit interface {
	Load(path string) (Image, error)
	Save(path string, img Image) error

	Grayscale(img Image) (Image, error)
	// Edges returns a binary edge map suitable for HoughLines.
	Edges(img Image) (Image, error)
	// HoughLines returns detected lines, strongest first.
	HoughLines(edges Image) ([]PolarLine, error)
	// Rotate turns the image counter-clockwise by angle degrees about its
	// center, using cubic interpolation and replicating edge pixels.
	Rotate(img Image, angle float64) (Image, error)
	Denoise(img Image) (Image, error)
	Binarize(img Image) (Image, error)
	MorphClose(img Image) (Image, error)
}

// Rasterizer renders the pages of a PDF into image files inside outDir and
// returns their paths in page order.
type Rasterizer interface {
	Render(ctx context.Context, pdfPath string, dpi int, outDir string) ([]string, error)
}
