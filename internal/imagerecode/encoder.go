package imagerecode

// GrayImage is a single-channel 8-bit luma image, row-major with stride
// equal to Width (no padding), matching the teacher's GrayImage encode path.
type GrayImage struct {
	Width, Height int
	Pix           []byte
}

// GrayAlphaImage holds interleaved luma/alpha bytes ([L, A, L, A, ...]),
// matching the teacher's GrayAlphaImage encode path.
type GrayAlphaImage struct {
	Width, Height int
	Pix           []byte
}

// ImageHint mirrors libwebp's WebPImageHint enum values the config cares
// about.
type ImageHint int

const (
	HintDefault ImageHint = iota
	HintPicture
	HintPhoto
	HintGraph
)

// Options mirrors the fixed WebPConfig knobs the teacher tunes for text-
// heavy, already-downscaled, already-grayscale proxy traffic.
type Options struct {
	Method           int
	Pass             int
	ThreadLevel      int
	LowMemory        bool
	Quality          float64
	ImageHint        ImageHint
	SNSStrength      int
	Segments         int
	UseSharpYUV      bool
	FilterStrength   int
	FilterSharpness  int
	FilterType       int
	AlphaQuality     int
	AlphaCompression bool
	AlphaFiltering   int
	Preprocessing    int
	Exact            bool
}

// defaultOptions reproduces the teacher's single lazily-initialized
// WebPConfig verbatim.
func defaultOptions() Options {
	return Options{
		Method:           3,
		Pass:             1,
		ThreadLevel:      0,
		LowMemory:        true,
		Quality:          10.0,
		ImageHint:        HintGraph,
		SNSStrength:      60,
		Segments:         4,
		UseSharpYUV:      true,
		FilterStrength:   25,
		FilterSharpness:  7,
		FilterType:       1,
		AlphaQuality:     1,
		AlphaCompression: true,
		AlphaFiltering:   0,
		Preprocessing:    0,
		Exact:            false,
	}
}

// Encoder is the external WebP-encoding collaborator (spec §4.G's final
// step). libwebp has no pure-Go binding in the retrieval pack, so the
// actual codec call is modeled the same way certsource models CA/TLS
// bootstrap: as an interface a concrete cgo-backed implementation is wired
// into at process startup, keeping this package free of cgo.
type Encoder interface {
	EncodeGray(img *GrayImage, opts Options) ([]byte, error)
	EncodeGrayAlpha(img *GrayAlphaImage, opts Options) ([]byte, error)
}
