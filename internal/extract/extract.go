// Package extract talks to the face-embedding service. The model itself is a
// black box: image bytes in, zero or more (bounding box, encoding) pairs out.
package extract

import "context"

// Detection is one face found in a frame.
type Detection struct {
	BBox      []float64 // [x1, y1, x2, y2] in pixel coordinates
	Embedding []float32
}

// Extractor produces face encodings from an image. Zero detections is a
// normal result (nobody in frame), not an error; errors mean the extraction
// itself failed (malformed image, service down).
type Extractor interface {
	Extract(ctx context.Context, image []byte) ([]Detection, error)
}
