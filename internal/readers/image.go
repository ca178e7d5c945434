package readers

import (
	"context"
	"fmt"

	"github.com/docker/go-units"

	"github.com/ChamsBouzaiene/rferag/internal/engine"
	"github.com/ChamsBouzaiene/rferag/internal/prompts"
)

var imageMediaTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
}

// ImageReader attaches the image to a vision-capable model call.
type ImageReader struct {
	Agent
	MaxBytes int64 // larger images are refused; <= 0: no cap
}

// Read implements engine.Reader.
func (r *ImageReader) Read(ctx context.Context, subPrompt, filePath string, st *engine.State) (string, error) {
	mediaType, ok := imageMediaTypes[Extension(filePath)]
	if !ok {
		return "", fmt.Errorf("unsupported image type: %s", filePath)
	}

	data, size, truncated, err := readCapped(filePath, r.MaxBytes)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if truncated {
		return "", fmt.Errorf("image %s is %s, over the %s limit",
			filePath, units.BytesSize(float64(size)), units.BytesSize(float64(r.MaxBytes)))
	}

	return r.ask(ctx, prompts.ContextFromImage, baseVars(subPrompt, filePath, st),
		engine.ImagePart{MediaType: mediaType, Data: data})
}
