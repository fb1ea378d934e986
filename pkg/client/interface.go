package client

import (
	"context"

	"github.com/menta2k/screen-geometry/pkg/types"
)

// VisionClient is a vision-language model backend able to ground UI elements
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	Locate(ctx context.Context, model, prompt, imgB64 string) (*types.Location, error)
}
