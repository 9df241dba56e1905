package segment

import "context"

// Decoder loads a uri into mono samples at the returned sample rate.
type Decoder interface {
	Decode(ctx context.Context, uri string) ([]float32, int, error)
}
