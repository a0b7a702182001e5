package build

import "context"

// Reclaimer removes a branch scratch root and verifies it is gone.
type Reclaimer interface {
	Reclaim(ctx context.Context, path string) error
}
