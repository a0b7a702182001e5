package artifacts

import "context"

// Harvester copies packages produced by a build into the job workspace.
type Harvester interface {
	Harvest(ctx context.Context, request HarvestRequest) (HarvestedSet, error)
}
