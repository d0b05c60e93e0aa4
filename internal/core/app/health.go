package app

import (
	"context"

	"chunkmap/internal/shared/observability"
)

// Health reports "starting" until the first run completes.
func (a *App) Health(ctx context.Context) observability.HealthStatus {
	res, ok := a.Last()
	if !ok {
		return observability.HealthStatus{Status: "starting"}
	}
	chunkCount, _, _ := res.Counts()
	return observability.HealthStatus{
		Status:    "up",
		LastRunID: res.RunID,
		Chunks:    chunkCount,
		Calls:     len(res.Calls),
	}
}
