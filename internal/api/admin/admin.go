// Package admin exposes the operational API: directory cache inspection
// and invalidation.
package admin

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/planwatch/edge/internal/plans"
)

// DirectoryAdmin is the surface the admin API needs from the cached
// directory.
type DirectoryAdmin interface {
	Purge(ctx context.Context, hostname string) error
	Stats() plans.CacheStats
}

type CacheStatsOutput struct {
	Body plans.CacheStats
}

type PurgeCacheInput struct {
	Hostname string `path:"hostname" minLength:"1" maxLength:"253" doc:"Hostname whose directory entry to drop"`
}

type PurgeCacheOutput struct {
	Body struct {
		Purged string `json:"purged" doc:"Hostname that was purged"`
	}
}

// Register wires the admin operations onto api.
func Register(api huma.API, dir DirectoryAdmin) {
	huma.Register(api, huma.Operation{
		OperationID: "cache-stats",
		Method:      http.MethodGet,
		Path:        "/cache/stats",
		Summary:     "Directory cache statistics",
		Tags:        []string{"Cache"},
	}, func(_ context.Context, _ *struct{}) (*CacheStatsOutput, error) {
		return &CacheStatsOutput{Body: dir.Stats()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "purge-cache",
		Method:      http.MethodDelete,
		Path:        "/cache/{hostname}",
		Summary:     "Purge a hostname's directory cache entry",
		Tags:        []string{"Cache"},
	}, func(ctx context.Context, input *PurgeCacheInput) (*PurgeCacheOutput, error) {
		if err := dir.Purge(ctx, input.Hostname); err != nil {
			return nil, huma.Error500InternalServerError("failed to purge cache entry", err)
		}
		out := &PurgeCacheOutput{}
		out.Body.Purged = input.Hostname
		return out, nil
	})
}
