package store

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Capabilities describes which Redis Stack modules the connected server
// offers. Probed once at startup and injected into each store; never
// re-checked per call.
type Capabilities struct {
	TimeSeries bool `json:"timeseries"`
	Search     bool `json:"search"`
	Bloom      bool `json:"bloom"`
}

// probe issues one cheap command per module and classifies the reply.
// A missing module answers "unknown command"; anything else (including
// key-level errors) proves the command family exists.
func probe(ctx context.Context, rdb *redis.Client) Capabilities {
	return Capabilities{
		Bloom:      commandKnown(rdb.Do(ctx, "BF.EXISTS", "rediguard:probe", "x").Err()),
		TimeSeries: commandKnown(rdb.Do(ctx, "TS.INFO", "rediguard:probe").Err()),
		Search:     commandKnown(rdb.Do(ctx, "FT._LIST").Err()),
	}
}

func commandKnown(err error) bool {
	if err == nil {
		return true
	}
	return !containsFold(err.Error(), "unknown command")
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}
