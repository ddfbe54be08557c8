// Package feature turns login events into fixed-length numeric vectors
// for anomaly scoring and embedding generation.
package feature

import (
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"github.com/ajitpdevops/rediguard/internal/domain/model"
)

// Size is the fixed feature vector length.
const Size = 16

// locationBuckets bounds the location hash feature.
const locationBuckets = 1000

// History carries the optional per-user historical context slots.
type History struct {
	LoginFrequency     float64 // logins per observation window
	UniqueIPs          float64 // distinct source addresses seen
	UniqueLocations    float64 // distinct locations seen
	AvgIntervalSeconds float64 // average time between logins
}

// Extractor is pure and deterministic; Extract never fails.
type Extractor struct{}

// NewExtractor creates a feature extractor.
func NewExtractor() *Extractor { return &Extractor{} }

// Extract builds the 16-slot feature vector:
// hour, weekday, day-of-month, first two IP octets, location hash bucket,
// four historical slots, zero-padded to Size. Malformed IP octets degrade
// to 0 rather than erroring; a nil history yields zeros in its slots.
func (x *Extractor) Extract(event model.LoginEvent, history *History) []float64 {
	features := make([]float64, 0, Size)

	t := time.Unix(event.Timestamp, 0).UTC()
	features = append(features,
		float64(t.Hour()),
		float64(t.Weekday()),
		float64(t.Day()),
	)

	o1, o2 := ipOctets(event.IP)
	features = append(features, o1, o2)

	features = append(features, float64(locationBucket(event.Location)))

	if history != nil {
		features = append(features,
			history.LoginFrequency,
			history.UniqueIPs,
			history.UniqueLocations,
			history.AvgIntervalSeconds,
		)
	} else {
		features = append(features, 0, 0, 0, 0)
	}

	for len(features) < Size {
		features = append(features, 0)
	}
	return features[:Size]
}

// ipOctets parses the first two octets of a dotted-quad address.
// Anything malformed degrades to 0.
func ipOctets(ip string) (float64, float64) {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return 0, 0
	}
	return octet(parts[0]), octet(parts[1])
}

func octet(s string) float64 {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 255 {
		return 0
	}
	return float64(n)
}

// locationBucket hashes the location string into a stable bucket.
// FNV-1a keeps this deterministic across processes, unlike runtime
// string hashing.
func locationBucket(location string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(location))
	return h.Sum32() % locationBuckets
}
