package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ajitpdevops/rediguard/internal/domain/model"
)

const (
	embeddingPrefix = "embeddings:"
	recentKey       = "embeddings_recent"
	lastKeyPrefix   = "embedding_last:"
	searchIdxName   = "embeddings_idx"

	// recentWindow caps how many recent embeddings the fallback scans.
	recentWindow = 100
)

// SimilarityIndex stores behavior embeddings and answers nearest-neighbor
// queries by cosine distance. Neighbors are ordered by ascending distance
// with ties broken newest first.
type SimilarityIndex interface {
	Put(ctx context.Context, userID string, ts int64, vec []float32) (key string, err error)
	Nearest(ctx context.Context, vec []float32, k int) ([]model.Neighbor, error)
	LatestFor(ctx context.Context, userID string) ([]float32, error)
	Ensure(ctx context.Context) error
}

// NewSimilarityIndex selects the backend from the probed capabilities.
func NewSimilarityIndex(c *Client, dim int) SimilarityIndex {
	if dim <= 0 {
		dim = 128
	}
	if c.Capabilities().Search {
		return &searchSimilarity{rdb: c.Redis(), dim: dim}
	}
	return &scanSimilarity{rdb: c.Redis(), dim: dim}
}

func embeddingKey(userID string, ts int64) string {
	return fmt.Sprintf("%s%s:%d", embeddingPrefix, userID, ts)
}

// encodeVector packs a float32 vector as a little-endian byte blob, the
// layout the vector index expects.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(blob []byte) []float32 {
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}

// putEmbedding writes the hash document and bookkeeping shared by both
// backends: a capped recency list and a per-user latest pointer.
func putEmbedding(ctx context.Context, rdb *redis.Client, userID string, ts int64, vec []float32) (string, error) {
	key := embeddingKey(userID, ts)
	pipe := rdb.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"user_id":   userID,
		"timestamp": ts,
		"embedding": encodeVector(vec),
	})
	pipe.LPush(ctx, recentKey, key)
	pipe.LTrim(ctx, recentKey, 0, recentWindow-1)
	pipe.Set(ctx, lastKeyPrefix+userID, key, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", storeErr("similarity", "put", err)
	}
	return key, nil
}

func latestEmbedding(ctx context.Context, rdb *redis.Client, userID string) ([]float32, error) {
	key, err := rdb.Get(ctx, lastKeyPrefix+userID).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("similarity", "latest", err)
	}
	blob, err := rdb.HGet(ctx, key, "embedding").Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storeErr("similarity", "latest", err)
	}
	return decodeVector([]byte(blob)), nil
}

// searchSimilarity runs KNN queries against an FT vector index.
type searchSimilarity struct {
	rdb *redis.Client
	dim int
}

// Ensure creates the vector index over embedding hashes if absent.
func (s *searchSimilarity) Ensure(ctx context.Context) error {
	err := s.rdb.Do(ctx, "FT.CREATE", searchIdxName,
		"ON", "HASH", "PREFIX", "1", embeddingPrefix,
		"SCHEMA",
		"user_id", "TAG",
		"timestamp", "NUMERIC", "SORTABLE",
		"embedding", "VECTOR", "FLAT", "6",
		"TYPE", "FLOAT32", "DIM", s.dim, "DISTANCE_METRIC", "COSINE",
	).Err()
	if err != nil && !containsFold(err.Error(), "index already exists") {
		return fmt.Errorf("create vector index: %w", err)
	}
	return nil
}

func (s *searchSimilarity) Put(ctx context.Context, userID string, ts int64, vec []float32) (string, error) {
	defer observe("similarity", "put", time.Now())
	return putEmbedding(ctx, s.rdb, userID, ts, vec)
}

func (s *searchSimilarity) LatestFor(ctx context.Context, userID string) ([]float32, error) {
	return latestEmbedding(ctx, s.rdb, userID)
}

func (s *searchSimilarity) Nearest(ctx context.Context, vec []float32, k int) ([]model.Neighbor, error) {
	defer observe("similarity", "nearest", time.Now())
	if k <= 0 {
		return nil, nil
	}
	query := fmt.Sprintf("*=>[KNN %d @embedding $vec AS distance]", k)
	raw, err := s.rdb.Do(ctx, "FT.SEARCH", searchIdxName, query,
		"PARAMS", "2", "vec", encodeVector(vec),
		"SORTBY", "distance",
		"RETURN", "3", "user_id", "timestamp", "distance",
		"DIALECT", "2",
	).Slice()
	if err != nil {
		return nil, storeErr("similarity", "nearest", err)
	}
	return parseKNNReply(raw)
}

// parseKNNReply walks the RESP2 FT.SEARCH reply shape:
// [total, key1, [field, value, ...], key2, [...], ...].
func parseKNNReply(raw []interface{}) ([]model.Neighbor, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out []model.Neighbor
	for i := 1; i+1 < len(raw); i += 2 {
		fields, ok := raw[i+1].([]interface{})
		if !ok {
			continue
		}
		var n model.Neighbor
		for j := 0; j+1 < len(fields); j += 2 {
			name, _ := fields[j].(string)
			value, _ := fields[j+1].(string)
			switch name {
			case "user_id":
				n.UserID = value
			case "timestamp":
				if ts, err := strconv.ParseInt(value, 10, 64); err == nil {
					n.Timestamp = ts
				}
			case "distance":
				if d, err := strconv.ParseFloat(value, 64); err == nil {
					n.Distance = d
				}
			}
		}
		if n.UserID != "" {
			out = append(out, n)
		}
	}
	return out, nil
}

// scanSimilarity is the fallback: exact cosine distance over the capped
// recency list.
type scanSimilarity struct {
	rdb *redis.Client
	dim int
}

func (s *scanSimilarity) Ensure(context.Context) error { return nil }

func (s *scanSimilarity) Put(ctx context.Context, userID string, ts int64, vec []float32) (string, error) {
	defer observe("similarity", "put", time.Now())
	return putEmbedding(ctx, s.rdb, userID, ts, vec)
}

func (s *scanSimilarity) LatestFor(ctx context.Context, userID string) ([]float32, error) {
	return latestEmbedding(ctx, s.rdb, userID)
}

func (s *scanSimilarity) Nearest(ctx context.Context, vec []float32, k int) ([]model.Neighbor, error) {
	defer observe("similarity", "nearest", time.Now())
	if k <= 0 {
		return nil, nil
	}
	keys, err := s.rdb.LRange(ctx, recentKey, 0, recentWindow-1).Result()
	if err != nil {
		return nil, storeErr("similarity", "nearest", err)
	}
	var out []model.Neighbor
	for _, key := range keys {
		doc, err := s.rdb.HGetAll(ctx, key).Result()
		if err != nil || len(doc) == 0 {
			continue
		}
		candidate := decodeVector([]byte(doc["embedding"]))
		ts, _ := strconv.ParseInt(doc["timestamp"], 10, 64)
		out = append(out, model.Neighbor{
			UserID:    doc["user_id"],
			Timestamp: ts,
			Distance:  cosineDistance(vec, candidate),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Timestamp > out[j].Timestamp
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// cosineDistance is 1 - cos(a,b); mismatched or zero vectors are treated
// as maximally distant.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
