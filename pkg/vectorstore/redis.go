package vectorstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/redis/go-redis/v9"
)

// Redis is a Backend implementation on top of github.com/redis/go-redis/v9.
// Each record is a hash (prefix+id) with an "emb" field (binary float32
// vector) and a "meta" field (JSON); a single set (prefix+"ids") tracks
// membership so Query can fetch a bounded working set without a SCAN.
//
// Query performs a client-side brute-force cosine scan over that working
// set — spec.md §4.3 explicitly allows "external backend may approximate".
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis wraps an existing *redis.Client. prefix namespaces all keys this
// backend writes, so one Redis instance can host multiple cognitive cores.
func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(id string) string  { return r.prefix + ":rec:" + id }
func (r *Redis) idxKey() string        { return r.prefix + ":ids" }

func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

func decodeEmbedding(buf []byte) []float32 {
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}

func (r *Redis) Upsert(ctx context.Context, id string, embedding []float32, metadata map[string]any) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("vectorstore/redis: marshal metadata: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.key(id), map[string]any{
		"emb":  encodeEmbedding(embedding),
		"meta": metaJSON,
	})
	pipe.SAdd(ctx, r.idxKey(), id)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("vectorstore/redis: upsert %s: %w", id, err)
	}
	return nil
}

func (r *Redis) Query(ctx context.Context, embedding []float32, k int) ([]Match, error) {
	ids, err := r.client.SMembers(ctx, r.idxKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("vectorstore/redis: list ids: %w", err)
	}

	type scored struct {
		Match
		sim float64
	}
	all := make([]scored, 0, len(ids))
	for _, id := range ids {
		fields, err := r.client.HGetAll(ctx, r.key(id)).Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		emb := decodeEmbedding([]byte(fields["emb"]))
		var meta map[string]any
		_ = json.Unmarshal([]byte(fields["meta"]), &meta)
		sim := cosine32(embedding, emb)
		all = append(all, scored{Match: Match{ID: id, Metadata: meta, Distance: 1 - sim}, sim: sim})
	}

	// Partial selection sort of the top-k by similarity, stopping after k
	// picks; the working set behind a single cognitive core stays small
	// (per Design Notes §9), so this is cheap enough and keeps the code
	// simple.
	for i := 0; i < len(all); i++ {
		best := i
		for j := i + 1; j < len(all); j++ {
			if all[j].sim > all[best].sim {
				best = j
			}
		}
		all[i], all[best] = all[best], all[i]
		if i+1 >= k {
			break
		}
	}
	if k > len(all) {
		k = len(all)
	}
	out := make([]Match, k)
	for i := 0; i < k; i++ {
		out[i] = all[i].Match
	}
	return out, nil
}

func (r *Redis) UpdateMetadata(ctx context.Context, id string, metadata map[string]any) error {
	existing, err := r.client.HGet(ctx, r.key(id), "meta").Result()
	merged := map[string]any{}
	if err == nil {
		_ = json.Unmarshal([]byte(existing), &merged)
	}
	for k, v := range metadata {
		merged[k] = v
	}
	metaJSON, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("vectorstore/redis: marshal metadata: %w", err)
	}
	if err := r.client.HSet(ctx, r.key(id), "meta", metaJSON).Err(); err != nil {
		return fmt.Errorf("vectorstore/redis: update metadata %s: %w", id, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, ids []string) error {
	pipe := r.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, r.key(id))
		pipe.SRem(ctx, r.idxKey(), id)
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("vectorstore/redis: delete: %w", err)
	}
	return nil
}

func (r *Redis) Count(ctx context.Context) (int, error) {
	n, err := r.client.SCard(ctx, r.idxKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("vectorstore/redis: count: %w", err)
	}
	return int(n), nil
}
