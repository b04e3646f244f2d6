package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Dead-lettered jobs live in one Redis list per source queue, newest first.
const DLQPrefix = "dlq:"

// Colas maps the short names used by the admin API to the job queues.
var Colas = map[string]string{
	JobCierre: QueueCierre,
	JobEmail:  QueueEmail,
}

var ErrColaDesconocida = errors.New("cola desconocida")

// DLQEntry is a job that exhausted its attempts, with the last failure.
type DLQEntry struct {
	OriginalQueue string          `json:"original_queue"`
	JobType       string          `json:"job_type"`
	Payload       json.RawMessage `json:"payload"`
	Reason        string          `json:"reason"`
	FailedAt      time.Time       `json:"failed_at"`
	Attempts      int             `json:"attempts"`
}

// SendToDLQ parks a failed job. Push errors are logged; the job is lost
// only if Redis is down, in which case the pool is not consuming anyway.
func SendToDLQ(ctx context.Context, rdb pusher, queue string, job Job, reason string) {
	data, err := json.Marshal(DLQEntry{
		OriginalQueue: queue,
		JobType:       job.Type,
		Payload:       job.Payload,
		Reason:        reason,
		FailedAt:      time.Now().UTC(),
		Attempts:      job.Attempts,
	})
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: failed to marshal entry")
		return
	}
	if err := rdb.LPush(ctx, DLQPrefix+queue, data).Err(); err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: push failed")
		return
	}
	log.Warn().
		Str("queue", queue).
		Str("job_type", job.Type).
		Str("reason", reason).
		Int("attempts", job.Attempts).
		Msg("dlq: job dead-lettered")
}

// listas is the part of the redis client the DLQ reads and writes with.
type listas interface {
	pusher
	LLen(ctx context.Context, key string) *redis.IntCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	RPop(ctx context.Context, key string) *redis.StringCmd
}

// DLQ lets operators inspect dead-lettered closing reports and e-mails and
// push them back once the cause (SMTP outage, full disk) is fixed.
type DLQ struct {
	rdb listas
}

func NewDLQ(rdb *redis.Client) *DLQ {
	return &DLQ{rdb: rdb}
}

// Resumen returns the number of dead-lettered jobs per short queue name.
func (q *DLQ) Resumen(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(Colas))
	for nombre, cola := range Colas {
		n, err := q.rdb.LLen(ctx, DLQPrefix+cola).Result()
		if err != nil {
			return nil, fmt.Errorf("dlq: llen %s: %w", cola, err)
		}
		out[nombre] = n
	}
	return out, nil
}

// Listar returns up to limit entries of one queue, newest first.
// Entries that no longer decode are skipped.
func (q *DLQ) Listar(ctx context.Context, nombre string, limit int) ([]DLQEntry, error) {
	cola, ok := Colas[nombre]
	if !ok {
		return nil, ErrColaDesconocida
	}
	if limit < 1 {
		limit = 20
	}
	raws, err := q.rdb.LRange(ctx, DLQPrefix+cola, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("dlq: lrange %s: %w", cola, err)
	}
	entries := make([]DLQEntry, 0, len(raws))
	for _, raw := range raws {
		var e DLQEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			log.Warn().Err(err).Str("queue", cola).Msg("dlq: undecodable entry")
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Reencolar moves up to limite of the oldest entries back to their queue with
// the attempt counter reset. It stops early when the list runs dry.
func (q *DLQ) Reencolar(ctx context.Context, nombre string, limite int) (int, error) {
	cola, ok := Colas[nombre]
	if !ok {
		return 0, ErrColaDesconocida
	}
	movidos := 0
	for movidos < limite {
		raw, err := q.rdb.RPop(ctx, DLQPrefix+cola).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return movidos, fmt.Errorf("dlq: rpop %s: %w", cola, err)
		}
		var e DLQEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			log.Warn().Err(err).Str("queue", cola).Msg("dlq: dropping undecodable entry")
			continue
		}
		if err := push(ctx, q.rdb, cola, Job{Type: e.JobType, Payload: e.Payload}); err != nil {
			// Put it back so nothing is lost.
			_ = q.rdb.LPush(ctx, DLQPrefix+cola, raw).Err()
			return movidos, fmt.Errorf("dlq: requeue %s: %w", cola, err)
		}
		movidos++
	}
	if movidos > 0 {
		log.Info().Str("queue", cola).Int("jobs", movidos).Msg("dlq: jobs re-queued")
	}
	return movidos, nil
}
