package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePusher struct {
	mu     sync.Mutex
	listas map[string][]string
}

func newFakePusher() *fakePusher { return &fakePusher{listas: map[string][]string{}} }

func (f *fakePusher) LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range values {
		switch b := v.(type) {
		case []byte:
			f.listas[key] = append([]string{string(b)}, f.listas[key]...)
		case string:
			f.listas[key] = append([]string{b}, f.listas[key]...)
		}
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(f.listas[key])))
	return cmd
}

// pop takes the oldest element, the way BRPOP does.
func (f *fakePusher) pop(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.listas[key]
	if len(l) == 0 {
		return "", false
	}
	last := l[len(l)-1]
	f.listas[key] = l[:len(l)-1]
	return last, true
}

func (f *fakePusher) len(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listas[key])
}

func TestDispatcher_EncolaCierre(t *testing.T) {
	p := newFakePusher()
	d := &Dispatcher{rdb: p}

	require.NoError(t, d.EnqueueCierre(context.Background(), CierreJobPayload{SesionCajaID: "abc"}))

	raw, ok := p.pop(QueueCierre)
	require.True(t, ok)
	var job Job
	require.NoError(t, json.Unmarshal([]byte(raw), &job))
	assert.Equal(t, JobCierre, job.Type)
	assert.Equal(t, 0, job.Attempts)
	assert.JSONEq(t, `{"sesion_caja_id":"abc"}`, string(job.Payload))
}

func TestProcessJob_Exito(t *testing.T) {
	p := newFakePusher()
	var got json.RawMessage
	handlers := map[string]Handler{JobEmail: func(_ context.Context, payload json.RawMessage) error {
		got = payload
		return nil
	}}

	processJob(context.Background(), p, handlers, QueueEmail, `{"type":"email","payload":{"to_email":"a@b.c"}}`)

	assert.JSONEq(t, `{"to_email":"a@b.c"}`, string(got))
	assert.Equal(t, 0, p.len(QueueEmail))
	assert.Equal(t, 0, p.len(DLQPrefix+QueueEmail))
}

func TestProcessJob_ReintentaYLuegoDLQ(t *testing.T) {
	p := newFakePusher()
	calls := 0
	handlers := map[string]Handler{JobCierre: func(context.Context, json.RawMessage) error {
		calls++
		return errors.New("smtp down")
	}}
	ctx := context.Background()
	d := &Dispatcher{rdb: p}
	require.NoError(t, d.EnqueueCierre(ctx, CierreJobPayload{SesionCajaID: "x"}))

	for {
		raw, ok := p.pop(QueueCierre)
		if !ok {
			break
		}
		processJob(ctx, p, handlers, QueueCierre, raw)
	}

	assert.Equal(t, MaxAttempts, calls)
	raw, ok := p.pop(DLQPrefix + QueueCierre)
	require.True(t, ok)
	var entry DLQEntry
	require.NoError(t, json.Unmarshal([]byte(raw), &entry))
	assert.Equal(t, QueueCierre, entry.OriginalQueue)
	assert.Equal(t, JobCierre, entry.JobType)
	assert.Equal(t, "smtp down", entry.Reason)
	assert.Equal(t, MaxAttempts, entry.Attempts)
}

func TestProcessJob_SinHandlerVaALaDLQ(t *testing.T) {
	p := newFakePusher()

	processJob(context.Background(), p, map[string]Handler{}, QueueEmail, `{"type":"desconocido","payload":{}}`)

	assert.Equal(t, 1, p.len(DLQPrefix+QueueEmail))
}

func TestProcessJob_PanicNoMataAlWorker(t *testing.T) {
	p := newFakePusher()
	handlers := map[string]Handler{JobEmail: func(context.Context, json.RawMessage) error {
		panic("nil map")
	}}

	assert.NotPanics(t, func() {
		processJob(context.Background(), p, handlers, QueueEmail, `{"type":"email","payload":{}}`)
	})

	raw, ok := p.pop(QueueEmail)
	require.True(t, ok, "re-queued")
	var job Job
	require.NoError(t, json.Unmarshal([]byte(raw), &job))
	assert.Equal(t, 1, job.Attempts)
}

func TestProcessJob_JSONInvalidoSeDescarta(t *testing.T) {
	p := newFakePusher()

	processJob(context.Background(), p, map[string]Handler{}, QueueEmail, `{no`)

	assert.Equal(t, 0, p.len(QueueEmail))
	assert.Equal(t, 0, p.len(DLQPrefix+QueueEmail))
}
