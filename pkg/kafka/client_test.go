package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blgu-assess-go/pkg/tasks"
)

// fakeProcessor fails its first failures calls, or every call when err is set.
type fakeProcessor struct {
	err      error
	failures int
	seen     []tasks.VerdictTask
}

func (p *fakeProcessor) Process(_ context.Context, task tasks.VerdictTask) error {
	p.seen = append(p.seen, task)
	if p.err != nil {
		return p.err
	}
	if len(p.seen) <= p.failures {
		return errors.New("transient failure")
	}
	return nil
}

type memCounter struct {
	counts  map[string]int64
	err     error
	cleared []string
}

func (c *memCounter) Incr(_ context.Context, id string) (int64, error) {
	if c.err != nil {
		return 0, c.err
	}
	c.counts[id]++
	return c.counts[id], nil
}

func (c *memCounter) Clear(_ context.Context, id string) {
	c.cleared = append(c.cleared, id)
	delete(c.counts, id)
}

func message(t *testing.T, id string) []byte {
	t.Helper()
	b, err := json.Marshal(tasks.VerdictTask{EventID: id, AssessmentID: "asm-1"})
	require.NoError(t, err)
	return b
}

func TestHandleMessage(t *testing.T) {
	ctx := context.Background()
	saved := retryBackoff
	retryBackoff = time.Millisecond
	t.Cleanup(func() { retryBackoff = saved })

	t.Run("success commits and clears attempts", func(t *testing.T) {
		p := &fakeProcessor{}
		c := &memCounter{counts: map[string]int64{"e1": 2}}
		assert.True(t, handleMessage(ctx, message(t, "e1"), p, c))
		assert.Equal(t, []string{"e1"}, c.cleared)
		require.Len(t, p.seen, 1)
		assert.Equal(t, "asm-1", p.seen[0].AssessmentID)
	})

	t.Run("malformed commits without processing", func(t *testing.T) {
		p := &fakeProcessor{}
		assert.True(t, handleMessage(ctx, []byte("{"), p, &memCounter{counts: map[string]int64{}}))
		assert.Empty(t, p.seen)
	})

	t.Run("transient failures are retried in place", func(t *testing.T) {
		p := &fakeProcessor{failures: 2}
		c := &memCounter{counts: map[string]int64{}}
		assert.True(t, handleMessage(ctx, message(t, "e2"), p, c))
		assert.Len(t, p.seen, 3)
		assert.Equal(t, []string{"e2"}, c.cleared)
		assert.Empty(t, c.counts)
	})

	t.Run("gives up after the third attempt", func(t *testing.T) {
		p := &fakeProcessor{err: errors.New("db down")}
		c := &memCounter{counts: map[string]int64{}}
		assert.True(t, handleMessage(ctx, message(t, "e3"), p, c))
		assert.Len(t, p.seen, maxAttempts)
		assert.Empty(t, c.cleared)
	})

	t.Run("attempts carry over from an earlier run", func(t *testing.T) {
		p := &fakeProcessor{err: errors.New("db down")}
		c := &memCounter{counts: map[string]int64{"e4": 2}}
		assert.True(t, handleMessage(ctx, message(t, "e4"), p, c))
		assert.Len(t, p.seen, 1)
	})

	t.Run("counter failure falls back to a local count", func(t *testing.T) {
		p := &fakeProcessor{err: errors.New("db down")}
		c := &memCounter{counts: map[string]int64{}, err: errors.New("redis down")}
		assert.True(t, handleMessage(ctx, message(t, "e5"), p, c))
		assert.Len(t, p.seen, maxAttempts)
	})

	t.Run("cancellation mid-retry leaves message uncommitted", func(t *testing.T) {
		retryBackoff = time.Hour
		cctx, cancel := context.WithCancel(ctx)
		p := &fakeProcessor{err: errors.New("db down")}
		c := &memCounter{counts: map[string]int64{}}
		time.AfterFunc(10*time.Millisecond, cancel)
		assert.False(t, handleMessage(cctx, message(t, "e6"), p, c))
		assert.Len(t, p.seen, 1)
	})
}

func TestPublishVerdictWithoutProducer(t *testing.T) {
	producer = nil
	err := Publisher{}.PublishVerdict(context.Background(), tasks.VerdictTask{EventID: "x"})
	assert.Error(t, err)
}
