package research

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/stancedb/internal/llm"
)

type fakeProvider struct {
	reply string
	err   error
	block bool
	calls atomic.Int32
	last  llm.CompletionRequest
}

func (p *fakeProvider) Name() string                     { return "fake" }
func (p *fakeProvider) IsAvailable(context.Context) bool { return true }

func (p *fakeProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.calls.Add(1)
	p.last = req
	if p.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if p.err != nil {
		return nil, p.err
	}
	return &llm.CompletionResponse{Content: p.reply, TokensUsed: 42}, nil
}

type recordingLimiter struct {
	keys []string
	err  error
}

func (l *recordingLimiter) Wait(_ context.Context, key string) error {
	l.keys = append(l.keys, key)
	return l.err
}

func TestOracle_NotConfigured(t *testing.T) {
	_, err := NewOracle(nil).Research(context.Background(), "Anyone")
	assert.ErrorIs(t, err, ErrNotConfigured)

	var o *Oracle
	assert.False(t, o.Configured())
}

func TestOracle_Success(t *testing.T) {
	p := &fakeProvider{reply: "```json\n" + validReply + "\n```"}
	o := NewOracle(p, WithSampling(1500, 0.2))

	res, err := o.Research(context.Background(), "  Bella Hadid ")
	require.NoError(t, err)
	assert.Equal(t, 92, res.Confidence)

	assert.Equal(t, SystemPrompt, p.last.System)
	assert.Equal(t, BuildPrompt("Bella Hadid"), p.last.Prompt)
	assert.Equal(t, 1500, p.last.MaxTokens)
	require.NotNil(t, p.last.Temperature)
	assert.InDelta(t, 0.2, *p.last.Temperature, 1e-6)
}

func TestOracle_InvalidFormat(t *testing.T) {
	o := NewOracle(&fakeProvider{reply: "Sorry, I cannot help with that."})

	_, err := o.Research(context.Background(), "Someone")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestOracle_ProviderFailure(t *testing.T) {
	cause := errors.New("503 service unavailable")
	o := NewOracle(&fakeProvider{err: cause})

	_, err := o.Research(context.Background(), "Someone")
	assert.ErrorIs(t, err, ErrFailed)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestOracle_Timeout(t *testing.T) {
	p := &fakeProvider{block: true}
	o := NewOracle(p, WithTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := o.Research(context.Background(), "Slow Entity")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, int32(1), p.calls.Load(), "no retry")
}

func TestOracle_CallerCancelIsFailure(t *testing.T) {
	o := NewOracle(&fakeProvider{block: true})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := o.Research(ctx, "Someone")
	assert.ErrorIs(t, err, ErrFailed)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOracle_Limiter(t *testing.T) {
	l := &recordingLimiter{}
	o := NewOracle(&fakeProvider{reply: validReply}, WithLimiter(l))

	_, err := o.Research(context.Background(), "Bella Hadid")
	require.NoError(t, err)
	assert.Equal(t, []string{"fake"}, l.keys)
}

func TestOracle_LimiterError(t *testing.T) {
	p := &fakeProvider{reply: validReply}
	o := NewOracle(p, WithLimiter(&recordingLimiter{err: errors.New("rate: would exceed deadline")}))

	_, err := o.Research(context.Background(), "Bella Hadid")
	assert.ErrorIs(t, err, ErrFailed)
	assert.Equal(t, int32(0), p.calls.Load())
}

type blockingLimiter struct{}

func (blockingLimiter) Wait(ctx context.Context, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestOracle_LimiterWaitBoundedByTimeout(t *testing.T) {
	p := &fakeProvider{reply: validReply}
	o := NewOracle(p, WithLimiter(blockingLimiter{}), WithTimeout(30*time.Millisecond))

	start := time.Now()
	_, err := o.Research(context.WithoutCancel(context.Background()), "Bella Hadid")

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, int32(0), p.calls.Load())
}
