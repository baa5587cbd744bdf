package queue

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopLogger struct{}

func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Warn(string, ...interface{})  {}

type memProcessor struct {
	emitted []string
}

func (p *memProcessor) Emit(_ context.Context, documentID string) error {
	p.emitted = append(p.emitted, documentID)
	return nil
}

func TestEnqueueWithoutRedisFallsBackToSync(t *testing.T) {
	processor := &memProcessor{}
	dispatcher := NewDispatcher(nil, processor, noopLogger{})

	require.NoError(t, dispatcher.EnqueueEmission(context.Background(), "doc-1"))

	assert.Equal(t, []string{"doc-1"}, processor.emitted)
}

func TestEnqueueWithUnreachableRedisFallsBackToSync(t *testing.T) {
	processor := &memProcessor{}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()
	dispatcher := NewDispatcher(client, processor, noopLogger{})

	require.NoError(t, dispatcher.EnqueueEmission(context.Background(), "doc-1"))

	assert.Equal(t, []string{"doc-1"}, processor.emitted)
}

func TestConsumeRequiresRedis(t *testing.T) {
	dispatcher := NewDispatcher(nil, &memProcessor{}, noopLogger{})

	err := dispatcher.Consume(context.Background())
	assert.Error(t, err)
}
