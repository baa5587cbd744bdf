package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinvet/fiscal-engine/internal/domain/document"
)

// memCounterStore simula o contador de numeração em memória, com conflitos
// programados para exercitar o laço de repetição
type memCounterStore struct {
	mu        sync.Mutex
	counters  map[string]int64
	conflicts int
	failWith  error
}

func newMemCounterStore() *memCounterStore {
	return &memCounterStore{counters: make(map[string]int64)}
}

func (s *memCounterStore) ReserveNext(_ context.Context, emitterID string, docType document.Type, series string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != nil {
		return 0, s.failWith
	}
	if s.conflicts > 0 {
		s.conflicts--
		return 0, ErrCounterConflict
	}

	key := emitterID + "|" + string(docType) + "|" + series
	s.counters[key]++
	return s.counters[key], nil
}

func TestReserveNextSequential(t *testing.T) {
	store := newMemCounterStore()
	svc := NewNumberingService(store, noopLogger{})

	first, err := svc.ReserveNext(context.Background(), "em-1", document.TypeNFe, "1")
	require.NoError(t, err)
	second, err := svc.ReserveNext(context.Background(), "em-1", document.TypeNFe, "1")
	require.NoError(t, err)

	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)
}

func TestReserveNextIndependentKeys(t *testing.T) {
	store := newMemCounterStore()
	svc := NewNumberingService(store, noopLogger{})

	_, err := svc.ReserveNext(context.Background(), "em-1", document.TypeNFe, "1")
	require.NoError(t, err)

	other, err := svc.ReserveNext(context.Background(), "em-1", document.TypeNFSe, "1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), other)

	otherSeries, err := svc.ReserveNext(context.Background(), "em-1", document.TypeNFe, "2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), otherSeries)
}

func TestReserveNextRetriesOnConflict(t *testing.T) {
	store := newMemCounterStore()
	store.conflicts = 2
	svc := NewNumberingService(store, noopLogger{})

	number, err := svc.ReserveNext(context.Background(), "em-1", document.TypeNFe, "1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), number)
}

func TestReserveNextPropagatesOtherErrors(t *testing.T) {
	store := newMemCounterStore()
	store.failWith = errors.New("conexão perdida")
	svc := NewNumberingService(store, noopLogger{})

	_, err := svc.ReserveNext(context.Background(), "em-1", document.TypeNFe, "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "falha ao reservar número")
}
