package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinvet/fiscal-engine/internal/domain/document"
)

type memEnqueuer struct {
	enqueued []string
}

func (e *memEnqueuer) EnqueueEmission(_ context.Context, documentID string) error {
	e.enqueued = append(e.enqueued, documentID)
	return nil
}

func TestRetryFailedEnqueuesRecentFailures(t *testing.T) {
	f := newEmissionFixture(t, document.TypeNFe)
	require.True(t, f.doc.MarkProcessing())
	require.NoError(t, f.doc.MarkFailed("certificado expirado"))

	enqueuer := &memEnqueuer{}
	maint := NewMaintenanceService(f.docRepo, f.svc, enqueuer, noopLogger{})

	require.NoError(t, maint.RetryFailed(context.Background()))

	require.Len(t, enqueuer.enqueued, 1)
	assert.Equal(t, f.doc.ID, enqueuer.enqueued[0])

	count, err := f.docRepo.CountEvents(context.Background(), f.doc.ID, document.EventMaintenanceRetry)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRetryFailedRespectsAttemptLimit(t *testing.T) {
	f := newEmissionFixture(t, document.TypeNFe)
	require.True(t, f.doc.MarkProcessing())
	require.NoError(t, f.doc.MarkFailed("transporte indisponível"))

	enqueuer := &memEnqueuer{}
	maint := NewMaintenanceService(f.docRepo, f.svc, enqueuer, noopLogger{})

	for i := 0; i < maint.MaxRetries+2; i++ {
		require.NoError(t, maint.RetryFailed(context.Background()))
	}

	// Após esgotar o limite a varredura ignora o documento
	assert.Len(t, enqueuer.enqueued, maint.MaxRetries)
}

func TestRetryFailedIgnoresOldFailures(t *testing.T) {
	f := newEmissionFixture(t, document.TypeNFe)
	require.True(t, f.doc.MarkProcessing())
	require.NoError(t, f.doc.MarkFailed("falha antiga"))
	f.doc.UpdatedAt = time.Now().Add(-48 * time.Hour)

	enqueuer := &memEnqueuer{}
	maint := NewMaintenanceService(f.docRepo, f.svc, enqueuer, noopLogger{})

	require.NoError(t, maint.RetryFailed(context.Background()))
	assert.Empty(t, enqueuer.enqueued)
}

func TestResumeStaleRepollsOrphanedDocuments(t *testing.T) {
	f := newEmissionFixture(t, document.TypeNFSe)
	f.prov.emitResult = okResult(nfseProtocolXML)
	f.prov.queryLotResult = okResult(nfseProtocolXML)
	require.NoError(t, f.svc.Emit(context.Background(), f.doc.ID))
	require.Equal(t, document.StatusProcessing, f.doc.Status)

	// Sem atualização há mais tempo que o limiar de órfão
	f.doc.UpdatedAt = time.Now().Add(-time.Hour)
	f.prov.queryLotResult = okResult(nfseAuthorizedXML)

	maint := NewMaintenanceService(f.docRepo, f.svc, &memEnqueuer{}, noopLogger{})
	require.NoError(t, maint.ResumeStale(context.Background()))

	assert.Equal(t, document.StatusAuthorized, f.doc.Status)
}

func TestResumeStaleSkipsFreshProcessing(t *testing.T) {
	f := newEmissionFixture(t, document.TypeNFSe)
	f.prov.emitResult = okResult(nfseProtocolXML)
	f.prov.queryLotResult = okResult(nfseProtocolXML)
	require.NoError(t, f.svc.Emit(context.Background(), f.doc.ID))
	require.Equal(t, document.StatusProcessing, f.doc.Status)

	f.prov.queryLotResult = okResult(nfseAuthorizedXML)

	maint := NewMaintenanceService(f.docRepo, f.svc, &memEnqueuer{}, noopLogger{})
	require.NoError(t, maint.ResumeStale(context.Background()))

	// Documento recém-atualizado não entra na varredura
	assert.Equal(t, document.StatusProcessing, f.doc.Status)
}
