package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDocument(t *testing.T) *Document {
	t.Helper()
	doc, err := NewDocument("em-1", "clinic-1", TypeNFe, RelatedOrder, "order-1", "1", 42)
	require.NoError(t, err)
	return doc
}

func TestNewDocumentValidation(t *testing.T) {
	tests := []struct {
		name        string
		emitterID   string
		clinicID    string
		docType     Type
		relatedType RelatedType
		relatedID   string
		number      int64
	}{
		{"sem emissor", "", "clinic-1", TypeNFe, RelatedOrder, "order-1", 1},
		{"sem clínica", "em-1", "", TypeNFe, RelatedOrder, "order-1", 1},
		{"tipo inválido", "em-1", "clinic-1", Type("boleto"), RelatedOrder, "order-1", 1},
		{"origem inválida", "em-1", "clinic-1", TypeNFe, RelatedType("invoice"), "order-1", 1},
		{"sem origem", "em-1", "clinic-1", TypeNFe, RelatedOrder, "", 1},
		{"número zero", "em-1", "clinic-1", TypeNFe, RelatedOrder, "order-1", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDocument(tt.emitterID, tt.clinicID, tt.docType, tt.relatedType, tt.relatedID, "1", tt.number)
			assert.Error(t, err)
		})
	}
}

func TestLifecycleHappyPath(t *testing.T) {
	doc := newTestDocument(t)
	assert.Equal(t, StatusDraft, doc.Status)

	require.NoError(t, doc.MarkQueued())
	assert.True(t, doc.MarkProcessing())
	require.NoError(t, doc.MarkAuthorized("135250000000001"))

	assert.Equal(t, StatusAuthorized, doc.Status)
	assert.Equal(t, "135250000000001", doc.Protocol)
	assert.NotNil(t, doc.AuthorizedAt)
	assert.True(t, doc.IsTerminal())

	doc.AccessKey = "35250112345678000199550010000000421123456785"
	require.NoError(t, doc.MarkCanceled())
	assert.Equal(t, StatusCanceled, doc.Status)
	assert.NotNil(t, doc.CanceledAt)
}

func TestMarkProcessingGuard(t *testing.T) {
	doc := newTestDocument(t)

	// DRAFT não é elegível para pickup
	assert.False(t, doc.MarkProcessing())

	require.NoError(t, doc.MarkQueued())
	assert.True(t, doc.MarkProcessing())

	// Pickup duplicado é recusado
	assert.False(t, doc.MarkProcessing())

	require.NoError(t, doc.MarkAuthorized("prot"))
	assert.False(t, doc.MarkProcessing())
}

func TestFailedDocumentIsRetryable(t *testing.T) {
	doc := newTestDocument(t)
	require.NoError(t, doc.MarkQueued())
	require.True(t, doc.MarkProcessing())
	require.NoError(t, doc.MarkFailed("certificado expirado"))

	assert.Equal(t, StatusFailed, doc.Status)
	assert.False(t, doc.IsTerminal())
	assert.True(t, doc.MarkProcessing())
}

func TestTerminalStatesAreFinal(t *testing.T) {
	authorized := newTestDocument(t)
	require.NoError(t, authorized.MarkQueued())
	require.True(t, authorized.MarkProcessing())
	require.NoError(t, authorized.MarkAuthorized("prot"))

	assert.ErrorIs(t, authorized.MarkQueued(), ErrInvalidTransition)
	assert.ErrorIs(t, authorized.MarkRejected("539", "duplicidade"), ErrInvalidTransition)
	assert.ErrorIs(t, authorized.MarkFailed("qualquer"), ErrInvalidTransition)

	rejected := newTestDocument(t)
	require.NoError(t, rejected.MarkQueued())
	require.True(t, rejected.MarkProcessing())
	require.NoError(t, rejected.MarkRejected("539", "duplicidade"))

	assert.True(t, rejected.IsTerminal())
	assert.False(t, rejected.MarkProcessing())
	assert.ErrorIs(t, rejected.MarkCanceled(), ErrInvalidTransition)
}

func TestMarkAuthorizedClearsPreviousError(t *testing.T) {
	doc := newTestDocument(t)
	require.NoError(t, doc.MarkQueued())
	require.True(t, doc.MarkProcessing())
	require.NoError(t, doc.MarkFailed("transporte indisponível"))

	require.True(t, doc.MarkProcessing())
	require.NoError(t, doc.MarkAuthorized("prot"))

	assert.Empty(t, doc.ErrorCode)
	assert.Empty(t, doc.ErrorMessage)
}

func TestCanCancel(t *testing.T) {
	doc := newTestDocument(t)
	require.NoError(t, doc.MarkQueued())
	require.True(t, doc.MarkProcessing())

	// Apenas documentos autorizados podem ser cancelados
	assert.ErrorIs(t, doc.CanCancel(), ErrInvalidTransition)

	require.NoError(t, doc.MarkAuthorized(""))
	assert.ErrorIs(t, doc.CanCancel(), ErrMissingAccessKey)

	doc.AccessKey = "35250112345678000199550010000000421123456785"
	assert.NoError(t, doc.CanCancel())
}

func TestValidRelatedType(t *testing.T) {
	assert.True(t, ValidRelatedType(RelatedOrder))
	assert.True(t, ValidRelatedType(RelatedAppointment))
	assert.True(t, ValidRelatedType(RelatedBudget))
	assert.False(t, ValidRelatedType(RelatedType("invoice")))
}
