package mutation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	desc := "books"
	tests := []struct {
		name string
		m    EngineMutation
		kind string
	}{
		{"create", NewCreateCatalog("books"), "createCatalog"},
		{"rename", NewModifyCatalogName("books", "novels", true), "modifyCatalogName"},
		{"schema", NewModifyCatalogSchema("books", &desc, map[string]string{"lang": "en"}, "old"), "modifyCatalogSchema"},
		{"restore", NewRestoreCatalog("books", "/backup/books"), "restoreCatalog"},
		{"state", NewSetCatalogState("books", false), "setCatalogState"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, payload, err := Encode(tt.m)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, kind)

			got, err := Decode(kind, payload)
			require.NoError(t, err)
			assert.Equal(t, tt.m, got)
		})
	}
}

func TestEncodeStableFieldNames(t *testing.T) {
	_, payload, err := Encode(NewModifyCatalogName("a", "b", true))
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"a","newName":"b","overwriteTarget":true}`, string(payload))
}

func TestDecodeRejectsUnknownKinds(t *testing.T) {
	_, err := Decode("dropCollection", []byte(`{}`))
	assert.Error(t, err)

	_, err = Decode("transaction", []byte(`{}`))
	assert.Error(t, err)

	_, err = Decode("createCatalog", []byte(`{`))
	assert.Error(t, err)
}

func TestTransactionEncoding(t *testing.T) {
	tx := TransactionMutation{
		TransactionID: uuid.MustParse("0190a1b2-0000-7000-8000-000000000001"),
		Version:       3,
		MutationCount: 1,
		WalSizeBytes:  42,
		CommittedAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	payload, err := EncodeTransaction(tx)
	require.NoError(t, err)

	got, err := DecodeTransaction(payload)
	require.NoError(t, err)
	assert.Equal(t, tx, got)
	assert.Equal(t, KindTransaction, got.Kind())
}
