package internal

import (
	"chat-realtime/internal/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func TestInspectHandler_DumpsPrefix(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	// Given two messages and a conversation
	req.NoError(db.Update(func(txn *badger.Txn) error {
		_ = txn.Set([]byte("message:0000000000000000001"), []byte(`{"id":1,"content":"hi"}`))
		_ = txn.Set([]byte("message:0000000000000000002"), []byte(`{"id":2,"content":"yo"}`))
		return txn.Set([]byte("conversation:0000000000000000001"), []byte(`{"id":1}`))
	}))
	handler := InspectHandler(db, nil, func() map[string]any { return map[string]any{"online": 3} })

	// When the message prefix is inspected
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/inspect?prefix=message:&limit=1", nil))

	// Then only the first message comes back with the stats
	req.Equal(http.StatusOK, rec.Code)
	var page PageData
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &page))
	req.Equal("message:", page.Prefix)
	req.Len(page.Items, 1)
	req.Equal("message", page.Items[0].Type)
	req.Equal("0000000000000000001", page.Items[0].EntityID)
	req.JSONEq(`{"id":1,"content":"hi"}`, string(page.Items[0].Value))
	req.EqualValues(3, page.Stats["online"])
}

func TestDefaultMapper_BinaryValue(t *testing.T) {
	row := DefaultMapper("seq:message", []byte{0, 0, 0, 7})

	require.Equal(t, "seq", row.Type)
	require.Equal(t, "message", row.EntityID)
	require.Equal(t, 4, row.Size)
	require.Nil(t, row.Value)
}

func TestDefaultMapper_RedactsPasswordHash(t *testing.T) {
	row := DefaultMapper("user:0000000000000000001", []byte(`{"id":1,"username":"alice","passwordHash":"$argon2id$v=19$..."}`))

	require.Equal(t, "user", row.Type)
	require.JSONEq(t, `{"id":1,"username":"alice","passwordHash":"[redacted]"}`, string(row.Value))
}
