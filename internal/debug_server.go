package internal

import (
	"chat-realtime/internal/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const defaultInspectLimit = 200

type InspectRow struct {
	Key      string          `json:"key"`
	Type     string          `json:"type"`
	EntityID string          `json:"entityId"`
	Size     int             `json:"size"`
	Value    json.RawMessage `json:"value,omitempty"`
}

type RowMapper func(key string, val []byte) InspectRow
type StatsProvider func() map[string]any

type PageData struct {
	Prefix string         `json:"prefix"`
	Items  []InspectRow   `json:"items"`
	Stats  map[string]any `json:"stats"`
}

// InspectHandler dumps the badger keys under ?prefix= as JSON, along with live runtime stats.
// It is a debugging aid and must never be mounted in production.
func InspectHandler(db *badger.DB, mapper RowMapper, statsProvider StatsProvider) http.Handler {
	if mapper == nil {
		mapper = DefaultMapper
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
		if err != nil || limit <= 0 {
			limit = defaultInspectLimit
		}

		data := PageData{
			Prefix: prefix,
			Items:  []InspectRow{},
			Stats:  make(map[string]any),
		}
		if statsProvider != nil {
			data.Stats = statsProvider()
		}

		err = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)) && len(data.Items) < limit; it.Next() {
				item := it.Item()
				val, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				data.Items = append(data.Items, mapper(string(item.KeyCopy(nil)), val))
			}
			return nil
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(data)
	})
}

// DefaultMapper splits "type:id[:id]" keys and inlines JSON values.
// Sequence counters are binary and only reported by size. Password hashes never leave the store.
func DefaultMapper(key string, val []byte) InspectRow {
	kind, entity, _ := strings.Cut(key, ":")
	row := InspectRow{Key: key, Type: kind, EntityID: entity, Size: len(val)}
	if !json.Valid(val) {
		return row
	}
	row.Value = val
	if kind == "user" {
		row.Value = redact(val, "passwordHash")
	}
	return row
}

func redact(val []byte, fields ...string) json.RawMessage {
	var record map[string]any
	if err := json.Unmarshal(val, &record); err != nil {
		return nil
	}
	for _, field := range fields {
		if _, ok := record[field]; ok {
			record[field] = "[redacted]"
		}
	}
	out, err := json.Marshal(record)
	if err != nil {
		return nil
	}
	return out
}
