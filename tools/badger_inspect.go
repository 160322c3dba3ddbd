package main

import (
	"chat-realtime/domain"
	"chat-realtime/internal/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	prefix := flag.String("prefix", "conversation:", "Prefix to scan (conversation:, member:, message:, receipt:, user:)")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Entity ID", "Size", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))
			err := item.Value(func(v []byte) error {
				kind, entity, _ := strings.Cut(key, ":")
				table.Append([]string{key, kind, entity, fmt.Sprint(len(v)), detail(kind, v)})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

// detail summarizes a stored value; unknown or binary values are left blank.
func detail(kind string, v []byte) string {
	switch kind {
	case "conversation":
		var c domain.Conversation
		if json.Unmarshal(v, &c) != nil {
			return ""
		}
		return fmt.Sprintf("%s %q creator=%d members=%v", c.Type, c.Title, c.CreatorID, c.MemberIDs)
	case "message":
		var m domain.Message
		if json.Unmarshal(v, &m) != nil {
			return ""
		}
		edited := ""
		if m.EditedAt != nil {
			edited = " (edited)"
		}
		return fmt.Sprintf("conv=%d from=%d %s: %s%s", m.ConversationID, m.SenderID, m.ContentType, truncate(m.Content, 40), edited)
	case "user":
		var u domain.User
		if json.Unmarshal(v, &u) != nil {
			return ""
		}
		return fmt.Sprintf("%s (%s)", u.Username, u.DisplayName)
	default:
		if json.Valid(v) {
			return truncate(string(v), 60)
		}
		return ""
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
