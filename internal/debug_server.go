package internal

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"chat-relay/domain"
)

//go:embed inspect.html
var templatesFS embed.FS

// InspectRow is one keyspace entry rendered by the inspector page.
type InspectRow struct {
	Key       string
	Type      string
	Timestamp string
	Sender    string
	Detail    string
}

type StatsProvider func() map[string]any

// StartDebugServer serves a read-only view of the badger keyspace for
// operators. Only started when debug logging is enabled; it exposes raw
// message bodies and must never listen on a public interface.
func StartDebugServer(db *badger.DB, port int, statsProvider StatsProvider) {
	mux := http.NewServeMux()
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))

	mux.HandleFunc("/inspect", func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "dm:"
		}

		data := struct {
			Prefix string
			Items  []InspectRow
			Stats  map[string]any
		}{Prefix: prefix, Stats: make(map[string]any)}

		if statsProvider != nil {
			data.Stats = statsProvider()
		}

		_ = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				_ = item.Value(func(val []byte) error {
					data.Items = append(data.Items, mapRow(string(item.Key()), val))
					return nil
				})
			}
			return nil
		})

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	})

	go func() {
		_ = http.ListenAndServe(fmt.Sprintf("127.0.0.1:%d", port), mux)
	}()
}

// mapRow renders one keyspace entry. Message keys carry their nano timestamp
// in the third segment; everything else falls back to a raw view.
func mapRow(key string, val []byte) InspectRow {
	row := InspectRow{
		Key:       key,
		Type:      "RAW",
		Timestamp: "--:--:--",
		Sender:    "-",
		Detail:    "Size: " + strconv.Itoa(len(val)) + " bytes",
	}

	parts := strings.Split(key, ":")
	switch parts[0] {
	case "dm", "ch":
		var msg domain.Message
		if err := json.Unmarshal(val, &msg); err != nil {
			return row
		}
		row.Type = string(msg.Kind)
		row.Timestamp = msg.CreatedAt.Format("15:04:05")
		row.Sender = msg.SenderID
		row.Detail = msg.Body
		if msg.Attachment != "" {
			row.Detail += " [" + msg.Attachment + "]"
		}
	case "channel":
		var channel domain.Channel
		if err := json.Unmarshal(val, &channel); err != nil {
			return row
		}
		row.Type = "CHANNEL-DEF"
		row.Timestamp = channel.CreatedAt.Format("15:04:05")
		row.Sender = channel.AdminID
		row.Detail = fmt.Sprintf("%s (%d members)", channel.Name, len(channel.Members))
	case "thread":
		if nano, err := strconv.ParseInt(string(val), 10, 64); err == nil {
			row.Type = "THREAD"
			row.Timestamp = time.Unix(0, nano).Format("15:04:05")
			row.Detail = "last activity"
		}
	}
	return row
}
