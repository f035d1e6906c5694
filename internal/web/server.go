package web

import (
	"context"
	"fmt"
	"html"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"nmea2ubx/internal/archive"
)

// PacketArchive is the read side of the packet archive.
type PacketArchive interface {
	Recent(limit int) ([]archive.PacketRecord, error)
	Count() (int64, error)
}

// Deps are the optional components the web UI exposes. Nil fields disable the
// matching endpoints.
type Deps struct {
	Status  *Status
	Logs    *LogBuffer
	Packets *PacketBroadcaster
	Archive PacketArchive
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Local tool on a trusted network; EFB apps connect from arbitrary origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const wsWriteTimeout = 5 * time.Second

func Handler(d Deps) http.Handler {
	status := d.Status
	if status == nil {
		status = NewStatus()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, status.Snapshot(time.Now().UTC()))
	})

	if d.Logs != nil {
		mux.Handle("/api/logs", d.Logs.Handler())
	}

	if d.Archive != nil {
		mux.HandleFunc("/api/packets", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				w.Header().Set("Allow", http.MethodGet)
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			limit := 50
			if s := strings.TrimSpace(r.URL.Query().Get("limit")); s != "" {
				v, err := strconv.Atoi(s)
				if err != nil || v < 1 || v > 1000 {
					http.Error(w, "limit must be an integer in [1,1000]", http.StatusBadRequest)
					return
				}
				limit = v
			}
			recs, err := d.Archive.Recent(limit)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			total, err := d.Archive.Count()
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			writeJSON(w, struct {
				Total   int64                  `json:"total"`
				Packets []archive.PacketRecord `json:"packets"`
			}{Total: total, Packets: recs})
		})
	}

	if d.Packets != nil {
		mux.HandleFunc("/ws/packets", func(w http.ResponseWriter, r *http.Request) {
			servePacketStream(w, r, d.Packets)
		})
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		snap := status.Snapshot(time.Now().UTC())
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = fmt.Fprintf(w, "<!doctype html><html><head><meta charset=\"utf-8\"><title>nmea2ubx</title></head><body>")
		_, _ = fmt.Fprintf(w, "<h1>nmea2ubx</h1>")
		_, _ = fmt.Fprintf(w, "<p>See <a href=\"/api/status\">/api/status</a> and <a href=\"/api/logs?format=text\">/api/logs</a>.</p>")
		_, _ = fmt.Fprintf(w, "<pre>mode=%s\ngps_source=%s\ngps_mode=%s sats=%d\npackets_encoded=%d failed=%d\nlast_itow_ms=%d\nlast_error=%s</pre>",
			html.EscapeString(snap.Mode), html.EscapeString(snap.GPS.Source), html.EscapeString(snap.GPS.Mode), snap.GPS.Satellites,
			snap.Packets.Encoded, snap.Packets.Failed, snap.Packets.LastITOW, html.EscapeString(snap.Packets.LastError),
		)
		_, _ = fmt.Fprintf(w, "</body></html>")
	})

	return mux
}

// servePacketStream upgrades to a websocket and sends every packet as one
// binary message until the client goes away.
func servePacketStream(w http.ResponseWriter, r *http.Request, b *PacketBroadcaster) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	id, ch := b.Subscribe(16)
	defer b.Unsubscribe(id)

	// Drain client frames so close and ping control messages are processed.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case pkt, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.BinaryMessage, pkt); err != nil {
				return
			}
		}
	}
}

func Serve(ctx context.Context, listenAddr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
