// Package storagetest provides an in-process fake of the Telegram Bot API
// endpoints the relay talks to: sendDocument, getFile and file download.
package storagetest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"
)

// Token is the bot token the fake accepts.
const Token = "123456:test-token"

// Bot is a fake Bot API server. Zero-valued knobs mean "behave like Telegram".
type Bot struct {
	Server *httptest.Server

	mu     sync.Mutex
	calls  map[string]int
	files  map[string]storedFile
	chats  map[string]string // file_id -> chat_id it was posted to
	serial int

	stallAfter int
	released   chan struct{}
	abandoned  chan struct{}
	abandon    sync.Once

	// SendStatus, when set, makes sendDocument fail with this HTTP status and SendBody.
	SendStatus int
	SendBody   string
	// SendResult, when set, replaces the "result" object of a successful sendDocument.
	SendResult string
	// SendFailure, when set, makes sendDocument answer 200 with ok=false and this description.
	SendFailure string
	// GetFileFailure, when set, makes getFile answer ok=false with this description.
	GetFileFailure string
	// DownloadStatus, when set, makes the download endpoint fail with this status.
	DownloadStatus int
	// DownloadHeader is added to every successful download response.
	DownloadHeader http.Header
}

type storedFile struct {
	name string
	data []byte
}

// NewBot starts a fake Bot API server that is closed when the test ends.
func NewBot(t testing.TB) *Bot {
	t.Helper()
	b := &Bot{
		calls: make(map[string]int),
		files: make(map[string]storedFile),
		chats: make(map[string]string),
	}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serveHTTP))
	t.Cleanup(b.Server.Close)
	return b
}

// StallDownloads makes every later download send only its first n bytes,
// flush them, and then hang until the client goes away or the test ends.
// The returned channel is closed once a stalled download sees its request
// context end, which is how the fake observes that the client hung up.
func (b *Bot) StallDownloads(t testing.TB, n int) <-chan struct{} {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stallAfter = n
	b.released = make(chan struct{})
	b.abandoned = make(chan struct{})
	// Registered after NewBot's cleanup, so it runs before the server closes.
	released := b.released
	t.Cleanup(func() { close(released) })
	return b.abandoned
}

// URL is the base URL to use in place of https://api.telegram.org.
func (b *Bot) URL() string { return b.Server.URL }

// Calls returns how many times method ("sendDocument", "getFile", "download") was hit.
func (b *Bot) Calls(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method]
}

// TotalCalls returns the number of requests the fake has seen.
func (b *Bot) TotalCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		n += c
	}
	return n
}

// Put stores data directly, as if it had been uploaded, and returns its file_id.
func (b *Bot) Put(name string, data []byte) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.storeLocked(name, data, "")
}

// File returns what was stored under fileID.
func (b *Bot) File(fileID string) (name string, data []byte, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, ok := b.files[fileID]
	return f.name, f.data, ok
}

// ChatOf returns the chat_id fileID was posted to.
func (b *Bot) ChatOf(fileID string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.chats[fileID]
}

func (b *Bot) storeLocked(name string, data []byte, chatID string) string {
	b.serial++
	// Real file_ids are URL-safe base64, but nothing guarantees that; use
	// characters that need query escaping to catch sloppy URL building.
	id := fmt.Sprintf("BQAC+%d/z=&x", b.serial)
	b.files[id] = storedFile{name: name, data: data}
	b.chats[id] = chatID
	return id
}

func (b *Bot) count(method string) {
	b.mu.Lock()
	b.calls[method]++
	b.mu.Unlock()
}

func (b *Bot) serveHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasPrefix(r.URL.Path, "/file/bot"):
		b.count("download")
		rest := strings.TrimPrefix(r.URL.Path, "/file/bot")
		token, filePath, _ := strings.Cut(rest, "/")
		if token != Token {
			writeAPI(w, http.StatusUnauthorized, `{"ok":false,"error_code":401,"description":"Unauthorized"}`)
			return
		}
		b.download(w, r, filePath)
	case strings.HasPrefix(r.URL.Path, "/bot"):
		token, method, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/bot"), "/")
		b.count(method)
		if token != Token {
			writeAPI(w, http.StatusUnauthorized, `{"ok":false,"error_code":401,"description":"Unauthorized"}`)
			return
		}
		switch method {
		case "sendDocument":
			b.sendDocument(w, r)
		case "getFile":
			b.getFile(w, r)
		default:
			writeAPI(w, http.StatusNotFound, `{"ok":false,"error_code":404,"description":"Not Found"}`)
		}
	default:
		http.NotFound(w, r)
	}
}

func (b *Bot) sendDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeAPI(w, http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: can't parse request"}`)
		return
	}
	if b.SendStatus != 0 {
		w.WriteHeader(b.SendStatus)
		_, _ = io.WriteString(w, b.SendBody)
		return
	}
	if b.SendFailure != "" {
		writeAPI(w, http.StatusOK, fmt.Sprintf(`{"ok":false,"error_code":400,"description":%q}`, b.SendFailure))
		return
	}

	fh, hdr, err := r.FormFile("document")
	if err != nil {
		writeAPI(w, http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: there is no document in the request"}`)
		return
	}
	defer fh.Close()
	data, err := io.ReadAll(fh)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	b.mu.Lock()
	id := b.storeLocked(hdr.Filename, data, r.FormValue("chat_id"))
	serial := b.serial
	b.mu.Unlock()

	result := b.SendResult
	if result == "" {
		doc, _ := json.Marshal(map[string]any{
			"file_id":        id,
			"file_unique_id": fmt.Sprintf("AgAD%d", serial),
			"file_name":      hdr.Filename,
			"file_size":      len(data),
		})
		result = fmt.Sprintf(`{"message_id":%d,"caption":%q,"document":%s}`, serial, r.FormValue("caption"), doc)
	}
	writeAPI(w, http.StatusOK, `{"ok":true,"result":`+result+`}`)
}

func (b *Bot) getFile(w http.ResponseWriter, r *http.Request) {
	if b.GetFileFailure != "" {
		writeAPI(w, http.StatusBadRequest, fmt.Sprintf(`{"ok":false,"error_code":400,"description":%q}`, b.GetFileFailure))
		return
	}
	id := r.URL.Query().Get("file_id")
	b.mu.Lock()
	f, ok := b.files[id]
	b.mu.Unlock()
	if !ok {
		writeAPI(w, http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: invalid file_id"}`)
		return
	}
	res, _ := json.Marshal(map[string]any{
		"ok": true,
		"result": map[string]any{
			"file_id":   id,
			"file_size": len(f.data),
			"file_path": "documents/" + pathKey(id) + path.Ext(f.name),
		},
	})
	writeAPI(w, http.StatusOK, string(res))
}

func (b *Bot) download(w http.ResponseWriter, r *http.Request, filePath string) {
	if b.DownloadStatus != 0 {
		http.Error(w, http.StatusText(b.DownloadStatus), b.DownloadStatus)
		return
	}
	b.mu.Lock()
	var (
		f  storedFile
		ok bool
	)
	stallAfter, released, abandoned := b.stallAfter, b.released, b.abandoned
	for id, sf := range b.files {
		if "documents/"+pathKey(id)+path.Ext(sf.name) == filePath {
			f, ok = sf, true
			break
		}
	}
	b.mu.Unlock()
	if !ok {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	for k, vs := range b.DownloadHeader {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set("Content-Type", http.DetectContentType(f.data))
	w.Header().Set("Content-Disposition", `attachment; filename="`+f.name+`"`)
	w.Header().Set("Content-Length", fmt.Sprint(len(f.data)))
	if stallAfter <= 0 || stallAfter >= len(f.data) {
		_, _ = w.Write(f.data)
		return
	}

	_, _ = w.Write(f.data[:stallAfter])
	if fl, ok := w.(http.Flusher); ok {
		fl.Flush()
	}
	select {
	case <-r.Context().Done():
		b.abandon.Do(func() { close(abandoned) })
	case <-released:
	}
}

// pathKey maps a file_id to a path-safe token.
func pathKey(id string) string {
	return strings.NewReplacer("+", "_", "/", "_", "=", "_", "&", "_").Replace(id)
}

func writeAPI(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
