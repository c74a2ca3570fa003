package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/radif/filerelay/internal/metrics"
)

// maxErrorBody caps how much of a failed response is read into an error message.
const maxErrorBody = 64 << 10

// apiResponse is the envelope every Bot API method answers with.
type apiResponse[T any] struct {
	OK          bool   `json:"ok"`
	Result      T      `json:"result"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

// TelegramStorage implements Storage on top of the Telegram Bot API.
// Documents are posted to a single chat; the file_id Telegram hands back is
// the only reference kept, and it is kept by the caller.
type TelegramStorage struct {
	client *http.Client
	apiURL string
	token  string
	chatID string
}

// NewTelegramStorage returns a TelegramStorage posting to chatID with the given bot token.
// apiURL is the Bot API base, normally "https://api.telegram.org".
// A nil client means http.DefaultClient.
func NewTelegramStorage(apiURL, token, chatID string, client *http.Client) *TelegramStorage {
	if client == nil {
		client = http.DefaultClient
	}
	return &TelegramStorage{
		client: client,
		apiURL: strings.TrimRight(apiURL, "/"),
		token:  token,
		chatID: chatID,
	}
}

// Put uploads doc with sendDocument. The multipart body is produced on a pipe
// while the request is in flight, so doc.Body is never held in memory.
func (s *TelegramStorage) Put(ctx context.Context, doc Document) (StoredFile, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	written := make(chan error, 1)
	go func() {
		err := writeDocumentForm(mw, s.chatID, doc)
		pw.CloseWithError(err)
		written <- err
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.methodURL("sendDocument"), pr)
	if err != nil {
		pr.CloseWithError(err)
		<-written
		return StoredFile{}, fmt.Errorf("build sendDocument request: %w", redact(err, s.token))
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := s.client.Do(req)
	metrics.ObserveProviderCall("sendDocument", start)

	// Unblocks the writer if Telegram answered before consuming the body.
	pr.CloseWithError(io.ErrClosedPipe)
	if werr := <-written; werr != nil && !errors.Is(werr, io.ErrClosedPipe) {
		if err == nil {
			resp.Body.Close()
		}
		return StoredFile{}, fmt.Errorf("read document body: %w", werr)
	}
	if err != nil {
		return StoredFile{}, &TransportError{Method: "sendDocument", Err: redact(err, s.token)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return StoredFile{}, &StatusError{
			Method:     "sendDocument",
			StatusCode: resp.StatusCode,
			Status:     statusText(resp.Status, resp.StatusCode),
			Body:       strings.TrimSpace(string(body)),
		}
	}

	var out apiResponse[message]
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return StoredFile{}, &TransportError{Method: "sendDocument", Err: fmt.Errorf("decode response: %w", err)}
	}
	if !out.OK {
		return StoredFile{}, &APIError{Method: "sendDocument", Code: out.ErrorCode, Description: out.Description}
	}
	return out.Result.Stored()
}

// Open resolves fileID with getFile and then opens the download URL.
// The second call needs the first one's file_path, so they run in order.
func (s *TelegramStorage) Open(ctx context.Context, fileID string) (*Object, error) {
	f, err := s.getFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return s.download(ctx, f.FilePath)
}

func (s *TelegramStorage) getFile(ctx context.Context, fileID string) (*file, error) {
	u := s.methodURL("getFile") + "?" + url.Values{"file_id": {fileID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build getFile request: %w", redact(err, s.token))
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	metrics.ObserveProviderCall("getFile", start)
	if err != nil {
		return nil, &TransportError{Method: "getFile", Err: redact(err, s.token)}
	}
	defer resp.Body.Close()

	// Telegram reports most failures (bad file_id, file too big) as a JSON
	// body with ok=false and a 4xx status, so decode before looking at the status.
	var out apiResponse[file]
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&out); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &StatusError{Method: "getFile", StatusCode: resp.StatusCode, Status: statusText(resp.Status, resp.StatusCode)}
		}
		return nil, &TransportError{Method: "getFile", Err: fmt.Errorf("decode response: %w", err)}
	}
	if !out.OK {
		return nil, &APIError{Method: "getFile", Code: out.ErrorCode, Description: out.Description}
	}
	if out.Result.FilePath == "" {
		return nil, &APIError{Method: "getFile", Description: "file_path missing from response"}
	}
	return &out.Result, nil
}

func (s *TelegramStorage) download(ctx context.Context, filePath string) (*Object, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.fileURL(filePath), nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", redact(err, s.token))
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	metrics.ObserveProviderCall("download", start)
	if err != nil {
		return nil, &TransportError{Method: "download", Err: redact(err, s.token)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &StatusError{Method: "download", StatusCode: resp.StatusCode, Status: statusText(resp.Status, resp.StatusCode)}
	}

	return &Object{Body: resp.Body, Header: resp.Header, Size: resp.ContentLength}, nil
}

func (s *TelegramStorage) methodURL(method string) string {
	return s.apiURL + "/bot" + s.token + "/" + method
}

func (s *TelegramStorage) fileURL(filePath string) string {
	return s.apiURL + "/file/bot" + s.token + "/" + strings.TrimLeft(filePath, "/")
}

func writeDocumentForm(mw *multipart.Writer, chatID string, doc Document) error {
	if err := mw.WriteField("chat_id", chatID); err != nil {
		return err
	}
	if doc.Caption != "" {
		if err := mw.WriteField("caption", doc.Caption); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("document", doc.Name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, doc.Body); err != nil {
		return err
	}
	return mw.Close()
}
