package storage_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radif/filerelay/internal/storage"
	"github.com/radif/filerelay/internal/storage/storagetest"
)

const testChat = "-100200300"

func newStore(bot *storagetest.Bot) *storage.TelegramStorage {
	return storage.NewTelegramStorage(bot.URL(), storagetest.Token, testChat, bot.Server.Client())
}

func TestPutSendsDocument(t *testing.T) {
	bot := storagetest.NewBot(t)
	store := newStore(bot)

	stored, err := store.Put(context.Background(), storage.Document{
		Name:    "report.pdf",
		Caption: "Uploaded via Web App: report.pdf",
		Body:    strings.NewReader("%PDF-1.7 hello"),
	})
	require.NoError(t, err)

	assert.Equal(t, storage.KindDocument, stored.Kind)
	assert.Equal(t, int64(len("%PDF-1.7 hello")), stored.Size)

	name, data, ok := bot.File(stored.FileID)
	require.True(t, ok)
	assert.Equal(t, "report.pdf", name)
	assert.Equal(t, "%PDF-1.7 hello", string(data))
	assert.Equal(t, testChat, bot.ChatOf(stored.FileID))
	assert.Equal(t, 1, bot.Calls("sendDocument"))
}

func TestPutPrefersLargestPhoto(t *testing.T) {
	bot := storagetest.NewBot(t)
	bot.SendResult = `{"message_id":7,"photo":[` +
		`{"file_id":"small","file_unique_id":"s","file_size":10},` +
		`{"file_id":"medium","file_unique_id":"m","file_size":100},` +
		`{"file_id":"large","file_unique_id":"l","file_size":1000}]}`

	stored, err := newStore(bot).Put(context.Background(), storage.Document{Name: "cat.jpg", Body: strings.NewReader("jpeg")})
	require.NoError(t, err)

	assert.Equal(t, storage.KindPhoto, stored.Kind)
	assert.Equal(t, "large", stored.FileID)
	assert.Equal(t, "l", stored.FileUniqueID)
	assert.Equal(t, int64(1000), stored.Size)
}

func TestPutEmptyResult(t *testing.T) {
	bot := storagetest.NewBot(t)
	bot.SendResult = `{"message_id":7,"text":"hi"}`

	_, err := newStore(bot).Put(context.Background(), storage.Document{Name: "a.txt", Body: strings.NewReader("a")})
	assert.ErrorIs(t, err, storage.ErrNoStoredFile)
}

func TestPutStatusError(t *testing.T) {
	bot := storagetest.NewBot(t)
	bot.SendStatus = http.StatusBadGateway
	bot.SendBody = "upstream unavailable\n"

	_, err := newStore(bot).Put(context.Background(), storage.Document{Name: "a.txt", Body: strings.NewReader("a")})
	require.Error(t, err)

	var statusErr *storage.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Equal(t, "Telegram API Upload Failed: 502 - upstream unavailable", err.Error())
	assert.True(t, storage.IsUpstream(err))
}

func TestPutAPIError(t *testing.T) {
	bot := storagetest.NewBot(t)
	bot.SendFailure = "Bad Request: chat not found"

	_, err := newStore(bot).Put(context.Background(), storage.Document{Name: "a.txt", Body: strings.NewReader("a")})

	var apiErr *storage.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Telegram API Error: Bad Request: chat not found", err.Error())
}

func TestPutBodyReadError(t *testing.T) {
	bot := storagetest.NewBot(t)
	boom := errors.New("client went away")

	_, err := newStore(bot).Put(context.Background(), storage.Document{
		Name: "a.txt",
		Body: io.MultiReader(strings.NewReader("partial"), iotest.ErrReader(boom)),
	})

	assert.ErrorIs(t, err, boom)
	assert.False(t, storage.IsUpstream(err))
}

func TestOpenStreamsFile(t *testing.T) {
	bot := storagetest.NewBot(t)
	id := bot.Put("notes.txt", []byte("plain text body"))

	obj, err := newStore(bot).Open(context.Background(), id)
	require.NoError(t, err)
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, "plain text body", string(data))
	assert.Equal(t, int64(len("plain text body")), obj.Size)
	assert.Contains(t, obj.Header.Get("Content-Type"), "text/plain")
	assert.Equal(t, 1, bot.Calls("getFile"))
	assert.Equal(t, 1, bot.Calls("download"))
}

func TestOpenGetFileFailure(t *testing.T) {
	bot := storagetest.NewBot(t)
	bot.GetFileFailure = "Bad Request: file is too big"

	_, err := newStore(bot).Open(context.Background(), "whatever")
	require.Error(t, err)

	assert.Equal(t, "Telegram getFile API Error: Bad Request: file is too big", err.Error())
	assert.Equal(t, 0, bot.Calls("download"))
}

func TestOpenUnknownFile(t *testing.T) {
	bot := storagetest.NewBot(t)

	_, err := newStore(bot).Open(context.Background(), "missing")

	var apiErr *storage.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Code)
	assert.Contains(t, err.Error(), "invalid file_id")
}

func TestOpenDownloadFailure(t *testing.T) {
	bot := storagetest.NewBot(t)
	id := bot.Put("notes.txt", []byte("x"))
	bot.DownloadStatus = http.StatusNotFound

	_, err := newStore(bot).Open(context.Background(), id)
	require.Error(t, err)

	assert.Equal(t, "Failed to fetch file from Telegram: Not Found", err.Error())
}

func TestTransportErrorHidesToken(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()

	store := storage.NewTelegramStorage(dead.URL, storagetest.Token, testChat, nil)
	_, err := store.Open(context.Background(), "abc")
	require.Error(t, err)

	var transErr *storage.TransportError
	require.ErrorAs(t, err, &transErr)
	assert.Equal(t, "getFile", transErr.Method)
	assert.NotContains(t, err.Error(), storagetest.Token)
}
