// Package storage defines the interface for the external document store.
// The Telegram implementation keeps nothing locally: every Put lands in a chat
// and every Open re-resolves the reference against the Bot API.
package storage

import (
	"context"
	"io"
	"net/http"
)

// Document is a file to be stored.
type Document struct {
	Name    string
	Caption string
	Body    io.Reader
}

// Object is an opened stored file. Callers must close Body.
type Object struct {
	Body   io.ReadCloser
	Header http.Header
	Size   int64 // -1 when unknown
}

// Storage is the interface for storing documents and streaming them back.
type Storage interface {
	// Put streams doc to the store and returns the stored file's reference.
	Put(ctx context.Context, doc Document) (StoredFile, error)
	// Open resolves a reference and returns the stored bytes as a stream.
	Open(ctx context.Context, fileID string) (*Object, error)
}
