// Package relay implements the upload and stream relays between HTTP
// clients and the document store.
package relay

import (
	"context"
	"io"

	"github.com/radif/filerelay/internal/config"
	"github.com/radif/filerelay/internal/storage"
)

const captionPrefix = "Uploaded via Web App: "

// Service holds the relay policy: configuration checks and what is sent
// to the store. It keeps no state between calls.
type Service struct {
	cfg   *config.Config
	store storage.Storage
}

// NewService creates a new relay Service.
func NewService(cfg *config.Config, store storage.Storage) *Service {
	return &Service{cfg: cfg, store: store}
}

// CanUpload returns a ConfigError when uploads cannot be relayed.
func (s *Service) CanUpload() error {
	if !s.cfg.HasBotToken() {
		return &ConfigError{Setting: "BOT_TOKEN"}
	}
	if !s.cfg.HasChatID() {
		return &ConfigError{Setting: "CHAT_ID"}
	}
	return nil
}

// CanStream returns a ConfigError when stored files cannot be fetched.
func (s *Service) CanStream() error {
	if !s.cfg.HasBotToken() {
		return &ConfigError{Setting: "BOT_TOKEN"}
	}
	return nil
}

// Upload stores body under name and returns the stored file.
func (s *Service) Upload(ctx context.Context, name string, body io.Reader) (storage.StoredFile, error) {
	if err := s.CanUpload(); err != nil {
		return storage.StoredFile{}, err
	}
	return s.store.Put(ctx, storage.Document{
		Name:    name,
		Caption: captionPrefix + name,
		Body:    body,
	})
}

// Open resolves fileID and opens the stored bytes. Nothing is cached:
// every call goes back to the store. A missing fileID is reported before
// configuration so callers always learn what they got wrong themselves.
func (s *Service) Open(ctx context.Context, fileID string) (*storage.Object, error) {
	if fileID == "" {
		return nil, errMissingFileID
	}
	if err := s.CanStream(); err != nil {
		return nil, err
	}
	return s.store.Open(ctx, fileID)
}
