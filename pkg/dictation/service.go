// Package dictation composes the transcription client, the archive and the
// settings service behind the command surface used by the UI shell and the
// CLI. Every method returns either a typed payload or an error; nothing
// panics across this boundary.
package dictation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/murmur-app/murmur/pkg/archive"
	"github.com/murmur-app/murmur/pkg/paths"
	"github.com/murmur-app/murmur/pkg/settings"
	"github.com/murmur-app/murmur/pkg/transcriber"
)

// Service is the pipeline facade.
type Service struct {
	store    archive.Store
	client   *transcriber.Client
	settings *settings.Service
}

// New wires the facade together and loads the stored API key (if any) into
// the transcription client.
func New(store archive.Store, client *transcriber.Client, svc *settings.Service) *Service {
	key, ok, err := svc.APIKey()
	switch {
	case err != nil:
		slog.Warn("Could not load API key from vault", "error", err)
	case ok:
		client.UpdateAPIKey(key)
	}

	return &Service{
		store:    store,
		client:   client,
		settings: svc,
	}
}

// OpenDefault builds a service against the default database, settings file
// and credential vault locations.
func OpenDefault() (*Service, error) {
	svc, err := settings.Open()
	if err != nil {
		return nil, err
	}

	store, err := archive.NewSQLiteStore(paths.GetDatabasePath())
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}

	return New(store, transcriber.New(), svc), nil
}

// Close releases the archive.
func (s *Service) Close() error {
	return s.store.Close()
}

// Transcribe sends the audio for transcription. A successful result is NOT
// persisted automatically; history records what the user chose to keep, so
// saving is a separate, caller-initiated step.
func (s *Service) Transcribe(ctx context.Context, audio []byte) transcriber.Result {
	return s.client.Transcribe(ctx, audio)
}

// SaveTranscription persists a transcription and returns its id.
func (s *Service) SaveTranscription(ctx context.Context, text string, durationSeconds float64) (int64, error) {
	return s.store.Save(ctx, text, durationSeconds)
}

// History returns one page of saved transcriptions, newest first.
func (s *Service) History(ctx context.Context, page, limit int) (*archive.HistoryPage, error) {
	return s.store.List(ctx, page, limit)
}

// SearchHistory searches saved transcriptions. An empty query lists
// everything rather than relying on the search engine's empty-phrase
// semantics.
func (s *Service) SearchHistory(ctx context.Context, query string, page, limit int) (*archive.HistoryPage, error) {
	if query == "" {
		return s.store.List(ctx, page, limit)
	}
	return s.store.Search(ctx, query, page, limit)
}

// DeleteTranscription removes one transcription; it reports whether a row
// was actually removed.
func (s *Service) DeleteTranscription(ctx context.Context, id int64) (bool, error) {
	return s.store.Delete(ctx, id)
}

// ClearHistory removes all transcriptions.
func (s *Service) ClearHistory(ctx context.Context) error {
	return s.store.Clear(ctx)
}

// ToggleFavorite flips the favorite flag and returns the resulting state.
func (s *Service) ToggleFavorite(ctx context.Context, id int64) (bool, error) {
	return s.store.ToggleFavorite(ctx, id)
}

// TestAPIKey validates a key against the remote API. An empty overrideKey
// tests the configured key.
func (s *Service) TestAPIKey(ctx context.Context, overrideKey string) transcriber.TestResult {
	return s.client.TestConnection(ctx, overrideKey)
}

// SetAPIKey stores the key in the vault and swaps it into the client.
func (s *Service) SetAPIKey(key string) error {
	if err := s.settings.SetAPIKey(key); err != nil {
		return err
	}
	s.client.UpdateAPIKey(key)
	return nil
}

// ClearAPIKey removes the key from the vault and the client.
func (s *Service) ClearAPIKey() error {
	if err := s.settings.ClearAPIKey(); err != nil {
		return err
	}
	s.client.UpdateAPIKey("")
	return nil
}

// Settings returns the current user preferences.
func (s *Service) Settings() settings.Settings {
	return s.settings.All()
}

// SetSetting updates one recognized preference key.
func (s *Service) SetSetting(key string, value any) error {
	return s.settings.Set(key, value)
}

// IsFirstLaunch reports whether setup has not been completed yet.
func (s *Service) IsFirstLaunch() bool {
	return s.settings.IsFirstLaunch()
}

// CompleteSetup marks the first-launch flow as done.
func (s *Service) CompleteSetup() error {
	return s.settings.CompleteSetup()
}
