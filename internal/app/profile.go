package app

import (
	"context"
	"encoding/json"
	"io"

	"portfolio/api/internal/export"
	"portfolio/api/internal/search"
	"portfolio/api/internal/session"
	"portfolio/api/internal/store"
)

func (s *Service) GetProfile(ctx context.Context) (store.Profile, error) {
	return s.store.GetProfile(ctx)
}

// SetProfileImage replaces the profile image URL, cleaning up the old
// upload when one exists.
func (s *Service) SetProfileImage(ctx context.Context, imageURL string) error {
	profile, err := s.store.GetProfile(ctx)
	if err != nil {
		return err
	}
	if err := s.store.SetProfileImage(ctx, imageURL); err != nil {
		return err
	}
	if profile.ImageURL != "" && profile.ImageURL != imageURL {
		s.removeBlob(profile.ImageURL)
	}
	return nil
}

func (s *Service) ClearProfileImage(ctx context.Context) error {
	profile, err := s.store.GetProfile(ctx)
	if err != nil {
		return err
	}
	if err := s.store.ClearProfileImage(ctx); err != nil {
		return err
	}
	s.removeBlob(profile.ImageURL)
	return nil
}

func (s *Service) SetProfileData(ctx context.Context, data json.RawMessage) error {
	if len(data) == 0 || !json.Valid(data) {
		return invalidArgument("data must be a JSON document")
	}
	return s.store.SetProfileData(ctx, data)
}

func (s *Service) ClearProfileData(ctx context.Context) error {
	return s.store.ClearProfileData(ctx)
}

// --- About page (versioned in git) ---

func (s *Service) GetAboutMe(ctx context.Context) (string, store.CommitInfo, error) {
	if s.about == nil {
		return "", store.CommitInfo{}, configError("about page storage is not configured")
	}
	return s.about.Head()
}

func (s *Service) PutAboutMe(ctx context.Context, content, author string) (store.CommitInfo, error) {
	if s.about == nil {
		return store.CommitInfo{}, configError("about page storage is not configured")
	}
	if content == "" {
		return store.CommitInfo{}, invalidArgument("content is required")
	}
	return s.about.Commit(content, author, "Update about page")
}

func (s *Service) AboutMeHistory(ctx context.Context, limit int) ([]store.CommitInfo, error) {
	if s.about == nil {
		return nil, configError("about page storage is not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	return s.about.History(limit)
}

func (s *Service) RestoreAboutMe(ctx context.Context, hash, author string) (string, store.CommitInfo, error) {
	if s.about == nil {
		return "", store.CommitInfo{}, configError("about page storage is not configured")
	}
	if hash == "" {
		return "", store.CommitInfo{}, invalidArgument("hash is required")
	}
	return s.about.Restore(hash, author)
}

// --- Cached third-party stats ---

func (s *Service) GetProfileStats(ctx context.Context) (store.ProfileStats, error) {
	return s.store.GetProfileStats(ctx)
}

func (s *Service) RefreshStats(ctx context.Context) error {
	if s.stats == nil {
		return configError("stats fetching is not configured")
	}
	return s.stats.Refresh(ctx)
}

// --- Search / chat / export passthroughs ---

func (s *Service) Search(q search.Query) (search.Response, error) {
	if s.search == nil {
		return search.Response{}, configError("search is not configured")
	}
	return s.search.Search(q), nil
}

func (s *Service) ChatStream(ctx context.Context, chatID, message string, onToken func(string)) error {
	if s.chat == nil {
		return configError("chat is not configured")
	}
	return s.chat.Stream(ctx, chatID, message, onToken)
}

func (s *Service) ChatHistory(ctx context.Context, chatID string) ([]session.ChatMessage, error) {
	if s.chat == nil {
		return nil, configError("chat is not configured")
	}
	return s.chat.History(ctx, chatID)
}

func (s *Service) ExportResume(ctx context.Context) (*export.Result, error) {
	if s.exporter == nil {
		return nil, configError("resume export is not configured")
	}
	return s.exporter.ExportResume(ctx)
}

// UploadImage stores a multipart upload and returns its public URL.
func (s *Service) UploadImage(ctx context.Context, kind, filename string, r io.Reader, size int64) (string, error) {
	if s.blobs == nil || !s.blobs.IsConfigured() {
		return "", configError("object storage is not configured")
	}
	key, err := s.blobs.Put(ctx, kind, filename, r, size)
	if err != nil {
		return "", invalidArgument(err.Error())
	}
	return s.blobs.URL(key), nil
}
