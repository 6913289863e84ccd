package profile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/sarathmodify/admin-dashboard/pkg/authstate"
	"github.com/sarathmodify/admin-dashboard/pkg/backend"
	apperrors "github.com/sarathmodify/admin-dashboard/pkg/errors"
)

const (
	MinPasswordLength  = 8
	MaxFullNameLength  = 100
	MaxAvatarSizeBytes = 2 << 20
)

var (
	phonePattern = regexp.MustCompile(`^\+?[0-9 ()\-]{7,20}$`)

	avatarExtensions = map[string]string{
		"image/png":  "png",
		"image/jpeg": "jpg",
		"image/gif":  "gif",
		"image/webp": "webp",
	}
)

// PasswordUpdater changes the password behind an access token
type PasswordUpdater interface {
	UpdatePassword(ctx context.Context, token, password string) error
}

// UserUpdater receives profile changes of the signed-in user
type UserUpdater interface {
	UpdateUser(patch authstate.UserPatch)
}

// Service provides the settings operations
type Service struct {
	repo      backend.ProfileRepository
	storage   backend.Storage
	passwords PasswordUpdater
}

func NewService(repo backend.ProfileRepository, storage backend.Storage, passwords PasswordUpdater) *Service {
	return &Service{
		repo:      repo,
		storage:   storage,
		passwords: passwords,
	}
}

func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (backend.Profile, error) {
	return s.repo.GetProfile(ctx, userID)
}

// UpdateProfile validates and persists params, then merges the result into
// store. store may be nil.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, params backend.UpdateProfileParams, store UserUpdater) (backend.Profile, error) {
	if err := validateProfile(&params); err != nil {
		return backend.Profile{}, err
	}

	p, err := s.repo.UpdateProfile(ctx, userID, params)
	if err != nil {
		return backend.Profile{}, mutationFailed(err, "update profile")
	}
	slog.Info("Profile updated", "userId", userID)

	if store != nil {
		store.UpdateUser(patchFrom(p))
	}
	return p, nil
}

// ChangePassword sets a new password for the user behind token
func (s *Service) ChangePassword(ctx context.Context, token, password, confirm string) error {
	if len(password) < MinPasswordLength {
		return apperrors.Validation("password", fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}
	if password != confirm {
		return apperrors.Validation("confirm_password", "does not match")
	}
	if err := s.passwords.UpdatePassword(ctx, token, password); err != nil {
		if k := apperrors.KindOf(err); k == apperrors.KindValidation || k == apperrors.KindUnauthenticated {
			return err
		}
		return apperrors.MutationFailed(err, "change password")
	}
	return nil
}

// UploadAvatar stores a new avatar, saves its public URL in the profile and
// removes the previous avatar object. Removal failures are only logged.
func (s *Service) UploadAvatar(ctx context.Context, userID uuid.UUID, body io.Reader, size int64, contentType string, store UserUpdater) (backend.Profile, error) {
	ext, ok := avatarExtensions[contentType]
	if !ok {
		return backend.Profile{}, apperrors.Validation("avatar", "must be a PNG, JPEG, GIF or WebP image")
	}
	if size <= 0 || size > MaxAvatarSizeBytes {
		return backend.Profile{}, apperrors.Validation("avatar", "must be at most 2 MB")
	}

	current, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return backend.Profile{}, err
	}

	objectPath := fmt.Sprintf("avatars/%s/%s.%s", userID, uuid.NewString(), ext)
	stored, err := s.storage.Upload(ctx, objectPath, io.LimitReader(body, MaxAvatarSizeBytes), contentType)
	if err != nil {
		return backend.Profile{}, mutationFailed(err, "upload avatar")
	}

	url := s.storage.PublicURL(stored)
	p, err := s.repo.UpdateProfile(ctx, userID, backend.UpdateProfileParams{AvatarURL: &url})
	if err != nil {
		s.remove(ctx, stored)
		return backend.Profile{}, mutationFailed(err, "save avatar")
	}

	if current.AvatarURL != nil {
		if old, ok := s.objectPath(*current.AvatarURL); ok && old != stored {
			s.remove(ctx, old)
		}
	}
	if store != nil {
		store.UpdateUser(authstate.UserPatch{AvatarURL: p.AvatarURL})
	}
	return p, nil
}

func (s *Service) remove(ctx context.Context, path string) {
	if err := s.storage.Remove(ctx, []string{path}); err != nil {
		slog.Warn("Failed to remove avatar object", "path", path, "err", err)
	}
}

// objectPath maps a public URL of this storage back to its object path
func (s *Service) objectPath(url string) (string, bool) {
	prefix := s.storage.PublicURL("")
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}

func validateProfile(params *backend.UpdateProfileParams) error {
	if params.FullName != nil {
		name := strings.TrimSpace(*params.FullName)
		switch {
		case name == "":
			return apperrors.Validation("full_name", "must not be empty")
		case len(name) > MaxFullNameLength:
			return apperrors.Validation("full_name", "must be at most 100 characters")
		}
		params.FullName = &name
	}
	if params.Phone != nil {
		phone := strings.TrimSpace(*params.Phone)
		if phone != "" && !phonePattern.MatchString(phone) {
			return apperrors.Validation("phone", "must be a phone number")
		}
		params.Phone = &phone
	}
	if params.AvatarURL != nil {
		return apperrors.Validation("avatar_url", "is set by uploading an avatar")
	}
	return nil
}

func patchFrom(p backend.Profile) authstate.UserPatch {
	return authstate.UserPatch{
		FullName:  p.FullName,
		Phone:     p.Phone,
		AvatarURL: p.AvatarURL,
	}
}

func mutationFailed(err error, op string) error {
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation, apperrors.KindNotFound, apperrors.KindMutationFailed:
		return err
	default:
		return apperrors.MutationFailed(err, op)
	}
}
