package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"clipvault/internal/domain"
	"clipvault/internal/media"
	"clipvault/internal/repository"
)

// RegistrationInput carries the parsed multipart form for one request.
// Request-scoped; the payload readers are consumed during staging.
type RegistrationInput struct {
	Username   string
	Email      string
	FullName   string
	Password   string
	Avatar     *media.Payload
	CoverImage *media.Payload
}

// RegistrationService runs the registration pipeline: validate, duplicate
// pre-check, media staging and upload, credential hashing, record creation.
type RegistrationService interface {
	Register(ctx context.Context, in RegistrationInput) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

type registrationService struct {
	users          repository.UserRepository
	stager         *media.Stager
	maxUploadBytes int64
}

func NewRegistrationService(users repository.UserRepository, stager *media.Stager, maxUploadBytes int64) RegistrationService {
	return &registrationService{
		users:          users,
		stager:         stager,
		maxUploadBytes: maxUploadBytes,
	}
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateRegistration checks presence and shape of the required fields and
// returns every violated field name at once. Pure; no I/O.
func ValidateRegistration(in RegistrationInput, maxUploadBytes int64) *ValidationError {
	var fields []string
	if strings.TrimSpace(in.Username) == "" {
		fields = append(fields, "username")
	}
	if email := strings.TrimSpace(in.Email); email == "" || !emailPattern.MatchString(email) {
		fields = append(fields, "email")
	}
	if strings.TrimSpace(in.FullName) == "" {
		fields = append(fields, "fullname")
	}
	if strings.TrimSpace(in.Password) == "" {
		fields = append(fields, "password")
	}
	if in.Avatar == nil {
		fields = append(fields, "avatar")
	} else if maxUploadBytes > 0 && in.Avatar.Size > maxUploadBytes {
		fields = append(fields, "avatar")
	}
	if in.CoverImage != nil && maxUploadBytes > 0 && in.CoverImage.Size > maxUploadBytes {
		fields = append(fields, "coverImage")
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// HashPassword derives the stored credential from the plaintext. Called by
// the pipeline driver before the record write; the plaintext never reaches
// the repository.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (s *registrationService) Register(ctx context.Context, in RegistrationInput) (*domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	in.Password = strings.TrimSpace(in.Password)

	if verr := ValidateRegistration(in, s.maxUploadBytes); verr != nil {
		return nil, verr
	}

	conflicts, err := s.users.FindIdentityConflicts(ctx, in.Username, in.Email)
	if err != nil {
		return nil, fmt.Errorf("duplicate pre-check: %w", err)
	}
	if len(conflicts) > 0 {
		return nil, &ConflictError{Fields: conflicts}
	}

	avatar, err := s.stager.StageAndUpload(ctx, *in.Avatar)
	if err != nil {
		return nil, err
	}

	var cover *media.StagedAsset
	if in.CoverImage != nil {
		cover, err = s.stager.StageAndUpload(ctx, *in.CoverImage)
		if err != nil {
			s.stager.Discard(ctx, avatar)
			return nil, err
		}
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		s.stager.Discard(ctx, avatar)
		s.stager.Discard(ctx, cover)
		return nil, err
	}

	user := &domain.User{
		Username:     in.Username,
		Email:        in.Email,
		FullName:     in.FullName,
		PasswordHash: hash,
		AvatarURL:    avatar.RemoteURL,
	}
	if cover != nil {
		user.CoverImageURL = cover.RemoteURL
	}

	if _, err := s.users.Create(ctx, user); err != nil {
		s.stager.Discard(ctx, avatar)
		s.stager.Discard(ctx, cover)
		var dup *repository.DuplicateError
		if errors.As(err, &dup) {
			// Lost the race past the pre-check; same conflict kind either way.
			return nil, &ConflictError{Fields: dup.Fields}
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user.PublicView(), nil
}

func (s *registrationService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.PublicView(), nil
}
