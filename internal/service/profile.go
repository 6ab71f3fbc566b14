package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/college-forum/internal/apperror"
	"github.com/sakif/college-forum/internal/model"
	"github.com/sakif/college-forum/internal/repository"
	"github.com/sakif/college-forum/internal/session"
)

const (
	MaxDisplayNameLength = 80
	MaxBioLength         = 1000
	MaxListEntries       = 30
)

// ProfileInput names the profile fields to change. Nil fields are kept.
// Premium and roles are not part of it: owners cannot grant them.
type ProfileInput struct {
	DisplayName *string  `json:"displayName"`
	Department  *string  `json:"department"`
	Year        *string  `json:"year"`
	Bio         *string  `json:"bio"`
	Skills      []string `json:"skills"`
	Interests   []string `json:"interests"`
}

type ProfileService struct {
	profiles ProfileRepository
	logger   *slog.Logger
}

func NewProfileService(profiles ProfileRepository, logger *slog.Logger) *ProfileService {
	return &ProfileService{profiles: profiles, logger: logger}
}

// EnsureProfile creates the principal's profile with defaults if it does
// not exist yet. Existing profiles are left exactly as they are.
func (s *ProfileService) EnsureProfile(ctx context.Context, p model.Principal) error {
	created, err := s.profiles.EnsureExists(ctx, p)
	if err != nil {
		return fmt.Errorf("ensuring profile %s: %w", p.ID, err)
	}
	if created {
		s.logger.Info("profile created", slog.String("principalID", p.ID))
	}
	return nil
}

func (s *ProfileService) Get(ctx context.Context, id string) (*model.Profile, error) {
	return s.profiles.Get(ctx, id)
}

// Update merges in into the profile of id. Only the owner may update it.
func (s *ProfileService) Update(ctx context.Context, id string, in ProfileInput) (*model.Profile, error) {
	p, ok := session.PrincipalFromContext(ctx)
	if !ok {
		return nil, apperror.AuthRequired("edit a profile")
	}
	if p.ID != id {
		return nil, apperror.Forbidden("you can only edit your own profile")
	}

	u := repository.ProfileUpdate{
		DisplayName: trimmed(in.DisplayName),
		Department:  trimmed(in.Department),
		Year:        trimmed(in.Year),
		Bio:         trimmed(in.Bio),
	}
	if u.DisplayName != nil {
		if *u.DisplayName == "" {
			return nil, apperror.ValidationFailed("displayName", "display name cannot be empty")
		}
		if utf8.RuneCountInString(*u.DisplayName) > MaxDisplayNameLength {
			return nil, apperror.ValidationFailed("displayName",
				fmt.Sprintf("display name must be %d characters or less", MaxDisplayNameLength))
		}
	}
	if u.Bio != nil && utf8.RuneCountInString(*u.Bio) > MaxBioLength {
		return nil, apperror.ValidationFailed("bio",
			fmt.Sprintf("bio must be %d characters or less", MaxBioLength))
	}
	if in.Skills != nil {
		u.Skills = cleanList(in.Skills, MaxListEntries)
	}
	if in.Interests != nil {
		u.Interests = cleanList(in.Interests, MaxListEntries)
	}

	if err := s.profiles.Save(ctx, id, u); err != nil {
		return nil, fmt.Errorf("saving profile: %w", err)
	}
	return s.profiles.Get(ctx, id)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
