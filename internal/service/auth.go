package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/college-forum/internal/auth"
	"github.com/sakif/college-forum/internal/identity"
	"github.com/sakif/college-forum/internal/model"
)

// AuthService completes sign-in: it resolves an OAuth code to a principal,
// makes sure the principal has a profile, and issues the session token.
type AuthService struct {
	provider identity.Authenticator
	tokens   *auth.TokenService
	profiles *ProfileService
	logger   *slog.Logger
}

func NewAuthService(
	provider identity.Authenticator,
	tokens *auth.TokenService,
	profiles *ProfileService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		provider: provider,
		tokens:   tokens,
		profiles: profiles,
		logger:   logger,
	}
}

// AuthResult is what the OAuth callback hands back to the browser.
type AuthResult struct {
	Principal model.Principal
	Token     string
}

// Login exchanges an OAuth authorization code. A failure to create the
// profile is logged but does not fail the sign-in; the next sign-in
// retries it.
func (s *AuthService) Login(ctx context.Context, code string) (*AuthResult, error) {
	p, err := s.provider.Authenticate(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("service/auth: authenticating: %w", err)
	}

	if err := s.profiles.EnsureProfile(ctx, p); err != nil {
		s.logger.Warn("profile not ensured at sign-in",
			slog.String("principalID", p.ID),
			slog.String("error", err.Error()),
		)
	}

	token, err := s.tokens.Generate(p)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token: %w", err)
	}

	s.logger.Info("principal authenticated",
		slog.String("principalID", p.ID),
	)
	return &AuthResult{Principal: p, Token: token}, nil
}
