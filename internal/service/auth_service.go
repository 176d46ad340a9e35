package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"bibliotech/internal/auth"
	"bibliotech/internal/config"
	"bibliotech/internal/database"
	"bibliotech/internal/domain"
	"bibliotech/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID    int64
	Role      string
	SessionID string
}

func (p *Principal) IsAdmin() bool {
	return p.Role == models.RoleAdmin
}

// AuthResult is returned by every successful sign-in.
type AuthResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expira_em"`
	User      *models.User `json:"usuario"`
}

// GoogleAuthenticator is the OAuth code flow used for Google sign-in.
type GoogleAuthenticator interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GoogleProfile, error)
}

type AuthService struct {
	users    domain.UserRepository
	sessions domain.SessionRepository
	presence domain.PresenceRepository
	tokens   *auth.TokenManager
	google   GoogleAuthenticator
	cfg      *config.Config
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewAuthService(
	users domain.UserRepository,
	sessions domain.SessionRepository,
	presence domain.PresenceRepository,
	tokens *auth.TokenManager,
	google GoogleAuthenticator,
	cfg *config.Config,
	logger *zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		presence: presence,
		tokens:   tokens,
		google:   google,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a password account and signs it in.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" {
		return nil, fmt.Errorf("nome is required: %w", ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("invalid email: %w", ErrValidation)
	}
	if utf8.RuneCountInString(password) < models.MinPasswordLength {
		return nil, fmt.Errorf("senha must have at least %d characters: %w", models.MinPasswordLength, ErrValidation)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &models.User{Name: name, Email: email, PasswordHash: &hash, Role: s.roleFor(email)}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("user_id", user.ID).Str("role", user.Role).Msg("User registered")
	return s.startSession(ctx, user)
}

// Login checks a password. Attempts are rate limited per email and every
// failure looks the same to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("email and senha are required: %w", ErrValidation)
	}

	allowed, err := s.presence.CheckRateLimit(ctx, "login:"+email, s.cfg.Auth.LoginRateLimit, s.cfg.Auth.LoginRateWindow)
	if err != nil {
		return nil, fmt.Errorf("check login rate limit: %w", err)
	}
	if !allowed {
		return nil, ErrRateLimited
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("unknown email: %w", ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if user.PasswordHash == nil {
		return nil, fmt.Errorf("account has no password: %w", ErrUnauthorized)
	}
	if err := auth.CheckPassword(*user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrWrongPassword) {
			return nil, fmt.Errorf("wrong password: %w", ErrUnauthorized)
		}
		return nil, err
	}

	if err := s.syncAdminRole(ctx, user); err != nil {
		return nil, err
	}
	return s.startSession(ctx, user)
}

// GoogleAuthURL returns the consent URL for the given anti-forgery state.
func (s *AuthService) GoogleAuthURL(state string) (string, error) {
	if s.google == nil {
		return "", ErrGoogleDisabled
	}
	return s.google.AuthCodeURL(state), nil
}

// GoogleLogin finishes the OAuth flow. The account is found by Google id,
// then by verified email (linking it), and is created otherwise.
func (s *AuthService) GoogleLogin(ctx context.Context, code string) (*AuthResult, error) {
	if s.google == nil {
		return nil, ErrGoogleDisabled
	}
	if code == "" {
		return nil, fmt.Errorf("missing code: %w", ErrValidation)
	}

	profile, err := s.google.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Google exchange failed")
		return nil, fmt.Errorf("google exchange: %w", ErrUnauthorized)
	}

	user, err := s.users.GetUserByGoogleID(ctx, profile.ID)
	if err == nil {
		if err := s.syncAdminRole(ctx, user); err != nil {
			return nil, err
		}
		return s.startSession(ctx, user)
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	// Linking and account creation both trust the email, including for the
	// admin role.
	if !profile.VerifiedEmail {
		return nil, fmt.Errorf("unverified google email: %w", ErrUnauthorized)
	}

	email := normalizeEmail(profile.Email)
	user, err = s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if err := s.users.LinkGoogleAccount(ctx, user.ID, profile.ID); err != nil {
			return nil, err
		}
		if err := s.syncAdminRole(ctx, user); err != nil {
			return nil, err
		}
	case errors.Is(err, database.ErrNotFound):
		googleID := profile.ID
		name := strings.TrimSpace(profile.Name)
		if name == "" {
			name = email
		}
		user = &models.User{Name: name, Email: email, GoogleID: &googleID, Role: s.roleFor(email)}
		if err := s.users.CreateUser(ctx, user); err != nil {
			return nil, err
		}
		s.logger.Info().Int64("user_id", user.ID).Msg("User registered with Google")
	default:
		return nil, err
	}
	return s.startSession(ctx, user)
}

// Authenticate resolves a bearer token. The token's session must still be
// open.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*Principal, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	session, err := s.sessions.GetSession(ctx, claims.ID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("unknown session: %w", ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if !session.IsOpen() || session.UserID != userID {
		return nil, fmt.Errorf("session ended: %w", ErrUnauthorized)
	}

	return &Principal{UserID: userID, Role: claims.Role, SessionID: claims.ID}, nil
}

// Logout ends the session behind the caller's token.
func (s *AuthService) Logout(ctx context.Context, p *Principal) error {
	if err := s.sessions.EndSession(ctx, p.SessionID, s.now()); err != nil {
		return err
	}
	if err := s.presence.MarkOffline(ctx, p.UserID); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", p.UserID).Msg("Failed to clear presence")
	}
	return nil
}

// Heartbeat records activity on the caller's session and refreshes
// presence.
func (s *AuthService) Heartbeat(ctx context.Context, p *Principal) error {
	if err := s.sessions.TouchSession(ctx, p.SessionID, s.now()); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("session ended: %w", ErrUnauthorized)
		}
		return err
	}
	if err := s.presence.MarkOnline(ctx, p.UserID, s.presenceTTL()); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", p.UserID).Msg("Failed to refresh presence")
	}
	return nil
}

func (s *AuthService) Me(ctx context.Context, p *Principal) (*models.User, error) {
	return s.users.GetUserByID(ctx, p.UserID)
}

func (s *AuthService) startSession(ctx context.Context, user *models.User) (*AuthResult, error) {
	session := &models.Session{ID: uuid.NewString(), UserID: user.ID}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	token, expires, err := s.tokens.Issue(user, session.ID)
	if err != nil {
		return nil, err
	}

	if err := s.presence.MarkOnline(ctx, user.ID, s.presenceTTL()); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", user.ID).Msg("Failed to mark user online")
	}
	return &AuthResult{Token: token, ExpiresAt: expires, User: user}, nil
}

func (s *AuthService) roleFor(email string) string {
	if s.cfg.IsAdminEmail(email) {
		return models.RoleAdmin
	}
	return models.RoleReader
}

// syncAdminRole promotes accounts listed as admins in the configuration.
func (s *AuthService) syncAdminRole(ctx context.Context, user *models.User) error {
	if user.IsAdmin() || !s.cfg.IsAdminEmail(user.Email) {
		return nil
	}
	if err := s.users.SetUserRole(ctx, user.ID, models.RoleAdmin); err != nil {
		return err
	}
	user.Role = models.RoleAdmin
	return nil
}

func (s *AuthService) presenceTTL() time.Duration {
	if s.cfg.Auth.PresenceTTL > 0 {
		return s.cfg.Auth.PresenceTTL
	}
	return models.DefaultPresenceTTL
}
