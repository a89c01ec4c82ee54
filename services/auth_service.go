package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"streetlight-watch/apperrors"
	"streetlight-watch/metrics"
	"streetlight-watch/models"
	"streetlight-watch/repository"
)

// ErrTokenExpired is returned by a TokenService for a well-formed token
// past its expiry.
var ErrTokenExpired = errors.New("token expired")

const (
	msgBadCredentials = "Incorrect email or password"
	msgDeactivated    = "Your account has been deactivated. Please contact support."
)

type AuthConfig struct {
	MaxLoginAttempts int
	LockDuration     time.Duration
	ResetTokenTTL    time.Duration
	BcryptCost       int
}

func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		MaxLoginAttempts: 5,
		LockDuration:     time.Hour,
		ResetTokenTTL:    10 * time.Minute,
		BcryptCost:       12,
	}
}

type AuthService struct {
	cfg    AuthConfig
	users  repository.UserRepository
	tokens TokenService
	log    *zap.Logger
	now    func() time.Time
}

func NewAuthService(cfg AuthConfig, users repository.UserRepository, tokens TokenService, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		cfg:    cfg,
		users:  users,
		tokens: tokens,
		log:    log.Named("auth"),
		now:    time.Now,
	}
}

// WithClock replaces the service clock.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// Session is an authenticated user with a freshly signed token.
type Session struct {
	Token string
	User  *models.User
}

func (s *AuthService) newSession(user *models.User) (*Session, error) {
	token, err := s.tokens.Sign(user.ID.Hex(), user.Role)
	if err != nil {
		s.log.Error("failed to sign token", zap.String("user_id", user.ID.Hex()), zap.Error(err))
		return nil, apperrors.Internal(err)
	}
	return &Session{Token: token, User: user}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type RegisterInput struct {
	Name            string      `json:"name" validate:"required,min=2,max=50,personname"`
	Email           string      `json:"email" validate:"required,email"`
	Phone           string      `json:"phone" validate:"required,phone"`
	Password        string      `json:"password" validate:"required,min=6,strongpassword"`
	ConfirmPassword string      `json:"confirmPassword" validate:"required,eqfield=Password"`
	Role            models.Role `json:"role" validate:"omitempty,oneof=citizen worker admin"`
	Address         string      `json:"address" validate:"max=200"`
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := ValidateStruct(in); err != nil {
		return nil, err
	}
	role := in.Role
	if role == "" {
		role = models.RoleCitizen
	}

	user := &models.User{
		Name:     in.Name,
		Email:    in.Email,
		Phone:    in.Phone,
		Password: in.Password,
		Role:     role,
		Address:  in.Address,
		IsActive: true,
	}
	if err := user.HashPassword(s.cfg.BcryptCost); err != nil {
		return nil, apperrors.Internal(err)
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperrors.Conflict("User already exists with this email")
		}
		s.log.Error("failed to create user", zap.Error(err))
		return nil, apperrors.Internal(err)
	}

	s.log.Info("user registered", zap.String("user_id", user.ID.Hex()), zap.String("role", string(role)))
	return s.newSession(user)
}

// Login checks credentials and applies the lockout policy: each wrong
// password counts as a failure, and the failure that reaches
// MaxLoginAttempts locks the account for LockDuration.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.Validation("Please provide email and password")
	}

	user, err := s.users.FindUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		metrics.LoginAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.Unauthorized(msgBadCredentials)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	now := s.now()
	if user.IsLocked(now) {
		metrics.LoginAttempts.WithLabelValues("locked").Inc()
		minutes := int(math.Ceil(user.LockUntil.Sub(now).Minutes()))
		return nil, apperrors.Newf(apperrors.KindLocked, "Account is locked. Try again in %d minutes", minutes)
	}

	if !user.ComparePassword(password) {
		metrics.LoginAttempts.WithLabelValues("failure").Inc()
		return nil, s.recordFailure(ctx, user, now)
	}

	if !user.IsActive || user.IsBlocked {
		return nil, apperrors.Unauthorized(msgDeactivated)
	}

	if err := s.users.RecordLogin(ctx, user.ID, now); err != nil {
		s.log.Error("failed to record login", zap.String("user_id", user.ID.Hex()), zap.Error(err))
		return nil, apperrors.Internal(err)
	}
	user.LoginAttempts = 0
	user.LockUntil = nil
	user.LastLogin = &now

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	return s.newSession(user)
}

func (s *AuthService) recordFailure(ctx context.Context, user *models.User, now time.Time) error {
	var attempts int
	var err error

	if user.LockUntil != nil {
		// The previous lock has expired; start counting again.
		attempts = 1
		err = s.users.ResetLoginAttempts(ctx, user.ID, attempts)
	} else {
		attempts = user.LoginAttempts + 1
		var lockUntil *time.Time
		if attempts >= s.cfg.MaxLoginAttempts {
			until := now.Add(s.cfg.LockDuration)
			lockUntil = &until
		}
		err = s.users.IncrementLoginAttempts(ctx, user.ID, lockUntil)
		if err == nil && lockUntil != nil {
			metrics.AccountLockouts.Inc()
			s.log.Warn("account locked", zap.String("user_id", user.ID.Hex()), zap.Time("lock_until", *lockUntil))
		}
	}
	if err != nil {
		s.log.Error("failed to record login failure", zap.String("user_id", user.ID.Hex()), zap.Error(err))
		return apperrors.Internal(err)
	}

	remaining := s.cfg.MaxLoginAttempts - attempts
	if remaining > 0 {
		return apperrors.Unauthorized(fmt.Sprintf("%s. %d attempts remaining", msgBadCredentials, remaining))
	}
	return apperrors.Unauthorized(fmt.Sprintf("%s. Account locked for %d minutes", msgBadCredentials, int(s.cfg.LockDuration.Minutes())))
}

// Authenticate resolves a session token to its user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, apperrors.Unauthorized("You are not logged in. Please log in to get access.")
	}

	claims, err := s.tokens.Verify(token)
	if errors.Is(err, ErrTokenExpired) {
		return nil, apperrors.Unauthorized("Your token has expired. Please log in again.")
	}
	if err != nil {
		return nil, apperrors.Unauthorized("Invalid token. Please log in again.")
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil, apperrors.Unauthorized("Invalid token. Please log in again.")
	}

	user, err := s.users.FindUserByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Unauthorized("The user belonging to this token no longer exists.")
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	if user.ChangedPasswordAfter(claims.IssuedAt) {
		return nil, apperrors.Unauthorized("User recently changed password. Please log in again.")
	}
	if !user.IsActive || user.IsBlocked {
		return nil, apperrors.Unauthorized(msgDeactivated)
	}
	return user, nil
}

// passwordChangedAt is backdated one second so a token signed in the same
// second as the change stays valid.
func (s *AuthService) passwordChangedAt() time.Time {
	return s.now().Add(-time.Second)
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,strongpassword"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=NewPassword"`
}

func (s *AuthService) ChangePassword(ctx context.Context, actor Actor, in ChangePasswordInput) (*Session, error) {
	if err := ValidateStruct(in); err != nil {
		return nil, err
	}
	user, err := s.loadUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if !user.ComparePassword(in.CurrentPassword) {
		return nil, apperrors.Unauthorized("Your current password is incorrect")
	}
	return s.setPassword(ctx, user, in.NewPassword)
}

func (s *AuthService) setPassword(ctx context.Context, user *models.User, password string) (*Session, error) {
	user.Password = password
	if err := user.HashPassword(s.cfg.BcryptCost); err != nil {
		return nil, apperrors.Internal(err)
	}
	changedAt := s.passwordChangedAt()
	if err := s.users.UpdatePassword(ctx, user.ID, user.Password, changedAt); err != nil {
		s.log.Error("failed to update password", zap.String("user_id", user.ID.Hex()), zap.Error(err))
		return nil, apperrors.Internal(err)
	}
	user.PasswordChangedAt = &changedAt
	user.PasswordResetToken = ""
	user.PasswordResetExpires = nil
	return s.newSession(user)
}

// ForgotPassword issues a reset token for email and returns it. An unknown
// email yields an empty token and no error.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)
	if email == "" {
		return "", apperrors.Validation("Please provide your email")
	}

	user, err := s.users.FindUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", apperrors.Internal(err)
	}

	raw, digest, err := NewResetToken()
	if err != nil {
		return "", apperrors.Internal(err)
	}
	if err := s.users.SetPasswordResetToken(ctx, user.ID, digest, s.now().Add(s.cfg.ResetTokenTTL)); err != nil {
		s.log.Error("failed to store reset token", zap.String("user_id", user.ID.Hex()), zap.Error(err))
		return "", apperrors.Internal(err)
	}
	return raw, nil
}

type ResetPasswordInput struct {
	Password        string `json:"password" validate:"required,min=6,strongpassword"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

func (s *AuthService) ResetPassword(ctx context.Context, token string, in ResetPasswordInput) (*Session, error) {
	if err := ValidateStruct(in); err != nil {
		return nil, err
	}

	user, err := s.users.FindUserByResetToken(ctx, HashResetToken(token), s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.New(apperrors.KindInvalidOrExpiredToken, "Token is invalid or has expired")
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return s.setPassword(ctx, user, in.Password)
}

type ProfileInput struct {
	Name    *string `json:"name" validate:"omitempty,min=2,max=50,personname"`
	Phone   *string `json:"phone" validate:"omitempty,phone"`
	Address *string `json:"address" validate:"omitempty,max=200"`
}

func (s *AuthService) UpdateProfile(ctx context.Context, actor Actor, in ProfileInput) (*models.User, error) {
	if err := ValidateStruct(in); err != nil {
		return nil, err
	}
	if in.Name == nil && in.Phone == nil && in.Address == nil {
		return nil, apperrors.Validation("No updatable fields provided")
	}

	user, err := s.users.UpdateProfile(ctx, actor.ID, repository.ProfileUpdate{
		Name:    in.Name,
		Phone:   in.Phone,
		Address: in.Address,
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("User not found")
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return user, nil
}

func (s *AuthService) Me(ctx context.Context, actor Actor) (*models.User, error) {
	return s.loadUser(ctx, actor.ID)
}

func (s *AuthService) ListUsers(ctx context.Context, actor Actor) ([]models.User, error) {
	if actor.Role != models.RoleAdmin {
		return nil, apperrors.Forbidden("You do not have permission to perform this action")
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return users, nil
}

func (s *AuthService) loadUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := s.users.FindUserByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("User not found")
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return user, nil
}
