package identity

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/greenleaf/storefront-api/internal/model"
	"github.com/greenleaf/storefront-api/internal/repository"
)

// CodeSender delivers a one-time code to an email address. The production hook
// for a mail integration; LogSender just logs the dispatch.
type CodeSender interface {
	SendCode(ctx context.Context, email, purpose, code string) error
}

type LogSender struct{ Log *slog.Logger }

func (s LogSender) SendCode(_ context.Context, email, purpose, _ string) error {
	s.Log.Info("one-time code dispatched", "email", email, "purpose", purpose)
	return nil
}

const (
	purposeSignup = "signup"
	purposeReset  = "reset"
)

// LocalProvider implements Provider against the users table, with bcrypt
// hashes and redis-held one-time codes.
type LocalProvider struct {
	users  repository.UserRepository
	redis  *redis.Client
	sender CodeSender
	otpTTL time.Duration
}

func NewLocalProvider(users repository.UserRepository, redisClient *redis.Client, sender CodeSender, otpTTL time.Duration) *LocalProvider {
	return &LocalProvider{users: users, redis: redisClient, sender: sender, otpTTL: otpTTL}
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*Record, error) {
	user, err := p.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.Confirmed {
		return nil, ErrNotConfirmed
	}
	return toRecord(user), nil
}

func (p *LocalProvider) SignUp(ctx context.Context, name, email, password string) error {
	existing, err := p.users.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("check user: %w", err)
	}
	if existing != nil {
		return ErrUserAlreadyExists
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Email:    email,
		Password: string(hashed),
		Name:     name,
		Role:     model.RoleCustomer,
	}
	if err := p.users.Create(ctx, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return p.dispatchCode(ctx, email, purposeSignup)
}

func (p *LocalProvider) ConfirmSignUp(ctx context.Context, email, code string) error {
	if err := p.checkCode(ctx, email, purposeSignup, code); err != nil {
		return err
	}
	user, err := p.users.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}
	return p.users.MarkConfirmed(ctx, user.ID)
}

func (p *LocalProvider) ResendCode(ctx context.Context, email string) error {
	return p.dispatchCode(ctx, email, purposeSignup)
}

func (p *LocalProvider) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := p.users.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}
	return p.dispatchCode(ctx, email, purposeReset)
}

func (p *LocalProvider) ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error {
	if err := p.checkCode(ctx, email, purposeReset, code); err != nil {
		return err
	}
	user, err := p.users.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return p.users.UpdatePassword(ctx, user.ID, string(hashed))
}

// SignOut is a no-op here: sessions are stateless tokens that simply expire.
func (p *LocalProvider) SignOut(context.Context, uuid.UUID) error { return nil }

func (p *LocalProvider) GetRecord(ctx context.Context, id uuid.UUID) (*Record, error) {
	user, err := p.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return toRecord(user), nil
}

func (p *LocalProvider) dispatchCode(ctx context.Context, email, purpose string) error {
	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	if err := p.redis.Set(ctx, otpKey(purpose, email), code, p.otpTTL).Err(); err != nil {
		return fmt.Errorf("store code: %w", err)
	}
	if err := p.sender.SendCode(ctx, email, purpose, code); err != nil {
		return fmt.Errorf("send code: %w", err)
	}
	return nil
}

func (p *LocalProvider) checkCode(ctx context.Context, email, purpose, code string) error {
	stored, err := p.redis.Get(ctx, otpKey(purpose, email)).Result()
	if err != nil {
		if err == redis.Nil {
			return ErrInvalidCode
		}
		return fmt.Errorf("read code: %w", err)
	}
	if stored != code {
		return ErrInvalidCode
	}
	p.redis.Del(ctx, otpKey(purpose, email))
	return nil
}

func otpKey(purpose, email string) string {
	return "otp:" + purpose + ":" + email
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func toRecord(user *model.User) *Record {
	return &Record{
		ID:       user.ID,
		Email:    user.Email,
		Name:     user.Name,
		RoleAttr: string(user.Role),
		Phone:    user.Phone,
		Address:  user.Address,
	}
}
