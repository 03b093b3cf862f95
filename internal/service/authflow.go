package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/greenleaf/storefront-api/internal/identity"
	"github.com/greenleaf/storefront-api/internal/model"
)

// FlowState is the current step of an authentication attempt.
type FlowState string

const (
	StateLoggedOut                   FlowState = "logged_out"
	StateAwaitingLoginCredentials    FlowState = "awaiting_login_credentials"
	StateAwaitingSignupDetails       FlowState = "awaiting_signup_details"
	StateAwaitingSignupOtp           FlowState = "awaiting_signup_otp"
	StateAwaitingForgotPasswordEmail FlowState = "awaiting_forgot_password_email"
	StateAwaitingResetOtp            FlowState = "awaiting_reset_otp"
	StateAwaitingNewPassword         FlowState = "awaiting_new_password"
	StateLoggedIn                    FlowState = "logged_in"
)

// backTargets maps each non-initial state to its single back destination.
// Going back discards in-flight form values and any displayed message.
var backTargets = map[FlowState]FlowState{
	StateAwaitingSignupDetails:       StateAwaitingLoginCredentials,
	StateAwaitingForgotPasswordEmail: StateAwaitingLoginCredentials,
	StateAwaitingSignupOtp:           StateAwaitingSignupDetails,
	StateAwaitingResetOtp:            StateAwaitingForgotPasswordEmail,
	StateAwaitingNewPassword:         StateAwaitingResetOtp,
}

var (
	ErrFlowNotFound     = errors.New("auth flow not found or expired")
	ErrInvalidFlowState = errors.New("operation not valid in current flow state")
)

// Flow is one transient authentication attempt. It is never persisted and is
// discarded on completion, cancellation or TTL expiry.
type Flow struct {
	ID    uuid.UUID
	State FlowState

	// Working form values for the attempt.
	email     string
	name      string
	resetCode string

	// Last displayed messages. At most one of the two is set.
	errMsg     string
	successMsg string

	// epoch guards against stale provider responses: it is bumped whenever the
	// user navigates, and a response observed under an older epoch is dropped.
	epoch uint64

	session *Session

	touched time.Time
	mu      sync.Mutex
}

// Session is the product of a successful login.
type Session struct {
	Token string
	User  identity.Record
	Role  model.Role
}

// FlowSnapshot is the externally visible view of a flow.
type FlowSnapshot struct {
	ID      uuid.UUID
	State   FlowState
	Error   string
	Success string
	Session *Session
}

func (f *Flow) snapshot() FlowSnapshot {
	return FlowSnapshot{ID: f.ID, State: f.State, Error: f.errMsg, Success: f.successMsg, Session: f.session}
}

// AuthFlowService sequences login, registration, OTP confirmation and password
// reset. Credential checks are delegated to the identity provider; the service
// only owns step ordering, local validation and message surfacing.
type AuthFlowService struct {
	provider        identity.Provider
	adminEmails     []string
	jwtSecret       []byte
	jwtExpiry       time.Duration
	providerTimeout time.Duration
	flowTTL         time.Duration

	mu    sync.Mutex
	flows map[uuid.UUID]*Flow
	done  chan struct{}
}

func NewAuthFlowService(provider identity.Provider, adminEmails []string, jwtSecret string, jwtExpiry, providerTimeout, flowTTL time.Duration) *AuthFlowService {
	return &AuthFlowService{
		provider:        provider,
		adminEmails:     adminEmails,
		jwtSecret:       []byte(jwtSecret),
		jwtExpiry:       jwtExpiry,
		providerTimeout: providerTimeout,
		flowTTL:         flowTTL,
		flows:           make(map[uuid.UUID]*Flow),
		done:            make(chan struct{}),
	}
}

// Start launches the expiry sweep for abandoned flows.
func (s *AuthFlowService) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *AuthFlowService) Stop() { close(s.done) }

// sweep never holds s.mu and a flow mutex at the same time: touched is only
// read under f.mu, and Back drops flows while holding f.mu.
func (s *AuthFlowService) sweep() {
	s.mu.Lock()
	flows := make([]*Flow, 0, len(s.flows))
	for _, f := range s.flows {
		flows = append(flows, f)
	}
	s.mu.Unlock()

	cutoff := time.Now().Add(-s.flowTTL)
	var expired []uuid.UUID
	for _, f := range flows {
		f.mu.Lock()
		if f.touched.Before(cutoff) {
			expired = append(expired, f.ID)
		}
		f.mu.Unlock()
	}

	if len(expired) == 0 {
		return
	}
	s.mu.Lock()
	for _, id := range expired {
		delete(s.flows, id)
	}
	s.mu.Unlock()
}

// StartFlow begins a fresh attempt on the login step.
func (s *AuthFlowService) StartFlow() FlowSnapshot {
	f := &Flow{ID: uuid.New(), State: StateAwaitingLoginCredentials, touched: time.Now()}
	s.mu.Lock()
	s.flows[f.ID] = f
	s.mu.Unlock()
	return f.snapshot()
}

func (s *AuthFlowService) get(id uuid.UUID) (*Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flows[id]
	if !ok {
		return nil, ErrFlowNotFound
	}
	return f, nil
}

// Snapshot returns the flow's current state for display.
func (s *AuthFlowService) Snapshot(id uuid.UUID) (FlowSnapshot, error) {
	f, err := s.get(id)
	if err != nil {
		return FlowSnapshot{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot(), nil
}

func (s *AuthFlowService) drop(id uuid.UUID) {
	s.mu.Lock()
	delete(s.flows, id)
	s.mu.Unlock()
}

// GoToSignup navigates login -> signup details.
func (s *AuthFlowService) GoToSignup(id uuid.UUID) (FlowSnapshot, error) {
	return s.navigate(id, StateAwaitingLoginCredentials, StateAwaitingSignupDetails)
}

// GoToForgotPassword navigates login -> forgot-password email entry.
func (s *AuthFlowService) GoToForgotPassword(id uuid.UUID) (FlowSnapshot, error) {
	return s.navigate(id, StateAwaitingLoginCredentials, StateAwaitingForgotPasswordEmail)
}

func (s *AuthFlowService) navigate(id uuid.UUID, from, to FlowState) (FlowSnapshot, error) {
	f, err := s.get(id)
	if err != nil {
		return FlowSnapshot{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.State != from {
		return f.snapshot(), ErrInvalidFlowState
	}
	f.transition(to)
	return f.snapshot(), nil
}

// Back returns to the step's single back target, discarding in-flight form
// state and messages. Backing out of the login step abandons the flow.
func (s *AuthFlowService) Back(id uuid.UUID) (FlowSnapshot, error) {
	f, err := s.get(id)
	if err != nil {
		return FlowSnapshot{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	target, ok := backTargets[f.State]
	if !ok {
		if f.State == StateAwaitingLoginCredentials {
			f.transition(StateLoggedOut)
			s.drop(f.ID)
			return f.snapshot(), nil
		}
		return f.snapshot(), ErrInvalidFlowState
	}
	f.transition(target)
	return f.snapshot(), nil
}

// transition moves the flow and resets everything a navigation discards.
// Callers hold f.mu.
func (f *Flow) transition(to FlowState) {
	f.State = to
	f.errMsg = ""
	f.successMsg = ""
	f.resetCode = ""
	f.epoch++
	f.touched = time.Now()
}

// Login delegates the credential check. Provider rejection is recoverable: the
// flow stays on the login step with the message set for display.
func (s *AuthFlowService) Login(ctx context.Context, id uuid.UUID, email, password string) (FlowSnapshot, error) {
	f, err := s.get(id)
	if err != nil {
		return FlowSnapshot{}, err
	}
	f.mu.Lock()
	if f.State != StateAwaitingLoginCredentials {
		defer f.mu.Unlock()
		return f.snapshot(), ErrInvalidFlowState
	}
	if email == "" || password == "" {
		f.errMsg = "Please fill all fields."
		defer f.mu.Unlock()
		return f.snapshot(), nil
	}
	f.email = email
	f.touched = time.Now()
	epoch := f.epoch
	f.mu.Unlock()

	rec, callErr := s.callSignIn(ctx, email, password)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.epoch != epoch {
		// User navigated away while the request was in flight.
		return f.snapshot(), nil
	}
	if callErr != nil {
		if errors.Is(callErr, identity.ErrInvalidCredentials) || errors.Is(callErr, identity.ErrNotConfirmed) {
			f.errMsg = callErr.Error()
			return f.snapshot(), nil
		}
		f.errMsg = "Something went wrong. Please try again later."
		return f.snapshot(), fmt.Errorf("sign in: %w", callErr)
	}

	role := identity.ResolveRole(rec, s.adminEmails)
	token, err := s.generateToken(rec, role)
	if err != nil {
		f.errMsg = "Something went wrong. Please try again later."
		return f.snapshot(), fmt.Errorf("generate token: %w", err)
	}

	f.State = StateLoggedIn
	f.errMsg = ""
	f.successMsg = ""
	f.session = &Session{Token: token, User: *rec, Role: role}
	snap := f.snapshot()
	s.drop(f.ID)
	return snap, nil
}

// Register validates locally, then delegates. Success moves to the signup OTP
// step and a code is dispatched to the supplied email.
func (s *AuthFlowService) Register(ctx context.Context, id uuid.UUID, name, email, password string) (FlowSnapshot, error) {
	f, err := s.get(id)
	if err != nil {
		return FlowSnapshot{}, err
	}
	f.mu.Lock()
	if f.State != StateAwaitingSignupDetails {
		defer f.mu.Unlock()
		return f.snapshot(), ErrInvalidFlowState
	}
	if name == "" || email == "" || password == "" {
		f.errMsg = "Please fill all fields."
		defer f.mu.Unlock()
		return f.snapshot(), nil
	}
	f.name = name
	f.email = email
	f.touched = time.Now()
	epoch := f.epoch
	f.mu.Unlock()

	callErr := s.withTimeout(ctx, func(ctx context.Context) error {
		return s.provider.SignUp(ctx, name, email, password)
	})

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.epoch != epoch {
		return f.snapshot(), nil
	}
	if callErr != nil {
		if errors.Is(callErr, identity.ErrUserAlreadyExists) {
			f.errMsg = callErr.Error()
			return f.snapshot(), nil
		}
		f.errMsg = "Something went wrong. Please try again later."
		return f.snapshot(), fmt.Errorf("sign up: %w", callErr)
	}
	f.State = StateAwaitingSignupOtp
	f.errMsg = ""
	f.successMsg = "We sent a confirmation code to " + email + "."
	f.epoch++
	return f.snapshot(), nil
}

// ConfirmSignupOtp verifies the emailed code. Success lands on LoggedOut with
// a message directing the user to log in; there is no auto-login.
func (s *AuthFlowService) ConfirmSignupOtp(ctx context.Context, id uuid.UUID, code string) (FlowSnapshot, error) {
	f, err := s.get(id)
	if err != nil {
		return FlowSnapshot{}, err
	}
	f.mu.Lock()
	if f.State != StateAwaitingSignupOtp {
		defer f.mu.Unlock()
		return f.snapshot(), ErrInvalidFlowState
	}
	email := f.email
	f.touched = time.Now()
	epoch := f.epoch
	f.mu.Unlock()

	callErr := s.withTimeout(ctx, func(ctx context.Context) error {
		return s.provider.ConfirmSignUp(ctx, email, code)
	})

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.epoch != epoch {
		return f.snapshot(), nil
	}
	if callErr != nil {
		if errors.Is(callErr, identity.ErrInvalidCode) {
			f.errMsg = "Invalid code. Please try again or resend."
			return f.snapshot(), nil
		}
		f.errMsg = "Something went wrong. Please try again later."
		return f.snapshot(), fmt.Errorf("confirm sign up: %w", callErr)
	}
	f.State = StateLoggedOut
	f.errMsg = ""
	f.successMsg = "Account confirmed. Please log in."
	f.epoch++
	snap := f.snapshot()
	s.drop(f.ID)
	return snap, nil
}

// ForgotPassword validates the email shape locally, then delegates a
// reset-code dispatch and moves to the reset OTP step.
func (s *AuthFlowService) ForgotPassword(ctx context.Context, id uuid.UUID, email string) (FlowSnapshot, error) {
	f, err := s.get(id)
	if err != nil {
		return FlowSnapshot{}, err
	}
	f.mu.Lock()
	if f.State != StateAwaitingForgotPasswordEmail {
		defer f.mu.Unlock()
		return f.snapshot(), ErrInvalidFlowState
	}
	if !strings.Contains(email, "@") {
		f.errMsg = "Please enter a valid email address."
		defer f.mu.Unlock()
		return f.snapshot(), nil
	}
	f.email = email
	f.touched = time.Now()
	epoch := f.epoch
	f.mu.Unlock()

	callErr := s.withTimeout(ctx, func(ctx context.Context) error {
		return s.provider.RequestPasswordReset(ctx, email)
	})

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.epoch != epoch {
		return f.snapshot(), nil
	}
	if callErr != nil {
		if errors.Is(callErr, identity.ErrUserNotFound) {
			f.errMsg = callErr.Error()
			return f.snapshot(), nil
		}
		f.errMsg = "Something went wrong. Please try again later."
		return f.snapshot(), fmt.Errorf("request password reset: %w", callErr)
	}
	f.State = StateAwaitingResetOtp
	f.errMsg = ""
	f.successMsg = "We sent a reset code to " + email + "."
	f.epoch++
	return f.snapshot(), nil
}

// SubmitResetCode records the entered code and advances to the new-password
// step. The code itself is only verified by the combined confirmation.
func (s *AuthFlowService) SubmitResetCode(id uuid.UUID, code string) (FlowSnapshot, error) {
	f, err := s.get(id)
	if err != nil {
		return FlowSnapshot{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.State != StateAwaitingResetOtp {
		return f.snapshot(), ErrInvalidFlowState
	}
	if code == "" {
		f.errMsg = "Please enter the code."
		return f.snapshot(), nil
	}
	f.transition(StateAwaitingNewPassword)
	f.resetCode = code
	return f.snapshot(), nil
}

// ConfirmResetAndSetPassword validates the new password locally, then
// delegates the combined OTP + new-password confirmation. Validation failures
// leave the flow unchanged except for the error message.
func (s *AuthFlowService) ConfirmResetAndSetPassword(ctx context.Context, id uuid.UUID, newPassword, confirmPassword string) (FlowSnapshot, error) {
	f, err := s.get(id)
	if err != nil {
		return FlowSnapshot{}, err
	}
	f.mu.Lock()
	if f.State != StateAwaitingNewPassword {
		defer f.mu.Unlock()
		return f.snapshot(), ErrInvalidFlowState
	}
	if len(newPassword) < 6 {
		f.errMsg = "Password must be at least 6 characters."
		defer f.mu.Unlock()
		return f.snapshot(), nil
	}
	if newPassword != confirmPassword {
		f.errMsg = "Passwords do not match."
		defer f.mu.Unlock()
		return f.snapshot(), nil
	}
	email, code := f.email, f.resetCode
	f.touched = time.Now()
	epoch := f.epoch
	f.mu.Unlock()

	callErr := s.withTimeout(ctx, func(ctx context.Context) error {
		return s.provider.ConfirmPasswordReset(ctx, email, code, newPassword)
	})

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.epoch != epoch {
		return f.snapshot(), nil
	}
	if callErr != nil {
		if errors.Is(callErr, identity.ErrInvalidCode) || errors.Is(callErr, identity.ErrUserNotFound) {
			f.errMsg = callErr.Error()
			return f.snapshot(), nil
		}
		f.errMsg = "Something went wrong. Please try again later."
		return f.snapshot(), fmt.Errorf("confirm password reset: %w", callErr)
	}
	f.State = StateLoggedOut
	f.errMsg = ""
	f.successMsg = "Password updated. Please log in."
	f.resetCode = ""
	f.epoch++
	snap := f.snapshot()
	s.drop(f.ID)
	return snap, nil
}

// Resend re-dispatches the one-time code for the current OTP step without
// changing state. Always permitted from an OTP-awaiting state.
func (s *AuthFlowService) Resend(ctx context.Context, id uuid.UUID) (FlowSnapshot, error) {
	f, err := s.get(id)
	if err != nil {
		return FlowSnapshot{}, err
	}
	f.mu.Lock()
	state, email := f.State, f.email
	f.touched = time.Now()
	epoch := f.epoch
	f.mu.Unlock()

	var callErr error
	switch state {
	case StateAwaitingSignupOtp:
		callErr = s.withTimeout(ctx, func(ctx context.Context) error {
			return s.provider.ResendCode(ctx, email)
		})
	case StateAwaitingResetOtp, StateAwaitingNewPassword:
		callErr = s.withTimeout(ctx, func(ctx context.Context) error {
			return s.provider.RequestPasswordReset(ctx, email)
		})
	default:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.snapshot(), ErrInvalidFlowState
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.epoch != epoch {
		return f.snapshot(), nil
	}
	if callErr != nil {
		f.errMsg = "Could not resend the code. Please try again later."
		return f.snapshot(), fmt.Errorf("resend code: %w", callErr)
	}
	f.errMsg = ""
	f.successMsg = "A new code is on its way."
	return f.snapshot(), nil
}

// CurrentSession restores a session from a verified principal id, re-resolving
// the role from the provider record.
func (s *AuthFlowService) CurrentSession(ctx context.Context, userID uuid.UUID) (*Session, error) {
	var rec *identity.Record
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		rec, err = s.provider.GetRecord(ctx, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	role := identity.ResolveRole(rec, s.adminEmails)
	return &Session{User: *rec, Role: role}, nil
}

// SignOut ends the session at the provider. The token itself simply expires.
func (s *AuthFlowService) SignOut(ctx context.Context, userID uuid.UUID) error {
	return s.withTimeout(ctx, func(ctx context.Context) error {
		return s.provider.SignOut(ctx, userID)
	})
}

func (s *AuthFlowService) callSignIn(ctx context.Context, email, password string) (*identity.Record, error) {
	var rec *identity.Record
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		rec, err = s.provider.SignIn(ctx, email, password)
		return err
	})
	return rec, err
}

func (s *AuthFlowService) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()
	return fn(ctx)
}

func (s *AuthFlowService) generateToken(rec *identity.Record, role model.Role) (string, error) {
	claims := jwt.MapClaims{
		"sub":  rec.ID.String(),
		"role": string(role),
		"name": rec.Name,
		"exp":  time.Now().Add(s.jwtExpiry).Unix(),
		"iat":  time.Now().Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}
