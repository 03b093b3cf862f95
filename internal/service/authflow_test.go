package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenleaf/storefront-api/internal/identity"
	"github.com/greenleaf/storefront-api/internal/model"
)

type mockProviderUser struct {
	record    identity.Record
	password  string
	confirmed bool
	code      string
}

type mockProvider struct {
	users map[string]*mockProviderUser
}

func newMockProvider() *mockProvider {
	return &mockProvider{users: make(map[string]*mockProviderUser)}
}

func (m *mockProvider) addUser(email, password string, confirmed bool) *mockProviderUser {
	u := &mockProviderUser{
		record:    identity.Record{ID: uuid.New(), Email: email, Name: "Test User"},
		password:  password,
		confirmed: confirmed,
	}
	m.users[email] = u
	return u
}

func (m *mockProvider) SignIn(_ context.Context, email, password string) (*identity.Record, error) {
	u, ok := m.users[email]
	if !ok || u.password != password {
		return nil, identity.ErrInvalidCredentials
	}
	if !u.confirmed {
		return nil, identity.ErrNotConfirmed
	}
	return &u.record, nil
}

func (m *mockProvider) SignUp(_ context.Context, name, email, password string) error {
	if _, ok := m.users[email]; ok {
		return identity.ErrUserAlreadyExists
	}
	m.users[email] = &mockProviderUser{
		record:   identity.Record{ID: uuid.New(), Email: email, Name: name},
		password: password,
		code:     "123456",
	}
	return nil
}

func (m *mockProvider) ConfirmSignUp(_ context.Context, email, code string) error {
	u, ok := m.users[email]
	if !ok || u.code != code {
		return identity.ErrInvalidCode
	}
	u.confirmed = true
	u.code = ""
	return nil
}

func (m *mockProvider) ResendCode(_ context.Context, email string) error {
	u, ok := m.users[email]
	if !ok {
		return identity.ErrUserNotFound
	}
	u.code = "123456"
	return nil
}

func (m *mockProvider) RequestPasswordReset(_ context.Context, email string) error {
	u, ok := m.users[email]
	if !ok {
		return identity.ErrUserNotFound
	}
	u.code = "654321"
	return nil
}

func (m *mockProvider) ConfirmPasswordReset(_ context.Context, email, code, newPassword string) error {
	u, ok := m.users[email]
	if !ok {
		return identity.ErrUserNotFound
	}
	if u.code != code {
		return identity.ErrInvalidCode
	}
	u.password = newPassword
	u.code = ""
	return nil
}

func (m *mockProvider) SignOut(_ context.Context, _ uuid.UUID) error { return nil }

func (m *mockProvider) GetRecord(_ context.Context, id uuid.UUID) (*identity.Record, error) {
	for _, u := range m.users {
		if u.record.ID == id {
			return &u.record, nil
		}
	}
	return nil, identity.ErrUserNotFound
}

func newTestFlowService(provider identity.Provider, adminEmails ...string) *AuthFlowService {
	return NewAuthFlowService(provider, adminEmails, "test-secret", time.Hour, time.Second, time.Minute)
}

func TestAuthFlow_StartFlow(t *testing.T) {
	svc := newTestFlowService(newMockProvider())
	snap := svc.StartFlow()
	assert.Equal(t, StateAwaitingLoginCredentials, snap.State)
	assert.Empty(t, snap.Error)
	assert.Nil(t, snap.Session)
}

func TestAuthFlow_UnknownFlow(t *testing.T) {
	svc := newTestFlowService(newMockProvider())
	_, err := svc.Login(context.Background(), uuid.New(), "a@b.c", "pw")
	assert.ErrorIs(t, err, ErrFlowNotFound)
}

func TestAuthFlow_Login_BadCredentialsIsRecoverable(t *testing.T) {
	provider := newMockProvider()
	provider.addUser("asha@example.com", "secret", true)
	svc := newTestFlowService(provider)
	flow := svc.StartFlow()

	snap, err := svc.Login(context.Background(), flow.ID, "asha@example.com", "wrong")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingLoginCredentials, snap.State)
	assert.NotEmpty(t, snap.Error)
	assert.Nil(t, snap.Session)

	// The same flow still accepts a retry.
	snap, err = svc.Login(context.Background(), flow.ID, "asha@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, StateLoggedIn, snap.State)
}

func TestAuthFlow_Login_EmptyFields(t *testing.T) {
	svc := newTestFlowService(newMockProvider())
	flow := svc.StartFlow()

	snap, err := svc.Login(context.Background(), flow.ID, "", "")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingLoginCredentials, snap.State)
	assert.Equal(t, "Please fill all fields.", snap.Error)
}

func TestAuthFlow_Login_SuccessIssuesSignedToken(t *testing.T) {
	provider := newMockProvider()
	u := provider.addUser("asha@example.com", "secret", true)
	svc := newTestFlowService(provider)
	flow := svc.StartFlow()

	snap, err := svc.Login(context.Background(), flow.ID, "asha@example.com", "secret")
	require.NoError(t, err)
	require.NotNil(t, snap.Session)
	assert.Equal(t, model.RoleCustomer, snap.Session.Role)

	token, err := jwt.Parse(snap.Session.Token, func(*jwt.Token) (any, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, u.record.ID.String(), claims["sub"])
	assert.Equal(t, "customer", claims["role"])

	// Completed flows are discarded.
	_, err = svc.Snapshot(flow.ID)
	assert.ErrorIs(t, err, ErrFlowNotFound)
}

func TestAuthFlow_Login_AdminAllowlist(t *testing.T) {
	provider := newMockProvider()
	provider.addUser("Boss@Example.com", "secret", true)
	svc := newTestFlowService(provider, "boss@example.com")
	flow := svc.StartFlow()

	snap, err := svc.Login(context.Background(), flow.ID, "Boss@Example.com", "secret")
	require.NoError(t, err)
	require.NotNil(t, snap.Session)
	assert.Equal(t, model.RoleAdmin, snap.Session.Role)
}

func TestAuthFlow_Login_NotConfirmed(t *testing.T) {
	provider := newMockProvider()
	provider.addUser("new@example.com", "secret", false)
	svc := newTestFlowService(provider)
	flow := svc.StartFlow()

	snap, err := svc.Login(context.Background(), flow.ID, "new@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingLoginCredentials, snap.State)
	assert.NotEmpty(t, snap.Error)
}

func TestAuthFlow_SignupOtpRoundTrip(t *testing.T) {
	provider := newMockProvider()
	svc := newTestFlowService(provider)
	flow := svc.StartFlow()

	snap, err := svc.GoToSignup(flow.ID)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingSignupDetails, snap.State)

	snap, err = svc.Register(context.Background(), flow.ID, "Asha", "asha@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingSignupOtp, snap.State)
	assert.NotEmpty(t, snap.Success)

	// Wrong code keeps the step and surfaces the error.
	snap, err = svc.ConfirmSignupOtp(context.Background(), flow.ID, "000000")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingSignupOtp, snap.State)
	assert.Equal(t, "Invalid code. Please try again or resend.", snap.Error)

	snap, err = svc.ConfirmSignupOtp(context.Background(), flow.ID, "123456")
	require.NoError(t, err)
	assert.Equal(t, StateLoggedOut, snap.State)
	assert.Equal(t, "Account confirmed. Please log in.", snap.Success)
	assert.Nil(t, snap.Session, "confirmation does not log in")
}

func TestAuthFlow_Register_MissingFields(t *testing.T) {
	svc := newTestFlowService(newMockProvider())
	flow := svc.StartFlow()
	_, err := svc.GoToSignup(flow.ID)
	require.NoError(t, err)

	snap, err := svc.Register(context.Background(), flow.ID, "Asha", "", "secret")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingSignupDetails, snap.State)
	assert.Equal(t, "Please fill all fields.", snap.Error)
}

func TestAuthFlow_Register_DuplicateEmail(t *testing.T) {
	provider := newMockProvider()
	provider.addUser("asha@example.com", "secret", true)
	svc := newTestFlowService(provider)
	flow := svc.StartFlow()
	_, err := svc.GoToSignup(flow.ID)
	require.NoError(t, err)

	snap, err := svc.Register(context.Background(), flow.ID, "Asha", "asha@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingSignupDetails, snap.State)
	assert.NotEmpty(t, snap.Error)
}

func TestAuthFlow_PasswordReset(t *testing.T) {
	provider := newMockProvider()
	provider.addUser("asha@example.com", "old-secret", true)
	svc := newTestFlowService(provider)
	flow := svc.StartFlow()

	snap, err := svc.GoToForgotPassword(flow.ID)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingForgotPasswordEmail, snap.State)

	snap, err = svc.ForgotPassword(context.Background(), flow.ID, "asha@example.com")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingResetOtp, snap.State)

	snap, err = svc.SubmitResetCode(flow.ID, "654321")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingNewPassword, snap.State)

	snap, err = svc.ConfirmResetAndSetPassword(context.Background(), flow.ID, "new-secret", "new-secret")
	require.NoError(t, err)
	assert.Equal(t, StateLoggedOut, snap.State)
	assert.Equal(t, "Password updated. Please log in.", snap.Success)
	assert.Equal(t, "new-secret", provider.users["asha@example.com"].password)
}

func TestAuthFlow_ForgotPassword_RejectsMalformedEmail(t *testing.T) {
	svc := newTestFlowService(newMockProvider())
	flow := svc.StartFlow()
	_, err := svc.GoToForgotPassword(flow.ID)
	require.NoError(t, err)

	snap, err := svc.ForgotPassword(context.Background(), flow.ID, "not-an-email")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingForgotPasswordEmail, snap.State)
	assert.NotEmpty(t, snap.Error)
}

func TestAuthFlow_NewPassword_LocalValidation(t *testing.T) {
	provider := newMockProvider()
	provider.addUser("asha@example.com", "old-secret", true)
	svc := newTestFlowService(provider)
	flow := svc.StartFlow()
	_, err := svc.GoToForgotPassword(flow.ID)
	require.NoError(t, err)
	_, err = svc.ForgotPassword(context.Background(), flow.ID, "asha@example.com")
	require.NoError(t, err)
	_, err = svc.SubmitResetCode(flow.ID, "654321")
	require.NoError(t, err)

	snap, err := svc.ConfirmResetAndSetPassword(context.Background(), flow.ID, "short", "short")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingNewPassword, snap.State)
	assert.Equal(t, "Password must be at least 6 characters.", snap.Error)

	snap, err = svc.ConfirmResetAndSetPassword(context.Background(), flow.ID, "new-secret", "different")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingNewPassword, snap.State)
	assert.Equal(t, "Passwords do not match.", snap.Error)

	// Old password is untouched after local rejections.
	assert.Equal(t, "old-secret", provider.users["asha@example.com"].password)
}

func TestAuthFlow_Back(t *testing.T) {
	svc := newTestFlowService(newMockProvider())
	flow := svc.StartFlow()
	_, err := svc.GoToSignup(flow.ID)
	require.NoError(t, err)

	snap, err := svc.Back(flow.ID)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingLoginCredentials, snap.State)

	// Backing out of the login step abandons the flow entirely.
	snap, err = svc.Back(flow.ID)
	require.NoError(t, err)
	assert.Equal(t, StateLoggedOut, snap.State)
	_, err = svc.Snapshot(flow.ID)
	assert.ErrorIs(t, err, ErrFlowNotFound)
}

func TestAuthFlow_Back_DiscardsMessages(t *testing.T) {
	svc := newTestFlowService(newMockProvider())
	flow := svc.StartFlow()
	_, err := svc.GoToSignup(flow.ID)
	require.NoError(t, err)
	snap, err := svc.Register(context.Background(), flow.ID, "", "", "")
	require.NoError(t, err)
	require.NotEmpty(t, snap.Error)

	snap, err = svc.Back(flow.ID)
	require.NoError(t, err)
	assert.Empty(t, snap.Error)
	assert.Empty(t, snap.Success)
}

func TestAuthFlow_WrongStateRejected(t *testing.T) {
	svc := newTestFlowService(newMockProvider())
	flow := svc.StartFlow()

	_, err := svc.ConfirmSignupOtp(context.Background(), flow.ID, "123456")
	assert.ErrorIs(t, err, ErrInvalidFlowState)

	_, err = svc.SubmitResetCode(flow.ID, "654321")
	assert.ErrorIs(t, err, ErrInvalidFlowState)

	_, err = svc.GoToSignup(flow.ID)
	require.NoError(t, err)
	_, err = svc.GoToForgotPassword(flow.ID)
	assert.ErrorIs(t, err, ErrInvalidFlowState)
}

func TestAuthFlow_Resend(t *testing.T) {
	provider := newMockProvider()
	svc := newTestFlowService(provider)
	flow := svc.StartFlow()
	_, err := svc.GoToSignup(flow.ID)
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), flow.ID, "Asha", "asha@example.com", "secret")
	require.NoError(t, err)

	snap, err := svc.Resend(context.Background(), flow.ID)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingSignupOtp, snap.State)
	assert.Equal(t, "A new code is on its way.", snap.Success)
}

func TestAuthFlow_Resend_NotAnOtpStep(t *testing.T) {
	svc := newTestFlowService(newMockProvider())
	flow := svc.StartFlow()
	_, err := svc.Resend(context.Background(), flow.ID)
	assert.ErrorIs(t, err, ErrInvalidFlowState)
}

// navigatingProvider lets a test navigate the flow while a provider call is
// still in flight.
type navigatingProvider struct {
	*mockProvider
	onResend func()
}

func (p *navigatingProvider) ResendCode(ctx context.Context, email string) error {
	if p.onResend != nil {
		p.onResend()
	}
	return p.mockProvider.ResendCode(ctx, email)
}

func TestAuthFlow_Resend_DropsResponseAfterBack(t *testing.T) {
	provider := &navigatingProvider{mockProvider: newMockProvider()}
	svc := newTestFlowService(provider)
	flow := svc.StartFlow()
	_, err := svc.GoToSignup(flow.ID)
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), flow.ID, "Asha", "asha@example.com", "secret")
	require.NoError(t, err)

	// The user backs out of the OTP step while the resend is in flight; the
	// late response must not stamp a message onto the new step.
	provider.onResend = func() {
		_, err := svc.Back(flow.ID)
		require.NoError(t, err)
	}
	snap, err := svc.Resend(context.Background(), flow.ID)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingSignupDetails, snap.State)
	assert.Empty(t, snap.Success)
	assert.Empty(t, snap.Error)
}

func TestAuthFlow_SweepDropsOnlyExpiredFlows(t *testing.T) {
	svc := newTestFlowService(newMockProvider())
	stale := svc.StartFlow()
	fresh := svc.StartFlow()

	svc.mu.Lock()
	staleFlow := svc.flows[stale.ID]
	svc.mu.Unlock()
	staleFlow.mu.Lock()
	staleFlow.touched = time.Now().Add(-2 * time.Minute)
	staleFlow.mu.Unlock()

	svc.sweep()

	_, err := svc.Snapshot(stale.ID)
	assert.ErrorIs(t, err, ErrFlowNotFound)
	_, err = svc.Snapshot(fresh.ID)
	assert.NoError(t, err)
}

func TestAuthFlow_SweepRunsAlongsideLogin(t *testing.T) {
	provider := newMockProvider()
	provider.addUser("asha@example.com", "secret", true)
	svc := newTestFlowService(provider)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			svc.sweep()
		}
	}()
	for i := 0; i < 200; i++ {
		flow := svc.StartFlow()
		_, err := svc.Login(context.Background(), flow.ID, "asha@example.com", "wrong")
		require.NoError(t, err)
	}
	<-done
}

func TestAuthFlow_CurrentSession(t *testing.T) {
	provider := newMockProvider()
	u := provider.addUser("boss@example.com", "secret", true)
	svc := newTestFlowService(provider, "boss@example.com")

	session, err := svc.CurrentSession(context.Background(), u.record.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, session.Role)
	assert.Equal(t, "boss@example.com", session.User.Email)
}
