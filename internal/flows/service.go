package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Login.ValidateCredentials != nil && s.deps.Token.Verify != nil
}

func (s Service) Login(ctx context.Context, email, secret string) (*LoginResult, error) {
	return RunLogin(ctx, email, secret, s.deps.Login)
}

func (s Service) Redeem(ctx context.Context, email, attemptID, code string) (*LoginResult, error) {
	return RunRedeem(ctx, email, attemptID, code, s.deps.Login)
}

func (s Service) Verify(ctx context.Context, token string) (*TokenRecord, error) {
	return RunVerify(ctx, token, s.deps.Token)
}

func (s Service) Logout(ctx context.Context, token string) error {
	return RunLogout(ctx, token, s.deps.Token)
}

func (s Service) Signup(ctx context.Context, email, secret string, requiresTwoFactor bool) error {
	return RunSignup(ctx, email, secret, requiresTwoFactor, s.deps.Account)
}

func (s Service) DeleteAccount(ctx context.Context, email string) error {
	return RunDeleteAccount(ctx, email, s.deps.Account)
}
