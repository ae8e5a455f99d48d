package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/spec-kit/trader-console/internal/api/dto"
	"github.com/spec-kit/trader-console/internal/domain"
	apperrors "github.com/spec-kit/trader-console/pkg/util/errorutil"
)

// Transport is the subset of the request gateway the client needs.
type Transport interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, in, out any) error
	Put(ctx context.Context, path string, in, out any) error
	PostForm(ctx context.Context, path string, form url.Values, out any) error
}

// AuthClient performs the login and registration exchanges.
type AuthClient struct {
	transport Transport
}

// NewAuthClient constructs the client.
func NewAuthClient(transport Transport) *AuthClient {
	return &AuthClient{transport: transport}
}

// Login exchanges identifier/secret for a credential.
func (c *AuthClient) Login(ctx context.Context, identifier, secret string) (domain.Credential, error) {
	form := url.Values{}
	form.Set("username", identifier)
	form.Set("password", secret)

	var resp dto.TokenResponse
	if err := c.transport.PostForm(ctx, "/auth/token", form, &resp); err != nil {
		return "", loginError(err)
	}
	if resp.AccessToken == "" {
		return "", apperrors.NewCorruptCredential("backend returned no access token", nil).WithStep(apperrors.StepLogin)
	}
	return domain.Credential(resp.AccessToken), nil
}

// Register creates the account. It does not log in.
func (c *AuthClient) Register(ctx context.Context, reg domain.Registration) error {
	role := reg.Role
	if role == "" {
		role = domain.RoleTrader
	}
	req := dto.RegisterRequest{
		Username: reg.DisplayName,
		Email:    reg.Identifier,
		Password: reg.Secret,
		Role:     string(role),
	}
	var out dto.UserOut
	if err := c.transport.Post(ctx, "/auth/register", req, &out); err != nil {
		return registerError(err)
	}
	return nil
}

func loginError(err error) error {
	fe, ok := apperrors.AsFetchError(err)
	if !ok {
		return apperrors.NewAuthNetworkError(err).WithStep(apperrors.StepLogin)
	}
	switch fe.Kind {
	case apperrors.FetchUnauthorized, apperrors.FetchRejected:
		msg := fe.Message
		if msg == "" {
			msg = "incorrect username or password"
		}
		return &apperrors.AuthError{Kind: apperrors.AuthInvalidCredentials, Step: apperrors.StepLogin, Message: msg, Err: fe}
	default:
		return &apperrors.AuthError{Kind: apperrors.AuthNetwork, Step: apperrors.StepLogin, Message: "backend unreachable", Err: fe}
	}
}

func registerError(err error) error {
	fe, ok := apperrors.AsFetchError(err)
	if !ok {
		return apperrors.NewAuthNetworkError(err).WithStep(apperrors.StepRegister)
	}
	authErr := &apperrors.AuthError{Step: apperrors.StepRegister, Message: fe.Message, Err: fe}
	switch {
	case fe.Kind == apperrors.FetchRejected && (fe.Status == http.StatusBadRequest || fe.Status == http.StatusConflict):
		authErr.Kind = apperrors.AuthConflict
		if authErr.Message == "" {
			authErr.Message = "account already exists"
		}
	case fe.Kind == apperrors.FetchRejected:
		authErr.Kind = apperrors.AuthValidation
		if authErr.Message == "" {
			authErr.Message = "registration rejected"
		}
	default:
		authErr.Kind = apperrors.AuthNetwork
		authErr.Message = "backend unreachable"
	}
	return authErr
}
