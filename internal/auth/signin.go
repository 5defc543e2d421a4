package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
)

var (
	// ErrInvalidCredentials means the user pool rejected the username or password.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrChallengeRequired means the pool answered with a challenge this
	// client cannot complete (MFA, password reset, ...).
	ErrChallengeRequired = errors.New("sign-in requires an unsupported challenge")
)

// InitiateAuthAPI is the subset of the user pool client used for sign-in.
type InitiateAuthAPI interface {
	InitiateAuth(ctx context.Context, in *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
}

var _ InitiateAuthAPI = (*cip.Client)(nil)

// Session is the result of a successful sign-in.
type Session struct {
	UserID       string
	Username     string
	IDToken      string
	RefreshToken string
}

// CognitoSignIn signs users in with the USER_PASSWORD_AUTH flow.
type CognitoSignIn struct {
	client   InitiateAuthAPI
	clientID string
}

// NewCognitoSignIn returns a sign-in helper for the given app client.
func NewCognitoSignIn(client InitiateAuthAPI, clientID string) *CognitoSignIn {
	return &CognitoSignIn{client: client, clientID: clientID}
}

// SignIn exchanges a username and password for an id token.
func (c *CognitoSignIn) SignIn(ctx context.Context, username, password string) (*Session, error) {
	out, err := c.client.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow: types.AuthFlowTypeUserPasswordAuth,
		ClientId: aws.String(c.clientID),
		AuthParameters: map[string]string{
			"USERNAME": username,
			"PASSWORD": password,
		},
	})
	if err != nil {
		var notAuthorized *types.NotAuthorizedException
		var notFound *types.UserNotFoundException
		if errors.As(err, &notAuthorized) || errors.As(err, &notFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("initiating auth: %w", err)
	}
	if out.AuthenticationResult == nil || out.AuthenticationResult.IdToken == nil {
		return nil, fmt.Errorf("%w: %s", ErrChallengeRequired, out.ChallengeName)
	}

	idToken := aws.ToString(out.AuthenticationResult.IdToken)
	claims, err := ParseUnverified(idToken)
	if err != nil {
		return nil, fmt.Errorf("reading id token: %w", err)
	}

	name := claims.Username
	if name == "" {
		name = username
	}
	return &Session{
		UserID:       claims.Subject,
		Username:     name,
		IDToken:      idToken,
		RefreshToken: aws.ToString(out.AuthenticationResult.RefreshToken),
	}, nil
}
