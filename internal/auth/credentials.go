package auth

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	ci "github.com/aws/aws-sdk-go-v2/service/cognitoidentity"
)

// IdentityPoolAPI is the subset of the Cognito identity client used to
// exchange id tokens for AWS credentials.
type IdentityPoolAPI interface {
	GetId(ctx context.Context, in *ci.GetIdInput, optFns ...func(*ci.Options)) (*ci.GetIdOutput, error)
	GetCredentialsForIdentity(ctx context.Context, in *ci.GetCredentialsForIdentityInput, optFns ...func(*ci.Options)) (*ci.GetCredentialsForIdentityOutput, error)
}

var _ IdentityPoolAPI = (*ci.Client)(nil)

// LoginProvider returns the identity-pool login key of a user pool.
func LoginProvider(region, userPoolID string) string {
	return fmt.Sprintf("cognito-idp.%s.amazonaws.com/%s", region, userPoolID)
}

// IdentityPoolCredentials is an aws.CredentialsProvider that trades a
// user's id token for temporary credentials scoped to that user.
type IdentityPoolCredentials struct {
	client   IdentityPoolAPI
	poolID   string
	provider string
	idToken  string
}

var _ aws.CredentialsProvider = (*IdentityPoolCredentials)(nil)

// NewIdentityPoolCredentials returns a provider for one id token.
func NewIdentityPoolCredentials(client IdentityPoolAPI, identityPoolID, provider, idToken string) *IdentityPoolCredentials {
	return &IdentityPoolCredentials{
		client:   client,
		poolID:   identityPoolID,
		provider: provider,
		idToken:  idToken,
	}
}

// Retrieve implements aws.CredentialsProvider.
func (p *IdentityPoolCredentials) Retrieve(ctx context.Context) (aws.Credentials, error) {
	logins := map[string]string{p.provider: p.idToken}

	id, err := p.client.GetId(ctx, &ci.GetIdInput{
		IdentityPoolId: aws.String(p.poolID),
		Logins:         logins,
	})
	if err != nil {
		return aws.Credentials{}, fmt.Errorf("getting identity id: %w", err)
	}

	out, err := p.client.GetCredentialsForIdentity(ctx, &ci.GetCredentialsForIdentityInput{
		IdentityId: id.IdentityId,
		Logins:     logins,
	})
	if err != nil {
		return aws.Credentials{}, fmt.Errorf("getting credentials for identity: %w", err)
	}
	if out.Credentials == nil {
		return aws.Credentials{}, fmt.Errorf("identity %s returned no credentials", aws.ToString(id.IdentityId))
	}

	creds := aws.Credentials{
		AccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
		SecretAccessKey: aws.ToString(out.Credentials.SecretKey),
		SessionToken:    aws.ToString(out.Credentials.SessionToken),
		Source:          "CognitoIdentityPool",
	}
	if out.Credentials.Expiration != nil {
		creds.CanExpire = true
		creds.Expires = *out.Credentials.Expiration
	}
	return creds, nil
}

// ScopedConfig copies base and swaps in cached identity-pool credentials
// for idToken.
func ScopedConfig(base aws.Config, client IdentityPoolAPI, identityPoolID, provider, idToken string) aws.Config {
	cfg := base.Copy()
	cfg.Credentials = aws.NewCredentialsCache(NewIdentityPoolCredentials(client, identityPoolID, provider, idToken))
	return cfg
}
