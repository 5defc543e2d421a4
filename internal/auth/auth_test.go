package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	ci "github.com/aws/aws-sdk-go-v2/service/cognitoidentity"
	citypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentity/types"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	ciptypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sub = "11111111-1111-1111-1111-111111111111"

func newSigningKey(t *testing.T) (jwk.Key, jwk.Set) {
	t.Helper()

	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	priv, err := jwk.FromRaw(raw)
	require.NoError(t, err)
	require.NoError(t, priv.Set(jwk.KeyIDKey, "test-key"))
	require.NoError(t, priv.Set(jwk.AlgorithmKey, jwa.RS256))

	pub, err := jwk.PublicKeyOf(priv)
	require.NoError(t, err)
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(pub))
	return priv, set
}

func signToken(t *testing.T, key jwk.Key, subject string, expires time.Time) string {
	t.Helper()

	b := jwt.NewBuilder().
		Expiration(expires).
		Claim("cognito:username", "alice").
		Claim("email", "alice@example.com")
	if subject != "" {
		b = b.Subject(subject)
	}
	tok, err := b.Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, key))
	require.NoError(t, err)
	return string(signed)
}

func TestTokenVerifier_Verify(t *testing.T) {
	key, set := newSigningKey(t)
	v := NewStaticTokenVerifier(set)

	claims, err := v.Verify(context.Background(), signToken(t, key, sub, time.Now().Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, sub, claims.Subject)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "alice@example.com", claims.Email)
}

func TestTokenVerifier_RejectsExpired(t *testing.T) {
	key, set := newSigningKey(t)
	v := NewStaticTokenVerifier(set)

	_, err := v.Verify(context.Background(), signToken(t, key, sub, time.Now().Add(-time.Hour)))
	assert.Error(t, err)
}

func TestTokenVerifier_RejectsForeignKey(t *testing.T) {
	_, set := newSigningKey(t)
	other, _ := newSigningKey(t)
	v := NewStaticTokenVerifier(set)

	_, err := v.Verify(context.Background(), signToken(t, other, sub, time.Now().Add(time.Hour)))
	assert.Error(t, err)
}

func TestTokenVerifier_Insecure(t *testing.T) {
	other, _ := newSigningKey(t)
	v, err := NewTokenVerifier(context.Background(), "", true)
	require.NoError(t, err)

	claims, err := v.Verify(context.Background(), signToken(t, other, sub, time.Now().Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, sub, claims.Subject)

	_, err = NewTokenVerifier(context.Background(), "", false)
	assert.ErrorIs(t, err, ErrNoKeys)
}

func TestParseUnverified_FallsBackToUsername(t *testing.T) {
	key, _ := newSigningKey(t)

	claims, err := ParseUnverified(signToken(t, key, "", time.Now().Add(-time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
}

type fakeInitiateAuth struct {
	in  *cip.InitiateAuthInput
	out *cip.InitiateAuthOutput
	err error
}

func (f *fakeInitiateAuth) InitiateAuth(_ context.Context, in *cip.InitiateAuthInput, _ ...func(*cip.Options)) (*cip.InitiateAuthOutput, error) {
	f.in = in
	return f.out, f.err
}

func TestCognitoSignIn(t *testing.T) {
	key, _ := newSigningKey(t)
	idToken := signToken(t, key, sub, time.Now().Add(time.Hour))
	fake := &fakeInitiateAuth{out: &cip.InitiateAuthOutput{
		AuthenticationResult: &ciptypes.AuthenticationResultType{IdToken: aws.String(idToken)},
	}}

	sess, err := NewCognitoSignIn(fake, "client-1").SignIn(context.Background(), "alice", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, sub, sess.UserID)
	assert.Equal(t, "alice", sess.Username)
	assert.Equal(t, idToken, sess.IDToken)

	assert.Equal(t, ciptypes.AuthFlowTypeUserPasswordAuth, fake.in.AuthFlow)
	assert.Equal(t, "client-1", aws.ToString(fake.in.ClientId))
	assert.Equal(t, "hunter2", fake.in.AuthParameters["PASSWORD"])
}

func TestCognitoSignIn_Errors(t *testing.T) {
	fake := &fakeInitiateAuth{err: &ciptypes.NotAuthorizedException{}}
	_, err := NewCognitoSignIn(fake, "client-1").SignIn(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	fake = &fakeInitiateAuth{out: &cip.InitiateAuthOutput{ChallengeName: ciptypes.ChallengeNameTypeSmsMfa}}
	_, err = NewCognitoSignIn(fake, "client-1").SignIn(context.Background(), "alice", "pw")
	assert.ErrorIs(t, err, ErrChallengeRequired)
}

type fakeIdentityPool struct {
	getID *ci.GetIdInput
	creds *ci.GetCredentialsForIdentityInput
}

func (f *fakeIdentityPool) GetId(_ context.Context, in *ci.GetIdInput, _ ...func(*ci.Options)) (*ci.GetIdOutput, error) {
	f.getID = in
	return &ci.GetIdOutput{IdentityId: aws.String("us-east-1:abc")}, nil
}

func (f *fakeIdentityPool) GetCredentialsForIdentity(_ context.Context, in *ci.GetCredentialsForIdentityInput, _ ...func(*ci.Options)) (*ci.GetCredentialsForIdentityOutput, error) {
	f.creds = in
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	return &ci.GetCredentialsForIdentityOutput{Credentials: &citypes.Credentials{
		AccessKeyId:  aws.String("AKIA"),
		SecretKey:    aws.String("secret"),
		SessionToken: aws.String("session"),
		Expiration:   &exp,
	}}, nil
}

func TestIdentityPoolCredentials(t *testing.T) {
	fake := &fakeIdentityPool{}
	provider := LoginProvider("eu-west-1", "eu-west-1_pool")
	assert.Equal(t, "cognito-idp.eu-west-1.amazonaws.com/eu-west-1_pool", provider)

	cfg := ScopedConfig(aws.Config{Region: "eu-west-1"}, fake, "eu-west-1:pool-id", provider, "id-token")
	creds, err := cfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "AKIA", creds.AccessKeyID)
	assert.Equal(t, "session", creds.SessionToken)
	assert.True(t, creds.CanExpire)
	assert.Equal(t, "eu-west-1:pool-id", aws.ToString(fake.getID.IdentityPoolId))
	assert.Equal(t, "id-token", fake.getID.Logins[provider])
	assert.Equal(t, "us-east-1:abc", aws.ToString(fake.creds.IdentityId))
}
