package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
)

// CognitoAPI is the subset of the Cognito user pool client used for lookups.
type CognitoAPI interface {
	ListUsers(ctx context.Context, in *cip.ListUsersInput, optFns ...func(*cip.Options)) (*cip.ListUsersOutput, error)
}

var _ CognitoAPI = (*cip.Client)(nil)

// CognitoDirectory looks users up in a Cognito user pool.
type CognitoDirectory struct {
	client     CognitoAPI
	userPoolID string
}

// NewCognitoDirectory returns a Directory over the given user pool.
func NewCognitoDirectory(client CognitoAPI, userPoolID string) *CognitoDirectory {
	return &CognitoDirectory{client: client, userPoolID: userPoolID}
}

// FindByUsername matches the pool's username attribute exactly.
func (d *CognitoDirectory) FindByUsername(ctx context.Context, username string) (*User, error) {
	return d.findOne(ctx, "username", username)
}

// FindByEmail matches the email attribute exactly.
func (d *CognitoDirectory) FindByEmail(ctx context.Context, email string) (*User, error) {
	return d.findOne(ctx, "email", email)
}

func (d *CognitoDirectory) findOne(ctx context.Context, attr, value string) (*User, error) {
	out, err := d.client.ListUsers(ctx, &cip.ListUsersInput{
		UserPoolId: aws.String(d.userPoolID),
		Filter:     aws.String(fmt.Sprintf(`%s = "%s"`, attr, escapeFilter(value))),
		Limit:      aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("listing users by %s: %w", attr, err)
	}
	if len(out.Users) == 0 {
		return nil, ErrUserNotFound
	}

	u := toUser(out.Users[0])
	if u.Subject == "" {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func toUser(ut types.UserType) *User {
	u := &User{Username: aws.ToString(ut.Username)}
	for _, a := range ut.Attributes {
		switch aws.ToString(a.Name) {
		case "sub":
			u.Subject = aws.ToString(a.Value)
		case "email":
			u.Email = aws.ToString(a.Value)
		}
	}
	return u
}

// escapeFilter escapes backslashes and double quotes for a ListUsers filter.
func escapeFilter(v string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v)
}
