// Package cognito implements the identity.Pool interface against an AWS
// Cognito user pool.
package cognito

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"

	"github.com/mfigueredo/tokenbridge/internal/identity"
)

// errCode extracts the Cognito error code for wrapped error messages,
// keeping raw SDK noise out of logs.
func errCode(err error) string {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return ae.ErrorCode()
	}
	return "unknown"
}

// Provider talks to one Cognito user pool through the admin APIs.
type Provider struct {
	client *cip.Client
	poolID string
}

// New builds a Provider using the default AWS credential chain.
func New(ctx context.Context, region, poolID string) (*Provider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("cognito: load aws config: %w", err)
	}
	return &Provider{client: cip.NewFromConfig(cfg), poolID: poolID}, nil
}

// NewWithClient builds a Provider over an existing client. Used by tests
// and by callers that customize the AWS config.
func NewWithClient(client *cip.Client, poolID string) *Provider {
	return &Provider{client: client, poolID: poolID}
}

func (p *Provider) Lookup(ctx context.Context, username string) (*identity.Account, error) {
	out, err := p.client.AdminGetUser(ctx, &cip.AdminGetUserInput{
		UserPoolId: aws.String(p.poolID),
		Username:   aws.String(username),
	})
	if err != nil {
		var nf *types.UserNotFoundException
		if errors.As(err, &nf) {
			return nil, identity.ErrNotFound
		}
		return nil, fmt.Errorf("cognito: admin get user (%s): %w", errCode(err), err)
	}

	acct := &identity.Account{Username: aws.ToString(out.Username)}
	if out.UserCreateDate != nil {
		acct.CreatedAt = *out.UserCreateDate
	}
	for _, a := range out.UserAttributes {
		switch aws.ToString(a.Name) {
		case "email":
			acct.Email = aws.ToString(a.Value)
		case "name":
			acct.DisplayName = aws.ToString(a.Value)
		}
	}
	return acct, nil
}

func (p *Provider) Create(ctx context.Context, username string, attrs []identity.Attribute) error {
	in := &cip.AdminCreateUserInput{
		UserPoolId: aws.String(p.poolID),
		Username:   aws.String(username),
		// No welcome email; the account fronts an external identity.
		MessageAction: types.MessageActionTypeSuppress,
	}
	for _, a := range attrs {
		in.UserAttributes = append(in.UserAttributes, types.AttributeType{
			Name:  aws.String(a.Name),
			Value: aws.String(a.Value),
		})
	}

	if _, err := p.client.AdminCreateUser(ctx, in); err != nil {
		var ex *types.UsernameExistsException
		if errors.As(err, &ex) {
			return identity.ErrExists
		}
		return fmt.Errorf("cognito: admin create user (%s): %w", errCode(err), err)
	}
	return nil
}

func (p *Provider) SetPermanentPassword(ctx context.Context, username, password string) error {
	_, err := p.client.AdminSetUserPassword(ctx, &cip.AdminSetUserPasswordInput{
		UserPoolId: aws.String(p.poolID),
		Username:   aws.String(username),
		Password:   aws.String(password),
		Permanent:  true,
	})
	if err != nil {
		return fmt.Errorf("cognito: admin set user password (%s): %w", errCode(err), err)
	}
	return nil
}

func (p *Provider) AdminInitiateAuth(ctx context.Context, clientID, username, password string) (*identity.TokenBundle, error) {
	out, err := p.client.AdminInitiateAuth(ctx, &cip.AdminInitiateAuthInput{
		UserPoolId: aws.String(p.poolID),
		ClientId:   aws.String(clientID),
		AuthFlow:   types.AuthFlowTypeAdminUserPasswordAuth,
		AuthParameters: map[string]string{
			"USERNAME": username,
			"PASSWORD": password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("cognito: admin initiate auth (%s): %w", errCode(err), err)
	}

	ar := out.AuthenticationResult
	if ar == nil {
		return nil, fmt.Errorf("cognito: empty authentication result")
	}
	return &identity.TokenBundle{
		IDToken:      aws.ToString(ar.IdToken),
		AccessToken:  aws.ToString(ar.AccessToken),
		RefreshToken: aws.ToString(ar.RefreshToken),
		ExpiresIn:    int(ar.ExpiresIn),
	}, nil
}
