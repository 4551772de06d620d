// Package gateway is the GraphQL boundary of the client. It owns the wire
// shapes of the operations in the backend contract and nothing else; mapping
// wire payloads onto domain entities happens in the session package.
//
// Transport is a plain HTTP POST per request (machinebox/graphql), so every
// call hits the network; there is no response cache to bypass.
package gateway

import (
	"context"
	"net/http"

	"github.com/machinebox/graphql"
)

// TokenSource supplies the bearer token attached to outgoing requests.
// Return "" when no session token exists yet.
type TokenSource func() string

// Client executes the GraphQL operations the session manager depends on.
type Client struct {
	gql    *graphql.Client
	tokens TokenSource
}

// New constructs a gateway client. httpClient may be nil for the default;
// tokens may be nil when no global auth wiring is wanted (tests).
func New(endpoint string, httpClient *http.Client, tokens TokenSource) *Client {
	opts := []graphql.ClientOption{}
	if httpClient != nil {
		opts = append(opts, graphql.WithHTTPClient(httpClient))
	}
	return &Client{gql: graphql.NewClient(endpoint, opts...), tokens: tokens}
}

// run executes req with the global bearer token, unless overrideToken is set,
// in which case that token wins. The override exists for the post-login user
// fetch: the fresh token must be used before the global wiring sees it.
func (c *Client) run(ctx context.Context, req *graphql.Request, overrideToken string, out any) error {
	tok := overrideToken
	if tok == "" && c.tokens != nil {
		tok = c.tokens()
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return c.gql.Run(ctx, req, out)
}

// NamedRole is a backend role reference.
type NamedRole struct {
	Name string `json:"name"`
}

// MeBranch is a backend branch reference.
type MeBranch struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MeBranchMembership pairs a branch with the role held in it.
type MeBranchMembership struct {
	Branch MeBranch  `json:"branch"`
	Role   NamedRole `json:"role"`
}

// MeUser is the "who am I" payload.
type MeUser struct {
	ID             string               `json:"id"`
	Email          string               `json:"email"`
	FirstName      string               `json:"firstName"`
	LastName       string               `json:"lastName"`
	Roles          []NamedRole          `json:"roles"`
	UserBranches   []MeBranchMembership `json:"userBranches"`
	OrganisationID string               `json:"organisationId"`
}

// RoleNames flattens the backend role references for derivation helpers.
func (u *MeUser) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}

// OpResult is the backend's {success, message} wrapper.
type OpResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// MFASetup is the MFA enrollment payload.
type MFASetup struct {
	QRCodeURL string `json:"qrCodeUrl"`
	Secret    string `json:"secret"`
}

// RegisteredUser is the created-account summary.
type RegisteredUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// UpdatedUser carries the canonical profile fields after an update.
type UpdatedUser struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

const meQuery = `
query Me {
  me {
    id
    email
    firstName
    lastName
    organisationId
    roles { name }
    userBranches {
      branch { id name }
      role { name }
    }
  }
}`

// Me resolves the current user from the bearer token. overrideToken, when
// non-empty, replaces the global token for this request only. A nil user with
// a nil error means the backend resolved no principal for the token.
func (c *Client) Me(ctx context.Context, overrideToken string) (*MeUser, error) {
	var resp struct {
		Me *MeUser `json:"me"`
	}
	if err := c.run(ctx, graphql.NewRequest(meQuery), overrideToken, &resp); err != nil {
		return nil, err
	}
	return resp.Me, nil
}

const loginMutation = `
mutation Login($email: String!, $password: String!) {
  login(email: $email, password: $password)
}`

// Login exchanges credentials for an opaque bearer token. The mutation
// returns a bare token string, not a structured session object.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	req := graphql.NewRequest(loginMutation)
	req.Var("email", email)
	req.Var("password", password)
	var resp struct {
		Login string `json:"login"`
	}
	if err := c.run(ctx, req, "", &resp); err != nil {
		return "", err
	}
	return resp.Login, nil
}

const registerMutation = `
mutation Register($input: RegisterInput!) {
  register(input: $input) {
    id
    email
    firstName
    lastName
  }
}`

// Register creates a new account and returns its summary.
func (c *Client) Register(ctx context.Context, email, password, firstName, lastName, branchID string) (*RegisteredUser, error) {
	req := graphql.NewRequest(registerMutation)
	req.Var("input", map[string]string{
		"email":     email,
		"password":  password,
		"firstName": firstName,
		"lastName":  lastName,
		"branchId":  branchID,
	})
	var resp struct {
		Register *RegisteredUser `json:"register"`
	}
	if err := c.run(ctx, req, "", &resp); err != nil {
		return nil, err
	}
	return resp.Register, nil
}

const logoutMutation = `
mutation Logout {
  logout { success message }
}`

// Logout invalidates the server-side session.
func (c *Client) Logout(ctx context.Context) (*OpResult, error) {
	var resp struct {
		Logout *OpResult `json:"logout"`
	}
	if err := c.run(ctx, graphql.NewRequest(logoutMutation), "", &resp); err != nil {
		return nil, err
	}
	return resp.Logout, nil
}

const forgotPasswordMutation = `
mutation ForgotPassword($email: String!) {
  forgotPassword(email: $email) { success message }
}`

// ForgotPassword triggers the password-reset flow for email.
func (c *Client) ForgotPassword(ctx context.Context, email string) (*OpResult, error) {
	req := graphql.NewRequest(forgotPasswordMutation)
	req.Var("email", email)
	var resp struct {
		ForgotPassword *OpResult `json:"forgotPassword"`
	}
	if err := c.run(ctx, req, "", &resp); err != nil {
		return nil, err
	}
	return resp.ForgotPassword, nil
}

const resendVerificationMutation = `
mutation ResendVerificationEmail($email: String!) {
  resendVerificationEmail(email: $email) { success message }
}`

// ResendVerification re-sends the account verification email.
func (c *Client) ResendVerification(ctx context.Context, email string) (*OpResult, error) {
	req := graphql.NewRequest(resendVerificationMutation)
	req.Var("email", email)
	var resp struct {
		ResendVerificationEmail *OpResult `json:"resendVerificationEmail"`
	}
	if err := c.run(ctx, req, "", &resp); err != nil {
		return nil, err
	}
	return resp.ResendVerificationEmail, nil
}

const updateUserMutation = `
mutation UpdateUser($input: UpdateUserInput!) {
  updateUser(input: $input) { firstName lastName }
}`

// UpdateUser persists profile edits. Only first/last name are part of the
// mutation input today.
func (c *Client) UpdateUser(ctx context.Context, firstName, lastName string) (*UpdatedUser, error) {
	req := graphql.NewRequest(updateUserMutation)
	req.Var("input", map[string]string{"firstName": firstName, "lastName": lastName})
	var resp struct {
		UpdateUser *UpdatedUser `json:"updateUser"`
	}
	if err := c.run(ctx, req, "", &resp); err != nil {
		return nil, err
	}
	return resp.UpdateUser, nil
}

const setupMFAMutation = `
mutation SetupMfa {
  setupMfa { qrCodeUrl secret }
}`

// SetupMFA begins MFA enrollment.
func (c *Client) SetupMFA(ctx context.Context) (*MFASetup, error) {
	var resp struct {
		SetupMfa *MFASetup `json:"setupMfa"`
	}
	if err := c.run(ctx, graphql.NewRequest(setupMFAMutation), "", &resp); err != nil {
		return nil, err
	}
	return resp.SetupMfa, nil
}

const verifyMFAMutation = `
mutation VerifyMfa($code: String!) {
  verifyMfa(code: $code) { success message }
}`

// VerifyMFA confirms an enrollment code.
func (c *Client) VerifyMFA(ctx context.Context, code string) (*OpResult, error) {
	req := graphql.NewRequest(verifyMFAMutation)
	req.Var("code", code)
	var resp struct {
		VerifyMfa *OpResult `json:"verifyMfa"`
	}
	if err := c.run(ctx, req, "", &resp); err != nil {
		return nil, err
	}
	return resp.VerifyMfa, nil
}

const disableMFAMutation = `
mutation DisableMfa {
  disableMfa { success message }
}`

// DisableMFA turns MFA off for the current user.
func (c *Client) DisableMFA(ctx context.Context) (*OpResult, error) {
	var resp struct {
		DisableMfa *OpResult `json:"disableMfa"`
	}
	if err := c.run(ctx, graphql.NewRequest(disableMFAMutation), "", &resp); err != nil {
		return nil, err
	}
	return resp.DisableMfa, nil
}
