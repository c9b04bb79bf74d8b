// Package auth provides the authenticated principal of a request and the
// helpers to carry it through a request context.
package auth

import (
	"encoding/json"
	"fmt"
)

// Strategy names how a principal authenticated.
type Strategy string

const (
	// StrategyOAuth is a principal authenticated by an introspected bearer token.
	StrategyOAuth Strategy = "oauth"

	// StrategyAPIKey is a principal authenticated by an x-api-key header.
	StrategyAPIKey Strategy = "apikey"
)

// OAuthIdentity holds the fields specific to bearer-token principals.
type OAuthIdentity struct {
	// UpstreamUserID is the upstream 'sub' claim.
	UpstreamUserID string
	Scopes         []string
}

// APIKeyIdentity holds the fields specific to API key principals.
type APIKeyIdentity struct {
	FirstName   string
	LastName    string
	AccountType string
}

// Principal is the authenticated caller of a request.
// Exactly one of OAuth and APIKey is set, matching Strategy.
type Principal struct {
	Strategy Strategy
	Email    string

	OAuth  *OAuthIdentity
	APIKey *APIKeyIdentity
}

// NewOAuthPrincipal creates a bearer-token principal.
func NewOAuthPrincipal(email, upstreamUserID string, scopes []string) *Principal {
	if scopes == nil {
		scopes = []string{}
	}
	return &Principal{
		Strategy: StrategyOAuth,
		Email:    email,
		OAuth: &OAuthIdentity{
			UpstreamUserID: upstreamUserID,
			Scopes:         scopes,
		},
	}
}

// NewAPIKeyPrincipal creates an API key principal.
func NewAPIKeyPrincipal(email, firstName, lastName, accountType string) *Principal {
	return &Principal{
		Strategy: StrategyAPIKey,
		Email:    email,
		APIKey: &APIKeyIdentity{
			FirstName:   firstName,
			LastName:    lastName,
			AccountType: accountType,
		},
	}
}

// String returns a representation safe to log. Only the strategy is shown.
func (p *Principal) String() string {
	if p == nil {
		return "<nil>"
	}
	return fmt.Sprintf("Principal{Strategy:%q}", p.Strategy)
}

// MarshalJSON renders the principal in the shape exposed to MCP tools.
func (p *Principal) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}

	type safePrincipal struct {
		Strategy       Strategy `json:"strategy"`
		Email          string   `json:"email"`
		UpstreamUserID string   `json:"upstream_user_id,omitempty"`
		Scopes         []string `json:"scopes,omitempty"`
		FirstName      string   `json:"first_name,omitempty"`
		LastName       string   `json:"last_name,omitempty"`
		AccountType    string   `json:"type,omitempty"`
	}

	out := safePrincipal{Strategy: p.Strategy, Email: p.Email}
	if p.OAuth != nil {
		out.UpstreamUserID = p.OAuth.UpstreamUserID
		out.Scopes = p.OAuth.Scopes
	}
	if p.APIKey != nil {
		out.FirstName = p.APIKey.FirstName
		out.LastName = p.APIKey.LastName
		out.AccountType = p.APIKey.AccountType
	}
	return json.Marshal(&out)
}
