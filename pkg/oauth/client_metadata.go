// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"encoding/json"
	"slices"
	"time"
)

// ClientMetadata is a registered OAuth client (RFC 7591 Section 2 and 3.2.1).
//
// Fields outside the ones modelled here are kept in Extra and written back
// unchanged, so a DCR registration is returned exactly as it was submitted
// plus the server-issued fields.
type ClientMetadata struct {
	ClientID                string   `json:"client_id"`
	ClientSecret            string   `json:"client_secret,omitempty"`
	ClientIDIssuedAt        int64    `json:"client_id_issued_at,omitempty"`
	ClientSecretExpiresAt   int64    `json:"client_secret_expires_at,omitempty"`
	RedirectURIs            []string `json:"redirect_uris"`
	ClientName              string   `json:"client_name,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
	ClientURI               string   `json:"client_uri,omitempty"`
	LogoURI                 string   `json:"logo_uri,omitempty"`

	// Extra holds every other provider-defined metadata field.
	Extra map[string]json.RawMessage `json:"-"`
}

type clientMetadataAlias ClientMetadata

var knownClientFields = []string{
	"client_id", "client_secret", "client_id_issued_at", "client_secret_expires_at",
	"redirect_uris", "client_name", "token_endpoint_auth_method", "grant_types",
	"response_types", "scope", "client_uri", "logo_uri",
}

// UnmarshalJSON decodes the known fields and stashes the rest in Extra.
func (c *ClientMetadata) UnmarshalJSON(data []byte) error {
	var alias clientMetadataAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, k := range knownClientFields {
		delete(raw, k)
	}

	*c = ClientMetadata(alias)
	if len(raw) > 0 {
		c.Extra = raw
	}
	return nil
}

// MarshalJSON encodes the known fields merged with Extra. Known fields win
// over an Extra entry with the same name.
func (c ClientMetadata) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(clientMetadataAlias(c))
	if err != nil {
		return nil, err
	}
	if len(c.Extra) == 0 {
		return known, nil
	}

	merged := make(map[string]json.RawMessage, len(c.Extra)+len(knownClientFields))
	for k, v := range c.Extra {
		merged[k] = v
	}
	var knownMap map[string]json.RawMessage
	if err := json.Unmarshal(known, &knownMap); err != nil {
		return nil, err
	}
	for k, v := range knownMap {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// Mechanism returns how this client is registered.
func (c *ClientMetadata) Mechanism() RegistrationMechanism {
	return MechanismFor(c.ClientID)
}

// IsPublic reports whether the client authenticates without a secret.
func (c *ClientMetadata) IsPublic() bool {
	return c.ClientSecret == "" || c.TokenEndpointAuthMethod == TokenEndpointAuthMethodNone
}

// SecretExpired reports whether the client secret has expired at now.
// A zero ClientSecretExpiresAt never expires (RFC 7591 Section 3.2.1).
func (c *ClientMetadata) SecretExpired(now time.Time) bool {
	return c.ClientSecretExpiresAt != 0 && c.ClientSecretExpiresAt < now.Unix()
}

// HasRedirectURI reports whether uri is registered for the client.
func (c *ClientMetadata) HasRedirectURI(uri string) bool {
	return slices.Contains(c.RedirectURIs, uri)
}

// Redacted returns a copy without the client secret, suitable for logging.
func (c *ClientMetadata) Redacted() ClientMetadata {
	cp := *c
	if cp.ClientSecret != "" {
		cp.ClientSecret = "REDACTED"
	}
	return cp
}
