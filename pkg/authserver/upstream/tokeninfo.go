// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package upstream

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	bridgeerrors "github.com/stacklok/mcp-authbridge/pkg/errors"
	"github.com/stacklok/mcp-authbridge/pkg/logger"
	"github.com/stacklok/mcp-authbridge/pkg/networking"
)

// TokenInfo looks up an access token at the upstream tokeninfo endpoint.
// The token travels in the form body, never in the URL.
func (p *GoogleProvider) TokenInfo(ctx context.Context, accessToken string) (*TokenInfo, error) {
	if accessToken == "" {
		return nil, bridgeerrors.NewInvalidArgumentError("access token is required", nil)
	}

	logger.Debugw("requesting upstream tokeninfo", "tokeninfo_endpoint", p.config.TokenInfoURL)

	result, err := networking.FetchJSONWithForm[json.RawMessage](ctx, p.httpClient, p.config.TokenInfoURL,
		url.Values{"access_token": {accessToken}},
		networking.WithMaxResponseSize(maxResponseSize),
	)
	if err != nil {
		return nil, bridgeerrors.NewUpstreamError("tokeninfo request failed", err)
	}

	return parseTokenInfo(result.Data, p.now())
}

// parseTokenInfo reads a tokeninfo payload. Google encodes numbers as
// strings, so values are read through gjson which accepts either form.
func parseTokenInfo(body []byte, now time.Time) (*TokenInfo, error) {
	if !gjson.ValidBytes(body) {
		return nil, bridgeerrors.NewUpstreamError("tokeninfo response is not valid JSON", nil)
	}

	fields := gjson.GetManyBytes(body,
		"aud", "sub", "email", "email_verified", "azp", "access_type", "scope", "exp", "expires_in")

	info := &TokenInfo{
		Audience:        fields[0].String(),
		Subject:         fields[1].String(),
		Email:           fields[2].String(),
		EmailVerified:   fields[3].Bool(),
		AuthorizedParty: fields[4].String(),
		AccessType:      fields[5].String(),
		Scope:           fields[6].String(),
		Scopes:          strings.Fields(fields[6].String()),
		Raw:             json.RawMessage(body),
	}

	switch {
	case fields[7].Int() > 0:
		info.Expiry = time.Unix(fields[7].Int(), 0)
	case fields[8].Int() > 0:
		info.Expiry = now.Add(time.Duration(fields[8].Int()) * time.Second).Truncate(time.Millisecond)
	default:
		logger.Debugw("tokeninfo response carries no expiry", "aud", info.Audience)
	}
	if info.Scopes == nil {
		info.Scopes = []string{}
	}

	return info, nil
}
