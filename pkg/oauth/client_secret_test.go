// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateClientSecret(t *testing.T) {
	t.Parallel()

	a, err := GenerateClientSecret()
	require.NoError(t, err)
	b, err := GenerateClientSecret()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	raw, err := base64.RawURLEncoding.DecodeString(a)
	require.NoError(t, err)
	assert.Len(t, raw, clientSecretBytes)
}

func TestClientSecretMatches(t *testing.T) {
	t.Parallel()

	assert.True(t, ClientSecretMatches("s3cret", "s3cret"))
	assert.False(t, ClientSecretMatches("s3cret", "s3cre"))
	assert.False(t, ClientSecretMatches("", ""))
	assert.False(t, ClientSecretMatches("s3cret", ""))
}
