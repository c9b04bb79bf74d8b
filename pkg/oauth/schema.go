// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/client_metadata.json
var clientMetadataSchemaJSON []byte

//go:embed schemas/token_response.json
var tokenResponseSchemaJSON []byte

var (
	clientMetadataSchema = mustCompileSchema(clientMetadataSchemaJSON)
	tokenResponseSchema  = mustCompileSchema(tokenResponseSchemaJSON)
)

func mustCompileSchema(raw []byte) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid embedded JSON schema: %v", err))
	}
	return schema
}

// ValidateClientMetadataDocument checks a client metadata document against
// the client metadata JSON schema.
func ValidateClientMetadataDocument(doc []byte) error {
	return validateAgainst(clientMetadataSchema, doc, "client metadata")
}

// ValidateTokenResponse checks a token response body against the token
// response JSON schema.
func ValidateTokenResponse(body []byte) error {
	return validateAgainst(tokenResponseSchema, body, "token response")
}

func validateAgainst(schema *gojsonschema.Schema, doc []byte, what string) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("failed to validate %s: %w", what, err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return fmt.Errorf("invalid %s: %s", what, strings.Join(problems, "; "))
}
