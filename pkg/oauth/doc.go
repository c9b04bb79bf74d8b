// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package oauth holds the OAuth vocabulary shared by the bridge packages.
//
// It defines client metadata (RFC 7591) and the two ways a client id is
// resolved: ids issued by Dynamic Client Registration and https URLs naming a
// Client ID Metadata Document. It also defines the authorization server
// (RFC 8414) and protected resource (RFC 9728) metadata documents, the JSON
// schema a metadata document must satisfy, and redirect URI rules from
// RFC 6749 and RFC 8252.
package oauth
