// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package oauth

import "strings"

// RegistrationMechanism tells how a client became known to the bridge.
type RegistrationMechanism string

const (
	// MechanismDCR is a client registered through POST /register (RFC 7591)
	// and persisted in the client store.
	MechanismDCR RegistrationMechanism = "dcr"

	// MechanismCIMD is a client whose identifier is an HTTPS URL pointing at
	// its own Client ID Metadata Document. These are never persisted.
	MechanismCIMD RegistrationMechanism = "cimd"
)

// MechanismFor returns the registration mechanism implied by a client id.
func MechanismFor(clientID string) RegistrationMechanism {
	if strings.HasPrefix(clientID, "https://") {
		return MechanismCIMD
	}
	return MechanismDCR
}

// String implements fmt.Stringer.
func (m RegistrationMechanism) String() string {
	return string(m)
}
