package store

import (
	"strconv"

	"memberpass/internal/pass/models"
	id "memberpass/pkg/domain"
)

// Record keys. Each is derived deterministically from its owner so every
// process resolves the same slot without an index.
const (
	configKey        = "platform-config"
	editionKeyPrefix = "platform-edition:"
	passKeyPrefix    = "member_pass:"
)

func editionKey(t models.Tier) string {
	return editionKeyPrefix + strconv.Itoa(int(t))
}

// PassKey is the credential slot for a principal.
func PassKey(principal id.PrincipalID) string {
	return passKeyPrefix + principal.String()
}
