package utils

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/nexuscrm/persist/pkg/constants"
)

// GenerateUUID generates a new UUID v4 in canonical form
func GenerateUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %w", err)
	}
	return id.String(), nil
}

// IsValidUUID checks that the string is a UUID in its 36 character canonical form.
// uuid.Parse also accepts braced and urn forms, which cannot be stored in a
// fixed-width column.
func IsValidUUID(u string) bool {
	if len(u) != constants.UUIDLength {
		return false
	}
	_, err := uuid.Parse(u)
	return err == nil
}
