package records

import (
	"fmt"
	"strings"

	"docproc/internal/shared/util"
)

const (
	namespacePrefix = "user_"
	// Keeps "<db>.<collection>" well under MongoDB's namespace limit.
	maxNamespaceLen = 120
)

// Namespace maps a user identifier to its storage partition ("user_<id>").
// Surrounding whitespace is trimmed first, so " 42" and "42" share a partition.
// Other bytes outside [A-Za-z0-9_.-] are percent-escaped, which keeps distinct
// trimmed identifiers apart; names longer than 120 bytes use the id's hash.
func Namespace(userID string) (string, error) {
	id := strings.TrimSpace(userID)
	if id == "" {
		return "", fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}

	var b strings.Builder
	b.WriteString(namespacePrefix)
	for i := 0; i < len(id); i++ {
		c := id[i]
		if isNamespaceSafe(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	ns := b.String()
	if len(ns) > maxNamespaceLen {
		ns = namespacePrefix + "h_" + util.HashUserKey(id)
	}
	return ns, nil
}

func isNamespaceSafe(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_', c == '-', c == '.':
		return true
	}
	return false
}
