package xid

import (
	"fmt"

	"github.com/google/uuid"
)

// New returns a prefixed opaque id, e.g. "sale-9f1c2d...". The prefix makes
// ids self-describing in logs and audit trails.
func New(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}
