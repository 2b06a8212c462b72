package annotation

import (
	"strings"

	"github.com/google/uuid"
)

const idLength = 10

// newID returns a short random id that is not already used by taken.
func newID(taken func(string) bool) string {
	for {
		id := strings.ReplaceAll(uuid.NewString(), "-", "")[:idLength]
		if !taken(id) {
			return id
		}
	}
}
