package crypto

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// IDGenerator produces unique message identifiers.
type IDGenerator func() string

// NewULID generates a ULID. ulid.Make uses process-wide monotonic entropy,
// so ids made within the same millisecond sort in creation order.
func NewULID() string {
	return ulid.Make().String()
}

// NewUUIDv7 generates a time-ordered UUID v7.
func NewUUIDv7() string {
	return uuid.Must(uuid.NewV7()).String()
}

// IDGeneratorFor maps a configured format name to its generator.
func IDGeneratorFor(format string) (IDGenerator, error) {
	switch format {
	case "", "ulid":
		return NewULID, nil
	case "uuid", "uuidv7":
		return NewUUIDv7, nil
	default:
		return nil, fmt.Errorf("unknown message id format %q", format)
	}
}
