package tweet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrPublisherRequired = errors.New("publisher is required")
	ErrTextRequired      = errors.New("tweet text is required")
)

// PublishRequest represents the parameters for publishing a tweet.
type PublishRequest struct {
	Publisher string
	Text      string
}

// ValidatePublish rejects a request whose publisher or text is blank.
// Length is not checked here: it depends on link extraction and is enforced
// by the store.
func ValidatePublish(req PublishRequest) error {
	var errs []error
	if isBlank(req.Publisher) {
		errs = append(errs, ErrPublisherRequired)
	}
	if isBlank(req.Text) {
		errs = append(errs, ErrTextRequired)
	}
	return errors.Join(errs...)
}

// ParseID parses a tweet id as sent by clients.
func ParseID(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%w: empty", ErrInvalidID)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidID, raw)
	}
	return id, nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
