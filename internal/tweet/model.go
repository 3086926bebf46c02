package tweet

import (
	"time"

	"github.com/google/uuid"

	"github.com/sundayezeilo/microblog/linkext"
)

// MaxTextLength is the longest text a tweet may carry once its links are removed.
const MaxTextLength = 140

// Tweet is a short post. Text is always the full text as published, links
// included; Links records where they sit so the store can keep them out of
// the length limit.
type Tweet struct {
	ID        uuid.UUID
	Publisher string
	Text      string
	Date      time.Time
	Discarded bool
	Links     []linkext.Link
}
