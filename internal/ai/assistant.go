package ai

import (
	"context"
	"fmt"

	"github.com/jobcatcher/jobcatcher/internal/jobsource"
	"github.com/jobcatcher/jobcatcher/internal/resume"
)

// Tailor rewrites the base resume template for one posting.
type Tailor interface {
	Tailor(ctx context.Context, tmpl *resume.Template, posting *jobsource.Posting) (*resume.Document, error)
}

// GenerationError signals that tailoring failed for one posting. The
// pipeline skips the posting and continues with the rest of the run.
type GenerationError struct {
	PostingID string
	Err       error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("tailoring resume for posting %s: %v", e.PostingID, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
