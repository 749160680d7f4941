package scheduler

import (
	"context"
	"time"

	"github.com/voicesurvey/platform/internal/domain"
)

// Candidate is an eligible contact paired with the campaign that governs it,
// as selected by the scheduler's claim query (§4.1 step 3).
type Candidate struct {
	Contact  domain.Contact
	Campaign domain.Campaign
}

// ClaimResult is one candidate's allocated call attempt, ready to hand to
// the Telephony Adapter.
type ClaimResult struct {
	Attempt  domain.CallAttempt
	Contact  domain.Contact
	Campaign domain.Campaign
}

// Repository is the persistence capability the scheduler needs. Unlike the
// other services, this is a single wide interface because §4.1's algorithm
// is one atomic, multi-table operation (claim candidates, insert attempts,
// update contacts) — the same shape as the teacher's campaign scheduler's
// claim-and-process transaction.
type Repository interface {
	// CountInFlight returns the number of call attempts with no outcome yet
	// (§4.1 step 2).
	CountInFlight(ctx context.Context) (int, error)
	// FetchCandidates selects up to limit eligible contacts (§4.1 step 3,
	// conditions 1-7) via FOR UPDATE SKIP LOCKED, ordered by
	// (attempts_count ASC, last_attempt_at ASC NULLS FIRST, id ASC).
	FetchCandidates(ctx context.Context, now time.Time, limit int) ([]Candidate, error)
	// ClaimCandidate re-checks condition 8 (no non-terminal attempt exists)
	// and, if still eligible, inserts the new CallAttempt and updates the
	// contact's attempts_count/last_attempt_at/state in one transaction
	// (§4.1 step 4). ok is false if the candidate was claimed elsewhere
	// between FetchCandidates and this call.
	ClaimCandidate(ctx context.Context, c Candidate, now time.Time) (result ClaimResult, ok bool, err error)
}
