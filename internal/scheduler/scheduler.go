// Package scheduler implements the Call Scheduler: the periodic job that
// converts eligible contacts into fresh call attempts (spec §4.1).
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voicesurvey/platform/internal/pkg/distlock"
	"github.com/voicesurvey/platform/internal/pkg/logger"
	"github.com/voicesurvey/platform/internal/telephony"
	"github.com/voicesurvey/platform/internal/webhookingestor"
)

// TelephonyAdapter is the capability interface the scheduler uses to place
// outbound calls (§4.1 step 5).
type TelephonyAdapter interface {
	PlaceCall(ctx context.Context, req telephony.PlaceCallRequest) (telephony.PlaceCallResponse, error)
}

// FailureHandler resolves a call attempt that never reached the provider
// (§4.1 step 5: "run the failure branch of §4.2") through the same
// contact-resolution and event-emission path a closing webhook uses, rather
// than leaving the contact stuck in_progress. The webhook ingestor satisfies
// this directly: a synthetic EventFailed is just another terminal webhook.
type FailureHandler interface {
	Handle(ctx context.Context, ev telephony.WebhookEvent) (webhookingestor.Result, error)
}

// TickResult summarizes one scheduling tick for observability (§4.1 step 6).
type TickResult struct {
	Scheduled          int
	Skipped            int
	CapacityExhausted  bool
	FetchedCandidates  int
	Available          int
}

// Scheduler periodically converts eligible contacts into call attempts.
type Scheduler struct {
	repo               Repository
	telephony          TelephonyAdapter
	failures           FailureHandler
	lock               distlock.DistLock
	maxConcurrentCalls int
	prefetchFactor     int
	interval           time.Duration
	webhookBaseURL     string

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Scheduler.
func New(repo Repository, tel TelephonyAdapter, failures FailureHandler, lock distlock.DistLock, maxConcurrentCalls, prefetchFactor int, interval time.Duration, webhookBaseURL string) *Scheduler {
	return &Scheduler{
		repo:               repo,
		telephony:          tel,
		failures:           failures,
		lock:               lock,
		maxConcurrentCalls: maxConcurrentCalls,
		prefetchFactor:     prefetchFactor,
		interval:           interval,
		webhookBaseURL:     webhookBaseURL,
		stopCh:             make(chan struct{}),
	}
}

// Start runs the tick loop until Stop is called or ctx is cancelled. The
// current tick always completes before the loop exits (§5).
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				result, err := s.Tick(ctx)
				if err != nil {
					logger.Error("scheduler tick failed", "error", err.Error())
					continue
				}
				logger.Info("scheduler tick complete",
					"scheduled", result.Scheduled,
					"skipped", result.Skipped,
					"capacity_exhausted", result.CapacityExhausted,
					"fetched_candidates", result.FetchedCandidates,
					"available", result.Available,
				)
			}
		}
	}()
}

// Stop signals the loop to exit after its current tick.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// Tick runs one scheduling pass (§4.1's numbered algorithm).
func (s *Scheduler) Tick(ctx context.Context) (TickResult, error) {
	acquired, err := s.lock.Acquire(ctx)
	if err != nil {
		return TickResult{}, err
	}
	if !acquired {
		// Another scheduler process holds leadership this tick (§4.1 step 1).
		return TickResult{Skipped: 1}, nil
	}
	defer s.lock.Release(ctx)

	inFlight, err := s.repo.CountInFlight(ctx)
	if err != nil {
		return TickResult{}, err
	}
	available := s.maxConcurrentCalls - inFlight
	if available <= 0 {
		return TickResult{CapacityExhausted: true, Available: 0}, nil
	}

	now := time.Now()
	candidates, err := s.repo.FetchCandidates(ctx, now, available*s.prefetchFactor)
	if err != nil {
		return TickResult{}, err
	}

	result := TickResult{FetchedCandidates: len(candidates), Available: available}

	for _, candidate := range candidates {
		if result.Scheduled >= available {
			break
		}
		claimed, ok, err := s.repo.ClaimCandidate(ctx, candidate, now)
		if err != nil {
			return result, err
		}
		if !ok {
			result.Skipped++
			continue
		}
		result.Scheduled++
		s.placeCall(ctx, claimed)
	}

	if result.Scheduled >= available {
		result.CapacityExhausted = true
	}
	return result, nil
}

// placeCall hands a freshly claimed attempt to the Telephony Adapter. On
// adapter error the attempt never reached the provider, so it is resolved
// through the failure handler as a synthetic EventFailed webhook rather than
// left in_progress forever (§4.1 step 5).
func (s *Scheduler) placeCall(ctx context.Context, claim ClaimResult) {
	questions := make([]telephony.QuestionPrompt, 0, 3)
	for _, q := range claim.Campaign.Questions {
		questions = append(questions, telephony.QuestionPrompt{
			Position:   q.Position,
			Text:       q.Text,
			AnswerType: string(q.Type),
		})
	}

	req := telephony.PlaceCallRequest{
		To:          claim.Contact.Phone,
		Language:    claim.Campaign.Language,
		CallbackURL: s.webhookBaseURL,
		IntroScript: claim.Campaign.IntroScript,
		Questions:   questions,
		Metadata: telephony.CallMetadata{
			CallID:     claim.Attempt.CallID,
			CampaignID: claim.Campaign.ID,
			ContactID:  claim.Contact.ID,
		},
	}

	if _, err := s.telephony.PlaceCall(ctx, req); err != nil {
		logger.Warn("telephony adapter failed, resolving attempt as failed",
			"call_id", claim.Attempt.CallID, "error", err.Error())
		ev := telephony.WebhookEvent{
			EventType: telephony.EventFailed,
			CallID:    claim.Attempt.CallID,
			ErrorCode: "adapter_error",
			Timestamp: time.Now(),
		}
		if _, handleErr := s.failures.Handle(ctx, ev); handleErr != nil {
			logger.Error("failed to resolve attempt after adapter error", "error", handleErr.Error())
		}
	}
}

// NewCallID allocates a fresh, globally unique call id (I6).
func NewCallID() string { return uuid.NewString() }

// LocalTimeOfDay converts now into the campaign's timezone and returns the
// offset from local midnight, for CallWindow.Contains comparison (§12).
func LocalTimeOfDay(now time.Time, tzName string) (time.Duration, error) {
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return 0, err
	}
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return local.Sub(midnight), nil
}
