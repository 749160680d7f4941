package campaign

import (
	"context"
	"sync"
	"testing"

	"github.com/voicesurvey/platform/internal/domain"
)

type memRepo struct {
	mu        sync.RWMutex
	campaigns map[string]*domain.Campaign
}

func newMemRepo() *memRepo {
	return &memRepo{campaigns: make(map[string]*domain.Campaign)}
}

func (m *memRepo) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *memRepo) UpdateStatus(ctx context.Context, id string, status domain.CampaignStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return ErrNotFound
	}
	c.Status = status
	return nil
}

func (m *memRepo) ListRunning(ctx context.Context) ([]domain.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Campaign
	for _, c := range m.campaigns {
		if c.Status == domain.CampaignRunning {
			out = append(out, *c)
		}
	}
	return out, nil
}

func TestServiceGetNotFound(t *testing.T) {
	svc := New(newMemRepo())
	_, err := svc.Get(context.Background(), "missing")
	if err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestServiceTransitionValid(t *testing.T) {
	repo := newMemRepo()
	repo.campaigns["c1"] = &domain.Campaign{ID: "c1", Status: domain.CampaignDraft}
	svc := New(repo)

	if err := svc.Transition(context.Background(), "c1", domain.CampaignScheduled); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, _ := svc.Get(context.Background(), "c1")
	if c.Status != domain.CampaignScheduled {
		t.Fatalf("status = %v, want scheduled", c.Status)
	}
}

func TestServiceTransitionInvalid(t *testing.T) {
	repo := newMemRepo()
	repo.campaigns["c1"] = &domain.Campaign{ID: "c1", Status: domain.CampaignDraft}
	svc := New(repo)

	err := svc.Transition(context.Background(), "c1", domain.CampaignCompleted)
	if err == nil {
		t.Fatal("expected error for draft -> completed")
	}
}
