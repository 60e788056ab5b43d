package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"autopost/internal/content"
	"autopost/internal/db"
	"autopost/internal/schedule"
	"autopost/internal/types"
)

// memStore is an in-memory ScheduleStore honoring the due predicate,
// keyset paging and leases.
type memStore struct {
	mu        sync.Mutex
	posts     map[string]*types.ScheduledPost
	findCalls int
	findErr   error
	saveErr   error
	claimDeny map[string]bool
}

func newMemStore(posts ...*types.ScheduledPost) *memStore {
	s := &memStore{posts: map[string]*types.ScheduledPost{}, claimDeny: map[string]bool{}}
	for _, p := range posts {
		s.posts[p.ID] = p
	}
	return s
}

func (s *memStore) FindDue(_ context.Context, now time.Time, cursor *db.DueCursor, limit int) ([]*types.ScheduledPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findCalls++
	if s.findErr != nil {
		return nil, s.findErr
	}

	var due []*types.ScheduledPost
	for _, p := range s.posts {
		if p.Status != types.StatusActive || p.NextScheduledAt.After(now) {
			continue
		}
		if p.LeaseExpiresAt != nil && !p.LeaseExpiresAt.Before(now) {
			continue
		}
		if cursor != nil {
			if p.NextScheduledAt.Before(cursor.NextScheduledAt) ||
				(p.NextScheduledAt.Equal(cursor.NextScheduledAt) && p.ID <= cursor.ID) {
				continue
			}
		}
		cp := *p
		due = append(due, &cp)
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].NextScheduledAt.Equal(due[j].NextScheduledAt) {
			return due[i].NextScheduledAt.Before(due[j].NextScheduledAt)
		}
		return due[i].ID < due[j].ID
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *memStore) Claim(_ context.Context, id string, now, leaseUntil time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimDeny[id] {
		return false, nil
	}
	p := s.posts[id]
	lease := leaseUntil
	p.LeaseExpiresAt = &lease
	return true, nil
}

func (s *memStore) Save(_ context.Context, post *types.ScheduledPost) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	if _, ok := s.posts[post.ID]; !ok {
		return types.NewAppError(types.ErrCodeNotFoundSchedule, "scheduled post not found", nil)
	}
	cp := *post
	cp.LeaseExpiresAt = nil
	s.posts[post.ID] = &cp
	return nil
}

func (s *memStore) SaveLeased(_ context.Context, post *types.ScheduledPost, lease time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return false, s.saveErr
	}
	current, ok := s.posts[post.ID]
	if !ok || current.LeaseExpiresAt == nil || !current.LeaseExpiresAt.Equal(lease) {
		return false, nil
	}
	cp := *post
	cp.LeaseExpiresAt = nil
	s.posts[post.ID] = &cp
	return true, nil
}

func (s *memStore) Upsert(_ context.Context, post *types.ScheduledPost) (*types.ScheduledPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.posts {
		if existing.UserID == post.UserID {
			post.ID = existing.ID
			post.CreatedAt = existing.CreatedAt
		}
	}
	if post.ID == "" {
		post.ID = fmt.Sprintf("rec-%d", len(s.posts)+1)
	}
	cp := *post
	s.posts[post.ID] = &cp
	return post, nil
}

func (s *memStore) GetByUser(_ context.Context, userID string) (*types.ScheduledPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.posts {
		if p.UserID == userID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundSchedule, "schedule not found", nil)
}

func (s *memStore) GetByID(_ context.Context, id string) (*types.ScheduledPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.posts[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundSchedule, "schedule not found", nil)
}

func (s *memStore) DeleteByUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.posts {
		if p.UserID == userID {
			delete(s.posts, id)
		}
	}
	return nil
}

func (s *memStore) get(id string) *types.ScheduledPost {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.posts[id]
}

type fakePrompts struct {
	missing      map[string]bool
	err          error
	beforeLookup func()
}

func (f *fakePrompts) GetActivePrompt(_ context.Context, userID string) (*types.Prompt, error) {
	if f.beforeLookup != nil {
		f.beforeLookup()
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.missing[userID] {
		return nil, types.NewAppError(types.ErrCodeNotFoundPrompt, "user has no active prompt", nil)
	}
	return &types.Prompt{ID: "prompt-" + userID, UserID: userID, Text: "inspire " + userID, IsActive: true}, nil
}

type fakeCredentials struct {
	missing map[string]bool
	err     error
}

func (f *fakeCredentials) Resolve(_ context.Context, userID string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	if f.missing[userID] {
		return "", false, nil
	}
	return "token-" + userID, true, nil
}

type fakeContent struct {
	mu       sync.Mutex
	fail     map[string]error
	requests []content.GenerateRequest
	recent   []string
}

func (f *fakeContent) Generate(_ context.Context, req content.GenerateRequest) (*content.GenerateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if err := f.fail[req.UserID]; err != nil {
		return nil, err
	}
	return &content.GenerateResult{
		Item:     &types.ContentItem{ID: "content-" + req.UserID, UserID: req.UserID, Text: "post for " + req.UserID},
		Avoid:    req.Avoid,
		Attempts: 1,
	}, nil
}

func (f *fakeContent) RecentTexts(context.Context, string) ([]string, error) {
	return f.recent, nil
}

func (f *fakeContent) Preview(_ context.Context, promptText string, avoid []string) (string, error) {
	return fmt.Sprintf("preview[%s|%d]", promptText, len(avoid)), nil
}

type fakePublisher struct {
	mu             sync.Mutex
	failUsers      map[string]bool
	containers     []string
	finalized      []string
	beforeFinalize func()
}

func (f *fakePublisher) CreateContainer(_ context.Context, text, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for user := range f.failUsers {
		if token == "token-"+user {
			return "", types.NewAppError(types.ErrCodeUpstreamPublish, "threads rejected container", nil)
		}
	}
	id := fmt.Sprintf("container-%d", len(f.containers)+1)
	f.containers = append(f.containers, id)
	return id, nil
}

func (f *fakePublisher) Finalize(_ context.Context, containerID, _ string) (string, error) {
	if f.beforeFinalize != nil {
		f.beforeFinalize()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalized = append(f.finalized, containerID)
	return "post-" + containerID, nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []types.PostEvent
	err    error
}

func (r *recordingEvents) Publish(_ context.Context, e types.PostEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingEvents) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func newCalculator() *schedule.Calculator {
	return schedule.NewCalculator(schedule.NewZonedClock())
}

func duePost(id string, next time.Time) *types.ScheduledPost {
	return &types.ScheduledPost{
		ID:              id,
		UserID:          "user-" + id,
		ScheduleType:    types.ScheduleDaily,
		TimeOfDay:       "09:00",
		TimeZoneID:      "America/New_York",
		NextScheduledAt: next,
		Status:          types.StatusActive,
	}
}
