package service

import (
	"context"
	"errors"
	"sync"

	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/entity"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/llm"
)

type fakeStore struct {
	mu        sync.Mutex
	rows      map[string]entity.SubmittedTask
	commits   int
	commitErr error
	existErr  error
}

func newFakeStore(existing ...string) *fakeStore {
	s := &fakeStore{rows: make(map[string]entity.SubmittedTask)}
	for _, id := range existing {
		s.rows[id] = entity.SubmittedTask{Task: entity.Task{WOID: id}}
	}
	return s
}

func (s *fakeStore) ExistingIDs(_ context.Context, ids []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existErr != nil {
		return nil, s.existErr
	}
	found := make(map[string]bool)
	for _, id := range ids {
		if _, ok := s.rows[id]; ok {
			found[id] = true
		}
	}
	return found, nil
}

func (s *fakeStore) CommitBatch(ctx context.Context, rows []entity.SubmittedTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits++
	if s.commitErr != nil {
		return s.commitErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, r := range rows {
		if _, ok := s.rows[r.WOID]; ok {
			return errors.New("duplicate key")
		}
	}
	for _, r := range rows {
		s.rows[r.WOID] = r
	}
	return nil
}

func (s *fakeStore) ListSubmitted(_ context.Context, _ entity.ListParams) ([]entity.SubmittedTask, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.SubmittedTask, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	return out, int64(len(out)), nil
}

func (s *fakeStore) Ping(context.Context) error { return nil }

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

type fakeLookup struct {
	known map[string]bool
	errs  map[string]error
}

func newFakeLookup(known ...string) *fakeLookup {
	l := &fakeLookup{known: make(map[string]bool), errs: make(map[string]error)}
	for _, k := range known {
		l.known[k] = true
	}
	return l
}

func (l *fakeLookup) MaterialExists(_ context.Context, wlid string) (bool, error) {
	if err := l.errs[wlid]; err != nil {
		return false, err
	}
	return l.known[wlid], nil
}

type fakeSequence struct {
	mu     sync.Mutex
	values map[string]int64
}

func newFakeSequence() *fakeSequence {
	return &fakeSequence{values: make(map[string]int64)}
}

func (f *fakeSequence) Reserve(_ context.Context, scope string, n int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[scope] += n
	return f.values[scope] - n + 1, nil
}

type fakeAI struct {
	verdicts map[string]llm.Verdict
	err      error
}

func (a *fakeAI) Validate(_ context.Context, task entity.Task, _ []string) (llm.Verdict, error) {
	if a.err != nil {
		return llm.Verdict{}, a.err
	}
	if v, ok := a.verdicts[task.WOID]; ok {
		return v, nil
	}
	return llm.Verdict{IsValid: true, Explanation: "All validations passed."}, nil
}

type publishedEvent struct {
	name string
	data interface{}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) Publish(event string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{name: event, data: data})
}

type fakeNotifier struct {
	ch chan entity.BatchSummary
}

func (n *fakeNotifier) NotifyBatchCommitted(_ context.Context, summary entity.BatchSummary) error {
	n.ch <- summary
	return nil
}

type fakeArchive struct {
	keys []string
	err  error
}

func (a *fakeArchive) Put(_ context.Context, key string, _ []byte, _ string) error {
	if a.err != nil {
		return a.err
	}
	a.keys = append(a.keys, key)
	return nil
}
