package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/field-audit-service/internal/domain"
	"github.com/spec-kit/field-audit-service/internal/events"
	"github.com/spec-kit/field-audit-service/internal/evidence"
	"github.com/spec-kit/field-audit-service/internal/repository"
)

var (
	auditor = domain.Identity{ID: "u1", Name: "Amal Perera", Role: domain.RoleAuditor}
	other   = domain.Identity{ID: "u2", Name: "Kasun Silva", Role: domain.RoleAuditor}
	manager = domain.Identity{ID: "u9", Name: "Nimal RM", Role: domain.RoleRegionalManager}
	admin   = domain.Identity{ID: "a1", Name: "Admin", Role: domain.RoleAuditor, IsAdmin: true}
)

var fixedNow = time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

// countingStore wraps a blob store, counts deletes and can fail saves after
// a number of successes.
type countingStore struct {
	evidence.BlobStore
	mu        sync.Mutex
	saves     int
	deletes   []domain.EvidenceRef
	failAfter int
}

func (s *countingStore) Save(ctx context.Context, slot domain.EvidenceSlot, upload evidence.Upload) (domain.EvidenceRef, error) {
	s.mu.Lock()
	if s.failAfter > 0 && s.saves >= s.failAfter {
		s.mu.Unlock()
		return "", errors.New("disk quota exceeded")
	}
	s.saves++
	s.mu.Unlock()
	return s.BlobStore.Save(ctx, slot, upload)
}

func (s *countingStore) Delete(ctx context.Context, ref domain.EvidenceRef) error {
	s.mu.Lock()
	s.deletes = append(s.deletes, ref)
	s.mu.Unlock()
	return s.BlobStore.Delete(ctx, ref)
}

func (s *countingStore) exists(t *testing.T, ref domain.EvidenceRef) bool {
	t.Helper()
	rc, err := s.BlobStore.Open(context.Background(), ref)
	if err != nil {
		require.ErrorIs(t, err, evidence.ErrBlobNotFound)
		return false
	}
	_, _ = io.Copy(io.Discard, rc)
	rc.Close()
	return true
}

// flakyRepo fails writes on demand.
type flakyRepo struct {
	repository.IssueRepository
	failCreate error
	failUpdate error
}

func (r *flakyRepo) Create(ctx context.Context, issue *domain.Issue) error {
	if r.failCreate != nil {
		return r.failCreate
	}
	return r.IssueRepository.Create(ctx, issue)
}

func (r *flakyRepo) Update(ctx context.Context, issue *domain.Issue) error {
	if r.failUpdate != nil {
		return r.failUpdate
	}
	return r.IssueRepository.Update(ctx, issue)
}

type fixture struct {
	svc    *IssueService
	repo   *flakyRepo
	blobs  *countingStore
	events []events.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:  &flakyRepo{IssueRepository: repository.NewMemoryIssueRepository()},
		blobs: &countingStore{BlobStore: evidence.NewLocalStore(afero.NewMemMapFs(), nil, nil)},
	}
	dispatcher := events.NewInMemoryDispatcher()
	record := func(ctx context.Context, e events.Event) error {
		f.events = append(f.events, e)
		return nil
	}
	for _, et := range []events.EventType{
		events.EventIssueCreated, events.EventIssueUpdated, events.EventIssueStatusChanged,
		events.EventIssueCancelToggled, events.EventIssueDeleted, events.EventIssueEvidenceDetached,
	} {
		dispatcher.Subscribe(et, record)
	}
	f.svc = NewIssueService(IssueDependencies{
		IssueRepo:  f.repo,
		BlobStore:  f.blobs,
		Dispatcher: dispatcher,
		Clock:      clock,
	})
	return f
}

func validInput(uploads ...evidence.Upload) CreateIssueInput {
	return CreateIssueInput{
		Date:           time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC),
		DateIdentified: time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC),
		Region:         domain.RegionWRNorth,
		Station:        " Colombo Fort ",
		Type:           domain.IssueTypeSafety,
		Details:        "broken guard rail",
		Evidence:       uploads,
	}
}

func photo(name string) evidence.Upload {
	return evidence.BytesUpload(name, []byte("not really a jpeg: "+name))
}

func (f *fixture) create(t *testing.T, uploads ...evidence.Upload) *domain.Issue {
	t.Helper()
	issue, err := f.svc.CreateIssue(context.Background(), auditor, validInput(uploads...))
	require.NoError(t, err)
	return issue
}

func ptr[T any](v T) *T { return &v }
