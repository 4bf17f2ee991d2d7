package profile

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/weighright/portal/pkg/logger"
	"github.com/weighright/portal/pkg/types"
)

// MockProfileRepository is a mock implementation of ProfileRepository
type MockProfileRepository struct {
	mock.Mock
}

func (m *MockProfileRepository) GetProfile(ctx context.Context, id string) (*types.PatientProfile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.PatientProfile).Clone(), args.Error(1)
}

func (m *MockProfileRepository) ListProfiles(ctx context.Context, filters *types.ProfileFilters) ([]*types.PatientProfile, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]*types.PatientProfile), args.Error(1)
}

func (m *MockProfileRepository) SaveProfile(ctx context.Context, profile *types.PatientProfile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

func (m *MockProfileRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

var fixedNow = time.Date(2023, 12, 6, 10, 30, 0, 0, time.UTC)

func setupTestStore(t *testing.T, opts ...StoreOption) (*Store, *MemoryRepository) {
	t.Helper()
	repo := NewMemoryRepository()
	ids := 0
	opts = append([]StoreOption{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string {
			ids++
			return "id-" + string(rune('0'+ids))
		}),
	}, opts...)
	s := NewStore(repo, logger.NewWithOutput("error", io.Discard), opts...)
	_, err := s.Seed(context.Background(), []*types.PatientProfile{
		testProfile("882910", types.StageNew),
		testProfile("882105", types.StageActive),
	})
	require.NoError(t, err)
	return s, repo
}

func TestStore_UpdateMergesOneLevelDeep(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	photos := types.Photos{Front: true}
	got, err := s.Update(ctx, "882910", &types.ProfilePatch{Photos: &photos}, SourcePatient)
	require.NoError(t, err)
	assert.Equal(t, types.Photos{Front: true, Side: false}, got.Photos)
	assert.Equal(t, "Patient 882910", got.Name, "unpatched fields are kept")
	assert.Equal(t, fixedNow, got.UpdatedAt)

	// a nested value replaces the whole nested object
	wh := types.WeightHistory{Current: 80}
	got, err = s.Update(ctx, "882910", &types.ProfilePatch{WeightHistory: &wh}, SourcePatient)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.WeightHistory.Start)
}

func TestStore_UpdateVisibleToAllReaders(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	paid := types.PaymentPaid
	_, err := s.Update(ctx, "882910", &types.ProfilePatch{PaymentStatus: &paid}, SourceAdmin)
	require.NoError(t, err)

	fromPatient, err := s.Get(ctx, "882910")
	require.NoError(t, err)
	assert.Equal(t, types.PaymentPaid, fromPatient.PaymentStatus)

	fromAdmin, err := s.List(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, types.PaymentPaid, fromAdmin[0].PaymentStatus)
}

func TestStore_ReadsAreCopies(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	p, err := s.Get(ctx, "882910")
	require.NoError(t, err)
	p.Stage = types.StageActive
	p.Messages = append(p.Messages, types.Message{ID: "x"})

	again, err := s.Get(ctx, "882910")
	require.NoError(t, err)
	assert.Equal(t, types.StageNew, again.Stage)
	assert.Empty(t, again.Messages)
}

func TestStore_UpdateRejects(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := s.Update(ctx, "882910", &types.ProfilePatch{}, SourceAdmin)
	assert.True(t, types.IsType(err, types.ErrorTypeValidation))

	bad := types.PatientStage("paused")
	_, err = s.Update(ctx, "882910", &types.ProfilePatch{Stage: &bad}, SourceAdmin)
	assert.True(t, types.IsType(err, types.ErrorTypeValidation))

	stage := types.StageReview
	_, err = s.Update(ctx, "unknown", &types.ProfilePatch{Stage: &stage}, SourceAdmin)
	assert.True(t, types.IsType(err, types.ErrorTypeNotFound))
}

func TestStore_Listeners(t *testing.T) {
	var calls []string
	s, _ := setupTestStore(t, WithListener(func(ctx context.Context, source string, before, after *types.PatientProfile) {
		calls = append(calls, source+":"+string(before.Stage)+"->"+string(after.Stage))
	}))

	stage := types.StageReview
	_, err := s.Update(context.Background(), "882910", &types.ProfilePatch{Stage: &stage}, SourcePatient)
	require.NoError(t, err)

	// nil patch commits nothing and notifies nobody
	_, err = s.UpdateWith(context.Background(), "882910", SourceAdmin, func(*types.PatientProfile) (*types.ProfilePatch, error) {
		return nil, nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"patient:new->review"}, calls)
}

func TestStore_ConcurrentAppendsAreNotLost(t *testing.T) {
	s, _ := setupTestStore(t, WithIDGenerator(func() string { return "m" }))
	j := NewJourney(s, nil, logger.NewWithOutput("error", io.Discard))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := j.SendMessage(ctx, "882105", "hello")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p, err := s.Get(ctx, "882105")
	require.NoError(t, err)
	assert.Len(t, p.Messages, 20)
}

func TestStore_SaveFailureLeavesRecordUnchanged(t *testing.T) {
	repo := new(MockProfileRepository)
	s := NewStore(repo, logger.NewWithOutput("error", io.Discard))
	ctx := context.Background()

	current := testProfile("882910", types.StageNew)
	repo.On("GetProfile", ctx, "882910").Return(current, nil)
	repo.On("SaveProfile", ctx, mock.MatchedBy(func(p *types.PatientProfile) bool {
		return p.Stage == types.StageReview
	})).Return(errors.New("disk full"))

	stage := types.StageReview
	_, err := s.Update(ctx, "882910", &types.ProfilePatch{Stage: &stage}, SourcePatient)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, types.StageNew, current.Stage)

	repo.AssertExpectations(t)
}

func TestStore_SeedKeepsExistingRecords(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	name := "Renamed"
	_, err := s.Update(ctx, "882910", &types.ProfilePatch{Name: &name}, SourceAdmin)
	require.NoError(t, err)

	n, err := s.Seed(ctx, []*types.PatientProfile{testProfile("882910", types.StageNew), testProfile("900000", types.StageNew)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	p, err := s.Get(ctx, "882910")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", p.Name)
}

func TestStore_SeedPropagatesRepositoryErrors(t *testing.T) {
	repo := new(MockProfileRepository)
	s := NewStore(repo, logger.NewWithOutput("error", io.Discard))
	ctx := context.Background()

	repo.On("GetProfile", ctx, "882910").Return(nil, errors.New("connection refused"))

	_, err := s.Seed(ctx, []*types.PatientProfile{testProfile("882910", types.StageNew)})
	assert.Error(t, err)
	repo.AssertNotCalled(t, "SaveProfile", mock.Anything, mock.Anything)
}
