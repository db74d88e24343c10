package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/nanosynth/internal/repository"
	"github.com/RMahshie/nanosynth/internal/synthesis"
	"github.com/RMahshie/nanosynth/pkg/models"
)

// MockRunRepository implements repository.RunRepository for testing
type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) Create(ctx context.Context, run *models.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Run), args.Error(1)
}

func (m *MockRunRepository) ListBySession(ctx context.Context, sessionID string) ([]*models.Run, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Run), args.Error(1)
}

func (m *MockRunRepository) ListRecent(ctx context.Context, limit int) ([]*models.Run, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Run), args.Error(1)
}

func (m *MockRunRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockRunRepository) UpdateError(ctx context.Context, id uuid.UUID, errorMsg string) error {
	args := m.Called(ctx, id, errorMsg)
	return args.Error(0)
}

func (m *MockRunRepository) UpdateArtifacts(ctx context.Context, id uuid.UUID, csvPath, archiveKey *string) error {
	args := m.Called(ctx, id, csvPath, archiveKey)
	return args.Error(0)
}

func (m *MockRunRepository) StoreResults(ctx context.Context, results *models.RunResults) error {
	args := m.Called(ctx, results)
	return args.Error(0)
}

func (m *MockRunRepository) GetResults(ctx context.Context, runID uuid.UUID) (*models.RunResults, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RunResults), args.Error(1)
}

type staticStatus synthesis.Status

func (s staticStatus) Status() synthesis.Status { return synthesis.Status(s) }

func statusCode(t *testing.T, err error) int {
	t.Helper()
	var se huma.StatusError
	require.ErrorAs(t, err, &se)
	return se.GetStatus()
}

func TestGetStatus(t *testing.T) {
	since := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	handler := NewRunHandler(&MockRunRepository{}, staticStatus{
		SessionID: "session-1",
		State:     synthesis.AwaitingMeasurement,
		Since:     since,
		LastRunID: "run-1",
	})

	resp, err := handler.GetStatus(context.Background(), &models.GetStatusRequest{})
	require.NoError(t, err)
	assert.Equal(t, "AwaitingMeasurement", resp.Body.State)
	assert.Equal(t, "session-1", resp.Body.SessionID)
	assert.Equal(t, since, resp.Body.Since)
	require.NotNil(t, resp.Body.LastRunID)
	assert.Equal(t, "run-1", *resp.Body.LastRunID)

	_, err = NewRunHandler(&MockRunRepository{}, nil).GetStatus(context.Background(), &models.GetStatusRequest{})
	assert.Equal(t, 503, statusCode(t, err))
}

func TestListRuns(t *testing.T) {
	tests := []struct {
		name      string
		status    StatusSource
		sessionID string
		mockSetup func(*MockRunRepository)
		wantCount int
		wantCode  int
	}{
		{
			name:      "explicit session",
			sessionID: "other",
			status:    staticStatus{SessionID: "session-1"},
			mockSetup: func(m *MockRunRepository) {
				m.On("ListBySession", mock.Anything, "other").Return([]*models.Run{{ID: "a"}, {ID: "b"}}, nil)
			},
			wantCount: 2,
		},
		{
			name:   "defaults to current session",
			status: staticStatus{SessionID: "session-1"},
			mockSetup: func(m *MockRunRepository) {
				m.On("ListBySession", mock.Anything, "session-1").Return(nil, nil)
			},
			wantCount: 0,
		},
		{
			name: "recent runs without a session",
			mockSetup: func(m *MockRunRepository) {
				m.On("ListRecent", mock.Anything, recentRunLimit).Return([]*models.Run{{ID: "a"}}, nil)
			},
			wantCount: 1,
		},
		{
			name: "repository error",
			mockSetup: func(m *MockRunRepository) {
				m.On("ListRecent", mock.Anything, recentRunLimit).Return(nil, errors.New("connection refused"))
			},
			wantCode: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := &MockRunRepository{}
			tt.mockSetup(mockRepo)

			handler := NewRunHandler(mockRepo, tt.status)
			resp, err := handler.ListRuns(context.Background(), &models.ListRunsRequest{SessionID: tt.sessionID})

			if tt.wantCode != 0 {
				assert.Equal(t, tt.wantCode, statusCode(t, err))
			} else {
				require.NoError(t, err)
				assert.NotNil(t, resp.Body.Runs)
				assert.Len(t, resp.Body.Runs, tt.wantCount)
			}
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestGetRun(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name      string
		id        string
		mockSetup func(*MockRunRepository)
		wantCode  int
	}{
		{
			name: "found",
			id:   id.String(),
			mockSetup: func(m *MockRunRepository) {
				m.On("GetByID", mock.Anything, id).Return(&models.Run{ID: id.String(), Status: models.StatusCompleted}, nil)
			},
		},
		{
			name:      "invalid id",
			id:        "not-a-uuid",
			mockSetup: func(m *MockRunRepository) {},
			wantCode:  400,
		},
		{
			name: "not found",
			id:   id.String(),
			mockSetup: func(m *MockRunRepository) {
				m.On("GetByID", mock.Anything, id).Return(nil, repository.ErrNotFound)
			},
			wantCode: 404,
		},
		{
			name: "database error",
			id:   id.String(),
			mockSetup: func(m *MockRunRepository) {
				m.On("GetByID", mock.Anything, id).Return(nil, errors.New("timeout"))
			},
			wantCode: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := &MockRunRepository{}
			tt.mockSetup(mockRepo)

			handler := NewRunHandler(mockRepo, nil)
			resp, err := handler.GetRun(context.Background(), &models.GetRunRequest{ID: tt.id})

			if tt.wantCode != 0 {
				assert.Equal(t, tt.wantCode, statusCode(t, err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, id.String(), resp.Body.ID)
			}
			mockRepo.AssertExpectations(t)
		})
	}
}

type fakeArchive struct {
	urls map[string]string
}

func (f fakeArchive) Upload(ctx context.Context, key, contentType string, body []byte) error {
	return nil
}

func (f fakeArchive) Download(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("not stored")
}

func (f fakeArchive) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	url, ok := f.urls[key]
	if !ok {
		return "", errors.New("no such key")
	}
	return url, nil
}

func TestGetRun_DownloadURL(t *testing.T) {
	id := uuid.New()
	key := "runs/s1/absorbance.csv"
	missing := "runs/s1/gone.csv"
	archive := fakeArchive{urls: map[string]string{key: "https://archive.example/runs/s1/absorbance.csv?sig=x"}}

	mockRepo := &MockRunRepository{}
	mockRepo.On("GetByID", mock.Anything, id).Return(&models.Run{ID: id.String(), ArchiveKey: &key}, nil).Once()
	mockRepo.On("GetByID", mock.Anything, id).Return(&models.Run{ID: id.String(), ArchiveKey: &missing}, nil).Once()

	handler := NewRunHandler(mockRepo, nil).WithArchive(archive)

	resp, err := handler.GetRun(context.Background(), &models.GetRunRequest{ID: id.String()})
	require.NoError(t, err)
	require.NotNil(t, resp.Body.DownloadURL)
	assert.Equal(t, archive.urls[key], *resp.Body.DownloadURL)

	resp, err = handler.GetRun(context.Background(), &models.GetRunRequest{ID: id.String()})
	require.NoError(t, err)
	assert.Nil(t, resp.Body.DownloadURL)

	mockRepo.AssertExpectations(t)
}

func TestGetRunSpectrum(t *testing.T) {
	id := uuid.New()
	a := 0.42

	t.Run("completed", func(t *testing.T) {
		mockRepo := &MockRunRepository{}
		mockRepo.On("GetByID", mock.Anything, id).Return(&models.Run{ID: id.String(), Status: models.StatusCompleted}, nil)
		mockRepo.On("GetResults", mock.Anything, id).Return(&models.RunResults{
			RunID:      id.String(),
			Absorbance: []models.SpectrumPoint{{Wavelength: 520, Value: &a}, {Wavelength: 521}},
		}, nil)

		resp, err := NewRunHandler(mockRepo, nil).GetRunSpectrum(context.Background(), &models.GetRunRequest{ID: id.String()})
		require.NoError(t, err)
		assert.Equal(t, id.String(), resp.Body.RunID)
		assert.Len(t, resp.Body.Absorbance, 2)
		assert.Nil(t, resp.Body.Absorbance[1].Value)
		mockRepo.AssertExpectations(t)
	})

	t.Run("not completed", func(t *testing.T) {
		mockRepo := &MockRunRepository{}
		mockRepo.On("GetByID", mock.Anything, id).Return(&models.Run{ID: id.String(), Status: models.StatusProcessing}, nil)

		_, err := NewRunHandler(mockRepo, nil).GetRunSpectrum(context.Background(), &models.GetRunRequest{ID: id.String()})
		assert.Equal(t, 409, statusCode(t, err))
		mockRepo.AssertNotCalled(t, "GetResults", mock.Anything, mock.Anything)
	})

	t.Run("results missing", func(t *testing.T) {
		mockRepo := &MockRunRepository{}
		mockRepo.On("GetByID", mock.Anything, id).Return(&models.Run{ID: id.String(), Status: models.StatusCompleted}, nil)
		mockRepo.On("GetResults", mock.Anything, id).Return(nil, repository.ErrNotFound)

		_, err := NewRunHandler(mockRepo, nil).GetRunSpectrum(context.Background(), &models.GetRunRequest{ID: id.String()})
		assert.Equal(t, 404, statusCode(t, err))
	})
}
