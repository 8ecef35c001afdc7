package itinerary

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-itinerary-map/internal/types"
)

// MockRepository is a mock implementation of Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetItinerary(ctx context.Context, id uuid.UUID) (*types.Itinerary, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Itinerary), args.Error(1)
}

func (m *MockRepository) SaveItinerary(ctx context.Context, it types.Itinerary) (uuid.UUID, error) {
	args := m.Called(ctx, it)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockRepository) DeleteItinerary(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func setupServiceTest() (*ServiceImpl, *MockRepository) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mockRepo := new(MockRepository)
	return NewServiceImpl(mockRepo, logger), mockRepo
}

func TestServiceImpl_GetItinerary(t *testing.T) {
	service, mockRepo := setupServiceTest()
	ctx := context.Background()
	id := uuid.New()

	t.Run("success", func(t *testing.T) {
		expected := &types.Itinerary{ID: id, Destination: "Lisbon"}
		mockRepo.On("GetItinerary", mock.Anything, id).Return(expected, nil).Once()

		it, err := service.GetItinerary(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, expected, it)
		mockRepo.AssertExpectations(t)
	})

	t.Run("not found is preserved", func(t *testing.T) {
		mockRepo.On("GetItinerary", mock.Anything, id).Return(nil, ErrNotFound).Once()

		_, err := service.GetItinerary(ctx, id)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Contains(t, err.Error(), "failed to get itinerary")
		mockRepo.AssertExpectations(t)
	})
}

func TestServiceImpl_SaveItinerary(t *testing.T) {
	service, mockRepo := setupServiceTest()
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		it := types.Itinerary{Destination: "Porto", Days: []types.DayPlan{{DayNumber: 1}}}
		id := uuid.New()
		mockRepo.On("SaveItinerary", mock.Anything, it).Return(id, nil).Once()

		got, err := service.SaveItinerary(ctx, it)
		require.NoError(t, err)
		assert.Equal(t, id, got)
		mockRepo.AssertExpectations(t)
	})

	t.Run("invalid itineraries never reach the repository", func(t *testing.T) {
		service, mockRepo := setupServiceTest()
		cases := map[string]types.Itinerary{
			"no destination": {},
			"zero day":       {Destination: "x", Days: []types.DayPlan{{DayNumber: 0}}},
			"duplicate day":  {Destination: "x", Days: []types.DayPlan{{DayNumber: 1}, {DayNumber: 1}}},
			"untitled":       {Destination: "x", Days: []types.DayPlan{{DayNumber: 1, Activities: []types.Activity{{}}}}},
			"bad latitude": {Destination: "x", Days: []types.DayPlan{{DayNumber: 1, Activities: []types.Activity{
				{Title: "a", Coordinates: &types.Coordinates{Lat: 91}},
			}}}},
		}
		for name, it := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := service.SaveItinerary(ctx, it)
				assert.ErrorIs(t, err, ErrInvalidItinerary)
			})
		}
		mockRepo.AssertNotCalled(t, "SaveItinerary", mock.Anything, mock.Anything)
	})

	t.Run("repository error", func(t *testing.T) {
		it := types.Itinerary{Destination: "Faro"}
		repoErr := errors.New("db down")
		mockRepo.On("SaveItinerary", mock.Anything, it).Return(uuid.Nil, repoErr).Once()

		_, err := service.SaveItinerary(ctx, it)
		assert.ErrorIs(t, err, repoErr)
	})
}

// MockService is a mock implementation of Service
type MockService struct {
	mock.Mock
}

func (m *MockService) GetItinerary(ctx context.Context, id uuid.UUID) (*types.Itinerary, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Itinerary), args.Error(1)
}

func (m *MockService) SaveItinerary(ctx context.Context, it types.Itinerary) (uuid.UUID, error) {
	args := m.Called(ctx, it)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockService) DeleteItinerary(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func newTestRouter(h *HandlerImpl) chi.Router {
	r := chi.NewRouter()
	r.Post("/itineraries", h.SaveItinerary)
	r.Get("/itineraries/{itineraryID}", h.GetItinerary)
	r.Delete("/itineraries/{itineraryID}", h.DeleteItinerary)
	return r
}

func TestHandlerImpl(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	id := uuid.New()

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		setup      func(*MockService)
		wantStatus int
		wantBody   string
	}{
		{
			name:   "get",
			method: http.MethodGet,
			path:   "/itineraries/" + id.String(),
			setup: func(m *MockService) {
				m.On("GetItinerary", mock.Anything, id).Return(&types.Itinerary{ID: id, Destination: "Lisbon"}, nil)
			},
			wantStatus: http.StatusOK,
			wantBody:   `"destination":"Lisbon"`,
		},
		{
			name:       "get with bad id",
			method:     http.MethodGet,
			path:       "/itineraries/nope",
			setup:      func(*MockService) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "get missing",
			method: http.MethodGet,
			path:   "/itineraries/" + id.String(),
			setup: func(m *MockService) {
				m.On("GetItinerary", mock.Anything, id).Return(nil, ErrNotFound)
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:   "save",
			method: http.MethodPost,
			path:   "/itineraries",
			body:   `{"destination":"Lisbon","days":[{"day_number":1,"activities":[{"title":"Lunch","average_cost":12}]}]}`,
			setup: func(m *MockService) {
				m.On("SaveItinerary", mock.Anything, mock.MatchedBy(func(it types.Itinerary) bool {
					return it.Destination == "Lisbon" && *it.Days[0].Activities[0].Cost == 12
				})).Return(id, nil)
			},
			wantStatus: http.StatusCreated,
			wantBody:   id.String(),
		},
		{
			name:       "save with unknown field",
			method:     http.MethodPost,
			path:       "/itineraries",
			body:       `{"destination":"Lisbon","budget":3}`,
			setup:      func(*MockService) {},
			wantStatus: http.StatusBadRequest,
			wantBody:   "unknown key",
		},
		{
			name:   "save invalid",
			method: http.MethodPost,
			path:   "/itineraries",
			body:   `{"days":[]}`,
			setup: func(m *MockService) {
				m.On("SaveItinerary", mock.Anything, mock.Anything).Return(uuid.Nil, ErrInvalidItinerary)
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "delete",
			method: http.MethodDelete,
			path:   "/itineraries/" + id.String(),
			setup: func(m *MockService) {
				m.On("DeleteItinerary", mock.Anything, id).Return(nil)
			},
			wantStatus: http.StatusNoContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setup(svc)
			router := newTestRouter(NewHandlerImpl(svc, logger))

			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			if tt.wantBody != "" {
				assert.Contains(t, rr.Body.String(), tt.wantBody)
			}
			svc.AssertExpectations(t)
		})
	}
}
