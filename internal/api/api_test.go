package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rrirrirr/training-json/internal/domain"
	"github.com/rrirrirr/training-json/internal/repository"
	"github.com/rrirrirr/training-json/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testJWTSecret = "test-secret"

var errStoreDown = errors.New("store unreachable")

// --- In-memory repository fakes ---

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User // keyed by email
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*domain.User)}
}

func (f *fakeUserRepo) Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.users[user.Email]; exists {
		return primitive.NilObjectID, repository.ErrDuplicate
	}
	copied := *user
	copied.ID = primitive.NewObjectID()
	copied.CreatedAt = time.Now().UTC()
	f.users[copied.Email] = &copied
	return copied.ID, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.ID == id {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

type fakePlanRepo struct {
	mu       sync.Mutex
	plans    map[primitive.ObjectID]*domain.StoredPlan
	order    []primitive.ObjectID
	failWith error
}

func newFakePlanRepo() *fakePlanRepo {
	return &fakePlanRepo{plans: make(map[primitive.ObjectID]*domain.StoredPlan)}
}

func (f *fakePlanRepo) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith = err
}

func (f *fakePlanRepo) Insert(ctx context.Context, ownerID primitive.ObjectID, doc *domain.TrainingPlanDocument) (primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return primitive.NilObjectID, f.failWith
	}
	copied := *doc
	now := time.Now().UTC()
	stored := &domain.StoredPlan{
		ID:        primitive.NewObjectID(),
		OwnerID:   ownerID,
		PlanData:  copied,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.plans[stored.ID] = stored
	f.order = append([]primitive.ObjectID{stored.ID}, f.order...)
	return stored.ID, nil
}

func (f *fakePlanRepo) Update(ctx context.Context, ownerID, id primitive.ObjectID, doc *domain.TrainingPlanDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	stored, ok := f.plans[id]
	if !ok || stored.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	stored.PlanData = *doc
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakePlanRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.StoredPlan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	stored, ok := f.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *stored
	return &copied, nil
}

func (f *fakePlanRepo) ListMetadata(ctx context.Context, ownerID primitive.ObjectID) ([]domain.PlanMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []domain.PlanMetadata
	for _, id := range f.order {
		stored := f.plans[id]
		if stored.OwnerID != ownerID {
			continue
		}
		out = append(out, domain.PlanMetadata{
			ID:        stored.ID,
			Name:      stored.PlanData.Metadata.PlanName,
			CreatedAt: stored.CreatedAt,
			UpdatedAt: stored.UpdatedAt,
		})
	}
	return out, nil
}

type fakeShareService struct {
	url string
	err error
}

func (f *fakeShareService) SharePlan(ctx context.Context, planID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.url + planID, nil
}

// --- Test server ---

type testServer struct {
	router *gin.Engine
	repo   *fakePlanRepo
	token  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	planRepo := newFakePlanRepo()
	registry := service.NewStateRegistry(planRepo, t.TempDir())
	t.Cleanup(registry.Close)

	authService := service.NewAuthService(newFakeUserRepo(), testJWTSecret, time.Hour)
	share := &fakeShareService{url: "https://example.com/shares/"}

	router := gin.New()
	SetupRoutes(router, testJWTSecret, authService, registry, share)

	srv := &testServer{router: router, repo: planRepo}

	// Register and log in through the real endpoints so requests carry a
	// token the middleware accepts.
	resp := srv.do(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"name": "Tester", "email": "tester@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = srv.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email": "tester@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &login))
	require.NotEmpty(t, login.Token)
	srv.token = login.Token
	return srv
}

// do sends a request, JSON-encoding body when it is not already raw bytes.
func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func validPlanData(name string) map[string]any {
	return map[string]any{
		"metadata": map[string]any{"planName": name},
		"exerciseDefinitions": []map[string]any{
			{"id": "squat", "name": "Squat"},
		},
		"weeks": []map[string]any{
			{
				"weekNumber": 1,
				"sessions": []map[string]any{
					{
						"sessionName": "Day 1",
						"exercises": []map[string]any{
							{"exerciseId": "squat", "sets": "3", "reps": "5", "load": "100 kg"},
						},
					},
				},
			},
		},
		"monthBlocks": []map[string]any{
			{"id": 1, "name": "Month 1", "weeks": []int{1}},
		},
	}
}

func (s *testServer) createPlan(t *testing.T, name string) string {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/v1/plans", map[string]any{"planData": validPlanData(name)})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var body struct {
		ID string `json:"id"`
	}
	s.decode(t, resp, &body)
	return body.ID
}
