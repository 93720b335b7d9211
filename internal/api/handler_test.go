// internal/api/handler_test.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"inspection-notifications/internal/auth"
	"inspection-notifications/internal/common/logger"
	"inspection-notifications/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type MockDispatcher struct {
	CreateBulkFunc func(ctx context.Context, events []models.NotificationEvent) []models.Notification
	Events         []models.NotificationEvent
}

func (m *MockDispatcher) CreateBulkNotifications(ctx context.Context, events []models.NotificationEvent) []models.Notification {
	m.Events = append(m.Events, events...)
	if m.CreateBulkFunc != nil {
		return m.CreateBulkFunc(ctx, events)
	}
	var created []models.Notification
	for _, e := range events {
		for _, r := range e.RecipientIDs {
			created = append(created, models.Notification{
				ID:          uuid.New().String(),
				RecipientID: r,
				Type:        e.Type,
				Title:       e.Title,
				Message:     e.Message,
			})
		}
	}
	return created
}

type MockStore struct {
	ListFunc        func(ctx context.Context, recipientID string, limit, offset int) ([]models.Notification, error)
	UnreadCountFunc func(ctx context.Context, recipientID string) (int, error)
	MarkedRead      []string
	MarkedReadFor   []string
	MarkedAllFor    []string
	Dismissed       []string
	DismissedFor    []string
}

func (m *MockStore) ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]models.Notification, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, recipientID, limit, offset)
	}
	return nil, nil
}

func (m *MockStore) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	if m.UnreadCountFunc != nil {
		return m.UnreadCountFunc(ctx, recipientID)
	}
	return 0, nil
}

func (m *MockStore) MarkRead(_ context.Context, id, recipientID string) error {
	m.MarkedRead = append(m.MarkedRead, id)
	m.MarkedReadFor = append(m.MarkedReadFor, recipientID)
	return nil
}

func (m *MockStore) MarkAllRead(_ context.Context, recipientID string) error {
	m.MarkedAllFor = append(m.MarkedAllFor, recipientID)
	return nil
}

func (m *MockStore) Dismiss(_ context.Context, id, recipientID string) error {
	m.Dismissed = append(m.Dismissed, id)
	m.DismissedFor = append(m.DismissedFor, recipientID)
	return nil
}

type MockPrefStore struct {
	GetFunc    func(ctx context.Context, userID string) (*models.NotificationPreferences, error)
	UpsertFunc func(ctx context.Context, p *models.NotificationPreferences) error
	Upserted   []*models.NotificationPreferences
}

func (m *MockPrefStore) Get(ctx context.Context, userID string) (*models.NotificationPreferences, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, userID)
	}
	return models.DefaultPreferences(userID), nil
}

func (m *MockPrefStore) Upsert(ctx context.Context, p *models.NotificationPreferences) error {
	m.Upserted = append(m.Upserted, p)
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, p)
	}
	return nil
}

type MockPinger struct {
	PingFunc func(ctx context.Context) error
}

func (m *MockPinger) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

// ==========================
// Test Setup
// ==========================

type testAPI struct {
	router     *gin.Engine
	authCtx    *auth.JWTContext
	dispatcher *MockDispatcher
	store      *MockStore
	prefs      *MockPrefStore
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	a := &testAPI{
		authCtx:    auth.NewJWTContext("unit-test-secret"),
		dispatcher: &MockDispatcher{},
		store:      &MockStore{},
		prefs:      &MockPrefStore{},
	}

	h := NewHandler(a.dispatcher, a.store, a.prefs, &MockPinger{}, logger.NewNoOpLogger())
	a.router = gin.New()
	h.Register(a.router, a.authCtx)
	return a
}

func (a *testAPI) tokenFor(t *testing.T, identity auth.Identity) string {
	t.Helper()
	token, err := a.authCtx.GenerateToken(identity)
	require.NoError(t, err)
	return "Bearer " + token
}

func (a *testAPI) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func validCreateBody() map[string]interface{} {
	return map[string]interface{}{
		"recipientIds": []string{"a", "b"},
		"type":         "inspection_assigned",
		"title":        "New inspection assigned",
		"message":      "You have been assigned inspection INS-7",
	}
}

// ==========================
// Tests
// ==========================

func TestCreateNotifications_RequiresAuth(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodPost, "/api/notifications", "", validCreateBody())

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, a.dispatcher.Events)
}

func TestCreateNotifications_RequiresAdmin(t *testing.T) {
	a := newTestAPI(t)
	token := a.tokenFor(t, auth.Identity{UserID: "user-a", Role: "inspector"})

	w := a.do(t, http.MethodPost, "/api/notifications", token, validCreateBody())

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, a.dispatcher.Events)
}

func TestCreateNotifications_Success(t *testing.T) {
	a := newTestAPI(t)
	token := a.tokenFor(t, auth.Identity{UserID: "admin-1", Role: "admin"})

	w := a.do(t, http.MethodPost, "/api/notifications", token, validCreateBody())

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["count"])

	require.Len(t, a.dispatcher.Events, 1)
	assert.Equal(t, "admin-1", a.dispatcher.Events[0].SenderID)
	assert.Equal(t, []string{"a", "b"}, a.dispatcher.Events[0].RecipientIDs)
}

func TestCreateNotifications_ValidationRejectsBeforeSideEffects(t *testing.T) {
	a := newTestAPI(t)
	token := a.tokenFor(t, auth.Identity{UserID: "admin-1", Role: "admin"})

	tests := []struct {
		name   string
		mutate func(map[string]interface{})
	}{
		{"no recipients", func(b map[string]interface{}) { b["recipientIds"] = []string{} }},
		{"missing title", func(b map[string]interface{}) { b["title"] = "" }},
		{"missing message", func(b map[string]interface{}) { delete(b, "message") }},
		{"unknown type", func(b map[string]interface{}) { b["type"] = "carrier_pigeon" }},
		{"unknown priority", func(b map[string]interface{}) { b["priority"] = "extreme" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := validCreateBody()
			tt.mutate(body)

			w := a.do(t, http.MethodPost, "/api/notifications", token, body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, a.dispatcher.Events)
		})
	}
}

func TestCreateNotifications_PartialFailureReportedByCount(t *testing.T) {
	a := newTestAPI(t)
	a.dispatcher.CreateBulkFunc = func(_ context.Context, events []models.NotificationEvent) []models.Notification {
		// Only the first recipient succeeds.
		return []models.Notification{{ID: "n1", RecipientID: events[0].RecipientIDs[0]}}
	}
	token := a.tokenFor(t, auth.Identity{UserID: "admin-1", Role: "admin"})

	w := a.do(t, http.MethodPost, "/api/notifications", token, validCreateBody())

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decodeBody(t, w)["count"])
}

func TestListNotifications(t *testing.T) {
	a := newTestAPI(t)
	a.store.ListFunc = func(_ context.Context, recipientID string, limit, offset int) ([]models.Notification, error) {
		assert.Equal(t, "user-a", recipientID)
		assert.Equal(t, 10, limit)
		return []models.Notification{{ID: "n1", RecipientID: recipientID}}, nil
	}
	a.store.UnreadCountFunc = func(context.Context, string) (int, error) { return 3, nil }
	token := a.tokenFor(t, auth.Identity{UserID: "user-a", Role: "inspector"})

	w := a.do(t, http.MethodGet, "/api/notifications?limit=10", token, nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(3), body["unreadCount"])
	assert.Len(t, body["notifications"], 1)
}

func TestListNotifications_FailsOpen(t *testing.T) {
	a := newTestAPI(t)
	a.store.ListFunc = func(context.Context, string, int, int) ([]models.Notification, error) {
		return nil, assert.AnError
	}
	a.store.UnreadCountFunc = func(context.Context, string) (int, error) {
		return 0, assert.AnError
	}
	token := a.tokenFor(t, auth.Identity{UserID: "user-a"})

	w := a.do(t, http.MethodGet, "/api/notifications", token, nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(0), body["unreadCount"])
	assert.Len(t, body["notifications"], 0)
}

func TestMarkRead(t *testing.T) {
	a := newTestAPI(t)
	token := a.tokenFor(t, auth.Identity{UserID: "user-a"})

	w := a.do(t, http.MethodPost, "/api/notifications/n1/read", token, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"n1"}, a.store.MarkedRead)
	assert.Equal(t, []string{"user-a"}, a.store.MarkedReadFor)
}

func TestMarkReadAndDismiss_ScopedToCaller(t *testing.T) {
	a := newTestAPI(t)
	token := a.tokenFor(t, auth.Identity{UserID: "user-b", Role: "inspector"})

	// Both mutations carry the caller's own id, so a foreign notification
	// id cannot touch another user's rows.
	w := a.do(t, http.MethodPost, "/api/notifications/someone-elses-row/read", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"user-b"}, a.store.MarkedReadFor)

	w = a.do(t, http.MethodPost, "/api/notifications/someone-elses-row/dismiss", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"user-b"}, a.store.DismissedFor)
}

func TestMarkAllRead_UsesCallerIdentity(t *testing.T) {
	a := newTestAPI(t)
	token := a.tokenFor(t, auth.Identity{UserID: "user-a"})

	w := a.do(t, http.MethodPost, "/api/notifications/read-all", token, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"user-a"}, a.store.MarkedAllFor)
}

func TestDismiss(t *testing.T) {
	a := newTestAPI(t)
	token := a.tokenFor(t, auth.Identity{UserID: "user-a"})

	w := a.do(t, http.MethodPost, "/api/notifications/n1/dismiss", token, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"n1"}, a.store.Dismissed)
	assert.Equal(t, []string{"user-a"}, a.store.DismissedFor)
}

func TestListNotifications_LimitIsCapped(t *testing.T) {
	a := newTestAPI(t)
	var gotLimit int
	a.store.ListFunc = func(_ context.Context, _ string, limit, _ int) ([]models.Notification, error) {
		gotLimit = limit
		return nil, nil
	}
	token := a.tokenFor(t, auth.Identity{UserID: "user-a"})

	w := a.do(t, http.MethodGet, "/api/notifications?limit=1000000", token, nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 50, gotLimit)
}

func TestGetPreferences_DefaultsOnStoreError(t *testing.T) {
	a := newTestAPI(t)
	a.prefs.GetFunc = func(context.Context, string) (*models.NotificationPreferences, error) {
		return nil, assert.AnError
	}
	token := a.tokenFor(t, auth.Identity{UserID: "user-a"})

	w := a.do(t, http.MethodGet, "/api/preferences", token, nil)

	require.Equal(t, http.StatusOK, w.Code)
	var p models.NotificationPreferences
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, "user-a", p.UserID)
	assert.True(t, p.EmailEnabled)
}

func TestUpdatePreferences_BindsCallerID(t *testing.T) {
	a := newTestAPI(t)
	token := a.tokenFor(t, auth.Identity{UserID: "user-a"})

	body := models.DefaultPreferences("someone-else")
	body.EmailFrequency = models.FrequencyDaily

	w := a.do(t, http.MethodPut, "/api/preferences", token, body)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, a.prefs.Upserted, 1)
	// The caller can only ever write their own preferences.
	assert.Equal(t, "user-a", a.prefs.Upserted[0].UserID)
	assert.Equal(t, models.FrequencyDaily, a.prefs.Upserted[0].EmailFrequency)
}

func TestUpdatePreferences_StoreErrorIs500(t *testing.T) {
	a := newTestAPI(t)
	a.prefs.UpsertFunc = func(context.Context, *models.NotificationPreferences) error {
		return assert.AnError
	}
	token := a.tokenFor(t, auth.Identity{UserID: "user-a"})

	w := a.do(t, http.MethodPut, "/api/preferences", token, models.DefaultPreferences("user-a"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealthz(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
}
