package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medcampus/sims-api/internal/models"
)

type mockAuditStore struct {
	records []models.AuditLog
	err     error
}

func (m *mockAuditStore) Create(ctx context.Context, log *models.AuditLog) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, *log)
	return nil
}

func auditRouter(store *mockAuditStore, status int, body string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	recorder := NewAuditRecorder(store, nil, 0)
	router := gin.New()
	router.POST("/students", func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "user-1"})
		c.Next()
	}, recorder.Write("student", models.AuditCreate), func(c *gin.Context) {
		c.Data(status, "application/json", []byte(body))
	})
	router.PUT("/students/:id", func(c *gin.Context) {
		c.Next()
	}, recorder.Write("student", models.AuditUpdate), func(c *gin.Context) {
		c.Status(status)
	})
	return router
}

func TestAuditRecordsSuccessfulWrite(t *testing.T) {
	store := &mockAuditStore{}
	router := auditRouter(store, http.StatusCreated, `{"data":{"id":"stu-9"}}`)

	req := httptest.NewRequest(http.MethodPost, "/students", strings.NewReader(`{"reg_no":"R-001"}`))
	router.ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, store.records, 1)
	record := store.records[0]
	assert.Equal(t, "student", record.Entity)
	assert.Equal(t, models.AuditCreate, record.Action)
	assert.Equal(t, http.StatusCreated, record.StatusCode)
	require.NotNil(t, record.ActorID)
	assert.Equal(t, "user-1", *record.ActorID)
	require.NotNil(t, record.EntityID)
	assert.Equal(t, "stu-9", *record.EntityID)
	assert.JSONEq(t, `{"reg_no":"R-001"}`, string(record.Metadata))
}

func TestAuditPrefersPathParamForEntityID(t *testing.T) {
	store := &mockAuditStore{}
	router := auditRouter(store, http.StatusOK, "")

	req := httptest.NewRequest(http.MethodPut, "/students/stu-3", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, store.records, 1)
	require.NotNil(t, store.records[0].EntityID)
	assert.Equal(t, "stu-3", *store.records[0].EntityID)
	assert.Equal(t, "/students/stu-3", store.records[0].Path, "the concrete path is recorded, not the route template")
}

func TestAuditSkipsFailedRequests(t *testing.T) {
	store := &mockAuditStore{}
	router := auditRouter(store, http.StatusBadRequest, "")

	req := httptest.NewRequest(http.MethodPost, "/students", strings.NewReader("{}"))
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Empty(t, store.records)
}

func TestAuditFailureDoesNotFailRequest(t *testing.T) {
	store := &mockAuditStore{err: errors.New("db down")}
	router := auditRouter(store, http.StatusCreated, `{"data":{"id":"stu-9"}}`)

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/students", strings.NewReader("{}"))
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusCreated, recorder.Code)
}

func TestAuditLeavesRequestBodyReadable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := NewAuditRecorder(&mockAuditStore{}, nil, 0)
	router := gin.New()
	var seen string
	router.POST("/students", recorder.Write("student", models.AuditCreate), func(c *gin.Context) {
		var payload struct {
			RegNo string `json:"reg_no"`
		}
		require.NoError(t, c.ShouldBindJSON(&payload))
		seen = payload.RegNo
		c.Status(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, "/students", strings.NewReader(`{"reg_no":"R-777"}`))
	router.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "R-777", seen)
}
