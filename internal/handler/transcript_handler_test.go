package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medcampus/sims-api/internal/models"
	"github.com/medcampus/sims-api/internal/service"
	"github.com/medcampus/sims-api/pkg/sign"
)

type stubTranscriptStudents struct{}

func (stubTranscriptStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	return &models.Student{ID: id, RegNo: "R-001", FullName: "Ayesha Malik"}, nil
}

func (stubTranscriptStudents) FindByUserID(ctx context.Context, userID string) (*models.Student, error) {
	return nil, nil
}

type stubTranscriptResults struct{}

func (stubTranscriptResults) List(ctx context.Context, filter models.ResultFilter) ([]models.ResultHeader, int, error) {
	return nil, 0, nil
}

func verifyRouter(signer *sign.TokenSigner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := service.NewTranscriptService(stubTranscriptStudents{}, stubTranscriptResults{}, nil, signer, nil, nil)
	router := gin.New()
	router.GET("/transcripts/verify/:token", NewTranscriptHandler(svc).Verify)
	return router
}

func TestVerifyReadsTokenFromPath(t *testing.T) {
	signer := sign.NewTokenSigner("secret", time.Hour)
	token, err := signer.Generate("stu-1")
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	verifyRouter(signer).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/transcripts/verify/"+token, nil))
	require.Equal(t, http.StatusOK, recorder.Code)

	var payload struct {
		Data struct {
			Valid bool   `json:"valid"`
			RegNo string `json:"reg_no"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	assert.True(t, payload.Data.Valid)
	assert.Equal(t, "R-001", payload.Data.RegNo)
}

func TestVerifyAnswersInvalidForTamperedToken(t *testing.T) {
	signer := sign.NewTokenSigner("secret", time.Hour)
	token, err := signer.Generate("stu-1")
	require.NoError(t, err)

	recorder := httptest.NewRecorder()
	verifyRouter(signer).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/transcripts/verify/"+token+"x", nil))
	require.Equal(t, http.StatusOK, recorder.Code)

	var payload struct {
		Data struct {
			Valid  bool   `json:"valid"`
			Reason string `json:"reason"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	assert.False(t, payload.Data.Valid)
	assert.Equal(t, sign.ReasonTampered, payload.Data.Reason)
}
