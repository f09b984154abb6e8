package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/section-swap-api/internal/dto"
	"github.com/noah-isme/section-swap-api/internal/middleware"
	"github.com/noah-isme/section-swap-api/internal/models"
	"github.com/noah-isme/section-swap-api/internal/service"
	appErrors "github.com/noah-isme/section-swap-api/pkg/errors"
)

type swapServiceMock struct {
	plan          *models.SwapPlan
	planErr       error
	flags         dto.MatchFlags
	record        *models.SwapRecord
	commitErr     error
	history       []models.SwapRecord
	lastRequester string
	lastTargets   []string
	lastFilter    models.SwapRecordFilter
	lastCommit    dto.CommitSwapRequest
}

func (m *swapServiceMock) FindSwap(ctx context.Context, requesterID string, targets []string) (*models.SwapPlan, error) {
	m.lastRequester = requesterID
	m.lastTargets = targets
	return m.plan, m.planErr
}

func (m *swapServiceMock) CheckAllMatches(ctx context.Context, batch string) (dto.MatchFlags, error) {
	return m.flags, nil
}

func (m *swapServiceMock) CommitSwap(ctx context.Context, req dto.CommitSwapRequest, actor *models.JWTClaims) (*models.SwapRecord, error) {
	m.lastCommit = req
	return m.record, m.commitErr
}

func (m *swapServiceMock) History(ctx context.Context, filter models.SwapRecordFilter) ([]models.SwapRecord, error) {
	m.lastFilter = filter
	return m.history, nil
}

type matchExporterMock struct {
	export *service.MatchExport
	err    error
}

func (m *matchExporterMock) Render(ctx context.Context, batch, format string) (*service.MatchExport, error) {
	return m.export, m.err
}

func adminContext(t *testing.T, method, target string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	return requestContext(t, method, target, body, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})
}

func requestContext(t *testing.T, method, target string, body interface{}, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, target, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func TestSwapHandlerSearch(t *testing.T) {
	mockSvc := &swapServiceMock{plan: &models.SwapPlan{Type: models.SwapPlanDirect, TargetSection: "30"}}
	h := NewSwapHandler(mockSvc, nil)

	c, w := adminContext(t, http.MethodPost, "/swaps/search", dto.FindSwapRequest{RequesterID: "s2", TargetSections: []string{"30"}})
	h.Search(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s2", mockSvc.lastRequester)
	assert.Equal(t, []string{"30"}, mockSvc.lastTargets)
}

func TestSwapHandlerSearchStudentForcedToSelf(t *testing.T) {
	mockSvc := &swapServiceMock{plan: models.NoSwapPlan()}
	h := NewSwapHandler(mockSvc, nil)

	student := &models.JWTClaims{UserID: "u-s1", StudentID: "s1", Role: models.RoleStudent}
	c, w := requestContext(t, http.MethodPost, "/swaps/search", dto.FindSwapRequest{}, student)
	h.Search(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s1", mockSvc.lastRequester)
}

func TestSwapHandlerSearchStudentForbiddenForOthers(t *testing.T) {
	mockSvc := &swapServiceMock{}
	h := NewSwapHandler(mockSvc, nil)

	student := &models.JWTClaims{UserID: "u-s1", StudentID: "s1", Role: models.RoleStudent}
	c, w := requestContext(t, http.MethodPost, "/swaps/search", dto.FindSwapRequest{RequesterID: "s2"}, student)
	h.Search(c)

	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, mockSvc.lastRequester)
}

func TestSwapHandlerSearchRequiresRequester(t *testing.T) {
	h := NewSwapHandler(&swapServiceMock{}, nil)

	c, w := adminContext(t, http.MethodPost, "/swaps/search", dto.FindSwapRequest{})
	h.Search(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSwapHandlerSearchUnauthenticated(t *testing.T) {
	h := NewSwapHandler(&swapServiceMock{}, nil)

	c, w := requestContext(t, http.MethodPost, "/swaps/search", dto.FindSwapRequest{RequesterID: "s2"}, nil)
	h.Search(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSwapHandlerMatches(t *testing.T) {
	mockSvc := &swapServiceMock{flags: dto.MatchFlags{"s1": true, "s2": false}}
	h := NewSwapHandler(mockSvc, nil)

	c, w := adminContext(t, http.MethodGet, "/swaps/matches?batch=2026", nil)
	h.Matches(c)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Data dto.MatchFlags `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.True(t, envelope.Data["s1"])
	assert.False(t, envelope.Data["s2"])
}

func TestSwapHandlerExportMatches(t *testing.T) {
	exporter := &matchExporterMock{export: &service.MatchExport{
		Content:     []byte("NIS,Name\n"),
		ContentType: "text/csv",
		Filename:    "match-report-2026-20260829.csv",
	}}
	h := NewSwapHandler(&swapServiceMock{}, exporter)

	c, w := adminContext(t, http.MethodGet, "/swaps/matches/export?batch=2026&format=csv", nil)
	h.ExportMatches(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "match-report-2026")
	assert.Equal(t, "NIS,Name\n", w.Body.String())
}

func TestSwapHandlerCommit(t *testing.T) {
	mockSvc := &swapServiceMock{record: &models.SwapRecord{ID: "rec-1", PlanType: models.SwapPlanDirect}}
	h := NewSwapHandler(mockSvc, nil)

	req := dto.CommitSwapRequest{
		RequesterID: "s2",
		Plan:        models.SwapPlan{Type: models.SwapPlanDirect, TargetSection: "30", Partner: &models.SwapPartner{StudentID: "s4"}},
	}
	c, w := adminContext(t, http.MethodPost, "/swaps/commit", req)
	h.Commit(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "s2", mockSvc.lastCommit.RequesterID)
}

func TestSwapHandlerCommitStaleConflict(t *testing.T) {
	mockSvc := &swapServiceMock{commitErr: appErrors.ErrStalePlan}
	h := NewSwapHandler(mockSvc, nil)

	req := dto.CommitSwapRequest{RequesterID: "s2", Plan: models.SwapPlan{Type: models.SwapPlanDirect}}
	c, w := adminContext(t, http.MethodPost, "/swaps/commit", req)
	h.Commit(c)

	require.Equal(t, http.StatusConflict, w.Code)
	var envelope struct {
		Error *appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrStalePlan.Code, envelope.Error.Code)
}

func TestSwapHandlerHistoryScopesStudents(t *testing.T) {
	mockSvc := &swapServiceMock{history: []models.SwapRecord{}}
	h := NewSwapHandler(mockSvc, nil)

	student := &models.JWTClaims{UserID: "u-s1", StudentID: "s1", Role: models.RoleStudent}
	c, w := requestContext(t, http.MethodGet, "/swaps/history?studentId=s9", nil, student)
	h.History(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s1", mockSvc.lastFilter.StudentID)
}
