package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/section-swap-api/internal/dto"
	"github.com/noah-isme/section-swap-api/internal/models"
	appErrors "github.com/noah-isme/section-swap-api/pkg/errors"
)

type mockStudentRepo struct {
	students   map[string]models.Student
	updated    map[string][]string
	lastFilter models.StudentFilter
	listTotal  int
	listErr    error
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	m.lastFilter = filter
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	out := make([]models.Student, 0, len(m.students))
	for _, s := range m.students {
		out = append(out, s)
	}
	return out, m.listTotal, nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) UpdatePreferences(ctx context.Context, id string, desired []string) error {
	if _, ok := m.students[id]; !ok {
		return sql.ErrNoRows
	}
	if m.updated == nil {
		m.updated = make(map[string][]string)
	}
	m.updated[id] = desired
	return nil
}

type mockPreferenceListener struct {
	notified []string
}

func (m *mockPreferenceListener) NotifyPreferenceChange(ctx context.Context, student *models.Student) {
	m.notified = append(m.notified, student.ID)
}

func staffClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "u-staff", Role: models.RoleStaff}
}

func TestStudentServiceListPagination(t *testing.T) {
	repo := &mockStudentRepo{
		students:  map[string]models.Student{"s1": {ID: "s1", FullName: "Alice"}},
		listTotal: 41,
	}
	svc := NewStudentService(repo, nil, validator.New(), zap.NewNop())

	students, pagination, err := svc.List(context.Background(), models.StudentFilter{Batch: "2026"})
	require.NoError(t, err)
	assert.Len(t, students, 1)
	require.NotNil(t, pagination)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 41, pagination.TotalCount)
	assert.Equal(t, "2026", repo.lastFilter.Batch)
}

func TestStudentServiceGetNotFound(t *testing.T) {
	svc := NewStudentService(&mockStudentRepo{}, nil, validator.New(), zap.NewNop())

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUpdatePreferencesPreservesOrder(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{
		"s1": {ID: "s1", FullName: "Alice", Batch: "2026", CurrentSection: "10"},
	}}
	listener := &mockPreferenceListener{}
	svc := NewStudentService(repo, listener, validator.New(), zap.NewNop())

	student, err := svc.UpdatePreferences(context.Background(), "s1", dto.UpdatePreferencesRequest{
		DesiredSections: []string{"30", " 20 ", "40"},
	}, staffClaims())
	require.NoError(t, err)

	assert.Equal(t, []string{"30", "20", "40"}, student.DesiredSections)
	assert.Equal(t, []string{"30", "20", "40"}, repo.updated["s1"])
	assert.Equal(t, []string{"s1"}, listener.notified)
}

func TestUpdatePreferencesDropsOwnSection(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{
		"s1": {ID: "s1", CurrentSection: "10"},
	}}
	svc := NewStudentService(repo, nil, validator.New(), zap.NewNop())

	student, err := svc.UpdatePreferences(context.Background(), "s1", dto.UpdatePreferencesRequest{
		DesiredSections: []string{"10", "20"},
	}, staffClaims())
	require.NoError(t, err)
	assert.Equal(t, []string{"20"}, student.DesiredSections)
}

func TestUpdatePreferencesEmptyListClears(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{
		"s1": {ID: "s1", CurrentSection: "10", DesiredSections: []string{"20"}},
	}}
	svc := NewStudentService(repo, nil, validator.New(), zap.NewNop())

	student, err := svc.UpdatePreferences(context.Background(), "s1", dto.UpdatePreferencesRequest{}, staffClaims())
	require.NoError(t, err)
	assert.Empty(t, student.DesiredSections)
	assert.Empty(t, repo.updated["s1"])
}

func TestUpdatePreferencesRejectsBlankTokens(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{
		"s1": {ID: "s1", CurrentSection: "10"},
	}}
	svc := NewStudentService(repo, nil, validator.New(), zap.NewNop())

	_, err := svc.UpdatePreferences(context.Background(), "s1", dto.UpdatePreferencesRequest{
		DesiredSections: []string{"20", "   "},
	}, staffClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.updated)
}

func TestUpdatePreferencesStudentSelfOnly(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{
		"s1": {ID: "s1", CurrentSection: "10"},
		"s2": {ID: "s2", CurrentSection: "20"},
	}}
	svc := NewStudentService(repo, nil, validator.New(), zap.NewNop())

	actor := &models.JWTClaims{UserID: "u-s2", StudentID: "s2", Role: models.RoleStudent}

	_, err := svc.UpdatePreferences(context.Background(), "s1", dto.UpdatePreferencesRequest{
		DesiredSections: []string{"20"},
	}, actor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	student, err := svc.UpdatePreferences(context.Background(), "s2", dto.UpdatePreferencesRequest{
		DesiredSections: []string{"10"},
	}, actor)
	require.NoError(t, err)
	assert.Equal(t, []string{"10"}, student.DesiredSections)
}

func TestUpdatePreferencesUnauthenticated(t *testing.T) {
	svc := NewStudentService(&mockStudentRepo{}, nil, validator.New(), zap.NewNop())

	_, err := svc.UpdatePreferences(context.Background(), "s1", dto.UpdatePreferencesRequest{}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
