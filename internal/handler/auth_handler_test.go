package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ctp-api/internal/middleware"
	"github.com/noah-isme/ctp-api/internal/models"
)

type studentDirectoryMock struct {
	students []models.Student
}

func (m *studentDirectoryMock) FindByEmail(_ context.Context, email string) (*models.Student, error) {
	for _, student := range m.students {
		if strings.EqualFold(student.Email, email) {
			copy := student
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func meContext(t *testing.T, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(http.MethodGet, "/auth/me", nil)
	require.NoError(t, err)
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func TestAuthHandlerMeIncludesStudentRollNumber(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(nil, &studentDirectoryMock{students: []models.Student{
		{ID: "s1", RollNo: "21CS001", Email: "ananya@campus.edu", FullName: "Ananya"},
	}})
	c, w := meContext(t, &models.JWTClaims{
		UserID:   "u1",
		Role:     models.RoleStudent,
		Email:    "ANANYA@campus.edu",
		FullName: "Ananya",
	})

	handler.Me(c)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Data models.UserInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, "21CS001", envelope.Data.RollNo)
	require.Equal(t, models.RoleStudent, envelope.Data.Role)
}

func TestAuthHandlerMeOmitsRollNumberForStaff(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(nil, &studentDirectoryMock{students: []models.Student{
		{ID: "s1", RollNo: "21CS001", Email: "tpo@campus.edu"},
	}})
	c, w := meContext(t, &models.JWTClaims{UserID: "u2", Role: models.RoleTPO, Email: "tpo@campus.edu"})

	handler.Me(c)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Data models.UserInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Empty(t, envelope.Data.RollNo)
}

func TestAuthHandlerMeRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(nil, nil)
	c, w := meContext(t, nil)

	handler.Me(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}
