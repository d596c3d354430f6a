package handler

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/civica-api/internal/middleware"
	"github.com/noah-isme/civica-api/internal/models"
)

type envelopeBody struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func newRouter(claims *models.JWTClaims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.WithResponseMeta())
	if claims != nil {
		router.Use(func(c *gin.Context) {
			c.Set(middleware.ContextUserKey, claims)
			c.Next()
		})
	}
	return router
}

func perform(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, envelopeBody) {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelopeBody
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

var (
	adminClaims      = &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	studentClaims    = &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent, SchoolID: "school-1", TeamID: "team-1"}
	headmasterClaims = &models.JWTClaims{UserID: "hm-1", Role: models.RoleHeadmaster, SchoolID: "school-1"}
	officeClaims     = &models.JWTClaims{UserID: "office-user", Role: models.RoleOffice, OfficeID: "office-1"}
	responderClaims  = &models.JWTClaims{UserID: "responder-1", Role: models.RoleResponder}
)
