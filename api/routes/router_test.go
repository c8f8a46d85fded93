package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moodegoozy/sofra-core/internal/audit"
	"github.com/moodegoozy/sofra-core/pkg/config"
	"github.com/moodegoozy/sofra-core/pkg/db/models"
	"github.com/moodegoozy/sofra-core/pkg/logger"
	"github.com/moodegoozy/sofra-core/pkg/pagination"
	"gorm.io/gorm"
)

type stubAuditService struct {
	queried bool
}

func (s *stubAuditService) Record(context.Context, *gorm.DB, audit.RecordInput) (*models.AuditEntry, error) {
	return nil, nil
}

func (s *stubAuditService) Query(context.Context, audit.Filter, pagination.Params) (*audit.Page, error) {
	s.queried = true
	return &audit.Page{Entries: []models.AuditEntry{}}, nil
}

func (s *stubAuditService) CollectAll(context.Context, audit.Filter) ([]models.AuditEntry, error) {
	return nil, nil
}

func testRouter(auditSvc audit.Service) http.Handler {
	cfg := &config.Config{}
	cfg.App.Env = "test"
	logg := logger.New(logger.Options{ServiceName: "router-test"})
	return NewRouter(RouterParams{
		Config:       cfg,
		Logger:       logg,
		AuditService: auditSvc,
	})
}

func TestRouterServesHealthz(t *testing.T) {
	router := testRouter(&stubAuditService{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-Sofra-Env"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRouterRoutesAuditQuery(t *testing.T) {
	svc := &stubAuditService{}
	router := testRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.queried)
}

func TestRouterUnknownRouteIs404(t *testing.T) {
	router := testRouter(&stubAuditService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/unknown", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
