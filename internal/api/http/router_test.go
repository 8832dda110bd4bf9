package http

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/field-audit-service/internal/api/dto"
	"github.com/spec-kit/field-audit-service/internal/api/http/handlers"
	"github.com/spec-kit/field-audit-service/internal/auth"
	"github.com/spec-kit/field-audit-service/internal/config"
	"github.com/spec-kit/field-audit-service/internal/domain"
	"github.com/spec-kit/field-audit-service/internal/events"
	"github.com/spec-kit/field-audit-service/internal/evidence"
	"github.com/spec-kit/field-audit-service/internal/observability"
	"github.com/spec-kit/field-audit-service/internal/persistence"
	"github.com/spec-kit/field-audit-service/internal/repository"
	"github.com/spec-kit/field-audit-service/internal/service"
)

var now = time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

type testServer struct {
	app    *fiber.App
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	repo := repository.NewMemoryIssueRepository()
	blobs := evidence.NewLocalStore(afero.NewMemMapFs(), nil, logger)

	issues := service.NewIssueService(service.IssueDependencies{
		IssueRepo: repo, BlobStore: blobs, Dispatcher: dispatcher, Metrics: metrics, Logger: logger, Clock: clock,
	})
	initiatives := service.NewInitiativeService(service.InitiativeDependencies{
		InitiativeRepo: repository.NewMemoryInitiativeRepository(), BlobStore: blobs, Dispatcher: dispatcher, Logger: logger, Clock: clock,
	})
	reports := service.NewReportService(repo, config.ReportConfig{DefaultPageSize: 10, MaxPageSize: 100, DateLayout: "02 Jan 2006"}, clock)
	escalation := service.NewEscalationService(service.EscalationDependencies{
		IssueRepo: repo, Dispatcher: dispatcher, Metrics: metrics, Logger: logger, Clock: clock,
		Config: config.EscalationConfig{AgeDays: 2},
	})
	tokens := auth.NewTokenManager("test-secret", 5)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger, metrics)})
	RegisterMiddlewares(app, logger, metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("field-audit", "test", &persistence.Postgres{}, &persistence.Redis{}),
		Issues:         handlers.NewIssuesHandler(issues, clock),
		Initiatives:    handlers.NewInitiativesHandler(initiatives),
		Reports:        handlers.NewReportsHandler(reports),
		Admin:          handlers.NewAdminHandler(escalation),
		Evidence:       handlers.NewEvidenceHandler(blobs),
		Metrics:        metrics,
		AuthMiddleware: auth.NewAuthMiddleware(tokens, nil),
	})
	return &testServer{app: app, tokens: tokens}
}

func (s *testServer) token(t *testing.T, identity domain.Identity) string {
	t.Helper()
	token, _, err := s.tokens.GenerateToken(identity)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, req *http.Request, identity *domain.Identity) (*http.Response, []byte) {
	t.Helper()
	if identity != nil {
		req.Header.Set("Authorization", "Bearer "+s.token(t, *identity))
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

type part struct {
	field, filename, content string
}

func multipartRequest(t *testing.T, method, target string, parts ...part) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range parts {
		if p.filename != "" {
			fw, err := w.CreateFormFile(p.field, p.filename)
			require.NoError(t, err)
			_, err = fw.Write([]byte(p.content))
			require.NoError(t, err)
			continue
		}
		require.NoError(t, w.WriteField(p.field, p.content))
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

var (
	reporter = domain.Identity{ID: "u1", Name: "Amal Perera", Role: domain.RoleAuditor}
	rm       = domain.Identity{ID: "u9", Name: "Nimal RM", Role: domain.RoleRegionalManager}
	admin    = domain.Identity{ID: "a1", Name: "Admin", Role: domain.RoleAdmin}
)

func createIssue(t *testing.T, s *testServer) dto.IssueResponse {
	t.Helper()
	req := multipartRequest(t, http.MethodPost, "/issues",
		part{field: "date", content: "2024-06-12"},
		part{field: "dateIdentified", content: "2024-06-11"},
		part{field: "region", content: string(domain.RegionWRNorth)},
		part{field: "station", content: "Colombo Fort"},
		part{field: "type", content: string(domain.IssueTypeSafety)},
		part{field: "details", content: `broken "guard" rail`},
		part{field: "evidences", filename: "rail.jpg", content: "jpeg-bytes"},
	)
	resp, body := s.do(t, req, &reporter)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var out struct {
		Data dto.IssueResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	return out.Data
}

func errorCode(t *testing.T, body []byte) (string, map[string]any) {
	t.Helper()
	var out struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	return out.Error.Code, out.Error.Details
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(t, httptest.NewRequest(http.MethodGet, "/health/live", nil), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := s.do(t, httptest.NewRequest(http.MethodGet, "/health/ready", nil), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "disabled")

	resp, body = s.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "http_requests_total")
}

func TestIssuesRequireAuthentication(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, httptest.NewRequest(http.MethodGet, "/issues", nil), nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	code, _ := errorCode(t, body)
	assert.Equal(t, "UNAUTHORIZED", code)
}

func TestCreateAndListIssues(t *testing.T) {
	s := newTestServer(t)
	created := createIssue(t, s)

	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, domain.IssueStatusPending, created.Status)
	assert.Equal(t, "Observation", created.Category)
	require.Len(t, created.EvidencesBefore, 1)
	assert.True(t, strings.HasPrefix(created.EvidencesBefore[0], "before/"))
	assert.Equal(t, 9, created.DaysOpen)

	resp, body := s.do(t, httptest.NewRequest(http.MethodGet, "/issues?station=fort&status=Pending,Maintenance&pageSize=5", nil), &rm)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var list dto.IssueListResponse
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Equal(t, dto.Pagination{Page: 1, PageSize: 5, Total: 1, TotalPages: 1}, list.Pagination)

	resp, body = s.do(t, httptest.NewRequest(http.MethodGet, "/issues?station=nowhere", nil), &rm)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Empty(t, list.Data)
	assert.Zero(t, list.Pagination.Total)

	resp, body = s.do(t, httptest.NewRequest(http.MethodGet, "/issues?sortField=station", nil), &rm)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	code, details := errorCode(t, body)
	assert.Equal(t, "VALIDATION_FAILED", code)
	assert.Equal(t, []any{"sortField"}, details["fields"])
}

func TestCreateIssueStoresCalendarDates(t *testing.T) {
	s := newTestServer(t)
	req := multipartRequest(t, http.MethodPost, "/issues",
		part{field: "date", content: "2024-06-12T09:15:00Z"},
		part{field: "dateIdentified", content: "2024-06-11T18:00:00Z"},
		part{field: "region", content: string(domain.RegionWRNorth)},
		part{field: "station", content: "Maradana"},
		part{field: "type", content: string(domain.IssueTypeSafety)},
		part{field: "details", content: "loose sleeper"},
	)
	resp, body := s.do(t, req, &reporter)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var out struct {
		Data dto.IssueResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, 9, out.Data.DaysOpen)
}

func TestCreateIssueRejectsUnknownFields(t *testing.T) {
	s := newTestServer(t)
	req := multipartRequest(t, http.MethodPost, "/issues",
		part{field: "station", content: "Fort"},
		part{field: "status", content: "Resolved"},
	)
	resp, body := s.do(t, req, &reporter)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_, details := errorCode(t, body)
	assert.Equal(t, []any{"status"}, details["fields"])
}

func TestUpdateIssueLifecycle(t *testing.T) {
	s := newTestServer(t)
	created := createIssue(t, s)

	req := multipartRequest(t, http.MethodPatch, "/issues/1",
		part{field: "status", content: "Resolved"},
		part{field: "actionTaken", content: "rail replaced"},
		part{field: "evidencesAfter", filename: "after.png", content: "png-bytes"},
	)
	resp, body := s.do(t, req, &rm)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var out struct {
		Data dto.IssueResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, domain.IssueStatusResolved, out.Data.Status)
	require.NotNil(t, out.Data.ResolvedBy)
	assert.Equal(t, "u9", out.Data.ResolvedBy.ID)
	assert.Equal(t, created.EvidencesBefore, out.Data.EvidencesBefore)
	require.Len(t, out.Data.EvidencesAfter, 1)
	require.Len(t, out.Data.UpdatedBy, 1)

	req = multipartRequest(t, http.MethodPatch, "/issues/1", part{field: "reportedBy", content: "someone"})
	resp, _ = s.do(t, req, &rm)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, httptest.NewRequest(http.MethodPost, "/issues/1/cancel", nil), &reporter)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = s.do(t, httptest.NewRequest(http.MethodGet, "/evidence/"+out.Data.EvidencesAfter[0], nil), &reporter)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "png-bytes", string(body))
}

func TestExportCSV(t *testing.T) {
	s := newTestServer(t)
	createIssue(t, s)

	resp, body := s.do(t, httptest.NewRequest(http.MethodGet, "/issues/export?format=csv", nil), &rm)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID,Week,Date"))
	assert.Contains(t, lines[1], "broken guard rail")
	assert.NotContains(t, lines[1], `"guard"`)

	resp, _ = s.do(t, httptest.NewRequest(http.MethodGet, "/issues/export?format=xml", nil), &rm)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteAndDetachEvidence(t *testing.T) {
	s := newTestServer(t)
	created := createIssue(t, s)
	ref := created.EvidencesBefore[0]

	resp, _ := s.do(t, httptest.NewRequest(http.MethodDelete, "/issues/1/evidence/evidencesBefore?ref="+ref, nil), &rm)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := s.do(t, httptest.NewRequest(http.MethodDelete, "/issues/1/evidence/evidencesBefore?ref="+ref, nil), &reporter)
	require.Equal(t, http.StatusNoContent, resp.StatusCode, string(body))

	resp, _ = s.do(t, httptest.NewRequest(http.MethodGet, "/evidence/"+ref, nil), &reporter)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(t, httptest.NewRequest(http.MethodDelete, "/issues/1", nil), &reporter)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = s.do(t, httptest.NewRequest(http.MethodDelete, "/issues/1", nil), &admin)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = s.do(t, httptest.NewRequest(http.MethodGet, "/issues/1", nil), &admin)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminEscalation(t *testing.T) {
	s := newTestServer(t)
	createIssue(t, s)

	resp, _ := s.do(t, httptest.NewRequest(http.MethodPost, "/admin/escalation/run", nil), &rm)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = s.do(t, httptest.NewRequest(http.MethodGet, "/admin/escalation/status", nil), &admin)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := s.do(t, httptest.NewRequest(http.MethodPost, "/admin/escalation/run", nil), &admin)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var out struct {
		Data domain.EscalationRun `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "manual", out.Data.Trigger)
	assert.Zero(t, out.Data.Updated)

	resp, body = s.do(t, httptest.NewRequest(http.MethodGet, "/admin/escalation/status", nil), &admin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"trigger":"manual"`)
}

func TestInitiativeLifecycle(t *testing.T) {
	s := newTestServer(t)

	req := multipartRequest(t, http.MethodPost, "/initiatives",
		part{field: "date", content: "2024-06-12"},
		part{field: "region", content: string(domain.RegionCREast)},
		part{field: "station", content: "Kandy"},
		part{field: "type", content: string(domain.IssueTypeInitiative)},
		part{field: "details", content: "repainted platform edge"},
		part{field: "areaManager", content: "Ruwan"},
		part{field: "regionalManager", content: "Nimal"},
		part{field: "evidencesBefore", filename: "before.jpg", content: "before-bytes"},
		part{field: "evidencesAfter", filename: "after.jpg", content: "after-bytes"},
	)
	resp, body := s.do(t, req, &reporter)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var out struct {
		Data dto.InitiativeResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, int64(1), out.Data.ID)
	assert.Equal(t, 3, out.Data.Week)
	require.Len(t, out.Data.EvidencesBefore, 1)
	require.Len(t, out.Data.EvidencesAfter, 1)
	before := out.Data.EvidencesBefore[0]

	resp, _ = s.do(t, multipartRequest(t, http.MethodPatch, "/initiatives/1",
		part{field: "details", content: "hijacked"}), &rm)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = s.do(t, multipartRequest(t, http.MethodPatch, "/initiatives/1",
		part{field: "details", content: "repainted and lit"},
		part{field: "evidencesAfter", filename: "night.jpg", content: "night-bytes"}), &reporter)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "repainted and lit", out.Data.Details)
	assert.Len(t, out.Data.EvidencesAfter, 2)
	assert.Equal(t, []string{before}, out.Data.EvidencesBefore)

	resp, _ = s.do(t, multipartRequest(t, http.MethodPatch, "/initiatives/1",
		part{field: "status", content: "Resolved"}), &reporter)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, httptest.NewRequest(http.MethodDelete, "/initiatives/1", nil), &reporter)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = s.do(t, httptest.NewRequest(http.MethodDelete, "/initiatives/1", nil), &admin)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = s.do(t, httptest.NewRequest(http.MethodGet, "/evidence/"+before, nil), &admin)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = s.do(t, httptest.NewRequest(http.MethodGet, "/initiatives/1", nil), &admin)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
