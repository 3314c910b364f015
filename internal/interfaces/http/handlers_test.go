package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/e-approval/internal/config"
	"github.com/garyjia/e-approval/internal/container"
	"github.com/garyjia/e-approval/internal/domain/entity"
	"github.com/garyjia/e-approval/internal/infrastructure/export"
	"github.com/garyjia/e-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/e-approval/internal/testutil"
)

const (
	empLead     int64 = 3
	empStaff    int64 = 4
	empOther    int64 = 6
	empDelegate int64 = 7
)

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	ErrorKind string          `json:"error_kind"`
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	formID int64
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Server:   config.ServerConfig{Host: "127.0.0.1", Port: 8080},
		Database: config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "approval.db"), MaxOpenConns: 4, MaxIdleConns: 2},
		Approval: config.ApprovalConfig{DefaultPageSize: 20, MaxPageSize: 100, Timezone: "UTC"},
	}
	c, err := container.NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start())
	t.Cleanup(func() { _ = c.Close() })

	for _, emp := range []entity.Employee{
		{ID: empLead, Name: "Lead", CompanyID: 1, DepartmentID: 10, IsActive: true},
		{ID: empStaff, Name: "Staff", CompanyID: 1, DepartmentID: 10, ManagerID: testutil.Int64(empLead), IsActive: true},
		{ID: empOther, Name: "Other", CompanyID: 1, DepartmentID: 20, IsActive: true},
		{ID: empDelegate, Name: "Delegate", CompanyID: 1, DepartmentID: 10, IsActive: true},
	} {
		testutil.InsertEmployee(t, c.DB(), emp)
	}

	form := &entity.ApprovalForm{Code: "LEAVE", Name: "Leave", Category: "HR", IsActive: true, CreatedAt: time.Now().UTC()}
	require.NoError(t, repository.NewFormRepository(c.DB().DB, zap.NewNop()).Create(context.Background(), form))
	require.NoError(t, repository.NewSettingRepository(c.DB().DB, zap.NewNop()).Create(context.Background(), &entity.ApprovalSetting{
		Name:     "direct manager",
		Priority: 100,
		LineTemplate: []entity.TemplateStep{
			{Level: 1, ApprovalType: entity.ApprovalTypeApprove, Required: true, RefKind: entity.RefManager, Depth: 1},
		},
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}))

	services := c.Services()
	handlers := NewHandlers(services.Approval, services.Query, services.Delegation, c.Ping, zap.NewNop())
	server := NewServer(DefaultServerConfig(), handlers, zap.NewNop())

	return &testServer{t: t, router: server.Router(), formID: form.ID}
}

func (s *testServer) do(method, path string, as int64, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if as != 0 {
		req.Header.Set(HeaderEmployeeID, strconv.FormatInt(as, 10))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func (s *testServer) create() (int64, string) {
	s.t.Helper()

	w := s.do(http.MethodPost, "/api/documents", empStaff, map[string]interface{}{
		"form_id": s.formID,
		"title":   "Annual leave",
		"content": map[string]string{"from": "2025-04-01", "to": "2025-04-03"},
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())

	var result struct {
		DocumentID int64  `json:"document_id"`
		DocumentNo string `json:"document_no"`
		Status     string `json:"status"`
	}
	decode(s.t, w, &result)
	assert.Equal(s.t, entity.StatusPending, result.Status)
	return result.DocumentID, result.DocumentNo
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/health", 0, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode(t, w, nil).Success)
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
}

func TestIdentityRequired(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/documents/pending", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/documents/pending", nil)
	req.Header.Set(HeaderEmployeeID, "3")
	req.Header.Set(HeaderEmployeeRole, "OWNER")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get(HeaderRequestID))
}

func TestApprovalFlow(t *testing.T) {
	s := newTestServer(t)
	id, docNo := s.create()
	assert.Regexp(t, `^LEAVE-\d{6}-0001$`, docNo)

	var pending struct {
		TotalCount int `json:"total_count"`
		Documents  []struct {
			ID            int64  `json:"id"`
			RequesterName string `json:"requester_name"`
		} `json:"documents"`
	}
	w := s.do(http.MethodGet, "/api/documents/pending", empLead, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &pending)
	require.Equal(t, 1, pending.TotalCount)
	assert.Equal(t, id, pending.Documents[0].ID)
	assert.Equal(t, "Staff", pending.Documents[0].RequesterName)

	path := fmt.Sprintf("/api/documents/%d/process", id)

	w = s.do(http.MethodPost, path, empOther, map[string]string{"action": "APPROVE"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "NOT_YOUR_TURN", decode(t, w, nil).ErrorKind)

	w = s.do(http.MethodPost, path, empLead, map[string]string{"action": "APPROVE", "comment": "enjoy"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result struct {
		NewStatus string `json:"new_status"`
	}
	decode(t, w, &result)
	assert.Equal(t, entity.StatusApproved, result.NewStatus)

	w = s.do(http.MethodPost, path, empLead, map[string]string{"action": "APPROVE"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DOCUMENT_NOT_ACTIONABLE", decode(t, w, nil).ErrorKind)

	w = s.do(http.MethodGet, fmt.Sprintf("/api/documents/%d", id), empStaff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail struct {
		RequesterName string `json:"requester_name"`
		Lines         []struct {
			ApproverName string `json:"approver_name"`
		} `json:"lines"`
		History []struct {
			ActionType string `json:"action_type"`
		} `json:"history"`
	}
	decode(t, w, &detail)
	assert.Equal(t, "Staff", detail.RequesterName)
	require.Len(t, detail.Lines, 1)
	assert.Equal(t, "Lead", detail.Lines[0].ApproverName)
	assert.Len(t, detail.History, 2)
}

func TestDocumentContentRoundTrip(t *testing.T) {
	s := newTestServer(t)
	id, _ := s.create()

	w := s.do(http.MethodGet, fmt.Sprintf("/api/documents/%d", id), empStaff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail struct {
		Document struct {
			Content json.RawMessage `json:"content"`
		} `json:"document"`
	}
	decode(t, w, &detail)
	assert.JSONEq(t, `{"from":"2025-04-01","to":"2025-04-03"}`, string(detail.Document.Content))
}

func TestExplicitLineSlotsDefaultToRequired(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/documents", empStaff, map[string]interface{}{
		"form_id": s.formID,
		"title":   "Training",
		"line": []map[string]interface{}{
			{"level": 1, "approval_type": "APPROVE", "approver_employee_id": empDelegate},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		DocumentID int64 `json:"document_id"`
	}
	decode(t, w, &created)

	w = s.do(http.MethodPost, fmt.Sprintf("/api/documents/%d/process", created.DocumentID), empDelegate, map[string]string{"action": "APPROVE"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result struct {
		NewStatus string `json:"new_status"`
	}
	decode(t, w, &result)
	assert.Equal(t, entity.StatusApproved, result.NewStatus)
}

func TestDraftSubmitAndWithdraw(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/documents", empStaff, map[string]interface{}{
		"form_id":       s.formID,
		"title":         "Sick leave",
		"save_as_draft": true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		DocumentID int64  `json:"document_id"`
		Status     string `json:"status"`
	}
	decode(t, w, &created)
	assert.Equal(t, entity.StatusDraft, created.Status)

	w = s.do(http.MethodPost, fmt.Sprintf("/api/documents/%d/submit", created.DocumentID), empStaff, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, fmt.Sprintf("/api/documents/%d/withdraw", created.DocumentID), empLead, map[string]string{"reason": "not mine"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, fmt.Sprintf("/api/documents/%d/withdraw", created.DocumentID), empStaff, map[string]string{"reason": "plans changed"})
	require.Equal(t, http.StatusOK, w.Code)
	var result struct {
		NewStatus string `json:"new_status"`
	}
	decode(t, w, &result)
	assert.Equal(t, entity.StatusWithdrawn, result.NewStatus)
}

func TestDelegateSlot(t *testing.T) {
	s := newTestServer(t)
	id, _ := s.create()

	w := s.do(http.MethodGet, fmt.Sprintf("/api/documents/%d", id), empStaff, nil)
	var detail struct {
		Lines []struct {
			ID int64 `json:"id"`
		} `json:"lines"`
	}
	decode(t, w, &detail)
	require.Len(t, detail.Lines, 1)

	path := fmt.Sprintf("/api/documents/%d/lines/%d/delegate", id, detail.Lines[0].ID)
	w = s.do(http.MethodPost, path, empLead, map[string]interface{}{"to_employee_id": empDelegate, "reason": "on leave"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/documents/pending", empDelegate, nil)
	var pending struct {
		TotalCount int `json:"total_count"`
	}
	decode(t, w, &pending)
	assert.Equal(t, 1, pending.TotalCount)

	w = s.do(http.MethodPost, path, empLead, map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestErrorsMapToStatus(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/documents", empStaff, map[string]interface{}{"form_id": s.formID, "title": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION", decode(t, w, nil).ErrorKind)

	w = s.do(http.MethodPost, "/api/documents", empStaff, map[string]interface{}{"form_id": s.formID, "title": "No line", "line": []interface{}{}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "EMPTY_APPROVAL_LINE", decode(t, w, nil).ErrorKind)

	w = s.do(http.MethodGet, "/api/documents/abc", empStaff, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/documents/999", empStaff, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, w, nil).ErrorKind)

	w = s.do(http.MethodGet, "/api/documents/submitted?status=LOST", empStaff, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/documents", empStaff, "not an object")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmittedListAndExport(t *testing.T) {
	s := newTestServer(t)
	s.create()
	s.create()

	w := s.do(http.MethodGet, "/api/documents/submitted?page=1&page_size=1", empStaff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		TotalCount int               `json:"total_count"`
		PageSize   int               `json:"page_size"`
		Documents  []json.RawMessage `json:"documents"`
	}
	decode(t, w, &page)
	assert.Equal(t, 2, page.TotalCount)
	assert.Equal(t, 1, page.PageSize)
	assert.Len(t, page.Documents, 1)

	w = s.do(http.MethodGet, "/api/documents/submitted/export", empStaff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.XLSXContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "submitted-4.xlsx")
	assert.NotEmpty(t, w.Body.Bytes())

	w = s.do(http.MethodGet, "/api/documents/pending/export", empLead, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "pending-3.xlsx")
}

func TestDelegationEndpoints(t *testing.T) {
	s := newTestServer(t)
	start := time.Now().UTC().Add(-time.Hour)

	w := s.do(http.MethodPost, "/api/delegations", empLead, map[string]interface{}{
		"delegate_id": empDelegate,
		"start_date":  start,
		"end_date":    start.Add(24 * time.Hour),
		"reason":      "conference",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var d struct {
		ID          int64 `json:"id"`
		DelegatorID int64 `json:"delegator_id"`
	}
	decode(t, w, &d)
	assert.Equal(t, empLead, d.DelegatorID)

	w = s.do(http.MethodPost, "/api/delegations", empLead, map[string]interface{}{
		"delegate_id": empDelegate,
		"start_date":  start,
		"end_date":    start,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/delegations?active_only=true", empLead, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []json.RawMessage
	decode(t, w, &list)
	assert.Len(t, list, 1)

	w = s.do(http.MethodDelete, fmt.Sprintf("/api/delegations/%d", d.ID), empOther, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodDelete, fmt.Sprintf("/api/delegations/%d", d.ID), empLead, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/delegations?active_only=true", empLead, nil)
	list = nil
	decode(t, w, &list)
	assert.Empty(t, list)
}
