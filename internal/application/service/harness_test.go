package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/garyjia/e-approval/internal/application/port"
	"github.com/garyjia/e-approval/internal/domain/entity"
	"github.com/garyjia/e-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/e-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/e-approval/internal/testutil"
	"github.com/garyjia/e-approval/pkg/database"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Directory used by the tests:
//
//	1 CEO  <- 2 HEAD <- 3 LEAD <- 4 staff (requester), 5 staff
//	6 other department, 7 delegate, 8 inactive
const (
	empCEO      int64 = 1
	empHead     int64 = 2
	empLead     int64 = 3
	empStaff    int64 = 4
	empPeer     int64 = 5
	empOther    int64 = 6
	empDelegate int64 = 7
	empInactive int64 = 8
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []port.Notification
	fail bool
}

func (n *recordingNotifier) Notify(_ context.Context, msg port.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	if n.fail {
		return errors.New("messenger unavailable")
	}
	return nil
}

func (n *recordingNotifier) events() []port.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]port.Notification(nil), n.sent...)
}

type recordingExporter struct {
	sheet string
	rows  []port.DocumentRow
}

func (e *recordingExporter) Export(sheet string, rows []port.DocumentRow) ([]byte, error) {
	e.sheet, e.rows = sheet, rows
	return []byte("xlsx"), nil
}

func (e *recordingExporter) ContentType() string { return "application/test" }

type harness struct {
	t           *testing.T
	db          *database.DB
	repos       Repositories
	approvals   ApprovalService
	queries     QueryService
	delegations DelegationService
	notifier    *recordingNotifier
	exporter    *recordingExporter
	clock       *fakeClock
	form        *entity.ApprovalForm
}

var baseTime = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()

	db := testutil.NewTestDB(t)
	logger := zap.NewNop()

	repos := Repositories{
		Documents:   repository.NewDocumentRepository(db.DB, logger),
		Lines:       repository.NewLineRepository(db.DB, logger),
		History:     repository.NewHistoryRepository(db.DB, logger),
		Delegations: repository.NewDelegationRepository(db.DB, logger),
		Settings:    repository.NewSettingRepository(db.DB, logger),
		Forms:       repository.NewFormRepository(db.DB, logger),
		Attachments: repository.NewAttachmentRepository(db.DB, logger),
		Sequences:   repository.NewSequenceRepository(db.DB, logger),
		Directory:   repository.NewDirectoryRepository(db.DB, logger),
		Tx:          sqlite.NewDB(db.DB, logger),
	}

	clock := &fakeClock{now: baseTime}
	opts := Options{Location: time.UTC, DefaultPageSize: 10, MaxPageSize: 50, Now: clock.Now}
	notifier := &recordingNotifier{}
	exporter := &recordingExporter{}
	resolver := NewDelegationResolver(repos.Delegations)

	h := &harness{
		t:     t,
		db:    db,
		repos: repos,
		approvals: NewApprovalService(repos,
			NewLineResolver(repos.Settings, repos.Directory, logger),
			resolver,
			NewNumberingService(repos.Sequences, time.UTC),
			notifier, opts, logger),
		queries:     NewQueryService(repos, resolver, exporter, opts, logger),
		delegations: NewDelegationService(repos, opts, logger),
		notifier:    notifier,
		exporter:    exporter,
		clock:       clock,
	}

	for _, emp := range []entity.Employee{
		{ID: empCEO, Name: "Chief", CompanyID: 1, DepartmentID: 1, PositionCode: "CEO", IsActive: true},
		{ID: empHead, Name: "Head", CompanyID: 1, DepartmentID: 10, PositionCode: "HEAD", ManagerID: testutil.Int64(empCEO), IsActive: true},
		{ID: empLead, Name: "Lead", CompanyID: 1, DepartmentID: 10, PositionCode: "LEAD", ManagerID: testutil.Int64(empHead), IsActive: true},
		{ID: empStaff, Name: "Staff", CompanyID: 1, DepartmentID: 10, ManagerID: testutil.Int64(empLead), IsActive: true},
		{ID: empPeer, Name: "Peer", CompanyID: 1, DepartmentID: 10, ManagerID: testutil.Int64(empLead), IsActive: true},
		{ID: empOther, Name: "Other", CompanyID: 1, DepartmentID: 20, IsActive: true},
		{ID: empDelegate, Name: "Delegate", CompanyID: 1, DepartmentID: 10, IsActive: true},
		{ID: empInactive, Name: "Former", CompanyID: 1, DepartmentID: 10, IsActive: false},
	} {
		testutil.InsertEmployee(t, db, emp)
	}

	h.form = h.newForm("LEAVE")
	return h
}

func (h *harness) newForm(code string) *entity.ApprovalForm {
	form := &entity.ApprovalForm{Code: code, Name: code + " form", Category: "HR", IsActive: true, CreatedAt: baseTime}
	require.NoError(h.t, h.repos.Forms.Create(context.Background(), form))
	return form
}

func (h *harness) addSetting(s *entity.ApprovalSetting) {
	s.IsActive = true
	s.CreatedAt = baseTime
	require.NoError(h.t, h.repos.Settings.Create(context.Background(), s))
}

func callerFor(id int64) port.Caller {
	return port.Caller{EmployeeID: id, Role: entity.RoleEmployee, RequestID: "req-test", ClientIP: "127.0.0.1", UserAgent: "go-test"}
}

func admin(id int64) port.Caller {
	c := callerFor(id)
	c.Role = entity.RoleAdmin
	return c
}

func slot(level int, approver int64) LineSlot {
	return LineSlot{Level: level, ApprovalType: entity.ApprovalTypeApprove, ApproverEmployeeID: approver, IsRequired: true}
}

// submit creates a submitted document for empStaff with the given explicit line
func (h *harness) submit(line ...LineSlot) *CreateDocumentResult {
	h.t.Helper()

	res, err := h.approvals.CreateDocument(context.Background(), callerFor(empStaff), CreateDocumentInput{
		FormID:  h.form.ID,
		Title:   "Annual leave",
		Content: []byte(`{"from":"2025-04-01","to":"2025-04-03"}`),
		Line:    line,
	})
	require.NoError(h.t, err)
	return res
}

func (h *harness) document(id int64) *entity.ApprovalDocument {
	h.t.Helper()

	doc, err := h.repos.Documents.GetByID(context.Background(), id)
	require.NoError(h.t, err)
	require.NotNil(h.t, doc)
	return doc
}

func (h *harness) lines(id int64) []*entity.ApprovalLine {
	h.t.Helper()

	lines, err := h.repos.Lines.GetByDocumentID(context.Background(), id)
	require.NoError(h.t, err)
	return lines
}

func (h *harness) history(id int64) []*entity.ApprovalHistory {
	h.t.Helper()

	records, err := h.repos.History.GetByDocumentID(context.Background(), id)
	require.NoError(h.t, err)
	return records
}

func (h *harness) countDocuments() int {
	h.t.Helper()

	var n int
	require.NoError(h.t, h.db.QueryRow(`SELECT COUNT(*) FROM approval_documents`).Scan(&n))
	return n
}
