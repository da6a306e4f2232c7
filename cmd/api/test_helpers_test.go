// File: cmd/api/test_helpers_test.go
// Description: In-memory stores and request helpers for the handler tests

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pedroarca/censoapi/internal/config"
	"github.com/pedroarca/censoapi/internal/data"
)

const testPassword = "Pa55word!"

var (
	seedPasswordOnce sync.Once
	seedPassword     data.Password
)

// hashedTestPassword hashes testPassword once; bcrypt is too slow to run per user.
func hashedTestPassword(t *testing.T) data.Password {
	t.Helper()
	seedPasswordOnce.Do(func() {
		if err := seedPassword.Set(testPassword); err != nil {
			panic(err)
		}
	})
	return seedPassword
}

var bogota = func() *time.Location {
	loc, err := time.LoadLocation("America/Bogota")
	if err != nil {
		panic(err)
	}
	return loc
}()

func bogotaTime(year int, month time.Month, day, hour int) *time.Time {
	t := time.Date(year, month, day, hour, 0, 0, 0, bogota)
	return &t
}

// ----------------------------------------------------------------------
//
//	In-memory stores
//
// ----------------------------------------------------------------------

type memStore struct {
	mu sync.Mutex

	roles    data.Roles
	users    map[int64]*data.User
	deleted  map[int64]bool
	nextUser int64
	sessions map[string]*data.Session

	ingresos     []*data.Ingreso
	documents    map[int64][]*data.CensoDocument
	reprocessed  []int64
	reprocessErr error

	docs       []data.MetricDoc
	general    []data.MetricGeneral
	byMonth    []data.MetricMonth
	ia         []data.MetricIA
	metricsErr error

	extraction *time.Time

	exports []*data.ExportHistory
}

func newMemStore() *memStore {
	return &memStore{
		roles: data.Roles{
			{ID: data.RoleUser, Name: "Usuario"},
			{ID: data.RoleSupervisor, Name: "Supervisor"},
			{ID: data.RoleAdmin, Name: "Administrador"},
		},
		users:     map[int64]*data.User{},
		deleted:   map[int64]bool{},
		sessions:  map[string]*data.Session{},
		documents: map[int64][]*data.CensoDocument{},
	}
}

func (s *memStore) models() data.Models {
	return data.Models{
		Users:      memUsers{s},
		Roles:      memRoles{s},
		Sessions:   memSessions{s},
		Censo:      memCenso{s},
		Metrics:    memMetrics{s},
		Extraction: memExtraction{s},
		Exports:    memExports{s},
	}
}

func (s *memStore) roleName(id int64) string {
	for _, role := range s.roles {
		if role.ID == id {
			return role.Name
		}
	}
	return ""
}

func (s *memStore) emailTaken(email string, except int64) bool {
	for id, u := range s.users {
		if id != except && !s.deleted[id] && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

// seedUser stores an account whose password is testPassword.
func (s *memStore) seedUser(t *testing.T, name, email string, role int64) *data.User {
	t.Helper()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextUser++
	user := &data.User{
		ID:       s.nextUser,
		Name:     name,
		Email:    email,
		Password: hashedTestPassword(t),
		Role:     role,
		RoleName: s.roleName(role),
		Created:  time.Now(),
		Version:  1,
	}
	s.users[user.ID] = user

	copied := *user
	return &copied
}

func (s *memStore) sessionCount(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, session := range s.sessions {
		if session.UserID == userID {
			n++
		}
	}
	return n
}

type memUsers struct{ s *memStore }

func (m memUsers) Insert(_ context.Context, user *data.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if m.s.emailTaken(user.Email, 0) {
		return data.ErrDuplicateEmail
	}
	m.s.nextUser++
	user.ID = m.s.nextUser
	user.RoleName = m.s.roleName(user.Role)
	user.Created = time.Now()
	user.Version = 1

	stored := *user
	m.s.users[user.ID] = &stored
	return nil
}

func (m memUsers) Update(_ context.Context, user *data.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	current, ok := m.s.users[user.ID]
	if !ok || m.s.deleted[user.ID] || current.Version != user.Version {
		return data.ErrEditConflict
	}
	if m.s.emailTaken(user.Email, user.ID) {
		return data.ErrDuplicateEmail
	}
	user.Version++

	stored := *user
	m.s.users[user.ID] = &stored
	return nil
}

func (m memUsers) Delete(_ context.Context, id int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if _, ok := m.s.users[id]; !ok || m.s.deleted[id] {
		return data.ErrRecordNotFound
	}
	m.s.deleted[id] = true
	return nil
}

func (m memUsers) get(match func(*data.User) bool) (*data.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for id, u := range m.s.users {
		if !m.s.deleted[id] && match(u) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, data.ErrRecordNotFound
}

func (m memUsers) GetByID(_ context.Context, id int64) (*data.User, error) {
	return m.get(func(u *data.User) bool { return u.ID == id })
}

func (m memUsers) GetByEmail(_ context.Context, email string) (*data.User, error) {
	return m.get(func(u *data.User) bool { return strings.EqualFold(u.Email, email) })
}

func (m memUsers) GetAll(_ context.Context, filter data.UserFilter) ([]*data.User, data.MetaData, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	matched := []*data.User{}
	for id, u := range m.s.users {
		switch {
		case m.s.deleted[id]:
		case filter.Name != "" && !strings.Contains(strings.ToLower(u.Name), strings.ToLower(filter.Name)):
		case filter.Email != "" && !strings.Contains(strings.ToLower(u.Email), strings.ToLower(filter.Email)):
		case filter.Role != 0 && u.Role != filter.Role:
		case slices.Contains(filter.ExcludeRoles, u.Role):
		default:
			copied := *u
			matched = append(matched, &copied)
		}
	}
	slices.SortFunc(matched, func(a, b *data.User) int { return int(a.ID - b.ID) })

	meta := data.CalculateMetaData(int64(len(matched)), filter.Filter.Page, filter.Filter.PageSize)

	start := min(filter.Filter.Offset(), int64(len(matched)))
	end := min(start+filter.Filter.Limit(), int64(len(matched)))
	return matched[start:end], meta, nil
}

func (m memUsers) TouchLastLogin(_ context.Context, id int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if u, ok := m.s.users[id]; ok {
		now := time.Now()
		u.LastLogin = &now
	}
	return nil
}

func (m memUsers) GetForToken(_ context.Context, tokenPlaintext string) (*data.User, error) {
	m.s.mu.Lock()
	session, ok := m.s.sessions[tokenPlaintext]
	m.s.mu.Unlock()

	if !ok || !session.ExpiresAt.After(time.Now()) {
		return nil, data.ErrRecordNotFound
	}
	return m.get(func(u *data.User) bool { return u.ID == session.UserID })
}

type memRoles struct{ s *memStore }

func (m memRoles) GetAll(context.Context) (data.Roles, error) {
	return slices.Clone(m.s.roles), nil
}

type memSessions struct{ s *memStore }

func (m memSessions) New(_ context.Context, userID int64, ttl time.Duration) (*data.Session, error) {
	session, err := data.GenerateSession(userID, ttl)
	if err != nil {
		return nil, err
	}

	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.sessions[session.Plaintext] = session
	return session, nil
}

func (m memSessions) Delete(_ context.Context, plaintext string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	delete(m.s.sessions, plaintext)
	return nil
}

func (m memSessions) DeleteAllForUser(_ context.Context, userID int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for token, session := range m.s.sessions {
		if session.UserID == userID {
			delete(m.s.sessions, token)
		}
	}
	return nil
}

func (m memSessions) DeleteExpired(context.Context) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var n int64
	for token, session := range m.s.sessions {
		if !session.ExpiresAt.After(time.Now()) {
			delete(m.s.sessions, token)
			n++
		}
	}
	return n, nil
}

type memCenso struct{ s *memStore }

func (m memCenso) GetAll(context.Context) ([]*data.Ingreso, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return slices.Clone(m.s.ingresos), nil
}

func (m memCenso) Documents(_ context.Context, ainid int64) ([]*data.CensoDocument, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	documents, ok := m.s.documents[ainid]
	if !ok {
		return []*data.CensoDocument{}, nil
	}
	return documents, nil
}

func (m memCenso) Reprocess(_ context.Context, ainid int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if m.s.reprocessErr != nil {
		return m.s.reprocessErr
	}
	m.s.reprocessed = append(m.s.reprocessed, ainid)
	return nil
}

type memMetrics struct{ s *memStore }

func (m memMetrics) Docs(context.Context) ([]data.MetricDoc, error) {
	return m.s.docs, m.s.metricsErr
}

func (m memMetrics) General(context.Context) ([]data.MetricGeneral, error) {
	return m.s.general, nil
}

func (m memMetrics) ByMonth(context.Context) ([]data.MetricMonth, error) {
	return m.s.byMonth, nil
}

func (m memMetrics) IA(context.Context) ([]data.MetricIA, error) {
	return m.s.ia, nil
}

type memExtraction struct{ s *memStore }

func (m memExtraction) Latest(context.Context) (*time.Time, error) {
	return m.s.extraction, nil
}

type memExports struct{ s *memStore }

func (m memExports) Insert(_ context.Context, export *data.ExportHistory) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	export.ID = int64(len(m.s.exports) + 1)
	export.CreatedAt = time.Now()
	stored := *export
	m.s.exports = append(m.s.exports, &stored)
	return nil
}

func (m memExports) Update(_ context.Context, export *data.ExportHistory) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for i, e := range m.s.exports {
		if e.ID == export.ID {
			stored := *export
			m.s.exports[i] = &stored
			return nil
		}
	}
	return data.ErrRecordNotFound
}

func (m memExports) GetAll(_ context.Context, filter data.ExportFilter) ([]*data.ExportHistory, data.MetaData, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	matched := []*data.ExportHistory{}
	for _, e := range m.s.exports {
		if (filter.UserID == 0 || e.UserID == filter.UserID) && (filter.Status == "" || e.Status == filter.Status) {
			copied := *e
			matched = append(matched, &copied)
		}
	}
	return matched, data.CalculateMetaData(int64(len(matched)), filter.Filter.Page, filter.Filter.PageSize), nil
}

// ----------------------------------------------------------------------
//
//	External services
//
// ----------------------------------------------------------------------

type sentMail struct {
	to       string
	template string
	data     any
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) Send(to, templateName string, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: to, template: templateName, data: data})
	return nil
}

type fakeExporter struct {
	sheetName  string
	rows       []*data.Ingreso
	exportedBy string
	err        error
}

func (e *fakeExporter) ExportCenso(_ context.Context, sheetName string, ingresos []*data.Ingreso, exportedBy string) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	e.sheetName = sheetName
	e.rows = ingresos
	e.exportedBy = exportedBy
	return len(ingresos), nil
}

func (e *fakeExporter) SpreadsheetID() string {
	return "sheet-123"
}

var errBackend = errors.New("backend unavailable")

// ----------------------------------------------------------------------
//
//	Request helpers
//
// ----------------------------------------------------------------------

// newTestApp creates an app over in-memory stores with logging discarded.
func newTestApp(t *testing.T) (*app, *memStore) {
	t.Helper()

	cfg := config.Default()
	cfg.Env = "test"

	store := newMemStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	app, err := newApp(cfg, logger, store.models(), bogota)
	require.NoError(t, err)

	return app, store
}

// executeRequest executes an HTTP request and returns the response recorder
func executeRequest(app *app, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	app.routes().ServeHTTP(rr, req)
	return rr
}

// makeRequest creates and executes an HTTP request
func makeRequest(t *testing.T, app *app, method, url string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req := httptest.NewRequest(method, url, reqBody)
	req.Header.Set("Content-Type", "application/json")

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return executeRequest(app, req)
}

// parseJSONResponse parses a JSON response into a destination struct
func parseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, dest any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rr.Body).Decode(dest), "body: %s", rr.Body.String())
}

// authenticateUser logs in through the API and returns the session token.
func authenticateUser(t *testing.T, app *app, email, password string) string {
	t.Helper()

	rr := makeRequest(t, app, http.MethodPost, "/v1/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == app.config.Session.CookieName {
			return cookie.Value
		}
	}
	t.Fatal("no session cookie returned")
	return ""
}

// createAuthHeaders creates headers with Bearer token authentication
func createAuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + token,
	}
}

// createCookieHeaders presents the token the way a browser does.
func createCookieHeaders(token string) map[string]string {
	return map[string]string{
		"Cookie": "auth_token=" + token,
	}
}

// setupUser seeds an account with the given role and logs it in.
func setupUser(t *testing.T, app *app, store *memStore, email string, role int64) (*data.User, string) {
	t.Helper()

	user := store.seedUser(t, strings.Split(email, "@")[0], email, role)
	return user, authenticateUser(t, app, email, testPassword)
}
