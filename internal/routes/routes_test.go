package routes

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/journeygen-backend/internal/auth"
	"github.com/AnshRaj112/journeygen-backend/internal/events"
	"github.com/AnshRaj112/journeygen-backend/internal/handlers"
	"github.com/AnshRaj112/journeygen-backend/internal/journalgen"
	"github.com/AnshRaj112/journeygen-backend/internal/models"
	"github.com/AnshRaj112/journeygen-backend/internal/services"
	"github.com/AnshRaj112/journeygen-backend/internal/testutil"
	"github.com/AnshRaj112/journeygen-backend/pkg/logger"
	"github.com/AnshRaj112/journeygen-backend/pkg/utils"
)

var adminSeq atomic.Int64

type server struct {
	router    chi.Router
	admin     string
	clients   *testutil.ClientStore
	journals  *testutil.JournalStore
	knowledge *testutil.KnowledgeStore
	files     *testutil.FileStore
	gen       *testutil.Generator
	mail      *testutil.Mailer
	hub       *events.Hub
}

// newServer wires the real handlers and services over in-memory stores. Each
// server gets its own admin name so generation limits do not leak between tests.
func newServer(t *testing.T, replies ...string) *server {
	t.Helper()
	s := &server{
		router:    chi.NewRouter(),
		admin:     fmt.Sprintf("admin%d", adminSeq.Add(1)),
		clients:   testutil.NewClientStore(),
		journals:  testutil.NewJournalStore(),
		knowledge: testutil.NewKnowledgeStore(),
		files:     testutil.NewFileStore(),
		gen:       testutil.NewGenerator(replies...),
		mail:      &testutil.Mailer{},
		hub:       events.NewHub(),
	}
	log := logger.Nop()
	bus := events.LocalBus{Hub: s.hub}

	agg := journalgen.NewAggregator(s.knowledge, s.files, "", log)
	journals := journalgen.NewService(journalgen.Config{
		JournalModel:      "gpt-4-0613",
		ReportModel:       "gpt-4.1",
		JournalMaxTokens:  4000,
		ReportMaxTokens:   7000,
		ReportTemperature: 0.7,
		Policy:            journalgen.PolicyPad,
	}, agg, s.gen, s.journals, s.clients, bus, log)
	clients := services.NewClientService(s.clients, s.files, s.mail, bus, log, "http://app.test", time.Hour)
	knowledge := services.NewKnowledgeService(s.knowledge, s.files, bus, log)

	h := handlers.New(journals, clients, knowledge, s.hub, log)
	SetupRoutes(s.router, h, auth.NewGuard(s.admin, "pass", s.clients), "", log)
	return s
}

func basic(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func (s *server) adminAuth() string { return basic(s.admin, "pass") }

func (s *server) do(t *testing.T, method, path, authz string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// activeClient stores an activated client and returns it with its Bearer header.
func (s *server) activeClient(t *testing.T, email, password string) (*models.Client, string) {
	t.Helper()
	hash, err := utils.HashPassword(password)
	require.NoError(t, err)
	c := &models.Client{FirstName: "Jo", LastName: "March", Email: email, IsActive: true, PasswordHash: hash}
	s.clients.Put(c)
	return c, "Bearer " + base64.StdEncoding.EncodeToString([]byte(email+":"+password))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decode(t, rec, &body)
	return body.Error
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestCreateJournalEndToEnd(t *testing.T) {
	s := newServer(t, testutil.JournalJSON("Finding Calm", 2, false))
	client, _ := s.activeClient(t, "jo@example.com", "pw")

	rec := s.do(t, http.MethodPost, "/api/journals", s.adminAuth(), map[string]string{
		"topic":    "Finding Calm",
		"clientId": client.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var j models.Journal
	decode(t, rec, &j)
	assert.Equal(t, "Finding Calm", j.Title)
	assert.Equal(t, s.admin, j.OwnerID)
	require.Len(t, j.TableOfContents, 3)
	assert.Equal(t, models.EntryClosing, j.TableOfContents[2].EntryType)
	assert.Equal(t, 1, s.journals.Len())
}

func TestCreateJournalKeepsBookingLinkAsGiven(t *testing.T) {
	s := newServer(t, testutil.JournalJSON("Finding Calm", 1, true))
	client, _ := s.activeClient(t, "jo@example.com", "pw")

	rec := s.do(t, http.MethodPost, "/api/journals", s.adminAuth(), map[string]string{
		"topic":       "Finding Calm",
		"clientId":    client.ID,
		"bookingLink": "calendly.com/coach",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var j models.Journal
	decode(t, rec, &j)
	assert.Equal(t, "calendly.com/coach", j.BookingLink)
	assert.Equal(t, 1, s.journals.Len())
}

func TestCreateJournalValidation(t *testing.T) {
	s := newServer(t, testutil.JournalJSON("x", 1, true))
	client, clientAuth := s.activeClient(t, "jo@example.com", "pw")

	tests := []struct {
		name   string
		authz  string
		body   interface{}
		status int
		msg    string
	}{
		{"missing topic", s.adminAuth(), map[string]string{"clientId": client.ID}, http.StatusBadRequest, `Missing or invalid "topic".`},
		{"topic wrong type", s.adminAuth(), map[string]interface{}{"topic": 5, "clientId": client.ID}, http.StatusBadRequest, `Missing or invalid "topic".`},
		{"missing client", s.adminAuth(), map[string]string{"topic": "t"}, http.StatusBadRequest, `Missing or invalid "clientId".`},
		{"unknown client", s.adminAuth(), map[string]string{"topic": "t", "clientId": "nobody"}, http.StatusNotFound, "Client not found."},
		{"client caller", clientAuth, map[string]string{"topic": "t", "clientId": client.ID}, http.StatusForbidden, ""},
		{"no credential", "", map[string]string{"topic": "t", "clientId": client.ID}, http.StatusUnauthorized, ""},
		{"wrong admin password", basic(s.admin, "nope"), map[string]string{"topic": "t", "clientId": client.ID}, http.StatusForbidden, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/journals", tt.authz, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.msg != "" {
				assert.Equal(t, tt.msg, errorOf(t, rec))
			}
		})
	}
	assert.Equal(t, 0, s.gen.Calls())
	assert.Equal(t, 0, s.journals.Len())
}

func TestCreateJournalGenerationFailureIsGeneric(t *testing.T) {
	s := newServer(t, "this is not json")
	client, _ := s.activeClient(t, "jo@example.com", "pw")

	rec := s.do(t, http.MethodPost, "/api/journals", s.adminAuth(), map[string]string{"topic": "t", "clientId": client.ID})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Server error during generation.", errorOf(t, rec))
	assert.Equal(t, 0, s.journals.Len())
}

func TestCreateJournalIdempotencyKey(t *testing.T) {
	s := newServer(t, testutil.JournalJSON("Once", 1, true))
	client, _ := s.activeClient(t, "jo@example.com", "pw")
	body := map[string]string{"topic": "Once", "clientId": client.ID}

	first := s.do(t, http.MethodPost, "/api/journals", s.adminAuth(), body, handlers.IdempotencyHeader, "req-1")
	require.Equal(t, http.StatusCreated, first.Code)
	second := s.do(t, http.MethodPost, "/api/journals", s.adminAuth(), body, handlers.IdempotencyHeader, "req-1")
	require.Equal(t, http.StatusOK, second.Code)

	var a, b models.Journal
	decode(t, first, &a)
	decode(t, second, &b)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, 1, s.gen.Calls())
	assert.Equal(t, 1, s.journals.Len())
}

func TestJournalAccessAndAnswers(t *testing.T) {
	s := newServer(t, testutil.JournalJSON("Growth", 2, true), "Your report.")
	client, clientAuth := s.activeClient(t, "jo@example.com", "pw")
	_, otherAuth := s.activeClient(t, "amy@example.com", "pw2")

	rec := s.do(t, http.MethodPost, "/api/journals", s.adminAuth(), map[string]string{"topic": "Growth", "clientId": client.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	var j models.Journal
	decode(t, rec, &j)
	path := "/api/journals/" + j.ID.Hex()

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, path, clientAuth, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, path, otherAuth, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/journals/client/"+client.ID, clientAuth, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/journals", clientAuth, nil).Code)

	answers := [][]string{{"a1", "a2"}}
	rec = s.do(t, http.MethodPut, path+"/responses", clientAuth, map[string]interface{}{"responses": answers})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	rec = s.do(t, http.MethodPut, path+"/responses", clientAuth, map[string]interface{}{"responses": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, `Missing or invalid "responses".`, errorOf(t, rec))

	tooMany := make([][]string, len(j.TableOfContents)+1)
	rec = s.do(t, http.MethodPut, path+"/responses", clientAuth, map[string]interface{}{"responses": tooMany})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Without a body the stored answers feed the report.
	rec = s.do(t, http.MethodPost, path+"/report", clientAuth, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"report":"Your report."}`, rec.Body.String())
	assert.Contains(t, s.gen.LastRequest().User, "a1")

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/journals/507f1f77bcf86cd799439011", s.adminAuth(), nil).Code)
	rec = s.do(t, http.MethodGet, "/api/journals/bad-id", s.adminAuth(), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid journal ID.", errorOf(t, rec))
}

func multipartBody(t *testing.T, fields map[string]string, fileField, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (s *server) upload(t *testing.T, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", s.adminAuth())
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestClientOnboardingFlow(t *testing.T) {
	s := newServer(t)

	body, ct := multipartBody(t, map[string]string{
		"firstName": "Beth", "lastName": "March", "email": "Beth@Example.com", "gender": "Female",
	}, "file", "intake.txt", "notes")
	rec := s.upload(t, "/api/clients", body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created map[string]interface{}
	decode(t, rec, &created)
	assert.Equal(t, "beth@example.com", created["email"])
	assert.Equal(t, false, created["isActive"])
	assert.NotContains(t, created, "inviteToken")
	assert.NotContains(t, created, "passwordHash")

	require.Eventually(t, func() bool { return len(s.mail.Invites()) == 1 }, time.Second, 5*time.Millisecond)
	link := s.mail.Invites()[0].Link
	token := link[strings.Index(link, "token=")+len("token="):]

	rec = s.do(t, http.MethodPost, "/api/clients/login", "", map[string]string{"email": "beth@example.com", "password": "pw"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Account not activated yet.", errorOf(t, rec))

	rec = s.do(t, http.MethodPost, "/api/clients/set-password", "", map[string]string{"token": token, "password": "pw", "confirmPassword": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Passwords do not match.", errorOf(t, rec))

	rec = s.do(t, http.MethodPost, "/api/clients/set-password", "", map[string]string{"token": token, "password": "pw", "confirmPassword": "pw"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/clients/login", "", map[string]string{"email": "beth@example.com", "password": "pw"})
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		Token string `json:"token"`
	}
	decode(t, rec, &login)

	// The login token authenticates journal reads as that client.
	id := created["id"].(string)
	rec = s.do(t, http.MethodGet, "/api/journals/client/"+id, "Bearer "+login.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	// Client credentials never reach admin routes.
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/api/clients", "Bearer "+login.Token, nil).Code)
}

func TestClientAdminRoutes(t *testing.T) {
	s := newServer(t)
	s.clients.Put(&models.Client{ID: "c1", FirstName: "Meg", LastName: "March", Email: "meg@example.com"})

	rec := s.do(t, http.MethodGet, "/api/clients", s.adminAuth(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Client
	decode(t, rec, &list)
	assert.Len(t, list, 1)

	rec = s.do(t, http.MethodPut, "/api/clients/c1", s.adminAuth(), map[string]string{"lastName": "Brooke", "gender": "Female"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated models.Client
	decode(t, rec, &updated)
	assert.Equal(t, "Brooke", updated.LastName)

	rec = s.do(t, http.MethodPut, "/api/clients/c1", s.adminAuth(), map[string]string{"gender": "robot"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/clients/c1/notes", s.adminAuth(), map[string]string{"body": "Prefers mornings."})
	assert.Equal(t, http.StatusCreated, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/clients/c1/notes", s.adminAuth(), map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, `Missing or invalid "body".`, errorOf(t, rec))

	rec = s.do(t, http.MethodGet, "/api/clients/c1", s.adminAuth(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Client
	decode(t, rec, &got)
	assert.Len(t, got.Notes, 1)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodDelete, "/api/clients/c1", s.adminAuth(), nil).Code)
	rec = s.do(t, http.MethodGet, "/api/clients/c1", s.adminAuth(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Client not found.", errorOf(t, rec))
}

func TestCreateClientMissingFields(t *testing.T) {
	s := newServer(t)
	body, ct := multipartBody(t, map[string]string{"firstName": "Jo"}, "", "", "")
	rec := s.upload(t, "/api/clients", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "firstName, lastName, and email are required.", errorOf(t, rec))
}

func TestKnowledgeRoutes(t *testing.T) {
	s := newServer(t)

	body, ct := multipartBody(t, nil, "doc", "approach.txt", "We work in small steps.")
	rec := s.upload(t, "/api/knowledge", body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var doc models.KnowledgeDoc
	decode(t, rec, &doc)
	assert.Equal(t, "approach.txt", doc.Name)

	body, ct = multipartBody(t, map[string]string{"name": "Nothing"}, "", "", "")
	rec = s.upload(t, "/api/knowledge", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/knowledge", s.adminAuth(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var docs []models.KnowledgeDoc
	decode(t, rec, &docs)
	assert.Len(t, docs, 1)

	rec = s.do(t, http.MethodDelete, "/api/knowledge/not-an-id", s.adminAuth(), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid document ID.", errorOf(t, rec))

	rec = s.do(t, http.MethodDelete, "/api/knowledge/"+doc.ID.Hex(), s.adminAuth(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	rec = s.do(t, http.MethodDelete, "/api/knowledge/"+doc.ID.Hex(), s.adminAuth(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Document not found.", errorOf(t, rec))
}

func TestKnowledgeFeedsGeneration(t *testing.T) {
	s := newServer(t, testutil.JournalJSON("Grounded", 1, true))
	client, _ := s.activeClient(t, "jo@example.com", "pw")

	body, ct := multipartBody(t, map[string]string{"name": "Method"}, "doc", "m.txt", "Name the feeling first.")
	require.Equal(t, http.StatusCreated, s.upload(t, "/api/knowledge", body, ct).Code)

	rec := s.do(t, http.MethodPost, "/api/journals", s.adminAuth(), map[string]string{
		"topic": "Grounded", "clientId": client.ID, "background": "ignored when documents exist",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	system := s.gen.LastRequest().System
	assert.Contains(t, system, "=== Method ===")
	assert.Contains(t, system, "Name the feeling first.")
	assert.NotContains(t, system, "ignored when documents exist")
}
