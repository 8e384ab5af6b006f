package controllers

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gitea.com/go-chi/session"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blogem/licitacoes/authenticator"
	"github.com/blogem/licitacoes/config"
	"github.com/blogem/licitacoes/database"
	"github.com/blogem/licitacoes/logging"
	"github.com/blogem/licitacoes/middleware"
	"github.com/blogem/licitacoes/repositories"
	"github.com/blogem/licitacoes/services"
)

type fakeProvider struct{}

func (fakeProvider) GetAuthURL(state string) string {
	return "https://idp.example.com/authorize?state=" + url.QueryEscape(state)
}

func (fakeProvider) ExchangeCode(ctx context.Context, code string) (*authenticator.Token, error) {
	if code != "good-code" {
		return nil, errors.New("invalid_grant")
	}
	return &authenticator.Token{IDToken: "id-token"}, nil
}

func (fakeProvider) GetClaims(ctx context.Context, token *authenticator.Token) (authenticator.Claims, error) {
	return authenticator.Claims{"sub": "auth0|9", "email": "joao@prefeitura.gov.br", "nickname": "joao"}, nil
}

type testEnv struct {
	router   http.Handler
	services *services.Services
	ctrl     *Controllers
}

// newTestEnv wires the full stack over a temporary database. With
// requireAuth the API sits behind the session check, as in production.
func newTestEnv(t *testing.T, maxRows int, requireAuth bool) *testEnv {
	t.Helper()

	db, err := database.InitializeDatabase(filepath.Join(t.TempDir(), "test.db"), logging.Discard())
	require.NoError(t, err)

	srvs := services.NewServices(repositories.NewRepositories(db), services.Options{
		Audit: config.AuditConfig{
			RetentionDays: 30,
			QueueSize:     64,
			Workers:       1,
			WriteTimeout:  time.Second,
			ExportMaxRows: maxRows,
		},
		Logger: logging.Discard(),
	})
	t.Cleanup(func() {
		srvs.Recorder.Close(context.Background())
		db.Close()
	})

	ctrl := NewControllers(srvs, Options{
		Provider:    fakeProvider{},
		ExportRate:  0.001,
		ExportBurst: 1,
		Logger:      logging.Discard(),
	})
	ctrl.Audit.now = func() time.Time { return time.Date(2024, 5, 10, 23, 0, 0, 0, time.UTC) }

	sessioner, err := session.Sessioner(session.Options{Provider: "memory", CookieName: "test_session"})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(sessioner)
	r.Use(middleware.Provenance)
	r.Get("/login", ctrl.Auth.Login)
	r.Get("/callback", ctrl.Auth.Callback)
	r.Get("/logout", ctrl.Auth.Logout)
	r.Route("/api", func(r chi.Router) {
		if requireAuth {
			r.Use(middleware.RequireAuth)
		}
		ctrl.MountAPI(r)
	})

	return &testEnv{router: r, services: srvs, ctrl: ctrl}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// flush waits for queued audit events to be written
func (e *testEnv) flush(t *testing.T) {
	t.Helper()
	require.NoError(t, e.services.Recorder.Close(context.Background()))
}

type auditListBody struct {
	Data struct {
		Total   int64 `json:"total"`
		Entries []struct {
			ID         int64  `json:"id"`
			Table      string `json:"table"`
			Operation  string `json:"operation"`
			ActorLabel string `json:"actor_label"`
			SourceIP   string `json:"source_ip"`
			Diff       struct {
				Changed []string `json:"changed_fields"`
			} `json:"diff"`
		} `json:"entries"`
	} `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func TestProcessoChangesAppearInAuditTrail(t *testing.T) {
	env := newTestEnv(t, 100, false)

	rec := env.do(t, http.MethodPost, "/api/processos", `{"numero_processo":"001/2024","objeto":"Obra","situacao_id":3}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Data struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	decode(t, rec, &created)

	rec = env.do(t, http.MethodPut, fmt.Sprintf("/api/processos/%d", created.Data.ID), `{"numero_processo":"001/2024","objeto":"Obra","situacao_id":5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	env.flush(t)

	rec = env.do(t, http.MethodGet, "/api/audit?table=processos&operation=update", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var list auditListBody
	decode(t, rec, &list)
	require.Equal(t, int64(1), list.Data.Total)
	entry := list.Data.Entries[0]
	assert.Equal(t, "UPDATE", entry.Operation)
	assert.Equal(t, "System", entry.ActorLabel)
	assert.Equal(t, "192.0.2.1", entry.SourceIP)
	assert.Equal(t, []string{"situacao_nome"}, entry.Diff.Changed)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/audit/%d", entry.ID), "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/audit/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		Data struct {
			Total       int64            `json:"total"`
			ByOperation map[string]int64 `json:"by_operation"`
		} `json:"data"`
	}
	decode(t, rec, &stats)
	assert.Equal(t, int64(2), stats.Data.Total)
	assert.Equal(t, int64(1), stats.Data.ByOperation["INSERT"])
}

func TestAuditEndpoints_Errors(t *testing.T) {
	env := newTestEnv(t, 100, false)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"unknown entry", "/api/audit/999", http.StatusNotFound},
		{"non numeric id", "/api/audit/abc", http.StatusBadRequest},
		{"bad start date", "/api/audit?start=yesterday", http.StatusBadRequest},
		{"bad operation", "/api/audit?operation=truncate", http.StatusBadRequest},
		{"unknown table", "/api/audit?table=contratos", http.StatusBadRequest},
		{"end before start", "/api/audit?start=2024-03-10&end=2024-03-01", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
		})
	}
}

func TestExport(t *testing.T) {
	env := newTestEnv(t, 100, false)

	rec := env.do(t, http.MethodPost, "/api/referencias/status", `{"nome":"Anulado"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	env.flush(t)

	rec = env.do(t, http.MethodGet, "/api/audit/export?table=situacoes", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "attachment; filename=audit_logs_2024-05-10.csv", rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")

	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, services.ExportColumns, records[0])
	assert.Equal(t, "INSERT", records[1][5])
	assert.Contains(t, records[1][7], "nome: (empty) -> Anulado")

	rec = env.do(t, http.MethodGet, "/api/audit/export", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestExport_OverLimit(t *testing.T) {
	env := newTestEnv(t, 1, false)

	env.do(t, http.MethodPost, "/api/referencias/status", `{"nome":"Anulado"}`)
	env.do(t, http.MethodPost, "/api/referencias/status", `{"nome":"Cancelado"}`)
	env.flush(t)

	rec := env.do(t, http.MethodGet, "/api/audit/export", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Disposition"))
}

func TestReferenceEndpoints(t *testing.T) {
	env := newTestEnv(t, 100, false)

	rec := env.do(t, http.MethodPut, "/api/referencias/modalidades/1", `{"nome":"Pregão"}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPut, "/api/referencias/modality/1", `{"nome":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/referencias/contratos", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/processos", `{"numero_processo":"010/2024","objeto":"Compra","situacao_id":3}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodDelete, "/api/referencias/situacoes/3", "")
	assert.Equal(t, http.StatusConflict, rec.Code, "statuses in use cannot be deleted")

	rec = env.do(t, http.MethodDelete, "/api/referencias/situacoes/8", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/referencias/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var items struct {
		Data []struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	decode(t, rec, &items)
	assert.Len(t, items.Data, 7)
}

func TestProcessoEndpoints_Errors(t *testing.T) {
	env := newTestEnv(t, 100, false)

	rec := env.do(t, http.MethodPost, "/api/processos", `{"objeto":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/processos", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/processos/42", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/processos/0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/processos", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[]}`, rec.Body.String())
}

func TestLoginFlow(t *testing.T) {
	env := newTestEnv(t, 100, true)
	server := httptest.NewServer(env.router)
	defer server.Close()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	get := func(path string) *http.Response {
		resp, err := client.Get(server.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}

	assert.Equal(t, http.StatusUnauthorized, get("/api/dashboard").StatusCode)

	resp := get("/login")
	require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	assert.Equal(t, http.StatusBadRequest, get("/callback?state=forged&code=good-code").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, get("/callback?state="+url.QueryEscape(state)+"&code=bad-code").StatusCode)

	resp = get("/callback?state=" + url.QueryEscape(state) + "&code=good-code")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	env.flush(t)

	resp, err = client.Get(server.URL + "/api/audit?table=users")
	require.NoError(t, err)
	var list auditListBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	require.Equal(t, int64(1), list.Data.Total)
	assert.Equal(t, "INSERT", list.Data.Entries[0].Operation)
	assert.Equal(t, "joao", list.Data.Entries[0].ActorLabel)

	assert.Equal(t, http.StatusSeeOther, get("/logout").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, get("/api/dashboard").StatusCode)
}
