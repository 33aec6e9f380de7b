package appointments

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-appointments/internal/notify"
	"github.com/wolfman30/clinic-appointments/internal/session"
	"github.com/wolfman30/clinic-appointments/internal/validation"
)

type apiFixture struct {
	harness  *harness
	registry *Registry
	feed     *notify.MemoryFeed
	router   chi.Router
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	h := newHarness(t)
	feed := notify.NewMemoryFeed(5 * time.Second).WithClock(func() time.Time { return fixedNow })
	h.deps.Presenter = feed
	reg := NewRegistry(h.deps)
	t.Cleanup(reg.Close)

	handler := NewHandler(HandlerConfig{
		Registry:      reg,
		Notifications: feed,
	})
	r := chi.NewRouter()
	r.Route("/api", handler.RegisterRoutes)
	return &apiFixture{harness: h, registry: reg, feed: feed, router: r}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (f *apiFixture) createSession(t *testing.T) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decode[stateResponse](t, rec)
	assert.Equal(t, StateIdle, resp.State)
	return resp.SessionID
}

func TestHandler_ListServicesAndContact(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/services", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	services := decode[struct {
		Services []struct {
			Code string `json:"code"`
			Name string `json:"name"`
		} `json:"services"`
	}](t, rec)
	require.Len(t, services.Services, 6)
	assert.Equal(t, "consulta-general", services.Services[0].Code)
	assert.Equal(t, "Cardiología", services.Services[1].Name)

	rec = f.do(t, http.MethodGet, "/api/contact", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	contact := decode[Contact](t, rec)
	assert.Equal(t, "tel:+525512345678", contact.TelURI)
}

func TestHandler_ValidateField(t *testing.T) {
	f := newAPIFixture(t)

	tests := []struct {
		kind, value string
		valid       bool
		reason      string
	}{
		{"email", "ana@example.com", true, ""},
		{"email", "ana@example", false, validation.ReasonEmail},
		{"tel", "+52 55 1234 5678", true, ""},
		{"tel", "55-abc", false, validation.ReasonPhone},
		{"text", "   ", false, validation.ReasonRequired},
		{"date", "2026-10-01", false, validation.ReasonDatePast},
	}
	for _, tt := range tests {
		rec := f.do(t, http.MethodPost, "/api/validate", ValidateFieldRequest{Field: "x", Kind: tt.kind, Value: tt.value})
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[ValidateFieldResponse](t, rec)
		assert.Equal(t, tt.valid, resp.Valid, "%s %q", tt.kind, tt.value)
		assert.Equal(t, tt.reason, resp.Error)
	}

	rec := f.do(t, http.MethodPost, "/api/validate", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_RejectsOversizedBody(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createSession(t)

	fields := validFields()
	fields.Symptoms = strings.Repeat("a", maxBodyBytes)
	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/validate"},
		{http.MethodPut, "/api/sessions/" + id + "/form"},
		{http.MethodPost, "/api/sessions/" + id + "/appointment"},
	} {
		rec := f.do(t, tc.method, tc.path, fields)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, tc.path)
	}

	wf, err := f.registry.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, wf.State())
}

func TestHandler_UnknownSession(t *testing.T) {
	f := newAPIFixture(t)
	for _, path := range []string{"/api/sessions/nope", "/api/sessions/nope/notifications"} {
		rec := f.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
	rec := f.do(t, http.MethodPost, "/api/sessions/nope/appointment", validFields())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_SubmitConfirmFlow(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createSession(t)
	base := "/api/sessions/" + id

	rec := f.do(t, http.MethodPut, base+"/form", RawFields{PatientName: "Ana"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ana", decode[Snapshot](t, rec).Draft.PatientName)

	bad := validFields()
	bad.Email = "nope"
	rec = f.do(t, http.MethodPost, base+"/appointment", bad)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errBody := decode[errorResponse](t, rec)
	assert.Equal(t, FieldEmail, errBody.Field)
	assert.Equal(t, validation.ReasonEmail, errBody.Error)

	rec = f.do(t, http.MethodGet, base+"/notifications", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[struct {
		Notifications []notify.Notification `json:"notifications"`
	}](t, rec)
	require.Len(t, listed.Notifications, 1)
	warning := listed.Notifications[0]
	assert.Equal(t, notify.SeverityWarning, warning.Severity)
	assert.Equal(t, "Advertencia", warning.Title)

	rec = f.do(t, http.MethodDelete, base+"/notifications/"+warning.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodDelete, base+"/notifications/"+warning.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, base+"/appointment", validFields())
	require.Equal(t, http.StatusOK, rec.Code)
	submitted := decode[struct {
		State        State        `json:"state"`
		Confirmation Confirmation `json:"confirmation"`
	}](t, rec)
	assert.Equal(t, StateConfirmation, submitted.State)
	assert.Equal(t, "Cardiología", submitted.Confirmation.ServiceName)

	rec = f.do(t, http.MethodPost, base+"/appointment", validFields())
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, base+"/appointment/confirm", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, StateSubmitting, decode[stateResponse](t, rec).State)

	rec = f.do(t, http.MethodPost, base+"/appointment/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	f.harness.timer.Fire(t)
	require.Eventually(t, func() bool {
		wf, err := f.registry.Get(id)
		return err == nil && wf.State() == StateIdle
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return len(f.harness.submitter.requests()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	active, err := f.feed.Active(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, notify.SeverityInfo, active[0].Severity)
	assert.Equal(t, notify.SeveritySuccess, active[1].Severity)

	rec = f.do(t, http.MethodGet, base, nil)
	snap := decode[Snapshot](t, rec)
	assert.Equal(t, StateIdle, snap.State)
	assert.Equal(t, RawFields{}, snap.Draft)
}

func TestHandler_Cancel(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createSession(t)
	base := "/api/sessions/" + id

	rec := f.do(t, http.MethodPost, base+"/appointment/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, base+"/appointment", validFields())
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, base+"/appointment/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StateIdle, decode[stateResponse](t, rec).State)

	active, err := f.feed.Active(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestHandler_StreamDisabled(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createSession(t)
	rec := f.do(t, http.MethodGet, "/api/sessions/"+id+"/notifications/stream", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionContext_Header(t *testing.T) {
	f := newAPIFixture(t)
	id := f.createSession(t)

	var seen string
	handler := NewHandler(HandlerConfig{Registry: f.registry})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = session.IDFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(session.HeaderName, id)
	rec := httptest.NewRecorder()
	handler.SessionContext(next).ServeHTTP(rec, req)
	assert.Equal(t, id, seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	handler.SessionContext(next).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
