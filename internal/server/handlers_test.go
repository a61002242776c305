package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Saiid2001/login-security-landscape/internal/config"
	"github.com/Saiid2001/login-security-landscape/internal/domain"
	"github.com/Saiid2001/login-security-landscape/internal/lease"
)

func newTestServer(t *testing.T, svc leaseService) *Server {
	t.Helper()
	dispatcher := startDispatcher(t, svc)
	return NewServer(&config.Config{Port: "0"}, dispatcher, nil)
}

func postAPI(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func TestHandleAPI_GetSessionSuccess(t *testing.T) {
	svc := &fakeLeaseService{
		acquireFn: func(context.Context, string, string) (*lease.Grant, error) {
			g := testGrant("session-1")
			g.SessionData = json.RawMessage(`{"cookies":[]}`)
			return g, nil
		},
	}
	srv := newTestServer(t, svc)

	rec := postAPI(t, srv, `{"type":"get_session","experiment":"expA"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var reply struct {
		Success     bool            `json:"success"`
		Session     domain.Session  `json:"session"`
		SessionData json.RawMessage `json:"session_data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.True(t, reply.Success)
	assert.Equal(t, "session-1", reply.Session.Name)
	assert.JSONEq(t, `{"cookies":[]}`, string(reply.SessionData))
}

func TestHandleAPI_NoSessionAvailable(t *testing.T) {
	svc := &fakeLeaseService{
		acquireFn: func(context.Context, string, string) (*lease.Grant, error) {
			return nil, domain.ErrNoSessionAvailable
		},
	}
	srv := newTestServer(t, svc)

	rec := postAPI(t, srv, `{"type":"get_session","experiment":"expA"}`)

	// Application errors still travel as 200 with the success flag.
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"no sessions available"}`, rec.Body.String())
}

func TestHandleAPI_UnlockUnknownSession(t *testing.T) {
	svc := &fakeLeaseService{
		releaseFn: func(context.Context, string, string) error {
			return domain.ErrSessionNotFound
		},
	}
	srv := newTestServer(t, svc)

	rec := postAPI(t, srv, `{"type":"unlock_session","experiment":"expA","session_id":"session-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"Session does not exist or does not belong to the experiment!"}`, rec.Body.String())
}

func TestHandleAPI_UnlockSuccess(t *testing.T) {
	svc := &fakeLeaseService{
		releaseFn: func(context.Context, string, string) error { return nil },
	}
	srv := newTestServer(t, svc)

	rec := postAPI(t, srv, `{"type":"unlock_session","experiment":"expA","session_id":"session-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
}

func TestHandleAPI_IllegalRequestType(t *testing.T) {
	srv := newTestServer(t, &fakeLeaseService{})

	rec := postAPI(t, srv, `{"type":"borrow_session","experiment":"expA"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"illegal request type borrow_session"}`, rec.Body.String())
}

func TestHandleAPI_MalformedBody(t *testing.T) {
	srv := newTestServer(t, &fakeLeaseService{})

	rec := postAPI(t, srv, `{"type":`)
	require.Equal(t, http.StatusOK, rec.Code)

	var reply struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.False(t, reply.Success)
	assert.Contains(t, reply.Error, "invalid request")
}

func TestHandleAPI_BatchReplyShape(t *testing.T) {
	svc := &fakeLeaseService{
		acquireBatchFn: func(_ context.Context, _ string, k int, _ string) (*lease.BatchGrant, error) {
			assert.Equal(t, 2, k, "omitted k falls back to the default batch size")
			return &lease.BatchGrant{
				Site:   "example.org",
				Grants: []lease.Grant{*testGrant("session-1"), *testGrant("session-2")},
			}, nil
		},
	}
	srv := newTestServer(t, svc)

	rec := postAPI(t, srv, `{"type":"get_sessions","experiment":"expA"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var reply struct {
		Success  bool   `json:"success"`
		Site     string `json:"site"`
		Sessions []struct {
			Session domain.Session `json:"session"`
		} `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.True(t, reply.Success)
	assert.Equal(t, "example.org", reply.Site)
	assert.Len(t, reply.Sessions, 2)
}
