package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funpr/verza-invest-ai/internal/bus"
	"github.com/funpr/verza-invest-ai/internal/config"
	"github.com/funpr/verza-invest-ai/internal/domain"
	"github.com/funpr/verza-invest-ai/internal/ledger"
	"github.com/funpr/verza-invest-ai/internal/registry"
	"github.com/funpr/verza-invest-ai/internal/store/memory"
	"github.com/funpr/verza-invest-ai/internal/stream"
)

type pingStub struct {
	err error
}

func (p pingStub) Ping(context.Context) error { return p.err }

type serverFixture struct {
	srv      *Server
	sessions *memory.SessionStore
	topics   *memory.TopicStore
	users    *memory.UserDirectory
}

func newServerFixture(t *testing.T, disablePush bool) *serverFixture {
	t.Helper()

	cfg := &config.Config{
		AppEnv:            "test",
		Port:              "0",
		SessionSecret:     "test-secret",
		DisablePush:       disablePush,
		HeartbeatInterval: 15 * time.Second,
		MaxStreamsPerKey:  4,
	}

	f := &serverFixture{
		sessions: memory.NewSessionStore(),
		topics:   memory.NewTopicStore(),
		users:    memory.NewUserDirectory(),
	}

	clock := clockwork.NewFakeClock()
	sessionBus := bus.New("session")
	siteBus := bus.New("site")
	reg := registry.New(f.sessions, f.users, sessionBus, siteBus, clock)
	led := ledger.New(f.topics, siteBus)

	var siteStreamer, sessionStream *stream.Streamer
	if !disablePush {
		siteStreamer = stream.New(siteBus, "site", clock, cfg.HeartbeatInterval, cfg.MaxStreamsPerKey)
		sessionStream = stream.New(sessionBus, "session", clock, cfg.HeartbeatInterval, cfg.MaxStreamsPerKey)
	}

	f.srv = NewServer(cfg, reg, led, f.topics, siteStreamer, sessionStream, pingStub{})
	return f
}

func (f *serverFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.srv.echo.ServeHTTP(rec, req)
	return rec
}

// authCookie forges a signed identity cookie the way the auth layer would.
func (f *serverFixture) authCookie(t *testing.T, userID string, roles ...string) *http.Cookie {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	session, err := f.srv.cookieStore.New(req, identityCookie)
	require.NoError(t, err)
	session.Values[cookieKeyUserID] = userID
	if len(roles) > 0 {
		session.Values[cookieKeyRoles] = roles
	}
	require.NoError(t, session.Save(req, rec))

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies[0]
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestVote_RequiresIdentity(t *testing.T) {
	f := newServerFixture(t, false)

	rec := f.do(jsonRequest(http.MethodPost, "/api/topics/vote", `{"id":1}`))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVote_MissingTopicID(t *testing.T) {
	f := newServerFixture(t, false)

	req := jsonRequest(http.MethodPost, "/api/topics/vote", `{}`)
	req.AddCookie(f.authCookie(t, "user-a"))
	rec := f.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVote_UnknownTopic(t *testing.T) {
	f := newServerFixture(t, false)

	req := jsonRequest(http.MethodPost, "/api/topics/vote", `{"id":99}`)
	req.AddCookie(f.authCookie(t, "user-a"))
	rec := f.do(req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVote_ReturnsUpdatedTopic(t *testing.T) {
	f := newServerFixture(t, false)
	f.topics.Seed(domain.Topic{ID: 1, Title: "Index funds", Status: domain.TopicStatusApproved})

	req := jsonRequest(http.MethodPost, "/api/topics/vote", `{"id":1}`)
	req.AddCookie(f.authCookie(t, "user-a"))
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":1,"en":"Index funds","votes":1,"flashcard":"","status":"approved","isActive":false}`, rec.Body.String())
}

func TestJoinSession_CreatesAndReturnsSuccess(t *testing.T) {
	f := newServerFixture(t, false)

	req := jsonRequest(http.MethodPost, "/api/sessions/abc123", `{"isPublic":true}`)
	req.AddCookie(f.authCookie(t, "owner-1"))
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	getRec := f.do(httptest.NewRequest(http.MethodGet, "/api/sessions/abc123", nil))
	require.Equal(t, http.StatusOK, getRec.Code)
	assert.Contains(t, getRec.Body.String(), `"owner":"owner-1"`)
}

func TestJoinSession_NoBodyDefaultsPublic(t *testing.T) {
	f := newServerFixture(t, false)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/abc123", nil)
	req.AddCookie(f.authCookie(t, "owner-1"))
	rec := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	sess, err := f.sessions.Get(context.Background(), "abc123")
	require.NoError(t, err)
	assert.True(t, sess.IsPublic)
}

func TestJoinSession_TerminatedIsGone(t *testing.T) {
	f := newServerFixture(t, false)
	createAndTerminate(t, f, "abc123", "owner-1")

	req := jsonRequest(http.MethodPost, "/api/sessions/abc123", ``)
	req.AddCookie(f.authCookie(t, "guest-1"))
	rec := f.do(req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSession_Unknown(t *testing.T) {
	f := newServerFixture(t, false)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/sessions/nosuch", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateSession_RequiresIdentity(t *testing.T) {
	f := newServerFixture(t, false)

	rec := f.do(jsonRequest(http.MethodPatch, "/api/sessions/abc123", `{"isActive":false}`))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateSession_EmptyPatch(t *testing.T) {
	f := newServerFixture(t, false)
	createSession(t, f, "abc123", "owner-1")

	req := jsonRequest(http.MethodPatch, "/api/sessions/abc123", `{}`)
	req.AddCookie(f.authCookie(t, "owner-1"))
	rec := f.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateSession_ReactivationRejected(t *testing.T) {
	f := newServerFixture(t, false)
	createSession(t, f, "abc123", "owner-1")

	req := jsonRequest(http.MethodPatch, "/api/sessions/abc123", `{"isActive":true}`)
	req.AddCookie(f.authCookie(t, "owner-1"))
	rec := f.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateSession_NonOwnerForbidden(t *testing.T) {
	f := newServerFixture(t, false)
	createSession(t, f, "abc123", "owner-1")

	req := jsonRequest(http.MethodPatch, "/api/sessions/abc123", `{"currentTopicId":3}`)
	req.AddCookie(f.authCookie(t, "guest-1"))
	rec := f.do(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpdateSession_ModeratorAllowed(t *testing.T) {
	f := newServerFixture(t, false)
	createSession(t, f, "abc123", "owner-1")

	req := jsonRequest(http.MethodPatch, "/api/sessions/abc123", `{"isActive":false}`)
	req.AddCookie(f.authCookie(t, "mod-1", "moderator"))
	rec := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	getRec := f.do(httptest.NewRequest(http.MethodGet, "/api/sessions/abc123", nil))
	assert.Equal(t, http.StatusNotFound, getRec.Code, "terminated sessions read as gone")
}

func TestUpdateSession_OwnerSetsTopic(t *testing.T) {
	f := newServerFixture(t, false)
	createSession(t, f, "abc123", "owner-1")

	req := jsonRequest(http.MethodPatch, "/api/sessions/abc123", `{"currentTopicId":7}`)
	req.AddCookie(f.authCookie(t, "owner-1"))
	rec := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	getRec := f.do(httptest.NewRequest(http.MethodGet, "/api/sessions/abc123", nil))
	assert.Contains(t, getRec.Body.String(), `"currentTopicId":7`)
}

func TestLeaveSession_AnonymousSilentSuccess(t *testing.T) {
	f := newServerFixture(t, false)

	rec := f.do(httptest.NewRequest(http.MethodDelete, "/api/sessions/abc123", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
}

func TestLeaveSession_RemovesParticipant(t *testing.T) {
	f := newServerFixture(t, false)
	createSession(t, f, "abc123", "owner-1")

	joinReq := httptest.NewRequest(http.MethodPost, "/api/sessions/abc123", nil)
	joinReq.AddCookie(f.authCookie(t, "guest-1"))
	require.Equal(t, http.StatusOK, f.do(joinReq).Code)

	leaveReq := httptest.NewRequest(http.MethodDelete, "/api/sessions/abc123", nil)
	leaveReq.AddCookie(f.authCookie(t, "guest-1"))
	require.Equal(t, http.StatusOK, f.do(leaveReq).Code)

	sess, err := f.sessions.Get(context.Background(), "abc123")
	require.NoError(t, err)
	assert.False(t, sess.HasParticipant("guest-1"))
}

func TestGetData_FullPayload(t *testing.T) {
	f := newServerFixture(t, false)
	f.topics.Seed(
		domain.Topic{ID: 1, Title: "Index funds", Status: domain.TopicStatusApproved},
		domain.Topic{ID: 2, Title: "Crypto", Status: domain.TopicStatusApproved, WeeklyPick: true},
		domain.Topic{ID: 3, Title: "Hidden", Status: domain.TopicStatusPending},
	)
	f.users.SetName("owner-1", "Ada")
	createSession(t, f, "abc123", "owner-1")

	voteReq := jsonRequest(http.MethodPost, "/api/topics/vote", `{"id":1}`)
	voteReq.AddCookie(f.authCookie(t, "user-a"))
	require.Equal(t, http.StatusOK, f.do(voteReq).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
	req.AddCookie(f.authCookie(t, "user-a"))
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"votedTopicId":1`)
	assert.Contains(t, body, `"activeTopic"`)
	assert.Contains(t, body, `"Crypto"`)
	assert.NotContains(t, body, `"Hidden"`, "pending topics are not served")
	assert.Contains(t, body, `"publicSessions":[{"sessionId":"abc123","ownerName":"Ada","participantCount":1}]`)
}

func TestGetData_AnonymousHasNoVote(t *testing.T) {
	f := newServerFixture(t, false)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/data", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"votedTopicId"`)
}

func TestStreamRoutes_AbsentWhenPushDisabled(t *testing.T) {
	f := newServerFixture(t, true)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/data/events", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/sessions/abc123/events", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamRoutes_ServeConnectedFrame(t *testing.T) {
	f := newServerFixture(t, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // the handler writes the ack and returns on the dead context

	req := httptest.NewRequest(http.MethodGet, "/api/data/events", nil).WithContext(ctx)
	rec := f.do(req)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), ": connected\n\n")
}

func TestHealth(t *testing.T) {
	f := newServerFixture(t, false)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth_ReadinessFailsWhenStoreDown(t *testing.T) {
	f := newServerFixture(t, false)
	f.srv.storeHealth = pingStub{err: errors.New("connection refused")}

	rec := f.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unhealthy")
}

func TestMetricsEndpoint(t *testing.T) {
	f := newServerFixture(t, false)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func createSession(t *testing.T, f *serverFixture, sessionID, ownerID string) {
	t.Helper()

	req := jsonRequest(http.MethodPost, "/api/sessions/"+sessionID, `{"isPublic":true}`)
	req.AddCookie(f.authCookie(t, ownerID))
	require.Equal(t, http.StatusOK, f.do(req).Code)
}

func createAndTerminate(t *testing.T, f *serverFixture, sessionID, ownerID string) {
	t.Helper()

	createSession(t, f, sessionID, ownerID)
	req := jsonRequest(http.MethodPatch, "/api/sessions/"+sessionID, `{"isActive":false}`)
	req.AddCookie(f.authCookie(t, ownerID))
	require.Equal(t, http.StatusOK, f.do(req).Code)
}
