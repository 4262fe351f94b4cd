package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tckz/static-front/internal/edge"
	"github.com/tckz/static-front/internal/idp"
	"github.com/tckz/static-front/internal/session"
)

const (
	pendingTTL = 5 * time.Minute
	sessionTTL = time.Hour
)

// fakeIdP satisfies Exchanger without a network.
type fakeIdP struct {
	exchanged []string
	err       error
}

func (f *fakeIdP) AuthCodeURL(state string) string {
	return "https://idp.example/login?response_type=code&state=" + url.QueryEscape(state) +
		"&client_id=client-1&redirect_uri=" + url.QueryEscape("https://front.example/signin")
}

func (f *fakeIdP) Exchange(_ context.Context, code string) (*idp.Identity, error) {
	f.exchanged = append(f.exchanged, code)
	if f.err != nil {
		return nil, f.err
	}
	return &idp.Identity{Subject: "user-1", Email: "user@example.com"}, nil
}

// countingStore records how often the underlying store is touched.
type countingStore struct {
	session.Store
	gets, puts, deletes int
}

func (s *countingStore) Get(ctx context.Context, id string) (*session.Record, error) {
	s.gets++
	return s.Store.Get(ctx, id)
}

func (s *countingStore) Put(ctx context.Context, rec *session.Record) error {
	s.puts++
	return s.Store.Put(ctx, rec)
}

func (s *countingStore) Delete(ctx context.Context, id string) error {
	s.deletes++
	return s.Store.Delete(ctx, id)
}

// failingDeleteStore simulates a store whose deletes always fail.
type failingDeleteStore struct {
	session.Store
}

func (s *failingDeleteStore) Delete(context.Context, string) error {
	return errors.New("simulated delete failure")
}

// failingGetStore simulates a store whose reads always fail.
type failingGetStore struct {
	session.Store
}

func (s *failingGetStore) Get(context.Context, string) (*session.Record, error) {
	return nil, errors.New("simulated get failure")
}

func newRedisSessionStore(t *testing.T) session.Store {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return session.NewRedisStore(rdb, "")
}

func newGatewayOver(t *testing.T, store session.Store) (*Gateway, *fakeIdP) {
	t.Helper()
	client := &fakeIdP{}
	gw := New(
		store,
		client,
		session.CookieCodec{Name: "sessionid", Path: "/"},
		Config{PendingTTL: pendingTTL, SessionTTL: sessionTTL},
		slog.New(slog.DiscardHandler),
	)
	return gw, client
}

func newGatewayTest(t *testing.T) (*Gateway, *countingStore, *fakeIdP) {
	t.Helper()
	store := &countingStore{Store: newRedisSessionStore(t)}
	gw, client := newGatewayOver(t, store)
	return gw, store, client
}

func newRequest(uri, querystring, cookie string) *edge.Request {
	headers := edge.Headers{}
	if cookie != "" {
		headers.Add("Cookie", cookie)
	}
	return &edge.Request{
		Method:      "GET",
		URI:         uri,
		Querystring: querystring,
		Headers:     headers,
	}
}

func setCookie(t *testing.T, resp *edge.Response) *http.Cookie {
	t.Helper()
	values := resp.Headers.Values("set-cookie")
	require.Len(t, values, 1)
	ck, err := http.ParseSetCookie(values[0])
	require.NoError(t, err)
	return ck
}

func location(t *testing.T, resp *edge.Response) *url.URL {
	t.Helper()
	values := resp.Headers.Values("location")
	require.Len(t, values, 1)
	u, err := url.Parse(values[0])
	require.NoError(t, err)
	return u
}

func TestGateWithoutCookieStartsLogin(t *testing.T) {
	gw, store, _ := newGatewayTest(t)

	resp, err := gw.Gate(context.Background(), newRequest("/dashboard", "", ""))
	require.NoError(t, err)
	require.False(t, resp.IsPassThrough())
	assert.Equal(t, 307, resp.Status)

	ck := setCookie(t, resp)
	assert.Equal(t, "sessionid", ck.Name)
	assert.Equal(t, int(pendingTTL/time.Second), ck.MaxAge)

	loc := location(t, resp)
	assert.Equal(t, "idp.example", loc.Host)
	assert.Equal(t, "/login", loc.Path)
	assert.Equal(t, "code", loc.Query().Get("response_type"))

	// The state in the redirect is exactly the state just persisted under
	// the cookie's session id.
	rec, err := store.Get(context.Background(), ck.Value)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, session.KindPending, rec.Kind)
	assert.Equal(t, rec.State, loc.Query().Get("state"))
	assert.Equal(t, "/dashboard", rec.BackURI)
}

func TestGateWithUnknownCookieBehavesLikeNoCookie(t *testing.T) {
	gw, _, _ := newGatewayTest(t)

	bare, err := gw.Gate(context.Background(), newRequest("/dashboard", "", ""))
	require.NoError(t, err)

	stale, err := gw.Gate(context.Background(), newRequest("/dashboard", "", "sessionid=no-such-id"))
	require.NoError(t, err)

	assert.Equal(t, bare.Status, stale.Status)
	assert.False(t, stale.IsPassThrough())

	// Same response shape: fresh pending cookie, redirect to the login page.
	ck := setCookie(t, stale)
	assert.NotEqual(t, "no-such-id", ck.Value)
	assert.Equal(t, int(pendingTTL/time.Second), ck.MaxAge)
	assert.Equal(t, "/login", location(t, stale).Path)
}

func TestGateWithPendingCookieRestartsLogin(t *testing.T) {
	gw, store, _ := newGatewayTest(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, session.NewPending("p1", "s1", "/x", pendingTTL)))

	resp, err := gw.Gate(ctx, newRequest("/dashboard", "", "sessionid=p1"))
	require.NoError(t, err)
	assert.Equal(t, 307, resp.Status)
	assert.NotEqual(t, "p1", setCookie(t, resp).Value)
}

func TestGateWithAuthenticatedCookiePassesThrough(t *testing.T) {
	gw, store, _ := newGatewayTest(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, session.NewAuthenticated("a1", sessionTTL)))

	req := newRequest("/dashboard", "", "sessionid=a1")
	resp, err := gw.Gate(ctx, req)
	require.NoError(t, err)
	require.True(t, resp.IsPassThrough())
	assert.Same(t, req, resp.Request)
	assert.Empty(t, resp.Headers)
}

func TestCallbackPromotesPendingSession(t *testing.T) {
	gw, store, client := newGatewayTest(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, session.NewPending("p1", "s1", "/dashboard", pendingTTL)))

	resp, err := gw.Callback(ctx, newRequest("/signin", "code=abc&state=s1", "sessionid=p1"))
	require.NoError(t, err)
	assert.Equal(t, 307, resp.Status)
	assert.Equal(t, []string{"abc"}, client.exchanged)

	// Pending record is consumed.
	gone, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, gone)

	// A brand-new authenticated record backs the new cookie.
	ck := setCookie(t, resp)
	assert.NotEqual(t, "p1", ck.Value)
	assert.Equal(t, int(sessionTTL/time.Second), ck.MaxAge)

	rec, err := store.Get(ctx, ck.Value)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, session.KindAuthenticated, rec.Kind)

	assert.Equal(t, "/dashboard", location(t, resp).Path)
}

func TestCallbackStateMismatchIsBadRequest(t *testing.T) {
	gw, store, client := newGatewayTest(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, session.NewPending("p1", "s1", "/dashboard", pendingTTL)))

	resp, err := gw.Callback(ctx, newRequest("/signin", "code=abc&state=wrong", "sessionid=p1"))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.Status)
	assert.Empty(t, client.exchanged)

	// No session was minted; the only put is the seeded pending record.
	assert.Equal(t, 1, store.puts)
	rec, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, session.KindPending, rec.Kind)
}

func TestCallbackMissingInputsShortCircuits(t *testing.T) {
	tests := []struct {
		name        string
		querystring string
		cookie      string
	}{
		{"no cookie", "code=abc&state=s1", ""},
		{"no code", "state=s1", "sessionid=p1"},
		{"no state", "code=abc", "sessionid=p1"},
		{"empty query", "", "sessionid=p1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw, store, client := newGatewayTest(t)

			resp, err := gw.Callback(context.Background(), newRequest("/signin", tt.querystring, tt.cookie))
			require.NoError(t, err)
			assert.Equal(t, 400, resp.Status)

			// Rejected before any store or IdP contact.
			assert.Zero(t, store.gets)
			assert.Zero(t, store.puts)
			assert.Empty(t, client.exchanged)
		})
	}
}

func TestCallbackUnknownSessionIsBadRequest(t *testing.T) {
	gw, _, client := newGatewayTest(t)

	resp, err := gw.Callback(context.Background(), newRequest("/signin", "code=abc&state=s1", "sessionid=nope"))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.Status)
	assert.Empty(t, client.exchanged)
}

func TestCallbackExchangeFailureAborts(t *testing.T) {
	gw, store, client := newGatewayTest(t)
	ctx := context.Background()
	client.err = errors.New("token endpoint down")

	require.NoError(t, store.Put(ctx, session.NewPending("p1", "s1", "/", pendingTTL)))

	_, err := gw.Callback(ctx, newRequest("/signin", "code=abc&state=s1", "sessionid=p1"))
	require.Error(t, err)
}

func TestSignOutDeletesSessionAndClearsCookie(t *testing.T) {
	gw, store, _ := newGatewayTest(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, session.NewAuthenticated("a1", sessionTTL)))

	resp, err := gw.SignOut(ctx, newRequest("/signout", "", "sessionid=a1"))
	require.NoError(t, err)
	assert.Equal(t, 307, resp.Status)

	ck := setCookie(t, resp)
	assert.Empty(t, ck.Value)
	assert.Equal(t, -1, ck.MaxAge) // Max-Age=0 on the wire

	assert.Equal(t, "/", location(t, resp).Path)

	gone, err := store.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestSignOutSurvivesDeleteFailure(t *testing.T) {
	store := &failingDeleteStore{Store: newRedisSessionStore(t)}
	gw, _ := newGatewayOver(t, store)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, session.NewAuthenticated("a1", sessionTTL)))

	resp, err := gw.SignOut(ctx, newRequest("/signout", "", "sessionid=a1"))
	require.NoError(t, err)
	assert.Equal(t, 307, resp.Status)
	assert.Empty(t, setCookie(t, resp).Value)
}

func TestSignOutSurvivesLookupFailure(t *testing.T) {
	store := &failingGetStore{Store: newRedisSessionStore(t)}
	gw, _ := newGatewayOver(t, store)

	resp, err := gw.SignOut(context.Background(), newRequest("/signout", "", "sessionid=a1"))
	require.NoError(t, err)
	assert.Equal(t, 307, resp.Status)
	assert.Empty(t, setCookie(t, resp).Value)
	assert.Equal(t, "/", location(t, resp).Path)
}

func TestCallbackSurvivesPendingDeleteFailure(t *testing.T) {
	store := &failingDeleteStore{Store: newRedisSessionStore(t)}
	gw, client := newGatewayOver(t, store)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, session.NewPending("p1", "s1", "/dashboard", pendingTTL)))

	resp, err := gw.Callback(ctx, newRequest("/signin", "code=abc&state=s1", "sessionid=p1"))
	require.NoError(t, err)
	assert.Equal(t, 307, resp.Status)
	assert.Equal(t, []string{"abc"}, client.exchanged)
	assert.Equal(t, "/dashboard", location(t, resp).Path)

	// The promotion still happens under a new id with the full lifetime.
	ck := setCookie(t, resp)
	assert.NotEqual(t, "p1", ck.Value)
	assert.Equal(t, int(sessionTTL/time.Second), ck.MaxAge)

	rec, err := store.Get(ctx, ck.Value)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, session.KindAuthenticated, rec.Kind)

	// The pending record could not be deleted and is left for the store TTL.
	orphan, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.NotNil(t, orphan)
}

func TestSignOutWithoutCookieSkipsStore(t *testing.T) {
	gw, store, _ := newGatewayTest(t)

	resp, err := gw.SignOut(context.Background(), newRequest("/signout", "", ""))
	require.NoError(t, err)
	assert.Equal(t, 307, resp.Status)
	assert.Zero(t, store.gets)
	assert.Zero(t, store.deletes)
}

func TestSignOutWithPendingSessionIsQuiet(t *testing.T) {
	gw, store, _ := newGatewayTest(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, session.NewPending("p1", "s1", "/", pendingTTL)))

	resp, err := gw.SignOut(ctx, newRequest("/signout", "", "sessionid=p1"))
	require.NoError(t, err)
	assert.Equal(t, 307, resp.Status)
	assert.Zero(t, store.deletes)

	// Pending record is left for the store TTL.
	rec, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.NotNil(t, rec)
}

func TestLoginRoundTrip(t *testing.T) {
	gw, _, _ := newGatewayTest(t)
	ctx := context.Background()

	// 1. Unauthenticated access is redirected to the login page.
	first, err := gw.Gate(ctx, newRequest("/dashboard", "", ""))
	require.NoError(t, err)
	pendingCookie := setCookie(t, first)
	state := location(t, first).Query().Get("state")
	require.NotEmpty(t, state)

	// 2. The IdP sends the browser back with code and state.
	second, err := gw.Callback(ctx, newRequest(
		"/signin",
		"code=abc&state="+url.QueryEscape(state),
		"sessionid="+pendingCookie.Value,
	))
	require.NoError(t, err)
	assert.Equal(t, 307, second.Status)
	assert.Equal(t, "/dashboard", location(t, second).Path)
	sessionCookie := setCookie(t, second)
	assert.NotEqual(t, pendingCookie.Value, sessionCookie.Value)

	// 3. The next access with the new cookie passes through untouched.
	req := newRequest("/dashboard", "", "sessionid="+sessionCookie.Value)
	third, err := gw.Gate(ctx, req)
	require.NoError(t, err)
	require.True(t, third.IsPassThrough())
	assert.Same(t, req, third.Request)
	assert.Empty(t, third.Headers)
}
