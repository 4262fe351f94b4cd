// Package gateway implements the authentication state machine guarding the
// origin: an access gate that drives unauthenticated callers into the IdP
// login flow, the login callback completing that flow, and sign-out.
//
// Per session id the machine moves UNAUTH -> PENDING (gate) -> AUTHENTICATED
// (callback, always under a freshly minted id) -> UNAUTH (sign-out or store
// TTL). A record of the wrong kind for a handler is treated as UNAUTH, never
// as an error.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/tckz/static-front/internal/edge"
	"github.com/tckz/static-front/internal/idp"
	"github.com/tckz/static-front/internal/session"
)

// Exchanger is the slice of the IdP client the gateway needs.
type Exchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*idp.Identity, error)
}

// Config is the immutable gateway policy, injected at construction.
type Config struct {
	PendingTTL time.Duration // lifetime of a login attempt
	SessionTTL time.Duration // lifetime of an authenticated session
	SignOutURI string        // redirect target after sign-out, "/" when empty
}

// Gateway wires the session store, the IdP client and the cookie codec into
// the three request handlers. Handlers are stateless and safe for concurrent
// use.
type Gateway struct {
	store   session.Store
	idp     Exchanger
	cookies session.CookieCodec
	cfg     Config
	log     *slog.Logger
}

func New(store session.Store, client Exchanger, cookies session.CookieCodec, cfg Config, log *slog.Logger) *Gateway {
	if cfg.SignOutURI == "" {
		cfg.SignOutURI = "/"
	}
	return &Gateway{
		store:   store,
		idp:     client,
		cookies: cookies,
		cfg:     cfg,
		log:     log,
	}
}

func badRequest() *edge.Response {
	return &edge.Response{
		Status:            400,
		StatusDescription: "Bad Request",
	}
}

func redirect(location, setCookie string) *edge.Response {
	h := edge.Headers{}
	h.Add("Set-Cookie", setCookie)
	h.Add("Location", location)
	return &edge.Response{
		Status:            307,
		StatusDescription: "Temporary Redirect",
		Headers:           h,
	}
}

// bestEffort is the log-and-continue policy for cleanup calls whose failure
// must not change the user-visible outcome.
func (g *Gateway) bestEffort(op, id string, err error) {
	if err != nil {
		g.log.Warn("ignoring cleanup failure", "op", op, "id", id, "error", err.Error())
	}
}

// Gate admits requests carrying a valid authenticated session and sends
// everything else to the IdP login page with a fresh pending session.
func (g *Gateway) Gate(ctx context.Context, req *edge.Request) (*edge.Response, error) {
	if id := g.cookies.Parse(req.Headers.Values("cookie")); id != "" {
		rec, err := g.store.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get session: %w", err)
		}
		if rec != nil && rec.Kind == session.KindAuthenticated {
			return edge.PassThrough(req), nil
		}
		// Absent, expired or still-pending record: restart the login
		// transaction under a fresh id.
		g.log.Info("session not usable, starting login", "id", id)
	}
	return g.startLogin(ctx, req)
}

func (g *Gateway) startLogin(ctx context.Context, req *edge.Request) (*edge.Response, error) {
	state := session.NewState()
	pending := session.NewPending(session.NewID(), state, req.URI, g.cfg.PendingTTL)

	if err := g.store.Put(ctx, pending); err != nil {
		return nil, fmt.Errorf("put pending session: %w", err)
	}

	g.log.Info("login started", "id", pending.ID, "backuri", pending.BackURI)
	return redirect(
		g.idp.AuthCodeURL(state),
		g.cookies.Set(pending.ID, g.cfg.PendingTTL),
	), nil
}

// Callback completes a login: it validates the CSRF state against the pending
// session, exchanges the authorization code, and promotes the caller to an
// authenticated session under a brand-new id.
func (g *Gateway) Callback(ctx context.Context, req *edge.Request) (*edge.Response, error) {
	query, err := url.ParseQuery(req.Querystring)
	if err != nil {
		query = url.Values{}
	}
	code := query.Get("code")
	state := query.Get("state")
	pendingID := g.cookies.Parse(req.Headers.Values("cookie"))

	if code == "" || state == "" || pendingID == "" {
		g.log.Info("callback missing code, state or session cookie")
		return badRequest(), nil
	}

	pending, err := g.store.Get(ctx, pendingID)
	if err != nil {
		return nil, fmt.Errorf("get pending session: %w", err)
	}
	if pending == nil || pending.Kind != session.KindPending {
		g.log.Info("pending session not found", "id", pendingID)
		return badRequest(), nil
	}
	if pending.State != state {
		g.log.Info("state mismatch", "id", pendingID)
		return badRequest(), nil
	}

	identity, err := g.idp.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	g.log.Info("login completed", "sub", identity.Subject)

	// The pending record is consumed; losing the delete only leaves it to
	// expire via the store TTL.
	g.bestEffort("delete pending session", pendingID, g.store.Delete(ctx, pendingID))

	authenticated := session.NewAuthenticated(session.NewID(), g.cfg.SessionTTL)
	if err := g.store.Put(ctx, authenticated); err != nil {
		return nil, fmt.Errorf("put session: %w", err)
	}

	return redirect(
		pending.BackURI,
		g.cookies.Set(authenticated.ID, g.cfg.SessionTTL),
	), nil
}

// SignOut destroys the caller's authenticated session. The clearing response
// is returned no matter what the store holds: sign-out is always observably
// successful.
func (g *Gateway) SignOut(ctx context.Context, req *edge.Request) (*edge.Response, error) {
	cleared := redirect(g.cfg.SignOutURI, g.cookies.Clear())

	id := g.cookies.Parse(req.Headers.Values("cookie"))
	if id == "" {
		return cleared, nil
	}

	rec, err := g.store.Get(ctx, id)
	if err != nil {
		// Sign-out must look successful even when the store is down; the
		// record is left for the store TTL.
		g.log.Warn("ignoring session lookup failure on sign-out", "id", id, "error", err.Error())
		return cleared, nil
	}
	if rec == nil || rec.Kind != session.KindAuthenticated {
		// Already signed out.
		g.log.Info("no authenticated session to sign out", "id", id)
		return cleared, nil
	}

	g.bestEffort("delete session", id, g.store.Delete(ctx, id))
	g.log.Info("signed out", "id", id)
	return cleared, nil
}
