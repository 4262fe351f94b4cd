package app

import (
	"context"
	"net/http"
	"net/http/httputil"
	"net/url"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/tckz/static-front/internal/config"
	"github.com/tckz/static-front/internal/edge"
	"github.com/tckz/static-front/internal/gateway"
	"github.com/tckz/static-front/internal/idp"
	"github.com/tckz/static-front/internal/logger"
	"github.com/tckz/static-front/internal/session"
)

var (
	signOutPath = regexp.MustCompile(`^/signout`)
	signInPath  = regexp.MustCompile(`^/signin`)
	anyPath     = regexp.MustCompile(`^/`)
)

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, func() error, error) {
	store, cleanup, err := setupStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	idpClient, err := idp.New(ctx, idp.Config{
		BaseURL:      cfg.IdPBaseURL,
		ClientID:     cfg.IdPClientID,
		ClientSecret: cfg.IdPClientSecret,
		RedirectURI:  cfg.RedirectURI,
		Scope:        cfg.Scope,
		IssuerURL:    cfg.IdPIssuerURL,
	})
	if err != nil {
		return nil, nil, err
	}

	gw := gateway.New(
		store,
		idpClient,
		session.CookieCodec{Name: cfg.CookieName, Path: cfg.CookiePath},
		gateway.Config{
			PendingTTL: cfg.PendingMaxAge,
			SessionTTL: cfg.SessionMaxAge,
			SignOutURI: cfg.SignOutURI,
		},
		logger.Get(),
	)

	// Route order matters: sign-out and sign-in are carved out of the
	// catch-all gate.
	dispatcher := edge.NewDispatcher([]edge.Route{
		{Pattern: signOutPath, Handler: gw.SignOut},
		{Pattern: signInPath, Handler: gw.Callback},
		{Pattern: anyPath, Handler: gw.Gate},
	})

	originURL, err := url.Parse(cfg.OriginURL)
	if err != nil {
		return nil, nil, err
	}
	proxy := httputil.NewSingleHostReverseProxy(originURL)

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Everything else is intercepted.
	router.NoRoute(func(c *gin.Context) {
		serveIntercepted(c, dispatcher, proxy, cfg.Verbose)
	})

	return router, cleanup, nil
}

// serveIntercepted adapts one HTTP request onto the edge dispatcher and writes
// back its terminal outcome. Pass-through responses are forwarded to the
// origin.
func serveIntercepted(c *gin.Context, d *edge.Dispatcher, proxy *httputil.ReverseProxy, verbose bool) {
	req := toEdgeRequest(c.Request)
	if verbose {
		logger.Debug("intercepted request",
			"method", req.Method, "uri", req.URI, "querystring", req.Querystring)
	}

	resp, err := d.Dispatch(c.Request.Context(), req)
	if err != nil {
		logger.Error("dispatch failed", "uri", req.URI, "error", err.Error())
		c.AbortWithStatus(http.StatusBadGateway)
		return
	}

	if resp.IsPassThrough() {
		proxy.ServeHTTP(c.Writer, c.Request)
		return
	}

	for _, entries := range resp.Headers {
		for _, h := range entries {
			c.Writer.Header().Add(h.Key, h.Value)
		}
	}
	c.Status(resp.Status)
	c.Writer.WriteHeaderNow()
}

func toEdgeRequest(r *http.Request) *edge.Request {
	headers := edge.Headers{}
	for name, values := range r.Header {
		for _, v := range values {
			headers.Add(name, v)
		}
	}
	return &edge.Request{
		Method:      r.Method,
		URI:         r.URL.Path,
		Querystring: r.URL.RawQuery,
		Headers:     headers,
	}
}
