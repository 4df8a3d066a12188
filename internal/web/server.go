// Package web - HTTP-слой доски: REST для статей и сессии, SSE-представления,
// в которых каждая вкладка браузера держит свой board.Board.
package web

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/kovalyov-valentin/newsletter-board/internal/board"
	"github.com/kovalyov-valentin/newsletter-board/internal/model"
	"github.com/kovalyov-valentin/newsletter-board/internal/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Слой доступа к данным, как его видит HTTP
type Newsletters interface {
	board.Newsletters
	Get(ctx context.Context, id string) (*model.Article, error)
}

type Options struct {
	Addr         string
	Heartbeat    time.Duration
	LoginRate    rate.Limit
	LoginBurst   int
	CookieSecure bool
	SessionTTL   time.Duration
}

type Server struct {
	echo        *echo.Echo
	newsletters Newsletters
	auth        session.Authenticator
	announcer   *session.Announcer
	limiter     *RateLimiter

	addr         string
	heartbeat    time.Duration
	cookieSecure bool
	sessionTTL   time.Duration
	now          func() time.Time

	mu    sync.Mutex
	views map[string]*view
}

func New(
	newsletters Newsletters,
	auth session.Authenticator,
	announcer *session.Announcer,
	opts Options,
) *Server {
	s := &Server{
		echo:         echo.New(),
		newsletters:  newsletters,
		auth:         auth,
		announcer:    announcer,
		limiter:      NewRateLimiter(opts.LoginRate, opts.LoginBurst),
		addr:         opts.Addr,
		heartbeat:    opts.Heartbeat,
		cookieSecure: opts.CookieSecure,
		sessionTTL:   opts.SessionTTL,
		now:          time.Now,
		views:        make(map[string]*view),
	}

	if s.heartbeat <= 0 {
		s.heartbeat = 15 * time.Second
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.BodyLimit("1M"))

	s.routes()

	return s
}

func (s *Server) routes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api", s.identify)

	newsletters := api.Group("/newsletters")
	newsletters.GET("", s.handleList)
	newsletters.GET("/:id", s.handleGet)
	newsletters.POST("", s.handleCreate, AdminOnly(s.auth))
	newsletters.DELETE("/:id", s.handleDelete, AdminOnly(s.auth))

	sess := api.Group("/session")
	sess.GET("", s.handleSession)
	sess.POST("/login", s.handleLogin, s.limiter.Middleware())
	sess.POST("/logout", s.handleLogout)

	views := api.Group("/views")
	views.GET("/stream", s.handleStream)
	views.POST("/:view/select", s.viewAction(s.actionSelect))
	views.POST("/:view/back", s.viewAction(s.actionBack))
	views.POST("/:view/admin-mode", s.viewAction(s.actionAdminMode))
	views.POST("/:view/create/open", s.viewAction(s.actionCreateOpen))
	views.POST("/:view/create/cancel", s.viewAction(s.actionCreateCancel))
	views.POST("/:view/create", s.viewAction(s.actionCreate))
	views.POST("/:view/delete/request", s.viewAction(s.actionDeleteRequest))
	views.POST("/:view/delete/confirm", s.viewAction(s.actionDeleteConfirm))
	views.POST("/:view/delete/cancel", s.viewAction(s.actionDeleteCancel))
	views.POST("/:view/login", s.viewAction(s.actionLogin), s.limiter.Middleware())
	views.POST("/:view/login/dismiss", s.viewAction(s.actionLoginDismiss))
	views.POST("/:view/logout", s.viewAction(s.actionLogout))
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

// Запускает HTTP-сервер и останавливает его при отмене контекста
func (s *Server) Start(ctx context.Context) error {
	go func() {
		if err := s.limiter.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[ERROR] rate limiter cleanup stopped: %v", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[INFO] http server listening on %s", s.addr)
		errCh <- s.echo.Start(s.addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			log.Printf("[ERROR] failed to shutdown http server: %v", err)
		}

		return ctx.Err()
	}
}

func (s *Server) setSessionCookie(c echo.Context, token string) {
	cookie := &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}

	if token == "" {
		cookie.MaxAge = -1
	} else if s.sessionTTL > 0 {
		cookie.Expires = s.now().Add(s.sessionTTL)
	}

	c.SetCookie(cookie)
	c.Set(tokenKey, token)
}
