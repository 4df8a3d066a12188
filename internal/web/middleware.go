package web

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

const (
	SessionCookie = "nb_session"
	ClientCookie  = "nb_client"

	clientKey = "client"
	tokenKey  = "token"

	msgAdminOnly   = "Você precisa fazer login como administrador."
	msgRateLimited = "Muitas tentativas. Tente novamente em instantes."
)

type TokenChecker interface {
	Active(ctx context.Context, token string) bool
}

// Выдает браузеру постоянный идентификатор клиента и кладет его и токен сессии в контекст
func (s *Server) identify(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		client := ""
		if cookie, err := c.Cookie(ClientCookie); err == nil {
			client = cookie.Value
		}

		if _, err := uuid.Parse(client); err != nil {
			client = uuid.NewString()
			c.SetCookie(&http.Cookie{
				Name:     ClientCookie,
				Value:    client,
				Path:     "/",
				Expires:  time.Now().AddDate(1, 0, 0),
				HttpOnly: true,
				Secure:   s.cookieSecure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		c.Set(clientKey, client)

		if cookie, err := c.Cookie(SessionCookie); err == nil {
			c.Set(tokenKey, cookie.Value)
		}

		return next(c)
	}
}

// Пропускает только запросы с активной сессией администратора
func AdminOnly(checker TokenChecker) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !checker.Active(c.Request().Context(), tokenOf(c)) {
				return echo.NewHTTPError(http.StatusUnauthorized, msgAdminOnly)
			}

			return next(c)
		}
	}
}

func clientOf(c echo.Context) string {
	client, _ := c.Get(clientKey).(string)
	return client
}

func tokenOf(c echo.Context) string {
	token, _ := c.Get(tokenKey).(string)
	return token
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Ограничение частоты запросов по IP
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	rate     rate.Limit
	burst    int
}

func NewRateLimiter(r rate.Limit, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*ipLimiter),
		rate:     r,
		burst:    burst,
	}
}

func (rl *RateLimiter) limiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if l, ok := rl.limiters[ip]; ok {
		l.lastSeen = time.Now()
		return l.limiter
	}

	limiter := rate.NewLimiter(rl.rate, rl.burst)
	rl.limiters[ip] = &ipLimiter{limiter: limiter, lastSeen: time.Now()}

	return limiter
}

// Периодически выкидывает лимитеры давно не появлявшихся адресов
func (rl *RateLimiter) Start(ctx context.Context) error {
	ticker := time.NewTicker(3 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for ip, l := range rl.limiters {
				if time.Since(l.lastSeen) > 5*time.Minute {
					delete(rl.limiters, ip)
				}
			}
			rl.mu.Unlock()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rl.limiter(c.RealIP()).Allow() {
				retryAfter := max(int(1.0/float64(rl.rate)), 1)
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				return echo.NewHTTPError(http.StatusTooManyRequests, msgRateLimited)
			}

			return next(c)
		}
	}
}
