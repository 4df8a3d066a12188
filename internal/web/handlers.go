package web

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/kovalyov-valentin/newsletter-board/internal/auth"
	"github.com/kovalyov-valentin/newsletter-board/internal/metrics"
	"github.com/kovalyov-valentin/newsletter-board/internal/model"
	"github.com/kovalyov-valentin/newsletter-board/internal/newsletter"
	"github.com/kovalyov-valentin/newsletter-board/internal/session"
	"github.com/labstack/echo/v4"
)

type credentialsRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type sessionResponse struct {
	LoggedIn bool   `json:"logged_in"`
	Message  string `json:"message,omitempty"`
}

func (s *Server) handleList(c echo.Context) error {
	articles, err := s.newsletters.FetchAll(c.Request().Context())
	if err != nil {
		log.Printf("[ERROR] failed to list newsletters: %v", err)
		return echo.NewHTTPError(http.StatusBadGateway, fmt.Sprintf("Erro ao carregar newsletters: %s", newsletter.Message(err)))
	}

	return c.JSON(http.StatusOK, articles)
}

func (s *Server) handleGet(c echo.Context) error {
	article, err := s.newsletters.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, article)
}

func (s *Server) handleCreate(c echo.Context) error {
	var draft model.Draft
	if err := c.Bind(&draft); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "requisição inválida")
	}

	article, err := s.newsletters.Add(c.Request().Context(), draft)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, article)
}

func (s *Server) handleDelete(c echo.Context) error {
	if err := s.newsletters.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleSession(c echo.Context) error {
	return c.JSON(http.StatusOK, sessionResponse{
		LoggedIn: s.auth.Active(c.Request().Context(), tokenOf(c)),
	})
}

// Вход без открытого представления. Приветствие возвращается в ответе
func (s *Server) handleLogin(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "requisição inválida")
	}

	ctx := c.Request().Context()
	provider := session.NewProvider(ctx, s.auth, "")
	defer provider.Close()

	err := provider.Login(ctx, req.Email, req.Password)
	metrics.RecordLogin(err)
	if err != nil {
		return httpError(err)
	}

	s.setSessionCookie(c, provider.Token())

	return c.JSON(http.StatusOK, sessionResponse{
		LoggedIn: true,
		Message:  s.announce(c, true),
	})
}

func (s *Server) handleLogout(c echo.Context) error {
	ctx := c.Request().Context()
	provider := session.NewProvider(ctx, s.auth, tokenOf(c))
	defer provider.Close()

	if err := provider.Logout(ctx); err != nil {
		return httpError(err)
	}

	s.setSessionCookie(c, "")

	return c.JSON(http.StatusOK, sessionResponse{
		LoggedIn: false,
		Message:  s.announce(c, false),
	})
}

func (s *Server) announce(c echo.Context, active bool) string {
	announcement, err := s.announcer.Announce(c.Request().Context(), clientOf(c), active)
	if err != nil {
		log.Printf("[WARN] failed to update login state flag: %v", err)
		return ""
	}

	return announcement.Message()
}

// Переводит ошибку доменного слоя в HTTP-ошибку с текстом для пользователя
func httpError(err error) error {
	msg := newsletter.Message(err)

	switch {
	case newsletter.IsValidation(err), errors.Is(err, session.ErrEmptyCredentials):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, msg)
	case errors.Is(err, newsletter.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, msg)
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrSessionNotFound):
		return echo.NewHTTPError(http.StatusUnauthorized, msg)
	default:
		log.Printf("[ERROR] request failed: %v", err)
		return echo.NewHTTPError(http.StatusBadGateway, msg)
	}
}
