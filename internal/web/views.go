package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kovalyov-valentin/newsletter-board/internal/board"
	"github.com/kovalyov-valentin/newsletter-board/internal/metrics"
	"github.com/kovalyov-valentin/newsletter-board/internal/model"
	"github.com/kovalyov-valentin/newsletter-board/internal/session"
	"github.com/labstack/echo/v4"
)

const (
	noticeBuffer = 32

	msgViewNotFound = "visualização não encontrada"
)

// Одна открытая вкладка браузера: своя доска и своя сессия
type view struct {
	id      string
	client  string
	board   *board.Board
	session *session.Provider

	mu     sync.Mutex
	latest *board.State
	// Сигнал "есть новое состояние". Промежуточные состояния схлопываются
	ready   chan struct{}
	notices chan board.Notice
}

func newView(client string) *view {
	return &view{
		id:      uuid.NewString(),
		client:  client,
		ready:   make(chan struct{}, 1),
		notices: make(chan board.Notice, noticeBuffer),
	}
}

func (v *view) State(state board.State) {
	v.mu.Lock()
	v.latest = &state
	v.mu.Unlock()

	select {
	case v.ready <- struct{}{}:
	default:
	}
}

func (v *view) Notice(notice board.Notice) {
	select {
	case v.notices <- notice:
	default:
		log.Printf("[WARN] view %s notice dropped: %s", v.id, notice.Message)
	}
}

func (v *view) take() (board.State, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.latest == nil {
		return board.State{}, false
	}

	state := *v.latest
	v.latest = nil

	return state, true
}

// SSE-поток представления. Доска монтируется при подключении и размонтируется при отключении
func (s *Server) handleStream(c echo.Context) error {
	ctx := c.Request().Context()

	v := newView(clientOf(c))
	v.session = session.NewProvider(ctx, s.auth, tokenOf(c))
	v.board = board.New(s.newsletters, v.session, v)

	s.addView(v)
	defer s.removeView(v.id)
	defer v.session.Close()
	defer v.board.Unmount()

	v.session.OnChange(func(active bool) {
		go s.sessionChanged(ctx, v, active)
	})

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)

	if err := writeEvent(res, "view", map[string]string{"id": v.id}); err != nil {
		return nil
	}

	s.announceTo(ctx, v, v.session.Active())

	if err := v.board.Mount(ctx); err != nil {
		log.Printf("[ERROR] view %s mounted without live updates: %v", v.id, err)
	}

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := res.Write([]byte(": heartbeat\n\n")); err != nil {
				return nil
			}
			res.Flush()
		case <-v.ready:
			state, ok := v.take()
			if !ok {
				continue
			}
			if err := writeEvent(res, "state", Render(state, v.session.Active(), s.now())); err != nil {
				return nil
			}
		case notice := <-v.notices:
			if err := writeEvent(res, "notice", notice); err != nil {
				return nil
			}
		}
	}
}

func writeEvent(res *echo.Response, name string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", name, err)
	}

	if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", name, payload); err != nil {
		return err
	}
	res.Flush()

	return nil
}

func (s *Server) sessionChanged(ctx context.Context, v *view, active bool) {
	if err := v.board.SessionChanged(ctx, active); err != nil {
		log.Printf("[WARN] view %s refresh after session change failed: %v", v.id, err)
	}

	s.announceTo(ctx, v, active)
}

func (s *Server) announceTo(ctx context.Context, v *view, active bool) {
	announcement, err := s.announcer.Announce(ctx, v.client, active)
	if err != nil {
		log.Printf("[WARN] failed to update login state flag: %v", err)
		return
	}

	if msg := announcement.Message(); msg != "" {
		v.Notice(board.Notice{Kind: board.NoticeSuccess, Message: msg})
	}
}

func (s *Server) addView(v *view) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.views[v.id] = v
}

func (s *Server) removeView(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.views, id)
}

// Представление этого же браузера
func (s *Server) lookupView(c echo.Context) (*view, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.views[c.Param("view")]
	if !ok || v.client != clientOf(c) {
		return nil, false
	}

	return v, true
}

// Количество открытых представлений
func (s *Server) Views() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.views)
}

type actionFunc func(c echo.Context, v *view) error

func (s *Server) viewAction(action actionFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		v, ok := s.lookupView(c)
		if !ok {
			return echo.NewHTTPError(http.StatusNotFound, msgViewNotFound)
		}

		if err := action(c, v); err != nil {
			return err
		}

		return c.NoContent(http.StatusNoContent)
	}
}

type idRequest struct {
	ID string `json:"id" form:"id"`
}

func (s *Server) actionSelect(c echo.Context, v *view) error {
	var req idRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "requisição inválida")
	}

	if err := v.board.Select(req.ID); err != nil {
		return httpError(err)
	}

	return nil
}

func (s *Server) actionBack(_ echo.Context, v *view) error {
	v.board.Back()
	return nil
}

// Ошибка загрузки уже показана уведомлением
func (s *Server) actionAdminMode(c echo.Context, v *view) error {
	_ = v.board.ToggleAdminMode(c.Request().Context())
	return nil
}

func (s *Server) actionCreateOpen(_ echo.Context, v *view) error {
	v.board.OpenCreate()
	return nil
}

func (s *Server) actionCreateCancel(_ echo.Context, v *view) error {
	v.board.CancelCreate()
	return nil
}

func (s *Server) actionCreate(c echo.Context, v *view) error {
	var draft model.Draft
	if err := c.Bind(&draft); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "requisição inválida")
	}

	if err := v.board.SubmitCreate(c.Request().Context(), draft); err != nil {
		return httpError(err)
	}

	return nil
}

func (s *Server) actionDeleteRequest(c echo.Context, v *view) error {
	var req idRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "requisição inválida")
	}

	v.board.RequestDelete(req.ID)

	return nil
}

func (s *Server) actionDeleteConfirm(c echo.Context, v *view) error {
	if err := v.board.ConfirmDelete(c.Request().Context()); err != nil {
		if errors.Is(err, board.ErrNoTarget) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return httpError(err)
	}

	return nil
}

func (s *Server) actionDeleteCancel(_ echo.Context, v *view) error {
	v.board.CancelDelete()
	return nil
}

// Вход из открытого представления: доска узнает о нем через OnChange
func (s *Server) actionLogin(c echo.Context, v *view) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "requisição inválida")
	}

	err := v.session.Login(c.Request().Context(), req.Email, req.Password)
	metrics.RecordLogin(err)
	if err != nil {
		return httpError(err)
	}

	s.setSessionCookie(c, v.session.Token())

	return nil
}

func (s *Server) actionLoginDismiss(_ echo.Context, v *view) error {
	v.board.DismissLogin()
	return nil
}

func (s *Server) actionLogout(c echo.Context, v *view) error {
	if err := v.session.Logout(c.Request().Context()); err != nil {
		return httpError(err)
	}

	s.setSessionCookie(c, "")

	return nil
}
