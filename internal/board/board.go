// Package board - контроллер представления "список/статья" с формами создания
// и подтверждения удаления. Ничего не знает про HTTP: состояние и уведомления
// отдаются в Sink.
package board

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/kovalyov-valentin/newsletter-board/internal/metrics"
	"github.com/kovalyov-valentin/newsletter-board/internal/model"
	"github.com/kovalyov-valentin/newsletter-board/internal/newsletter"
	"github.com/samber/lo"
)

const (
	msgLoginToDelete  = "Você precisa fazer login como administrador para excluir notícias."
	msgLoginToCreate  = "Você precisa fazer login como administrador para criar notícias."
	msgLoginToManage  = "Você precisa fazer login como administrador para gerenciar notícias."
	msgDeleted        = "Newsletter excluída com sucesso!"
	msgAdded          = "Newsletter adicionada com sucesso!"
	msgAdminModeOn    = "Modo Administrador: Gerenciando newsletters"
	msgNotFound       = "Newsletter não encontrada"
	msgLoadFailed     = "Erro ao carregar newsletters: %s"
	msgDeleteFailed   = "Erro ao excluir: %s"
	msgAddFailed      = "Erro ao adicionar newsletter: %s"
	msgSubscribeError = "Erro ao conectar às atualizações em tempo real: %s"
)

var (
	ErrMounted  = errors.New("board is already mounted")
	ErrNoTarget = errors.New("no newsletter selected for deletion")
)

// Слой доступа к данным
type Newsletters interface {
	FetchAll(ctx context.Context) ([]model.Article, error)
	Add(ctx context.Context, draft model.Draft) (*model.Article, error)
	Delete(ctx context.Context, id string) error
	Subscribe(ctx context.Context, fn func([]model.Article)) (func(), error)
}

type Session interface {
	Active() bool
}

// Получатель состояния и уведомлений. Не должен вызывать методы Board
type Sink interface {
	State(state State)
	Notice(notice Notice)
}

type Board struct {
	data    Newsletters
	session Session
	sink    Sink

	// Сохраняет порядок выдачи состояний в sink
	emitMu sync.Mutex

	mu          sync.Mutex
	state       State
	mounted     bool
	unmounted   bool
	unsubscribe func()
	unmountOnce sync.Once
}

func New(data Newsletters, session Session, sink Sink) *Board {
	return &Board{
		data:    data,
		session: session,
		sink:    sink,
		state: State{
			Articles: []model.Article{},
			Loading:  true,
		},
	}
}

// Текущее состояние
func (b *Board) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state.clone()
}

// Открывает ровно одну live-подписку и делает первичную загрузку,
// чтобы показать что-то до первого снимка подписки
func (b *Board) Mount(ctx context.Context) error {
	b.mu.Lock()
	if b.mounted {
		b.mu.Unlock()
		return ErrMounted
	}
	b.mounted = true
	b.mu.Unlock()

	metrics.MountedViews.Inc()

	b.emit(func(*State) {})

	unsubscribe, err := b.data.Subscribe(ctx, b.apply)
	if err != nil {
		b.notify(NoticeError, fmt.Sprintf(msgSubscribeError, newsletter.Message(err)))
		log.Printf("[ERROR] failed to subscribe board: %v", err)
	} else {
		b.mu.Lock()
		if b.unmounted {
			b.mu.Unlock()
			unsubscribe()
			return nil
		}
		b.unsubscribe = unsubscribe
		b.mu.Unlock()
	}

	_ = b.refresh(ctx)

	return err
}

// Снимает подписку ровно один раз. Ответы, пришедшие после этого, отбрасываются
func (b *Board) Unmount() {
	b.unmountOnce.Do(func() {
		b.mu.Lock()
		b.unmounted = true
		unsubscribe := b.unsubscribe
		b.unsubscribe = nil
		mounted := b.mounted
		b.mu.Unlock()

		if unsubscribe != nil {
			unsubscribe()
		}

		if mounted {
			metrics.MountedViews.Dec()
		}
	})
}

// Открывает статью. Без запросов к хранилищу
func (b *Board) Select(id string) error {
	b.mu.Lock()
	article, ok := lo.Find(b.state.Articles, func(article model.Article) bool {
		return article.ID == id
	})
	b.mu.Unlock()

	if !ok {
		b.notify(NoticeError, msgNotFound)
		return newsletter.ErrNotFound
	}

	b.emit(func(s *State) {
		s.Selected = &article
		s.Related = related(s.Articles, s.Selected)
	})

	return nil
}

// Возврат к списку
func (b *Board) Back() {
	b.emit(func(s *State) {
		s.Selected = nil
		s.Related = nil
	})
}

// Переключает режим администратора, сбрасывает выбор и перечитывает список.
// Экран загрузки при этом не показывается
func (b *Board) ToggleAdminMode(ctx context.Context) error {
	if !b.session.Active() && !b.State().AdminMode {
		b.requireLogin(msgLoginToManage)
		return nil
	}

	var enabled bool
	b.emit(func(s *State) {
		s.AdminMode = !s.AdminMode
		s.Selected = nil
		s.Related = nil
		enabled = s.AdminMode
	})

	if enabled {
		b.notify(NoticeInfo, msgAdminModeOn)
	}

	return b.refresh(ctx)
}

// Реакция на смену сессии: после выхода режим администратора и формы закрываются.
// В обоих случаях список перечитывается
func (b *Board) SessionChanged(ctx context.Context, active bool) error {
	b.emit(func(s *State) {
		if active {
			s.LoginRequired = false
			return
		}

		s.AdminMode = false
		s.Create = CreateForm{}
		if !s.Delete.Processing {
			s.Delete = DeleteDialog{}
		}
	})

	return b.refresh(ctx)
}

// Скрывает подсказку о входе
func (b *Board) DismissLogin() {
	b.emit(func(s *State) {
		s.LoginRequired = false
	})
}

// Запрос на удаление: требует активной сессии и открывает подтверждение.
// Статья из списка не убирается, это сделает следующий снимок подписки
func (b *Board) RequestDelete(id string) {
	if !b.session.Active() {
		b.requireLogin(msgLoginToDelete)
		return
	}

	b.emit(func(s *State) {
		target, ok := lo.Find(s.Articles, func(article model.Article) bool {
			return article.ID == id
		})
		if !ok && s.Selected != nil && s.Selected.ID == id {
			target, ok = *s.Selected, true
		}
		if !ok {
			target = model.Article{ID: id}
		}

		s.Delete = DeleteDialog{Target: &target}
	})
}

// Второе действие пользователя: собственно удаление
func (b *Board) ConfirmDelete(ctx context.Context) error {
	if !b.session.Active() {
		b.requireLogin(msgLoginToDelete)
		return nil
	}

	var (
		id      string
		started bool
	)
	b.emit(func(s *State) {
		if s.Delete.Target == nil {
			return
		}
		id = s.Delete.Target.ID
		if s.Delete.Processing || id == "" {
			return
		}
		s.Delete.Processing = true
		s.Delete.Error = ""
		started = true
	})

	if !started {
		if id == "" {
			b.notify(NoticeError, newsletter.Message(newsletter.ErrMissingID))
			return ErrNoTarget
		}
		return nil
	}

	if err := b.data.Delete(ctx, id); err != nil {
		msg := fmt.Sprintf(msgDeleteFailed, newsletter.Message(err))
		b.emit(func(s *State) {
			s.Delete.Processing = false
			s.Delete.Error = msg
		})
		b.notify(NoticeError, msg)

		return err
	}

	b.emit(func(s *State) {
		s.Delete = DeleteDialog{}
	})
	b.notify(NoticeSuccess, msgDeleted)

	return nil
}

// Закрывает подтверждение без удаления
func (b *Board) CancelDelete() {
	b.emit(func(s *State) {
		s.Delete = DeleteDialog{}
	})
}

// Открывает форму создания
func (b *Board) OpenCreate() {
	if !b.session.Active() {
		b.requireLogin(msgLoginToCreate)
		return
	}

	b.emit(func(s *State) {
		s.Create = CreateForm{Open: true}
	})
}

func (b *Board) CancelCreate() {
	b.emit(func(s *State) {
		if s.Create.Submitting {
			return
		}
		s.Create = CreateForm{}
	})
}

// Отправка формы. При ошибке форма остается открытой с текстом ошибки,
// при успехе закрывается и список перечитывается еще раз
func (b *Board) SubmitCreate(ctx context.Context, draft model.Draft) error {
	if !b.session.Active() {
		b.requireLogin(msgLoginToCreate)
		return nil
	}

	b.emit(func(s *State) {
		s.Create = CreateForm{Open: true, Submitting: true}
	})

	if _, err := b.data.Add(ctx, draft); err != nil {
		msg := newsletter.Message(err)
		if !newsletter.IsValidation(err) {
			msg = fmt.Sprintf(msgAddFailed, msg)
		}

		b.emit(func(s *State) {
			s.Create = CreateForm{Open: true, Error: msg}
		})

		return err
	}

	b.emit(func(s *State) {
		s.Create = CreateForm{}
	})
	b.notify(NoticeSuccess, msgAdded)

	return b.refresh(ctx)
}

// Разовая загрузка полного списка. Ошибка показывается уведомлением,
// текущий список при этом не трогается
func (b *Board) refresh(ctx context.Context) error {
	articles, err := b.data.FetchAll(ctx)
	if err != nil {
		if b.isUnmounted() {
			return err
		}

		log.Printf("[ERROR] failed to fetch newsletters for board: %v", err)
		b.notify(NoticeError, fmt.Sprintf(msgLoadFailed, newsletter.Message(err)))

		return err
	}

	b.apply(articles)

	return nil
}

// Применяет снимок: из подписки или из разовой загрузки, кто пришел последним
func (b *Board) apply(articles []model.Article) {
	if b.isUnmounted() {
		return
	}

	b.emit(func(s *State) {
		s.Articles = Reduce(s.Articles, articles)
		s.Loading = false
		s.Related = related(s.Articles, s.Selected)
	})
}

func (b *Board) requireLogin(msg string) {
	b.emit(func(s *State) {
		s.LoginRequired = true
	})
	b.notify(NoticeError, msg)
}

// Меняет состояние и отдает копию в sink
func (b *Board) emit(mutate func(s *State)) {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	b.mu.Lock()
	if b.unmounted {
		b.mu.Unlock()
		return
	}
	mutate(&b.state)
	snapshot := b.state.clone()
	b.mu.Unlock()

	b.sink.State(snapshot)
}

func (b *Board) notify(kind NoticeKind, msg string) {
	if b.isUnmounted() {
		return
	}

	b.sink.Notice(Notice{Kind: kind, Message: msg})
}

func (b *Board) isUnmounted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.unmounted
}
