// Package session хранит состояние входа администратора для одного клиента
// (вкладки браузера) и сверяет его с уведомлениями сервиса аутентификации.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var (
	ErrEmptyCredentials = errors.New("por favor, preencha todos os campos")
	ErrLoginFailed      = errors.New("credenciais inválidas, por favor, tente novamente")
)

// Порт сервиса аутентификации
type Authenticator interface {
	SignIn(ctx context.Context, email string, password string) (string, error)
	SignOut(ctx context.Context, token string) error
	Active(ctx context.Context, token string) bool
	Watch(token string, fn func(active bool)) func()
}

type Provider struct {
	auth Authenticator

	mu        sync.Mutex
	token     string
	active    bool
	unwatch   func()
	listeners map[uint64]func(active bool)
	nextID    uint64
}

// Восстанавливает сессию по токену из cookie, если она еще жива
func NewProvider(ctx context.Context, auth Authenticator, token string) *Provider {
	p := &Provider{
		auth:      auth,
		listeners: make(map[uint64]func(bool)),
	}

	if token != "" && auth.Active(ctx, token) {
		p.token = token
		p.active = true
		p.unwatch = auth.Watch(token, p.reconcile(token))
	}

	return p
}

// Есть ли активная сессия администратора
func (p *Provider) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.active
}

// Токен текущей сессии, пустой если сессии нет
func (p *Provider) Token() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active {
		return ""
	}

	return p.token
}

// Вход. При ошибке состояние остается прежним, а у ошибки всегда есть текст
func (p *Provider) Login(ctx context.Context, email string, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return ErrEmptyCredentials
	}

	token, err := p.auth.SignIn(ctx, email, password)
	if err != nil {
		if err.Error() == "" {
			return ErrLoginFailed
		}
		return err
	}

	p.mu.Lock()
	if p.unwatch != nil {
		p.unwatch()
	}
	p.token = token
	p.unwatch = p.auth.Watch(token, p.reconcile(token))
	p.mu.Unlock()

	p.set(token, true)

	return nil
}

// Выход. Если сервис вернул ошибку, сессия остается активной
func (p *Provider) Logout(ctx context.Context) error {
	p.mu.Lock()
	token := p.token
	p.mu.Unlock()

	if token == "" {
		p.set("", false)
		return nil
	}

	if err := p.auth.SignOut(ctx, token); err != nil {
		return err
	}

	p.set(token, false)

	return nil
}

// Подписка на смену состояния. Возвращает функцию отписки
func (p *Provider) OnChange(fn func(active bool)) func() {
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// Снимает наблюдение за сессией. Сама сессия не закрывается
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.unwatch != nil {
		p.unwatch()
		p.unwatch = nil
	}
	p.listeners = make(map[uint64]func(bool))
}

func (p *Provider) reconcile(token string) func(bool) {
	return func(active bool) {
		p.set(token, active)
	}
}

// Меняет состояние и уведомляет слушателей, только если оно действительно изменилось.
// Уведомления от старого токена игнорируются
func (p *Provider) set(token string, active bool) {
	p.mu.Lock()
	if token != "" && token != p.token {
		p.mu.Unlock()
		return
	}
	if p.active == active {
		p.mu.Unlock()
		return
	}

	p.active = active
	if !active {
		p.token = ""
		if p.unwatch != nil {
			p.unwatch()
			p.unwatch = nil
		}
	}

	listeners := make([]func(bool), 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(active)
	}
}
