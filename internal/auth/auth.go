// Package auth - сервис аутентификации администраторов: вход по email и паролю,
// сессии с ограниченным временем жизни и уведомления об изменении сессии.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/kovalyov-valentin/newsletter-board/internal/model"
	"github.com/kovalyov-valentin/newsletter-board/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("e-mail ou senha inválidos")
	ErrSessionNotFound    = errors.New("sessão não encontrada ou expirada")
	ErrAdminExists        = errors.New("já existe um administrador com este e-mail")
	ErrWeakPassword       = errors.New("a senha deve ter pelo menos 6 caracteres")
	ErrMissingAdminField  = errors.New("nome, e-mail e senha são obrigatórios")
)

const minPasswordLength = 6

type AdminStorage interface {
	AdminByEmail(ctx context.Context, email string) (*model.Admin, error)
	AddAdmin(ctx context.Context, admin model.Admin) (string, error)
}

type session struct {
	adminID   string
	expiresAt time.Time
}

type Service struct {
	admins AdminStorage
	// Время жизни сессии
	ttl time.Duration
	// Как часто вычищаем истекшие сессии
	reapInterval time.Duration
	now          func() time.Time
	cost         int

	mu       sync.Mutex
	sessions map[string]session
	watchers map[string]map[uint64]func(active bool)
	nextID   uint64
}

func New(admins AdminStorage, ttl time.Duration, reapInterval time.Duration) *Service {
	return &Service{
		admins:       admins,
		ttl:          ttl,
		reapInterval: reapInterval,
		now:          time.Now,
		cost:         bcrypt.DefaultCost,
		sessions:     make(map[string]session),
		watchers:     make(map[string]map[uint64]func(bool)),
	}
}

// Проверяет пароль и открывает новую сессию, возвращает ее токен
func (s *Service) SignIn(ctx context.Context, email string, password string) (string, error) {
	admin, err := s.admins.AdminByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("sign in: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token, err := newToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.sessions[token] = session{
		adminID:   admin.ID,
		expiresAt: s.now().Add(s.ttl),
	}
	s.mu.Unlock()

	log.Printf("[INFO] admin %s signed in", admin.ID)

	return token, nil
}

// Закрывает сессию. Наблюдатели сессии получают false
func (s *Service) SignOut(_ context.Context, token string) error {
	s.mu.Lock()
	if _, ok := s.sessions[token]; !ok {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(s.sessions, token)
	fns := s.watchersOf(token)
	s.mu.Unlock()

	for _, fn := range fns {
		fn(false)
	}

	return nil
}

// Активна ли сессия с этим токеном
func (s *Service) Active(_ context.Context, token string) bool {
	if token == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]

	return ok && s.now().Before(sess.expiresAt)
}

// Подписка на изменения сессии: fn вызывается, когда сессия закрыта или истекла.
// Возвращает функцию отписки
func (s *Service) Watch(token string, fn func(active bool)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	if s.watchers[token] == nil {
		s.watchers[token] = make(map[uint64]func(bool))
	}
	s.watchers[token][id] = fn
	s.mu.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()

			delete(s.watchers[token], id)
			if len(s.watchers[token]) == 0 {
				delete(s.watchers, token)
			}
		})
	}
}

// Воркер, который с заданным интервалом закрывает истекшие сессии
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.Reap(); n > 0 {
				log.Printf("[INFO] %d expired sessions closed", n)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Закрывает истекшие сессии и уведомляет наблюдателей. Возвращает количество закрытых
func (s *Service) Reap() int {
	now := s.now()

	s.mu.Lock()
	var fns []func(bool)
	expired := 0
	for token, sess := range s.sessions {
		if now.Before(sess.expiresAt) {
			continue
		}

		delete(s.sessions, token)
		fns = append(fns, s.watchersOf(token)...)
		expired++
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(false)
	}

	return expired
}

// Создает администратора с захешированным паролем
func (s *Service) CreateAdmin(ctx context.Context, name string, email string, password string) (string, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return "", ErrMissingAdminField
	}

	if len(password) < minPasswordLength {
		return "", ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	id, err := s.admins.AddAdmin(ctx, model.Admin{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
	})
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return "", ErrAdminExists
		}
		return "", fmt.Errorf("add admin: %w", err)
	}

	log.Printf("[INFO] admin %s created", id)

	return id, nil
}

// Вызывается под s.mu
func (s *Service) watchersOf(token string) []func(bool) {
	fns := make([]func(bool), 0, len(s.watchers[token]))
	for _, fn := range s.watchers[token] {
		fns = append(fns, fn)
	}

	return fns
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}

	return hex.EncodeToString(buf), nil
}
