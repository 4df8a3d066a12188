package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/kovalyov-valentin/newsletter-board/internal/model"
	"github.com/lib/pq"
)

// Код Postgres для нарушения уникальности
const uniqueViolation = "23505"

type AdminPostgresStorage struct {
	db *sqlx.DB
}

func NewAdminPostgresStorage(db *sqlx.DB) *AdminPostgresStorage {
	return &AdminPostgresStorage{db: db}
}

// Администратор по email
func (s *AdminPostgresStorage) AdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	var admin dbAdmin
	if err := s.db.GetContext(
		ctx,
		&admin,
		`SELECT id, name, email, password_hash, created_at FROM admins WHERE email = $1`,
		normalizeEmail(email),
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return (*model.Admin)(&admin), nil
}

// Добавляет администратора, возвращает его id
func (s *AdminPostgresStorage) AddAdmin(ctx context.Context, admin model.Admin) (string, error) {
	var id string

	row := s.db.QueryRowxContext(
		ctx,
		`INSERT INTO admins (id, name, email, password_hash, created_at) VALUES ($1, $2, $3, $4, now()) RETURNING id`,
		uuid.NewString(),
		admin.Name,
		normalizeEmail(admin.Email),
		admin.PasswordHash,
	)

	if err := row.Err(); err != nil {
		return "", translatePostgresError(err)
	}

	if err := row.Scan(&id); err != nil {
		return "", translatePostgresError(err)
	}

	return id, nil
}

// Администраторы в памяти, для backend = "memory"
type AdminMemoryStorage struct {
	mu     sync.RWMutex
	admins map[string]model.Admin
}

func NewAdminMemoryStorage() *AdminMemoryStorage {
	return &AdminMemoryStorage{admins: make(map[string]model.Admin)}
}

func (s *AdminMemoryStorage) AdminByEmail(_ context.Context, email string) (*model.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	admin, ok := s.admins[normalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}

	return &admin, nil
}

func (s *AdminMemoryStorage) AddAdmin(_ context.Context, admin model.Admin) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := normalizeEmail(admin.Email)
	if _, ok := s.admins[email]; ok {
		return "", ErrAlreadyExists
	}

	admin.ID = uuid.NewString()
	admin.Email = email
	admin.CreatedAt = time.Now().UTC()
	s.admins[email] = admin

	return admin.ID, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func translatePostgresError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrAlreadyExists
	}

	return err
}

type dbAdmin struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}
