package storage

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// Запись отсутствует в хранилище
	ErrNotFound = errors.New("record not found")
	// Запись с таким ключом уже есть
	ErrAlreadyExists = errors.New("record already exists")
)

// Хранилище, которое умеет перечитать live-запрос и разослать его подписчикам
type ChangeNotifier interface {
	Changed(ctx context.Context)
}

// Пробует стратегии по очереди, пока одна не сработает.
// ErrNotFound и отмена контекста не ретраятся. Возвращается последняя ошибка
func tryInOrder[S any](ctx context.Context, strategies []S, attempt func(ctx context.Context, strategy S) error) error {
	err := errors.New("no strategies to try")

	for _, strategy := range strategies {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = attempt(ctx, strategy)
		if err == nil || errors.Is(err, ErrNotFound) {
			return err
		}
	}

	return err
}

// Часы хранилища. Время создания у двух записей никогда не совпадает,
// иначе порядок "сначала новые" был бы неоднозначным
type clock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
	step time.Duration
}

func newClock(now func() time.Time, step time.Duration) *clock {
	return &clock{now: now, step: step}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(c.step)
	if !t.After(c.last) {
		t = c.last.Add(c.step)
	}
	c.last = t

	return t
}
