// Package livequery реализует live-запрос: подписчики получают весь упорядоченный
// набор записей при каждом изменении хранилища, а не дельты.
package livequery

import (
	"context"
	"log"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/kovalyov-valentin/newsletter-board/internal/metrics"
)

// Функция, которая заново выполняет запрос и возвращает полный набор
type Loader[T any] func(ctx context.Context) ([]T, error)

type Hub[T any] struct {
	load Loader[T]

	// Перезагрузки идут строго по очереди, чтобы старый снимок
	// не пришел подписчику после нового
	reloadMu sync.Mutex

	mu     sync.Mutex
	subs   map[uint64]*subscriber[T]
	nextID uint64
}

func New[T any](load Loader[T]) *Hub[T] {
	return &Hub[T]{
		load: load,
		subs: make(map[uint64]*subscriber[T]),
	}
}

// Регистрирует подписчика. Первый снимок приходит асинхронно сразу после подписки.
// Возвращает функцию отписки; повторные вызовы ничего не делают.
// Отписка дожидается идущего вызова fn, после нее fn больше не вызывается,
// поэтому сам fn отписываться не должен.
func (h *Hub[T]) Subscribe(ctx context.Context, fn func([]T)) func() {
	sub := &subscriber[T]{
		fn:      fn,
		updates: make(chan []T, 1),
		done:    make(chan struct{}),
	}

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = sub
	h.mu.Unlock()

	metrics.LiveSubscriptions.Inc()

	go sub.run()
	go h.initial(ctx, sub)

	return func() {
		sub.once.Do(func() {
			// Ждем вызов fn, который уже идет
			sub.mu.Lock()
			sub.closed.Store(true)
			sub.mu.Unlock()
			close(sub.done)

			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()

			metrics.LiveSubscriptions.Dec()
		})
	}
}

// Перезагружает набор и рассылает его всем подписчикам
func (h *Hub[T]) Notify(ctx context.Context) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()

	subs := h.snapshot()
	if len(subs) == 0 {
		return
	}

	items, err := h.load(ctx)
	if err != nil {
		metrics.ReloadErrorsTotal.Inc()
		log.Printf("[ERROR] failed to reload live query: %v", err)
		return
	}

	for _, sub := range subs {
		sub.offer(slices.Clone(items))
	}
}

// Количество активных подписок
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subs)
}

func (h *Hub[T]) initial(ctx context.Context, sub *subscriber[T]) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()

	if sub.closed.Load() {
		return
	}

	items, err := h.load(ctx)
	if err != nil {
		metrics.ReloadErrorsTotal.Inc()
		log.Printf("[ERROR] failed to load initial live query snapshot: %v", err)
		return
	}

	sub.offer(items)
}

func (h *Hub[T]) snapshot() []*subscriber[T] {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := make([]*subscriber[T], 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}

	return subs
}

type subscriber[T any] struct {
	fn func([]T)
	// Буфер на один снимок: если подписчик не успевает, старый снимок
	// заменяется новым
	updates chan []T
	done    chan struct{}
	once    sync.Once
	// Держится на время вызова fn
	mu      sync.Mutex
	closed  atomic.Bool
}

func (s *subscriber[T]) run() {
	for {
		select {
		case <-s.done:
			return
		case items := <-s.updates:
			if !s.deliver(items) {
				return
			}
		}
	}
}

// Проверка и вызов под одним мьютексом: после отписки fn не вызывается
func (s *subscriber[T]) deliver(items []T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return false
	}

	s.fn(items)
	metrics.PushesTotal.Inc()

	return true
}

func (s *subscriber[T]) offer(items []T) {
	for {
		if s.closed.Load() {
			return
		}

		select {
		case s.updates <- items:
			return
		default:
		}

		// Выкидываем устаревший снимок
		select {
		case <-s.updates:
		default:
		}
	}
}
