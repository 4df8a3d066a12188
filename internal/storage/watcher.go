package storage

import (
	"context"
	"log"
	"time"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

// Канал Postgres, в который триггер на таблице newsletters шлет NOTIFY
const PostgresChangesChannel = "newsletters_changed"

// Слушает NOTIFY от Postgres и перечитывает live-запрос.
// Так подписчики видят и изменения, сделанные в обход нашего процесса
type PostgresWatcher struct {
	dsn    string
	target ChangeNotifier
	// Как часто пингуем соединение слушателя
	pingInterval time.Duration
}

func NewPostgresWatcher(dsn string, target ChangeNotifier) *PostgresWatcher {
	return &PostgresWatcher{
		dsn:          dsn,
		target:       target,
		pingInterval: 90 * time.Second,
	}
}

func (w *PostgresWatcher) Start(ctx context.Context) error {
	listener := pq.NewListener(w.dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Printf("[ERROR] postgres listener event %d: %v", ev, err)
		}
	})
	defer listener.Close()

	if err := listener.Listen(PostgresChangesChannel); err != nil {
		return err
	}

	ticker := time.NewTicker(w.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		// nil приходит после переподключения: уведомления могли потеряться,
		// поэтому перечитываем в любом случае
		case <-listener.Notify:
			w.target.Changed(ctx)
		case <-ticker.C:
			if err := listener.Ping(); err != nil {
				log.Printf("[WARN] postgres listener ping failed: %v", err)
			}
		}
	}
}

// Подписывается на канал изменений в Redis и перечитывает live-запрос
type RedisWatcher struct {
	client *redis.Client
	target ChangeNotifier
}

func NewRedisWatcher(client *redis.Client, target ChangeNotifier) *RedisWatcher {
	return &RedisWatcher{
		client: client,
		target: target,
	}
}

func (w *RedisWatcher) Start(ctx context.Context) error {
	pubsub := w.client.Subscribe(ctx, RedisChangesChannel)
	defer pubsub.Close()

	// Дожидаемся подтверждения подписки
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	messages := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-messages:
			if !ok {
				return nil
			}

			w.target.Changed(ctx)
		}
	}
}
