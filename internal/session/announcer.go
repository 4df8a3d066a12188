package session

import (
	"context"
	"fmt"
	"strconv"
)

// Ключ флага "был ли клиент залогинен в прошлый раз"
const previousLoginStateKey = "previous_login_state"

const (
	WelcomeMessage  = "Bem-vindo, Administrador! Você agora pode excluir notícias."
	FarewellMessage = "Você saiu com sucesso."
)

// Долговременное хранилище строковых флагов
type FlagStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
}

type Announcement int

const (
	AnnounceNone Announcement = iota
	AnnounceWelcome
	AnnounceFarewell
)

func (a Announcement) Message() string {
	switch a {
	case AnnounceWelcome:
		return WelcomeMessage
	case AnnounceFarewell:
		return FarewellMessage
	default:
		return ""
	}
}

// Сравнивает прошлое состояние входа клиента с текущим и решает,
// нужно ли показать приветствие или прощание
type Announcer struct {
	flags FlagStore
}

func NewAnnouncer(flags FlagStore) *Announcer {
	return &Announcer{flags: flags}
}

// Флаг перезаписывается каждый раз, когда прошлое и текущее состояние различаются.
// Прощание показывается, только если в прошлый раз клиент был залогинен
func (a *Announcer) Announce(ctx context.Context, client string, active bool) (Announcement, error) {
	key := previousLoginStateKey + ":" + client
	current := strconv.FormatBool(active)

	previous, ok, err := a.flags.Get(ctx, key)
	if err != nil {
		return AnnounceNone, fmt.Errorf("read login state flag: %w", err)
	}

	if ok && previous == current {
		return AnnounceNone, nil
	}

	if err := a.flags.Set(ctx, key, current); err != nil {
		return AnnounceNone, fmt.Errorf("write login state flag: %w", err)
	}

	switch {
	case active:
		return AnnounceWelcome, nil
	case previous == "true":
		return AnnounceFarewell, nil
	default:
		return AnnounceNone, nil
	}
}
