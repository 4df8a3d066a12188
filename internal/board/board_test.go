package board

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kovalyov-valentin/newsletter-board/internal/model"
	"github.com/kovalyov-valentin/newsletter-board/internal/newsletter"
	"github.com/kovalyov-valentin/newsletter-board/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu      sync.Mutex
	states  []State
	notices []Notice
}

func (r *recordingSink) State(state State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *recordingSink) Notice(notice Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice)
}

func (r *recordingSink) last() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		return State{}
	}
	return r.states[len(r.states)-1]
}

func (r *recordingSink) stateCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

func (r *recordingSink) allStates() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func (r *recordingSink) allNotices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

type staticSession struct {
	active atomic.Bool
}

func (s *staticSession) Active() bool { return s.active.Load() }

func loggedIn() *staticSession {
	s := &staticSession{}
	s.active.Store(true)
	return s
}

func newMountedBoard(t *testing.T, session Session) (*Board, *newsletter.Service, *recordingSink) {
	t.Helper()

	svc := newsletter.NewService(storage.NewArticleMemoryStorage())
	sink := &recordingSink{}
	b := New(svc, session, sink)

	require.NoError(t, b.Mount(context.Background()))
	t.Cleanup(b.Unmount)

	return b, svc, sink
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, time.Second, 5*time.Millisecond)
}

func TestBoard_EmptyStore(t *testing.T) {
	b, _, sink := newMountedBoard(t, &staticSession{})

	states := sink.allStates()
	require.NotEmpty(t, states)
	assert.True(t, states[0].Loading)

	eventually(t, func() bool { return !sink.last().Loading })

	state := b.State()
	assert.Empty(t, state.Articles)
	assert.NotNil(t, state.Articles)
	assert.True(t, state.Empty())
	assert.Empty(t, sink.allNotices())
}

func TestBoard_AddIsReflectedByPush(t *testing.T) {
	b, svc, sink := newMountedBoard(t, &staticSession{})

	_, err := svc.Add(context.Background(), model.Draft{Title: "T1", Content: "C1", ImageURL: "http://x/i.jpg"})
	require.NoError(t, err)

	eventually(t, func() bool { return len(sink.last().Articles) == 1 })
	assert.Equal(t, "T1", b.State().Articles[0].Title)
}

func TestBoard_TwoAddsThenDelete(t *testing.T) {
	ctx := context.Background()
	b, svc, sink := newMountedBoard(t, loggedIn())

	first, err := svc.Add(ctx, model.Draft{Title: "T1", Content: "C1", ImageURL: "http://x/1.jpg"})
	require.NoError(t, err)
	second, err := svc.Add(ctx, model.Draft{Title: "T2", Content: "C2", ImageURL: "http://x/2.jpg"})
	require.NoError(t, err)
	eventually(t, func() bool { return len(sink.last().Articles) == 2 })

	b.RequestDelete(first.ID)
	state := b.State()
	require.True(t, state.Delete.Open())
	assert.Equal(t, "T1", state.Delete.Target.Title)
	// До подтверждения ничего не удаляется
	assert.Len(t, state.Articles, 2)

	require.NoError(t, b.ConfirmDelete(ctx))

	eventually(t, func() bool { return len(sink.last().Articles) == 1 })
	state = b.State()
	assert.Equal(t, second.ID, state.Articles[0].ID)
	assert.False(t, state.Delete.Open())
	assert.Contains(t, sink.allNotices(), Notice{Kind: NoticeSuccess, Message: msgDeleted})
}

func TestBoard_DeleteRequiresSession(t *testing.T) {
	ctx := context.Background()
	b, svc, _ := newMountedBoard(t, &staticSession{})

	article, err := svc.Add(ctx, model.Draft{Title: "T1", Content: "C1", ImageURL: "http://x/1.jpg"})
	require.NoError(t, err)

	b.RequestDelete(article.ID)

	state := b.State()
	assert.False(t, state.Delete.Open())
	assert.True(t, state.LoginRequired)

	b.DismissLogin()
	assert.False(t, b.State().LoginRequired)
}

func TestBoard_DeleteMissingSurfacesError(t *testing.T) {
	ctx := context.Background()
	b, _, sink := newMountedBoard(t, loggedIn())

	b.RequestDelete("does-not-exist")
	err := b.ConfirmDelete(ctx)

	assert.ErrorIs(t, err, newsletter.ErrNotFound)

	state := b.State()
	require.True(t, state.Delete.Open())
	assert.False(t, state.Delete.Processing)
	assert.NotEmpty(t, state.Delete.Error)

	notices := sink.allNotices()
	require.NotEmpty(t, notices)
	assert.Equal(t, NoticeError, notices[len(notices)-1].Kind)

	b.CancelDelete()
	assert.False(t, b.State().Delete.Open())
}

func TestBoard_ConfirmWithoutTarget(t *testing.T) {
	b, _, _ := newMountedBoard(t, loggedIn())

	assert.ErrorIs(t, b.ConfirmDelete(context.Background()), ErrNoTarget)
}

func TestBoard_Create(t *testing.T) {
	ctx := context.Background()
	b, _, sink := newMountedBoard(t, loggedIn())

	b.OpenCreate()
	require.True(t, b.State().Create.Open)

	err := b.SubmitCreate(ctx, model.Draft{Title: "T1", Content: "", ImageURL: "http://x/1.jpg"})
	assert.ErrorIs(t, err, newsletter.ErrEmptyContent)

	state := b.State()
	assert.True(t, state.Create.Open)
	assert.False(t, state.Create.Submitting)
	assert.Equal(t, newsletter.ErrEmptyContent.Error(), state.Create.Error)

	require.NoError(t, b.SubmitCreate(ctx, model.Draft{Title: "T1", Content: "C1", ImageURL: "http://x/1.jpg"}))

	state = b.State()
	assert.False(t, state.Create.Open)
	require.Len(t, state.Articles, 1)
	assert.Contains(t, sink.allNotices(), Notice{Kind: NoticeSuccess, Message: msgAdded})
}

func TestBoard_CreateRequiresSession(t *testing.T) {
	b, _, _ := newMountedBoard(t, &staticSession{})

	b.OpenCreate()

	assert.False(t, b.State().Create.Open)
	assert.True(t, b.State().LoginRequired)
}

func TestBoard_SelectAndBack(t *testing.T) {
	ctx := context.Background()
	b, svc, sink := newMountedBoard(t, loggedIn())

	var ids []string
	for i := 0; i < 7; i++ {
		article, err := svc.Add(ctx, model.Draft{
			Title:    fmt.Sprintf("T%d", i),
			Content:  "C",
			ImageURL: "http://x/i.jpg",
		})
		require.NoError(t, err)
		ids = append(ids, article.ID)
	}
	eventually(t, func() bool { return len(sink.last().Articles) == 7 })

	require.NoError(t, b.Select(ids[0]))

	state := b.State()
	require.True(t, state.Detail())
	assert.Equal(t, "T0", state.Selected.Title)
	assert.Len(t, state.Related, relatedLimit)
	for _, article := range state.Related {
		assert.NotEqual(t, ids[0], article.ID)
	}

	// Открытая статья остается той, что была выбрана, даже после удаления
	require.NoError(t, svc.Delete(ctx, ids[0]))
	eventually(t, func() bool { return len(sink.last().Articles) == 6 })
	assert.Equal(t, "T0", b.State().Selected.Title)

	b.Back()
	assert.False(t, b.State().Detail())

	assert.ErrorIs(t, b.Select("missing"), newsletter.ErrNotFound)
}

func TestBoard_ToggleAdminMode(t *testing.T) {
	ctx := context.Background()
	b, svc, sink := newMountedBoard(t, loggedIn())

	article, err := svc.Add(ctx, model.Draft{Title: "T1", Content: "C1", ImageURL: "http://x/1.jpg"})
	require.NoError(t, err)
	eventually(t, func() bool { return len(sink.last().Articles) == 1 })
	require.NoError(t, b.Select(article.ID))

	before := sink.stateCount()
	require.NoError(t, b.ToggleAdminMode(ctx))

	state := b.State()
	assert.True(t, state.AdminMode)
	assert.Nil(t, state.Selected)

	for _, s := range sink.allStates()[before:] {
		assert.False(t, s.Loading)
	}

	require.NoError(t, b.SessionChanged(ctx, false))
	assert.False(t, b.State().AdminMode)
}

func TestBoard_ToggleAdminModeRequiresSession(t *testing.T) {
	b, _, _ := newMountedBoard(t, &staticSession{})

	require.NoError(t, b.ToggleAdminMode(context.Background()))

	assert.False(t, b.State().AdminMode)
	assert.True(t, b.State().LoginRequired)
}

// Слой данных с управляемыми ответами
type fakeNewsletters struct {
	mu          sync.Mutex
	fetchErr    error
	articles    []model.Article
	push        func([]model.Article)
	subscribes  int
	unsubscribe atomic.Int32
}

func (f *fakeNewsletters) FetchAll(context.Context) ([]model.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.articles, nil
}

func (f *fakeNewsletters) Add(context.Context, model.Draft) (*model.Article, error) {
	return nil, errors.New("permission denied")
}

func (f *fakeNewsletters) Delete(context.Context, string) error {
	return nil
}

func (f *fakeNewsletters) Subscribe(_ context.Context, fn func([]model.Article)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.push = fn
	f.subscribes++
	return func() { f.unsubscribe.Add(1) }, nil
}

func TestBoard_FetchFailureKeepsList(t *testing.T) {
	data := &fakeNewsletters{fetchErr: errors.New("network unreachable")}
	sink := &recordingSink{}
	b := New(data, &staticSession{}, sink)

	require.NoError(t, b.Mount(context.Background()))
	defer b.Unmount()

	state := b.State()
	assert.True(t, state.Loading)
	assert.Empty(t, state.Articles)
	notices := sink.allNotices()
	require.Len(t, notices, 1)
	assert.Equal(t, NoticeError, notices[0].Kind)
	assert.Contains(t, notices[0].Message, "network unreachable")

	// Снимок подписки снимает загрузку
	data.push([]model.Article{{ID: "1", Title: "T1"}})
	state = b.State()
	assert.False(t, state.Loading)
	require.Len(t, state.Articles, 1)

	// Ошибка повторной загрузки не очищает список
	require.Error(t, b.SessionChanged(context.Background(), false))
	assert.Len(t, b.State().Articles, 1)
}

func TestBoard_AddBackendFailureKeepsFormOpen(t *testing.T) {
	data := &fakeNewsletters{}
	b := New(data, loggedIn(), &recordingSink{})
	require.NoError(t, b.Mount(context.Background()))
	defer b.Unmount()

	b.OpenCreate()
	err := b.SubmitCreate(context.Background(), model.Draft{Title: "T", Content: "C", ImageURL: "http://x/i.jpg"})

	require.Error(t, err)
	state := b.State()
	assert.True(t, state.Create.Open)
	assert.Equal(t, "Erro ao adicionar newsletter: permission denied", state.Create.Error)
}

func TestBoard_MountUnmount(t *testing.T) {
	data := &fakeNewsletters{}
	sink := &recordingSink{}
	b := New(data, &staticSession{}, sink)

	require.NoError(t, b.Mount(context.Background()))
	assert.ErrorIs(t, b.Mount(context.Background()), ErrMounted)
	assert.Equal(t, 1, data.subscribes)

	b.Unmount()
	b.Unmount()
	assert.Equal(t, int32(1), data.unsubscribe.Load())

	// Запоздавший снимок после размонтирования отбрасывается
	count := sink.stateCount()
	data.push([]model.Article{{ID: "late"}})
	assert.Equal(t, count, sink.stateCount())
	assert.Empty(t, b.State().Articles)
}

func TestReduce(t *testing.T) {
	prev := []model.Article{{ID: "a"}, {ID: "b"}}
	next := []model.Article{{ID: "c"}}

	got := Reduce(prev, next)

	assert.Equal(t, next, got)
	assert.Equal(t, []model.Article{{ID: "a"}, {ID: "b"}}, prev)

	next[0].ID = "changed"
	assert.Equal(t, "c", got[0].ID)

	assert.Equal(t, []model.Article{}, Reduce(prev, nil))
}
