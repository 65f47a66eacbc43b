package ws

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarthak03dot/Chat-App/internal/domain"
	"github.com/sarthak03dot/Chat-App/internal/event"
	"github.com/sarthak03dot/Chat-App/internal/logging"
	"github.com/sarthak03dot/Chat-App/internal/security"
	"github.com/sarthak03dot/Chat-App/internal/service"
	"github.com/sarthak03dot/Chat-App/internal/store/sqlite"
	"github.com/sarthak03dot/Chat-App/internal/store/sqlstore"
)

type engineEnv struct {
	engine    *Engine
	hub       *Hub
	presence  *Presence
	metrics   *Metrics
	users     *service.UserService
	groups    *service.GroupService
	messages  *service.MessageService
	userRepo  *sqlstore.UserRepo
	groupRepo *sqlstore.GroupRepo
}

func newEngineEnv(t *testing.T) *engineEnv {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.Migrate(ctx, db))

	enc, err := security.NewEncryptor([]byte("test-key"))
	require.NoError(t, err)

	userRepo := sqlstore.NewUserRepo(db)
	groupRepo := sqlstore.NewGroupRepo(db)
	msgRepo := sqlstore.NewMessageRepo(db)

	log := logging.Discard()
	m := testMetrics()
	hub := NewHub(m)
	presence := NewPresence(userRepo, hub, log, m)
	msgSvc := service.NewMessageService(msgRepo, userRepo, groupRepo, enc, 500, 50)
	groupSvc := service.NewGroupService(groupRepo, userRepo)
	engine := NewEngine(hub, presence, msgSvc, groupRepo, log, m)
	groupSvc.SetNotifier(engine)

	return &engineEnv{
		engine:    engine,
		hub:       hub,
		presence:  presence,
		metrics:   m,
		users:     service.NewUserService(userRepo),
		groups:    groupSvc,
		messages:  msgSvc,
		userRepo:  userRepo,
		groupRepo: groupRepo,
	}
}

func (e *engineEnv) user(t *testing.T, name string) string {
	t.Helper()
	u, err := e.users.Create(context.Background(), name, nil)
	require.NoError(t, err)
	return u.ID
}

// connect opens a fake connection for userID.
func (e *engineEnv) connect(t *testing.T, connID, userID string) *fakeSub {
	t.Helper()
	s := newSub(connID, userID)
	require.NoError(t, e.engine.Connect(context.Background(), s))
	return s
}

func resetAll(subs ...*fakeSub) {
	for _, s := range subs {
		s.reset()
	}
}

func received(s *fakeSub) []*domain.MessageView {
	var res []*domain.MessageView
	for _, f := range s.of(event.TypeMessageReceived) {
		res = append(res, f.Data.(*domain.MessageView))
	}
	return res
}

func errorsOf(s *fakeSub) []event.ErrorData {
	var res []event.ErrorData
	for _, f := range s.of(event.TypeError) {
		res = append(res, f.Data.(event.ErrorData))
	}
	return res
}

func TestEngine_ConnectMarksOnline(t *testing.T) {
	e := newEngineEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")

	b := e.connect(t, "b1", bob)
	e.connect(t, "a1", alice)
	a2 := e.connect(t, "a2", alice)

	assert.Equal(t, 2, e.presence.Connections(alice))
	u, err := e.userRepo.GetByID(ctx, alice)
	require.NoError(t, err)
	assert.True(t, u.IsOnline)

	// Only the first tab announces presence.
	online := b.of(event.TypePresenceChanged)
	require.Len(t, online, 2)
	assert.Equal(t, event.PresenceChangedData{UserID: alice, Online: true}, online[1].Data)

	resetAll(b)
	e.engine.Disconnect(a2)
	e.engine.Disconnect(a2)
	assert.Empty(t, b.of(event.TypePresenceChanged))
	assert.Equal(t, 1, e.presence.Connections(alice))
}

func TestEngine_JoinResyncsWithoutCountingTwice(t *testing.T) {
	e := newEngineEnv(t)
	alice := e.user(t, "alice")
	a := e.connect(t, "a1", alice)

	e.engine.Handle(context.Background(), a, &event.Join{UserID: alice})
	assert.Empty(t, errorsOf(a))
	assert.Equal(t, 1, e.presence.Connections(alice))

	e.engine.Handle(context.Background(), a, &event.Join{UserID: "mallory"})
	errs := errorsOf(a)
	require.Len(t, errs, 1)
	assert.Equal(t, domain.KindAuthorization, errs[0].Kind)
}

func TestEngine_PrivateSendReachesBothSides(t *testing.T) {
	e := newEngineEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	a1 := e.connect(t, "a1", alice)
	a2 := e.connect(t, "a2", alice)
	b := e.connect(t, "b1", bob)
	resetAll(a1, a2, b)

	e.engine.Handle(ctx, a1, &event.SendMessage{
		Sender:  alice,
		Content: "hi bob",
		Target:  event.Target{Recipient: bob},
	})

	for _, s := range []*fakeSub{a1, a2, b} {
		got := received(s)
		require.Len(t, got, 1, s.ID())
		assert.Equal(t, "hi bob", got[0].Content)
		assert.Equal(t, "alice", got[0].Sender.Username)
		assert.False(t, got[0].Read)
	}
}

func TestEngine_SpoofedSenderIsRejected(t *testing.T) {
	e := newEngineEnv(t)
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	a := e.connect(t, "a1", alice)
	b := e.connect(t, "b1", bob)
	resetAll(a, b)

	e.engine.Handle(context.Background(), a, &event.SendMessage{
		Sender:  bob,
		Content: "i am bob",
		Target:  event.Target{Recipient: alice},
	})

	errs := errorsOf(a)
	require.Len(t, errs, 1)
	assert.Equal(t, event.TypeSendMessage, errs[0].Event)
	assert.Equal(t, domain.KindAuthorization, errs[0].Kind)
	assert.Empty(t, received(a))
	assert.Empty(t, received(b))
}

func TestEngine_BlockedSendIsStoredButNotDelivered(t *testing.T) {
	e := newEngineEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	require.NoError(t, e.users.Block(ctx, bob, alice))
	a1 := e.connect(t, "a1", alice)
	a2 := e.connect(t, "a2", alice)
	b := e.connect(t, "b1", bob)
	resetAll(a1, a2, b)

	e.engine.Handle(ctx, a1, &event.SendMessage{Content: "hello?", Target: event.Target{Recipient: bob}})

	assert.Empty(t, b.frames)
	// Every tab of the sender keeps the same history.
	require.Len(t, received(a1), 1)
	require.Len(t, received(a2), 1)
	notices := a1.of(event.TypeDeliveryError)
	require.Len(t, notices, 1)
	assert.Empty(t, a2.of(event.TypeDeliveryError))
	data := notices[0].Data.(event.DeliveryErrorData)
	assert.Equal(t, blockedReason, data.Reason)
	assert.Equal(t, received(a1)[0].ID, data.MessageID)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.Blocked))

	history, err := e.messages.DirectHistory(ctx, alice, bob, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, data.MessageID, history[0].ID)
}

func TestEngine_BlockedMessageStaysHiddenFromRecipient(t *testing.T) {
	e := newEngineEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	require.NoError(t, e.users.Block(ctx, bob, alice))
	a := e.connect(t, "a1", alice)
	b := e.connect(t, "b1", bob)

	e.engine.Handle(ctx, a, &event.SendMessage{Content: "secret", Target: event.Target{Recipient: bob}})
	msg := received(a)[0]
	require.NoError(t, e.users.Unblock(ctx, bob, alice))
	resetAll(a, b)

	e.engine.Handle(ctx, a, &event.EditMessage{MessageID: msg.ID, Content: "edited secret"})
	e.engine.Handle(ctx, a, &event.AddReaction{MessageID: msg.ID, Emoji: "🙈"})
	assert.Len(t, a.of(event.TypeMessageUpdated), 2)
	assert.Empty(t, b.frames)

	// The recipient cannot reach it by id either.
	e.engine.Handle(ctx, b, &event.AddReaction{MessageID: msg.ID, Emoji: "👀"})
	e.engine.Handle(ctx, b, &event.MarkRead{MessageID: msg.ID})
	e.engine.Handle(ctx, b, &event.SendMessage{Content: "re", ReplyTo: msg.ID, Target: event.Target{Recipient: alice}})
	for _, err := range errorsOf(b) {
		assert.Equal(t, domain.KindAuthorization, err.Kind)
	}
	assert.Len(t, errorsOf(b), 3)
	assert.Empty(t, a.of(event.TypeMessageRead))

	history, err := e.messages.DirectHistory(ctx, bob, alice, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
	recent, err := e.messages.Recent(ctx, bob, 0)
	require.NoError(t, err)
	assert.Empty(t, recent)

	b.reset()
	e.engine.Handle(ctx, a, &event.DeleteMessage{MessageID: msg.ID, Mode: domain.DeleteForEveryone})
	assert.Len(t, a.of(event.TypeMessageDeleted), 1)
	assert.Empty(t, b.frames)
}

// staleGroups runs afterList once, after the membership read and before
// its result is used.
type staleGroups struct {
	domain.GroupRepository
	afterList func()
}

func (g *staleGroups) ListForUser(ctx context.Context, userID string) ([]*domain.Group, error) {
	groups, err := g.GroupRepository.ListForUser(ctx, userID)
	if f := g.afterList; f != nil {
		g.afterList = nil
		f()
	}
	return groups, err
}

func TestEngine_ConnectSeesMemberAddedDuringSetup(t *testing.T) {
	e := newEngineEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	g, err := e.groups.Create(ctx, alice, "team", nil)
	require.NoError(t, err)

	groups := &staleGroups{GroupRepository: e.groupRepo}
	groups.afterList = func() {
		_, err := e.groups.AddMember(ctx, g.ID, alice, bob)
		require.NoError(t, err)
	}
	engine := NewEngine(e.hub, e.presence, e.messages, groups, logging.Discard(), e.metrics)

	b := newSub("b1", bob)
	require.NoError(t, engine.Connect(ctx, b))
	assert.True(t, e.hub.InRoom(b.ID(), domain.GroupRoom(g.ID)))
	assert.Len(t, b.of(event.TypeGroupJoined), 1)
}

func TestEngine_ConnectFailureUnregisters(t *testing.T) {
	e := newEngineEnv(t)
	groups := &failingGroups{GroupRepository: e.groupRepo}
	engine := NewEngine(e.hub, e.presence, e.messages, groups, logging.Discard(), e.metrics)

	s := newSub("c1", "alice")
	err := engine.Connect(context.Background(), s)
	assert.Equal(t, domain.KindStore, domain.KindOf(err))
	assert.False(t, e.hub.Registered(s.ID()))
	assert.Equal(t, 0, e.presence.Connections("alice"))
}

type failingGroups struct {
	domain.GroupRepository
}

func (failingGroups) ListForUser(context.Context, string) ([]*domain.Group, error) {
	return nil, errors.New("database is locked")
}

func TestEngine_GroupSendDeliversOncePerMember(t *testing.T) {
	e := newEngineEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	carol := e.user(t, "carol")
	g, err := e.groups.Create(ctx, alice, "team", []string{bob, carol})
	require.NoError(t, err)

	a := e.connect(t, "a1", alice)
	b := e.connect(t, "b1", bob)
	c := e.connect(t, "c1", carol)
	resetAll(a, b, c)

	e.engine.Handle(ctx, a, &event.SendMessage{Content: "standup", Target: event.Target{Group: g.ID}})

	for _, s := range []*fakeSub{a, b, c} {
		got := received(s)
		require.Len(t, got, 1, s.ID())
		require.NotNil(t, got[0].Group)
		assert.Equal(t, g.ID, *got[0].Group)
	}
}

func TestEngine_Typing(t *testing.T) {
	e := newEngineEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	outsider := e.user(t, "eve")
	g, err := e.groups.Create(ctx, alice, "team", []string{bob})
	require.NoError(t, err)

	a := e.connect(t, "a1", alice)
	b := e.connect(t, "b1", bob)
	x := e.connect(t, "x1", outsider)
	resetAll(a, b, x)

	e.engine.Handle(ctx, a, &event.TypingSignal{Target: event.Target{Group: g.ID}, Active: true})
	assert.Empty(t, a.of(event.TypeTypingStatus))
	require.Len(t, b.of(event.TypeTypingStatus), 1)
	assert.Equal(t, event.TypingStatusData{Sender: alice, Group: g.ID, Typing: true}, b.frames[0].Data)

	e.engine.Handle(ctx, a, &event.TypingSignal{Target: event.Target{Recipient: bob}})
	frames := b.of(event.TypeTypingStatus)
	require.Len(t, frames, 2)
	assert.Equal(t, event.TypingStatusData{Sender: alice, Typing: false}, frames[1].Data)

	e.engine.Handle(ctx, x, &event.TypingSignal{Target: event.Target{Group: g.ID}, Active: true})
	errs := errorsOf(x)
	require.Len(t, errs, 1)
	assert.Equal(t, domain.KindAuthorization, errs[0].Kind)
	assert.Len(t, b.of(event.TypeTypingStatus), 2)
}

func TestEngine_MarkReadNotifiesOnce(t *testing.T) {
	e := newEngineEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	a := e.connect(t, "a1", alice)
	b := e.connect(t, "b1", bob)

	e.engine.Handle(ctx, a, &event.SendMessage{Content: "ping", Target: event.Target{Recipient: bob}})
	msg := received(b)[0]
	resetAll(a, b)

	e.engine.Handle(ctx, b, &event.MarkRead{MessageID: msg.ID, ReaderID: bob})
	e.engine.Handle(ctx, b, &event.MarkRead{MessageID: msg.ID})

	for _, s := range []*fakeSub{a, b} {
		reads := s.of(event.TypeMessageRead)
		require.Len(t, reads, 1, s.ID())
		assert.Equal(t, event.MessageReadData{MessageID: msg.ID, ReaderID: bob}, reads[0].Data)
	}

	history, err := e.messages.DirectHistory(ctx, alice, bob, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Read)

	// The sender cannot mark their own message read.
	e.engine.Handle(ctx, a, &event.MarkRead{MessageID: msg.ID})
	errs := errorsOf(a)
	require.Len(t, errs, 1)
	assert.Equal(t, domain.KindAuthorization, errs[0].Kind)
}

func TestEngine_ReactionToggleAndTombstone(t *testing.T) {
	e := newEngineEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	a := e.connect(t, "a1", alice)
	b := e.connect(t, "b1", bob)

	e.engine.Handle(ctx, a, &event.SendMessage{Content: "secret", Target: event.Target{Recipient: bob}})
	msg := received(b)[0]
	resetAll(a, b)

	e.engine.Handle(ctx, b, &event.AddReaction{MessageID: msg.ID, Emoji: "👍"})
	updates := a.of(event.TypeMessageUpdated)
	require.Len(t, updates, 1)
	assert.Len(t, updates[0].Data.(*domain.MessageView).Reactions, 1)

	e.engine.Handle(ctx, b, &event.AddReaction{MessageID: msg.ID, Emoji: "👍"})
	updates = a.of(event.TypeMessageUpdated)
	require.Len(t, updates, 2)
	assert.Empty(t, updates[1].Data.(*domain.MessageView).Reactions)
	resetAll(a, b)

	// Only the sender may delete for everyone.
	e.engine.Handle(ctx, b, &event.DeleteMessage{MessageID: msg.ID, Mode: domain.DeleteForEveryone})
	require.Len(t, errorsOf(b), 1)
	b.reset()

	e.engine.Handle(ctx, a, &event.DeleteMessage{MessageID: msg.ID, Mode: domain.DeleteForEveryone})
	for _, s := range []*fakeSub{a, b} {
		require.Len(t, s.of(event.TypeMessageDeleted), 1, s.ID())
		updated := s.of(event.TypeMessageUpdated)
		require.Len(t, updated, 1)
		view := updated[0].Data.(*domain.MessageView)
		assert.True(t, view.DeletedForEveryone)
		assert.Empty(t, view.Content)
	}

	// A second tombstone is a no-op and reactions are refused.
	resetAll(a, b)
	e.engine.Handle(ctx, a, &event.DeleteMessage{MessageID: msg.ID, Mode: domain.DeleteForEveryone})
	assert.Empty(t, b.frames)
	e.engine.Handle(ctx, b, &event.AddReaction{MessageID: msg.ID, Emoji: "🔥"})
	errs := errorsOf(b)
	require.Len(t, errs, 1)
	assert.Equal(t, domain.KindValidation, errs[0].Kind)
}

func TestEngine_DeleteForMeOnlyTellsRequester(t *testing.T) {
	e := newEngineEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	a := e.connect(t, "a1", alice)
	b := e.connect(t, "b1", bob)

	e.engine.Handle(ctx, a, &event.SendMessage{Content: "oops", Target: event.Target{Recipient: bob}})
	msg := received(b)[0]
	resetAll(a, b)

	e.engine.Handle(ctx, b, &event.DeleteMessage{MessageID: msg.ID, Mode: domain.DeleteForMe})
	assert.Empty(t, a.frames)
	deleted := b.of(event.TypeMessageDeleted)
	require.Len(t, deleted, 1)
	assert.Equal(t, event.MessageDeletedData{MessageID: msg.ID, Mode: domain.DeleteForMe, UserID: bob}, deleted[0].Data)

	history, err := e.messages.DirectHistory(ctx, bob, alice, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestEngine_EditRepublishes(t *testing.T) {
	e := newEngineEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	a := e.connect(t, "a1", alice)
	b := e.connect(t, "b1", bob)

	e.engine.Handle(ctx, a, &event.SendMessage{Content: "helo", Target: event.Target{Recipient: bob}})
	msg := received(b)[0]
	resetAll(a, b)

	e.engine.Handle(ctx, a, &event.EditMessage{MessageID: msg.ID, Content: "hello"})
	updated := b.of(event.TypeMessageUpdated)
	require.Len(t, updated, 1)
	view := updated[0].Data.(*domain.MessageView)
	assert.Equal(t, "hello", view.Content)
	assert.True(t, view.Edited)

	e.engine.Handle(ctx, b, &event.EditMessage{MessageID: msg.ID, Content: "hijack"})
	require.Len(t, errorsOf(b), 1)
}

func TestEngine_MembershipChangesReachLiveConnections(t *testing.T) {
	e := newEngineEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	a := e.connect(t, "a1", alice)
	b := e.connect(t, "b1", bob)
	resetAll(a, b)

	g, err := e.groups.Create(ctx, alice, "late", nil)
	require.NoError(t, err)
	require.Len(t, a.of(event.TypeGroupJoined), 1)

	_, err = e.groups.AddMember(ctx, g.ID, alice, bob)
	require.NoError(t, err)
	joined := b.of(event.TypeGroupJoined)
	require.Len(t, joined, 1)
	assert.Equal(t, event.GroupData{GroupID: g.ID, Name: "late"}, joined[0].Data)

	e.engine.Handle(ctx, b, &event.SendMessage{Content: "thanks", Target: event.Target{Group: g.ID}})
	assert.Len(t, received(a), 1)

	require.NoError(t, e.groups.Delete(ctx, g.ID, alice))
	assert.Len(t, a.of(event.TypeGroupDeleted), 1)
	assert.Len(t, b.of(event.TypeGroupDeleted), 1)
	assert.False(t, e.hub.InRoom(b.ID(), domain.GroupRoom(g.ID)))
}

func TestEngine_RejectHidesStoreFailures(t *testing.T) {
	e := newEngineEnv(t)
	s := newSub("c1", "alice")

	e.engine.Reject(s, event.TypeSendMessage, domain.StoreFailure("create message", errors.New("database is locked")))
	errs := errorsOf(s)
	require.Len(t, errs, 1)
	assert.Equal(t, domain.KindStore, errs[0].Kind)
	assert.Equal(t, "internal error, please retry", errs[0].Message)

	e.engine.Reject(s, "", domain.Invalid("unknown event type %q", "dance"))
	errs = errorsOf(s)
	require.Len(t, errs, 2)
	assert.Equal(t, domain.KindValidation, errs[1].Kind)
	assert.Contains(t, errs[1].Message, "dance")
}
