package message_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"kindred/internal/crypto"
	"kindred/internal/directory"
	"kindred/internal/domain"
	"kindred/internal/keystore"
	"kindred/internal/notify"
	"kindred/internal/services/message"
	"kindred/internal/store/memory"
	"kindred/pkg/apperrors"
)

const (
	alice    = domain.UserID("alice")
	bob      = domain.UserID("bob")
	theMatch = domain.MatchID("match-1")
)

// world is one in-memory deployment: shared backend state plus one pipeline
// per device. Alice and Bob get separate keystores, like separate phones.
type world struct {
	profiles *memory.Profiles
	matches  *memory.Matches
	messages *memory.Messages
	feed     *memory.Feed
	dir      *directory.Directory

	aliceKeys *keystore.FileStore
	bobKeys   *keystore.FileStore
}

func newWorld(t *testing.T) *world {
	t.Helper()
	w := &world{
		profiles: memory.NewProfiles(),
		matches:  memory.NewMatches(),
		messages: memory.NewMessages(),
		feed:     memory.NewFeed(),
	}
	w.messages.AttachFeed(w.feed)
	w.dir = directory.New(w.profiles, zerolog.Nop())
	w.aliceKeys = keystore.NewFileStore(t.TempDir(), "secret-a", zerolog.Nop())
	w.bobKeys = keystore.NewFileStore(t.TempDir(), "secret-b", zerolog.Nop())

	w.profiles.Put(domain.Profile{ID: alice, DisplayName: "Alice"})
	w.profiles.Put(domain.Profile{ID: bob, DisplayName: "Bob"})
	w.matches.Put(domain.Match{ID: theMatch, UserA: alice, UserB: bob, Status: domain.MatchActive})
	return w
}

func (w *world) pipeline(keys domain.KeyStore) *message.Service {
	return message.New(keys, w.dir, w.profiles, w.matches, w.messages, w.feed,
		allowAll{}, notify.Discard{}, zerolog.Nop())
}

// keyUp derives and publishes keys for a user on the given keystore.
func (w *world) keyUp(t *testing.T, keys domain.KeyStore, user domain.UserID) {
	t.Helper()
	pub, err := keys.EnsureKeys(user)
	require.NoError(t, err)
	require.NoError(t, w.dir.Publish(context.Background(), user, pub))
}

type allowAll struct{}

func (allowAll) Validate(context.Context, string) (domain.ValidationResult, error) {
	return domain.ValidationResult{OK: true}, nil
}

type rejectAll struct{ reason string }

func (r rejectAll) Validate(context.Context, string) (domain.ValidationResult, error) {
	return domain.ValidationResult{OK: false, Reason: r.reason}, nil
}

// --- Send path ---

// Fresh pair, both keyed: the stored payload is an envelope, the receiver
// decrypts it back, and the sender gets the plaintext for optimistic UI.
func TestSend_BothKeyed_EncryptsAtRest(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	w.keyUp(t, w.aliceKeys, alice)
	w.keyUp(t, w.bobKeys, bob)
	svc := w.pipeline(w.aliceKeys)

	sent, err := svc.Send(ctx, theMatch, alice, bob, "hello")
	require.NoError(t, err)
	require.Equal(t, "hello", sent.Payload, "optimistic copy carries the typed plaintext")

	stored, found, err := w.messages.Get(ctx, sent.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.NotEqual(t, "hello", stored.Payload, "payload must be opaque at rest")
	require.Contains(t, stored.Payload, ":")
	require.True(t, crypto.LooksSealed(stored.Payload))

	// Bob's side decrypts it back.
	bobSvc := w.pipeline(w.bobKeys)
	stream, err := bobSvc.SubscribeConversation(ctx, theMatch, bob, nil)
	require.NoError(t, err)
	defer stream.Close()

	msgs := stream.Conversation().Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "hello", msgs[0].Payload)
}

// One-sided key gap: the row stores the exact plaintext and the receiver
// displays it without decryption errors.
func TestSend_SenderWithoutKeys_PlaintextFallback(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	w.keyUp(t, w.bobKeys, bob) // Alice never derived keys
	svc := w.pipeline(w.aliceKeys)

	sent, err := svc.Send(ctx, theMatch, alice, bob, "hi")
	require.NoError(t, err)

	stored, _, err := w.messages.Get(ctx, sent.ID)
	require.NoError(t, err)
	require.Equal(t, "hi", stored.Payload)

	bobSvc := w.pipeline(w.bobKeys)
	stream, err := bobSvc.SubscribeConversation(ctx, theMatch, bob, nil)
	require.NoError(t, err)
	defer stream.Close()
	require.Equal(t, "hi", stream.Conversation().Messages()[0].Payload)
}

func TestSend_ReceiverWithoutPublishedKey_PlaintextFallback(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	w.keyUp(t, w.aliceKeys, alice) // Bob never published
	svc := w.pipeline(w.aliceKeys)

	sent, err := svc.Send(ctx, theMatch, alice, bob, "hey there")
	require.NoError(t, err)

	stored, _, err := w.messages.Get(ctx, sent.ID)
	require.NoError(t, err)
	require.Equal(t, "hey there", stored.Payload)
}

// A keystore that cannot be opened (wrong device secret) degrades the send
// to plaintext instead of failing it.
func TestSend_KeystoreFailure_PlaintextFallback(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	home := t.TempDir()
	good := keystore.NewFileStore(home, "right-secret", zerolog.Nop())
	w.keyUp(t, good, alice)
	w.keyUp(t, w.bobKeys, bob)

	// Same key file, wrong secret: every load fails.
	broken := keystore.NewFileStore(home, "wrong-secret", zerolog.Nop())
	svc := w.pipeline(broken)

	sent, err := svc.Send(ctx, theMatch, alice, bob, "still goes out")
	require.NoError(t, err)

	stored, _, err := w.messages.Get(ctx, sent.ID)
	require.NoError(t, err)
	require.Equal(t, "still goes out", stored.Payload)
}

// A directory outage at send time is a downgrade, not an error.
func TestSend_DirectoryFailure_PlaintextFallback(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	w.keyUp(t, w.aliceKeys, alice)

	svc := message.New(w.aliceKeys, failingDirectory{errors.New("directory down")},
		w.profiles, w.matches, w.messages, w.feed, allowAll{}, notify.Discard{}, zerolog.Nop())

	sent, err := svc.Send(ctx, theMatch, alice, bob, "still goes out")
	require.NoError(t, err)

	stored, _, err := w.messages.Get(ctx, sent.ID)
	require.NoError(t, err)
	require.Equal(t, "still goes out", stored.Payload)
}

type failingDirectory struct{ err error }

func (d failingDirectory) Publish(context.Context, domain.UserID, domain.X25519Public) error {
	return d.err
}

func (d failingDirectory) Lookup(context.Context, domain.UserID) (domain.X25519Public, bool, error) {
	return domain.X25519Public{}, false, d.err
}

func TestSend_InactiveMatch_RejectedWithoutSideEffects(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	svc := w.pipeline(w.aliceKeys)

	for _, status := range []domain.MatchStatus{domain.MatchUnmatched, domain.MatchBlocked} {
		w.matches.Put(domain.Match{ID: theMatch, UserA: alice, UserB: bob, Status: status})

		_, err := svc.Send(ctx, theMatch, alice, bob, "hello?")
		require.Error(t, err)
		require.Equal(t, apperrors.CodeFailedPrecondition, apperrors.CodeOf(err))

		n, err := w.messages.CountByMatch(ctx, theMatch)
		require.NoError(t, err)
		require.Zero(t, n, "no row may be written for an inactive match")
	}
}

func TestSend_UnknownMatch(t *testing.T) {
	w := newWorld(t)
	svc := w.pipeline(w.aliceKeys)

	_, err := svc.Send(context.Background(), "no-such-match", alice, bob, "hi")
	require.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
}

func TestSend_OutsiderRejected(t *testing.T) {
	w := newWorld(t)
	svc := w.pipeline(w.aliceKeys)

	_, err := svc.Send(context.Background(), theMatch, "eve", bob, "hi")
	require.Equal(t, apperrors.CodePermissionDenied, apperrors.CodeOf(err))
}

func TestSend_ModerationRejection_NoSideEffects(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	svc := message.New(w.aliceKeys, w.dir, w.profiles, w.matches, w.messages, w.feed,
		rejectAll{reason: "contains contact info"}, notify.Discard{}, zerolog.Nop())

	_, err := svc.Send(ctx, theMatch, alice, bob, "call me at 555-0100")
	require.Error(t, err)
	require.Equal(t, apperrors.CodeModerationRejected, apperrors.CodeOf(err))

	n, err := w.messages.CountByMatch(ctx, theMatch)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestSend_PersistFailureSurfaces(t *testing.T) {
	w := newWorld(t)
	svc := w.pipeline(w.aliceKeys)
	w.messages.FailInserts(errors.New("write timeout"))

	_, err := svc.Send(context.Background(), theMatch, alice, bob, "hello")
	require.Error(t, err)
	require.Equal(t, apperrors.CodeInternal, apperrors.CodeOf(err))
}

func TestSendMedia_PlaceholderNeverEncrypted(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	w.keyUp(t, w.aliceKeys, alice)
	w.keyUp(t, w.bobKeys, bob)
	svc := w.pipeline(w.aliceKeys)

	sent, err := svc.SendMedia(ctx, theMatch, alice, bob, domain.ContentImage, "https://cdn.example/img/1.jpg")
	require.NoError(t, err)

	stored, _, err := w.messages.Get(ctx, sent.ID)
	require.NoError(t, err)
	require.Equal(t, domain.PhotoPlaceholder, stored.Payload)
	require.Equal(t, "https://cdn.example/img/1.jpg", stored.MediaURL)
	require.False(t, crypto.LooksSealed(stored.Payload))
}

// --- Receive path ---

// Legacy plaintext rows pass through the receive path unchanged.
func TestReceive_LegacyPlaintextPassthrough(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	w.keyUp(t, w.bobKeys, bob)

	require.NoError(t, w.messages.Insert(ctx, domain.Message{
		ID: "legacy-1", MatchID: theMatch, SenderID: alice, ReceiverID: bob,
		Payload: "pre-rollout hello", ContentType: domain.ContentText,
		CreatedAt: time.Now().Add(-24 * time.Hour),
	}))

	svc := w.pipeline(w.bobKeys)
	stream, err := svc.SubscribeConversation(ctx, theMatch, bob, nil)
	require.NoError(t, err)
	defer stream.Close()

	require.Equal(t, "pre-rollout hello", stream.Conversation().Messages()[0].Payload)
}

// An envelope the receiver cannot open (sender key gone from the directory)
// degrades to showing the raw payload, not to an error.
func TestReceive_UndecryptableShowsRawPayload(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	w.keyUp(t, w.aliceKeys, alice)
	w.keyUp(t, w.bobKeys, bob)

	aliceSvc := w.pipeline(w.aliceKeys)
	_, err := aliceSvc.Send(ctx, theMatch, alice, bob, "sealed hello")
	require.NoError(t, err)

	// Alice's directory entry disappears before Bob reads.
	w.profiles.Put(domain.Profile{ID: alice, DisplayName: "Alice"})

	bobSvc := w.pipeline(w.bobKeys)
	stream, err := bobSvc.SubscribeConversation(ctx, theMatch, bob, nil)
	require.NoError(t, err)
	defer stream.Close()

	msgs := stream.Conversation().Messages()
	require.Len(t, msgs, 1)
	require.True(t, crypto.LooksSealed(msgs[0].Payload), "raw payload shown when decryption is impossible")
}

// The optimistic append and the feed echo of the same row collapse to one
// entry.
func TestReceive_DeduplicatesEcho(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	w.keyUp(t, w.aliceKeys, alice)
	w.keyUp(t, w.bobKeys, bob)
	svc := w.pipeline(w.aliceKeys)

	stream, err := svc.SubscribeConversation(ctx, theMatch, alice, nil)
	require.NoError(t, err)
	defer stream.Close()

	sent, err := svc.Send(ctx, theMatch, alice, bob, "once only")
	require.NoError(t, err)

	// Optimistic append, as the UI layer would do with the returned copy.
	// Whichever of this and the feed echo lands first wins; the other is a
	// no-op.
	stream.Conversation().Add(sent)

	// The feed echo for the same id must not append twice.
	require.Eventually(t, func() bool {
		return stream.Conversation().Len() == 1
	}, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond) // give a wrong dup a chance to land
	require.Equal(t, 1, stream.Conversation().Len())
	require.Equal(t, "once only", stream.Conversation().Messages()[0].Payload)
}

func TestReceive_LiveEventDecryptsAndNotifies(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	w.keyUp(t, w.aliceKeys, alice)
	w.keyUp(t, w.bobKeys, bob)

	var (
		mu  sync.Mutex
		got []string
	)
	bobSvc := w.pipeline(w.bobKeys)
	stream, err := bobSvc.SubscribeConversation(ctx, theMatch, bob, func(m domain.Message) {
		mu.Lock()
		got = append(got, m.Payload)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer stream.Close()

	aliceSvc := w.pipeline(w.aliceKeys)
	_, err = aliceSvc.Send(ctx, theMatch, alice, bob, "live hello")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0] == "live hello"
	}, time.Second, 10*time.Millisecond)
}

// Receiving a message addressed to the current user records a read receipt
// asynchronously; read_at is set once and keeps its first value.
func TestReceive_MarksReadOnce(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	w.keyUp(t, w.bobKeys, bob)

	bobSvc := w.pipeline(w.bobKeys)
	stream, err := bobSvc.SubscribeConversation(ctx, theMatch, bob, nil)
	require.NoError(t, err)
	defer stream.Close()

	aliceSvc := w.pipeline(w.aliceKeys)
	sent, err := aliceSvc.Send(ctx, theMatch, alice, bob, "read me")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		m, _, _ := w.messages.Get(ctx, sent.ID)
		return m.ReadAt != nil
	}, time.Second, 10*time.Millisecond)

	first, _, _ := w.messages.Get(ctx, sent.ID)
	require.NoError(t, w.messages.MarkRead(ctx, sent.ID, time.Now().Add(time.Hour)))
	second, _, _ := w.messages.Get(ctx, sent.ID)
	require.Equal(t, first.ReadAt, second.ReadAt, "read_at is monotonic, set once")
}

// A row inserted while the history snapshot is being read misses the
// snapshot but still arrives through the feed subscription, which is opened
// first.
func TestSubscribe_InsertDuringHistoryLoadStillArrives(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)

	racy := &insertDuringList{Messages: w.messages}
	racy.insert = func() {
		_ = w.messages.Insert(ctx, domain.Message{
			ID: "in-window", MatchID: theMatch, SenderID: alice, ReceiverID: bob,
			Payload: "nearly lost", ContentType: domain.ContentText,
			CreatedAt: time.Now(),
		})
	}
	svc := message.New(w.bobKeys, w.dir, w.profiles, w.matches, racy, w.feed,
		allowAll{}, notify.Discard{}, zerolog.Nop())

	stream, err := svc.SubscribeConversation(ctx, theMatch, bob, nil)
	require.NoError(t, err)
	defer stream.Close()

	require.Eventually(t, func() bool {
		return stream.Conversation().Len() == 1
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, "nearly lost", stream.Conversation().Messages()[0].Payload)
}

// insertDuringList fires its insert hook immediately after the history
// snapshot is taken, landing a row in the load/subscribe window.
type insertDuringList struct {
	*memory.Messages
	insert func()
	once   sync.Once
}

func (s *insertDuringList) ListByMatch(ctx context.Context, matchID domain.MatchID) ([]domain.Message, error) {
	out, err := s.Messages.ListByMatch(ctx, matchID)
	s.once.Do(s.insert)
	return out, err
}

// Opening a conversation records read receipts for unread history addressed
// to the current user.
func TestSubscribe_MarksUnreadHistoryRead(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	require.NoError(t, w.messages.Insert(ctx, domain.Message{
		ID: "unread-1", MatchID: theMatch, SenderID: alice, ReceiverID: bob,
		Payload: "waiting", ContentType: domain.ContentText,
		CreatedAt: time.Now().Add(-time.Minute),
	}))

	svc := w.pipeline(w.bobKeys)
	stream, err := svc.SubscribeConversation(ctx, theMatch, bob, nil)
	require.NoError(t, err)
	defer stream.Close()

	require.Eventually(t, func() bool {
		m, _, _ := w.messages.Get(ctx, "unread-1")
		return m.ReadAt != nil
	}, time.Second, 10*time.Millisecond)
}

func TestConversation_OrderedByCreatedAt(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)

	base := time.Now().Add(-time.Hour)
	offsets := map[string]time.Duration{"m-1": 1, "m-2": 2, "m-3": 3}
	for _, id := range []string{"m-3", "m-1", "m-2"} { // inserted out of order
		require.NoError(t, w.messages.Insert(ctx, domain.Message{
			ID: id, MatchID: theMatch, SenderID: alice, ReceiverID: bob,
			Payload: id, ContentType: domain.ContentText,
			CreatedAt: base.Add(offsets[id] * time.Minute),
		}))
	}

	svc := w.pipeline(w.bobKeys)
	stream, err := svc.SubscribeConversation(ctx, theMatch, bob, nil)
	require.NoError(t, err)
	defer stream.Close()

	msgs := stream.Conversation().Messages()
	require.Len(t, msgs, 3)
	require.Equal(t, []string{"m-1", "m-2", "m-3"}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})
}

// --- Delete ---

func TestDelete_OwnMessageOnly(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	svc := w.pipeline(w.aliceKeys)

	sent, err := svc.Send(ctx, theMatch, alice, bob, "oops")
	require.NoError(t, err)

	require.Equal(t, apperrors.CodePermissionDenied, apperrors.CodeOf(svc.Delete(ctx, bob, sent.ID)))
	require.NoError(t, svc.Delete(ctx, alice, sent.ID))

	_, found, err := w.messages.Get(ctx, sent.ID)
	require.NoError(t, err)
	require.False(t, found)

	require.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(svc.Delete(ctx, alice, sent.ID)))
}

// --- Cross-cutting scenario ---

// Reinstall: Alice re-derives on a fresh keystore and her old history stays
// readable with no re-publish.
func TestScenario_ReinstallKeepsHistoryReadable(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	w.keyUp(t, w.aliceKeys, alice)
	w.keyUp(t, w.bobKeys, bob)

	aliceSvc := w.pipeline(w.aliceKeys)
	_, err := aliceSvc.Send(ctx, theMatch, alice, bob, "before reinstall")
	require.NoError(t, err)

	pubBefore, _, err := w.dir.Lookup(ctx, alice)
	require.NoError(t, err)

	// "Reinstall": a brand new keystore directory, no publish.
	freshKeys := keystore.NewFileStore(t.TempDir(), "new-device-secret", zerolog.Nop())
	pubAfter, err := freshKeys.EnsureKeys(alice)
	require.NoError(t, err)
	require.Equal(t, pubBefore, pubAfter, "re-derived key matches the published one")

	freshSvc := w.pipeline(freshKeys)
	stream, err := freshSvc.SubscribeConversation(ctx, theMatch, alice, nil)
	require.NoError(t, err)
	defer stream.Close()

	msgs := stream.Conversation().Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "before reinstall", msgs[0].Payload)
	require.False(t, strings.Contains(msgs[0].Payload, "v1:"))
}
