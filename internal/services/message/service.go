package message

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"kindred/internal/crypto"
	"kindred/internal/domain"
	"kindred/pkg/apperrors"
)

// Service is the message pipeline.
//
// Send: validate the match → moderation → encrypt when both parties have
// key material (falling back to plaintext when they don't) → persist
// exactly one row → best-effort push.
//
// Receive: change-feed event → decrypt attempt with fallback to the raw
// payload → id-deduplicated merge into the conversation → fire-and-forget
// read receipt.
//
// Delivery is deliberately prioritised over confidentiality: any condition
// that prevents encryption downgrades the message to plaintext and is
// logged, never raised to the user.
type Service struct {
	keys     domain.KeyStore
	dir      domain.KeyDirectory
	profiles domain.ProfileStore
	matches  domain.MatchStore
	messages domain.MessageStore
	feed     domain.ChangeFeed
	mod      domain.Validator
	push     domain.Notifier
	log      zerolog.Logger

	now func() time.Time

	// asyncTimeout bounds the detached goroutines (push dispatch, read
	// receipts) so they cannot linger past component teardown forever.
	asyncTimeout time.Duration
}

func New(
	keys domain.KeyStore,
	dir domain.KeyDirectory,
	profiles domain.ProfileStore,
	matches domain.MatchStore,
	messages domain.MessageStore,
	feed domain.ChangeFeed,
	mod domain.Validator,
	push domain.Notifier,
	log zerolog.Logger,
) *Service {
	return &Service{
		keys:         keys,
		dir:          dir,
		profiles:     profiles,
		matches:      matches,
		messages:     messages,
		feed:         feed,
		mod:          mod,
		push:         push,
		log:          log.With().Str("component", "pipeline").Logger(),
		now:          time.Now,
		asyncTimeout: 10 * time.Second,
	}
}

// Send validates, encrypts when possible, persists and notifies.
//
// The returned Message is the persisted row except that Payload carries the
// plaintext the user typed, so the UI can append it optimistically without
// a redundant local decrypt. On error no row exists and the UI must roll
// back any optimistic append.
func (s *Service) Send(ctx context.Context, matchID domain.MatchID, senderID, receiverID domain.UserID, text string) (domain.Message, error) {
	if text == "" {
		return domain.Message{}, apperrors.InvalidArg("message is empty")
	}
	if err := s.guardActive(ctx, matchID, senderID, receiverID); err != nil {
		return domain.Message{}, err
	}

	// Moderation runs before any key lookup or row write: a rejection must
	// leave zero side effects.
	verdict, err := s.mod.Validate(ctx, text)
	if err != nil {
		return domain.Message{}, apperrors.Wrap(apperrors.CodeUnavailable, "message could not be checked, try again", err)
	}
	if !verdict.OK {
		return domain.Message{}, apperrors.ModerationRejected(verdict.Reason)
	}

	payload := s.sealOrFallback(ctx, senderID, receiverID, text)

	msg := domain.Message{
		ID:          uuid.NewString(),
		MatchID:     matchID,
		SenderID:    senderID,
		ReceiverID:  receiverID,
		Payload:     payload,
		ContentType: domain.ContentText,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.messages.Insert(ctx, msg); err != nil {
		return domain.Message{}, apperrors.Wrap(apperrors.CodeInternal, "message could not be sent", err)
	}

	s.notifyAsync(receiverID, senderID, text, matchID)

	msg.Payload = text
	return msg, nil
}

// SendMedia persists an image or voice message. The payload is only the
// placeholder; the media itself lives in object storage at mediaURL and is
// not encrypted by this layer.
func (s *Service) SendMedia(ctx context.Context, matchID domain.MatchID, senderID, receiverID domain.UserID, ct domain.ContentType, mediaURL string) (domain.Message, error) {
	var placeholder string
	switch ct {
	case domain.ContentImage:
		placeholder = domain.PhotoPlaceholder
	case domain.ContentVoice:
		placeholder = domain.VoicePlaceholder
	default:
		return domain.Message{}, apperrors.InvalidArg("unsupported media content type")
	}
	if mediaURL == "" {
		return domain.Message{}, apperrors.InvalidArg("media url is required")
	}
	if err := s.guardActive(ctx, matchID, senderID, receiverID); err != nil {
		return domain.Message{}, err
	}

	msg := domain.Message{
		ID:          uuid.NewString(),
		MatchID:     matchID,
		SenderID:    senderID,
		ReceiverID:  receiverID,
		Payload:     placeholder,
		ContentType: ct,
		MediaURL:    mediaURL,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.messages.Insert(ctx, msg); err != nil {
		return domain.Message{}, apperrors.Wrap(apperrors.CodeInternal, "message could not be sent", err)
	}

	s.notifyAsync(receiverID, senderID, placeholder, matchID)
	return msg, nil
}

// SubscribeConversation loads history, decrypts it for display, and merges
// live feed events into the returned stream's conversation. onMessage fires
// once per newly merged message (never for duplicates) and may be nil.
func (s *Service) SubscribeConversation(ctx context.Context, matchID domain.MatchID, userID domain.UserID, onMessage func(domain.Message)) (*domain.Stream, error) {
	match, found, err := s.matches.Get(ctx, matchID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "conversation unavailable", err)
	}
	if !found || !match.Has(userID) {
		return nil, apperrors.NotFound("conversation not found")
	}

	// Subscribe before reading the history snapshot. A row inserted between
	// the two then still reaches us as a feed event, and the id-dedup in
	// Conversation.Add collapses anything present in both.
	sub, err := s.feed.Subscribe(ctx, matchID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUnavailable, "realtime updates unavailable", err)
	}

	conv := domain.NewConversation(matchID)

	history, err := s.messages.ListByMatch(ctx, matchID)
	if err != nil {
		_ = sub.Close()
		return nil, apperrors.Wrap(apperrors.CodeInternal, "conversation unavailable", err)
	}
	for _, m := range history {
		// Opening the conversation is the read moment for anything that
		// arrived while it was closed.
		if m.ReceiverID == userID && m.ReadAt == nil {
			s.markReadAsync(m.ID)
		}
		conv.Add(s.inbound(ctx, userID, m))
	}

	stream := domain.NewStream(conv, sub)

	go s.consume(userID, stream, sub, onMessage)
	return stream, nil
}

// Delete removes one of the requester's own messages (the premium
// delete-message feature).
func (s *Service) Delete(ctx context.Context, userID domain.UserID, messageID string) error {
	m, found, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "message could not be deleted", err)
	}
	if !found {
		return apperrors.NotFound("message not found")
	}
	if m.SenderID != userID {
		return apperrors.Forbidden("only your own messages can be deleted")
	}
	if err := s.messages.Delete(ctx, messageID); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "message could not be deleted", err)
	}
	return nil
}

// guardActive rejects sends on missing, foreign, or inactive matches before
// any side effect.
func (s *Service) guardActive(ctx context.Context, matchID domain.MatchID, senderID, receiverID domain.UserID) error {
	match, found, err := s.matches.Get(ctx, matchID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "match unavailable", err)
	}
	if !found {
		return apperrors.NotFound("match not found")
	}
	if !match.Has(senderID) || !match.Has(receiverID) {
		return apperrors.Forbidden("you are not part of this match")
	}
	if match.Status != domain.MatchActive {
		return apperrors.FailedPrecondition("this match is no longer active")
	}
	return nil
}

// sealOrFallback returns the payload to persist: the sealed envelope when
// both parties have key material, otherwise the plaintext. Every downgrade
// is logged; none is surfaced.
func (s *Service) sealOrFallback(ctx context.Context, senderID, receiverID domain.UserID, text string) string {
	priv, ok, err := s.keys.PrivateKey(senderID)
	if err != nil {
		s.log.Warn().Err(err).Msg("keystore unavailable, sending plaintext")
		return text
	}
	if !ok {
		s.log.Info().Msg("no local private key, sending plaintext")
		return text
	}

	pub, ok, err := s.dir.Lookup(ctx, receiverID)
	if err != nil {
		s.log.Warn().Err(err).Msg("key directory unavailable, sending plaintext")
		return text
	}
	if !ok {
		s.log.Info().Msg("receiver has no published key, sending plaintext")
		return text
	}

	envelope, err := crypto.Seal(text, priv, pub)
	if err != nil {
		s.log.Warn().Err(err).Msg("encryption failed, sending plaintext")
		return text
	}
	return envelope
}

// inbound prepares a stored or live message for display.
func (s *Service) inbound(ctx context.Context, userID domain.UserID, m domain.Message) domain.Message {
	if m.ContentType != domain.ContentText {
		return m
	}
	if !crypto.LooksSealed(m.Payload) {
		// Legacy plaintext row: already displayable.
		return m
	}

	priv, ok, err := s.keys.PrivateKey(userID)
	if err != nil || !ok {
		s.log.Warn().Err(err).Str("message", m.ID).Msg("no private key, showing raw payload")
		return m
	}

	// The pair key is symmetric, so our private key plus the counterparty's
	// public key opens both directions, including our own echoed sends.
	peerID := m.SenderID
	if peerID == userID {
		peerID = m.ReceiverID
	}
	pub, ok, err := s.dir.Lookup(ctx, peerID)
	if err != nil || !ok {
		s.log.Warn().Err(err).Str("message", m.ID).Msg("peer key unavailable, showing raw payload")
		return m
	}

	plain, err := crypto.Open(m.Payload, priv, pub)
	if err != nil {
		s.log.Warn().Err(err).Str("message", m.ID).Msg("decrypt failed, showing raw payload")
		return m
	}
	m.Payload = plain
	return m
}

// consume merges live feed events into the stream until it closes.
func (s *Service) consume(userID domain.UserID, stream *domain.Stream, sub domain.Subscription, onMessage func(domain.Message)) {
	for ev := range sub.Events() {
		m := ev.Message

		// Receipt first, off the render path: it fires even when the event
		// turns out to be the echo of an optimistic append.
		if m.ReceiverID == userID && m.ReadAt == nil {
			s.markReadAsync(m.ID)
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.asyncTimeout)
		display := s.inbound(ctx, userID, m)
		cancel()

		if !stream.Conversation().Add(display) {
			// Optimistic append already holds this id.
			continue
		}
		if onMessage != nil {
			onMessage(display)
		}
	}
}

// notifyAsync dispatches the push without blocking or failing the send.
func (s *Service) notifyAsync(recipient, sender domain.UserID, preview string, matchID domain.MatchID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.asyncTimeout)
		defer cancel()

		name := string(sender)
		if prof, ok, err := s.profiles.Get(ctx, sender); err == nil && ok && prof.DisplayName != "" {
			name = prof.DisplayName
		}
		if err := s.push.Notify(ctx, recipient, name, preview, matchID); err != nil {
			s.log.Warn().Err(err).Msg("push dispatch failed, message already delivered")
		}
	}()
}

// markReadAsync records the read receipt without blocking rendering.
func (s *Service) markReadAsync(messageID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.asyncTimeout)
		defer cancel()

		if err := s.messages.MarkRead(ctx, messageID, s.now().UTC()); err != nil {
			s.log.Warn().Err(err).Str("message", messageID).Msg("read receipt failed")
		}
	}()
}

// Compile-time assertion that Service implements domain.MessageService.
var _ domain.MessageService = (*Service)(nil)
