package imapwatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parceltrace/parceltrace/internal/enum"
	"github.com/parceltrace/parceltrace/internal/logger"
	"github.com/parceltrace/parceltrace/services/mailparse"
)

func testLogger() logger.Logger {
	log := logger.NewAppLogger(&logger.Config{DevMode: true})
	log.InitLogger()
	return log
}

func rawMessage(messageID, subject string) []byte {
	lines := []string{
		"From: Example Shop <orders@shop.example>",
		"Subject: " + subject,
		"Content-Type: text/plain",
		"",
		"body",
		"",
	}
	if messageID != "" {
		lines = append([]string{"Message-ID: <" + messageID + ">"}, lines...)
	}
	return []byte(strings.Join(lines, "\r\n"))
}

// fakeSession serves canned messages keyed by uid.
type fakeSession struct {
	mu          sync.Mutex
	validity    uint32
	messages    map[uint32][]byte
	fetchErrors map[uint32]error
	searchErr   error
	idle        bool
	loggedOut   bool
}

func newFakeSession(validity uint32) *fakeSession {
	return &fakeSession{
		validity:    validity,
		messages:    map[uint32][]byte{},
		fetchErrors: map[uint32]error{},
	}
}

func (s *fakeSession) add(uid uint32, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[uid] = raw
}

func (s *fakeSession) UIDValidity() uint32 { return s.validity }
func (s *fakeSession) SupportsIdle() bool  { return s.idle }

func (s *fakeSession) SearchSince(ctx context.Context, lastUID uint32, since time.Time) ([]uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	var uids []uint32
	for uid := range s.messages {
		if uid > lastUID {
			uids = append(uids, uid)
		}
	}
	for i := range uids {
		for j := i + 1; j < len(uids); j++ {
			if uids[j] < uids[i] {
				uids[i], uids[j] = uids[j], uids[i]
			}
		}
	}
	return uids, nil
}

func (s *fakeSession) FetchMessage(ctx context.Context, uid uint32) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fetchErrors[uid]; err != nil {
		return nil, err
	}
	raw, ok := s.messages[uid]
	if !ok {
		return nil, fmt.Errorf("no body returned for uid %d", uid)
	}
	return raw, nil
}

func (s *fakeSession) IdleWait(ctx context.Context, timeout time.Duration) (IdleResult, error) {
	<-ctx.Done()
	return IdleTimeout, ctx.Err()
}

func (s *fakeSession) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loggedOut = true
	return nil
}

// fakeProvider keeps the cursor in memory and records every step.
type fakeProvider struct {
	mu sync.Mutex

	lastSeenUID uint32
	uidValidity *uint32
	seen        map[string]bool

	savedUIDs      []uint32
	enqueued       []string
	enqueuedUIDs   []uint32
	skipSenders    map[string]bool
	routeErr       error
	resetCalls     []uint32
	storedValidity []uint32
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		seen:        map[string]bool{},
		skipSenders: map[string]bool{},
	}
}

func (p *fakeProvider) Label() string { return "fake@example.com/INBOX" }

func (p *fakeProvider) Connect(ctx context.Context) (*Connection, error) {
	return nil, errors.New("not used in drain tests")
}

func (p *fakeProvider) LoadContext(ctx context.Context) (*FetchContext, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &FetchContext{
		LastSeenUID:      p.lastSeenUID,
		UIDValidity:      p.uidValidity,
		MaxEmailAgeDays:  7,
		CheckUIDValidity: true,
	}, nil
}

func (p *fakeProvider) StoreUIDValidity(ctx context.Context, validity uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := validity
	p.uidValidity = &v
	p.storedValidity = append(p.storedValidity, validity)
	return nil
}

func (p *fakeProvider) ResetForUIDValidityChange(ctx context.Context, validity uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := validity
	p.uidValidity = &v
	p.lastSeenUID = 0
	p.resetCalls = append(p.resetCalls, validity)
	return nil
}

func (p *fakeProvider) Route(ctx context.Context, msg *mailparse.ParsedMessage) (*RouteResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.routeErr != nil {
		return nil, p.routeErr
	}
	if p.skipSenders[msg.Sender] {
		return nil, nil
	}
	return &RouteResult{UserID: "user_1", Source: enum.MailSourceUserMailbox}, nil
}

func (p *fakeProvider) FallbackID(uid uint32, uidValidity *uint32) string {
	return mailparse.FallbackMessageID("fake@example.com", "INBOX", uidValidity, uid)
}

func (p *fakeProvider) Enqueue(ctx context.Context, route *RouteResult, msg *mailparse.ParsedMessage, uid uint32) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seen[msg.MessageID] {
		return false, nil
	}
	p.seen[msg.MessageID] = true
	p.enqueued = append(p.enqueued, msg.MessageID)
	p.enqueuedUIDs = append(p.enqueuedUIDs, uid)
	return true, nil
}

func (p *fakeProvider) SaveUID(ctx context.Context, uid uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if uid > p.lastSeenUID {
		p.lastSeenUID = uid
	}
	p.savedUIDs = append(p.savedUIDs, uid)
	return nil
}

func TestDrain_EnqueuesAndAdvancesCursorInOrder(t *testing.T) {
	session := newFakeSession(100)
	session.add(12, rawMessage("msg-12@shop.example", "order 12"))
	session.add(10, rawMessage("msg-10@shop.example", "order 10"))
	session.add(11, rawMessage("msg-11@shop.example", "order 11"))

	provider := newFakeProvider()
	state := NewWorkerState(provider.Label())

	require.NoError(t, drain(context.Background(), provider, session, state, testLogger()))

	assert.Equal(t, []uint32{10, 11, 12}, provider.savedUIDs)
	assert.Equal(t, uint32(12), provider.lastSeenUID)
	assert.Equal(t, []string{"msg-10@shop.example", "msg-11@shop.example", "msg-12@shop.example"}, provider.enqueued)
	// Every message reaches the enqueue step with the uid it was fetched under.
	assert.Equal(t, []uint32{10, 11, 12}, provider.enqueuedUIDs)

	// A second drain over the same mailbox finds nothing new.
	require.NoError(t, drain(context.Background(), provider, session, state, testLogger()))
	assert.Len(t, provider.enqueued, 3)
}

func TestDrain_DuplicateStillAdvancesCursor(t *testing.T) {
	session := newFakeSession(100)
	session.add(10, rawMessage("dup@shop.example", "first copy"))
	session.add(11, rawMessage("dup@shop.example", "second copy"))

	provider := newFakeProvider()
	state := NewWorkerState(provider.Label())

	require.NoError(t, drain(context.Background(), provider, session, state, testLogger()))

	assert.Equal(t, []string{"dup@shop.example"}, provider.enqueued)
	assert.Equal(t, uint32(11), provider.lastSeenUID)
}

func TestDrain_UnroutedMessageIsSkippedButAdvances(t *testing.T) {
	session := newFakeSession(100)
	session.add(10, rawMessage("skip@other.example", "not ours"))

	provider := newFakeProvider()
	provider.skipSenders["Example Shop <orders@shop.example>"] = true
	state := NewWorkerState(provider.Label())

	require.NoError(t, drain(context.Background(), provider, session, state, testLogger()))

	assert.Empty(t, provider.enqueued)
	assert.Equal(t, uint32(10), provider.lastSeenUID)
}

func TestDrain_UnparseableMessageAdvances(t *testing.T) {
	session := newFakeSession(100)
	session.add(10, []byte("\x00\x01not an rfc822 message"))
	session.add(11, rawMessage("ok@shop.example", "fine"))

	provider := newFakeProvider()
	state := NewWorkerState(provider.Label())

	require.NoError(t, drain(context.Background(), provider, session, state, testLogger()))

	// Broken mail is dropped for good, the readable one still lands.
	assert.Equal(t, []string{"ok@shop.example"}, provider.enqueued)
	assert.Equal(t, uint32(11), provider.lastSeenUID)
}

func TestDrain_FetchErrorDoesNotAdvanceCursor(t *testing.T) {
	session := newFakeSession(100)
	session.add(10, rawMessage("first@shop.example", "first"))
	session.add(11, rawMessage("second@shop.example", "second"))
	session.fetchErrors[10] = errors.New("connection reset")

	provider := newFakeProvider()
	state := NewWorkerState(provider.Label())

	require.NoError(t, drain(context.Background(), provider, session, state, testLogger()))

	// The failed uid is never recorded as handled.
	assert.Equal(t, []string{"second@shop.example"}, provider.enqueued)
	assert.Equal(t, []uint32{11}, provider.savedUIDs)
}

func TestDrain_MissingMessageIDUsesFallback(t *testing.T) {
	session := newFakeSession(100)
	session.add(10, rawMessage("", "no message id"))

	provider := newFakeProvider()
	validity := uint32(100)
	provider.uidValidity = &validity
	state := NewWorkerState(provider.Label())

	require.NoError(t, drain(context.Background(), provider, session, state, testLogger()))

	require.Len(t, provider.enqueued, 1)
	assert.True(t, strings.HasPrefix(provider.enqueued[0], "fallback:fake@example.com:"))
	assert.Contains(t, provider.enqueued[0], ":100:10")
}

func TestDrain_RouteErrorLeavesCursor(t *testing.T) {
	session := newFakeSession(100)
	session.add(10, rawMessage("a@shop.example", "a"))

	provider := newFakeProvider()
	provider.routeErr = errors.New("database unavailable")
	state := NewWorkerState(provider.Label())

	require.NoError(t, drain(context.Background(), provider, session, state, testLogger()))

	assert.Empty(t, provider.savedUIDs)
	assert.Equal(t, uint32(0), provider.lastSeenUID)
}

func TestRunConnection_StoresInitialUIDValidity(t *testing.T) {
	session := newFakeSession(4242)
	provider := newFakeProvider()
	state := NewWorkerState(provider.Label())

	conn := &Connection{Session: session, UsePolling: true}
	require.NoError(t, runConnection(context.Background(), provider, conn, state, testLogger()))

	assert.Equal(t, []uint32{4242}, provider.storedValidity)
	assert.Empty(t, provider.resetCalls)
}

func TestRunConnection_UIDValidityChangeResetsCursor(t *testing.T) {
	session := newFakeSession(5000)
	session.add(3, rawMessage("renumbered@shop.example", "renumbered"))

	provider := newFakeProvider()
	oldValidity := uint32(4242)
	provider.uidValidity = &oldValidity
	provider.lastSeenUID = 40
	state := NewWorkerState(provider.Label())

	conn := &Connection{Session: session, UsePolling: true}
	require.NoError(t, runConnection(context.Background(), provider, conn, state, testLogger()))

	assert.Equal(t, []uint32{5000}, provider.resetCalls)
	// The reset cursor picks up uids that were below the old one.
	assert.Equal(t, []string{"renumbered@shop.example"}, provider.enqueued)
	assert.Equal(t, uint32(3), provider.lastSeenUID)
}

func TestRunConnection_MatchingValidityKeepsCursor(t *testing.T) {
	session := newFakeSession(4242)
	provider := newFakeProvider()
	validity := uint32(4242)
	provider.uidValidity = &validity
	provider.lastSeenUID = 40
	state := NewWorkerState(provider.Label())

	conn := &Connection{Session: session, UsePolling: true}
	require.NoError(t, runConnection(context.Background(), provider, conn, state, testLogger()))

	assert.Empty(t, provider.resetCalls)
	assert.Equal(t, uint32(40), provider.lastSeenUID)
}

type stoppingProvider struct {
	*fakeProvider
}

func (p *stoppingProvider) Connect(ctx context.Context) (*Connection, error) {
	return nil, nil
}

func TestWatch_StopsWhenProviderDeclinesConnection(t *testing.T) {
	provider := &stoppingProvider{newFakeProvider()}
	state := NewWorkerState(provider.Label())

	done := make(chan struct{})
	go func() {
		Watch(context.Background(), provider, state, testLogger())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after Connect returned nil")
	}
}

func TestWorkerState_Snapshot(t *testing.T) {
	state := NewWorkerState("inbox@example.com/INBOX")
	assert.Equal(t, enum.WorkerModeConnecting, state.Snapshot().Mode)

	state.SetError(errors.New("dial tcp: connection refused"))
	snap := state.Snapshot()
	assert.Equal(t, enum.WorkerModeErrorBackoff, snap.Mode)
	assert.Equal(t, "dial tcp: connection refused", snap.Error)

	// Leaving backoff clears the error.
	state.SetMode(enum.WorkerModeIdle)
	snap = state.Snapshot()
	assert.Empty(t, snap.Error)

	state.SetProgress(2, 5, "Your order shipped", "orders@shop.example")
	snap = state.Snapshot()
	assert.Equal(t, 2, snap.QueuePosition)
	assert.Equal(t, 5, snap.QueueTotal)

	state.ClearProgress()
	assert.Equal(t, 0, state.Snapshot().QueueTotal)
}
