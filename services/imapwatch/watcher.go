package imapwatch

import (
	"context"
	"time"

	"github.com/jpillora/backoff"
	tracingLog "github.com/opentracing/opentracing-go/log"

	"github.com/parceltrace/parceltrace/internal/enum"
	"github.com/parceltrace/parceltrace/internal/logger"
	"github.com/parceltrace/parceltrace/internal/tracing"
	"github.com/parceltrace/parceltrace/internal/utils"
	"github.com/parceltrace/parceltrace/services/mailparse"
)

const (
	// Servers are allowed to drop IDLE connections after 30 minutes,
	// re-issue well before that.
	idleTimeout = 24 * time.Minute

	// In-connection poll cadence when the server lacks IDLE.
	noIdlePollInterval = 5 * time.Minute
)

// RouteResult names the user a message belongs to and how it arrived.
type RouteResult struct {
	UserID string
	Source enum.MailSource
}

// FetchContext is the persisted cursor of the watched folder, reloaded
// before every drain so external changes are picked up.
type FetchContext struct {
	LastSeenUID      uint32
	UIDValidity      *uint32
	MaxEmailAgeDays  int
	CheckUIDValidity bool
}

// Connection is an established session plus the mode the provider wants.
type Connection struct {
	Session Session
	// UsePolling makes the watcher log out after each drain and reconnect
	// after PollInterval instead of holding the connection in IDLE.
	UsePolling   bool
	PollInterval time.Duration
}

// Provider supplies the mailbox-specific pieces of a watcher: how to
// connect, where the cursor lives, and how messages map to users.
type Provider interface {
	Label() string

	// Connect returns (nil, nil) when the watcher should stop for good,
	// e.g. the account was deactivated or the module disabled.
	Connect(ctx context.Context) (*Connection, error)

	LoadContext(ctx context.Context) (*FetchContext, error)
	StoreUIDValidity(ctx context.Context, validity uint32) error
	// ResetForUIDValidityChange zeroes the UID cursor after the server
	// invalidated it.
	ResetForUIDValidityChange(ctx context.Context, validity uint32) error

	// Route returns (nil, nil) when the message belongs to nobody and
	// should be skipped with its UID advanced.
	Route(ctx context.Context, msg *mailparse.ParsedMessage) (*RouteResult, error)
	FallbackID(uid uint32, uidValidity *uint32) string
	// Enqueue deduplicates and enqueues; returns false when the message id
	// was already seen. uid is the IMAP UID the message was fetched under.
	Enqueue(ctx context.Context, route *RouteResult, msg *mailparse.ParsedMessage, uid uint32) (bool, error)
	SaveUID(ctx context.Context, uid uint32) error
}

// Watch runs one watcher until the context is cancelled or the provider
// asks to stop. Connection failures back off from 30s to 300s.
func Watch(ctx context.Context, p Provider, state *WorkerState, log logger.Logger) {
	b := &backoff.Backoff{
		Min:    30 * time.Second,
		Max:    300 * time.Second,
		Factor: 2,
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		state.SetMode(enum.WorkerModeConnecting)
		conn, err := p.Connect(ctx)
		if err != nil {
			state.SetError(err)
			log.Warnf("[%s] connection error: %v", p.Label(), err)
			if !sleepCtx(ctx, b.Duration()) {
				return
			}
			continue
		}
		if conn == nil {
			log.Infof("[%s] watcher stopping", p.Label())
			return
		}

		b.Reset()

		err = runConnection(ctx, p, conn, state, log)
		_ = conn.Session.Logout()

		if ctx.Err() != nil {
			return
		}
		if err != nil {
			state.SetError(err)
			log.Warnf("[%s] session error: %v", p.Label(), err)
			if !sleepCtx(ctx, b.Duration()) {
				return
			}
			continue
		}

		if conn.UsePolling {
			interval := conn.PollInterval
			if interval <= 0 {
				interval = noIdlePollInterval
			}
			next := utils.Now().Add(interval)
			state.SetMode(enum.WorkerModePolling)
			state.SetScanTimes(utils.Now(), &next)
			if !sleepCtx(ctx, interval) {
				return
			}
		}
	}
}

// runConnection reconciles UIDVALIDITY, drains, then either returns (polling
// mode) or parks the session in IDLE until new mail arrives.
func runConnection(ctx context.Context, p Provider, conn *Connection, state *WorkerState, log logger.Logger) error {
	span, ctx := tracing.StartTracerSpan(ctx, "imapwatch.runConnection")
	defer span.Finish()
	tracing.TagComponentWatcher(span)
	span.LogFields(tracingLog.String("watcher", p.Label()))

	fc, err := p.LoadContext(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	serverValidity := conn.Session.UIDValidity()
	if fc.CheckUIDValidity && serverValidity != 0 {
		switch {
		case fc.UIDValidity == nil:
			if err := p.StoreUIDValidity(ctx, serverValidity); err != nil {
				tracing.TraceErr(span, err)
				return err
			}
		case *fc.UIDValidity != serverValidity:
			log.Warnf("[%s] UIDVALIDITY changed from %d to %d, resetting UID cursor",
				p.Label(), *fc.UIDValidity, serverValidity)
			if err := p.ResetForUIDValidityChange(ctx, serverValidity); err != nil {
				tracing.TraceErr(span, err)
				return err
			}
		}
	}

	if err := drain(ctx, p, conn.Session, state, log); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	if conn.UsePolling {
		return nil
	}

	if !conn.Session.SupportsIdle() {
		return pollInConnection(ctx, p, conn, state, log)
	}

	for {
		state.SetMode(enum.WorkerModeIdle)
		result, err := conn.Session.IdleWait(ctx, idleTimeout)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
		if result == IdleTimeout {
			continue
		}
		if err := drain(ctx, p, conn.Session, state, log); err != nil {
			return err
		}
	}
}

// pollInConnection drains on a timer while holding the session open, for
// servers without IDLE.
func pollInConnection(ctx context.Context, p Provider, conn *Connection, state *WorkerState, log logger.Logger) error {
	interval := conn.PollInterval
	if interval <= 0 {
		interval = noIdlePollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		next := utils.Now().Add(interval)
		state.SetMode(enum.WorkerModePolling)
		state.SetScanTimes(utils.Now(), &next)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := drain(ctx, p, conn.Session, state, log); err != nil {
				return err
			}
		}
	}
}

// drain fetches every message above the UID cursor and runs it through
// route, dedup and enqueue. The cursor only advances after a message is
// handled, so transient fetch errors are retried on the next pass.
func drain(ctx context.Context, p Provider, session Session, state *WorkerState, log logger.Logger) error {
	span, ctx := tracing.StartTracerSpan(ctx, "imapwatch.drain")
	defer span.Finish()
	tracing.TagComponentWatcher(span)
	span.LogFields(tracingLog.String("watcher", p.Label()))

	// Reload the cursor each drain; settings or resets may have changed it.
	fc, err := p.LoadContext(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	since := utils.Now().AddDate(0, 0, -fc.MaxEmailAgeDays)
	uids, err := session.SearchSince(ctx, fc.LastSeenUID, since)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	span.LogFields(tracingLog.Int("messages.found", len(uids)))

	if len(uids) == 0 {
		state.SetScanTimes(utils.Now(), nil)
		return nil
	}

	state.SetMode(enum.WorkerModeProcessing)
	defer state.ClearProgress()

	for i, uid := range uids {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		raw, err := session.FetchMessage(ctx, uid)
		if err != nil {
			// Leave the cursor in place so the message is retried.
			log.Warnf("[%s] fetch failed for uid %d: %v", p.Label(), uid, err)
			continue
		}

		msg, err := mailparse.Parse(raw)
		if err != nil {
			// Unparseable mail never improves, skip it for good.
			log.Warnf("[%s] unparseable message at uid %d: %v", p.Label(), uid, err)
			if err := p.SaveUID(ctx, uid); err != nil {
				return err
			}
			continue
		}
		if msg.MessageID == "" {
			msg.MessageID = p.FallbackID(uid, fc.UIDValidity)
		}

		state.SetProgress(i+1, len(uids), msg.Subject, utils.ExtractAddressFromHeader(msg.Sender))

		route, err := p.Route(ctx, msg)
		if err != nil {
			log.Warnf("[%s] routing failed for uid %d: %v", p.Label(), uid, err)
			continue
		}
		if route == nil {
			if err := p.SaveUID(ctx, uid); err != nil {
				return err
			}
			continue
		}

		enqueued, err := p.Enqueue(ctx, route, msg, uid)
		if err != nil {
			log.Warnf("[%s] enqueue failed for uid %d: %v", p.Label(), uid, err)
			continue
		}
		if !enqueued {
			log.Infof("[%s] duplicate message %s at uid %d", p.Label(), msg.MessageID, uid)
		}

		if err := p.SaveUID(ctx, uid); err != nil {
			return err
		}
	}

	state.SetScanTimes(utils.Now(), nil)
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
