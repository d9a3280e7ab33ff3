package imapwatch

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/pkg/errors"
)

// IdleResult tells the watch loop why an IDLE wait returned.
type IdleResult int

const (
	IdleNewMail IdleResult = iota
	IdleTimeout
)

// Session is one selected IMAP folder. The watch loop only sees this
// interface, so tests can drive it with a fake.
type Session interface {
	UIDValidity() uint32
	// SearchSince returns UIDs above lastUID received since the given date,
	// ascending.
	SearchSince(ctx context.Context, lastUID uint32, since time.Time) ([]uint32, error)
	FetchMessage(ctx context.Context, uid uint32) ([]byte, error)
	SupportsIdle() bool
	// IdleWait blocks until the server pushes a mailbox update, the timeout
	// elapses, or the context is done.
	IdleWait(ctx context.Context, timeout time.Duration) (IdleResult, error)
	Logout() error
}

type imapSession struct {
	client      *client.Client
	mailbox     *imap.MailboxStatus
	updates     chan client.Update
	supportIdle bool
}

func (s *imapSession) UIDValidity() uint32 {
	return s.mailbox.UidValidity
}

func (s *imapSession) SupportsIdle() bool {
	return s.supportIdle
}

func (s *imapSession) SearchSince(ctx context.Context, lastUID uint32, since time.Time) ([]uint32, error) {
	criteria := imap.NewSearchCriteria()
	uidRange := new(imap.SeqSet)
	uidRange.AddRange(lastUID+1, 0) // From lastUID+1 to infinity
	criteria.Uid = uidRange
	criteria.Since = since

	s.client.Timeout = 30 * time.Second
	uids, err := s.client.UidSearch(criteria)
	s.client.Timeout = 0
	if err != nil {
		return nil, errors.Wrap(err, "error searching for new messages")
	}

	// Servers may ignore the UID range when SINCE is present, filter again.
	result := make([]uint32, 0, len(uids))
	for _, uid := range uids {
		if uid > lastUID {
			result = append(result, uid)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result, nil
}

func (s *imapSession) FetchMessage(ctx context.Context, uid uint32) ([]byte, error) {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchUid}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)

	s.client.Timeout = 60 * time.Second
	go func() {
		done <- s.client.UidFetch(seqSet, items, messages)
	}()

	var raw []byte
	for msg := range messages {
		literal := msg.GetBody(section)
		if literal == nil {
			continue
		}
		data, err := io.ReadAll(literal)
		if err != nil {
			continue
		}
		raw = data
	}

	s.client.Timeout = 0
	if err := <-done; err != nil {
		return nil, errors.Wrapf(err, "error fetching message uid %d", uid)
	}
	if raw == nil {
		return nil, fmt.Errorf("no body returned for uid %d", uid)
	}
	return raw, nil
}

func (s *imapSession) IdleWait(ctx context.Context, timeout time.Duration) (IdleResult, error) {
	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.client.Idle(stop, nil)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	stopIdle := func() error {
		close(stop)
		return <-done
	}

	for {
		select {
		case update := <-s.updates:
			if _, ok := update.(*client.MailboxUpdate); ok {
				if err := stopIdle(); err != nil {
					return IdleNewMail, err
				}
				return IdleNewMail, nil
			}
			// Expunge and status updates do not signal new mail.

		case <-timer.C:
			if err := stopIdle(); err != nil {
				return IdleTimeout, err
			}
			return IdleTimeout, nil

		case <-ctx.Done():
			_ = stopIdle()
			return IdleTimeout, ctx.Err()

		case err := <-done:
			// Idle ended on its own, usually a dropped connection.
			if err == nil {
				err = errors.New("idle terminated unexpectedly")
			}
			return IdleTimeout, err
		}
	}
}

func (s *imapSession) Logout() error {
	s.client.Timeout = 5 * time.Second
	return s.client.Logout()
}
