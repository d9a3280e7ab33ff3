package imapwatch

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"

	"github.com/parceltrace/parceltrace/internal/enum"
	"github.com/parceltrace/parceltrace/internal/tracing"
)

// DialConfig carries everything needed to open one folder of one mailbox.
// Password is the decrypted credential.
type DialConfig struct {
	Server   string
	Port     int
	Username string
	Password string
	Security enum.EmailSecurity
	Folder   string
}

// Dial connects, logs in, probes capabilities and selects the folder.
func Dial(ctx context.Context, cfg DialConfig) (Session, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "imapwatch.Dial")
	defer span.Finish()
	tracing.TagComponentWatcher(span)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server, cfg.Port)

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	var c *client.Client
	var err error

	if cfg.Security == enum.EmailSecurityTLS {
		tlsConfig := &tls.Config{
			ServerName: cfg.Server,
		}
		c, err = client.DialWithDialerTLS(dialer, serverAddr, tlsConfig)
	} else {
		c, err = client.DialWithDialer(dialer, serverAddr)
	}
	if err != nil {
		err = fmt.Errorf("connection error: %w", err)
		tracing.TraceErr(span, err)
		return nil, err
	}

	c.Timeout = 30 * time.Second
	err = c.Login(cfg.Username, cfg.Password)
	if err != nil {
		c.Logout()
		err = fmt.Errorf("login error: %w", err)
		tracing.TraceErr(span, err)
		return nil, err
	}

	// Probe after login; some servers only advertise IDLE once authenticated.
	caps, err := c.Capability()
	if err != nil {
		c.Logout()
		err = fmt.Errorf("capability error: %w", err)
		tracing.TraceErr(span, err)
		return nil, err
	}

	mbox, err := c.Select(cfg.Folder, true)
	if err != nil {
		c.Logout()
		err = fmt.Errorf("error selecting folder %s: %w", cfg.Folder, err)
		tracing.TraceErr(span, err)
		return nil, err
	}
	c.Timeout = 0

	updates := make(chan client.Update, 16)
	c.Updates = updates

	return &imapSession{
		client:      c,
		mailbox:     mbox,
		updates:     updates,
		supportIdle: caps["IDLE"],
	}, nil
}
