package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/dmarcwatch/config"
	"github.com/customeros/dmarcwatch/interfaces"
	dmarcwatch_errors "github.com/customeros/dmarcwatch/internal/errors"
	"github.com/customeros/dmarcwatch/internal/logger"
	"github.com/customeros/dmarcwatch/internal/tracing"
)

const (
	dialTimeout   = 30 * time.Second
	logoutTimeout = 5 * time.Second
)

// IMAPService is a single-mailbox session over the monitored report inbox.
// It is not safe for concurrent use; the processor owns one session per run.
type IMAPService struct {
	cfg    *config.IMAPConfig
	log    logger.Logger
	client *client.Client
}

func NewIMAPService(cfg *config.IMAPConfig, log logger.Logger) interfaces.MailSource {
	return &IMAPService{
		cfg: cfg,
		log: log,
	}
}

// Connect dials the server, logs in and selects the monitored folder.
func (s *IMAPService) Connect(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPService.Connect")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("server", s.cfg.Host)
	span.SetTag("port", s.cfg.Port)
	span.SetTag("tls", s.cfg.TLS)

	serverAddr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	dialer := &net.Dialer{
		Timeout:   dialTimeout,
		KeepAlive: dialTimeout,
	}

	var c *client.Client
	var err error

	if s.cfg.TLS {
		tlsConfig := &tls.Config{
			ServerName: s.cfg.Host,
		}
		c, err = client.DialWithDialerTLS(dialer, serverAddr, tlsConfig)
	} else {
		c, err = client.DialWithDialer(dialer, serverAddr)
	}

	if err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrapf(err, "failed to connect to %s", serverAddr)
	}

	c.Timeout = dialTimeout
	if err = c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		c.Logout()
		tracing.TraceErr(span, err)
		return errors.Wrapf(err, "failed to login as %s", s.cfg.Username)
	}
	c.Timeout = 0

	if _, err = c.Select(s.cfg.Folder, false); err != nil {
		c.Logout()
		tracing.TraceErr(span, err)
		return errors.Wrapf(err, "failed to select folder %s", s.cfg.Folder)
	}

	s.client = c
	s.log.Infof("Connected to IMAP server %s, folder %s", s.cfg.Host, s.cfg.Folder)
	return nil
}

// ListUnseen returns the sequence numbers of unread messages in listing order.
func (s *IMAPService) ListUnseen(ctx context.Context) ([]uint32, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "IMAPService.ListUnseen")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if s.client == nil {
		return nil, dmarcwatch_errors.ErrNotConnected
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	seqNums, err := s.client.Search(criteria)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to search for unseen messages")
	}

	span.SetTag("messages.count", len(seqNums))
	s.log.Infof("Found %d unread message(s)", len(seqNums))
	return seqNums, nil
}

// Fetch retrieves the full RFC822 body of one message.
func (s *IMAPService) Fetch(ctx context.Context, seqNum uint32) ([]byte, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "IMAPService.Fetch")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("message.seq", seqNum)

	if s.client == nil {
		return nil, dmarcwatch_errors.ErrNotConnected
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seqNum)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	if err := s.client.Fetch(seqSet, items, messages); err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "failed to fetch message %d", seqNum)
	}

	msg, ok := <-messages
	if !ok || msg == nil {
		tracing.TraceErr(span, dmarcwatch_errors.ErrMessageNotFound)
		return nil, dmarcwatch_errors.ErrMessageNotFound
	}

	literal := msg.GetBody(section)
	if literal == nil {
		tracing.TraceErr(span, dmarcwatch_errors.ErrMessageNotFound)
		return nil, dmarcwatch_errors.ErrMessageNotFound
	}

	raw, err := io.ReadAll(literal)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "failed to read message %d body", seqNum)
	}

	return raw, nil
}

// Delete flags the message deleted without expunging, so sequence numbers
// stay valid for the rest of the batch. Only called after the owning report
// unit has been durably committed; a crash before this point leaves the
// message for reprocessing, which the dedup key absorbs.
func (s *IMAPService) Delete(ctx context.Context, seqNum uint32) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "IMAPService.Delete")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("message.seq", seqNum)

	if s.client == nil {
		return dmarcwatch_errors.ErrNotConnected
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seqNum)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.DeletedFlag}
	if err := s.client.Store(seqSet, item, flags, nil); err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrapf(err, "failed to flag message %d deleted", seqNum)
	}

	s.log.Infof("Flagged message %d deleted", seqNum)
	return nil
}

// Expunge permanently removes every message flagged deleted in this session.
func (s *IMAPService) Expunge(ctx context.Context) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "IMAPService.Expunge")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if s.client == nil {
		return dmarcwatch_errors.ErrNotConnected
	}

	if err := s.client.Expunge(nil); err != nil {
		tracing.TraceErr(span, err)
		return errors.Wrap(err, "failed to expunge deleted messages")
	}

	return nil
}

// Close logs out with a timeout so a dead server can't hang shutdown.
// Safe to call on every exit path, including before a successful Connect.
func (s *IMAPService) Close() {
	if s.client == nil {
		return
	}

	c := s.client
	s.client = nil

	done := make(chan error, 1)
	go func() {
		done <- c.Logout()
		close(done)
	}()

	select {
	case err := <-done:
		if err != nil {
			s.log.Warnf("Error during IMAP logout: %v", err)
		} else {
			s.log.Info("IMAP connection closed")
		}
	case <-time.After(logoutTimeout):
		s.log.Warn("IMAP logout timed out")
	}
}
