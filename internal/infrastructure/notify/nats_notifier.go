package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"trustlab/internal/bootstrap/logging"
	"trustlab/internal/errs"
	"trustlab/internal/ports"
)

// Publisher is the subset of *nats.Conn the notifier needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes JSON events on <prefix>.<lab_id>.assigned and
// <prefix>.<lab_id>.concluded so each laboratory can subscribe to its own work.
type NATSNotifier struct {
	pub    Publisher
	prefix string
}

var _ ports.Notifier = (*NATSNotifier)(nil)

func NewNATSNotifier(pub Publisher, subjectPrefix string) *NATSNotifier {
	prefix := strings.Trim(strings.TrimSpace(subjectPrefix), ".")
	if prefix == "" {
		prefix = "trustlab.labs"
	}
	return &NATSNotifier{pub: pub, prefix: prefix}
}

// Connect dials the NATS server at url.
func Connect(ctx context.Context, url string) (*nats.Conn, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "notify.nats"))

	conn, err := nats.Connect(
		url,
		nats.Name("trustlab"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.Warn(logCtx, "nats disconnected", slog.Any("err", errs.Loggable(err)))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logging.Info(logCtx, "nats reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, errs.Wrapf(err, "connect nats %q", url)
	}

	logging.Info(logCtx, "nats connected", slog.String("url", conn.ConnectedUrl()))
	return conn, nil
}

func (n *NATSNotifier) LabAssigned(_ context.Context, event ports.LabAssignedEvent) error {
	return n.publish(event.LabID, "assigned", event)
}

func (n *NATSNotifier) ValidationConcluded(_ context.Context, event ports.ValidationConcludedEvent) error {
	return n.publish(event.LabID, "concluded", event)
}

func (n *NATSNotifier) Subject(labID, kind string) string {
	return n.prefix + "." + subjectToken(labID) + "." + kind
}

func (n *NATSNotifier) publish(labID, kind string, payload any) error {
	if n.pub == nil {
		return errors.New("nats publisher is not configured")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return errs.Wrap(err, "marshal event")
	}
	subject := n.Subject(labID, kind)
	if err := n.pub.Publish(subject, data); err != nil {
		return errs.Wrapf(err, "publish %s", subject)
	}
	return nil
}

// subjectToken keeps lab ids from introducing extra subject levels or wildcards.
func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		}
		return r
	}, s)
}
