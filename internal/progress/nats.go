package progress

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/unalkalkan/narrator/pkg/types"
)

// DefaultSubjectPrefix is used when the configuration leaves it empty
const DefaultSubjectPrefix = "narrator.progress"

// Connect dials the NATS server named in cfg
func Connect(cfg types.NATSConfig) (*nats.Conn, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("narrator"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	return nc, nil
}

// Subject returns the subject progress for one conversion is published on
func Subject(prefix, id string) string {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return prefix + "." + id
}

// NATSSink publishes each update as JSON on a fixed subject. Publish
// failures are logged and do not interrupt the conversion.
type NATSSink struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

// NewNATSSink creates a new NATS sink
func NewNATSSink(conn *nats.Conn, subject string, logger *slog.Logger) *NATSSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSSink{
		conn:    conn,
		subject: subject,
		logger:  logger.With("component", "progress", "subject", subject),
	}
}

// Report publishes u
func (s *NATSSink) Report(u Update) {
	data, err := json.Marshal(u)
	if err != nil {
		s.logger.Warn("failed to encode progress update", "error", err)
		return
	}
	if err := s.conn.Publish(s.subject, data); err != nil {
		s.logger.Warn("failed to publish progress update", "error", err)
	}
}
