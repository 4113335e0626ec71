// Package notify is the entry point request handlers use to queue notification mail.
package notify

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"complaintmail/directory"
	"complaintmail/queue"
)

// Enqueuer is the part of the dispatch queue the notifier needs.
type Enqueuer interface {
	Enqueue(job queue.Job)
	EnqueueBatch(jobs []queue.Job)
}

// Notifier turns notification requests into queued jobs. None of its methods wait
// for a message to be sent.
type Notifier struct {
	queue     Enqueuer
	directory directory.Directory
	log       zerolog.Logger
	now       func() time.Time
}

// New returns a Notifier backed by q and dir.
func New(q Enqueuer, dir directory.Directory, log zerolog.Logger) *Notifier {
	return &Notifier{queue: q, directory: dir, log: log, now: time.Now}
}

// NotifyOne queues a single message.
func (n *Notifier) NotifyOne(to, subject, body string) {
	n.queue.Enqueue(queue.Job{To: to, Subject: subject, Body: body})
}

// NotifyMany queues one message per recipient as a single contiguous batch.
// Blank recipients are dropped; an empty list is a no-op.
func (n *Notifier) NotifyMany(recipients []string, subject, body string) {
	jobs := make([]queue.Job, 0, len(recipients))
	for _, to := range recipients {
		if strings.TrimSpace(to) == "" {
			continue
		}
		jobs = append(jobs, queue.Job{To: to, Subject: subject, Body: body})
	}
	if len(jobs) == 0 {
		n.log.Info().Str("subject", subject).Msg("no recipients, nothing queued")
		return
	}
	n.queue.EnqueueBatch(jobs)
	n.log.Debug().Int("recipients", len(jobs)).Str("subject", subject).Msg("batch queued")
}

// NotifyAdmins resolves the admin list and queues one message per admin.
// Lookup failures are logged and returned; nothing is queued in that case.
func (n *Notifier) NotifyAdmins(ctx context.Context, subject, body string) error {
	admins, err := n.directory.AdminEmails(ctx)
	if err != nil {
		n.log.Error().Err(err).Str("subject", subject).Msg("failed to resolve admin recipients")
		return err
	}
	if len(admins) == 0 {
		n.log.Warn().Str("subject", subject).Msg("no admins found")
		return nil
	}
	n.NotifyMany(admins, subject, body)
	return nil
}
