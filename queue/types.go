package queue

import "context"

// Job is one outbound message waiting to be sent.
type Job struct {
	To      string
	Subject string
	Body    string
}

// Transport performs the actual network send for a job.
type Transport interface {
	Send(ctx context.Context, to, subject, body string) error
}

// TransportFunc adapts a plain function to Transport.
type TransportFunc func(ctx context.Context, to, subject, body string) error

// Send calls f.
func (f TransportFunc) Send(ctx context.Context, to, subject, body string) error {
	return f(ctx, to, subject, body)
}

// Status is a point-in-time view of the dispatcher.
type Status struct {
	Pending int  `json:"pending"`
	Active  bool `json:"active"`
}
