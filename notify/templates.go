package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"
)

// Complaint statuses.
const (
	StatusPending    = "Pending"
	StatusInProgress = "In Progress"
	StatusResolved   = "Resolved"
)

// Complaint priorities.
const (
	PriorityLow    = "Low"
	PriorityMedium = "Medium"
	PriorityHigh   = "High"
)

const (
	defaultCategory = "General"
	defaultPriority = PriorityMedium
	dateLayout      = "Jan 2, 2006 3:04 PM MST"
)

// Complaint carries the fields notifications mention.
type Complaint struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	UserEmail   string    `json:"userEmail"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ValidStatus reports whether s is one of the known complaint statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved:
		return true
	}
	return false
}

func (c Complaint) withDefaults() Complaint {
	if c.Category == "" {
		c.Category = defaultCategory
	}
	if c.Priority == "" {
		c.Priority = defaultPriority
	}
	return c
}

var (
	createdTmpl = template.Must(template.New("created").Parse(`
<h2>New Complaint Submitted</h2>
<p><b>Title:</b> {{.Title}}</p>
<p><b>Category:</b> {{.Category}}</p>
<p><b>Priority:</b> {{.Priority}}</p>
<p><b>Description:</b> {{.Description}}</p>
<p><b>Submitted by:</b> {{.UserEmail}}</p>
<p><b>Date:</b> {{.Date}}</p>
`))

	userStatusTmpl = template.Must(template.New("user-status").Parse(`
<h2>Complaint Status Updated</h2>
<p><b>Title:</b> {{.Title}}</p>
<p><b>New Status:</b> {{.Status}}</p>
<p><b>Updated At:</b> {{.Date}}</p>
<p>Thank you for your patience. We will keep you updated on any further progress.</p>
`))

	adminStatusTmpl = template.Must(template.New("admin-status").Parse(`
<h2>Complaint Status Updated</h2>
<p><b>Title:</b> {{.Title}}</p>
<p><b>New Status:</b> {{.Status}}</p>
<p><b>Updated At:</b> {{.Date}}</p>
<p><b>User:</b> {{.UserEmail}}</p>
`))
)

type view struct {
	Complaint
	Date string
}

func render(t *template.Template, c Complaint, at time.Time) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, view{Complaint: c, Date: at.Format(dateLayout)}); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// ComplaintCreated queues the new-complaint notice to every admin.
func (n *Notifier) ComplaintCreated(ctx context.Context, c Complaint) error {
	c = c.withDefaults()
	body, err := render(createdTmpl, c, n.now())
	if err != nil {
		return err
	}
	return n.NotifyAdmins(ctx, "New Complaint: "+c.Title, body)
}

// StatusChanged queues the status notice to the submitting user first, then to
// every admin.
func (n *Notifier) StatusChanged(ctx context.Context, c Complaint) error {
	c = c.withDefaults()
	at := c.UpdatedAt
	if at.IsZero() {
		at = n.now()
	}
	subject := "Complaint Status Updated: " + c.Title

	if c.UserEmail != "" {
		body, err := render(userStatusTmpl, c, at)
		if err != nil {
			return err
		}
		n.NotifyOne(c.UserEmail, subject, body)
	}

	body, err := render(adminStatusTmpl, c, at)
	if err != nil {
		return err
	}
	return n.NotifyAdmins(ctx, subject, body)
}
