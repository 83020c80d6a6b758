// Package audit records who changed the schedule, when, and what they touched.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Category groups actions for filtering.
type Category string

const (
	CategorySchedule Category = "schedule"
	CategoryAccount  Category = "account"
	CategorySecurity Category = "security"
	CategoryNotify   Category = "notify"
)

// Action is what happened.
type Action string

const (
	ActionCreate         Action = "create"
	ActionUpdate         Action = "update"
	ActionDelete         Action = "delete"
	ActionImport         Action = "import"
	ActionSave           Action = "save"
	ActionPublish        Action = "publish"
	ActionClear          Action = "clear"
	ActionDedup          Action = "dedup"
	ActionRollover       Action = "rollover"
	ActionLogin          Action = "login"
	ActionLogout         Action = "logout"
	ActionPasswordChange Action = "password_change"
	ActionRetry          Action = "retry"
	ActionAbandon        Action = "abandon"
)

// Resource is the kind of thing an action touched.
type Resource string

const (
	ResourceDraft      Resource = "draft"
	ResourceWeek       Resource = "week"
	ResourceInstructor Resource = "instructor"
	ResourceEvent      Resource = "event"
	ResourceAccount    Resource = "account"
	ResourceNotice     Resource = "notice" // queued publish notification
)

// Category is where actions on r are filed.
func (r Resource) Category() Category {
	switch r {
	case ResourceAccount:
		return CategoryAccount
	case ResourceNotice:
		return CategoryNotify
	default:
		return CategorySchedule
	}
}

// Severity grades an event for the admin view.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is one audit log entry.
type Event struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Category     Category  `json:"category"`
	Action       Action    `json:"action"`
	Severity     Severity  `json:"severity"`
	ActorID      string    `json:"actor_id"`
	ActorEmail   string    `json:"actor_email"`
	ActorRole    string    `json:"actor_role"`
	ResourceID   string    `json:"resource_id"`
	ResourceType Resource  `json:"resource_type"`
	Description  string    `json:"description"`
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
	Metadata     string    `json:"metadata"`
}

// NewEvent creates an info-level event stamped with the current time.
// PRE: action is non-empty; actorID may be empty for scheduled jobs
func NewEvent(actorID, actorEmail, actorRole string, category Category, action Action) Event {
	return Event{
		ID:         uuid.New().String(),
		Timestamp:  time.Now().UTC(),
		Category:   category,
		Action:     action,
		Severity:   SeverityInfo,
		ActorID:    actorID,
		ActorEmail: actorEmail,
		ActorRole:  actorRole,
	}
}

// System creates an event attributed to a scheduled job rather than a person.
func System(category Category, action Action) Event {
	return NewEvent("", "system", "system", category, action)
}

// At overrides the timestamp, for callers that carry their own clock.
func (e Event) At(t time.Time) Event {
	e.Timestamp = t.UTC()
	return e
}

func (e Event) WithSeverity(s Severity) Event {
	e.Severity = s
	return e
}

// WithResource names what the action touched.
func (e Event) WithResource(kind Resource, id string) Event {
	e.ResourceType = kind
	e.ResourceID = id
	return e
}

func (e Event) WithDescription(desc string) Event {
	e.Description = desc
	return e
}

// WithRequest sets IP address and user agent from the HTTP request.
func (e Event) WithRequest(ipAddress, userAgent string) Event {
	e.IPAddress = ipAddress
	e.UserAgent = userAgent
	return e
}

// WithMetadata attaches a JSON document.
// PRE: metadata is valid JSON or empty
func (e Event) WithMetadata(metadata string) Event {
	e.Metadata = metadata
	return e
}
