package provider

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/logfields"
)

const (
	EventIssueAssigned   = "issues.assigned"
	EventIssueUnassigned = "issues.unassigned"
	EventIssueClosed     = "issues.closed"
	EventIssueEdited     = "issues.edited"
)

// Event is an issue event received from a provider.
type Event struct {
	Provider string

	// DeliveryID is empty if the event was not received via a webhook.
	DeliveryID string
	// EventType is "<webhook type>.<action>", e.g. "issues.assigned".
	EventType string

	Owner       string
	Repository  string
	IssueNumber int
	IssueURL    string
	// Assignees is the number of assignees the issue has after the event.
	Assignees int
}

func (e *Event) String() string {
	return fmt.Sprintf("%s %s/%s#%d (deliveryID: %s)", e.EventType, e.Owner, e.Repository, e.IssueNumber, e.DeliveryID)
}

func (e *Event) LogFields() []zap.Field {
	fields := make([]zap.Field, 0, 6) // cap == max. size of fields we append

	if e.Provider != "" {
		fields = append(fields, logfields.EventProvider(e.Provider))
	}

	if e.DeliveryID != "" {
		fields = append(fields, zap.String("github.delivery_id", e.DeliveryID))
	}

	if e.EventType != "" {
		fields = append(fields, zap.String("github.event_type", e.EventType))
	}

	if e.Owner != "" {
		fields = append(fields, logfields.RepositoryOwner(e.Owner))
	}

	if e.Repository != "" {
		fields = append(fields, logfields.Repository(e.Repository))
	}

	if e.IssueNumber != 0 {
		fields = append(fields, logfields.Issue(e.IssueNumber))
	}

	return fields
}
