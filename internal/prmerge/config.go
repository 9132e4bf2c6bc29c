package prmerge

import (
	"strings"
	"time"
)

// DefCIPollAttempts and DefCIPollInterval bound how long the CI status of a
// pull request is polled while check runs are in progress.
const (
	DefCIPollAttempts = 100
	DefCIPollInterval = time.Minute
)

// DefCronWorkflow is the workflow file of the periodic sweep.
const DefCronWorkflow = "cron.yml"

// collaboratorAssociations are the author associations for that the
// collaborator requirements apply.
var collaboratorAssociations = map[string]struct{}{
	"COLLABORATOR": {},
	"MEMBER":       {},
	"OWNER":        {},
}

// Requirements must be fulfilled before a pull request is merged.
type Requirements struct {
	// MergeTimeout is a duration string, as understood by
	// ghutil.ParseDuration.
	MergeTimeout      string
	RequiredApprovals int
}

type Config struct {
	// ExcludedRepositories are "<owner>/<repo>" names.
	ExcludedRepositories []string

	Collaborator Requirements
	// Contributor is nil if no merge timeout applies to pull requests of
	// authors that are not collaborators.
	Contributor *Requirements

	// AllowedReviewerRoles are the author associations of reviewers whose
	// approvals are counted.
	AllowedReviewerRoles []string

	// WorkflowName is the name of the check run of mergekeeper itself, it
	// is ignored when evaluating the CI status.
	WorkflowName   string
	CIPollAttempts int
	CIPollInterval time.Duration

	// ControlRepository is the "<owner>/<repo>" that contains the
	// CronWorkflow. If it is empty, the workflow state is not changed.
	ControlRepository string
	CronWorkflow      string
}

func (c *Config) setDefaults() {
	if c.CIPollAttempts <= 0 {
		c.CIPollAttempts = DefCIPollAttempts
	}

	if c.CIPollInterval <= 0 {
		c.CIPollInterval = DefCIPollInterval
	}

	if c.CronWorkflow == "" {
		c.CronWorkflow = DefCronWorkflow
	}
}

func toUpperSet(in []string) map[string]struct{} {
	result := make(map[string]struct{}, len(in))

	for _, s := range in {
		result[strings.ToUpper(strings.TrimSpace(s))] = struct{}{}
	}

	return result
}

func toLowerSet(in []string) map[string]struct{} {
	result := make(map[string]struct{}, len(in))

	for _, s := range in {
		result[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}

	return result
}

// requirementsFor returns the requirements for a pull request whose author
// has the given association with the repository.
// nil is returned if no merge policy applies.
func (c *Config) requirementsFor(authorAssociation string) *Requirements {
	if _, exist := collaboratorAssociations[strings.ToUpper(authorAssociation)]; exist {
		r := c.Collaborator
		return &r
	}

	if c.Contributor == nil {
		return nil
	}

	r := *c.Contributor
	return &r
}
