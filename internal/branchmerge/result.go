package branchmerge

import (
	"fmt"
	"strings"
)

// Status is the outcome of evaluating a repository.
type Status string

const (
	StatusMerged   Status = "merged"
	StatusUpToDate Status = "up-to-date"
	StatusSkipped  Status = "skipped"
	StatusConflict Status = "conflict"
)

// Outcome is the result of processing one repository.
// SHA is only set for StatusMerged, Reason only for StatusSkipped.
type Outcome struct {
	Status        Status
	Org           string
	Repo          string
	DefaultBranch string
	SHA           string
	Reason        string
}

func (o *Outcome) String() string {
	switch o.Status {
	case StatusMerged:
		return fmt.Sprintf("%s/%s: %s (%s)", o.Org, o.Repo, o.Status, o.SHA)
	case StatusSkipped:
		return fmt.Sprintf("%s/%s: %s (%s)", o.Org, o.Repo, o.Status, o.Reason)
	default:
		return fmt.Sprintf("%s/%s: %s", o.Org, o.Repo, o.Status)
	}
}

type Scope string

const (
	ScopeOrg  Scope = "org"
	ScopeRepo Scope = "repo"
)

type Stage string

const (
	StageAuthenticate Stage = "authenticate"
	StageListRepos    Stage = "list-repos"
	StageForkGuard    Stage = "fork-guard"
	StageMerge        Stage = "merge"
	StageUnknown      Stage = "unknown"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// MergeError describes a failure during a run.
// Repo is empty for ScopeOrg errors.
type MergeError struct {
	Scope    Scope
	Org      string
	Repo     string
	URL      string
	Reason   string
	Stage    Stage
	Severity Severity
}

// benignErrorMessages are substrings of GitHub error messages that are
// expected in normal operation.
var benignErrorMessages = []string{
	"already exists for",
	"no history in common with",
}

func classifySeverity(errMsg string) Severity {
	for _, s := range benignErrorMessages {
		if strings.Contains(errMsg, s) {
			return SeverityWarning
		}
	}

	return SeverityError
}

// Result is the result of a run.
// Errors is the number of entries in ErrorsDetail with SeverityError.
type Result struct {
	Outcomes     []*Outcome
	Errors       int
	ErrorsDetail []*MergeError
}

func (r *Result) addOutcome(o *Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	metrics.outcome(o.Status)
}

func (r *Result) addError(e *MergeError) {
	r.ErrorsDetail = append(r.ErrorsDetail, e)
	if e.Severity == SeverityError {
		r.Errors++
	}
	metrics.error(e.Stage, e.Severity)
}

// Count returns the number of outcomes with status s.
func (r *Result) Count(s Status) int {
	var cnt int

	for _, o := range r.Outcomes {
		if o.Status == s {
			cnt++
		}
	}

	return cnt
}

func repoURL(org, repo string) string {
	return fmt.Sprintf("https://github.com/%s/%s", org, repo)
}

func orgURL(org string) string {
	return fmt.Sprintf("https://github.com/orgs/%s", org)
}
