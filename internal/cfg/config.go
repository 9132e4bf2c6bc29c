// Package cfg loads the mergekeeper TOML configuration.
package cfg

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml"

	"github.com/simplesurance/mergekeeper/internal/ghutil"
)

const (
	DefInactivityDays        = 90
	DefMergeTimeout          = "3.5 days"
	DefWorkflowName          = "action.yml"
	DefCronWorkflow          = "cron.yml"
	DefCIPollAttempts        = 100
	DefCIPollInterval        = "60s"
	DefRateLimitMaxPerWindow = 500
	DefRateLimitWindow       = "60s"
	DefRedisNamespace        = "cron"
	DefLogFormat             = "logfmt"
	DefLogLevel              = "info"
	DefLogTimeKey            = "time_iso8601"
	DefWebhookEndpoint       = "/listener/github"
)

// MaxInactivityDays is the largest inactivity period that can be represented
// as time.Duration.
const MaxInactivityDays = math.MaxInt64 / int64(24*time.Hour)

var defAllowedReviewerRoles = []string{"COLLABORATOR", "MEMBER", "OWNER"}

type Config struct {
	LogFormat  string `toml:"log_format"`
	LogTimeKey string `toml:"log_time_key"`
	LogLevel   string `toml:"log_level"`

	HTTPListenAddr            string `toml:"http_server_listen_addr"`
	HTTPGithubWebhookEndpoint string `toml:"github_webhook_endpoint"`
	GithubWebHookSecret       string `toml:"github_webhook_secret"`

	GithubAPIToken          string `toml:"github_api_token"`
	GithubAppID             int64  `toml:"github_app_id"`
	GithubAppPrivateKey     string `toml:"github_app_private_key"`
	GithubAppPrivateKeyFile string `toml:"github_app_private_key_file"`

	// StepSummaryFile is the path of a markdown file the run summary is
	// appended to, usually $GITHUB_STEP_SUMMARY.
	StepSummaryFile string `toml:"step_summary_file"`

	Redis            Redis            `toml:"redis"`
	RateLimit        RateLimit        `toml:"rate_limit"`
	BranchMerge      BranchMerge      `toml:"branch_merge"`
	PullRequestMerge PullRequestMerge `toml:"pull_request_merge"`
}

type Redis struct {
	Addr      string `toml:"addr"`
	Password  string `toml:"password"`
	DB        int    `toml:"db"`
	Namespace string `toml:"namespace"`
}

type RateLimit struct {
	MaxPerWindow int    `toml:"max_per_window"`
	Window       string `toml:"window"`
}

type BranchMerge struct {
	Organizations  []string `toml:"organizations"`
	InactivityDays int      `toml:"inactivity_days"`
	// Ignore contains "org" or "org/repo" patterns of repositories that
	// are never merged.
	Ignore []string `toml:"ignore"`
	// RepositoryFilter is a jq expression evaluated on the JSON
	// representation of a repository, repositories it evaluates to false
	// for are skipped.
	RepositoryFilter string `toml:"repository_filter"`
}

type MergeTimeout struct {
	Collaborator string `toml:"collaborator"`
	Contributor  string `toml:"contributor"`
}

type ApprovalsRequired struct {
	Collaborator int `toml:"collaborator"`
	Contributor  int `toml:"contributor"`
}

type PullRequestMerge struct {
	ExcludedRepos        []string          `toml:"excluded_repos"`
	MergeTimeout         MergeTimeout      `toml:"merge_timeout"`
	ApprovalsRequired    ApprovalsRequired `toml:"approvals_required"`
	AllowedReviewerRoles []string          `toml:"allowed_reviewer_roles"`
	WorkflowName         string            `toml:"workflow_name"`
	CIPollAttempts       int               `toml:"ci_poll_attempts"`
	CIPollInterval       string            `toml:"ci_poll_interval"`
	// ControlRepository is the "owner/repo" the periodic sweep workflow
	// lives in. When empty the workflow is never toggled.
	ControlRepository string `toml:"control_repository"`
	CronWorkflow      string `toml:"cron_workflow"`
}

func Load(reader io.Reader) (*Config, error) {
	var result Config

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	result.SetDefaults()

	return &result, nil
}

// SetDefaults sets unset fields to their default values and uppercases
// AllowedReviewerRoles.
func (c *Config) SetDefaults() {
	setDefault(&c.LogFormat, DefLogFormat)
	setDefault(&c.LogLevel, DefLogLevel)
	setDefault(&c.LogTimeKey, DefLogTimeKey)
	setDefault(&c.HTTPGithubWebhookEndpoint, DefWebhookEndpoint)
	setDefault(&c.Redis.Namespace, DefRedisNamespace)
	setDefault(&c.RateLimit.Window, DefRateLimitWindow)
	setDefault(&c.PullRequestMerge.MergeTimeout.Collaborator, DefMergeTimeout)
	setDefault(&c.PullRequestMerge.WorkflowName, DefWorkflowName)
	setDefault(&c.PullRequestMerge.CronWorkflow, DefCronWorkflow)
	setDefault(&c.PullRequestMerge.CIPollInterval, DefCIPollInterval)

	if c.RateLimit.MaxPerWindow == 0 {
		c.RateLimit.MaxPerWindow = DefRateLimitMaxPerWindow
	}

	if c.BranchMerge.InactivityDays <= 0 {
		c.BranchMerge.InactivityDays = DefInactivityDays
	}

	if c.PullRequestMerge.ApprovalsRequired.Collaborator <= 0 {
		c.PullRequestMerge.ApprovalsRequired.Collaborator = 1
	}

	if c.PullRequestMerge.ApprovalsRequired.Contributor <= 0 {
		c.PullRequestMerge.ApprovalsRequired.Contributor = 2
	}

	if c.PullRequestMerge.CIPollAttempts <= 0 {
		c.PullRequestMerge.CIPollAttempts = DefCIPollAttempts
	}

	if len(c.PullRequestMerge.AllowedReviewerRoles) == 0 {
		c.PullRequestMerge.AllowedReviewerRoles = append([]string{}, defAllowedReviewerRoles...)
	}

	for i, role := range c.PullRequestMerge.AllowedReviewerRoles {
		c.PullRequestMerge.AllowedReviewerRoles[i] = strings.ToUpper(strings.TrimSpace(role))
	}
}

func setDefault(field *string, def string) {
	if *field == "" {
		*field = def
	}
}

// ApplyEnv overwrites configuration values with the values of the
// environment variables APP_ID, APP_PRIVATE_KEY, GITHUB_TOKEN, TARGET_ORGS,
// INACTIVITY_DAYS, WORKFLOW_NAME and GITHUB_STEP_SUMMARY, if they are set.
// GITHUB_REPOSITORY is used as control repository when none is configured.
func (c *Config) ApplyEnv(lookupEnv func(string) (string, bool)) error {
	if v, ok := lookupEnv("APP_ID"); ok && v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("APP_ID environment variable: %w", err)
		}

		c.GithubAppID = id
	}

	if v, ok := lookupEnv("APP_PRIVATE_KEY"); ok && v != "" {
		c.GithubAppPrivateKey = v
	}

	if v, ok := lookupEnv("GITHUB_TOKEN"); ok && v != "" {
		c.GithubAPIToken = v
	}

	if v, ok := lookupEnv("TARGET_ORGS"); ok && v != "" {
		c.BranchMerge.Organizations = splitList(v)
	}

	if v, ok := lookupEnv("INACTIVITY_DAYS"); ok && v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("INACTIVITY_DAYS environment variable: %w", err)
		}

		if days <= 0 || int64(days) > MaxInactivityDays {
			return fmt.Errorf("INACTIVITY_DAYS environment variable must be between 1 and %d, is %d", MaxInactivityDays, days)
		}

		c.BranchMerge.InactivityDays = days
	}

	if v, ok := lookupEnv("WORKFLOW_NAME"); ok && v != "" {
		c.PullRequestMerge.WorkflowName = v
	}

	if v, ok := lookupEnv("GITHUB_STEP_SUMMARY"); ok && v != "" && c.StepSummaryFile == "" {
		c.StepSummaryFile = v
	}

	if v, ok := lookupEnv("GITHUB_REPOSITORY"); ok && v != "" && c.PullRequestMerge.ControlRepository == "" {
		c.PullRequestMerge.ControlRepository = v
	}

	return nil
}

func splitList(in string) []string {
	var result []string

	for _, elem := range strings.Split(in, ",") {
		elem = strings.TrimSpace(elem)
		if elem != "" {
			result = append(result, elem)
		}
	}

	return result
}

// Validate returns an error if the configuration is unusable.
func (c *Config) Validate() error {
	if c.GithubAPIToken == "" && c.GithubAppID == 0 {
		return errors.New("either github_api_token or github_app_id must be set")
	}

	if c.GithubAppID != 0 && c.GithubAppPrivateKey == "" && c.GithubAppPrivateKeyFile == "" {
		return errors.New("github_app_id is set but neither github_app_private_key nor github_app_private_key_file")
	}

	if int64(c.BranchMerge.InactivityDays) > MaxInactivityDays {
		return fmt.Errorf("branch_merge.inactivity_days must not be greater than %d, is %d", MaxInactivityDays, c.BranchMerge.InactivityDays)
	}

	if _, err := c.RateLimitWindow(); err != nil {
		return err
	}

	if err := validateDuration("pull_request_merge.merge_timeout.collaborator", c.PullRequestMerge.MergeTimeout.Collaborator); err != nil {
		return err
	}

	if err := validateDuration("pull_request_merge.merge_timeout.contributor", c.PullRequestMerge.MergeTimeout.Contributor); err != nil {
		return err
	}

	if _, err := c.CIPollInterval(); err != nil {
		return err
	}

	for _, repo := range c.PullRequestMerge.ExcludedRepos {
		if _, _, err := ghutil.SplitFullName(repo); err != nil {
			return fmt.Errorf("excluded_repos: %w", err)
		}
	}

	if c.PullRequestMerge.ControlRepository != "" {
		if _, _, err := ghutil.SplitFullName(c.PullRequestMerge.ControlRepository); err != nil {
			return fmt.Errorf("control_repository: %w", err)
		}
	}

	return nil
}

func validateDuration(name, val string) error {
	if val == "" {
		return nil
	}

	d, err := ghutil.ParseDuration(val)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	if d < 0 {
		return fmt.Errorf("%s: must not be negative", name)
	}

	return nil
}

// PrivateKey returns the PEM encoded GitHub App private key, read from
// GithubAppPrivateKey or GithubAppPrivateKeyFile.
func (c *Config) PrivateKey() ([]byte, error) {
	raw := c.GithubAppPrivateKey

	if raw == "" {
		if c.GithubAppPrivateKeyFile == "" {
			return nil, errors.New("no private key configured")
		}

		data, err := os.ReadFile(c.GithubAppPrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading private key file failed: %w", err)
		}

		raw = string(data)
	}

	return ghutil.NormalizePrivateKey(raw)
}

func (c *Config) RateLimitWindow() (time.Duration, error) {
	d, err := ghutil.ParseDuration(c.RateLimit.Window)
	if err != nil {
		return 0, fmt.Errorf("rate_limit.window: %w", err)
	}

	return d, nil
}

func (c *Config) CIPollInterval() (time.Duration, error) {
	d, err := ghutil.ParseDuration(c.PullRequestMerge.CIPollInterval)
	if err != nil {
		return 0, fmt.Errorf("pull_request_merge.ci_poll_interval: %w", err)
	}

	return d, nil
}
