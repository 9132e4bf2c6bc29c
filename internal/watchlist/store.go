// Package watchlist persists the issues whose linked pull requests are
// periodically checked for auto-merge.
//
// Every repository is stored as a redis SET of issue numbers under the key
// "<namespace>:<owner>:<repo>". Redis deletes a SET when its last member is
// removed, repositories without watched issues therefore have no key.
package watchlist

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/ghutil"
	"github.com/simplesurance/mergekeeper/internal/logfields"
)

const loggerName = "watchlist"

// DefNamespace is the key prefix used when none is configured.
const DefNamespace = "cron"

const scanCount = 100

type redisCommander interface {
	SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...any) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	SCard(ctx context.Context, key string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

// Repository is a repository with watched issues.
type Repository struct {
	Owner        string
	Repo         string
	IssueNumbers []int
}

// Store is the watch-list. Its operations are safe to be called
// concurrently, also from multiple processes.
type Store struct {
	client    redisCommander
	namespace string
	logger    *zap.Logger
}

// New returns a Store that uses client.
// If namespace is empty, DefNamespace is used.
func New(client redis.UniversalClient, namespace string) *Store {
	return newStore(client, namespace)
}

func newStore(client redisCommander, namespace string) *Store {
	if namespace == "" {
		namespace = DefNamespace
	}

	return &Store{
		client:    client,
		namespace: namespace,
		logger:    zap.L().Named(loggerName),
	}
}

func (s *Store) key(owner, repo string) string {
	return s.namespace + ":" + owner + ":" + repo
}

func (s *Store) parseKey(key string) (owner, repo string, ok bool) {
	rest, found := strings.CutPrefix(key, s.namespace+":")
	if !found {
		return "", "", false
	}

	owner, repo, found = strings.Cut(rest, ":")
	if !found || owner == "" || repo == "" || strings.Contains(repo, ":") {
		return "", "", false
	}

	return owner, repo, true
}

// AddIssue adds the issue referenced by issueURL.
// Adding an issue that is already watched is a no-op.
func (s *Store) AddIssue(ctx context.Context, issueURL string) error {
	ref, err := ghutil.ParseIssueURL(issueURL)
	if err != nil {
		return err
	}

	added, err := s.client.SAdd(ctx, s.key(ref.Owner, ref.Repo), ref.Number).Result()
	if err != nil {
		return fmt.Errorf("adding issue %s to watch list failed: %w", ref, err)
	}

	if added > 0 {
		s.logger.Debug("issue added to watch list",
			logfields.Event("watchlist_issue_added"),
			logfields.RepositoryOwner(ref.Owner),
			logfields.Repository(ref.Repo),
			logfields.Issue(ref.Number),
		)
	}

	return nil
}

// RemoveIssue removes the issue referenced by issueURL.
func (s *Store) RemoveIssue(ctx context.Context, issueURL string) error {
	ref, err := ghutil.ParseIssueURL(issueURL)
	if err != nil {
		return err
	}

	return s.RemoveIssueByNumber(ctx, ref.Owner, ref.Repo, ref.Number)
}

// RemoveIssueByNumber removes an issue.
// Removing an issue that is not watched is a no-op.
func (s *Store) RemoveIssueByNumber(ctx context.Context, owner, repo string, issueNumber int) error {
	removed, err := s.client.SRem(ctx, s.key(owner, repo), issueNumber).Result()
	if err != nil {
		return fmt.Errorf("removing issue %s/%s#%d from watch list failed: %w", owner, repo, issueNumber, err)
	}

	if removed > 0 {
		s.logger.Debug("issue removed from watch list",
			logfields.Event("watchlist_issue_removed"),
			logfields.RepositoryOwner(owner),
			logfields.Repository(repo),
			logfields.Issue(issueNumber),
		)
	}

	return nil
}

// UpdateIssue replaces the issue currentURL with newURL, e.g. when an issue
// was transferred to another repository.
func (s *Store) UpdateIssue(ctx context.Context, currentURL, newURL string) error {
	if _, err := ghutil.ParseIssueURL(newURL); err != nil {
		return err
	}

	if err := s.RemoveIssue(ctx, currentURL); err != nil {
		return err
	}

	return s.AddIssue(ctx, newURL)
}

// IssueNumbers returns the watched issue numbers of a repository in ascending
// order.
func (s *Store) IssueNumbers(ctx context.Context, owner, repo string) ([]int, error) {
	return s.issueNumbers(ctx, s.key(owner, repo))
}

func (s *Store) issueNumbers(ctx context.Context, key string) ([]int, error) {
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("reading watch list entry %q failed: %w", key, err)
	}

	result := make([]int, 0, len(members))
	for _, m := range members {
		nr, err := strconv.Atoi(m)
		if err != nil {
			return nil, fmt.Errorf("watch list entry %q contains invalid issue number %q: %w", key, m, err)
		}

		result = append(result, nr)
	}

	sort.Ints(result)

	return result, nil
}

func (s *Store) keys(ctx context.Context) ([]string, error) {
	var result []string
	var cursor uint64

	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.namespace+":*", scanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("listing watch list keys failed: %w", err)
		}

		result = append(result, keys...)

		if next == 0 {
			break
		}

		cursor = next
	}

	sort.Strings(result)

	return result, nil
}

// AllRepositories returns all repositories with watched issues, ordered by
// owner and repository name.
func (s *Store) AllRepositories(ctx context.Context) ([]*Repository, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*Repository, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))

	for _, key := range keys {
		// SCAN can return a key multiple times
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}

		owner, repo, ok := s.parseKey(key)
		if !ok {
			s.logger.Warn("ignoring watch list key with unexpected format",
				logfields.Event("watchlist_invalid_key"),
				zap.String("key", key),
			)
			continue
		}

		nrs, err := s.issueNumbers(ctx, key)
		if err != nil {
			return nil, err
		}

		if len(nrs) == 0 {
			continue
		}

		result = append(result, &Repository{
			Owner:        owner,
			Repo:         repo,
			IssueNumbers: nrs,
		})
	}

	return result, nil
}

// HasData returns true if at least one issue is watched.
func (s *Store) HasData(ctx context.Context) (bool, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return false, err
	}

	for _, key := range keys {
		cnt, err := s.client.SCard(ctx, key).Result()
		if err != nil {
			return false, fmt.Errorf("reading watch list entry %q failed: %w", key, err)
		}

		if cnt > 0 {
			return true, nil
		}
	}

	return false, nil
}
