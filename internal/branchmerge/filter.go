package branchmerge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/go-github/v59/github"
	"github.com/itchyny/gojq"
)

// RepositoryFilter is a jq expression that is evaluated on the JSON
// representation of a repository, as returned by the GitHub API.
// Repositories for which it evaluates to false are not merged.
type RepositoryFilter struct {
	query *gojq.Query
}

func NewRepositoryFilter(jqQuery string) (*RepositoryFilter, error) {
	query, err := gojq.Parse(jqQuery)
	if err != nil {
		return nil, fmt.Errorf("parsing repository filter failed: %w", err)
	}

	return &RepositoryFilter{query: query}, nil
}

func (f *RepositoryFilter) String() string {
	return f.query.String()
}

func goJQIterToSlice(iter gojq.Iter) ([]any, []error) {
	var result []any
	var errors []error

	for {
		res, ok := iter.Next()
		if !ok {
			return result, errors
		}

		if err, isErr := res.(error); isErr {
			errors = append(errors, err)
			continue
		}

		result = append(result, res)
	}
}

func errString(errs []error) string {
	var result strings.Builder

	for i, err := range errs {
		if i > 0 {
			result.WriteString("; ")
		}

		result.WriteString(fmt.Sprintf("error %d: %s", i, err))
	}

	return result.String()
}

// Match returns true if the query evaluates to true for repo.
func (f *RepositoryFilter) Match(ctx context.Context, repo *github.Repository) (bool, error) {
	var repoUn any

	data, err := json.Marshal(repo)
	if err != nil {
		return false, fmt.Errorf("marshaling repository failed: %w", err)
	}

	if err := json.Unmarshal(data, &repoUn); err != nil {
		return false, fmt.Errorf("unmarshaling json failed: %w", err)
	}

	result, errors := goJQIterToSlice(f.query.RunWithContext(ctx, repoUn))
	if len(errors) != 0 {
		return false, fmt.Errorf("json query returned errors, query: %q, errors: %s", f.query.String(), errString(errors))
	}

	if len(result) != 1 {
		return false, fmt.Errorf("json query returned %d results, expected 1, query: %q", len(result), f.query.String())
	}

	val, ok := result[0].(bool)
	if !ok {
		return false, fmt.Errorf(
			"json query returned non-bool result: %+v (%T), query: %q",
			result[0], result[0], f.query.String(),
		)
	}

	return val, nil
}
