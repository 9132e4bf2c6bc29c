package branchmerge

import (
	"context"
	"testing"

	"github.com/google/go-github/v59/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositoryFilterMatch(t *testing.T) {
	f, err := NewRepositoryFilter(`.private == true and (.topics | any(. == "legacy") | not)`)
	require.NoError(t, err)

	match, err := f.Match(context.Background(), &github.Repository{
		Private: github.Bool(true),
		Topics:  []string{"go"},
	})
	require.NoError(t, err)
	assert.True(t, match)

	match, err = f.Match(context.Background(), &github.Repository{
		Private: github.Bool(true),
		Topics:  []string{"legacy"},
	})
	require.NoError(t, err)
	assert.False(t, match)
}

func TestRepositoryFilterNonBoolResult(t *testing.T) {
	f, err := NewRepositoryFilter(`.name`)
	require.NoError(t, err)

	_, err = f.Match(context.Background(), &github.Repository{Name: github.String("widget")})
	assert.Error(t, err)
}

func TestRepositoryFilterMultipleResults(t *testing.T) {
	f, err := NewRepositoryFilter(`true, false`)
	require.NoError(t, err)

	_, err = f.Match(context.Background(), &github.Repository{})
	assert.Error(t, err)
}

func TestRepositoryFilterInvalidQuery(t *testing.T) {
	_, err := NewRepositoryFilter(`.name ==`)
	assert.Error(t, err)
}
