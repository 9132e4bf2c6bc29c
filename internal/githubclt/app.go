package githubclt

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/logfields"
)

// Provider returns clients that are authorized to access an organization or
// repository.
type Provider interface {
	ForOrganization(ctx context.Context, org string) (*Client, error)
	ForRepository(ctx context.Context, owner, repo string) (*Client, error)
}

// TokenProvider returns the same token authenticated client for every
// organization and repository.
type TokenProvider struct {
	Client *Client
}

func (p *TokenProvider) ForOrganization(context.Context, string) (*Client, error) {
	return p.Client, nil
}

func (p *TokenProvider) ForRepository(context.Context, string, string) (*Client, error) {
	return p.Client, nil
}

// AppProvider authenticates as GitHub App and returns clients for the
// installations of the app.
type AppProvider struct {
	appID      int64
	privateKey []byte
	transport  http.RoundTripper
	appClt     *github.Client
	clientOpts []Option
	logger     *zap.Logger
}

// NewAppProvider returns a provider authenticating as the GitHub App appID.
// privateKey is the PEM encoded private key of the app.
// opts are applied to all returned installation clients.
func NewAppProvider(appID int64, privateKey []byte, opts ...Option) (*AppProvider, error) {
	return newAppProvider(http.DefaultTransport, appID, privateKey, opts...)
}

func newAppProvider(transport http.RoundTripper, appID int64, privateKey []byte, opts ...Option) (*AppProvider, error) {
	atr, err := ghinstallation.NewAppsTransport(transport, appID, privateKey)
	if err != nil {
		return nil, fmt.Errorf("creating github app transport failed: %w", err)
	}

	return &AppProvider{
		appID:      appID,
		privateKey: privateKey,
		transport:  transport,
		appClt:     github.NewClient(&http.Client{Transport: atr, Timeout: DefaultHTTPClientTimeout}),
		clientOpts: opts,
		logger:     zap.L().Named(loggerName),
	}, nil
}

// ForOrganization returns a client for the app installation of org.
func (p *AppProvider) ForOrganization(ctx context.Context, org string) (*Client, error) {
	inst, _, err := p.appClt.Apps.FindOrganizationInstallation(ctx, org)
	if err != nil {
		return nil, fmt.Errorf("looking up app installation for organization %q failed: %w", org, err)
	}

	p.logger.Debug("found app installation",
		logfields.Event("github_app_installation_found"),
		logfields.Organization(org),
		zap.Int64("github.installation_id", inst.GetID()),
	)

	return p.forInstallation(inst.GetID())
}

// ForRepository returns a client for the app installation of owner/repo.
func (p *AppProvider) ForRepository(ctx context.Context, owner, repo string) (*Client, error) {
	inst, _, err := p.appClt.Apps.FindRepositoryInstallation(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("looking up app installation for repository %s/%s failed: %w", owner, repo, err)
	}

	return p.forInstallation(inst.GetID())
}

func (p *AppProvider) forInstallation(installationID int64) (*Client, error) {
	itr, err := ghinstallation.New(p.transport, p.appID, installationID, p.privateKey)
	if err != nil {
		return nil, fmt.Errorf("creating installation transport failed: %w", err)
	}

	return NewFromHTTPClient(
		&http.Client{Transport: itr, Timeout: DefaultHTTPClientTimeout},
		p.clientOpts...,
	), nil
}
