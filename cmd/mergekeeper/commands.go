package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/thecodeteam/goodbye"
	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/branchmerge"
	"github.com/simplesurance/mergekeeper/internal/cfg"
	"github.com/simplesurance/mergekeeper/internal/evloop"
	"github.com/simplesurance/mergekeeper/internal/githubclt"
	"github.com/simplesurance/mergekeeper/internal/logfields"
	"github.com/simplesurance/mergekeeper/internal/prmerge"
	"github.com/simplesurance/mergekeeper/internal/provider/github"
	"github.com/simplesurance/mergekeeper/internal/ratelimit"
	"github.com/simplesurance/mergekeeper/internal/report"
	"github.com/simplesurance/mergekeeper/internal/retry"
	"github.com/simplesurance/mergekeeper/internal/watchlist"
)

const watchListEndpoint = "/watchlist"

func mustNewRateLimiter(config *cfg.Config) *ratelimit.Limiter {
	window, err := config.RateLimitWindow()
	exitOnErr("invalid rate limit window", err)

	return ratelimit.New(config.RateLimit.MaxPerWindow, window)
}

func mustNewGithubProvider(config *cfg.Config) githubclt.Provider {
	opts := []githubclt.Option{githubclt.WithRateLimiter(mustNewRateLimiter(config))}

	if config.GithubAppID == 0 {
		logger.Info("authenticating with api token", logfields.Event("github_auth_token"))
		return &githubclt.TokenProvider{Client: githubclt.New(config.GithubAPIToken, opts...)}
	}

	key, err := config.PrivateKey()
	exitOnErr("could not read github app private key", err)

	p, err := githubclt.NewAppProvider(config.GithubAppID, key, opts...)
	exitOnErr("could not create github app client", err)

	logger.Info(
		"authenticating as github app",
		logfields.Event("github_auth_app"),
		zap.Int64("github.app_id", config.GithubAppID),
	)

	return p
}

func branchMergeClients(p githubclt.Provider) branchmerge.ClientProvider {
	return func(ctx context.Context, org string) (branchmerge.GithubClient, error) {
		clt, err := p.ForOrganization(ctx, org)
		if err != nil {
			return nil, err
		}

		return clt, nil
	}
}

func prMergeClients(p githubclt.Provider) prmerge.ClientProvider {
	return func(ctx context.Context, owner, repo string) (prmerge.GithubClient, error) {
		clt, err := p.ForRepository(ctx, owner, repo)
		if err != nil {
			return nil, err
		}

		return clt, nil
	}
}

func newReportSink(config *cfg.Config) report.MultiSink {
	sinks := report.MultiSink{report.NewLogSink(), report.NewAnnotationSink(os.Stdout)}

	if config.StepSummaryFile != "" {
		sinks = append(sinks, report.NewMarkdownSink(config.StepSummaryFile))
	}

	return sinks
}

func mustNewWatchList(config *cfg.Config) *watchlist.Store {
	if config.Redis.Addr == "" {
		exitOnErr("could not create watch list", errors.New("redis.addr is not set"))
	}

	clt := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})

	goodbye.Register(func(context.Context, os.Signal) {
		if err := clt.Close(); err != nil {
			logger.Warn(
				"closing redis client failed",
				logfields.Event("redis_client_close_failed"),
				zap.Error(err),
			)
		}
	})

	return watchlist.New(clt, config.Redis.Namespace)
}

func mustNewPRMergeConfig(config *cfg.Config) *prmerge.Config {
	pcfg := config.PullRequestMerge

	interval, err := config.CIPollInterval()
	exitOnErr("invalid ci poll interval", err)

	result := prmerge.Config{
		ExcludedRepositories: pcfg.ExcludedRepos,
		Collaborator: prmerge.Requirements{
			MergeTimeout:      pcfg.MergeTimeout.Collaborator,
			RequiredApprovals: pcfg.ApprovalsRequired.Collaborator,
		},
		AllowedReviewerRoles: pcfg.AllowedReviewerRoles,
		WorkflowName:         pcfg.WorkflowName,
		CIPollAttempts:       pcfg.CIPollAttempts,
		CIPollInterval:       interval,
		ControlRepository:    pcfg.ControlRepository,
		CronWorkflow:         pcfg.CronWorkflow,
	}

	if pcfg.MergeTimeout.Contributor != "" {
		result.Contributor = &prmerge.Requirements{
			MergeTimeout:      pcfg.MergeTimeout.Contributor,
			RequiredApprovals: pcfg.ApprovalsRequired.Contributor,
		}
	}

	return &result
}

func mustNewPRMergeEngine(config *cfg.Config, store *watchlist.Store) *prmerge.Engine {
	return prmerge.New(
		prMergeClients(mustNewGithubProvider(config)),
		store,
		retry.New(0),
		mustNewPRMergeConfig(config),
		prmerge.WithResultSink(newReportSink(config)),
		prmerge.WithRateLimiter(mustNewRateLimiter(config)),
	)
}

func runBranchMerge(ctx context.Context, config *cfg.Config) int {
	if len(config.BranchMerge.Organizations) == 0 {
		fmt.Fprintln(os.Stderr, "ERROR: no organizations configured, set branch_merge.organizations or TARGET_ORGS")
		return 1
	}

	opts := []branchmerge.Option{branchmerge.WithIgnorePatterns(config.BranchMerge.Ignore)}

	if config.BranchMerge.RepositoryFilter != "" {
		filter, err := branchmerge.NewRepositoryFilter(config.BranchMerge.RepositoryFilter)
		exitOnErr("could not parse repository_filter", err)

		opts = append(opts, branchmerge.WithRepositoryFilter(filter))
	}

	engine := branchmerge.New(
		branchMergeClients(mustNewGithubProvider(config)),
		retry.New(0),
		config.BranchMerge.InactivityDays,
		opts...,
	)

	result := engine.Run(ctx, config.BranchMerge.Organizations)

	if err := newReportSink(config).ReportBranchMerge(ctx, result); err != nil {
		logger.Error(
			"reporting branch merge result failed",
			logfields.Event("branch_merge_report_failed"),
			zap.Error(err),
		)
		return 1
	}

	if result.Errors > 0 {
		logger.Error(
			"branch merge run finished with errors",
			logfields.Event("branch_merge_failed"),
			zap.Int("errors", result.Errors),
		)
		return 1
	}

	return 0
}

func runPRSweep(ctx context.Context, config *cfg.Config) int {
	engine := mustNewPRMergeEngine(config, mustNewWatchList(config))

	if err := engine.Sweep(ctx); err != nil {
		logger.Error(
			"pull request sweep finished with errors",
			logfields.Event("pr_sweep_failed"),
			zap.Error(err),
		)
		return 1
	}

	return 0
}

func startHTTPServer(listenAddr string, handler http.Handler, evLoop *evloop.EvLoop) {
	httpServer := http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	goodbye.Register(func(context.Context, os.Signal) {
		const shutdownTimeout = 30 * time.Second
		ctx, cancelFn := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelFn()

		logger.Debug(
			"terminating http server",
			logfields.Event("http_server_terminating"),
			zap.Duration("shutdown_timeout", shutdownTimeout),
		)

		err := httpServer.Shutdown(ctx)
		if err != nil {
			logger.Warn(
				"shutting down http server failed",
				logfields.Event("http_server_termination_failed"),
				zap.Error(err),
			)
		}

		logger.Debug("stopping event loop", logfields.Event("event_loop_stopping"))
		evLoop.Stop()
		logger.Debug("event loop stopped", logfields.Event("event_loop_stopped"))
	})

	go func() {
		defer panicHandler()

		logger.Info(
			"http server started",
			logfields.Event("http_server_started"),
			zap.String("listenAddr", listenAddr),
		)

		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("http server terminated", logfields.Event("http_server_terminated"))
			return
		}

		logger.Fatal(
			"http server terminated unexpectedly",
			logfields.Event("http_server_terminated_unexpectedly"),
			zap.Error(err),
		)
	}()
}

func runServe(config *cfg.Config) {
	if config.HTTPListenAddr == "" {
		fmt.Fprintln(os.Stderr, "ERROR: http_server_listen_addr must be defined in the config file")
		goodbye.Exit(context.Background(), 1)
	}

	store := mustNewWatchList(config)
	engine := mustNewPRMergeEngine(config, store)

	evLoop := evloop.New(engine, evloop.WithHandlerRoutineDeferFunc(panicHandler))
	go evLoop.Start()

	gh := github.New(evLoop.C(), github.WithPayloadSecret(config.GithubWebHookSecret))

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	router.Post(config.HTTPGithubWebhookEndpoint, gh.HTTPHandler)
	logger.Info(
		"registered github webhook event http endpoint",
		logfields.Event("github_http_handler_registered"),
		zap.String("endpoint", config.HTTPGithubWebhookEndpoint),
	)

	router.Handle("/metrics", promhttp.Handler())

	watchlist.NewHTTPService(store).RegisterHandlers(router, watchListEndpoint)
	logger.Info(
		"registered watch list http endpoint",
		logfields.Event("watchlist_http_handler_registered"),
		zap.String("endpoint", watchListEndpoint),
	)

	startHTTPServer(config.HTTPListenAddr, router, evLoop)

	// the process is terminated by the goodbye signal handler
	select {}
}
