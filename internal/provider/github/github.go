package github

import (
	"net/http"

	"github.com/google/go-github/v59/github"
	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/logfields"
	"github.com/simplesurance/mergekeeper/internal/provider"
)

const loggerName = "github_event_provider"

const providerName = "github"

// supportedIssueActions are the actions of issues webhook events that are
// forwarded.
var supportedIssueActions = map[string]struct{}{
	"assigned":   {},
	"unassigned": {},
	"closed":     {},
	"edited":     {},
	"reopened":   {},
}

// Provider listens for github-webhook http-requests at a http-server handler,
// validates and converts issue events to provider.Events and forwards them
// to an event channel.
type Provider struct {
	logger        *zap.Logger
	webhookSecret []byte
	c             chan<- *provider.Event
}

type Option func(*Provider)

func WithPayloadSecret(secret string) Option {
	return func(p *Provider) {
		p.webhookSecret = []byte(secret)
	}
}

func New(eventChan chan<- *provider.Event, opts ...Option) *Provider {
	p := Provider{
		c:      eventChan,
		logger: zap.L().Named(loggerName),
	}

	for _, o := range opts {
		o(&p)
	}

	return &p
}

func (p *Provider) HTTPHandler(resp http.ResponseWriter, req *http.Request) {
	deliveryID := github.DeliveryID(req)
	hookType := github.WebHookType(req)

	logger := p.logger.With(
		logfields.EventProvider(providerName),
		zap.String("github.delivery_id", deliveryID),
		zap.String("github.webhook_type", hookType),
	)

	payload, err := github.ValidatePayload(req, p.webhookSecret)
	if err != nil {
		logger.Info(
			"received invalid http request, payload validation failed",
			logfields.Event("github_http_request_validation_failed"),
			zap.Error(err),
		)
		http.Error(resp, err.Error(), http.StatusBadRequest)
		return
	}

	event, err := github.ParseWebHook(hookType, payload)
	if err != nil {
		logger.Info(
			"received invalid http request, parsing failed",
			logfields.Event("github_event_parsing_failed"),
			zap.Error(err),
		)
		http.Error(resp, err.Error(), http.StatusBadRequest)
		return
	}

	var ev *provider.Event

	switch event := event.(type) {
	case *github.IssuesEvent:
		action := event.GetAction()
		if _, supported := supportedIssueActions[action]; !supported {
			logger.Debug("ignoring issue event, action is unsupported",
				logfields.Event("github_unsupported_event_received"),
				zap.String("github.action", action),
			)
			return
		}

		ev = &provider.Event{
			Provider:    providerName,
			DeliveryID:  deliveryID,
			EventType:   hookType + "." + action,
			Owner:       event.GetRepo().GetOwner().GetLogin(),
			Repository:  event.GetRepo().GetName(),
			IssueNumber: event.GetIssue().GetNumber(),
			IssueURL:    event.GetIssue().GetHTMLURL(),
			Assignees:   len(event.GetIssue().Assignees),
		}

	case *github.PingEvent:
		logger.Info("received ping event",
			logfields.Event("github_ping_received"),
			zap.String("github.zen", event.GetZen()),
		)
		return

	default:
		logger.Debug("ignoring event, event type is unsupported",
			logfields.Event("github_unsupported_event_received"),
		)
		return
	}

	logger = logger.With(ev.LogFields()...)

	select {
	case p.c <- ev:
		logger.Debug("event forwarded to channel",
			logfields.Event("github_event_forwarded"),
		)

	default:
		logger.Warn(
			"event lost, forwarding event to channel failed",
			zap.String("error", "could not forward event to channel, send would have blocked"),
			logfields.Event("github_forwarding_event_failed"),
		)

		http.Error(resp, "queue full", http.StatusServiceUnavailable)
		return
	}
}
