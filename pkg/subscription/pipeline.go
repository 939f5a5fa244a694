package subscription

import (
	"context"
	"fmt"

	"github.com/rzbill/subrelay/pkg/log"
	"github.com/rzbill/subrelay/pkg/metrics"
	"github.com/rzbill/subrelay/pkg/types"
)

// Result is a successfully processed subscription.
type Result struct {
	// Document is the JSON document returned to the subscriber.
	Document   []byte
	RequestURL string
	Config     *types.Configuration
	// Rewritten is the number of outbounds that received a detour.
	Rewritten int
}

// PipelineError is a fetch or rewrite failure for a resolved configuration.
// RequestURL and Config describe the attempt.
type PipelineError struct {
	Err        error
	RequestURL string
	Config     *types.Configuration
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("subscription %q: %v", e.Config.Name, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Pipeline runs resolution, backend fetch and rewrite for one request.
type Pipeline struct {
	resolver *Resolver
	fetcher  *Fetcher
	logger   log.Logger
	metrics  *metrics.Metrics
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(logger log.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithMetrics records request outcomes in m.
func WithMetrics(m *metrics.Metrics) PipelineOption {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

func NewPipeline(resolver *Resolver, fetcher *Fetcher, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		resolver: resolver,
		fetcher:  fetcher,
		logger:   log.GetDefaultLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.WithComponent("subscription")
	return p
}

// Handle produces the subscription document for name.
//
// A name with no configuration yields a *types.NotFoundError. Backend and
// rewrite failures are returned as *PipelineError wrapping a
// *types.BackendError or *types.ProcessingError.
func (p *Pipeline) Handle(ctx context.Context, name string) (*Result, error) {
	logger := p.logger.WithContext(ctx).With(log.Str("name", name))

	cfg, err := p.resolver.Resolve(ctx, name)
	if err != nil {
		if types.IsNotFound(err) {
			p.metrics.RecordSubscription(metrics.OutcomeNotFound)
			logger.Debug("No configuration for subscription")
		} else {
			p.metrics.RecordSubscription(metrics.OutcomeError)
			logger.Error("Failed to resolve subscription", log.Err(err))
		}
		return nil, err
	}

	requestURL := BuildURL(cfg)
	fail := func(outcome string, err error) (*Result, error) {
		p.metrics.RecordSubscription(outcome)
		logger.Warn("Subscription processing failed",
			log.Str("config_id", cfg.ID), log.Str("request_url", requestURL), log.Err(err))
		return nil, &PipelineError{Err: err, RequestURL: requestURL, Config: cfg}
	}

	body, err := p.fetcher.Fetch(ctx, requestURL)
	if err != nil {
		return fail(metrics.OutcomeBackend, err)
	}

	doc, rewritten, err := Rewrite(body, cfg.ProxyTag)
	if err != nil {
		return fail(metrics.OutcomeProcessing, err)
	}

	p.metrics.RecordRewrite(rewritten)
	p.metrics.RecordSubscription(metrics.OutcomeOK)
	logger.Info("Served subscription",
		log.Str("config_id", cfg.ID), log.Int("outbounds_rewritten", rewritten), log.Int("bytes", len(doc)))

	return &Result{
		Document:   doc,
		RequestURL: requestURL,
		Config:     cfg,
		Rewritten:  rewritten,
	}, nil
}
