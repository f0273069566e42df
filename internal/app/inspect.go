package app

import (
	"context"
	"fmt"

	"github.com/samvad-hq/jsonfetch/internal/config"
	"github.com/samvad-hq/jsonfetch/internal/domain"
	"github.com/samvad-hq/jsonfetch/internal/logger"
	"github.com/samvad-hq/jsonfetch/internal/poller"
	"github.com/samvad-hq/jsonfetch/pkg/endpoints"
	"github.com/samvad-hq/jsonfetch/pkg/fetch"
	"github.com/samvad-hq/jsonfetch/pkg/httpclient"
)

// Inspect fetches one configured endpoint synchronously and decodes it the
// way the poller would. Nothing is published or stored. ok is false when a
// non-200 response was dropped under the configured policy.
func Inspect(ctx context.Context, cfg *config.Config, log logger.Logger, endpointID string) (res fetch.Result[domain.Observation], ok bool, err error) {
	if cfg == nil {
		return res, false, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}

	reg, err := endpoints.LoadRegistry(cfg.EndpointsFile)
	if err != nil {
		return res, false, fmt.Errorf("load endpoints registry: %w", err)
	}
	ep, found := reg.ByID(endpointID)
	if !found {
		return res, false, fmt.Errorf("endpoint %q not found in %s", endpointID, cfg.EndpointsFile)
	}
	decode, err := poller.DefaultDecoders().For(ep)
	if err != nil {
		return res, false, err
	}

	client := fetch.New(
		httpclient.NewRestyClient(cfg.HTTPTimeout),
		fetch.WithLogger(log),
		fetch.WithStatusPolicy(fetch.ParseStatusPolicy(cfg.NonOKPolicy)),
	)
	res, ok = fetch.Await(ctx, client, ep.Request(), decode)
	return res, ok, nil
}
