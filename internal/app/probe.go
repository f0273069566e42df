package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/samvad-hq/jsonfetch/internal/config"
	"github.com/samvad-hq/jsonfetch/internal/logger"
	"github.com/samvad-hq/jsonfetch/internal/poller"
	"github.com/samvad-hq/jsonfetch/internal/storage"
	"github.com/samvad-hq/jsonfetch/pkg/endpoints"
	"github.com/samvad-hq/jsonfetch/pkg/fetch"
	"github.com/samvad-hq/jsonfetch/pkg/httpclient"
	"github.com/samvad-hq/jsonfetch/pkg/publishers"
)

// Probe is the polling runtime. It owns the main loop that every fetch result
// is delivered on, and polls the enabled endpoints on a fixed interval.
type Probe struct {
	cfg          *config.Config
	endpointReg  *endpoints.Registry
	fanout       *publishers.Fanout
	loop         *fetch.MainLoop
	poller       *poller.Service
	pollInterval time.Duration
	log          logger.Logger
	store        storage.Store
}

// NewProbe builds a probe runtime from config files.
func NewProbe(ctx context.Context, cfg *config.Config, log logger.Logger) (*Probe, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	endpointReg, err := endpoints.LoadRegistry(cfg.EndpointsFile)
	if err != nil {
		return nil, fmt.Errorf("load endpoints registry: %w", err)
	}
	endpointIDs := make([]string, 0, len(endpointReg.All()))
	for _, ep := range endpointReg.All() {
		endpointIDs = append(endpointIDs, ep.ID)
	}
	log.InfoObj("endpoints registry loaded", "endpoints_meta", map[string]any{
		"count": len(endpointIDs),
		"ids":   endpointIDs,
	})

	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabledPublishers := publisherReg.Enabled()
	if len(enabledPublishers) == 0 {
		return nil, fmt.Errorf("no publishers configured")
	}
	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabledPublishers, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}
	fanout := publishers.NewFanout(pubClients)
	publisherSummaries := make([]map[string]string, 0, len(enabledPublishers))
	for _, pubCfg := range enabledPublishers {
		publisherSummaries = append(publisherSummaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(publisherSummaries),
		"publishers": publisherSummaries,
	})

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
		ObservationTTL:  cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("init storage: %w", err), fanout.Close())
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"observation_ttl_seconds":  int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	loop := fetch.NewMainLoop()
	client := fetch.New(
		httpclient.NewRestyClient(cfg.HTTPTimeout),
		fetch.WithDispatcher(loop),
		fetch.WithLogger(log),
		fetch.WithStatusPolicy(fetch.ParseStatusPolicy(cfg.NonOKPolicy)),
	)

	return &Probe{
		cfg:          cfg,
		endpointReg:  endpointReg,
		fanout:       fanout,
		loop:         loop,
		poller:       poller.NewService(client, poller.DefaultDecoders(), fanout, store, log),
		pollInterval: cfg.PollInterval,
		log:          log,
		store:        store,
	}, nil
}

// Run drives the main loop on the calling goroutine until ctx is cancelled.
// Polls are scheduled from a separate goroutine; their results come back here.
func (p *Probe) Run(ctx context.Context) error {
	if p == nil || p.poller == nil || p.loop == nil {
		return fmt.Errorf("probe is not initialized")
	}
	defer p.shutdown()

	eps := p.endpointReg.Enabled()
	if len(eps) == 0 {
		p.log.WarnObj("no endpoints enabled; probe idle", "endpoints_file", p.cfg.EndpointsFile)
		<-ctx.Done()
		return nil
	}

	p.log.InfoObj("probe loop starting", "probe_state", map[string]any{
		"endpoints_count":  len(eps),
		"publishers_count": p.fanout.Size(),
		"poll_interval":    p.pollInterval.String(),
		"non_ok_policy":    p.cfg.NonOKPolicy,
	})

	var scheduler sync.WaitGroup
	scheduler.Add(1)
	go func() {
		defer scheduler.Done()
		p.schedule(ctx, eps)
	}()

	err := p.loop.Run(ctx)
	scheduler.Wait()
	if err != nil && ctx.Err() == nil {
		return err
	}
	p.log.InfoObj("probe loop exiting", "reason", ctx.Err())
	return nil
}

// schedule polls immediately and then on every tick.
func (p *Probe) schedule(ctx context.Context, eps []endpoints.Endpoint) {
	p.pollOnce(ctx, eps)

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.logStats()
			p.pollOnce(ctx, eps)
		}
	}
}

func (p *Probe) pollOnce(ctx context.Context, eps []endpoints.Endpoint) {
	p.log.InfoObj("poll started", "poll_meta", map[string]any{
		"endpoints_count": len(eps),
		"started_at":      time.Now().UTC(),
	})
	if err := p.poller.Dispatch(ctx, eps); err != nil {
		p.log.ErrorObj("poll dispatch incomplete", "error", err.Error())
	}
}

func (p *Probe) logStats() {
	stats, err := p.poller.Snapshot()
	if err != nil {
		return
	}
	p.log.InfoObj("endpoint stats", "poll_stats", stats)
}

// shutdown waits for in-flight work, then releases publishers and storage.
func (p *Probe) shutdown() {
	p.loop.Stop()
	p.poller.Wait()
	if err := p.fanout.Close(); err != nil {
		p.log.ErrorObj("publishers close failed", "error", err.Error())
	}
	if p.store == nil {
		return
	}
	if err := p.store.Close(); err != nil {
		p.log.ErrorObj("storage close failed", "error", err.Error())
	}
}
