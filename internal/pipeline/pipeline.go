// Package pipeline wires the DX cluster feed through the enrichment
// cache to the radio, and fans every result out as orchestrator events.
package pipeline

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"flexdx-bridge/internal/cluster"
	"flexdx-bridge/internal/domain"
	"flexdx-bridge/internal/observability"
	"flexdx-bridge/internal/storage"
)

// Enricher attaches contact history to spots and reports cache health.
type Enricher interface {
	Enrich(ctx context.Context, spot *domain.DxSpot) (*domain.EnrichmentRecord, error)
	Health() domain.CacheHealth
}

// SpotPusher places enriched spots on the radio's display.
type SpotPusher interface {
	PushSpot(spot *domain.DxSpot)
}

// Options wires the pipeline's collaborators. Spots, ClusterStatus and
// RadioEvents are the protocol clients' outbound channels; SpotLog and
// Activity are optional archives.
type Options struct {
	Spots         <-chan *domain.DxSpot
	ClusterStatus <-chan cluster.StatusEvent
	RadioEvents   <-chan domain.Event

	Enricher Enricher
	Radio    SpotPusher

	SpotLog  storage.SpotLogStore
	Activity storage.ActivityStore

	HealthInterval time.Duration
	Logger         *log.Logger
}

// Pipeline is the spot orchestrator. Distinct spots are processed
// concurrently; a slow enrichment lookup only blocks its own spot.
type Pipeline struct {
	opts   Options
	events chan domain.Event

	ctx    context.Context
	cancel context.CancelFunc

	started atomic.Bool
	closed  atomic.Bool
	wg      sync.WaitGroup
}

// New creates a pipeline. Start must be called to begin processing.
func New(opts Options) *Pipeline {
	if opts.HealthInterval == 0 {
		opts.HealthInterval = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		opts:   opts,
		events: make(chan domain.Event, 64),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Events returns the outbound event channel consumed by the gateway.
func (p *Pipeline) Events() <-chan domain.Event { return p.events }

// Start launches the orchestration loop. Calling Start more than once
// is a no-op.
func (p *Pipeline) Start() {
	if p.started.Swap(true) {
		return
	}
	p.wg.Add(1)
	go p.run()
}

// Close stops the loop and waits for in-flight spots.
func (p *Pipeline) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	p.cancel()
	p.wg.Wait()
	return nil
}

func (p *Pipeline) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.opts.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return

		case spot, ok := <-p.opts.Spots:
			if !ok {
				continue
			}
			observability.RecordSpotParsed()
			p.wg.Add(1)
			go func() {
				defer p.wg.Done()
				p.processSpot(spot)
			}()

		case st, ok := <-p.opts.ClusterStatus:
			if !ok {
				continue
			}
			p.forwardClusterStatus(st)

		case ev, ok := <-p.opts.RadioEvents:
			if !ok {
				continue
			}
			p.forwardRadioEvent(ev)

		case <-ticker.C:
			p.emitHealth()
		}
	}
}

// processSpot runs one spot through enrichment, the radio and the
// archives. A failed lookup degrades to a push without enrichment.
func (p *Pipeline) processSpot(spot *domain.DxSpot) {
	start := time.Now()

	_, err := p.opts.Enricher.Enrich(p.ctx, spot)
	observability.RecordLookup(time.Since(start).Seconds(), err)
	if err != nil {
		p.opts.Logger.Printf("enrich %s: %v (pushing without enrichment)", spot.ID(), err)
	}

	p.opts.Radio.PushSpot(spot)
	observability.RecordSpotPushed()

	p.emit(domain.Event{Type: domain.EventSpotEnriched, Time: time.Now(), Spot: spot})
	p.archive(spot)

	observability.RecordSpotProcessed(time.Since(start).Seconds())
}

// archive writes the spot to whichever stores are configured.
func (p *Pipeline) archive(spot *domain.DxSpot) {
	if p.opts.SpotLog != nil {
		entry := logEntry(spot)
		if err := p.opts.SpotLog.Insert(p.ctx, entry); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			observability.RecordArchiveError("spot_log")
			p.opts.Logger.Printf("archive %s: %v", spot.ID(), err)
		}
	}
	if p.opts.Activity != nil {
		point := &domain.ActivityPoint{Time: spot.Time, Band: spot.Band, Mode: spot.Mode}
		if err := p.opts.Activity.Record(p.ctx, []*domain.ActivityPoint{point}); err != nil {
			observability.RecordArchiveError("activity")
			p.opts.Logger.Printf("record activity %s: %v", spot.ID(), err)
		}
	}
}

// logEntry snapshots a spot and its enrichment for the archive.
func logEntry(spot *domain.DxSpot) *domain.SpotLogEntry {
	entry := &domain.SpotLogEntry{
		SpotID:       spot.ID(),
		Call:         spot.Call,
		Spotter:      spot.Spotter,
		Band:         spot.Band,
		Mode:         spot.Mode,
		FrequencyKHz: spot.FrequencyKHz,
		Comment:      spot.Message,
		SpottedAt:    spot.Time,
	}
	if rec := spot.Enrichment; rec != nil {
		entry.Worked = rec.Worked
		entry.Confirmed = rec.Confirmed
		entry.ConfirmedBand = rec.ConfirmedBand
		entry.ConfirmedBandMode = rec.ConfirmedBandMode
		entry.LoTWMember = rec.LoTWMember
	}
	return entry
}

// forwardClusterStatus converts a session transition into an event.
func (p *Pipeline) forwardClusterStatus(st cluster.StatusEvent) {
	observability.SetClusterConnected(st.Connected)

	ev := domain.Event{Time: time.Now()}
	switch {
	case st.Connected:
		ev.Type = domain.EventClusterConnected
	case st.Err != nil:
		ev.Type = domain.EventClusterError
		ev.Error = st.Err.Error()
	default:
		ev.Type = domain.EventClusterDisconnected
	}
	p.emit(ev)
}

// forwardRadioEvent passes a radio event through, tracking the session
// gauge on transitions.
func (p *Pipeline) forwardRadioEvent(ev domain.Event) {
	switch ev.Type {
	case domain.EventRadioConnected:
		observability.SetRadioConnected(true)
	case domain.EventRadioDisconnected:
		observability.SetRadioConnected(false)
	}
	p.emit(ev)
}

// emitHealth publishes a cache-health snapshot.
func (p *Pipeline) emitHealth() {
	h := p.opts.Enricher.Health()
	observability.DefaultMetrics.CacheSize.Set(float64(h.Size))
	p.emit(domain.Event{Type: domain.EventCacheHealth, Time: time.Now(), Health: &h})
}

func (p *Pipeline) emit(ev domain.Event) {
	select {
	case p.events <- ev:
	case <-p.ctx.Done():
	}
}
