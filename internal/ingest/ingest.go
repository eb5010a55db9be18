// Package ingest is the single-update pipeline: validate, resolve,
// run the per-device critical section (geofence diff + trajectory append),
// publish transitions, and dispatch webhooks. It also implements the bulk
// orchestrator: chronological order is required per device, but devices
// are processed concurrently. Grounded on a prior geofence_checker.go
// (processLocationUpdate/checkGeofence/triggerEvent) for the single-update
// shape, and on the original's bulk_update_locations for the batch response
// contract.
package ingest

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"geosentry/api/internal/apperr"
	"geosentry/api/internal/devicestate"
	"geosentry/api/internal/eventbus"
	"geosentry/api/internal/geofenceindex"
	"geosentry/api/internal/model"
	"geosentry/api/internal/spatial"
	"geosentry/api/internal/store"
	"geosentry/api/internal/trajectory"
	"geosentry/api/internal/webhookdispatch"
)

// Update is a single location fix submitted by a client. Speed, Heading,
// Accuracy, and Altitude are optional motion telemetry; Metadata is opaque,
// free-form context carried through to any transition event this update
// produces.
type Update struct {
	DeviceID   uuid.UUID
	UserID     uuid.UUID
	Lat        float64
	Lon        float64
	ObservedAt time.Time
	Speed      *float64
	Heading    *float64
	Accuracy   *float64
	Altitude   *float64
	Metadata   model.JSONMap
}

// clampHeading wraps h into [0, 360).
func clampHeading(h float64) float64 {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	return h
}

// Result reports what a single update produced.
type Result struct {
	DeviceID    uuid.UUID
	TrajectoryID uuid.UUID
	Transitions []devicestate.Transition
}

// Pipeline wires the geofence index, device-state tracker, trajectory
// segmenter, store, event bus, and webhook dispatcher together behind a
// per-device critical section so concurrent updates for the same device
// never race on its trajectory or membership state.
type Pipeline struct {
	store      *store.Store
	index      *geofenceindex.Index
	devices    *devicestate.Tracker
	segmenter  *trajectory.Segmenter
	bus        *eventbus.Bus
	dispatcher *webhookdispatch.Dispatcher

	locksMu sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex
}

func New(s *store.Store, idx *geofenceindex.Index, devices *devicestate.Tracker, seg *trajectory.Segmenter, bus *eventbus.Bus, dispatcher *webhookdispatch.Dispatcher) *Pipeline {
	return &Pipeline{
		store:      s,
		index:      idx,
		devices:    devices,
		segmenter:  seg,
		bus:        bus,
		dispatcher: dispatcher,
		locks:      make(map[uuid.UUID]*sync.Mutex),
	}
}

func (p *Pipeline) lockFor(deviceID uuid.UUID) *sync.Mutex {
	p.locksMu.Lock()
	defer p.locksMu.Unlock()
	l, ok := p.locks[deviceID]
	if !ok {
		l = &sync.Mutex{}
		p.locks[deviceID] = l
	}
	return l
}

// Ingest validates and applies a single update, returning the transitions
// it produced. Admission/quota checks happen at the handler layer before
// Ingest is called — that gate is a request-level concern, not a
// per-device one.
func (p *Pipeline) Ingest(ctx context.Context, u Update) (Result, error) {
	if !spatial.ValidLatLon(u.Lat, u.Lon) {
		return Result{}, apperr.New(apperr.InvalidInput, "lat/lon out of range")
	}
	if u.Speed != nil && *u.Speed < 0 {
		return Result{}, apperr.New(apperr.InvalidInput, "speed must be non-negative")
	}
	if u.Accuracy != nil && *u.Accuracy < 0 {
		return Result{}, apperr.New(apperr.InvalidInput, "accuracy must be non-negative")
	}
	if u.Heading != nil {
		h := clampHeading(*u.Heading)
		u.Heading = &h
	}

	lock := p.lockFor(u.DeviceID)
	lock.Lock()
	defer lock.Unlock()

	device, err := p.store.GetDevice(ctx, u.UserID, u.DeviceID)
	if err != nil {
		return Result{}, err
	}
	if device.LastSeen != nil {
		if u.ObservedAt.Before(*device.LastSeen) {
			return Result{}, apperr.New(apperr.OutOfOrder, "update is older than the device's last known fix")
		}
		if u.ObservedAt.Equal(*device.LastSeen) && device.HasLocation() &&
			*device.LastLat == u.Lat && *device.LastLon == u.Lon {
			// idempotent replay: same point at the same instant as the last
			// accepted fix, producing zero new events and zero new points.
			return Result{DeviceID: u.DeviceID}, nil
		}
	}

	if !p.index.Loaded(u.UserID) {
		fences, err := p.store.GetUserActiveGeofences(ctx, u.UserID)
		if err != nil {
			return Result{}, err
		}
		p.index.Rebuild(u.UserID, fences)
	}

	p.devices.Load(ctx, u.DeviceID)
	inside := p.index.Containing(u.UserID, spatial.Point{Lat: u.Lat, Lon: u.Lon})
	insideIDs := make([]uuid.UUID, len(inside))
	byID := make(map[uuid.UUID]model.Geofence, len(inside))
	for i, g := range inside {
		insideIDs[i] = g.ID
		byID[g.ID] = g
	}
	transitions := p.devices.Apply(ctx, u.DeviceID, insideIDs)

	obs := trajectory.Observation{
		DeviceID:   u.DeviceID,
		UserID:     u.UserID,
		Lat:        u.Lat,
		Lon:        u.Lon,
		ObservedAt: u.ObservedAt,
		Speed:      u.Speed,
		Heading:    u.Heading,
		Accuracy:   u.Accuracy,
		Altitude:   u.Altitude,
	}
	if device.HasLocation() && device.LastSeen != nil {
		obs.HasPrev = true
		obs.PrevLat = *device.LastLat
		obs.PrevLon = *device.LastLon
		obs.PrevObserved = *device.LastSeen
	}
	trajID, err := p.segmenter.Append(ctx, obs)
	if err != nil {
		return Result{}, err
	}

	if err := p.store.UpsertDeviceLocation(ctx, u.DeviceID, u.Lat, u.Lon, u.ObservedAt); err != nil {
		return Result{}, err
	}

	for _, t := range transitions {
		fence := byID[t.GeofenceID]
		if fence.ID == uuid.Nil {
			// an exit: fetch the geofence for the event payload/webhook mask.
			if g, err := p.store.GetGeofence(ctx, u.UserID, t.GeofenceID); err == nil {
				fence = *g
			}
		}
		if !fence.WantsEvent(t.EventType) {
			continue
		}
		p.publishTransition(ctx, u, t, fence)
	}

	return Result{DeviceID: u.DeviceID, TrajectoryID: trajID, Transitions: transitions}, nil
}

func (p *Pipeline) publishTransition(ctx context.Context, u Update, t devicestate.Transition, fence model.Geofence) {
	evt := model.TransitionEvent{
		EventType:  t.EventType,
		DeviceID:   u.DeviceID,
		GeofenceID: t.GeofenceID,
		UserID:     u.UserID,
		Point:      model.Point{Lat: u.Lat, Lon: u.Lon},
		Timestamp:  u.ObservedAt,
		Metadata:   u.Metadata,
	}
	p.bus.Publish(evt)

	_ = p.store.RecordGeofenceEvent(ctx, &model.GeofenceEvent{
		ID:          uuid.New(),
		GeofenceID:  t.GeofenceID,
		DeviceID:    u.DeviceID,
		UserID:      u.UserID,
		EventType:   t.EventType,
		Lat:         u.Lat,
		Lon:         u.Lon,
		TriggeredAt: u.ObservedAt,
	})

	subs, err := p.store.WebhooksForGeofence(ctx, u.UserID, t.GeofenceID)
	if err != nil {
		return
	}
	eventID := uuid.New()
	for _, sub := range subs {
		if !sub.Wants(t.EventType) {
			continue
		}
		p.dispatcher.Enqueue(sub, model.WebhookPayload{
			EventID:    eventID,
			EventType:  t.EventType,
			DeviceID:   u.DeviceID,
			GeofenceID: t.GeofenceID,
			Lat:        u.Lat,
			Lon:        u.Lon,
			Timestamp:  u.ObservedAt.Unix(),
		})
	}
}

// BulkItemResult reports the per-item outcome of a BulkIngest call.
type BulkItemResult struct {
	DeviceID uuid.UUID
	Error    string
}

// BulkReport mirrors the original's bulk_update_locations response shape.
type BulkReport struct {
	Successful     []uuid.UUID
	Failed         []BulkItemResult
	TotalProcessed int
}

// MaxBulkItems caps a single bulk request.
const MaxBulkItems = 1000

// BulkIngest applies a batch of updates. Updates for the same device are
// sorted chronologically and applied serially; different devices run
// concurrently up to maxConcurrency.
func (p *Pipeline) BulkIngest(ctx context.Context, updates []Update, maxConcurrency int) BulkReport {
	if len(updates) > MaxBulkItems {
		updates = updates[:MaxBulkItems]
	}

	byDevice := make(map[uuid.UUID][]Update)
	for _, u := range updates {
		byDevice[u.DeviceID] = append(byDevice[u.DeviceID], u)
	}
	for id := range byDevice {
		group := byDevice[id]
		sort.Slice(group, func(i, j int) bool { return group[i].ObservedAt.Before(group[j].ObservedAt) })
		byDevice[id] = group
	}

	type outcome struct {
		deviceID uuid.UUID
		err      error
	}
	results := make(chan outcome, len(updates))
	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup

	for deviceID, group := range byDevice {
		wg.Add(1)
		go func(deviceID uuid.UUID, group []Update) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			for _, u := range group {
				_, err := p.Ingest(ctx, u)
				results <- outcome{deviceID: deviceID, err: err}
			}
		}(deviceID, group)
	}

	wg.Wait()
	close(results)

	report := BulkReport{TotalProcessed: len(updates)}
	for o := range results {
		if o.err != nil {
			report.Failed = append(report.Failed, BulkItemResult{DeviceID: o.deviceID, Error: o.err.Error()})
		} else {
			report.Successful = append(report.Successful, o.deviceID)
		}
	}
	return report
}
