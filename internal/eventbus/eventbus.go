// Package eventbus fans a geofence transition out to three audiences at
// once: a global subject every subscriber can tail, a per-device subject,
// and a per-geofence subject. It combines NATS core pub/sub — grounded on
// a geofence checker publishing to fms.uplink.* — with an in-process
// channel so the WebSocket hub's live transition stream doesn't pay a
// network round trip back through NATS. Delivery is best-effort: a publish
// failure is logged and dropped, never retried or persisted; this is a
// fan-out bus, not a guaranteed-delivery log (see DESIGN.md for why
// JetStream's persisted-replay semantics were dropped).
package eventbus

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"geosentry/api/internal/model"
)

// Bus fans TransitionEvents out over NATS core subjects and local channels.
type Bus struct {
	nc     *nats.Conn
	log    *zap.Logger
	global string
	deviceFmt string
	geofenceFmt string

	local chan model.TransitionEvent
}

// Config names the three subject shapes used for fanout.
type Config struct {
	GlobalSubject   string
	DeviceSubjectFmt string // e.g. "geosentry.device.%s.events"
	GeofenceSubjectFmt string
}

func New(nc *nats.Conn, log *zap.Logger, cfg Config) *Bus {
	return &Bus{
		nc:          nc,
		log:         log,
		global:      cfg.GlobalSubject,
		deviceFmt:   cfg.DeviceSubjectFmt,
		geofenceFmt: cfg.GeofenceSubjectFmt,
		local:       make(chan model.TransitionEvent, 1024),
	}
}

// Publish fans out a transition event to all three NATS subjects and the
// local subscriber channel. Errors are logged, not returned: a down NATS
// connection must never block ingest.
func (b *Bus) Publish(evt model.TransitionEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		b.log.Error("eventbus: marshal failed", zap.Error(err))
		return
	}

	if b.nc != nil {
		if err := b.nc.Publish(b.global, data); err != nil {
			b.log.Warn("eventbus: global publish failed", zap.Error(err))
		}
		if err := b.nc.Publish(fmt.Sprintf(b.deviceFmt, evt.DeviceID), data); err != nil {
			b.log.Warn("eventbus: device publish failed", zap.Error(err))
		}
		if err := b.nc.Publish(fmt.Sprintf(b.geofenceFmt, evt.GeofenceID), data); err != nil {
			b.log.Warn("eventbus: geofence publish failed", zap.Error(err))
		}
	}

	select {
	case b.local <- evt:
	default:
		b.log.Warn("eventbus: local subscriber channel full, dropping event",
			zap.String("device_id", evt.DeviceID.String()),
			zap.String("geofence_id", evt.GeofenceID.String()))
	}
}

// Local returns the in-process channel of fanned-out events, consumed by
// the WebSocket hub to drive its live transition stream.
func (b *Bus) Local() <-chan model.TransitionEvent {
	return b.local
}

// SubscribeDevice subscribes to a single device's NATS subject, used by
// clients that only care about one device's transitions (e.g. a dashboard).
func (b *Bus) SubscribeDevice(deviceID string, handler nats.MsgHandler) (*nats.Subscription, error) {
	return b.nc.Subscribe(fmt.Sprintf(b.deviceFmt, deviceID), handler)
}

// SubscribeGeofence subscribes to a single geofence's NATS subject.
func (b *Bus) SubscribeGeofence(geofenceID string, handler nats.MsgHandler) (*nats.Subscription, error) {
	return b.nc.Subscribe(fmt.Sprintf(b.geofenceFmt, geofenceID), handler)
}
