// Package webhookdispatch delivers geofence transitions to a user's
// registered subscriptions. HMAC signing and the header conventions are
// grounded directly on the original webhook service (GenerateSignature,
// WebhookSignatureHeader/WebhookTimestampHeader/WebhookEventHeader); the
// delivery mechanics are redesigned: a bounded worker pool drains a job
// queue instead of a "go s.sendWebhookWithRetry(...)" pattern, and retries
// are scheduled on a delay queue (time.AfterFunc re-enqueue) rather than
// blocking a goroutine in time.Sleep for the whole backoff window.
package webhookdispatch

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"geosentry/api/internal/cache"
	"geosentry/api/internal/model"
	"geosentry/api/internal/store"
)

// RecentDeliveriesTTL bounds how long a day-keyed delivery list is kept in
// the cache for the dashboard's live tail view.
const RecentDeliveriesTTL = 7 * 24 * time.Hour
const recentDeliveriesMaxLen = 50

// outboundRatePerSecond caps the aggregate rate at which workers fire HTTP
// requests at subscriber endpoints, independent of queue depth or worker
// count, so a burst of geofence transitions can't hammer a slow subscriber.
const outboundRatePerSecond = 200

// job is one delivery attempt queued for a worker.
type job struct {
	subscription model.WebhookSubscription
	payload      model.WebhookPayload
	eventID      uuid.UUID
	attempt      int
}

// Dispatcher owns a bounded worker pool draining a delivery queue, plus the
// retry scheduling that replaces a sleep-based loop.
type Dispatcher struct {
	store   *store.Store
	cache   *cache.Cache
	log     *zap.Logger
	client  *http.Client
	limiter *rate.Limiter

	queue chan job
	quit  chan struct{}
}

func New(s *store.Store, c *cache.Cache, log *zap.Logger, workers, queueDepth int) *Dispatcher {
	d := &Dispatcher{
		store:   s,
		cache:   c,
		log:     log,
		client:  &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(outboundRatePerSecond), outboundRatePerSecond),
		queue:   make(chan job, queueDepth),
		quit:    make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

func (d *Dispatcher) Stop() {
	close(d.quit)
}

// Enqueue schedules the first delivery attempt for a subscription. Returns
// immediately; delivery and retries happen asynchronously.
func (d *Dispatcher) Enqueue(sub model.WebhookSubscription, payload model.WebhookPayload) {
	select {
	case d.queue <- job{subscription: sub, payload: payload, eventID: payload.EventID, attempt: 1}:
	default:
		d.log.Warn("webhookdispatch: queue full, dropping delivery",
			zap.String("subscription_id", sub.ID.String()))
	}
}

func (d *Dispatcher) worker() {
	for {
		select {
		case <-d.quit:
			return
		case j := <-d.queue:
			d.attempt(j)
		}
	}
}

func (d *Dispatcher) attempt(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(j.subscription.Timeout)*time.Second)
	defer cancel()

	if err := d.limiter.Wait(ctx); err != nil {
		d.scheduleRetryOrGiveUp(j, &model.DeliveryAttempt{ErrorMessage: err.Error()})
		return
	}

	body, _ := json.Marshal(j.payload)
	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	signature := Sign(j.subscription.Secret, timestamp, body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.subscription.URL, bytes.NewReader(body))
	start := time.Now()
	attempt := model.DeliveryAttempt{
		ID:             uuid.New(),
		SubscriptionID: j.subscription.ID,
		EventID:        j.eventID,
		EventType:      j.payload.EventType,
		Attempt:        j.attempt,
		Payload:        body,
	}

	if err != nil {
		d.recordFailure(&attempt, start, err, j.subscription.URL)
		d.scheduleRetryOrGiveUp(j, &attempt)
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "GeoSentry-Webhook/1.0")
	req.Header.Set(model.WebhookTimestampHeader, timestamp)
	req.Header.Set(model.WebhookSignatureHeader, signature)
	req.Header.Set(model.WebhookEventHeader, j.payload.EventType)
	req.Header.Set(model.WebhookIDHeader, j.eventID.String())

	resp, err := d.client.Do(req)
	if err != nil {
		d.recordFailure(&attempt, start, err, j.subscription.URL)
		d.scheduleRetryOrGiveUp(j, &attempt)
		return
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	attempt.DurationMs = int(time.Since(start).Milliseconds())
	attempt.ResponseStatus = &resp.StatusCode
	attempt.ResponseBody = string(respBody)
	attempt.Success = resp.StatusCode >= 200 && resp.StatusCode < 300

	d.persist(&attempt, j.subscription.URL)

	if attempt.Success {
		_ = d.store.IncrementWebhookCounters(context.Background(), j.subscription.ID, true, time.Now(), "")
		return
	}

	d.scheduleRetryOrGiveUp(j, &attempt)
}

func (d *Dispatcher) recordFailure(attempt *model.DeliveryAttempt, start time.Time, err error, url string) {
	attempt.DurationMs = int(time.Since(start).Milliseconds())
	attempt.ErrorMessage = err.Error()
	attempt.Success = false
	d.persist(attempt, url)
}

// scheduleRetryOrGiveUp consults model.WebhookRetrySchedule for the next
// backoff and re-enqueues the job after that delay without blocking a
// worker goroutine, or gives up once the schedule is exhausted, adding one
// to the subscription's fail count and recording the last error (its status
// is left unchanged).
func (d *Dispatcher) scheduleRetryOrGiveUp(j job, lastAttempt *model.DeliveryAttempt) {
	if j.attempt > len(model.WebhookRetrySchedule) {
		_ = d.store.IncrementWebhookCounters(context.Background(), j.subscription.ID, false, time.Now(), lastAttempt.ErrorMessage)
		return
	}
	delay := model.WebhookRetrySchedule[j.attempt-1]
	next := job{subscription: j.subscription, payload: j.payload, eventID: j.eventID, attempt: j.attempt + 1}
	time.AfterFunc(delay, func() {
		select {
		case d.queue <- next:
		default:
			d.log.Warn("webhookdispatch: queue full on retry, dropping delivery",
				zap.String("subscription_id", j.subscription.ID.String()))
		}
	})
}

func (d *Dispatcher) persist(attempt *model.DeliveryAttempt, url string) {
	ctx := context.Background()
	if err := d.store.RecordDeliveryAttempt(ctx, attempt); err != nil {
		d.log.Error("webhookdispatch: failed to persist delivery attempt", zap.Error(err))
	}
	key := fmt.Sprintf("webhook_delivery:%s:%s", time.Now().UTC().Format("20060102"), url)
	_ = d.cache.PushBounded(ctx, key, attempt, recentDeliveriesMaxLen, RecentDeliveriesTTL)
}

// Sign computes the hex-encoded HMAC-SHA256 of "timestamp.body" (grounded
// on the original GenerateSignature/VerifySignature pair).
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature against the same construction as Sign, for
// subscribers validating inbound webhook calls.
func Verify(secret, timestamp string, body []byte, signature string) bool {
	expected := Sign(secret, timestamp, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
