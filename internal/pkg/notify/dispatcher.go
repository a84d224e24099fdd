// Package notify decouples admin notification fan-out from the webhook
// transaction. Outcomes are enqueued on a Redis list and delivered by a small
// worker pool; a slow or failing channel can never stall webhook
// acknowledgment or roll back the core transaction.
package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/citydesk/citydesk/internal/pkg/cache"
)

const (
	queueKey    = "notify_queue"
	popTimeout  = 2 * time.Second
	defaultSize = 3
)

// Recipient roles.
const (
	RoleAdmin = "admin"
)

// AdminNotification is one queued fan-out job.
type AdminNotification struct {
	ID            string          `json:"id"`
	RequestID     uint            `json:"request_id"`
	Outcome       string          `json:"outcome"`
	Amount        decimal.Decimal `json:"amount"`
	RecipientRole string          `json:"recipient_role"`
	EnqueuedAt    time.Time       `json:"enqueued_at"`
}

// Dispatcher manages the notification queue and its workers.
type Dispatcher struct {
	client  *redis.Client
	workers int
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewDispatcher creates a dispatcher with the given worker count.
func NewDispatcher(workers int) *Dispatcher {
	if workers <= 0 {
		workers = defaultSize
	}
	return &Dispatcher{
		client:  cache.GetClient(),
		workers: workers,
		stopCh:  make(chan struct{}),
	}
}

var (
	globalDispatcher *Dispatcher
	dispatcherOnce   sync.Once
)

// GetDispatcher returns the global dispatcher (singleton).
func GetDispatcher() *Dispatcher {
	dispatcherOnce.Do(func() {
		globalDispatcher = NewDispatcher(defaultSize)
	})
	return globalDispatcher
}

// Start launches the worker pool.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return
	}
	d.stopCh = make(chan struct{})
	d.running = true
	log.Infof("[Notify] starting %d workers", d.workers)

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

// Stop drains the workers. Queued jobs stay in Redis for the next start.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return
	}
	close(d.stopCh)
	d.wg.Wait()
	d.running = false
	log.Info("[Notify] stopped")
}

// Enqueue pushes a notification onto the queue, fire-and-forget: an enqueue
// failure is logged and swallowed.
func (d *Dispatcher) Enqueue(n AdminNotification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.RecipientRole == "" {
		n.RecipientRole = RoleAdmin
	}
	n.EnqueuedAt = time.Now()

	data, err := json.Marshal(n)
	if err != nil {
		log.Errorf("[Notify] marshal failed for request %d: %v", n.RequestID, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.client.LPush(ctx, queueKey, data).Err(); err != nil {
		log.Errorf("[Notify] enqueue failed for request %d: %v", n.RequestID, err)
	}
}

// PaymentOutcome implements the processor's Notifier interface.
func (d *Dispatcher) PaymentOutcome(requestID uint, outcome string, amount decimal.Decimal) {
	d.Enqueue(AdminNotification{
		RequestID:     requestID,
		Outcome:       outcome,
		Amount:        amount,
		RecipientRole: RoleAdmin,
	})
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	for {
		select {
		case <-d.stopCh:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), popTimeout+time.Second)
		res, err := d.client.BRPop(ctx, popTimeout, queueKey).Result()
		cancel()
		if err != nil {
			if err != redis.Nil {
				log.Warnf("[Notify] worker %d pop failed: %v", id, err)
				time.Sleep(time.Second)
			}
			continue
		}
		if len(res) < 2 {
			continue
		}

		var n AdminNotification
		if err := json.Unmarshal([]byte(res[1]), &n); err != nil {
			log.Errorf("[Notify] worker %d dropped malformed job: %v", id, err)
			continue
		}
		d.deliver(n)
	}
}

// deliver hands the notification to the external channels. Email/SMS/realtime
// transport is a collaborator outside this service; here the fan-out is
// logged so operators can trace it.
func (d *Dispatcher) deliver(n AdminNotification) {
	log.Infof("[Notify] request %d payment %s (%s %s) -> %s", n.RequestID, n.Outcome, n.Amount.StringFixed(2), "EUR", n.RecipientRole)
}
