// Package reconcile bridges the pull-based history API and the push-fed
// timeline store.
//
// While a conversation is active the reconciler periodically fetches the
// most recent history page and appends the messages missing locally, one
// at a time in server order, so the two delivery paths converge on a
// single timeline. Fetch failures are transient: logged, skipped, retried
// on the next tick.
package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/chatclient/internal/logger"
	"github.com/chatclient/internal/model"
	"github.com/chatclient/internal/store"
)

const fetchTimeout = 5 * time.Second

// HistoryFetcher is the slice of the backend API the reconciler consumes.
type HistoryFetcher interface {
	GetPrivateMessages(ctx context.Context, userID model.FlexID, page, size int) ([]model.Message, error)
	GetGroupMessages(ctx context.Context, groupID model.FlexID, page, size int) ([]model.Message, error)
}

// Reconciler runs one sync loop for the active conversation. Start replaces
// any previous loop; Stop ends it. Overlapping ticks are prevented by a
// busy flag: a tick that fires while a fetch is in flight is ignored, not
// queued.
type Reconciler struct {
	store    *store.Store
	history  HistoryFetcher
	interval time.Duration
	pageSize int

	// OnError receives every fetch error after it is logged. The session
	// layer uses it to catch authorization and moderation failures;
	// transient errors are ignored there.
	OnError func(error)

	mu   sync.Mutex
	busy bool
	stop chan struct{}
	wg   sync.WaitGroup
}

func New(st *store.Store, history HistoryFetcher, interval time.Duration, pageSize int) *Reconciler {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return &Reconciler{
		store:    st,
		history:  history,
		interval: interval,
		pageSize: pageSize,
	}
}

// Start begins syncing the given conversation: an immediate tick, then one
// per interval. Any loop for a previous conversation is stopped first.
func (r *Reconciler) Start(conv model.Conversation) {
	r.Stop()

	stop := make(chan struct{})
	r.mu.Lock()
	r.stop = stop
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(conv, stop)
}

// Stop ends the current sync loop, if any. Idempotent.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	stop := r.stop
	r.stop = nil
	r.mu.Unlock()
	if stop != nil {
		close(stop)
	}
	r.wg.Wait()
}

func (r *Reconciler) run(conv model.Conversation, stop chan struct{}) {
	defer r.wg.Done()

	r.tick(conv)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.tick(conv)
		}
	}
}

// tick fetches the latest page and merges net-new messages. The target key
// is captured before the fetch and re-checked after it: results for a
// conversation that is no longer active are discarded.
func (r *Reconciler) tick(conv model.Conversation) {
	r.mu.Lock()
	if r.busy {
		r.mu.Unlock()
		return
	}
	r.busy = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.busy = false
		r.mu.Unlock()
	}()
	defer logger.DeferLogDuration("reconcile.tick", time.Now())()

	key := r.store.ActiveKey()
	if key == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	var (
		serverMessages []model.Message
		err            error
	)
	if conv.Kind == model.ConversationGroup {
		serverMessages, err = r.history.GetGroupMessages(ctx, conv.GroupID, 0, r.pageSize)
	} else {
		serverMessages, err = r.history.GetPrivateMessages(ctx, conv.UserID, 0, r.pageSize)
	}
	if err != nil {
		logger.Errorf("reconcile fetch %s: %v", key, err)
		if r.OnError != nil {
			r.OnError(err)
		}
		return
	}

	// The world may have changed while we were fetching.
	if r.store.ActiveKey() != key {
		logger.Debugf("reconcile discard stale page for %s", key)
		return
	}

	added := 0
	for _, msg := range serverMessages {
		if r.store.ContainsMessage(key, msg.ID) {
			continue
		}
		// Individual appends keep one-at-a-time insertion semantics for
		// the consumer.
		if _, ok := r.store.Append(msg); ok {
			added++
		}
	}
	if added > 0 {
		logger.Debugf("reconcile %s: merged %d new messages", key, added)
	}
}
