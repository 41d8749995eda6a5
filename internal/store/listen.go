package store

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"vetclinic-booking/internal/model"
)

const changeChannel = "user_data_changes"

type subscriber struct {
	userID string
	fn     func(model.UserDataRow)
}

// hub holds one LISTEN connection and fans notifications out to subscribers.
type hub struct {
	pool *pgxpool.Pool
	load func(context.Context, string) (*model.UserDataRow, error)

	mu      sync.Mutex
	subs    map[int]subscriber
	next    int
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func newHub(pool *pgxpool.Pool, load func(context.Context, string) (*model.UserDataRow, error)) *hub {
	return &hub{pool: pool, load: load, subs: make(map[int]subscriber)}
}

func (h *hub) subscribe(ctx context.Context, userID string, fn func(model.UserDataRow)) error {
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = subscriber{userID: userID, fn: fn}
	if !h.running {
		lctx, cancel := context.WithCancel(context.Background())
		h.running = true
		h.cancel = cancel
		h.done = make(chan struct{})
		go h.run(lctx, h.done)
	}
	h.mu.Unlock()

	<-ctx.Done()

	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
	return nil
}

func (h *hub) stop() {
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.running = false
	h.cancel = nil
	h.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (h *hub) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for ctx.Err() == nil {
		err := h.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Printf("user_data listen: %v", err)
		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
		}
	}
}

func (h *hub) listen(ctx context.Context) error {
	pc, err := h.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	// the connection carries LISTEN state, so it never goes back to the pool
	conn := pc.Hijack()
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+changeChannel); err != nil {
		return err
	}
	log.Printf("listening on %s", changeChannel)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		h.dispatch(ctx, n.Payload)
	}
}

func (h *hub) dispatch(ctx context.Context, userID string) {
	h.mu.Lock()
	var fns []func(model.UserDataRow)
	for _, s := range h.subs {
		if s.userID == "" || s.userID == userID {
			fns = append(fns, s.fn)
		}
	}
	h.mu.Unlock()
	if len(fns) == 0 {
		return
	}

	row, err := h.load(ctx, userID)
	if err != nil {
		log.Printf("user_data reload %s: %v", userID, err)
		return
	}
	if row == nil {
		// deleted
		row = &model.UserDataRow{UserID: userID, UpdatedAt: time.Now()}
	}
	for _, fn := range fns {
		fn(*row)
	}
}
