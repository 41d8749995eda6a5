package clinic

import (
	"context"
	"sync"
)

// pusher runs remote writes off the state goroutine. Writes for one user id
// land one at a time in the order they were queued, and a snapshot is skipped
// when a newer snapshot for the same id is queued behind it.
//
// Jobs are queued from the state goroutine only, so queue order matches the
// order the snapshots were taken.
type pusher struct {
	ctx  context.Context
	idle func()

	mu     sync.Mutex
	queues map[string][]pushJob // present while a worker drains the id
	latest map[string]uint64
	seq    uint64
	gen    uint64
	dirty  bool
	active int
	done   *sync.Cond
}

type pushJob struct {
	snap uint64 // zero for patches to another user's row
	run  func(context.Context)
}

func newPusher(ctx context.Context, idle func()) *pusher {
	p := &pusher{
		ctx:    ctx,
		idle:   idle,
		queues: make(map[string][]pushJob),
		latest: make(map[string]uint64),
	}
	p.done = sync.NewCond(&p.mu)
	return p
}

// snapshot queues a full-row write for userID.
func (p *pusher) snapshot(userID string, run func(context.Context)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	p.latest[userID] = p.seq
	p.enqueue(userID, pushJob{snap: p.seq, run: run})
}

// patch queues a read-modify-write of userID's row.
func (p *pusher) patch(userID string, run func(context.Context)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enqueue(userID, pushJob{run: run})
}

func (p *pusher) enqueue(userID string, j pushJob) {
	p.gen++
	q, running := p.queues[userID]
	p.queues[userID] = append(q, j)
	if !running {
		p.active++
		go p.drain(userID)
	}
}

func (p *pusher) drain(userID string) {
	defer p.finish()
	for {
		p.mu.Lock()
		q := p.queues[userID]
		if len(q) == 0 {
			delete(p.queues, userID)
			delete(p.latest, userID)
			fire := p.dirty && len(p.queues) == 0
			if fire {
				p.dirty = false
			}
			p.mu.Unlock()
			if fire {
				p.idle()
			}
			return
		}
		j := q[0]
		p.queues[userID] = q[1:]
		stale := j.snap != 0 && j.snap != p.latest[userID]
		p.mu.Unlock()

		if !stale {
			j.run(p.ctx)
		}
	}
}

func (p *pusher) generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen
}

// settled reports whether nothing was queued since gen and nothing is in
// flight. Remote data read before an unsettled point may predate a local
// write, so the caller drops it and idle runs once the queues are empty.
func (p *pusher) settled(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queues) > 0 {
		p.dirty = true
		return false
	}
	if p.gen != gen {
		// the writes already landed; no drain is left to fire idle
		p.active++
		go func() {
			defer p.finish()
			p.idle()
		}()
		return false
	}
	return true
}

// quiet is settled for data that arrived just now.
func (p *pusher) quiet() bool {
	return p.settled(p.generation())
}

func (p *pusher) finish() {
	p.mu.Lock()
	p.active--
	p.done.Broadcast()
	p.mu.Unlock()
}

// wait blocks until every queued write has run.
func (p *pusher) wait() {
	p.mu.Lock()
	for p.active > 0 {
		p.done.Wait()
	}
	p.mu.Unlock()
}
