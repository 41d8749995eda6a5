// Package notify tracks per-user notification permission and delivers
// one-shot notifications to a per-user inbox.
package notify

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"vetclinic-booking/internal/localcache"
	"vetclinic-booking/internal/model"
)

type Permission string

const (
	Default Permission = "default"
	Granted Permission = "granted"
	Denied  Permission = "denied"
)

const (
	KindReminderSet = "reminder_set"
	KindDayBefore   = "day_before"
)

var ErrPermissionDenied = errors.New("notification permission denied")

const inboxLimit = 50

type Center struct {
	mu       sync.Mutex
	cache    localcache.Cache
	perms    map[string]Permission
	inbox    map[string][]model.Notification
	requests map[string]int
	now      func() time.Time
}

// NewCenter keeps permissions and inboxes in cache when it is not nil.
func NewCenter(cache localcache.Cache) *Center {
	return &Center{
		cache:    cache,
		perms:    make(map[string]Permission),
		inbox:    make(map[string][]model.Notification),
		requests: make(map[string]int),
		now:      time.Now,
	}
}

func (c *Center) Load(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.cache.Load(ctx, localcache.KeyPermissions, &c.perms); err != nil {
		return err
	}
	if _, err := c.cache.Load(ctx, localcache.KeyInbox, &c.inbox); err != nil {
		return err
	}
	if c.perms == nil {
		c.perms = make(map[string]Permission)
	}
	if c.inbox == nil {
		c.inbox = make(map[string][]model.Notification)
	}
	return nil
}

func (c *Center) Permission(userID string) Permission {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.perms[userID]; ok {
		return p
	}
	return Default
}

// Request asks for permission. A user who already answered is not asked
// again; otherwise decision is taken as their answer to the prompt.
func (c *Center) Request(ctx context.Context, userID string, decision Permission) Permission {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.perms[userID]; ok && p != Default {
		return p
	}
	c.requests[userID]++
	switch decision {
	case Granted, Denied:
		c.perms[userID] = decision
		c.persist(ctx, localcache.KeyPermissions, c.perms)
		return decision
	}
	// dismissed prompt
	return Default
}

// Requests counts prompts shown to userID since start.
func (c *Center) Requests(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests[userID]
}

// Show delivers n to its user's inbox.
func (c *Center) Show(ctx context.Context, n model.Notification) model.Notification {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = c.now()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	box := append([]model.Notification{n}, c.inbox[n.UserID]...)
	if len(box) > inboxLimit {
		box = box[:inboxLimit]
	}
	c.inbox[n.UserID] = box
	c.persist(ctx, localcache.KeyInbox, c.inbox)
	log.Printf("notify %s: %s", n.UserID, n.Title)
	return n
}

// Inbox lists a user's notifications, newest first.
func (c *Center) Inbox(userID string) []model.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Notification(nil), c.inbox[userID]...)
}

func (c *Center) has(userID, kind, appointmentID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range c.inbox[userID] {
		if n.Kind == kind && n.AppointmentID == appointmentID {
			return true
		}
	}
	return false
}

// Forget drops everything kept for userID.
func (c *Center) Forget(ctx context.Context, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.perms, userID)
	delete(c.inbox, userID)
	delete(c.requests, userID)
	c.persist(ctx, localcache.KeyPermissions, c.perms)
	c.persist(ctx, localcache.KeyInbox, c.inbox)
}

func (c *Center) persist(ctx context.Context, key string, v any) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Store(ctx, key, v); err != nil {
		log.Printf("notify persist %s: %v", key, err)
	}
}
