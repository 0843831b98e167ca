package main

import (
	"sync"
	"time"
)

// SpamGuard lets a key post once per interval.
type SpamGuard struct {
	interval time.Duration
	posts    map[string]time.Time
	mutex    sync.Mutex
	now      func() time.Time
}

func NewSpamGuard(interval time.Duration) *SpamGuard {
	return &SpamGuard{
		interval: interval,
		posts:    make(map[string]time.Time),
		now:      time.Now,
	}
}

func (sg *SpamGuard) CanPost(id string) bool {
	if sg.interval <= 0 {
		return true
	}
	result := true
	now := sg.now()
	sg.mutex.Lock()
	expires, found := sg.posts[id]
	if found && expires.After(now) {
		// Blocked
		result = false
	} else {
		sg.posts[id] = now.Add(sg.interval)
	}
	sg.clean(now)
	sg.mutex.Unlock()
	return result
}

// Forget unblocks id, used when a post was refused by the backend.
func (sg *SpamGuard) Forget(id string) {
	sg.mutex.Lock()
	delete(sg.posts, id)
	sg.mutex.Unlock()
}

func (sg *SpamGuard) clean(now time.Time) {
	for key, expires := range sg.posts {
		if expires.Before(now) {
			delete(sg.posts, key)
		}
	}
}
