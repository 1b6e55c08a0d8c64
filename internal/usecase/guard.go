package usecase

import (
	"sync"
	"time"
)

// ReferenceGuard lets each payment reference be verified at most once per
// session and process. Outcomes that ended in an error are forgotten so the
// shopper can retry once the gateway recovers.
type ReferenceGuard struct {
	mu   sync.Mutex
	seen map[guardKey]*guardEntry
	now  func() time.Time
}

type guardKey struct {
	session   string
	reference string
}

type guardEntry struct {
	done    bool
	at      time.Time
	outcome Outcome
}

func NewReferenceGuard() *ReferenceGuard {
	return &ReferenceGuard{seen: map[guardKey]*guardEntry{}, now: time.Now}
}

// Claim returns true for the first caller of (session, ref). Later callers get
// the recorded outcome, or a Verifying outcome while the first call is in flight.
func (g *ReferenceGuard) Claim(session, ref string) (bool, Outcome) {
	g.mu.Lock()
	defer g.mu.Unlock()
	k := guardKey{session, ref}
	if e, ok := g.seen[k]; ok {
		if !e.done {
			return false, Outcome{Step: StepVerifying}
		}
		return false, e.outcome
	}
	g.seen[k] = &guardEntry{at: g.now()}
	return true, Outcome{}
}

// Finish records the outcome of a claimed reference. A non-nil err releases
// the claim instead.
func (g *ReferenceGuard) Finish(session, ref string, o Outcome, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	k := guardKey{session, ref}
	if err != nil {
		delete(g.seen, k)
		return
	}
	g.seen[k] = &guardEntry{done: true, at: g.now(), outcome: o}
}

// Forget drops every reference recorded for the given sessions.
func (g *ReferenceGuard) Forget(sessions ...string) {
	if len(sessions) == 0 {
		return
	}
	drop := make(map[string]struct{}, len(sessions))
	for _, id := range sessions {
		drop[id] = struct{}{}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for k := range g.seen {
		if _, ok := drop[k.session]; ok {
			delete(g.seen, k)
		}
	}
}

// Prune drops finished entries recorded before cutoff and reports how many went.
func (g *ReferenceGuard) Prune(cutoff time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for k, e := range g.seen {
		if e.done && e.at.Before(cutoff) {
			delete(g.seen, k)
			n++
		}
	}
	return n
}
