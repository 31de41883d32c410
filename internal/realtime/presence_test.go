package realtime

import "testing"

func TestPresenceTracker_AddedReportsNewMembership(t *testing.T) {
	p := NewPresenceTracker()

	if !p.OnConnectionAdded(1, user(10)) {
		t.Error("first add should be a new membership")
	}
	if p.OnConnectionAdded(1, user(10)) {
		t.Error("second add for the same user should not be new")
	}
	if !p.OnConnectionAdded(2, user(10)) {
		t.Error("same user on another document should be new")
	}
	if p.OnConnectionAdded(1, nil) {
		t.Error("anonymous connection should never change presence")
	}

	if got := p.Presence(1); !equalIDs(got, []int64{10}) {
		t.Errorf("Presence(1) = %v, want [10]", got)
	}
}

func TestPresenceTracker_RemovedScansRegistry(t *testing.T) {
	p := NewPresenceTracker()
	r := NewRegistry()

	first := newConnection("a", 1, user(10), newRecordingSink(), 1, 0)
	second := newConnection("b", 1, user(10), newRecordingSink(), 1, 0)
	r.Subscribe(1, first)
	r.Subscribe(1, second)
	p.OnConnectionAdded(1, user(10))
	p.OnConnectionAdded(1, user(10))

	r.Unsubscribe(1, first)
	if p.OnConnectionRemoved(1, user(10), r) {
		t.Error("user still has a connection, removal should not happen")
	}
	if got := p.Presence(1); !equalIDs(got, []int64{10}) {
		t.Errorf("Presence(1) = %v, want [10]", got)
	}

	r.Unsubscribe(1, second)
	if !p.OnConnectionRemoved(1, user(10), r) {
		t.Error("last connection gone, removal should happen")
	}
	if p.OnConnectionRemoved(1, user(10), r) {
		t.Error("removing an absent user should report nothing")
	}
	if got := p.Presence(1); len(got) != 0 {
		t.Errorf("Presence(1) = %v, want empty", got)
	}
}

func TestPresenceTracker_RemovedIgnoresOtherUsers(t *testing.T) {
	p := NewPresenceTracker()
	r := NewRegistry()
	r.Subscribe(1, newConnection("other", 1, user(11), newRecordingSink(), 1, 0))
	r.Subscribe(1, newConnection("anon", 1, nil, newRecordingSink(), 1, 0))
	p.OnConnectionAdded(1, user(10))
	p.OnConnectionAdded(1, user(11))

	if !p.OnConnectionRemoved(1, user(10), r) {
		t.Error("user 10 has no connection left and should be removed")
	}
	if p.OnConnectionRemoved(1, nil, r) {
		t.Error("anonymous removal should report nothing")
	}
	if got := p.Presence(1); !equalIDs(got, []int64{11}) {
		t.Errorf("Presence(1) = %v, want [11]", got)
	}
}

func TestPresenceTracker_PresenceIsSorted(t *testing.T) {
	p := NewPresenceTracker()
	for _, id := range []int64{30, 10, 20} {
		p.OnConnectionAdded(5, user(id))
	}
	if got := p.Presence(5); !equalIDs(got, []int64{10, 20, 30}) {
		t.Errorf("Presence(5) = %v, want [10 20 30]", got)
	}
	if got := p.Count(); got != 3 {
		t.Errorf("Count() = %d, want 3", got)
	}
}

func TestPresenceTracker_UnknownDocument(t *testing.T) {
	p := NewPresenceTracker()
	got := p.Presence(404)
	if got == nil || len(got) != 0 {
		t.Errorf("Presence(404) = %#v, want empty non-nil slice", got)
	}
}
