package observable

import (
	"reflect"
	"sync"
	"testing"
)

func TestValue_GetSet(t *testing.T) {
	v := NewValue("idle")

	if got := v.Get(); got != "idle" {
		t.Errorf("Get() = %q, want idle", got)
	}

	v.Set("connected")
	if got := v.Get(); got != "connected" {
		t.Errorf("Get() = %q, want connected", got)
	}
}

func TestValue_SubscribeReceivesCurrentThenUpdates(t *testing.T) {
	v := NewValue(1)
	v.Set(2)

	var got []int
	unsub := v.Subscribe(func(n int) { got = append(got, n) })
	defer unsub()

	v.Set(3)
	v.Set(3)

	want := []int{2, 3, 3}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("notifications = %v, want %v", got, want)
	}
}

func TestValue_NotifyOrder(t *testing.T) {
	v := NewValue(0)

	var order []string
	v.Subscribe(func(int) { order = append(order, "a") })
	v.Subscribe(func(int) { order = append(order, "b") })
	order = nil

	v.Set(1)

	if !reflect.DeepEqual(order, []string{"a", "b"}) {
		t.Errorf("order = %v, want [a b]", order)
	}
}

func TestValue_Unsubscribe(t *testing.T) {
	v := NewValue(0)

	calls := 0
	unsub := v.Subscribe(func(int) { calls++ })
	unsub()
	unsub()

	v.Set(1)

	if calls != 1 {
		t.Errorf("calls = %d, want 1 (initial only)", calls)
	}
	if n := v.Subscribers(); n != 0 {
		t.Errorf("Subscribers() = %d, want 0", n)
	}
}

func TestValue_UnsubscribeInsideCallback(t *testing.T) {
	v := NewValue(0)

	var unsub func()
	calls := 0
	unsub = v.Subscribe(func(n int) {
		calls++
		if n == 1 {
			unsub()
		}
	})

	v.Set(1)
	v.Set(2)

	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestValue_ConcurrentSet(t *testing.T) {
	v := NewValue(0)

	var mu sync.Mutex
	seen := 0
	v.Subscribe(func(int) {
		mu.Lock()
		seen++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			v.Set(n)
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if seen != 51 {
		t.Errorf("seen = %d, want 51", seen)
	}
}
