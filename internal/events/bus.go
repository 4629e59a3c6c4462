package events

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/rs/zerolog"
)

// Listener receives the detail published under an event name. Listeners run
// on the publishing goroutine and must not block it.
type Listener[T any] interface {
	HandleEvent(name string, detail T)
}

type funcListener[T any] struct {
	fn func(name string, detail T)
}

func (f *funcListener[T]) HandleEvent(name string, detail T) {
	f.fn(name, detail)
}

// Func wraps fn as a Listener. Every call returns a distinct listener, so keep
// the returned value to unsubscribe it later.
func Func[T any](fn func(name string, detail T)) Listener[T] {
	return &funcListener[T]{fn: fn}
}

type subscribeOptions struct {
	once bool
}

type SubscribeOption func(*subscribeOptions)

// Once removes the listener after its first delivery.
func Once() SubscribeOption {
	return func(o *subscribeOptions) { o.once = true }
}

type subscription[T any] struct {
	listener Listener[T]
	once     bool
}

// Dispatcher is a publish/subscribe registry keyed by event name.
type Dispatcher[T any] struct {
	mu          sync.Mutex
	subscribers map[string][]*subscription[T]
	log         zerolog.Logger
}

func NewDispatcher[T any](log *zerolog.Logger) *Dispatcher[T] {
	d := &Dispatcher[T]{
		subscribers: map[string][]*subscription[T]{},
		log:         zerolog.Nop(),
	}
	if log != nil {
		d.log = *log
	}
	return d
}

// Subscribe registers listener under name. The listener value must be
// comparable so it can be found again; a listener holding a slice, map or
// func by value is refused. Use a pointer or Func instead.
func (d *Dispatcher[T]) Subscribe(name string, listener Listener[T], opts ...SubscribeOption) {
	if listener == nil {
		return
	}
	if !reflect.ValueOf(listener).Comparable() {
		d.log.Warn().
			Str("event", name).
			Str("listener", fmt.Sprintf("%T", listener)).
			Msg("Refusing listener that cannot be compared")
		return
	}
	var o subscribeOptions
	for _, opt := range opts {
		opt(&o)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, sub := range d.subscribers[name] {
		if sameListener(sub.listener, listener) {
			return
		}
	}
	d.subscribers[name] = append(d.subscribers[name], &subscription[T]{listener: listener, once: o.once})
}

func (d *Dispatcher[T]) Unsubscribe(name string, listener Listener[T]) {
	if listener == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	subs := d.subscribers[name]
	for i, sub := range subs {
		if sameListener(sub.listener, listener) {
			d.removeLocked(name, i)
			return
		}
	}
}

// Publish delivers detail to the listeners registered under name when Publish
// was called, in registration order. A panicking listener is logged and does
// not stop delivery to the rest.
func (d *Dispatcher[T]) Publish(name string, detail T) {
	d.mu.Lock()
	snapshot := append([]*subscription[T](nil), d.subscribers[name]...)
	d.mu.Unlock()

	for _, sub := range snapshot {
		if !d.claim(name, sub) {
			continue
		}
		d.invoke(name, sub.listener, detail)
	}
}

// claim reports whether sub is still registered, removing it first when it is
// a one-shot subscription.
func (d *Dispatcher[T]) claim(name string, sub *subscription[T]) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, cur := range d.subscribers[name] {
		if cur != sub {
			continue
		}
		if sub.once {
			d.removeLocked(name, i)
		}
		return true
	}
	return false
}

func (d *Dispatcher[T]) invoke(name string, listener Listener[T], detail T) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().
				Str("event", name).
				Str("panic", fmt.Sprint(r)).
				Msg("Event listener panicked")
		}
	}()
	listener.HandleEvent(name, detail)
}

func (d *Dispatcher[T]) Len(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subscribers[name])
}

func (d *Dispatcher[T]) removeLocked(name string, i int) {
	subs := d.subscribers[name]
	subs = append(subs[:i:i], subs[i+1:]...)
	if len(subs) == 0 {
		delete(d.subscribers, name)
		return
	}
	d.subscribers[name] = subs
}

func sameListener[T any](a, b Listener[T]) bool {
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	if !reflect.ValueOf(a).Comparable() || !reflect.ValueOf(b).Comparable() {
		return false
	}
	return a == b
}
