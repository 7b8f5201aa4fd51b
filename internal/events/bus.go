package events

import (
	"github.com/kelindar/event"
)

// Bus fans camera events out to in-process subscribers on top of a
// kelindar/event dispatcher. Delivery is asynchronous.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{dispatcher: event.NewDispatcher()}
}

// route binds one concrete event type to the generic dispatcher calls.
type route struct {
	publish   func(*event.Dispatcher, Event) bool
	subscribe func(*event.Dispatcher, any) (func(), bool)
}

func routeOf[T Event]() route {
	return route{
		publish: func(d *event.Dispatcher, ev Event) bool {
			e, ok := ev.(T)
			if ok {
				event.Publish(d, e)
			}
			return ok
		},
		subscribe: func(d *event.Dispatcher, handler any) (func(), bool) {
			h, ok := handler.(func(T))
			if !ok {
				return nil, false
			}
			return event.Subscribe(d, h), true
		},
	}
}

var routes = map[uint32]route{
	TypeSessionStateChanged: routeOf[SessionStateChangedEvent](),
	TypePreviewRequest:      routeOf[PreviewRequestEvent](),
	TypePhotoCaptured:       routeOf[PhotoCapturedEvent](),
	TypePhotoFailed:         routeOf[PhotoFailedEvent](),
	TypeSensorSwitched:      routeOf[SensorSwitchedEvent](),
	TypeListenerFailed:      routeOf[ListenerFailedEvent](),
	TypeLogEntry:            routeOf[LogEntryEvent](),
}

// Publish delivers ev to the subscribers of its concrete type. Unknown
// types are dropped.
func (b *Bus) Publish(ev Event) {
	if r, ok := routes[ev.Type()]; ok {
		r.publish(b.dispatcher, ev)
	}
}

// Subscribe registers handler, a func taking one event type such as
// func(PhotoCapturedEvent). It returns the unsubscribe function, a no-op
// for handler shapes the bus does not carry.
func (b *Bus) Subscribe(handler any) func() {
	for _, r := range routes {
		if unsub, ok := r.subscribe(b.dispatcher, handler); ok {
			return unsub
		}
	}
	return func() {}
}

// SubscribeToChannel forwards events of type T into ch for select-loop
// consumers such as the SSE handler. Events are dropped when ch is full.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
