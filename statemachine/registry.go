package statemachine

import "fmt"

// HandlerRegistry resolves the handler names a Config declares into
// code. Hosts register their handlers once, by name, and BuildTree looks
// them up while assembling states. Registration is fluent:
//
//	registry := NewHandlerRegistry[Msg, Data]().
//		RegisterMessage("doors.onMessage", onDoorMessage).
//		RegisterTransition("doors.onEnter", onDoorEnter).
//		RegisterInitial("doors.initial", pickDoor)
type HandlerRegistry[M, D any] struct {
	messages    map[string]MessageHandler[M, D]
	transitions map[string]TransitionHandler[D]
	initials    map[string]InitialTransition[D]
}

// NewHandlerRegistry creates an empty registry.
func NewHandlerRegistry[M, D any]() *HandlerRegistry[M, D] {
	return &HandlerRegistry[M, D]{
		messages:    make(map[string]MessageHandler[M, D]),
		transitions: make(map[string]TransitionHandler[D]),
		initials:    make(map[string]InitialTransition[D]),
	}
}

// RegisterMessage registers a message handler under name, replacing any
// previous registration.
func (r *HandlerRegistry[M, D]) RegisterMessage(name string, h MessageHandler[M, D]) *HandlerRegistry[M, D] {
	r.messages[name] = h

	return r
}

// RegisterTransition registers an entry/exit handler under name,
// replacing any previous registration.
func (r *HandlerRegistry[M, D]) RegisterTransition(name string, h TransitionHandler[D]) *HandlerRegistry[M, D] {
	r.transitions[name] = h

	return r
}

// RegisterInitial registers an initial transition under name, replacing
// any previous registration.
func (r *HandlerRegistry[M, D]) RegisterInitial(name string, h InitialTransition[D]) *HandlerRegistry[M, D] {
	r.initials[name] = h

	return r
}

func (r *HandlerRegistry[M, D]) message(name string) (MessageHandler[M, D], error) {
	if name == "" {
		return nil, nil
	}

	h, ok := r.messages[name]
	if !ok {
		return nil, fmt.Errorf("%w: message handler %q", ErrUnknownHandler, name)
	}

	return h, nil
}

func (r *HandlerRegistry[M, D]) transition(name string) (TransitionHandler[D], error) {
	if name == "" {
		return nil, nil
	}

	h, ok := r.transitions[name]
	if !ok {
		return nil, fmt.Errorf("%w: transition handler %q", ErrUnknownHandler, name)
	}

	return h, nil
}

func (r *HandlerRegistry[M, D]) initial(name string) (InitialTransition[D], error) {
	if name == "" {
		return nil, nil
	}

	h, ok := r.initials[name]
	if !ok {
		return nil, fmt.Errorf("%w: initial transition %q", ErrUnknownHandler, name)
	}

	return h, nil
}

// resolveHandlers maps a HandlersConfig onto registered handlers. Empty
// names resolve to nil handlers.
func (r *HandlerRegistry[M, D]) resolveHandlers(hc HandlersConfig) (Handlers[M, D], error) {
	onMessage, err := r.message(hc.OnMessage)
	if err != nil {
		return Handlers[M, D]{}, err
	}

	onEnter, err := r.transition(hc.OnEnter)
	if err != nil {
		return Handlers[M, D]{}, err
	}

	onExit, err := r.transition(hc.OnExit)
	if err != nil {
		return Handlers[M, D]{}, err
	}

	return Handlers[M, D]{
		OnMessage: onMessage,
		OnEnter:   onEnter,
		OnExit:    onExit,
	}, nil
}
