package queue

import "context"

// The voting feed is modeled as an explicit finite-state machine: the client
// sees exactly one of Loading, Ready, Exhausted, or Error, and every change
// goes through the pure Transition function driven by typed events.

// --- States ---

type FeedState interface{ feedState() }

type FeedLoading struct{}

func (FeedLoading) feedState() {}

type FeedReady struct {
	// Remaining is the number of unvoted entries left on the issued page.
	Remaining int
}

func (FeedReady) feedState() {}

type FeedExhausted struct{}

func (FeedExhausted) feedState() {}

type FeedError struct {
	Err error
}

func (FeedError) feedState() {}

// --- Events ---

type FeedEvent interface{ feedEvent() }

// FetchStarted is emitted when a page request goes out.
type FetchStarted struct{}

func (FetchStarted) feedEvent() {}

// PageLoaded is emitted when a page request returns Count entries.
type PageLoaded struct {
	Count int
}

func (PageLoaded) feedEvent() {}

// VoteConsumed is emitted after a successful cast consumes one entry.
type VoteConsumed struct{}

func (VoteConsumed) feedEvent() {}

// FetchFailed is emitted when a page request fails.
type FetchFailed struct {
	Err error
}

func (FetchFailed) feedEvent() {}

// RetryRequested is emitted when the client retries after an error or
// re-polls an exhausted feed.
type RetryRequested struct{}

func (RetryRequested) feedEvent() {}

// Transition is the pure state function. Events that make no sense in the
// current state leave it unchanged.
func Transition(state FeedState, event FeedEvent) FeedState {
	switch ev := event.(type) {
	case FetchStarted:
		return FeedLoading{}

	case PageLoaded:
		if ev.Count == 0 {
			return FeedExhausted{}
		}
		return FeedReady{Remaining: ev.Count}

	case VoteConsumed:
		ready, ok := state.(FeedReady)
		if !ok {
			return state
		}
		if ready.Remaining <= 1 {
			return FeedExhausted{}
		}
		return FeedReady{Remaining: ready.Remaining - 1}

	case FetchFailed:
		return FeedError{Err: ev.Err}

	case RetryRequested:
		switch state.(type) {
		case FeedError, FeedExhausted:
			return FeedLoading{}
		}
		return state

	default:
		return state
	}
}

// FeedMachine runs the state machine as a small event loop. All state access
// goes through the loop goroutine; OnChange observes each new state.
type FeedMachine struct {
	events   chan FeedEvent
	onChange func(FeedState)
}

func NewFeedMachine(onChange func(FeedState)) *FeedMachine {
	return &FeedMachine{
		events:   make(chan FeedEvent, 64),
		onChange: onChange,
	}
}

// Send enqueues an event. It never blocks the caller's interaction path; if
// the buffer is full the event is dropped and the next fetch resynchronizes.
func (m *FeedMachine) Send(event FeedEvent) {
	select {
	case m.events <- event:
	default:
	}
}

// Run drives the loop until ctx is cancelled, starting from Loading.
func (m *FeedMachine) Run(ctx context.Context) {
	state := FeedState(FeedLoading{})
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-m.events:
			next := Transition(state, ev)
			if next != state {
				state = next
				if m.onChange != nil {
					m.onChange(state)
				}
			}
		}
	}
}
