package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTransition(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		name  string
		state FeedState
		event FeedEvent
		want  FeedState
	}{
		{"fetch from loading stays loading", FeedLoading{}, FetchStarted{}, FeedLoading{}},
		{"page with entries becomes ready", FeedLoading{}, PageLoaded{Count: 5}, FeedReady{Remaining: 5}},
		{"empty page becomes exhausted", FeedLoading{}, PageLoaded{Count: 0}, FeedExhausted{}},
		{"vote consumes one entry", FeedReady{Remaining: 3}, VoteConsumed{}, FeedReady{Remaining: 2}},
		{"last vote exhausts the feed", FeedReady{Remaining: 1}, VoteConsumed{}, FeedExhausted{}},
		{"vote in exhausted is ignored", FeedExhausted{}, VoteConsumed{}, FeedExhausted{}},
		{"fetch failure becomes error", FeedLoading{}, FetchFailed{Err: errBoom}, FeedError{Err: errBoom}},
		{"retry from error loads", FeedError{Err: errBoom}, RetryRequested{}, FeedLoading{}},
		{"repoll from exhausted loads", FeedExhausted{}, RetryRequested{}, FeedLoading{}},
		{"retry while ready is ignored", FeedReady{Remaining: 2}, RetryRequested{}, FeedReady{Remaining: 2}},
		{"new page replaces ready state", FeedReady{Remaining: 1}, PageLoaded{Count: 10}, FeedReady{Remaining: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Transition(tt.state, tt.event))
		})
	}
}

func TestFeedMachine_DrivesStatesThroughEventLoop(t *testing.T) {
	var mu sync.Mutex
	var states []FeedState
	machine := NewFeedMachine(func(s FeedState) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go machine.Run(ctx)

	machine.Send(PageLoaded{Count: 2})
	machine.Send(VoteConsumed{})
	machine.Send(VoteConsumed{})
	machine.Send(RetryRequested{})

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) == 4
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []FeedState{
		FeedReady{Remaining: 2},
		FeedReady{Remaining: 1},
		FeedExhausted{},
		FeedLoading{},
	}, states)
}
