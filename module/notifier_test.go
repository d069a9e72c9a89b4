package module

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

// TestNotifier_PassByValue verifies that passing Notifier by value is safe
func TestNotifier_PassByValue(t *testing.T) {
	t.Parallel()
	notifier := NewNotifier()

	var sent sync.WaitGroup
	sent.Add(1)
	go func(n Notifier) {
		n.Notify()
		sent.Done()
	}(notifier)
	sent.Wait()

	select {
	case <-notifier.Channel(): // expected
	default:
		t.Fail()
	}
}

func TestNotifier_NoNotificationsInitialization(t *testing.T) {
	t.Parallel()
	notifier := NewNotifier()
	select {
	case <-notifier.Channel():
		t.Fail()
	default: // expected
	}
}

// TestNotifier_ManyNotifications checks that any number of notifications
// collapse into a single pending one.
func TestNotifier_ManyNotifications(t *testing.T) {
	t.Parallel()
	notifier := NewNotifier()

	var counter sync.WaitGroup
	for i := 0; i < 10; i++ {
		counter.Add(1)
		go func() {
			defer counter.Done()
			notifier.Notify()
		}()
	}
	counter.Wait()

	c := notifier.Channel()
	select {
	case <-c: // expected
	default:
		t.Error("expected one notification to be available")
	}
	select {
	case <-c:
		t.Error("expected only one notification to be available")
	default: // expected
	}
}

// TestNotifier_AllWorkProcessed spans many routines pushing work and fewer
// routines consuming work. All work must eventually be processed.
func TestNotifier_AllWorkProcessed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	notifier := NewNotifier()

	producerCount := int32(10)
	producerJobs := int32(10)
	pendingWorkQueue := make(chan struct{}, producerCount*producerJobs)
	consumedWork := atomic.NewInt32(0)

	processAllPending := func() {
		for {
			select {
			case <-pendingWorkQueue:
				consumedWork.Inc()
			default:
				return
			}
		}
	}

	for i := 0; i < 5; i++ {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-notifier.Channel():
					processAllPending()
				}
			}
		}()
	}

	for i := int32(0); i < producerCount; i++ {
		go func() {
			for j := int32(0); j < producerJobs; j++ {
				pendingWorkQueue <- struct{}{}
				notifier.Notify()
			}
		}()
	}

	require.Eventually(t, func() bool {
		return consumedWork.Load() == producerCount*producerJobs
	}, 5*time.Second, 10*time.Millisecond)
	assert.Empty(t, pendingWorkQueue)
}
