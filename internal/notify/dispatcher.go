package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"alcyxob/askexpert/internal/domain"

	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

// Dispatcher sends notifications without holding up the caller.
// A send outlives the request that triggered it; its failure is only logged.
type Dispatcher struct {
	sender  Sender
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewDispatcher wraps sender. A non-positive timeout falls back to 10s.
func NewDispatcher(sender Sender, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Dispatcher{
		sender:  sender,
		timeout: timeout,
		logger:  logger.Named("notify"),
	}
}

// Notify starts the send in the background and returns immediately.
func (d *Dispatcher) Notify(n domain.AnswerNotification) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		// Detached from the request context on purpose: the answer already exists.
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.send(ctx, n); err != nil {
			nerr := &domain.NotificationError{AnswerID: n.AnswerID.Hex(), Err: err}
			d.logger.Warn("answer notification failed",
				zap.String("questionId", n.QuestionID.Hex()),
				zap.Error(nerr),
			)
		}
	}()
}

func (d *Dispatcher) send(ctx context.Context, n domain.AnswerNotification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sender panicked: %v", r)
		}
	}()
	return d.sender.Send(ctx, n)
}

// Shutdown waits for in-flight sends or until ctx is done.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
