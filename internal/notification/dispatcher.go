package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go-leave/internal/events"

	"go.uber.org/zap"
)

type Contact struct {
	Name    string
	Address string
}

// IdentityLookup resolves the person a leave belongs to.
type IdentityLookup interface {
	LookupContact(ctx context.Context, userID string) (Contact, error)
}

// Dispatcher turns lifecycle events into messages for the leave owner.
// Lookup and delivery failures are logged and reported but never retried here.
type Dispatcher struct {
	identities IdentityLookup
	notifier   Notifier
	logger     *zap.Logger
}

func NewDispatcher(identities IdentityLookup, notifier Notifier, logger ...*zap.Logger) *Dispatcher {
	l := zap.L().Named("notification.dispatcher")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("notification.dispatcher")
	}
	return &Dispatcher{identities: identities, notifier: notifier, logger: l}
}

func (d *Dispatcher) Dispatch(ctx context.Context, event events.LeaveLifecycleEvent) error {
	subject, outcome, ok := describe(event.EventType)
	if !ok {
		d.logger.Warn("unknown leave event type, skipping", zap.String("event_type", event.EventType))
		return nil
	}

	contact, err := d.identities.LookupContact(ctx, event.UserID)
	if err != nil {
		d.logger.Warn("leave notification skipped, contact lookup failed",
			zap.String("leave_id", event.LeaveID),
			zap.String("user_id", event.UserID),
			zap.Error(err),
		)
		return nil
	}

	body := renderBody(contact.Name, outcome, event)
	if err := d.notifier.Notify(ctx, contact.Address, subject, body); err != nil {
		d.logger.Error("leave notification failed",
			zap.String("leave_id", event.LeaveID),
			zap.String("event_type", event.EventType),
			zap.Error(err),
		)
		return fmt.Errorf("notify %s: %w", event.EventType, err)
	}

	d.logger.Info("leave notification sent",
		zap.String("leave_id", event.LeaveID),
		zap.String("event_type", event.EventType),
	)
	return nil
}

func describe(eventType string) (subject, outcome string, ok bool) {
	switch eventType {
	case events.LeaveSubmitted:
		return "Leave Application Submitted", "submitted and is pending approval", true
	case events.LeaveApproved:
		return "Leave Application Approved", "Approved", true
	case events.LeaveRejected:
		return "Leave Application Rejected", "Rejected", true
	case events.LeaveCancelled:
		return "Leave Application Cancelled", "cancelled", true
	default:
		return "", "", false
	}
}

func renderBody(name, outcome string, event events.LeaveLifecycleEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", name)
	fmt.Fprintf(&b, "Your leave application from %s to %s has been %s.\n\n", event.StartDate, event.EndDate, outcome)
	fmt.Fprintf(&b, "Reason: %s\n", event.Reason)
	fmt.Fprintf(&b, "Type: %s\n", event.LeaveType)
	return b.String()
}

// AsyncDispatcher runs dispatches in the background, detached from the
// caller's cancellation and bounded by timeout. Wait blocks until all
// in-flight dispatches finished.
type AsyncDispatcher struct {
	dispatcher *Dispatcher
	timeout    time.Duration
	wg         sync.WaitGroup
}

func NewAsyncDispatcher(dispatcher *Dispatcher, timeout time.Duration) *AsyncDispatcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &AsyncDispatcher{dispatcher: dispatcher, timeout: timeout}
}

func (a *AsyncDispatcher) Dispatch(ctx context.Context, event events.LeaveLifecycleEvent) error {
	detached := context.WithoutCancel(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(detached, a.timeout)
		defer cancel()
		_ = a.dispatcher.Dispatch(ctx, event)
	}()
	return nil
}

func (a *AsyncDispatcher) Wait() {
	a.wg.Wait()
}
