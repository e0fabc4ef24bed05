// README: Dispatch fanout: eligibility filter, realtime push, external notify.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"housecall/internal/gateway"
	"housecall/internal/modules/directory"
	"housecall/internal/modules/order"
	"housecall/internal/notify"
	"housecall/internal/types"
)

// Directory is the external eligibility record, read-only to the core. It
// may change between calls; each fanout reads it fresh.
type Directory interface {
	ListEligible(ctx context.Context, city, district string) ([]*directory.Medic, error)
}

// Publisher is the realtime push surface the fanout writes to.
type Publisher interface {
	PublishUser(ctx context.Context, userID types.ID, f gateway.ServerFrame)
}

type Service struct {
	dir           Directory
	hub           Publisher
	notifier      notify.Notifier
	notifyTimeout time.Duration
	log           *zap.Logger
}

func NewService(dir Directory, hub Publisher, notifier notify.Notifier, notifyTimeout time.Duration, log *zap.Logger) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{dir: dir, hub: hub, notifier: notifier, notifyTimeout: notifyTimeout, log: log}
}

var _ order.Events = (*Service)(nil)

// OrderCreated pushes the new order to every currently eligible worker.
// Best-effort only: a disconnected worker discovers it by polling.
func (s *Service) OrderCreated(ctx context.Context, o *order.Order) {
	medics, err := s.dir.ListEligible(ctx, o.City, o.District)
	if err != nil {
		s.log.Warn("fanout eligibility lookup failed", zap.String("order_id", string(o.ID)), zap.Error(err))
		return
	}
	frame := gateway.OrderFrame(gateway.FrameOrderNew, o)
	for _, m := range medics {
		s.hub.PublishUser(ctx, m.ID, frame)
		go s.notifyMedic(m, fmt.Sprintf("New %s visit in %s, %s district", o.ServiceType, o.City, o.District))
	}
	s.log.Info("order dispatched",
		zap.String("order_id", string(o.ID)),
		zap.String("city", o.City),
		zap.String("district", o.District),
		zap.Int("eligible", len(medics)))
}

// OrderAccepted retracts the order from the losing workers and tells both
// parties. The eligibility set is recomputed; workers who became eligible
// after creation simply never see a retraction for an order they never saw.
func (s *Service) OrderAccepted(ctx context.Context, o *order.Order) {
	if o.MedicID != nil {
		s.hub.PublishUser(ctx, *o.MedicID, gateway.OrderFrame(gateway.FrameOrderUpdate, o))
	}
	s.hub.PublishUser(ctx, o.ClientID, gateway.OrderFrame(gateway.FrameOrderUpdate, o))

	medics, err := s.dir.ListEligible(ctx, o.City, o.District)
	if err != nil {
		s.log.Warn("retract eligibility lookup failed", zap.String("order_id", string(o.ID)), zap.Error(err))
		return
	}
	removed := gateway.OrderRemovedFrame(string(o.ID))
	for _, m := range medics {
		if o.MedicID != nil && m.ID == *o.MedicID {
			continue
		}
		s.hub.PublishUser(ctx, m.ID, removed)
	}
}

// OrderUpdated pushes a status change to both parties.
func (s *Service) OrderUpdated(ctx context.Context, o *order.Order) {
	frame := gateway.OrderFrame(gateway.FrameOrderUpdate, o)
	s.hub.PublishUser(ctx, o.ClientID, frame)
	if o.MedicID != nil {
		s.hub.PublishUser(ctx, *o.MedicID, frame)
	}
}

func (s *Service) notifyMedic(m *directory.Medic, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
	defer cancel()
	if err := s.notifier.Notify(ctx, m, text); err != nil {
		s.log.Warn("notify failed", zap.String("medic_id", string(m.ID)), zap.Error(err))
	}
}
