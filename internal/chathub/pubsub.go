package chathub

import (
	"context"
	"encoding/json"
	"log"
)

// DeliveryBus carries user deliveries between server nodes. Subscribe
// returns the payload stream and a func that ends the subscription and
// closes the stream.
type DeliveryBus interface {
	PublishUserDelivery(payload []byte) error
	SubscribeUserDeliveries(ctx context.Context) (<-chan []byte, func() error)
}

// StartBusListener subscribes to the delivery channel and hands every
// delivery to the local connections until ctx is done.
func (d *ClientDirectory) StartBusListener(ctx context.Context) {
	if d.bus == nil {
		return
	}
	payloads, unsubscribe := d.bus.SubscribeUserDeliveries(ctx)
	go func() {
		defer func() {
			if err := unsubscribe(); err != nil {
				log.Printf("WARNING: Failed to close delivery subscription: %v", err)
			}
		}()
		d.ListenDeliveries(ctx, payloads)
	}()
}

// ListenDeliveries decodes deliveries from ch until it is closed or ctx is
// done.
func (d *ClientDirectory) ListenDeliveries(ctx context.Context, ch <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-ch:
			if !ok {
				return
			}
			var delivery UserDelivery
			if err := json.Unmarshal(payload, &delivery); err != nil {
				log.Printf("ERROR: Failed to decode user delivery: %v", err)
				continue
			}
			d.Tell(delivery)
		}
	}
}
