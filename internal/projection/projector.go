// Package projection implements the recipe every downstream service uses to
// keep an eventually-consistent local cache of remote entities: subscribe to
// the upstream topics under a dedicated group id, upsert on create/update,
// delete-if-exists on delete. Handlers are idempotent, so redelivery and
// full-history rebuilds converge to the same cache.
package projection

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/example/ec-fulfillment/internal/event"
	"github.com/example/ec-fulfillment/internal/infrastructure/kafka"
	"github.com/example/ec-fulfillment/internal/infrastructure/store"
	"github.com/example/ec-fulfillment/internal/readmodel"
)

// Projector maintains one service's product and user caches. Request
// handling code only ever reads these caches; it never writes them and never
// calls the owning service at request time.
type Projector struct {
	cache store.CacheStore
}

func NewProjector(cache store.CacheStore) *Projector {
	return &Projector{cache: cache}
}

// Handler adapts the projector to the consumer's raw message contract.
func (p *Projector) Handler() kafka.MessageHandler {
	return kafka.DecodeEnvelope(p.HandleEnvelope)
}

// HandleEnvelope routes one envelope. Event types this projector does not
// recognize are ignored, not errored: topics may grow new types before
// consumers learn about them.
func (p *Projector) HandleEnvelope(ctx context.Context, key string, env event.Envelope) error {
	switch env.Type {
	case event.TypeProductCreated, event.TypeProductUpdated:
		return p.upsertProduct(ctx, env)
	case event.TypeProductDeleted:
		return p.deleteProduct(ctx, env)
	case event.TypeUserCreated, event.TypeUserUpdated:
		return p.upsertUser(ctx, env)
	case event.TypeUserDeleted:
		return p.deleteUser(ctx, env)
	default:
		return nil
	}
}

func (p *Projector) upsertProduct(ctx context.Context, env event.Envelope) error {
	var payload event.Product
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}

	cached := &readmodel.ProductCache{
		ID:              payload.ID,
		SKU:             payload.SKU,
		Name:            payload.Name,
		PrimaryImageURL: payload.PrimaryImageURL,
		Categories:      payload.Categories,
		UpdatedAt:       env.Timestamp,
	}
	for _, v := range payload.Variants {
		cached.Variants = append(cached.Variants, readmodel.VariantCache{
			ID:    v.ID,
			SKU:   v.SKU,
			Price: v.Price,
			Stock: v.Stock,
		})
	}

	log.Debug().Str("productId", payload.ID).Str("type", env.Type).Msg("product cache upsert")
	return p.cache.UpsertProduct(ctx, cached)
}

func (p *Projector) deleteProduct(ctx context.Context, env event.Envelope) error {
	var payload event.Product
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}
	// Absence is not an error: the delete may have raced a rebuild.
	return p.cache.DeleteProduct(ctx, payload.ID)
}

func (p *Projector) upsertUser(ctx context.Context, env event.Envelope) error {
	var payload event.User
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}
	return p.cache.UpsertUser(ctx, &readmodel.UserCache{
		ID:           payload.ID,
		Name:         payload.Name,
		Email:        payload.Email,
		ProfileImage: payload.ProfileImage,
		UpdatedAt:    env.Timestamp,
	})
}

func (p *Projector) deleteUser(ctx context.Context, env event.Envelope) error {
	var payload event.User
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}
	return p.cache.DeleteUser(ctx, payload.ID)
}
