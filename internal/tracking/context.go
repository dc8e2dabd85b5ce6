package tracking

import "context"

type emitterKey struct{}

// WithEmitter returns a copy of ctx carrying em for code that instruments
// itself by hand.
func WithEmitter(ctx context.Context, em Emitter) context.Context {
	return context.WithValue(ctx, emitterKey{}, em)
}

// FromContext returns the emitter stored in ctx, or one that discards
// everything.
func FromContext(ctx context.Context) Emitter {
	if em, ok := ctx.Value(emitterKey{}).(Emitter); ok && em != nil {
		return em
	}
	return noopEmitter{}
}
