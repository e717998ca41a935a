package agent

import (
	"context"

	"pokeagent/internal/broker"
)

// Unify merges inbound deliveries and acknowledgement requests into one
// stream. The stream closes when deliveries closes or ctx is done; an
// emitter with nothing pending never ends it. Tokens taken but not sent
// before that are put back on the emitter.
func Unify(ctx context.Context, deliveries <-chan broker.Delivery, acks *AckEmitter) <-chan Event {
	out := make(chan Event)

	go func() {
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				return

			case d, ok := <-deliveries:
				if !ok {
					return
				}
				ev := Event{Kind: EventInbound, Delivery: d, Token: d.Token}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}

			case <-acks.Ready():
				tokens := acks.TakeAll()
				for i, token := range tokens {
					select {
					case out <- Event{Kind: EventAck, Token: token}:
					case <-ctx.Done():
						acks.requeue(tokens[i:])
						return
					}
				}
			}
		}
	}()

	return out
}
