package pump

import (
	"context"
	"errors"
	"fmt"
)

// Spec names a channel and its serial port
type Spec struct {
	Role string
	Port string
}

// Bank is a set of channels opened together
type Bank struct {
	channels []*Channel
	byRole   map[string]*Channel
}

// OpenBank opens every spec in order. If any port fails to open, the channels
// already opened are closed before the error is returned.
func OpenBank(specs []Spec, opener Opener, opts Options) (*Bank, error) {
	b := &Bank{byRole: make(map[string]*Channel, len(specs))}
	for _, s := range specs {
		if _, dup := b.byRole[s.Role]; dup {
			_ = b.Close()
			return nil, fmt.Errorf("duplicate pump role %q", s.Role)
		}
		ch, err := Open(s.Port, opener, opts)
		if err != nil {
			if cerr := b.Close(); cerr != nil {
				err = errors.Join(err, cerr)
			}
			return nil, fmt.Errorf("%s pump: %w", s.Role, err)
		}
		b.channels = append(b.channels, ch)
		b.byRole[s.Role] = ch
	}
	return b, nil
}

// WithBank opens a bank, runs fn and closes every opened channel afterwards,
// whether fn returns normally, with an error, or panics.
func WithBank(specs []Spec, opener Opener, opts Options, fn func(*Bank) error) (err error) {
	b, err := OpenBank(specs, opener, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := b.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	return fn(b)
}

// Channel returns the channel opened for role, or nil
func (b *Bank) Channel(role string) *Channel {
	return b.byRole[role]
}

// Channels returns the channels in opening order
func (b *Bank) Channels() []*Channel {
	return append([]*Channel(nil), b.channels...)
}

// StopAll sends STP to every open channel, continuing past failures.
func (b *Bank) StopAll(ctx context.Context) error {
	var errs []error
	for _, ch := range b.channels {
		if !ch.IsOpen() {
			continue
		}
		if err := ch.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every channel in reverse opening order, continuing past failures.
func (b *Bank) Close() error {
	var errs []error
	for i := len(b.channels) - 1; i >= 0; i-- {
		if err := b.channels[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
