// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package prober

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// pollInterval bounds how long a read loop blocks before rechecking for close.
const pollInterval = 200 * time.Millisecond

// reply is a packet routed to a waiting request, with the message its
// classifier already decoded.
type reply[M any] struct {
	Packet
	Msg M
}

// classifier extracts the routing key from a packet. Packets it rejects are
// dropped.
type classifier[K comparable, M any] func(Packet) (K, M, bool)

// demux owns the read loops of one or more Transports and routes each reply
// to the request registered under its key.
type demux[K comparable, M any] struct {
	logger zerolog.Logger

	mu      sync.Mutex
	waiters map[K]chan reply[M]
	closed  bool

	done chan struct{}
	wg   sync.WaitGroup
}

var errKeyInUse = errors.New("reply key already in use")

func newDemux[K comparable, M any](logger zerolog.Logger) *demux[K, M] {
	return &demux[K, M]{
		logger:  logger,
		waiters: make(map[K]chan reply[M]),
		done:    make(chan struct{}),
	}
}

// attach starts a read loop over tr.
func (d *demux[K, M]) attach(tr Transport, classify classifier[K, M]) {
	d.wg.Add(1)
	go d.loop(tr, classify)
}

func (d *demux[K, M]) loop(tr Transport, classify classifier[K, M]) {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			return
		default:
		}

		pkt, err := tr.Receive(time.Now().Add(pollInterval))
		if err != nil {
			if isTimeout(err) {
				continue
			}
			select {
			case <-d.done:
				return
			default:
			}
			d.logger.Debug().Err(err).Msg("transport receive failed")
			// Back off before retrying a failing socket.
			select {
			case <-d.done:
				return
			case <-time.After(pollInterval):
			}
			continue
		}

		key, msg, ok := classify(pkt)
		if !ok {
			continue
		}
		d.deliver(key, reply[M]{Packet: pkt, Msg: msg})
	}
}

func (d *demux[K, M]) deliver(key K, r reply[M]) {
	d.mu.Lock()
	ch, ok := d.waiters[key]
	d.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- r:
	default:
		// Waiter is not draining; drop.
	}
}

// register reserves key and returns the channel its replies arrive on.
// release must be called once the request is finished.
func (d *demux[K, M]) register(key K) (<-chan reply[M], func(), error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, nil, ErrClosed
	}
	if _, busy := d.waiters[key]; busy {
		return nil, nil, fmt.Errorf("%w: %v", errKeyInUse, key)
	}
	ch := make(chan reply[M], 4)
	d.waiters[key] = ch
	release := func() {
		d.mu.Lock()
		if d.waiters[key] == ch {
			delete(d.waiters, key)
		}
		d.mu.Unlock()
	}
	return ch, release, nil
}

// close stops the read loops. The transports must be closed by the caller
// after close returns or concurrently with it.
func (d *demux[K, M]) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	close(d.done)
	d.wg.Wait()
}
