package websocket

import (
	"context"
	"fmt"
	"hash/crc32"
	"reflect"
	"sync"

	"go.uber.org/zap"
)

// Pool spreads one venue's subscriptions across several WebSocket
// connections. Venues that cap assets per connection (200 is typical) need
// more than one session to cover a large subscribe set; the pool shards by
// key hash so a given market always lands on the same connection.
type Pool struct {
	clients     []*Client
	messageChan chan []byte
	dead        chan struct{}
	deadOnce    sync.Once
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	logger      *zap.Logger
}

// NewPool creates size clients using the factory. The factory receives the
// shard index and must return a fully populated Config.
func NewPool(size int, factory func(shard int) Config, logger *zap.Logger) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		clients: make([]*Client, size),
		ctx:     ctx,
		cancel:  cancel,
		dead:    make(chan struct{}),
		logger:  logger,
	}

	bufferTotal := 0
	for i := range size {
		cfg := factory(i)
		cfg.Logger = cfg.Logger.With(zap.Int("shard", i))
		pool.clients[i] = NewClient(cfg)
		bufferTotal += cfg.MessageBufferSize
	}
	pool.messageChan = make(chan []byte, bufferTotal)

	return pool
}

// Start starts all clients concurrently and begins multiplexing frames.
func (p *Pool) Start() error {
	p.logger.Info("websocket-pool-starting", zap.Int("pool-size", len(p.clients)))

	errChan := make(chan error, len(p.clients))
	var startWg sync.WaitGroup

	for i, cl := range p.clients {
		startWg.Add(1)
		go func(shard int, client *Client) {
			defer startWg.Done()

			err := client.Start()
			if err != nil {
				p.logger.Error("shard-start-failed",
					zap.Int("shard", shard),
					zap.Error(err))
				errChan <- fmt.Errorf("shard %d start failed: %w", shard, err)
			}
		}(i, cl)
	}

	startWg.Wait()
	close(errChan)

	var startErrors []error
	for err := range errChan {
		startErrors = append(startErrors, err)
	}

	if len(startErrors) > 0 {
		return fmt.Errorf("failed to start %d shards: %v", len(startErrors), startErrors)
	}

	p.wg.Add(2)
	go p.multiplexFrames()
	go p.watchDead()

	p.logger.Info("websocket-pool-started", zap.Int("active-shards", len(p.clients)))

	return nil
}

// ShardFor returns the index of the shard owning the given key. Keys are
// stable across the pool's lifetime, so subscribe and unsubscribe frames
// for one market always hit the same connection.
func (p *Pool) ShardFor(key string) int {
	hash := crc32.ChecksumIEEE([]byte(key))
	return int(hash) % len(p.clients)
}

// ClientFor returns the shard owning the given key.
func (p *Pool) ClientFor(key string) *Client {
	return p.clients[p.ShardFor(key)]
}

// ClientAt returns the shard at index i.
func (p *Pool) ClientAt(i int) *Client {
	return p.clients[i]
}

// Clients returns all shards, for broadcast-style frames.
func (p *Pool) Clients() []*Client {
	return p.clients
}

// MessageChan returns the multiplexed frame channel covering every shard.
func (p *Pool) MessageChan() <-chan []byte {
	return p.messageChan
}

// Dead is closed when any shard exhausts its reconnect budget. Partial
// coverage counts as a dead venue stream; the polling path takes over.
func (p *Pool) Dead() <-chan struct{} {
	return p.dead
}

// Close gracefully closes every shard.
func (p *Pool) Close() error {
	p.logger.Info("closing-websocket-pool")

	p.cancel()

	var closeWg sync.WaitGroup
	for i, cl := range p.clients {
		closeWg.Add(1)
		go func(shard int, client *Client) {
			defer closeWg.Done()

			err := client.Close()
			if err != nil {
				p.logger.Error("shard-close-failed",
					zap.Int("shard", shard),
					zap.Error(err))
			}
		}(i, cl)
	}

	closeWg.Wait()
	p.wg.Wait()

	close(p.messageChan)

	p.logger.Info("websocket-pool-closed")

	return nil
}

// multiplexFrames forwards frames from all shards onto one channel.
func (p *Pool) multiplexFrames() {
	defer p.wg.Done()

	cases := make([]reflect.SelectCase, len(p.clients)+1)

	cases[0] = reflect.SelectCase{
		Dir:  reflect.SelectRecv,
		Chan: reflect.ValueOf(p.ctx.Done()),
	}

	for i, cl := range p.clients {
		cases[i+1] = reflect.SelectCase{
			Dir:  reflect.SelectRecv,
			Chan: reflect.ValueOf(cl.MessageChan()),
		}
	}

	for {
		chosen, value, ok := reflect.Select(cases)

		if chosen == 0 {
			p.logger.Info("frame-multiplexer-stopped")
			return
		}

		if !ok {
			// Shard channel closed; park a never-ready channel in its slot.
			p.logger.Warn("shard-channel-closed", zap.Int("shard", chosen-1))
			cases[chosen].Chan = reflect.ValueOf(make(chan []byte))
			continue
		}

		frame, ok := value.Interface().([]byte)
		if !ok {
			continue
		}

		select {
		case p.messageChan <- frame:
		default:
			p.logger.Warn("dropped-frame-from-multiplexer",
				zap.Int("shard", chosen-1))
		}
	}
}

// watchDead closes the pool's dead channel when any shard dies.
func (p *Pool) watchDead() {
	defer p.wg.Done()

	cases := make([]reflect.SelectCase, len(p.clients)+1)

	cases[0] = reflect.SelectCase{
		Dir:  reflect.SelectRecv,
		Chan: reflect.ValueOf(p.ctx.Done()),
	}

	for i, cl := range p.clients {
		cases[i+1] = reflect.SelectCase{
			Dir:  reflect.SelectRecv,
			Chan: reflect.ValueOf(cl.Dead()),
		}
	}

	chosen, _, _ := reflect.Select(cases)
	if chosen == 0 {
		return
	}

	p.logger.Error("shard-died", zap.Int("shard", chosen-1))
	p.deadOnce.Do(func() {
		close(p.dead)
	})
}
