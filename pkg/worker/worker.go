package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/ygrebnov/workers"

	"github.com/igor-ci/igor/pkg/build"
	"github.com/igor-ci/igor/pkg/log"
	"github.com/igor-ci/igor/pkg/order"
	"github.com/igor-ci/igor/pkg/protocol"
)

// Config holds worker configuration.
type Config struct {
	Host string
	Port int
	// Parallelism is the number of orders built concurrently; defaults to
	// the CPU count. One unit of demand is registered per slot.
	Parallelism int
}

// buildResult is what a pool task reports back to the control loop.
type buildResult struct {
	orderID string
	err     error
}

// Worker connects outward to the server, keeps one unit of demand
// outstanding per pool slot, and runs each assigned order in the pool.
type Worker struct {
	id          string
	host        string
	port        int
	parallelism int

	conn     net.Conn
	writeMu  sync.Mutex
	pool     workers.Workers[buildResult]
	executor *build.Executor
	logger   zerolog.Logger
}

// NewWorker creates a worker instance.
func NewWorker(cfg *Config) *Worker {
	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	id := uuid.NewString()
	return &Worker{
		id:          id,
		host:        cfg.Host,
		port:        cfg.Port,
		parallelism: parallelism,
		executor:    build.NewExecutor(),
		logger:      log.WithComponent("worker").With().Str("worker_id", id).Logger(),
	}
}

// Run connects to the server, registers demand and processes assignments
// until the connection closes or the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	addr := net.JoinHostPort(w.host, fmt.Sprint(w.port))
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	w.conn = conn
	defer conn.Close()
	w.logger.Info().Str("addr", addr).Int("parallelism", w.parallelism).Msg("connected")

	poolCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	w.pool = workers.New[buildResult](poolCtx, &workers.Config{
		MaxWorkers: uint(w.parallelism),
	})
	w.pool.Start(poolCtx)
	go w.collectResults(poolCtx)

	context.AfterFunc(ctx, func() { conn.Close() })

	for range w.parallelism {
		if err := w.registerAssign(); err != nil {
			return err
		}
	}

	scanner := protocol.NewScanner(conn, protocol.WorkerTerminator)
	for scanner.Scan() {
		frame := scanner.Bytes()
		if len(frame) == 0 {
			continue
		}
		w.processFrame(frame)
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return ctx.Err()
}

// processFrame handles one server frame. Only order pushes matter; events
// and errors are logged and ignored.
func (w *Worker) processFrame(frame []byte) {
	var obj map[string]any
	if err := protocol.DecodeFrame(frame, &obj); err != nil {
		w.logger.Warn().Err(err).Msg("undecodable frame")
		return
	}
	orderObj, ok := obj["order"].(map[string]any)
	if !ok {
		w.logger.Debug().Interface("frame", obj).Msg("ignoring non-order frame")
		return
	}

	o := order.FromObj(orderObj)
	w.logger.Info().Str("order_id", o.ID).Str("spec_ref", o.SpecRef).Msg("received order")
	err := w.pool.AddTask(func(ctx context.Context) (buildResult, error) {
		return buildResult{orderID: o.ID, err: w.executor.Execute(o)}, nil
	})
	if err != nil {
		w.logger.Error().Err(err).Str("order_id", o.ID).Msg("pool rejected order")
		w.completeAndRefill(o.ID)
	}
}

// collectResults drains the pool. Every finished order, built or failed,
// is reported complete to the server so assignment is never leaked, and
// the freed slot re-registers demand.
func (w *Worker) collectResults(ctx context.Context) {
	results := w.pool.GetResults()
	errs := w.pool.GetErrors()
	for {
		select {
		case r := <-results:
			if r.err != nil {
				w.logger.Error().Err(r.err).Str("order_id", r.orderID).Msg("build failed")
			} else {
				w.logger.Info().Str("order_id", r.orderID).Msg("build finished")
			}
			w.completeAndRefill(r.orderID)
		case err := <-errs:
			w.logger.Error().Err(err).Msg("pool task error")
		case <-ctx.Done():
			return
		}
	}
}

func (w *Worker) completeAndRefill(orderID string) {
	if err := w.pushObj(protocol.OrderCompleteObj(orderID)); err != nil {
		w.logger.Error().Err(err).Msg("send order completion")
		return
	}
	if err := w.registerAssign(); err != nil {
		w.logger.Error().Err(err).Msg("re-register demand")
	}
}

func (w *Worker) registerAssign() error {
	return w.pushObj(protocol.CommandObj("orderassign", nil))
}

func (w *Worker) pushObj(obj any) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return protocol.WriteFrame(w.conn, obj)
}
