// Package frontend implements the thin wire-protocol producers: a TCP
// line server and a stdin console, both calling queue.Submit and
// nothing else. Neither has any matching-relevant logic of its own.
package frontend

import (
	"net"

	"github.com/rs/zerolog/log"
	"gopkg.in/tomb.v2"
)

const taskChanSize = 128

// connWorkerFunction handles one accepted connection to completion.
type connWorkerFunction func(t *tomb.Tomb, conn net.Conn) error

// workerPool bounds the number of goroutines handling accepted TCP
// connections concurrently, adapted from this codebase's existing
// worker-pool shape and retyped to carry net.Conn tasks directly.
type workerPool struct {
	size  int
	tasks chan net.Conn
	work  connWorkerFunction
}

func newWorkerPool(size int, work connWorkerFunction) *workerPool {
	return &workerPool{
		size:  size,
		tasks: make(chan net.Conn, taskChanSize),
		work:  work,
	}
}

// addTask hands conn off to whichever worker is free next.
func (p *workerPool) addTask(conn net.Conn) {
	p.tasks <- conn
}

// run starts p.size workers, each pulling connections off p.tasks until
// t is killed. Connections still queued at shutdown are closed without
// being handled; in-flight connections are left to their own workers to
// finish draining via t.Dying() inside the work function.
func (p *workerPool) run(t *tomb.Tomb) {
	for i := 0; i < p.size; i++ {
		id := i
		t.Go(func() error {
			return p.worker(t, id)
		})
	}
	<-t.Dying()
	for {
		select {
		case conn := <-p.tasks:
			conn.Close()
		default:
			return
		}
	}
}

func (p *workerPool) worker(t *tomb.Tomb, id int) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case conn := <-p.tasks:
			if err := p.work(t, conn); err != nil {
				log.Error().Err(err).Int("worker_id", id).Msg("frontend: connection worker exiting")
			}
		}
	}
}
