package workspace

import (
	"context"
	"log"
	"sync"
	"time"
)

// Scheduler arranges for a job's directory to be released after a delay.
type Scheduler interface {
	ScheduleRelease(ctx context.Context, jobID string, delay time.Duration) error
}

// LocalScheduler releases directories from in-process timers. Pending releases
// are lost if the process exits, so servers use the queue-backed scheduler
// and rely on the sweeper as a backstop.
type LocalScheduler struct {
	manager *Manager

	mu     sync.Mutex
	timers map[string]*time.Timer
	wg     sync.WaitGroup
}

func NewLocalScheduler(m *Manager) *LocalScheduler {
	return &LocalScheduler{manager: m, timers: make(map[string]*time.Timer)}
}

func (s *LocalScheduler) ScheduleRelease(ctx context.Context, jobID string, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[jobID]; ok {
		if t.Stop() {
			s.wg.Done()
		}
	}
	s.wg.Add(1)
	s.timers[jobID] = time.AfterFunc(delay, func() {
		defer s.wg.Done()
		s.mu.Lock()
		delete(s.timers, jobID)
		s.mu.Unlock()
		if err := s.manager.Release(jobID); err != nil {
			log.Printf("Warning: [job %s] scheduled release: %v", jobID, err)
		}
	})
	return nil
}

// Flush releases every pending directory now and waits for running releases.
func (s *LocalScheduler) Flush() {
	s.mu.Lock()
	var pending []string
	for id, t := range s.timers {
		if t.Stop() {
			s.wg.Done()
			pending = append(pending, id)
		}
		delete(s.timers, id)
	}
	s.mu.Unlock()

	for _, id := range pending {
		if err := s.manager.Release(id); err != nil {
			log.Printf("Warning: [job %s] release on flush: %v", id, err)
		}
	}
	s.wg.Wait()
}
