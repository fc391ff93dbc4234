package session

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Janitor periodically sweeps expired sessions from a Store.
type Janitor struct {
	store    *Store
	interval time.Duration
	logger   *logrus.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewJanitor(store *Store, interval time.Duration, logger *logrus.Logger) *Janitor {
	if logger == nil {
		logger = store.logger
	}
	return &Janitor{
		store:    store,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start begins sweeping in the background. A non-positive interval disables it.
func (j *Janitor) Start() {
	if j.interval <= 0 {
		j.logger.Warn("Session sweeping disabled")
		return
	}
	j.wg.Add(1)
	go j.run()
}

func (j *Janitor) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stopChan:
			return
		case <-ticker.C:
			if removed := j.store.Sweep(); removed > 0 {
				j.logger.WithFields(logrus.Fields{
					"removed":   removed,
					"remaining": j.store.Len(),
				}).Info("Swept expired sessions")
			}
		}
	}
}

// Stop ends the sweeping loop and waits for it to exit. It is safe to call more than once.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() { close(j.stopChan) })
	j.wg.Wait()
}
