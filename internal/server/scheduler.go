package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/litmaphq/litmap/internal/store"
)

// Scheduler refreshes saved topics on their cron schedule. Redis locks keep
// replicas from running the same topic twice.
type Scheduler struct {
	Store  *store.Store
	Orch   Researcher
	Rdb    *redis.Client
	Stop   chan struct{}
	Logger *log.Logger
}

func (s *Scheduler) Start() {
	if s.Logger == nil {
		s.Logger = log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	}
	ticker := time.NewTicker(1 * time.Hour)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	topics, err := s.Store.ListAllTopics(ctx)
	if err != nil {
		s.Logger.Printf("list topics: %v", err)
		return
	}
	for _, t := range topics {
		last, _ := s.Store.LatestRunTime(ctx, t.ID)
		if !isDue(t.ScheduleCron, last) {
			continue
		}

		// distributed lock to avoid duplicate runs across replicas
		if s.Rdb != nil {
			lockKey := "litmap:sched:lock:" + t.ID
			ok, _ := s.Rdb.SetNX(ctx, lockKey, "1", 2*time.Minute).Result()
			if !ok {
				continue
			}
		}

		runID, err := s.Store.CreateRun(ctx, t.ID, store.RunStatusRunning)
		if err != nil {
			s.Logger.Printf("create run for topic %s: %v", t.ID, err)
			continue
		}

		go func(topic store.Topic, runID string) {
			// jitter to avoid stampedes
			time.Sleep(time.Duration(250+time.Now().UnixNano()%250) * time.Millisecond)
			runCtx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			defer cancel()
			executeRun(runCtx, s.Store, s.Orch, s.Logger, topic, runID)
		}(t, runID)
	}
}

// executeRun performs one research run for a topic and records the outcome.
func executeRun(ctx context.Context, st *store.Store, orch Researcher, logger *log.Logger, topic store.Topic, runID string) {
	report, err := orch.ResearchStream(ctx, topic.Query, 0, nil)
	if err != nil {
		msg := err.Error()
		if ferr := st.FinishRun(ctx, runID, store.RunStatusFailed, nil, &msg); ferr != nil {
			logger.Printf("finish run %s: %v", runID, ferr)
		}
		return
	}
	if err := st.SaveReport(ctx, report); err != nil {
		logger.Printf("save report for run %s: %v", runID, err)
	}
	if err := st.FinishRun(ctx, runID, store.RunStatusSucceeded, &report.ReportID, nil); err != nil {
		logger.Printf("finish run %s: %v", runID, err)
	}
}

// isDue determines if a topic with cronSpec should run now based on last run
// time. Supports "@daily", "@hourly", and standard 5-field cron expressions.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			// Fallback: treat as @daily if invalid
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		return !expr.Next(*last).After(now)
	}
}
