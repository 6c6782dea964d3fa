package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/taskfolio/autoassess/internal/domain/scoring"
	"github.com/taskfolio/autoassess/internal/port/llm"
)

func modelConfigs(t *testing.T, n int) []scoring.ModelConfig {
	t.Helper()
	configs := make([]scoring.ModelConfig, 0, n)
	for i := 0; i < n; i++ {
		cfg, err := scoring.NewModelConfig(fmt.Sprintf("model-%d", i), "test", "task_feasibility", time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		configs = append(configs, cfg)
	}
	return configs
}

func TestScoreTasksAllSucceed(t *testing.T) {
	completer := &mockCompleter{
		respond: func(req llm.CompletionRequest) (string, error) {
			return `[{"task": "Write report", "score": 50, "reason": "ok"}]`, nil
		},
	}
	s := NewScorer(completer, 4, nil)

	tasks := []scoring.TaskRecord{rec("Write report", scoring.TaskTypeAI)}
	results := s.ScoreTasks(context.Background(), tasks, modelConfigs(t, 3))

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if completer.callCount() != 3 {
		t.Fatalf("expected 3 calls, got %d", completer.callCount())
	}
}

func TestScoreTasksOmitsFailures(t *testing.T) {
	completer := &mockCompleter{
		respond: func(req llm.CompletionRequest) (string, error) {
			switch req.Model {
			case "model-0":
				return "", errors.New("gateway 500")
			case "model-1":
				return "no json here", nil
			default:
				return `[{"task": "Write report", "score": 70, "reason": ""}]`, nil
			}
		},
	}
	s := NewScorer(completer, 4, nil)

	tasks := []scoring.TaskRecord{rec("Write report", scoring.TaskTypeAI)}
	results := s.ScoreTasks(context.Background(), tasks, modelConfigs(t, 3))

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Model != "model-2" {
		t.Fatalf("expected model-2, got %s", results[0].Model)
	}
}

func TestScoreTasksZeroSuccesses(t *testing.T) {
	completer := &mockCompleter{
		respond: func(llm.CompletionRequest) (string, error) {
			return "", errors.New("down")
		},
	}
	s := NewScorer(completer, 4, nil)

	results := s.ScoreTasks(context.Background(),
		[]scoring.TaskRecord{rec("Write report", scoring.TaskTypeAI)}, modelConfigs(t, 2))
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestScoreTasksBoundsConcurrency(t *testing.T) {
	var inFlight, peak int64
	release := make(chan struct{})

	completer := &mockCompleter{
		respond: func(llm.CompletionRequest) (string, error) {
			n := atomic.AddInt64(&inFlight, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			<-release
			atomic.AddInt64(&inFlight, -1)
			return `[{"task": "t", "score": 1, "reason": ""}]`, nil
		},
	}
	s := NewScorer(completer, 4, nil)

	done := make(chan []scoring.ModelScoreResult)
	go func() {
		done <- s.ScoreTasks(context.Background(),
			[]scoring.TaskRecord{rec("t", scoring.TaskTypeAI)}, modelConfigs(t, 6))
	}()

	// Wait for the pool to saturate, then unblock everyone.
	deadline := time.After(2 * time.Second)
	for atomic.LoadInt64(&inFlight) < 4 {
		select {
		case <-deadline:
			t.Fatalf("pool never saturated: in-flight %d", atomic.LoadInt64(&inFlight))
		case <-time.After(time.Millisecond):
		}
	}
	close(release)

	results := <-done
	if len(results) != 6 {
		t.Fatalf("expected 6 results, got %d", len(results))
	}
	if p := atomic.LoadInt64(&peak); p > 4 {
		t.Fatalf("concurrency bound exceeded: peak %d", p)
	}
}

func TestScoreTasksPerCallTimeout(t *testing.T) {
	completer := &mockCompleter{
		respond: func(llm.CompletionRequest) (string, error) {
			return "", context.DeadlineExceeded
		},
	}
	s := NewScorer(completer, 4, nil)

	cfg, err := scoring.NewModelConfig("slow", "test", "task_feasibility", time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}

	results := s.ScoreTasks(context.Background(),
		[]scoring.TaskRecord{rec("t", scoring.TaskTypeAI)}, []scoring.ModelConfig{cfg})
	if len(results) != 0 {
		t.Fatalf("timed-out call should be omitted, got %d results", len(results))
	}
}
