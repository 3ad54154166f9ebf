package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
	rcron "github.com/robfig/cron/v3"

	"github.com/smhanov/sleuth"
)

// watcher re-runs one goal and reports when the found answer changes.
type watcher struct {
	agent *sleuth.Agent
	goal  sleuth.Goal
	out   io.Writer

	mu     sync.Mutex
	last   string
	source string
}

// check runs the goal once. It reports whether the answer differs from the
// previous successful run; runs that find nothing never count as a change.
func (w *watcher) check(ctx context.Context) (bool, error) {
	res, err := w.agent.Answer(ctx, w.goal)
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	stamp := time.Now().Format(time.RFC3339)
	switch res.Status {
	case sleuth.StatusSuccess:
	case sleuth.StatusBudgetExhausted:
		fmt.Fprintf(w.out, "%s no answer found (last known: %q)\n", stamp, w.last)
		return false, nil
	default:
		return false, res.Cause
	}

	if res.Answer == w.last {
		fmt.Fprintf(w.out, "%s unchanged: %s\n", stamp, res.Answer)
		return false, nil
	}
	changed := w.last != ""
	if changed {
		fmt.Fprintf(w.out, "%s changed: %s -> %s (source: %s)\n", stamp, w.last, res.Answer, res.Source)
	} else {
		fmt.Fprintf(w.out, "%s found: %s (source: %s)\n", stamp, res.Answer, res.Source)
	}
	w.last, w.source = res.Answer, res.Source
	return changed, nil
}

var scheduleParser = rcron.NewParser( //nolint:gochecknoglobals
	rcron.Second | rcron.Minute | rcron.Hour | rcron.Dom | rcron.Month | rcron.Dow | rcron.Descriptor,
)

func runWatch(ctx context.Context, args []string, opts Options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	goal, err := goalFromFlags(args)
	if err != nil {
		return err
	}
	schedule, err := scheduleParser.Parse(scheduleFlag)
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", scheduleFlag, err)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	agent, err := opts.factory()(cfg, newLogger(cfg), nil)
	if err != nil {
		return err
	}
	w := &watcher{agent: agent, goal: goal, out: opts.stdout()}

	if _, err := w.check(ctx); err != nil {
		ancli.PrintWarn(fmt.Sprintf("watch run failed: %v\n", err))
	}

	c := rcron.New(rcron.WithParser(scheduleParser))
	c.Schedule(schedule, rcron.FuncJob(func() {
		if _, err := w.check(ctx); err != nil {
			ancli.PrintWarn(fmt.Sprintf("watch run failed: %v\n", err))
		}
	}))
	c.Start()
	ancli.PrintOK(fmt.Sprintf("watching %q on schedule %q\n", goal.Subject, scheduleFlag))

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
