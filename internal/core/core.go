package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/J-Leg/cloudcheckin/config"
	"github.com/J-Leg/cloudcheckin/internal/notify"
	"github.com/J-Leg/cloudcheckin/internal/transcript"
)

// Exit codes of a run
const (
	EXITOK      = 0
	EXITABORTED = 1
	EXITPARTIAL = 2
)

// Report of one run
type Report struct {
	Summary
	Err         error
	SummaryLine string
	Transcript  string
	NotifyErr   error
}

// ExitCode distinguishes a clean run, an aborted run and a run where some
// accounts failed.
func (r Report) ExitCode() int {
	switch {
	case r.Aborted:
		return EXITABORTED
	case r.Failed > 0:
		return EXITPARTIAL
	default:
		return EXITOK
	}
}

// Run executes one check-in batch. Every log line of the run is recorded;
// on the way out, success or not, the transcript is read and erased once and
// pushed with the summary line.
func Run(cfg *config.Config, factory ClientFactory, notifier notify.Notifier) (report Report) {
	base := *cfg
	cfg = &base
	if cfg.Trace == nil {
		cfg.Trace = cfg.WithRecorder(nil).Trace
	}
	if cfg.LocalEnabled && cfg.Retry.Sleep == nil && cfg.Console != nil {
		cfg.Retry.Sleep = countdownSleep(cfg.Console)
	}

	rec := transcript.New()
	runCfg := cfg.WithRecorder(rec)

	defer func() {
		report.Transcript = transcript.Render(rec.Drain())
		msg := notify.Message{
			Title:   cfg.Title,
			Content: report.Transcript + "\n\n" + report.SummaryLine,
		}
		report.NotifyErr = push(cfg, notifier, msg)
	}()

	report.Summary, report.Err = RunBatch(runCfg, cfg.Accounts, factory)
	if report.Err != nil {
		runCfg.Trace.Error.Printf("check-in run failed: %s", report.Err)
		report.SummaryLine = fmt.Sprintf("run aborted at account %d; %s before abort",
			report.AbortedAt, TotalLine(report.TotalFamilySpace))
		return report
	}
	report.SummaryLine = TotalLine(report.TotalFamilySpace)
	return report
}

// push sends msg through the retry policy. Failures are logged and returned
// for the report only. Targets of a Multi are retried one by one so a healthy
// target receives the message once.
func push(cfg *config.Config, notifier notify.Notifier, msg notify.Message) error {
	switch n := notifier.(type) {
	case nil, notify.Nop:
		return nil
	case notify.Multi:
		var failed []string
		for _, target := range n {
			if err := push(cfg, target, msg); err != nil {
				failed = append(failed, err.Error())
			}
		}
		if len(failed) > 0 {
			return errors.New(strings.Join(failed, "; "))
		}
		return nil
	}
	_, err := call(cfg, "push to "+notifier.Name(), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, notifier.Send(ctx, msg)
	})
	if err != nil {
		cfg.Trace.Error.Printf("notification via %s failed: %s", notifier.Name(), err)
		return err
	}
	cfg.Trace.Info.Printf("notification sent via %s", notifier.Name())
	return nil
}
