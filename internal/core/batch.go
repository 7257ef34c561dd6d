package core

import (
	"context"
	"fmt"
	"time"

	"github.com/cheggaaa/pb/v3"

	"github.com/J-Leg/cloudcheckin/config"
	"github.com/J-Leg/cloudcheckin/internal/cloud189"
)

// Masked range of a username in log lines.
const (
	MASKSTART = 3
	MASKEND   = 7
)

// ClientFactory builds the remote client for one account.
type ClientFactory func(acc config.Account) cloud189.Client

// Summary of a batch. When Aborted, the totals cover the accounts completed
// before the fatal one.
type Summary struct {
	TotalFamilySpace int
	Processed        int
	Failed           int
	Skipped          int
	Aborted          bool
	AbortedAt        int
}

// RunBatch processes accounts in order, one at a time. Accounts missing a
// credential are skipped. A fatal outcome stops the batch and its error is
// returned alongside the partial summary.
func RunBatch(cfg *config.Config, accounts []config.Account, factory ClientFactory) (Summary, error) {
	var sum Summary

	var bar *pb.ProgressBar
	if cfg.LocalEnabled && cfg.Console != nil {
		bar = pb.New(len(accounts))
		bar.SetRefreshRate(time.Second)
		bar.SetWriter(cfg.Console)
		bar.Start()
		defer bar.Finish()
	}

	for idx, acc := range accounts {
		if bar != nil {
			bar.Increment()
		}
		if !acc.Valid() {
			sum.Skipped++
			continue
		}

		out := runAccount(cfg, idx+1, acc, factory)
		sum.Processed++

		switch out.Kind {
		case KindOK:
			sum.TotalFamilySpace += out.FamilyBonus
		case KindFailed:
			sum.Failed++
		case KindFatal:
			sum.Failed++
			sum.Aborted = true
			sum.AbortedAt = idx + 1
			cfg.Trace.Error.Printf("connection timed out, aborting remaining accounts")
			return sum, out.Err
		}
	}

	cfg.Trace.Info.Print(TotalLine(sum.TotalFamilySpace))
	return sum, nil
}

// TotalLine is the grand total reported after the batch.
func TotalLine(total int) string {
	return fmt.Sprintf("main account earned %dM family space today", total)
}

// runAccount logs in and runs the tasks for one account. The completion
// marker is logged on every path.
func runAccount(cfg *config.Config, number int, acc config.Account, factory ClientFactory) (out Outcome) {
	masked := Mask(acc.Username, MASKSTART, MASKEND)
	cfg.Trace.Info.Printf("%d. account %s started", number, masked)
	defer cfg.Trace.Info.Printf("account %s finished-------------", masked)

	defer func() {
		if out.Err != nil {
			cfg.Trace.Error.Printf("account %s failed: %s", masked, out.Err)
		}
	}()

	client := factory(acc)
	_, err := call(cfg, "login", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, client.Login(ctx)
	})
	if err != nil {
		return Outcome{Err: err, Kind: classify(err)}
	}

	return RunAccountTasks(cfg, client)
}
