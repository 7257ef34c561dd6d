package core

import (
	"context"
	"fmt"

	"github.com/J-Leg/cloudcheckin/config"
	"github.com/J-Leg/cloudcheckin/internal/cloud189"
)

// Kind classifies how an account finished.
type Kind int

// Outcome kinds
const (
	KindOK Kind = iota
	// KindFailed is contained to the account.
	KindFailed
	// KindFatal aborts the batch.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindFailed:
		return "failed"
	case KindFatal:
		return "fatal"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Outcome of one account. Lines are logged as each step completes; those
// produced before a failure are kept.
type Outcome struct {
	Lines       []string
	FamilyBonus int
	Err         error
	Kind        Kind
}

func classify(err error) Kind {
	switch {
	case err == nil:
		return KindOK
	case cloud189.IsConnTimeout(err):
		return KindFatal
	default:
		return KindFailed
	}
}

func (o *Outcome) record(cfg *config.Config, line string) {
	o.Lines = append(o.Lines, line)
	cfg.Trace.Info.Print(line)
}

func (o *Outcome) fail(err error) Outcome {
	o.Err = err
	o.Kind = classify(err)
	// A failed account contributes nothing to the total.
	o.FamilyBonus = 0
	return *o
}

// RunAccountTasks signs in, signs in the family group and reads capacity,
// each through the retry policy. The client must be logged in.
func RunAccountTasks(cfg *config.Config, client cloud189.Client) Outcome {
	var out Outcome

	sign, err := call(cfg, "sign-in", client.UserSign)
	if err != nil {
		return out.fail(err)
	}
	prefix := ""
	if sign.IsSign {
		prefix = "personal space already signed today, "
	}
	out.record(cfg, fmt.Sprintf("%ssign-in earned %dM space", prefix, sign.NetdiskBonus))

	// Give the service time to register the sign-in.
	if err := sleep(cfg, cfg.SettleDelay); err != nil {
		return out.fail(err)
	}

	families, err := call(cfg, "family list", client.GetFamilyList)
	if err != nil {
		return out.fail(err)
	}
	if families.InFamily() {
		fsign, err := call(cfg, "family sign-in", func(ctx context.Context) (*cloud189.FamilySignResult, error) {
			return client.FamilyUserSign(ctx, cfg.FamilyID)
		})
		if err != nil {
			return out.fail(err)
		}
		prefix := ""
		if fsign.SignStatus {
			prefix = "already signed, "
		}
		out.record(cfg, fmt.Sprintf("family task %ssign-in earned %dM space", prefix, fsign.BonusSpace))
		out.FamilyBonus += fsign.BonusSpace
	}

	size, err := call(cfg, "capacity query", client.GetUserSizeInfo)
	if err != nil {
		return out.fail(err)
	}
	out.record(cfg, capacityLine(size.CloudCapacityInfo.TotalSize, size.FamilyCapacityInfo.TotalSize))

	return out
}
