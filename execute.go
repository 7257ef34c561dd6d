package cloudcheckin

import (
	"github.com/J-Leg/cloudcheckin/config"
	"github.com/J-Leg/cloudcheckin/internal/cloud189"
	"github.com/J-Leg/cloudcheckin/internal/core"
	"github.com/J-Leg/cloudcheckin/internal/notify"
)

// Report of a check-in run
type Report = core.Report

// ExecuteCheckIn : Daily check-in for every configured account, then push
// the transcript
func ExecuteCheckIn(cfg *config.Config) Report {
	return core.Run(cfg, NewClientFactory(cfg), notify.FromConfig(cfg.Notify, nil))
}

// NewClientFactory returns a factory building HTTP clients against the
// production endpoints.
func NewClientFactory(cfg *config.Config, opts ...cloud189.Option) core.ClientFactory {
	return func(acc config.Account) cloud189.Client {
		clientOpts := []cloud189.Option{}
		if cfg.Trace != nil {
			clientOpts = append(clientOpts, cloud189.WithDebugLogger(cfg.Trace.Debug))
		}
		clientOpts = append(clientOpts, opts...)
		return cloud189.New(acc.Username, acc.Password, clientOpts...)
	}
}
