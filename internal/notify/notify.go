// Package notify pushes run reports to messaging services.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Constants
const (
	TIMEOUT = 15

	SERVERCHANURL = "https://sctapi.ftqq.com"
	PUSHPLUSURL   = "https://www.pushplus.plus/send"
)

// Message - a notification
type Message struct {
	Title   string
	Content string
}

// Notifier delivers a message. Implementations treat a non-success response
// code as an error so callers can retry.
type Notifier interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// ResponseError - the service answered but reported failure
type ResponseError struct {
	Service string
	Code    int
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s push failed: code %d: %s", e.Service, e.Code, e.Message)
}

// Config selects and configures transports. Empty keys disable a transport.
type Config struct {
	ServerChanKey string
	PushPlusToken string
}

// FromConfig builds the notifier for cfg. With nothing configured a Nop is
// returned.
func FromConfig(cfg Config, client *http.Client) Notifier {
	if client == nil {
		client = &http.Client{Timeout: TIMEOUT * time.Second}
	}

	var targets []Notifier
	if cfg.ServerChanKey != "" {
		targets = append(targets, &ServerChan{Key: cfg.ServerChanKey, BaseURL: SERVERCHANURL, Client: client})
	}
	if cfg.PushPlusToken != "" {
		targets = append(targets, &PushPlus{Token: cfg.PushPlusToken, URL: PUSHPLUSURL, Client: client})
	}

	switch len(targets) {
	case 0:
		return Nop{}
	case 1:
		return targets[0]
	default:
		return Multi(targets)
	}
}

// Nop drops every message.
type Nop struct{}

// Name implements Notifier.
func (Nop) Name() string { return "none" }

// Send implements Notifier.
func (Nop) Send(context.Context, Message) error { return nil }

// Multi sends to every notifier and reports the failures together. A retry
// of Send resends to all targets; callers wanting per-target retries range
// over the slice.
type Multi []Notifier

// Name implements Notifier.
func (m Multi) Name() string {
	names := make([]string, 0, len(m))
	for _, n := range m {
		names = append(names, n.Name())
	}
	return strings.Join(names, "+")
}

// Send implements Notifier.
func (m Multi) Send(ctx context.Context, msg Message) error {
	var failed []string
	for _, n := range m {
		if err := n.Send(ctx, msg); err != nil {
			failed = append(failed, err.Error())
		}
	}
	if len(failed) > 0 {
		return errors.New(strings.Join(failed, "; "))
	}
	return nil
}

// ServerChan - https://sct.ftqq.com, success code 0
type ServerChan struct {
	Key     string
	BaseURL string
	Client  *http.Client
}

// Name implements Notifier.
func (s *ServerChan) Name() string { return "serverchan" }

// Send implements Notifier.
func (s *ServerChan) Send(ctx context.Context, msg Message) error {
	form := url.Values{}
	form.Set("title", msg.Title)
	form.Set("desp", msg.Content)

	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/%s.send", s.BaseURL, s.Key), strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "serverchan: build request")
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var res struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := doJSON(s.Client, req, s.Name(), &res); err != nil {
		return err
	}
	if res.Code != 0 {
		return &ResponseError{Service: s.Name(), Code: res.Code, Message: res.Message}
	}
	return nil
}

// PushPlus - https://www.pushplus.plus, success code 200
type PushPlus struct {
	Token  string
	URL    string
	Client *http.Client
}

// Name implements Notifier.
func (p *PushPlus) Name() string { return "pushplus" }

// Send implements Notifier.
func (p *PushPlus) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(map[string]string{
		"token":    p.Token,
		"title":    msg.Title,
		"content":  msg.Content,
		"template": "markdown",
	})
	if err != nil {
		return errors.Wrap(err, "pushplus: encode payload")
	}

	req, err := http.NewRequest(http.MethodPost, p.URL, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "pushplus: build request")
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")

	var res struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := doJSON(p.Client, req, p.Name(), &res); err != nil {
		return err
	}
	if res.Code != http.StatusOK {
		return &ResponseError{Service: p.Name(), Code: res.Code, Message: res.Msg}
	}
	return nil
}

func doJSON(client *http.Client, req *http.Request, service string, out interface{}) error {
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s: send", service)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "%s: read response", service)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ResponseError{Service: service, Code: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "%s: decode response", service)
	}
	return nil
}
