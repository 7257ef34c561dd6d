package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var msg = Message{Title: "Cloud189 check-in", Content: "line 1  \nline 2\n\ntotal: 20M"}

func TestServerChanSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/SCT123.send", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, msg.Title, r.PostForm.Get("title"))
		assert.Equal(t, msg.Content, r.PostForm.Get("desp"))
		fmt.Fprint(w, `{"code":0,"message":"","data":{"pushid":"1"}}`)
	}))
	defer srv.Close()

	s := &ServerChan{Key: "SCT123", BaseURL: srv.URL, Client: srv.Client()}
	require.NoError(t, s.Send(context.Background(), msg))
}

func TestServerChanNonSuccessCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":40001,"message":"bad sendkey"}`)
	}))
	defer srv.Close()

	s := &ServerChan{Key: "bad", BaseURL: srv.URL, Client: srv.Client()}
	err := s.Send(context.Background(), msg)

	var rerr *ResponseError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, 40001, rerr.Code)
	assert.Equal(t, "serverchan push failed: code 40001: bad sendkey", err.Error())
}

func TestPushPlusSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tok", body["token"])
		assert.Equal(t, msg.Content, body["content"])
		assert.Equal(t, "markdown", body["template"])
		fmt.Fprint(w, `{"code":200,"msg":"ok","data":"abc"}`)
	}))
	defer srv.Close()

	p := &PushPlus{Token: "tok", URL: srv.URL, Client: srv.Client()}
	require.NoError(t, p.Send(context.Background(), msg))
}

func TestPushPlusHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := &PushPlus{Token: "tok", URL: srv.URL, Client: srv.Client()}
	err := p.Send(context.Background(), msg)

	var rerr *ResponseError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, http.StatusServiceUnavailable, rerr.Code)
	assert.Equal(t, "maintenance", rerr.Message)
}

type stubNotifier struct {
	name string
	err  error
	sent []Message
}

func (s *stubNotifier) Name() string { return s.name }

func (s *stubNotifier) Send(ctx context.Context, m Message) error {
	s.sent = append(s.sent, m)
	return s.err
}

func TestMultiSendsToAll(t *testing.T) {
	a := &stubNotifier{name: "a", err: errors.New("a down")}
	b := &stubNotifier{name: "b"}
	m := Multi{a, b}

	err := m.Send(context.Background(), msg)
	assert.EqualError(t, err, "a down")
	assert.Len(t, a.sent, 1)
	assert.Len(t, b.sent, 1)
	assert.Equal(t, "a+b", m.Name())
}

func TestFromConfig(t *testing.T) {
	assert.IsType(t, Nop{}, FromConfig(Config{}, nil))
	assert.NoError(t, FromConfig(Config{}, nil).Send(context.Background(), msg))

	assert.IsType(t, &ServerChan{}, FromConfig(Config{ServerChanKey: "k"}, nil))
	assert.IsType(t, &PushPlus{}, FromConfig(Config{PushPlusToken: "t"}, nil))

	both := FromConfig(Config{ServerChanKey: "k", PushPlusToken: "t"}, nil)
	require.IsType(t, Multi{}, both)
	assert.Equal(t, "serverchan+pushplus", both.Name())
}
