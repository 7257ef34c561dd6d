// Package cloud189 talks to the Cloud189 (Tianyi cloud drive) web and open
// APIs on behalf of a single account.
package cloud189

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/publicsuffix"
)

// Constants
const (
	TIMEOUT     = 15
	DIALTIMEOUT = 10
	APPKEY    = "600100422"
	USERAGENT = "Mozilla/5.0 (Linux; U; Android 11; SM-G930K Build/NRD90M; wv) AppleWebKit/537.36 (KHTML, like Gecko) Version/4.0 Chrome/74.0.3729.136 Mobile Safari/537.36 Ecloud/8.6.3 Android/22 clientId/355325117317828 clientModel/SM-G930K imsi/460071114317824 clientChannelId/qq proVersion/1.0.6"
)

// Client is the per-account surface used by the check-in tasks.
type Client interface {
	Login(ctx context.Context) error
	UserSign(ctx context.Context) (*UserSignResult, error)
	GetFamilyList(ctx context.Context) (*FamilyListResult, error)
	FamilyUserSign(ctx context.Context, familyID int64) (*FamilySignResult, error)
	GetUserSizeInfo(ctx context.Context) (*SizeInfo, error)
}

// Endpoints - service hosts, overridable for tests
type Endpoints struct {
	Web  string
	Auth string
	API  string
}

// DefaultEndpoints are the production hosts.
var DefaultEndpoints = Endpoints{
	Web:  "https://cloud.189.cn",
	Auth: "https://open.e.189.cn",
	API:  "https://api.cloud.189.cn",
}

// UserSignResult - personal sign-in
type UserSignResult struct {
	IsSign       Flag `json:"isSign"`
	NetdiskBonus int  `json:"netdiskBonus"`
}

// FamilyInfo - one family group the account belongs to
type FamilyInfo struct {
	FamilyID   int64  `json:"familyId"`
	RemarkName string `json:"remarkName"`
	UserRole   int    `json:"userRole"`
}

// FamilyListResult - family groups of the account
type FamilyListResult struct {
	FamilyInfoResp []FamilyInfo `json:"familyInfoResp"`
}

// InFamily reports whether the account belongs to any family group.
func (f *FamilyListResult) InFamily() bool {
	return f != nil && len(f.FamilyInfoResp) > 0
}

// FamilySignResult - family sign-in
type FamilySignResult struct {
	SignStatus Flag `json:"signStatus"`
	BonusSpace int  `json:"bonusSpace"`
}

// CapacityInfo - sizes in bytes
type CapacityInfo struct {
	TotalSize int64 `json:"totalSize"`
	UsedSize  int64 `json:"usedSize"`
	FreeSize  int64 `json:"freeSize"`
}

// SizeInfo - personal and family capacity
type SizeInfo struct {
	CloudCapacityInfo  CapacityInfo `json:"cloudCapacityInfo"`
	FamilyCapacityInfo CapacityInfo `json:"familyCapacityInfo"`
}

// Flag decodes booleans the API sends as true/false, 0/1 or "0"/"1".
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	switch s {
	case "true", "1":
		*f = true
	case "false", "0", "", "null":
		*f = false
	default:
		n, err := strconv.Atoi(s)
		if err != nil {
			return errors.Errorf("cloud189: invalid flag %s", b)
		}
		*f = n != 0
	}
	return nil
}

// HTTPClient implements Client over HTTPS.
type HTTPClient struct {
	username string
	password string

	endpoints Endpoints
	http      *http.Client
	dialer    *net.Dialer
	debug     *log.Logger
	now       func() time.Time

	sessionKey  string
	accessToken string
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithEndpoints overrides the service hosts.
func WithEndpoints(e Endpoints) Option {
	return func(c *HTTPClient) { c.endpoints = e }
}

// WithDebugLogger logs every request on l.
func WithDebugLogger(l *log.Logger) Option {
	return func(c *HTTPClient) { c.debug = l }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.http.Timeout = d }
}

// WithDialTimeout overrides the connect timeout. It must stay below the
// request timeout for an unreachable host to surface as a dial error.
func WithDialTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.dialer.Timeout = d }
}

// New returns a client for one account. Nothing is sent until Login.
func New(username, password string, opts ...Option) *HTTPClient {
	// cookiejar.New never returns an error.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})

	dialer := &net.Dialer{Timeout: DIALTIMEOUT * time.Second, KeepAlive: 30 * time.Second}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext

	c := &HTTPClient{
		username:  username,
		password:  password,
		endpoints: DefaultEndpoints,
		http: &http.Client{
			Timeout:   TIMEOUT * time.Second,
			Jar:       jar,
			Transport: transport,
		},
		dialer: dialer,
		debug:  log.New(io.Discard, "", 0),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UserSign performs the daily personal sign-in.
func (c *HTTPClient) UserSign(ctx context.Context) (*UserSignResult, error) {
	q := url.Values{}
	q.Set("rand", strconv.FormatInt(c.now().UnixNano()/int64(time.Millisecond), 10))
	q.Set("clientType", "TELEANDROID")
	q.Set("version", "8.6.3")
	q.Set("model", "SM-G930K")

	req, err := c.newRequest(ctx, http.MethodGet, c.endpoints.Web+"/mkt/userSign.action?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var res UserSignResult
	if err := c.doJSON(req, "userSign", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetFamilyList lists the family groups of the account.
func (c *HTTPClient) GetFamilyList(ctx context.Context) (*FamilyListResult, error) {
	req, err := c.newSignedRequest(ctx, "/open/family/manage/getFamilyList.action", nil)
	if err != nil {
		return nil, err
	}

	var res FamilyListResult
	if err := c.doJSON(req, "getFamilyList", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// FamilyUserSign performs the daily sign-in for a family group.
func (c *HTTPClient) FamilyUserSign(ctx context.Context, familyID int64) (*FamilySignResult, error) {
	q := url.Values{}
	q.Set("familyId", strconv.FormatInt(familyID, 10))

	req, err := c.newSignedRequest(ctx, "/open/family/manage/exeFamilyUserSign.action", q)
	if err != nil {
		return nil, err
	}

	var res FamilySignResult
	if err := c.doJSON(req, "familyUserSign", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetUserSizeInfo returns personal and family capacity.
func (c *HTTPClient) GetUserSizeInfo(ctx context.Context) (*SizeInfo, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.endpoints.Web+"/api/portal/getUserSizeInfo.action", nil)
	if err != nil {
		return nil, err
	}

	var res SizeInfo
	if err := c.doJSON(req, "getUserSizeInfo", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequest(method, rawURL, body)
	if err != nil {
		return nil, errors.Wrapf(err, "cloud189: build request %s", rawURL)
	}
	req = req.WithContext(ctx)
	req.Header.Set("User-Agent", USERAGENT)
	req.Header.Set("Accept", "application/json;charset=UTF-8")
	req.Header.Set("Referer", c.endpoints.Web+"/")
	return req, nil
}

// newSignedRequest builds a GET against the open API host, signed with the
// access token obtained at login.
func (c *HTTPClient) newSignedRequest(ctx context.Context, path string, q url.Values) (*http.Request, error) {
	if c.accessToken == "" {
		return nil, errors.New("cloud189: not logged in")
	}
	if q == nil {
		q = url.Values{}
	}
	rawURL := c.endpoints.API + path
	if len(q) > 0 {
		rawURL += "?" + q.Encode()
	}

	req, err := c.newRequest(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	ts := strconv.FormatInt(c.now().UnixNano()/int64(time.Millisecond), 10)
	params := map[string]string{"AccessToken": c.accessToken, "Timestamp": ts}
	for k := range q {
		params[k] = q.Get(k)
	}
	req.Header.Set("Sign-Type", "1")
	req.Header.Set("Timestamp", ts)
	req.Header.Set("AccessToken", c.accessToken)
	req.Header.Set("Signature", Signature(params))
	return req, nil
}

// Signature is the lowercase hex MD5 of the params sorted by key and joined
// as k=v pairs with '&'.
func Signature(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	sum := md5.Sum([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(sum[:])
}

type apiStatus struct {
	ResCode    interface{} `json:"res_code"`
	ResMessage string      `json:"res_message"`
	ErrorCode  string      `json:"errorCode"`
	ErrorMsg   string      `json:"errorMsg"`
}

func (s apiStatus) failed() (string, string, bool) {
	if s.ErrorCode != "" {
		return s.ErrorCode, s.ErrorMsg, true
	}
	if s.ResCode == nil {
		return "", "", false
	}
	code := fmt.Sprint(s.ResCode)
	if code == "0" || code == "" {
		return "", "", false
	}
	return code, s.ResMessage, true
}

func (c *HTTPClient) doJSON(req *http.Request, op string, out interface{}) error {
	c.debug.Printf("cloud189 %s %s %s", op, req.Method, req.URL.Path)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "cloud189 %s", op)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "cloud189 %s: read body", op)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Op: op, Status: resp.StatusCode, Message: snippet(body)}
	}

	var status apiStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return errors.Wrapf(err, "cloud189 %s: decode response", op)
	}
	if code, msg, failed := status.failed(); failed {
		return &APIError{Op: op, Status: resp.StatusCode, Code: code, Message: msg}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "cloud189 %s: decode response", op)
	}
	return nil
}

func snippet(b []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
