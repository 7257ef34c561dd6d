package cloud189

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
)

// Login redirect target of the web portal.
const REDIRECTURL = "https://cloud.189.cn/web/redirect.html?returnURL=/main.action"

var (
	reReturnURL = regexp.MustCompile(`returnUrl\s*=\s*['"]([^'"]+)['"]`)
	reParamID   = regexp.MustCompile(`paramId\s*=\s*['"]([^'"]+)['"]`)
	reLt        = regexp.MustCompile(`\blt\s*=\s*['"]([^'"]+)['"]`)
	reReqID     = regexp.MustCompile(`reqId\s*=\s*['"]([^'"]+)['"]`)
)

type loginForm struct {
	CaptchaToken string
	Lt           string
	ReqID        string
	ParamID      string
	ReturnURL    string
	Referer      string
}

type encryptConf struct {
	Result int `json:"result"`
	Data   struct {
		PubKey string `json:"pubKey"`
		Pre    string `json:"pre"`
	} `json:"data"`
}

type loginResult struct {
	Result int    `json:"result"`
	Msg    string `json:"msg"`
	ToURL  string `json:"toUrl"`
}

type briefInfo struct {
	SessionKey string `json:"sessionKey"`
}

type accessToken struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// Login authenticates the account and prepares the session used by the
// other calls.
func (c *HTTPClient) Login(ctx context.Context) error {
	form, err := c.fetchLoginForm(ctx)
	if err != nil {
		return err
	}

	conf, err := c.fetchEncryptConf(ctx)
	if err != nil {
		return err
	}

	toURL, err := c.submitLogin(ctx, form, conf)
	if err != nil {
		return err
	}

	// Following toUrl drops the session cookies into the jar.
	req, err := c.newRequest(ctx, http.MethodGet, toURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "cloud189 login: follow redirect")
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	return c.fetchAccessToken(ctx)
}

func (c *HTTPClient) fetchLoginForm(ctx context.Context) (*loginForm, error) {
	q := url.Values{}
	q.Set("redirectURL", REDIRECTURL)

	req, err := c.newRequest(ctx, http.MethodGet, c.endpoints.Web+"/api/portal/loginUrl.action?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "cloud189 login: fetch login page")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Op: "login", Status: resp.StatusCode, Message: "unexpected login page status"}
	}

	return parseLoginPage(resp.Body, resp.Request.URL)
}

// parseLoginPage extracts the hidden form state from the unified login page.
// lt and reqId usually travel on the page URL; the script is the fallback.
func parseLoginPage(body io.Reader, pageURL *url.URL) (*loginForm, error) {
	document, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, errors.Wrap(err, "cloud189 login: parse login page")
	}

	form := &loginForm{Referer: pageURL.String()}
	form.CaptchaToken, _ = document.Find("input[name='captchaToken']").Attr("value")

	scripts := document.Find("script").Text()
	form.ReturnURL = firstMatch(reReturnURL, scripts)
	form.ParamID = firstMatch(reParamID, scripts)

	query := pageURL.Query()
	form.Lt = query.Get("lt")
	if form.Lt == "" {
		form.Lt = firstMatch(reLt, scripts)
	}
	form.ReqID = query.Get("reqId")
	if form.ReqID == "" {
		form.ReqID = firstMatch(reReqID, scripts)
	}

	if form.CaptchaToken == "" || form.Lt == "" || form.ParamID == "" {
		return nil, errors.New("cloud189 login: login page is missing form state")
	}
	return form, nil
}

func firstMatch(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

func (c *HTTPClient) fetchEncryptConf(ctx context.Context) (*encryptConf, error) {
	form := url.Values{}
	form.Set("appId", "cloud")

	req, err := c.newFormRequest(ctx, c.endpoints.Auth+"/api/logbox/config/encryptConf.do", form)
	if err != nil {
		return nil, err
	}

	var conf encryptConf
	if err := c.doJSON(req, "encryptConf", &conf); err != nil {
		return nil, err
	}
	if conf.Result != 0 || conf.Data.PubKey == "" {
		return nil, &APIError{Op: "encryptConf", Status: http.StatusOK, Code: strconv.Itoa(conf.Result), Message: "no public key"}
	}
	return &conf, nil
}

func (c *HTTPClient) submitLogin(ctx context.Context, lf *loginForm, conf *encryptConf) (string, error) {
	user, err := encryptCredential(conf.Data.PubKey, c.username)
	if err != nil {
		return "", err
	}
	pass, err := encryptCredential(conf.Data.PubKey, c.password)
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("appKey", "cloud")
	form.Set("accountType", "01")
	form.Set("userName", conf.Data.Pre+user)
	form.Set("password", conf.Data.Pre+pass)
	form.Set("validateCode", "")
	form.Set("captchaToken", lf.CaptchaToken)
	form.Set("returnUrl", lf.ReturnURL)
	form.Set("mailSuffix", "@189.cn")
	form.Set("dynamicCheck", "FALSE")
	form.Set("clientType", "1")
	form.Set("cb_SaveName", "0")
	form.Set("isOauth2", "false")
	form.Set("state", "")
	form.Set("paramId", lf.ParamID)

	req, err := c.newFormRequest(ctx, c.endpoints.Auth+"/api/logbox/oauth2/loginSubmit.do", form)
	if err != nil {
		return "", err
	}
	req.Header.Set("Referer", lf.Referer)
	req.Header.Set("lt", lf.Lt)
	req.Header.Set("REQID", lf.ReqID)

	var res loginResult
	if err := c.doJSON(req, "loginSubmit", &res); err != nil {
		return "", err
	}
	if res.Result != 0 || res.ToURL == "" {
		return "", errors.Wrapf(ErrLogin, "%s (result %d)", res.Msg, res.Result)
	}
	return res.ToURL, nil
}

func (c *HTTPClient) fetchAccessToken(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, c.endpoints.Web+"/api/portal/v2/getUserBriefInfo.action", nil)
	if err != nil {
		return err
	}
	var brief briefInfo
	if err := c.doJSON(req, "getUserBriefInfo", &brief); err != nil {
		return err
	}
	if brief.SessionKey == "" {
		return errors.Wrap(ErrLogin, "no session key after login")
	}
	c.sessionKey = brief.SessionKey

	ts := strconv.FormatInt(c.now().UnixNano()/int64(time.Millisecond), 10)
	q := url.Values{}
	q.Set("sessionKey", c.sessionKey)

	req, err = c.newRequest(ctx, http.MethodGet, c.endpoints.API+"/open/oauth2/getAccessTokenBySsKey.action?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("AppKey", APPKEY)
	req.Header.Set("Timestamp", ts)
	req.Header.Set("Sign-Type", "1")
	req.Header.Set("Signature", Signature(map[string]string{
		"AppKey":     APPKEY,
		"Timestamp":  ts,
		"sessionKey": c.sessionKey,
	}))

	var token accessToken
	if err := c.doJSON(req, "getAccessTokenBySsKey", &token); err != nil {
		return err
	}
	if token.AccessToken == "" {
		return errors.Wrap(ErrLogin, "no access token after login")
	}
	c.accessToken = token.AccessToken
	return nil
}

func (c *HTTPClient) newFormRequest(ctx context.Context, rawURL string, form url.Values) (*http.Request, error) {
	req, err := c.newRequest(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

// encryptCredential RSA-encrypts s with the base64 DER key served by
// encryptConf and returns lowercase hex.
func encryptCredential(pubKey, s string) (string, error) {
	block, _ := pem.Decode([]byte("-----BEGIN PUBLIC KEY-----\n" + pubKey + "\n-----END PUBLIC KEY-----"))
	if block == nil {
		return "", errors.New("cloud189 login: malformed public key")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return "", errors.Wrap(err, "cloud189 login: parse public key")
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return "", errors.New("cloud189 login: public key is not RSA")
	}

	out, err := rsa.EncryptPKCS1v15(rand.Reader, rsaKey, []byte(s))
	if err != nil {
		return "", errors.Wrap(err, "cloud189 login: encrypt")
	}
	return hex.EncodeToString(out), nil
}
