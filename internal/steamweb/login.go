package steamweb

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/url"
	"time"
)

// Credentials is what Login needs for one bot: its Steam login plus the
// mobile authenticator secrets stored in models.SteamCredentials.
type Credentials struct {
	Username       string
	Password       string
	SharedSecret   string
	IdentitySecret string
}

// Login performs the RSA-encrypted password exchange and TOTP login flow
// against store.steampowered.com, then ensures a web API key exists,
// returning it. It leaves c's underlying cookie jar populated with the
// resulting session.
func (c *Client) Login(creds Credentials) (string, error) {
	pub, ts, err := c.getRSAKey(creds.Username)
	if err != nil {
		return "", fmt.Errorf("fetching rsa key: %w", err)
	}

	encPwd, err := encryptPassword(creds.Password, pub)
	if err != nil {
		return "", fmt.Errorf("encrypting password: %w", err)
	}

	code, err := generateGuardCode(creds.SharedSecret, time.Now())
	if err != nil {
		return "", fmt.Errorf("generating guard code: %w", err)
	}

	if err := c.doLogin(creds.Username, encPwd, code, ts); err != nil {
		return "", fmt.Errorf("logging in: %w", err)
	}

	key, err := c.ensureWebAPIKey()
	if err != nil {
		return "", fmt.Errorf("ensuring web api key: %w", err)
	}
	return key, nil
}

func (c *Client) getRSAKey(username string) (*rsa.PublicKey, string, error) {
	var res struct {
		Success      bool   `json:"success"`
		PublicKeyMod string `json:"publickey_mod"`
		PublicKeyExp string `json:"publickey_exp"`
		Timestamp    string `json:"timestamp"`
	}
	resp, err := c.http.R().
		SetFormData(map[string]string{"username": username}).
		SetResult(&res).
		Post("https://store.steampowered.com/login/getrsakey/")
	if err != nil {
		return nil, "", err
	}
	_ = resp
	if !res.Success {
		return nil, "", errors.New("getrsakey: not successful")
	}
	n, ok := new(big.Int).SetString(res.PublicKeyMod, 16)
	if !ok {
		return nil, "", errors.New("getrsakey: invalid modulus")
	}
	e, ok := new(big.Int).SetString(res.PublicKeyExp, 16)
	if !ok {
		return nil, "", errors.New("getrsakey: invalid exponent")
	}
	return &rsa.PublicKey{N: n, E: int(e.Int64())}, res.Timestamp, nil
}

func encryptPassword(password string, pub *rsa.PublicKey) (string, error) {
	enc, err := rsa.EncryptPKCS1v15(rand.Reader, pub, []byte(password))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(enc), nil
}

func (c *Client) doLogin(username, encPwd, twoFactor, ts string) error {
	var res struct {
		Success           bool              `json:"success"`
		RequiresTwofactor bool              `json:"requires_twofactor"`
		TransferURLs      []string          `json:"transfer_urls"`
		TransferParams    map[string]string `json:"transfer_parameters"`
		Message           string            `json:"message"`
	}
	_, err := c.http.R().
		SetFormData(map[string]string{
			"username":        username,
			"password":        encPwd,
			"twofactorcode":   twoFactor,
			"rsatimestamp":    ts,
			"remember_login":  "true",
			"donotcache":      fmt.Sprintf("%d", time.Now().UnixNano()),
			"oauth_client_id": "DE45CD61",
			"oauth_scope":     "read_profile write_profile read_client write_client",
		}).
		SetResult(&res).
		Post("https://store.steampowered.com/login/dologin/")
	if err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("login rejected: %s", res.Message)
	}
	for _, u := range res.TransferURLs {
		v := url.Values{}
		for k, val := range res.TransferParams {
			v.Set(k, val)
		}
		resp, err := c.http.R().SetFormDataFromValues(v).Post(u)
		if err == nil {
			_, _ = io.Discard.Write(resp.Body())
		}
	}
	return nil
}

func (c *Client) ensureWebAPIKey() (string, error) {
	if key, _ := c.getWebAPIKey(); key != "" {
		return key, nil
	}
	sessionID := c.cookieValue("steamcommunity.com", "sessionid")
	if sessionID == "" {
		sessionID = c.cookieValue("store.steampowered.com", "sessionid")
	}
	if sessionID == "" {
		return "", errors.New("missing sessionid cookie after login")
	}
	_, err := c.http.R().
		SetFormData(map[string]string{
			"sessionid":    sessionID,
			"agreeToTerms": "agreed",
			"domain":       "localhost",
			"Submit":       "Register",
		}).
		Post("https://steamcommunity.com/dev/registerkey")
	if err != nil {
		return "", err
	}
	return c.getWebAPIKey()
}

func (c *Client) getWebAPIKey() (string, error) {
	resp, err := c.http.R().Get("https://steamcommunity.com/dev/apikey")
	if err != nil {
		return "", err
	}
	m := apiKeyPattern.FindSubmatch(resp.Body())
	if len(m) >= 2 {
		return string(m[1]), nil
	}
	return "", nil
}

func (c *Client) cookieValue(host, name string) string {
	u := &url.URL{Scheme: "https", Host: host}
	for _, ck := range c.http.GetClient().Jar.Cookies(u) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

// unmarshalJSON is a thin wrapper over json.Unmarshal used by client.go to
// decode Steam responses; it adds no error wrapping.
func unmarshalJSON(body []byte, v interface{}) error {
	return json.Unmarshal(body, v)
}
