package tokenmanager

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	log "github.com/F5Networks/bigiq-license-ctlr/pkg/vlogger"
)

const (
	// BIG-IQ authentication endpoints
	BigIQLoginURL = "/mgmt/shared/authn/login"
	BigIQTokenURL = "/mgmt/shared/authz/tokens/"

	// RetryInterval is the delay in seconds between login retries.
	RetryInterval = 10

	tokenManagerPrefix = "[Token Manager]"
)

type TokenManagerInterface interface {
	GetToken() string
	RefreshToken() error
	SyncToken() error
	SyncTokenWithoutRetry() (error, bool)
	SetToken(token string, expirationMicros int64)
	Ready() bool
}

// TokenManager is responsible for the lifecycle of the BIG-IQ
// authentication token.
type TokenManager struct {
	mu              sync.Mutex
	token           string
	tokenExpiry     time.Time
	tokenRefreshURL string
	ServerURL       string
	credentials     Credentials
	httpClient      *http.Client
}

// Credentials represent the username and password used to authenticate
// with the BIG-IQ.
type Credentials struct {
	Username          string `json:"username"`
	Password          string `json:"password"`
	LoginProviderName string `json:"loginProviderName,omitempty"`
}

// TokenResponse represents the login response received from the BIG-IQ.
type TokenResponse struct {
	Token struct {
		Token            string `json:"token"`
		ExpirationMicros int64  `json:"expirationMicros"`
		Timeout          int    `json:"timeout"`
	} `json:"token"`
}

// NewTokenManager creates a new instance of TokenManager.
func NewTokenManager(serverURL string, credentials Credentials, httpClient *http.Client) *TokenManager {
	if credentials.LoginProviderName == "" {
		credentials.LoginProviderName = "tmos"
	}
	return &TokenManager{
		ServerURL:   serverURL,
		credentials: credentials,
		httpClient:  httpClient,
	}
}

// GetToken returns the current valid saved token, refreshing it first if
// it is close to expiry.
func (tm *TokenManager) GetToken() string {
	if time.Now().After(tm.tokenExpiry) {
		if err := tm.RefreshToken(); err != nil {
			log.Errorf("%s Failed to refresh token from BIG-IQ: %v", tokenManagerPrefix, err)
		}
	}
	tm.mu.Lock()
	token := tm.token
	tm.mu.Unlock()
	return token
}

// Ready reports whether a usable token is currently held.
func (tm *TokenManager) Ready() bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.token != "" && time.Now().Before(tm.tokenExpiry)
}

// SetToken safely sets the token in the TokenManager.
func (tm *TokenManager) SetToken(token string, expirationMicros int64) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.token = token
	expirationTime := time.Unix(0, expirationMicros*1000)
	// Refresh slightly before the actual expiration
	tm.tokenExpiry = expirationTime.Add(-30 * time.Second)
	tm.tokenRefreshURL = BigIQTokenURL + token
}

// RefreshToken extends the lifetime of the current token, falling back
// to a fresh login when no token is held or the refresh is rejected.
func (tm *TokenManager) RefreshToken() error {
	if tm.token == "" || tm.tokenRefreshURL == "" {
		return tm.SyncToken()
	}

	req, err := http.NewRequest("PATCH", tm.ServerURL+tm.tokenRefreshURL, nil)
	if err != nil {
		return fmt.Errorf("error creating token refresh request: %v", err)
	}
	req.Header.Add("X-F5-Auth-Token", tm.token)
	req.Header.Add("Content-Type", "application/json")

	resp, err := tm.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("unable to establish connection with BIG-IQ: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("unable to read response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return tm.SyncToken()
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return fmt.Errorf("error parsing token response: %v", err)
	}

	tm.SetToken(tokenResp.Token.Token, tokenResp.Token.ExpirationMicros)
	return nil
}

// SyncTokenWithoutRetry performs a single login against the BIG-IQ. The
// second return value reports whether the failure is permanent.
func (tm *TokenManager) SyncTokenWithoutRetry() (err error, exit bool) {
	payload, err := json.Marshal(tm.credentials)
	if err != nil {
		return fmt.Errorf("marshaling failed for credentials: %v", err), false
	}

	resp, err := tm.httpClient.Post(tm.ServerURL+BigIQLoginURL, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("unable to establish connection with BIG-IQ: %v", err), true
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("unable to read response body: %v", err), false
	}

	if resp.StatusCode != http.StatusOK {
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("unauthorized to fetch token from BIG-IQ. "+
				"Please check the credentials, status code: %d, response: %s", resp.StatusCode, body), true
		case http.StatusNotFound, http.StatusMovedPermanently:
			return fmt.Errorf("requested page/api not found, status code: %d, response: %s",
				resp.StatusCode, body), true
		default:
			return fmt.Errorf("failed to get token, status code: %d, response: %s",
				resp.StatusCode, body), false
		}
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return fmt.Errorf("error parsing token response: %v", err), false
	}

	tm.SetToken(tokenResp.Token.Token, tokenResp.Token.ExpirationMicros)
	log.Debugf("%s Successfully fetched token from BIG-IQ", tokenManagerPrefix)
	return nil, false
}

// SyncToken fetches a token, retrying transient failures.
func (tm *TokenManager) SyncToken() error {
	for {
		err, exit := tm.SyncTokenWithoutRetry()
		if err != nil {
			if !exit {
				log.Debugf("%s Retrying to fetch token in %d seconds", tokenManagerPrefix, RetryInterval)
				time.Sleep(RetryInterval * time.Second)
				continue
			}
			return err
		}
		return nil
	}
}
