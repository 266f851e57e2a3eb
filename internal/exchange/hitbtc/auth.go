package hitbtc

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"
)

// signer produces the two HitBtc signature styles: the WebSocket message
// envelope (base64 HMAC-SHA512 of the JSON message) and the REST query-string
// signature (lowercase hex HMAC-SHA512 of path + query).
type signer struct {
	apiKey string
	secret string
	nonce  atomic.Int64
}

func newSigner(apiKey, secret string) *signer {
	s := &signer{apiKey: apiKey, secret: secret}
	s.nonce.Store(0)
	return s
}

// authEnvelope is the outer structure of every authenticated WebSocket
// message.
type authEnvelope struct {
	ApiKey    string      `json:"apikey"`
	Signature string      `json:"signature"`
	Message   authMessage `json:"message"`
}

type authMessage struct {
	Nonce   int64          `json:"nonce"`
	Payload map[string]any `json:"payload"`
}

// signCommand wraps the named payload in the authenticated envelope and
// returns it serialized, ready to write to the order-entry socket.
func (s *signer) signCommand(msgType string, payload any) ([]byte, error) {
	msg := authMessage{
		Nonce:   s.nonce.Add(1),
		Payload: map[string]any{msgType: payload},
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("hitbtc: marshal %s: %w", msgType, err)
	}

	mac := hmac.New(sha512.New, []byte(s.secret))
	mac.Write(body)
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	out, err := json.Marshal(authEnvelope{
		ApiKey:    s.apiKey,
		Signature: sig,
		Message:   msg,
	})
	if err != nil {
		return nil, fmt.Errorf("hitbtc: marshal envelope: %w", err)
	}
	return out, nil
}

// signQuery returns the query string for an authenticated GET and the value
// for its X-Signature header. The signature covers path?query with the nonce
// and apikey baked into the query.
func (s *signer) signQuery(path string, nonce int64) (query, signature string) {
	vals := url.Values{}
	vals.Set("nonce", strconv.FormatInt(nonce, 10))
	vals.Set("apikey", s.apiKey)
	query = vals.Encode()

	mac := hmac.New(sha512.New, []byte(s.secret))
	mac.Write([]byte(path + "?" + query))
	signature = hex.EncodeToString(mac.Sum(nil))
	return query, signature
}

// restNonce returns a strictly increasing nonce for REST calls, microseconds
// since epoch.
func restNonce() int64 {
	return time.Now().UnixMicro()
}
