// Package signing implements the HMAC-SHA256 request signing shared by the
// live order-entry and REST admin collaborators (spec §6's api_key/key_path
// connection keys), so both internal/broker/restbroker and
// internal/rest/binancerest authenticate requests identically rather than
// each rolling its own signer.
//
// Grounded on the teacher's pack-mate bitget.Signer
// (chycee-cryptoGo/internal/infra/bitget/signer.go): a millisecond Unix
// timestamp concatenated with method/path/query/body, HMAC-SHA256'd with
// the account secret. Binance's variant differs only in encoding (hex query
// signature appended to the query string, not a header set), so Sign
// returns the raw signature and lets the caller place it per venue.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Signer holds the account credentials used to authenticate REST requests.
type Signer struct {
	APIKey    string
	secretKey []byte
}

// New constructs a Signer from an API key and secret.
func New(apiKey, secretKey string) *Signer {
	return &Signer{APIKey: apiKey, secretKey: []byte(secretKey)}
}

// Timestamp returns the current Unix millisecond timestamp as Binance-style
// signed requests expect it, formatted for direct inclusion in a query
// string.
func Timestamp() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// Sign computes the hex-encoded HMAC-SHA256 signature of payload under the
// account secret. Callers assemble payload per venue convention (e.g.
// Binance's query string, or Bitget's timestamp+method+path+body).
func (s *Signer) Sign(payload string) string {
	h := hmac.New(sha256.New, s.secretKey)
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}
