package helpers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
)

const dokuTimestampLayout = "2006-01-02T15:04:05Z"

func NewDokuHeaderGenerator(clientID, secretKey, requestPath string) *DokuHeaderGenerator {
	return &DokuHeaderGenerator{
		ClientID:         clientID,
		SecretKey:        secretKey,
		RequestID:        uuid.New().String(),
		RequestPath:      requestPath,
		RequestTimestamp: time.Now().UTC().Format(dokuTimestampLayout),
	}
}

type DokuHeaderGenerator struct {
	ClientID         string
	SecretKey        string
	RequestID        string
	RequestPath      string
	RequestTimestamp string
}

func (d *DokuHeaderGenerator) GenerateDigest(jsonBody string) string {
	hash := sha256.Sum256([]byte(jsonBody))
	return base64.StdEncoding.EncodeToString(hash[:])
}

// GenerateSignature signs the request components. digest is empty for
// requests without a body.
func (d *DokuHeaderGenerator) GenerateSignature(digest string) string {
	componentSignature := "Client-Id:" + d.ClientID + "\n" +
		"Request-Id:" + d.RequestID + "\n" +
		"Request-Timestamp:" + d.RequestTimestamp + "\n" +
		"Request-Target:" + d.RequestPath
	if digest != "" {
		componentSignature += "\n" + "Digest:" + digest
	}

	mac := hmac.New(sha256.New, []byte(d.SecretKey))
	mac.Write([]byte(componentSignature))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return "HMACSHA256=" + signature
}

func (d *DokuHeaderGenerator) GetHeaders(jsonBody string) map[string]string {
	headers := map[string]string{
		"Client-Id":         d.ClientID,
		"Request-Id":        d.RequestID,
		"Request-Timestamp": d.RequestTimestamp,
	}
	digest := ""
	if jsonBody != "" {
		digest = d.GenerateDigest(jsonBody)
		headers["Digest"] = digest
		headers["Content-Type"] = "application/json"
	}
	headers["Signature"] = d.GenerateSignature(digest)
	return headers
}

// VerifyDokuSignature checks a notification signed by DOKU with the same
// component scheme, using the request id and timestamp it was sent with.
func VerifyDokuSignature(clientID, secretKey, requestPath, requestID, requestTimestamp, body, signature string) bool {
	d := &DokuHeaderGenerator{
		ClientID:         clientID,
		SecretKey:        secretKey,
		RequestID:        requestID,
		RequestPath:      requestPath,
		RequestTimestamp: requestTimestamp,
	}
	expected := d.GenerateSignature(d.GenerateDigest(body))
	return hmac.Equal([]byte(expected), []byte(signature))
}
