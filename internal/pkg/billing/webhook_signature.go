package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

// DefaultSignatureTolerance bounds how far a Stripe-Signature timestamp may
// drift from the local clock.
const DefaultSignatureTolerance = 300 * time.Second

const stripeSignatureScheme = "v1"

var (
	ErrMissingSignatureHeader   = errors.New("missing Stripe-Signature header")
	ErrMalformedSignatureHeader = errors.New("malformed Stripe-Signature header")
	ErrNoWebhookSecrets         = errors.New("no webhook signing secrets configured")
	ErrNoValidSignature         = errors.New("no signature matches the payload")
	ErrTimestampOutOfTolerance  = errors.New("signature timestamp outside tolerance")
)

// IsVerificationError reports whether err came from signature verification.
// Those deliveries are rejected with 400 and never processed.
func IsVerificationError(err error) bool {
	return errors.Is(err, ErrMissingSignatureHeader) ||
		errors.Is(err, ErrMalformedSignatureHeader) ||
		errors.Is(err, ErrNoValidSignature) ||
		errors.Is(err, ErrTimestampOutOfTolerance)
}

type signatureHeader struct {
	timestamp  int64
	signatures [][]byte
}

func parseSignatureHeader(header string) (*signatureHeader, error) {
	h := strings.TrimSpace(header)
	if h == "" {
		return nil, ErrMissingSignatureHeader
	}

	out := &signatureHeader{}
	haveTimestamp := false
	for _, part := range strings.Split(h, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, ErrMalformedSignatureHeader
			}
			out.timestamp = ts
			haveTimestamp = true
		case stripeSignatureScheme:
			sig, err := hex.DecodeString(v)
			if err != nil {
				// one garbled entry must not hide a valid sibling
				continue
			}
			out.signatures = append(out.signatures, sig)
		}
	}
	if !haveTimestamp || len(out.signatures) == 0 {
		return nil, ErrMalformedSignatureHeader
	}
	return out, nil
}

// VerifyStripeSignature checks a raw webhook body against a Stripe-Signature
// header. Any candidate secret may match any v1 entry. The timestamp must be
// within tolerance of now in either direction.
func VerifyStripeSignature(payload []byte, header string, secrets []string, tolerance time.Duration, now time.Time) error {
	if len(secrets) == 0 {
		return ErrNoWebhookSecrets
	}
	if tolerance <= 0 {
		tolerance = DefaultSignatureTolerance
	}

	parsed, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	matched := false
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		expected := computeSignature(parsed.timestamp, payload, []byte(secret))
		for _, sig := range parsed.signatures {
			// no early exit: every pair is compared in constant time
			if hmac.Equal(expected, sig) {
				matched = true
			}
		}
	}
	if !matched {
		return ErrNoValidSignature
	}

	drift := now.Sub(time.Unix(parsed.timestamp, 0))
	if drift < 0 {
		drift = -drift
	}
	if drift > tolerance {
		return ErrTimestampOutOfTolerance
	}
	return nil
}

// SignPayload builds a valid header value for payload. Used by tests and the
// local replay tooling.
func SignPayload(payload []byte, secret string, at time.Time) string {
	sig := computeSignature(at.Unix(), payload, []byte(secret))
	return "t=" + strconv.FormatInt(at.Unix(), 10) + "," + stripeSignatureScheme + "=" + hex.EncodeToString(sig)
}

func computeSignature(timestamp int64, payload, secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}
