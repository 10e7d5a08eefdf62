package billing

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"
)

var signatureNow = time.Unix(1_700_000_000, 0)

func TestVerifyStripeSignatureAcceptsValidPayload(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"invoice.paid"}`)
	header := SignPayload(payload, "whsec_live", signatureNow)

	require.NoError(t, VerifyStripeSignature(payload, header, []string{"whsec_live"}, 0, signatureNow))
}

func TestVerifyStripeSignatureMatchesStripeLibrary(t *testing.T) {
	payload := []byte(`{"id":"evt_2","object":"event"}`)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_lib",
		Timestamp: signatureNow,
	})
	require.NoError(t, VerifyStripeSignature(payload, signed.Header, []string{"whsec_lib"}, 0, signatureNow))

	ours := SignPayload(payload, "whsec_lib", time.Now())
	require.NoError(t, webhook.ValidatePayload(payload, ours, "whsec_lib"))
}

func TestVerifyStripeSignatureAnySecretAnySignature(t *testing.T) {
	payload := []byte(`{"id":"evt_3"}`)
	ts := strconv.FormatInt(signatureNow.Unix(), 10)
	good := SignPayload(payload, "whsec_test", signatureNow)
	goodSig := good[len("t="+ts+",v1="):]

	header := "t=" + ts + ",v1=" + "00ff" + ",v0=abcd,v1=" + goodSig
	err := VerifyStripeSignature(payload, header, []string{"whsec_live", "whsec_test"}, 0, signatureNow)
	assert.NoError(t, err)
}

func TestVerifyStripeSignatureRejectsTamperedBody(t *testing.T) {
	payload := []byte(`{"id":"evt_4","type":"invoice.paid"}`)
	header := SignPayload(payload, "whsec", signatureNow)

	tampered := append([]byte(nil), payload...)
	tampered[5] ^= 0x01

	err := VerifyStripeSignature(tampered, header, []string{"whsec"}, 0, signatureNow)
	assert.ErrorIs(t, err, ErrNoValidSignature)
	assert.True(t, IsVerificationError(err))
}

func TestVerifyStripeSignatureTolerance(t *testing.T) {
	payload := []byte(`{"id":"evt_5"}`)
	tolerance := 300 * time.Second
	secrets := []string{"whsec"}

	atEdge := SignPayload(payload, "whsec", signatureNow.Add(-tolerance))
	assert.NoError(t, VerifyStripeSignature(payload, atEdge, secrets, tolerance, signatureNow))

	stale := SignPayload(payload, "whsec", signatureNow.Add(-tolerance-time.Second))
	assert.ErrorIs(t, VerifyStripeSignature(payload, stale, secrets, tolerance, signatureNow), ErrTimestampOutOfTolerance)

	future := SignPayload(payload, "whsec", signatureNow.Add(tolerance+time.Second))
	assert.ErrorIs(t, VerifyStripeSignature(payload, future, secrets, tolerance, signatureNow), ErrTimestampOutOfTolerance)
}

func TestVerifyStripeSignatureHeaderErrors(t *testing.T) {
	payload := []byte(`{}`)
	secrets := []string{"whsec"}

	tests := []struct {
		name   string
		header string
		want   error
	}{
		{name: "empty", header: "", want: ErrMissingSignatureHeader},
		{name: "no timestamp", header: "v1=abcd", want: ErrMalformedSignatureHeader},
		{name: "bad timestamp", header: "t=abc,v1=abcd", want: ErrMalformedSignatureHeader},
		{name: "no v1", header: "t=1700000000,v0=abcd", want: ErrMalformedSignatureHeader},
		{name: "garbage", header: "nonsense", want: ErrMalformedSignatureHeader},
	}

	for _, tt := range tests {
		err := VerifyStripeSignature(payload, tt.header, secrets, 0, signatureNow)
		if !assert.ErrorIs(t, err, tt.want, tt.name) {
			continue
		}
		assert.True(t, IsVerificationError(err), tt.name)
	}
}

func TestVerifyStripeSignatureWithoutSecrets(t *testing.T) {
	payload := []byte(`{}`)
	header := SignPayload(payload, "whsec", signatureNow)

	err := VerifyStripeSignature(payload, header, nil, 0, signatureNow)
	assert.ErrorIs(t, err, ErrNoWebhookSecrets)
	assert.False(t, IsVerificationError(err))
}
