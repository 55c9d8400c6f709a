package webhooks

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "whsec_test"

func TestVerifyAcceptsSignedBody(t *testing.T) {
	body := []byte(`{"id":1001,"order_number":"A1"}`)
	assert.True(t, Verify(body, Sign(secret, body), secret))
}

func TestVerifyRejectsSingleByteChange(t *testing.T) {
	body := []byte(`{"id":1001,"order_number":"A1"}`)
	sig := Sign(secret, body)
	for i := range body {
		mutated := bytes.Clone(body)
		mutated[i] ^= 0x01
		assert.False(t, Verify(mutated, sig, secret), "mutation at byte %d still verified", i)
	}
}

func TestVerifyRejectsMissingParts(t *testing.T) {
	body := []byte(`{}`)
	cases := map[string]struct{ sig, secret string }{
		"empty signature": {"", secret},
		"empty secret":    {Sign(secret, body), ""},
		"not base64":      {"%%%", secret},
		"wrong secret":    {Sign("other", body), secret},
		"hex not base64":  {"deadbeef", secret},
	}
	for name, c := range cases {
		assert.False(t, Verify(body, c.sig, c.secret), name)
	}
}

func TestVerifyNeedsRawBytes(t *testing.T) {
	// re-serializing a parsed payload changes the bytes
	raw := []byte("{\"id\": 1001,  \"order_number\": \"A1\"}")
	sig := Sign(secret, raw)
	var parsed map[string]any
	require.NoError(t, json.Unmarshal(raw, &parsed))
	reencoded, err := json.Marshal(parsed)
	require.NoError(t, err)
	assert.False(t, Verify(reencoded, sig, secret))
	assert.True(t, Verify(raw, sig, secret))
}

func TestVerifyKeyDecodedHex(t *testing.T) {
	hexSecret := "00ff10a0"
	key, err := hex.DecodeString(hexSecret)
	require.NoError(t, err)
	body := []byte(`{"id":1001}`)
	sig := SignKey(key, body)

	assert.True(t, VerifyKey(body, sig, key))
	assert.False(t, Verify(body, sig, hexSecret), "hex text is not the key")
	assert.False(t, VerifyKey(body, sig, nil))
}
