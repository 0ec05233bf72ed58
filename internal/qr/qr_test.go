package qr

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt(t *testing.T) {
	codec := NewCodec("scanner-secret")
	payload := Payload{TicketID: "ticket-1", TicketNumber: "TKT26100001", EventID: "event-1"}

	token, err := codec.Encrypt(payload)
	require.NoError(t, err)
	assert.NotContains(t, token, "ticket-1")

	decoded, err := codec.Decrypt(token)
	require.NoError(t, err)
	assert.Equal(t, payload, *decoded)
}

func TestDecryptRejectsForeignAndTamperedTokens(t *testing.T) {
	token, err := NewCodec("secret-a").Encrypt(Payload{TicketID: "ticket-1", TicketNumber: "n"})
	require.NoError(t, err)

	_, err = NewCodec("secret-b").Decrypt(token)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = NewCodec("secret-a").Decrypt("not base64!")
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = NewCodec("secret-a").Decrypt("AAAA")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestPNGIsAnImage(t *testing.T) {
	img, err := NewCodec("secret").PNG(Payload{TicketID: "ticket-1", TicketNumber: "n"}, 256)
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(img))
	require.NoError(t, err)
	assert.Equal(t, 256, decoded.Bounds().Dx())
}
