package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"

	"github.com/skip2/go-qrcode"
)

// Payload is what a ticket's QR code carries, sealed with the service secret.
type Payload struct {
	TicketID     string `json:"ticketId"`
	TicketNumber string `json:"ticketNumber"`
	EventID      string `json:"eventId"`
}

var ErrMalformed = errors.New("qr: malformed payload")

type Codec struct {
	secret []byte
}

func NewCodec(secret string) *Codec {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &Codec{secret: hashed[:]}
}

// Encrypt seals the payload with AES-GCM and returns it URL-safe base64 encoded.
func (c *Codec) Encrypt(p Payload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}

	gcm, err := c.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, data, nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

func (c *Codec) Decrypt(token string) (*Payload, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrMalformed
	}

	gcm, err := c.aead()
	if err != nil {
		return nil, err
	}
	if len(raw) < gcm.NonceSize() {
		return nil, ErrMalformed
	}

	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	data, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrMalformed
	}

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil || p.TicketID == "" {
		return nil, ErrMalformed
	}
	return &p, nil
}

// PNG renders the encrypted payload as a QR code image.
func (c *Codec) PNG(p Payload, size int) ([]byte, error) {
	token, err := c.Encrypt(p)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(token, qrcode.Medium, size)
}

func (c *Codec) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.secret)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
