package model

// NonceLen is the length of a CSP-E2E or device-to-device nonce: 24
// bytes, suitable for both XSalsa20 and XChaCha20.
const NonceLen = 24

// Nonce is a 24-byte AEAD nonce. Two independent nonce spaces exist
// in this protocol (CSP-E2E, device-to-device); each has its own
// persistent replay-protection set keyed by the raw bytes.
type Nonce [NonceLen]byte

// CookieLen is the length of a connection cookie.
const CookieLen = 16

// Cookie is 16 random bytes identifying one direction of a CSP
// session. Concatenated with an 8-byte little-endian sequence number
// it forms a 24-byte AEAD nonce.
type Cookie [CookieLen]byte
