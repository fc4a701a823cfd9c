// encryption.go - Encrypted-log cipher for swap events.
//
// Logs are encrypted to a recipient's app-siloed viewing key: an ephemeral
// Grumpkin keypair performs ECDH against the viewing key, a Poseidon2 KDF
// derives an AES-128-CBC key and IV from the shared point, and the ciphertext
// is packed into field elements at 31 useful bytes each. Grumpkin's base
// field is the BN254 scalar field, so the ephemeral x-coordinate serializes
// directly as the first body field.
//
// The encryptor lives here too: the prover never emits logs on chain, but
// round-trip coverage and test fixtures need both directions.

package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/grumpkin"
	fp_grumpkin "github.com/consensys/gnark-crypto/ecc/grumpkin/fp"
	fr_grumpkin "github.com/consensys/gnark-crypto/ecc/grumpkin/fr"

	"pnlprover/internal/field"
	"pnlprover/internal/poseidon"
)

const (
	// TagBytes is the length of the siloed-tag prefix on a ciphertext buffer.
	TagBytes = 32

	// MessageCiphertextLen is the fixed field count of a ciphertext body.
	MessageCiphertextLen = 17

	// BodyBytes is the serialized body length: one 32-byte field each.
	BodyBytes = MessageCiphertextLen * field.Bytes

	// NumPlaintextFields is the number of field elements a swap log carries.
	NumPlaintextFields = 7

	// packedFields is the body minus the ephemeral-key field.
	packedFields = MessageCiphertextLen - 1

	// symBytes is the AES-CBC ciphertext length: the 225-byte plaintext
	// (sign byte plus seven 32-byte fields) padded to a block boundary.
	symBytes = 240
)

// ErrDecryptFailed reports a ciphertext that does not open under the given
// viewing secret: wrong recipient, wrong app silo, or a corrupt buffer.
var ErrDecryptFailed = errors.New("encryption: decryption failed")

// ViewingKeyPair is a Grumpkin keypair. The secret is a Grumpkin scalar; the
// public key is the point senders encrypt to.
type ViewingKeyPair struct {
	Secret fr_grumpkin.Element
	Public grumpkin.G1Affine
}

// GenerateViewingKeyPair samples a fresh viewing keypair.
func GenerateViewingKeyPair() (*ViewingKeyPair, error) {
	var sk fr_grumpkin.Element
	if _, err := sk.SetRandom(); err != nil {
		return nil, fmt.Errorf("viewing keygen: %w", err)
	}
	return keyPairFromSecret(sk), nil
}

func keyPairFromSecret(sk fr_grumpkin.Element) *ViewingKeyPair {
	_, g := grumpkin.Generators()
	var pk grumpkin.G1Affine
	pk.ScalarMultiplication(&g, sk.BigInt(new(big.Int)))
	return &ViewingKeyPair{Secret: sk, Public: pk}
}

// SiloViewingSecret derives the app-siloed viewing secret from the master
// secret and a contract address. Each app sees an unlinkable key.
func SiloViewingSecret(master fr_grumpkin.Element, app fr.Element) *ViewingKeyPair {
	mb := master.Bytes()
	h := poseidon.Hash(field.FromBytes(mb[:]), app)
	hb := h.Bytes()
	var siloed fr_grumpkin.Element
	siloed.SetBytes(hb[:])
	return keyPairFromSecret(siloed)
}

// SplitTagBody validates a raw log buffer and splits the tag prefix from the
// ciphertext body.
func SplitTagBody(buf []byte) (tag [TagBytes]byte, body []byte, err error) {
	if len(buf) != TagBytes+BodyBytes {
		return tag, nil, fmt.Errorf("encryption: ciphertext buffer is %d bytes, want %d", len(buf), TagBytes+BodyBytes)
	}
	copy(tag[:], buf[:TagBytes])
	return tag, buf[TagBytes:], nil
}

// Encrypt encrypts plaintext fields to a recipient viewing key and returns
// the 17-field ciphertext body.
func Encrypt(plaintext [NumPlaintextFields]fr.Element, recipient grumpkin.G1Affine) ([]byte, error) {
	var esk fr_grumpkin.Element
	if _, err := esk.SetRandom(); err != nil {
		return nil, fmt.Errorf("encrypt: ephemeral keygen: %w", err)
	}
	_, g := grumpkin.Generators()
	var epk, shared grumpkin.G1Affine
	epk.ScalarMultiplication(&g, esk.BigInt(new(big.Int)))
	shared.ScalarMultiplication(&recipient, esk.BigInt(new(big.Int)))

	key, iv := deriveSymmetricKey(&shared)

	msg := make([]byte, 0, symBytes)
	msg = append(msg, ySignByte(&epk.Y))
	for i := range plaintext {
		b := plaintext[i].Bytes()
		msg = append(msg, b[:]...)
	}
	msg = padPKCS7(msg, aes.BlockSize)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	ct := make([]byte, len(msg))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, msg)

	packed, err := field.PackFields(ct, packedFields)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	body := make([]byte, 0, BodyBytes)
	xb := epk.X.Bytes()
	body = append(body, xb[:]...)
	for i := range packed {
		b := packed[i].Bytes()
		body = append(body, b[:]...)
	}
	return body, nil
}

// Decrypt opens a 17-field ciphertext body with an app-siloed viewing
// secret. It returns ErrDecryptFailed when the body does not belong to this
// secret; any other error indicates a malformed buffer.
func Decrypt(body []byte, viewingSecret fr_grumpkin.Element) ([NumPlaintextFields]fr.Element, error) {
	var out [NumPlaintextFields]fr.Element
	if len(body) != BodyBytes {
		return out, fmt.Errorf("encryption: body is %d bytes, want %d", len(body), BodyBytes)
	}
	var x fp_grumpkin.Element
	x.SetBytes(body[:field.Bytes])

	ct := field.UnpackFields(field.ToFields32(body[field.Bytes:]))[:symBytes]

	y, ok := recoverY(&x)
	if !ok {
		return out, ErrDecryptFailed
	}
	// Two candidate preimages for the ephemeral point; the sign byte inside
	// the plaintext says which one the sender used.
	for attempt := 0; attempt < 2; attempt++ {
		epk := grumpkin.G1Affine{X: x, Y: y}
		var shared grumpkin.G1Affine
		shared.ScalarMultiplication(&epk, viewingSecret.BigInt(new(big.Int)))

		key, iv := deriveSymmetricKey(&shared)
		block, err := aes.NewCipher(key)
		if err != nil {
			return out, fmt.Errorf("decrypt: %w", err)
		}
		msg := make([]byte, len(ct))
		cipher.NewCBCDecrypter(block, iv).CryptBlocks(msg, ct)

		if msg, err = unpadPKCS7(msg, aes.BlockSize); err == nil &&
			len(msg) == 1+NumPlaintextFields*field.Bytes &&
			msg[0] == ySignByte(&y) {
			for i := 0; i < NumPlaintextFields; i++ {
				out[i].SetBytes(msg[1+i*field.Bytes : 1+(i+1)*field.Bytes])
			}
			return out, nil
		}
		y.Neg(&y)
	}
	return out, ErrDecryptFailed
}

// deriveSymmetricKey runs the Poseidon2 KDF over the shared point: the first
// half of the digest keys AES-128, the second half seeds the IV.
func deriveSymmetricKey(shared *grumpkin.G1Affine) (key, iv []byte) {
	xb := shared.X.Bytes()
	yb := shared.Y.Bytes()
	d := poseidon.Hash(field.FromBytes(xb[:]), field.FromBytes(yb[:]))
	db := d.Bytes()
	return db[:aes.BlockSize], db[aes.BlockSize:]
}

// recoverY solves y^2 = x^3 - 17 on Grumpkin. Returns false when x is not on
// the curve.
func recoverY(x *fp_grumpkin.Element) (fp_grumpkin.Element, bool) {
	var rhs, b fp_grumpkin.Element
	rhs.Square(x).Mul(&rhs, x)
	b.SetUint64(17)
	rhs.Sub(&rhs, &b)
	var y fp_grumpkin.Element
	if y.Sqrt(&rhs) == nil {
		return y, false
	}
	return y, true
}

func ySignByte(y *fp_grumpkin.Element) byte {
	if y.LexicographicallyLargest() {
		return 1
	}
	return 0
}

func padPKCS7(msg []byte, blockSize int) []byte {
	pad := blockSize - len(msg)%blockSize
	out := make([]byte, len(msg)+pad)
	copy(out, msg)
	for i := len(msg); i < len(out); i++ {
		out[i] = byte(pad)
	}
	return out
}

func unpadPKCS7(msg []byte, blockSize int) ([]byte, error) {
	if len(msg) == 0 || len(msg)%blockSize != 0 {
		return nil, errors.New("encryption: bad padded length")
	}
	pad := int(msg[len(msg)-1])
	if pad == 0 || pad > blockSize || pad > len(msg) {
		return nil, errors.New("encryption: bad padding")
	}
	for _, b := range msg[len(msg)-pad:] {
		if int(b) != pad {
			return nil, errors.New("encryption: bad padding")
		}
	}
	return msg[:len(msg)-pad], nil
}
