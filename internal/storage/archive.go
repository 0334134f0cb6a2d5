package storage

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/pbkdf2"
)

// Encryption format: magic + 16-byte salt + 12-byte GCM nonce + ciphertext.
const (
	encMagic    = "GCM3NCR0"
	saltLen     = 16
	pbkdf2Iters = 100_000
	encKeyLen   = 32
)

// S3Archive keeps an encrypted copy of every registered document in a
// bucket. Best-effort collaborator of the citation manager; failures
// are logged by the caller, never fatal to registration.
type S3Archive struct {
	client     *s3.Client
	bucketName string
	passphrase string
}

// NewS3Archive builds an archiver for bucketName. An empty passphrase
// stores objects unencrypted.
func NewS3Archive(ctx context.Context, bucketName, passphrase string) (*S3Archive, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &S3Archive{
		client:     s3.NewFromConfig(cfg),
		bucketName: bucketName,
		passphrase: passphrase,
	}, nil
}

// Archive stores content under documents/<documentID>/<filename>.
func (a *S3Archive) Archive(ctx context.Context, documentID, filename string, content []byte) error {
	contentType := mimetype.Detect(content).String()

	body := content
	if a.passphrase != "" {
		enc, err := Encrypt(content, a.passphrase)
		if err != nil {
			return fmt.Errorf("encrypt archive copy: %w", err)
		}
		body = enc
		contentType = "application/octet-stream"
	}

	key := fmt.Sprintf("documents/%s/%s", documentID, filename)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"document-id": documentID,
		},
	})
	if err != nil {
		return fmt.Errorf("put archive object: %w", err)
	}

	log.Debug().
		Str("document_id", documentID).
		Str("key", key).
		Int("bytes", len(body)).
		Bool("encrypted", a.passphrase != "").
		Msg("archived document copy")
	return nil
}

// Encrypt seals plaintext with AES-256-GCM under a PBKDF2-derived key.
func Encrypt(plaintext []byte, passphrase string) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(encMagic)+saltLen+gcm.NonceSize()+len(plaintext)+gcm.Overhead())
	out = append(out, encMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, plaintext, nil)
	return out, nil
}

// Decrypt opens data produced by Encrypt.
func Decrypt(data []byte, passphrase string) ([]byte, error) {
	if len(data) < len(encMagic)+saltLen || string(data[:len(encMagic)]) != encMagic {
		return nil, fmt.Errorf("not an encrypted archive object")
	}
	data = data[len(encMagic):]

	salt := data[:saltLen]
	data = data[saltLen:]

	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(data) < gcm.NonceSize() {
		return nil, fmt.Errorf("encrypted object truncated")
	}

	nonce := data[:gcm.NonceSize()]
	ciphertext := data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt archive object: %w", err)
	}
	return plaintext, nil
}

func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iters, encKeyLen, sha256.New)
}
