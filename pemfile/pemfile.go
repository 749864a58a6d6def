package pemfile

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"

	"github.com/pkg/errors"

	gossh "golang.org/x/crypto/ssh"
)

// KeyParams names the files of the SSH host key pair.
type KeyParams struct {
	KeyPath       string
	SSHPubKeyPath string
}

// Generate writes a new ed25519 host key in OpenSSH PEM format, and its
// public half in authorized_keys format.
func (k KeyParams) Generate() error {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return errors.WithStack(err)
	}
	block, err := gossh.MarshalPrivateKey(privateKey, "meshmush host key")
	if err != nil {
		return errors.WithStack(err)
	}
	if err := os.WriteFile(k.KeyPath, pem.EncodeToMemory(block), 0600); err != nil {
		return errors.WithStack(err)
	}

	pub, err := gossh.NewPublicKey(publicKey)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := os.WriteFile(k.SSHPubKeyPath, gossh.MarshalAuthorizedKey(pub), 0600); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Ensure generates the key pair unless KeyPath already exists, and returns
// the parsed signer and the private key PEM.
func (k KeyParams) Ensure() (gossh.Signer, []byte, bool, error) {
	generated := false
	if _, err := os.Stat(k.KeyPath); os.IsNotExist(err) {
		if err := k.Generate(); err != nil {
			return nil, nil, false, err
		}
		generated = true
	} else if err != nil {
		return nil, nil, false, errors.WithStack(err)
	}
	pemBytes, err := os.ReadFile(k.KeyPath)
	if err != nil {
		return nil, nil, false, errors.WithStack(err)
	}
	signer, err := gossh.ParsePrivateKey(pemBytes)
	if err != nil {
		return nil, nil, false, errors.Wrapf(err, "parsing %q", k.KeyPath)
	}
	return signer, pemBytes, generated, nil
}
