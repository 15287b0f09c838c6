package main

import (
	"crypto/ed25519"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Keypair files hold the 64 byte private key as a JSON array of numbers,
// the same layout the Solana CLI uses.

func loadKeypair(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read keypair %s", path)
	}

	var raw []byte
	var values []int
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, errors.Wrapf(err, "invalid keypair %s", path)
	}
	if len(values) != ed25519.PrivateKeySize {
		return nil, errors.Errorf("invalid keypair %s: expected %d bytes, got %d", path, ed25519.PrivateKeySize, len(values))
	}
	for _, value := range values {
		if value < 0 || value > 255 {
			return nil, errors.Errorf("invalid keypair %s: byte out of range", path)
		}
		raw = append(raw, byte(value))
	}

	key := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !key.Public().(ed25519.PublicKey).Equal(ed25519.PublicKey(raw[ed25519.SeedSize:])) {
		return nil, errors.Errorf("invalid keypair %s: public key mismatch", path)
	}
	return key, nil
}

func saveKeypair(path string, key ed25519.PrivateKey) error {
	values := make([]int, len(key))
	for i, b := range key {
		values[i] = int(b)
	}

	data, err := json.Marshal(values)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(err, "failed to create keypair directory")
	}
	return os.WriteFile(path, data, 0o600)
}

func (c *cli) keygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new keypair at the keypair path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			force, _ := cmd.Flags().GetBool("force")
			path := c.v.GetString(keypairFlag)

			if _, err := os.Stat(path); err == nil && !force {
				return errors.Errorf("keypair %s already exists, use --force to overwrite", path)
			}

			_, key, err := ed25519.GenerateKey(nil)
			if err != nil {
				return err
			}
			if err := saveKeypair(path, key); err != nil {
				return err
			}

			p, err := c.printer(cmd)
			if err != nil {
				return err
			}
			return p.print(
				field{"path", path},
				field{"address", base58.Encode(key.Public().(ed25519.PublicKey))},
			)
		},
	}
	cmd.Flags().Bool("force", false, "Overwrite an existing keypair")
	return cmd
}

func (c *cli) addressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Print the address of the keypair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := c.keypair()
			if err != nil {
				return err
			}

			p, err := c.printer(cmd)
			if err != nil {
				return err
			}
			return p.print(field{"address", base58.Encode(key.Public().(ed25519.PublicKey))})
		},
	}
}

// parseAddress parses a base58 address argument, defaulting to the keypair's
// address when empty.
func (c *cli) parseAddress(value string) (ed25519.PublicKey, error) {
	if value == "" {
		key, err := c.keypair()
		if err != nil {
			return nil, err
		}
		return key.Public().(ed25519.PublicKey), nil
	}

	decoded, err := base58.Decode(value)
	if err != nil || len(decoded) != ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid address: %s", value)
	}
	return decoded, nil
}
