package crypto

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/tyler-smith/go-bip39"

	"github.com/alphabill-org/zkbridge/internal/util"
)

const mnemonicEntropyBitSize = 128

type (
	// Keys is a key derived from a BIP-39 mnemonic.
	Keys struct {
		Mnemonic       string
		DerivationPath string
		Signer         *Secp256k1Signer
	}

	// KeyFile is the on-disk form of Keys. When saved with a passphrase the
	// mnemonic and private key are kept encrypted.
	KeyFile struct {
		PubKey         hexutil.Bytes `json:"pubKey"`
		DerivationPath string        `json:"derivationPath"`
		Mnemonic       string        `json:"mnemonic,omitempty"`
		PrivKey        hexutil.Bytes `json:"privKey,omitempty"`
		Encrypted      string        `json:"encrypted,omitempty"`
	}
)

// NewKeys derives keys of the given account from the mnemonic, a new
// mnemonic is generated when empty string is given.
func NewKeys(mnemonic string, accountIndex uint64) (*Keys, error) {
	if mnemonic == "" {
		var err error
		if mnemonic, err = generateMnemonic(); err != nil {
			return nil, err
		}
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("invalid mnemonic")
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return nil, err
	}
	// only HDPrivateKeyID of the params is used, as the version of the extended key
	masterKey, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}
	path := DerivationPath(accountIndex)
	privKey, err := derivePrivateKey(masterKey, path)
	if err != nil {
		return nil, fmt.Errorf("deriving key %s: %w", path, err)
	}
	signer, err := NewSecp256k1SignerFromKey(privKey)
	if err != nil {
		return nil, err
	}
	return &Keys{Mnemonic: mnemonic, DerivationPath: path, Signer: signer}, nil
}

// DerivationPath returns BIP-44 path of the account:
// m / purpose' / coin_type' / account' / change / address_index
func DerivationPath(accountIndex uint64) string {
	return fmt.Sprintf("m/44'/634'/%d'/0/0", accountIndex)
}

func (k *Keys) PubKey() []byte {
	return k.Signer.Verifier().MarshalPublicKey()
}

// Save writes the keys to a JSON file, mnemonic and private key are
// encrypted when passphrase is not empty.
func (k *Keys) Save(filename, passphrase string) error {
	kf := &KeyFile{PubKey: k.PubKey(), DerivationPath: k.DerivationPath}
	if passphrase == "" {
		kf.Mnemonic = k.Mnemonic
		kf.PrivKey = k.Signer.MarshalPrivateKey()
	} else {
		secret := append([]byte(k.Mnemonic+"\n"), k.Signer.MarshalPrivateKey()...)
		sealed, err := Encrypt(passphrase, secret)
		if err != nil {
			return fmt.Errorf("encrypting keys: %w", err)
		}
		kf.Encrypted = sealed
	}
	return util.WriteJsonFile(filename, kf)
}

// LoadKeys reads keys written by Keys.Save.
func LoadKeys(filename, passphrase string) (*Keys, error) {
	kf, err := util.ReadJsonFile(filename, &KeyFile{})
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	mnemonic, privKey := kf.Mnemonic, []byte(kf.PrivKey)
	if kf.Encrypted != "" {
		secret, err := Decrypt(passphrase, kf.Encrypted)
		if err != nil {
			return nil, err
		}
		if len(secret) < PrivateKeySize+1 || secret[len(secret)-PrivateKeySize-1] != '\n' {
			return nil, errors.New("invalid encrypted key data")
		}
		mnemonic = string(secret[:len(secret)-PrivateKeySize-1])
		privKey = secret[len(secret)-PrivateKeySize:]
	}
	signer, err := NewSecp256k1SignerFromKey(privKey)
	if err != nil {
		return nil, err
	}
	k := &Keys{Mnemonic: mnemonic, DerivationPath: kf.DerivationPath, Signer: signer}
	if pk := k.PubKey(); string(pk) != string(kf.PubKey) {
		return nil, fmt.Errorf("public key %x does not match the private key", []byte(kf.PubKey))
	}
	return k, nil
}

func generateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(mnemonicEntropyBitSize)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

func derivePrivateKey(masterKey *hdkeychain.ExtendedKey, derivationPath string) ([]byte, error) {
	path, err := accounts.ParseDerivationPath(derivationPath)
	if err != nil {
		return nil, err
	}
	key := masterKey
	for _, n := range path {
		if key, err = key.Derive(n); err != nil {
			return nil, err
		}
	}
	privKey, err := key.ECPrivKey()
	if err != nil {
		return nil, err
	}
	return privKey.Serialize(), nil
}
