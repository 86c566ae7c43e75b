package accounts

// The JSON field names below are the wire/storage contract; external
// tooling reads the persisted layout directly.

// SecondFactor is the TOTP secret encrypted under the server-wide key.
// The clear secret never reaches durable storage.
type SecondFactor struct {
	CipherText string `json:"cipherText"`
	IV         string `json:"iv"`
}

// Wallet holds the signing key pair: public key in clear, private key
// only as ciphertext plus the salt and iv needed to re-derive the
// decryption key from a correctly supplied PIN.
type Wallet struct {
	PublicKey           string `json:"publicKey"`
	EncryptedPrivateKey string `json:"encryptedPrivateKey"`
	IV                  string `json:"iv"`
	Salt                string `json:"salt"`
}

// Account is the persisted per-user record. PINVerifier is a one-way
// salted hash of the PIN, never the PIN itself.
type Account struct {
	Identity     string       `json:"identity"`
	DisplayName  string       `json:"displayName,omitempty"`
	PINVerifier  string       `json:"pinVerifier"`
	SecondFactor SecondFactor `json:"secondFactor"`
	Wallet       Wallet       `json:"wallet"`
}

// Complete reports whether the record is fully populated. Partial
// records must never be committed to durable storage.
func (a *Account) Complete() bool {
	return a != nil &&
		a.Identity != "" &&
		a.PINVerifier != "" &&
		a.SecondFactor.CipherText != "" &&
		a.SecondFactor.IV != "" &&
		a.Wallet.PublicKey != "" &&
		a.Wallet.EncryptedPrivateKey != "" &&
		a.Wallet.IV != "" &&
		a.Wallet.Salt != ""
}
