package manifest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aaronsteers/ReelTrust/internal/reelerr"
)

// AlgorithmSHA256 is the only signature algorithm this implementation
// produces today. §9 reserves the field as a discriminant for a future
// "ECDSA-P256" variant that would add PublicKeyFingerprint and a real
// asymmetric signature over the manifest hash.
const AlgorithmSHA256 = "SHA-256"

// Signature binds a manifest's canonical hash. Invariant:
// ManifestHash == SHA256(canonical(manifest)).
type Signature struct {
	Version              string `json:"version"`
	Algorithm            string `json:"algorithm"`
	ManifestHash         string `json:"manifest_hash"`
	Note                 string `json:"note,omitempty"`
	PublicKeyFingerprint string `json:"public_key_fingerprint,omitempty"`
}

// Sign computes m's canonical-form SHA-256 and wraps it in a Signature.
func Sign(m *Manifest) (*Signature, error) {
	hash, err := Hash(m)
	if err != nil {
		return nil, err
	}
	return &Signature{
		Version:      "1.0",
		Algorithm:    AlgorithmSHA256,
		ManifestHash: hash,
		Note:         "content hash, not a cryptographic signature",
	}, nil
}

// Verify recomputes m's canonical hash and compares it against sig. Unknown
// algorithms are refused outright, per §9: "verifiers must refuse unknown
// algorithms."
func Verify(m *Manifest, sig *Signature) error {
	switch sig.Algorithm {
	case AlgorithmSHA256:
		actual, err := Hash(m)
		if err != nil {
			return err
		}
		if actual != sig.ManifestHash {
			return reelerr.New(reelerr.PackageMalformed, "manifest.Verify",
				fmt.Sprintf("manifest integrity check failed: signature=%s recomputed=%s", sig.ManifestHash, actual))
		}
		return nil
	default:
		return reelerr.New(reelerr.PackageMalformed, "manifest.Verify",
			fmt.Sprintf("unsupported signature algorithm %q", sig.Algorithm))
	}
}

// SaveSignature writes sig to path with 2-space indentation.
func SaveSignature(sig *Signature, path string) error {
	data, err := json.MarshalIndent(sig, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest.SaveSignature: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadSignature reads and parses a signature.json file.
func LoadSignature(path string) (*Signature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, reelerr.Wrap(reelerr.InputNotFound, "manifest.LoadSignature", err)
	}
	var sig Signature
	if err := json.Unmarshal(data, &sig); err != nil {
		return nil, reelerr.Wrap(reelerr.PackageMalformed, "manifest.LoadSignature", err)
	}
	return &sig, nil
}
