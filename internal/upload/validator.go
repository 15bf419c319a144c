// Package upload validates untrusted binary uploads: content-based type
// sniffing, size bounding, and collision-resistant key derivation. The
// validator performs no store I/O.
package upload

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/felixgeelhaar/audiogate/internal/domain"
)

// ValidatedUpload is the output of a successful validation: the bytes
// unchanged, the derived object-store key, and what the content actually
// is.
type ValidatedUpload struct {
	Content     []byte
	Key         string
	ContentType string
	Size        int64
}

// Validator checks upload content against a policy. It is pure and
// CPU-bound; concurrent use needs no coordination.
type Validator struct {
	policy Policy
}

// NewValidator creates a validator for the given policy
func NewValidator(policy Policy) *Validator {
	return &Validator{policy: policy}
}

// Accept validates content against the policy and derives an object-store
// key. The MIME type is sniffed from the bytes' magic numbers; the
// declared filename and any client-declared content type are never
// trusted for the accept decision. The filename only contributes the key
// extension.
func (v *Validator) Accept(content []byte, declaredFilename, username string) (*ValidatedUpload, error) {
	size := int64(len(content))
	if size < v.policy.MinSize {
		return nil, domain.Validationf(
			"file too small (%d bytes): minimum size is %d bytes", size, v.policy.MinSize)
	}
	if size > v.policy.MaxSize {
		return nil, domain.Validationf(
			"file too large (%d bytes): maximum size is %d bytes", size, v.policy.MaxSize)
	}

	detected := mimetype.Detect(content)
	if !v.allowed(detected) {
		return nil, domain.Validationf(
			"invalid file type %q: allowed types are %s",
			detected.String(), strings.Join(v.policy.AllowedTypes, ", "))
	}

	return &ValidatedUpload{
		Content:     content,
		Key:         v.deriveKey(declaredFilename, username),
		ContentType: detected.String(),
		Size:        size,
	}, nil
}

func (v *Validator) allowed(detected *mimetype.MIME) bool {
	for _, t := range v.policy.AllowedTypes {
		if detected.Is(t) {
			return true
		}
	}
	return false
}

// deriveKey builds namespace/username/UTCtimestamp_suffix.ext. The
// derivation is optimistic: no existence check against the store, the
// timestamp plus random suffix make collisions practically impossible.
func (v *Validator) deriveKey(declaredFilename, username string) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	suffix := uuid.NewString()[:8]

	ext := filepath.Ext(declaredFilename)
	if ext == "" {
		ext = v.policy.DefaultExtension
	}

	return fmt.Sprintf("%s/%s/%s_%s%s", v.policy.KeyPrefix, username, timestamp, suffix, ext)
}
