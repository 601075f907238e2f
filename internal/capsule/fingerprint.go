package capsule

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// capsuleKey holds the significant fields of a capsule creation request, in hash order.
type capsuleKey struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	ContributorID uint32 `json:"contributor_id"`
	TimeOpen      string `json:"time_open"`
}

// itemKey holds the significant fields of an item creation request, in hash order.
type itemKey struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Size        string `json:"size"`
	Path        string `json:"path"`
	Metadata    any    `json:"metadata"`
}

// CapsuleFingerprint digests the significant fields of a capsule creation request.
// Identical fields always produce the identical fingerprint.
func CapsuleFingerprint(name, description string, contributorID uint32, timeOpen time.Time) string {
	fp, _ := digest("capsule", capsuleKey{
		Name:          name,
		Description:   description,
		ContributorID: contributorID,
		TimeOpen:      timeOpen.UTC().Format(time.RFC3339Nano),
	})
	return fp
}

// ItemFingerprint digests the significant fields of an item creation request.
// Metadata map keys are sorted by encoding/json, so key order does not matter.
func ItemFingerprint(itemType, description, size, path string, metadata any) (string, error) {
	return digest("item", itemKey{
		Type:        itemType,
		Description: description,
		Size:        size,
		Path:        path,
		Metadata:    metadata,
	})
}

func digest(kind string, key any) (string, error) {
	data, err := json.Marshal(key)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}
