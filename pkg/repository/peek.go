package repository

import (
	"encoding/json"

	"github.com/Mindburn-Labs/reposign/pkg/errors"
)

type envelopePeek struct {
	Signed struct {
		Version int64 `json:"version"`
	} `json:"signed"`
}

// peekVersion extracts just the signed.version field from a role
// document without fully typed-decoding its payload, so VersionOf works
// uniformly for root/targets/snapshot/timestamp/delegated roles alike.
func peekVersion(data []byte) (int64, error) {
	var env envelopePeek
	if err := json.Unmarshal(data, &env); err != nil {
		return 0, errors.Wrap(errors.MalformedMetadata, "peek version", err)
	}
	return env.Signed.Version, nil
}
