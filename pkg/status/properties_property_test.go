//go:build property
// +build property

package status

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Mindburn-Labs/reposign/pkg/tuf"
)

// TestInvitesAlwaysForceInvalid is property P7: status(R) with any
// non-empty invite set is always invalid, regardless of everything
// else about the role.
func TestInvitesAlwaysForceInvalid(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("non-empty invites always force invalid", prop.ForAll(
		func(invites []string) bool {
			var clean []string
			for _, inv := range invites {
				if inv != "" {
					clean = append(clean, inv)
				}
			}
			if len(clean) == 0 {
				return true
			}
			st := &SigningStatus{Role: tuf.RoleRoot, Invites: clean}
			return !validate(st, nil, nil, tuf.RoleRoot, time.Time{})
		},
		gen.SliceOfN(5, gen.AlphaString()),
	))

	properties.TestingRun(t)
}

// TestTimestampSnapshotParity is property P3's keyid/threshold clause:
// parity holds iff both the keyid sets (order-independent) and the
// thresholds of timestamp and snapshot are identical.
func TestTimestampSnapshotParity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("parity check matches keyid-set and threshold equality", prop.ForAll(
		func(keysA, keysB []string, thresholdA, thresholdB int) bool {
			root := &tuf.RootType{
				Roles: map[string]*tuf.Role{
					tuf.RoleTimestamp: {KeyIDs: keysA, Threshold: thresholdA},
					tuf.RoleSnapshot:  {KeyIDs: keysB, Threshold: thresholdB},
				},
			}
			err := checkTimestampSnapshotParity(root)
			wantParity := thresholdA == thresholdB && sameKeyIDs(keysA, keysB)
			return (err == nil) == wantParity
		},
		gen.SliceOfN(3, gen.AlphaString()),
		gen.SliceOfN(3, gen.AlphaString()),
		gen.IntRange(0, 5),
		gen.IntRange(0, 5),
	))

	properties.TestingRun(t)
}
