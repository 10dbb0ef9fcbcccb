// Package signingevent reads and writes the .signing-event-state
// invitations document: a mapping from invitee name to the roles they
// have been invited to become a delegate-signer of.
package signingevent

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/Mindburn-Labs/reposign/pkg/errors"
	"github.com/Mindburn-Labs/reposign/pkg/tuf"
)

const FileName = ".signing-event-state"

// State is the in-memory form of .signing-event-state.
type State struct {
	Invites map[string][]string `json:"invites"`
}

// Load reads the invitations document from dir. A missing file is not an
// error — it means there are no pending invites.
func Load(dir string) (*State, error) {
	data, err := os.ReadFile(pathIn(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return &State{Invites: map[string][]string{}}, nil
		}
		return nil, errors.Wrap(errors.IoFailure, "read "+FileName, err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(errors.MalformedMetadata, "decode "+FileName, err)
	}
	if s.Invites == nil {
		s.Invites = map[string][]string{}
	}
	return &s, nil
}

// Save writes the invitations document, or deletes it if there are no
// invites left (§4.5: "when the last entry is removed the file is
// deleted").
func (s *State) Save(dir string) error {
	if len(s.Invites) == 0 {
		err := os.Remove(pathIn(dir))
		if err != nil && !os.IsNotExist(err) {
			return errors.Wrap(errors.IoFailure, "remove "+FileName, err)
		}
		return nil
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(errors.MalformedMetadata, "encode "+FileName, err)
	}
	if err := os.WriteFile(pathIn(dir), data, 0o644); err != nil {
		return errors.Wrap(errors.IoFailure, "write "+FileName, err)
	}
	return nil
}

func pathIn(dir string) string {
	return filepath.Join(dir, FileName)
}

// InvitedSignersForRole returns every invitee whose role list contains
// role.
func (s *State) InvitedSignersForRole(role string) []string {
	var names []string
	for name, roles := range s.Invites {
		for _, r := range roles {
			if r == role {
				names = append(names, name)
				break
			}
		}
	}
	return names
}

// RolesWithDelegationInvites returns the set of delegating roles implied
// by pending invites: root and targets both map to root; any other role
// maps to targets (its delegating role), per §4.5.
func (s *State) RolesWithDelegationInvites() []string {
	seen := map[string]bool{}
	var delegators []string
	for _, roles := range s.Invites {
		for _, r := range roles {
			delegator := delegatorOf(r)
			if !seen[delegator] {
				seen[delegator] = true
				delegators = append(delegators, delegator)
			}
		}
	}
	return delegators
}

func delegatorOf(role string) string {
	if role == tuf.RoleRoot || role == tuf.RoleTargets {
		return tuf.RoleRoot
	}
	return tuf.RoleTargets
}

// Accept removes invitee's entry for role. If that was their last
// pending role, their whole entry is removed.
func (s *State) Accept(invitee, role string) {
	roles, ok := s.Invites[invitee]
	if !ok {
		return
	}
	remaining := roles[:0]
	for _, r := range roles {
		if r != role {
			remaining = append(remaining, r)
		}
	}
	if len(remaining) == 0 {
		delete(s.Invites, invitee)
		return
	}
	s.Invites[invitee] = remaining
}
