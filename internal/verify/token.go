// Package verify implements the recurring verification gate: single-use
// tokens bound to a (subject, resource) pair and the per-subject access
// window opened by resolving one.
package verify

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// tokenBytes gives 128 bits of entropy per token, enough that collisions
// are not a practical concern.
const tokenBytes = 16

// Token identifies one verification challenge. A token is terminal once
// verified or expired and is retained afterward as an audit record.
type Token struct {
	Value      string
	SubjectID  int64
	ResourceID int64
	CreatedAt  time.Time
	ExpiresAt  time.Time
	VerifiedAt *time.Time
	Expired    bool
}

// Terminal reports whether the token has reached a final state.
func (t *Token) Terminal() bool {
	return t.Expired || t.VerifiedAt != nil
}

// Issuer mints collision-resistant verification tokens.
type Issuer struct {
	now func() time.Time
}

// NewIssuer creates an Issuer using the wall clock.
func NewIssuer() *Issuer {
	return &Issuer{now: time.Now}
}

// Issue generates a fresh token bound to (subject, resource) expiring after ttl.
func (i *Issuer) Issue(subjectID, resourceID int64, ttl time.Duration) (*Token, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}
	now := i.now().UTC()
	return &Token{
		Value:      hex.EncodeToString(buf),
		SubjectID:  subjectID,
		ResourceID: resourceID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}, nil
}
