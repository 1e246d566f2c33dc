// Package spiffeid verifies the actor behind an approval action against a
// SPIFFE/SPIRE workload identity before the Workflow Engine even checks
// approver-set membership, satisfying pkg/coordinator.ActorVerifier.
package spiffeid

import (
	"context"
	"fmt"
	"time"

	"github.com/spiffe/go-spiffe/v2/spiffeid"
	"github.com/spiffe/go-spiffe/v2/workloadapi"

	"github.com/ocx/grc-core/internal/apperrors"
)

// IDMapper resolves an internal actor id (an approver's user id) to the
// SPIFFE ID it is expected to present, e.g. "spiffe://ocx.example.com/user/jsmith".
type IDMapper func(actorID string) (string, error)

// Verifier authenticates an actor's workload identity through a local
// SPIRE agent before an approval action is accepted.
type Verifier struct {
	source     *workloadapi.X509Source
	mapper     IDMapper
	trustDomain string
}

// New connects to the SPIRE agent at socketPath and builds a Verifier.
// Connection failure is returned rather than silently disabling
// verification: an operator who configured this adapter wants a hard
// failure, not a silently-permissive fallback.
func New(ctx context.Context, socketPath, trustDomain string, mapper IDMapper) (*Verifier, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	source, err := workloadapi.NewX509Source(
		connectCtx,
		workloadapi.WithClientOptions(workloadapi.WithAddr(socketPath)),
	)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.TransientExternal, "failed to connect to SPIRE agent at %s", socketPath)
	}

	return &Verifier{source: source, mapper: mapper, trustDomain: trustDomain}, nil
}

func (v *Verifier) Close() error { return v.source.Close() }

// Verify confirms the process's own workload SVID matches the SPIFFE ID
// expected for actorID. This models the approval-path call pattern: the
// coordinator runs in the same workload as the approver-facing API, so the
// SVID presented to mTLS callers is checked against the claimed actor.
func (v *Verifier) Verify(ctx context.Context, actorID string) error {
	expected, err := v.mapper(actorID)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.PermissionDenied, "no SPIFFE identity mapping for actor %s", actorID)
	}

	id, err := spiffeid.FromString(expected)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.Fatal, "malformed SPIFFE ID %q", expected)
	}

	svid, err := v.source.GetX509SVID()
	if err != nil {
		return apperrors.Wrap(err, apperrors.TransientExternal, "failed to fetch local SVID")
	}

	if svid.ID.String() != id.String() {
		return apperrors.Newf(apperrors.PermissionDenied, "SPIFFE ID mismatch for actor %s: expected %s, got %s", actorID, id, svid.ID)
	}
	return nil
}

// DefaultIDMapper builds SPIFFE IDs of the form
// spiffe://<trustDomain>/user/<actorID>.
func DefaultIDMapper(trustDomain string) IDMapper {
	return func(actorID string) (string, error) {
		return fmt.Sprintf("spiffe://%s/user/%s", trustDomain, actorID), nil
	}
}
