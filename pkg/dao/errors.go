package dao

import "errors"

type ErrGovernance error

var (
	ErrRemoteUnavailable   ErrGovernance = errors.New("remote unavailable")              // a read call failed, retry next cycle
	ErrReverted            ErrGovernance = errors.New("transaction reverted")            // the write was mined but failed
	ErrTimeout             ErrGovernance = errors.New("confirmation timeout")            // the write was not confirmed in time
	ErrMismatch            ErrGovernance = errors.New("proposal changed")                // the local payload no longer hashes to the proposal id
	ErrExhausted           ErrGovernance = errors.New("membership undetermined")         // the weight probe budget ran out
	ErrArtifactUnavailable ErrGovernance = errors.New("contract unavailable")            // deployment registry lookup failed
	ErrUnsupportedChain    ErrGovernance = errors.New("wrong network")                   // chain is not served by the registry
	ErrUnknownState        ErrGovernance = errors.New("unknown proposal state")          // state(uint256) returned an unmapped ordinal
	ErrNoSigner            ErrGovernance = errors.New("no signer configured for writes") // session is read-only
)
