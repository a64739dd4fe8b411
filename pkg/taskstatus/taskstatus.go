// Package taskstatus defines the five-valued result an orch's task handler
// returns for a single key, and the policy for turning a HAL error back
// into one of those five values.
package taskstatus

// Status is the outcome of handling one coalesced key.
type Status int

const (
	// Success means the key's work is fully applied; drop it from the
	// pending map.
	Success Status = iota
	// Invalid means the key's fields can never be applied; drop it and
	// do not retry.
	Invalid
	// Failed means the key's work failed for a reason that will not
	// resolve on its own; drop it and do not retry.
	Failed
	// NeedRetry means the key's dependencies are not yet satisfied;
	// leave it in the pending map for the next sweep.
	NeedRetry
	// Ignore means the HAL reported the request as a no-op (an
	// unimplemented attribute, for example); treat it as handled.
	Ignore
)

func (s Status) String() string {
	switch s {
	case Success:
		return "SUCCESS"
	case Invalid:
		return "INVALID"
	case Failed:
		return "FAILED"
	case NeedRetry:
		return "NEED_RETRY"
	case Ignore:
		return "IGNORE"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether a status should be removed from an orch's
// pending map rather than retried on the next sweep.
func (s Status) Terminal() bool {
	return s != NeedRetry
}

// HALStatus is the subset of SAI/HAL return codes that classification
// cares about. A real HAL client returns a richer error type; callers
// reduce it to one of these before calling Classify.
type HALStatus int

const (
	HALSuccess HALStatus = iota
	HALNotImplemented
	HALAttrNotImplemented
	HALItemAlreadyExists
	HALObjectInUse
	HALNotExecuted
	HALFailure
)

// NotImplementedPolicy controls how Classify treats HALNotImplemented and
// HALAttrNotImplemented. orchagent's handlers disagree on this: a handler
// sitting in front of a feature the HAL never implements (an optional VRF
// attribute, say) wants the no-op swallowed, while a handler for which
// "not implemented" can only mean a missing mandatory capability wants the
// task failed loudly rather than silently dropped. The policy is supplied
// by the caller, per call site, rather than fixed globally.
type NotImplementedPolicy int

const (
	// PolicyIgnore treats HALNotImplemented/HALAttrNotImplemented as a
	// handled no-op, matching orchagent's default for optional attributes.
	PolicyIgnore NotImplementedPolicy = iota
	// PolicyFail treats HALNotImplemented/HALAttrNotImplemented as a
	// terminal failure, for handlers where the capability is mandatory.
	PolicyFail
)

// Classify turns a HAL call's result into a Status, following the same
// decision table orchagent's handleSaiSetStatus/handleSaiCreateStatus apply:
// unimplemented attributes are disposed of per notImpl, a duplicate create
// against a key still staged in a bulker is a transient condition worth
// retrying, and objects still in use by a dependent are retried rather than
// failed outright.
func Classify(hal HALStatus, stillBulkerStaged bool, notImpl NotImplementedPolicy) Status {
	switch hal {
	case HALSuccess:
		return Success
	case HALNotImplemented, HALAttrNotImplemented:
		if notImpl == PolicyFail {
			return Failed
		}
		return Ignore
	case HALItemAlreadyExists:
		if stillBulkerStaged {
			return NeedRetry
		}
		return Success
	case HALObjectInUse:
		return NeedRetry
	case HALNotExecuted:
		return NeedRetry
	default:
		return Failed
	}
}
