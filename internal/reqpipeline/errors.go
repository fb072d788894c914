package reqpipeline

import "fmt"

// Kind enumerates the error categories from the error-handling design
// table, each carrying its own client-visible disposition.
type Kind int

const (
	// KindParseError is a malformed request line or URL.
	KindParseError Kind = iota
	// KindAclDenied is a peer rejected by the ACL gate.
	KindAclDenied
	// KindFilterDenied is a host rejected by the domain denylist.
	KindFilterDenied
	// KindConnectFailure is a failure reaching the origin server.
	KindConnectFailure
	// KindUpstreamFailure is a failure reaching the configured upstream proxy.
	KindUpstreamFailure
	// KindProtocolTimeout is an idle timeout during the relay; not an error
	// from the client's point of view, but tracked for logging.
	KindProtocolTimeout
	// KindPeerClose is a read returning 0 or a write failing outright.
	KindPeerClose
	// KindHeaderOverflow is a line exceeding HTTP_LINE_LENGTH.
	KindHeaderOverflow
	// KindAllocFailure is a buffer allocation denied.
	KindAllocFailure
)

func (k Kind) String() string {
	switch k {
	case KindParseError:
		return "parse_error"
	case KindAclDenied:
		return "acl_denied"
	case KindFilterDenied:
		return "filter_denied"
	case KindConnectFailure:
		return "connect_failure"
	case KindUpstreamFailure:
		return "upstream_failure"
	case KindProtocolTimeout:
		return "protocol_timeout"
	case KindPeerClose:
		return "peer_close"
	case KindHeaderOverflow:
		return "header_overflow"
	case KindAllocFailure:
		return "alloc_failure"
	default:
		return "unknown"
	}
}

// PipelineError carries an error's Kind, the HTTP status (if any) that
// should be surfaced to the client, and the underlying cause.
type PipelineError struct {
	Kind   Kind
	Status int // 0 means no response body should be written for this kind
	Err    error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func newError(kind Kind, status int, err error) *PipelineError {
	return &PipelineError{Kind: kind, Status: status, Err: err}
}
