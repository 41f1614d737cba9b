package types

// GatewayErrorKind classifies the outcome of a gateway chat call so callers
// can branch deterministically instead of sniffing reply text.
type GatewayErrorKind int

const (
	// GatewayOK means the provider returned a reply.
	GatewayOK GatewayErrorKind = iota
	// GatewayMissingCredentials means no usable API key was configured.
	// Detected pre-flight; no network call was attempted.
	GatewayMissingCredentials
	// GatewayTransient means the provider call failed (network, quota,
	// model error) after any retries.
	GatewayTransient
)

// String returns a short label for the error kind.
func (k GatewayErrorKind) String() string {
	switch k {
	case GatewayOK:
		return "ok"
	case GatewayMissingCredentials:
		return "missing_credentials"
	case GatewayTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// ChatResult is the normalized outcome of a chat turn. Text is always safe
// to display: on failure it carries the persona-appropriate fallback wording.
type ChatResult struct {
	Text string
	Err  GatewayErrorKind
}

// OK reports whether the provider produced the reply.
func (r ChatResult) OK() bool { return r.Err == GatewayOK }
