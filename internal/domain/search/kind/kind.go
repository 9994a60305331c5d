package kind

// Kind is the search capability a request uses.
type Kind string

// Search kinds.
const (
	Multimodal     Kind = "multimodal"
	Conversational Kind = "conversational"
	Domain         Kind = "domain"
)

// IsValid checks if the kind is one of the supported values.
func (k Kind) IsValid() bool {
	return k == Multimodal || k == Conversational || k == Domain
}

// Operation is the metering key charged for this kind.
func (k Kind) Operation() string { return "search." + string(k) }

// Strategy tags the execution path in response metadata.
type Strategy string

// Strategy prefixes.
const (
	remotePrefix = "mcp-"
	localPrefix  = "direct-"
)

// RemoteStrategy tags a result produced by the remote search service.
func (k Kind) RemoteStrategy() Strategy { return Strategy(remotePrefix + string(k)) }

// LocalStrategy tags a result produced by the local fallback path.
func (k Kind) LocalStrategy() Strategy { return Strategy(localPrefix + string(k)) }

// IsRemote reports whether s was produced remotely.
func (s Strategy) IsRemote() bool {
	return len(s) > len(remotePrefix) && s[:len(remotePrefix)] == remotePrefix
}
