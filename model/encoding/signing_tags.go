package encoding

// List of domain separation tags for protocol signatures.
//
// Each protocol-level signature signs the hash of an entity identifier
// prefixed with a tag naming the type of the signed object, so that a
// signature over one kind of entity can never be replayed as another.

func tag(domain string) string {
	return protocolPrefix + domain
}

// protocol version and prefix
const protocolPrefix = "BLOCKCLIQUE-V0_"

var (
	// BlockHeaderTag is used for block creator signatures
	BlockHeaderTag = tag("Block-Header")
	// EndorsementTag is used for endorsements of a parent block
	EndorsementTag = tag("Endorsement")
	// OperationTag is used for operation sender signatures
	OperationTag = tag("Operation")
)
