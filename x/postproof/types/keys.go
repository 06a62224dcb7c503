package types

const (
	// ModuleName defines the module name
	ModuleName = "postproof"

	// StoreKey defines the primary module store key
	StoreKey = ModuleName

	// RouterKey is the message route for postproof
	RouterKey = ModuleName

	// QuerierRoute defines the module's query routing key
	QuerierRoute = ModuleName
)

// Derivation namespaces. Each persisted record lives at an identity derived
// from one of these namespaces plus its seeds.
const (
	ConfigNamespace    = "postproofconfig"
	LogNamespace       = "postverificationlog"
	TrackerNamespace   = "requester"
	ExecutionNamespace = "execution"
)

// Record bounds.
const (
	MaxLabelLength   = 10
	MaxKeywords      = 20
	MaxKeywordLength = 50
	MaxPostURLLength = 256
	MaxRequestIDLen  = 32
)
