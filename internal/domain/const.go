package domain

const (
	// CheckpointID is the primary key of the singleton checkpoint row
	CheckpointID = 1

	// IPFSScheme is the content-addressed URI prefix rewritten to a gateway
	IPFSScheme = "ipfs://"
)
