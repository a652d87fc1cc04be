package api

const (
	// PingEndpoint is the endpoint for checking the API status
	PingEndpoint = "/ping"
	// ProposalsEndpoint is the endpoint for creating a new proposal
	ProposalsEndpoint = "/proposals"
	// ProposalURLParam is the URL parameter carrying the proposal ID
	ProposalURLParam = "proposalId"
	// ProposalEndpoint is the endpoint to get the proposal info
	ProposalEndpoint = "/proposals/{" + ProposalURLParam + "}"
	// VotesEndpoint is the endpoint for submitting an encrypted vote
	VotesEndpoint = "/proposals/{" + ProposalURLParam + "}/votes"
	// TallyEndpoint is the endpoint for requesting the tally of a closed proposal
	TallyEndpoint = "/proposals/{" + ProposalURLParam + "}/tally"
	// ResultsEndpoint is the endpoint to get the published results
	ResultsEndpoint = "/proposals/{" + ProposalURLParam + "}/results"
	// EncryptionKeyEndpoint is the endpoint to get the vote encryption key
	EncryptionKeyEndpoint = "/encryption-key"
	// DecryptionEndpoint is the callback entry point for the decryption
	// oracle. It is not meant for ordinary users: a caller that is not the
	// oracle cannot produce a payload/proof pair that verifies.
	DecryptionEndpoint = "/decryption"
)
