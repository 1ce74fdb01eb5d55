package broker

// LiveBroker documents the seam for a real vendor SDK (Alpaca, IBKR, etc.)
// implementing the Port interface. Wiring an actual vendor client is out of
// scope per the engine's stated non-goals; this type exists only so the
// shape of a production adapter is visible alongside PaperBroker, the way
// the teacher's ExchangeAdapter interface is implemented by per-vendor
// adapters under its own execution/adapters package.
type LiveBroker struct {
	// vendorClient would hold the vendor SDK's client here.
}

// NewLiveBroker is intentionally unimplemented; see LiveBroker's doc comment.
func NewLiveBroker() *LiveBroker {
	return &LiveBroker{}
}
