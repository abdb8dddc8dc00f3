package interfaces

import (
	"context"

	"mtm-hub/src/models"
)

// -----------------------------------------------------------------------------
// IQuoteClient fetches the absolute MTM of one account from its terminal.
// -----------------------------------------------------------------------------

type IQuoteClient interface {

	// FetchMTM is one logical fetch (transport retries follow network.retries).
	// Every failure is a helpers.FetchError.
	FetchMTM(ctx context.Context, account models.MAccount) (models.MQuote, error)
}
