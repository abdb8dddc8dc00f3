package interfaces

import "mtm-hub/src/models"

// -----------------------------------------------------------------------------
// IDataExchanger pushes fresh MTM data to connected dashboards.
// -----------------------------------------------------------------------------

type IDataExchanger interface {
	// -----------------------------------------------------------------------------
	// Broadcast queues an update for every subscribed client.
	Broadcast(update *models.MMtmUpdate)

	// -----------------------------------------------------------------------------
	// Start the server
	Start() error

	// -----------------------------------------------------------------------------
	// Stop the server gracefully
	Stop() error
}
