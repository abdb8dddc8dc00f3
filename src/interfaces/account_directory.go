package interfaces

import "mtm-hub/src/models"

// -----------------------------------------------------------------------------
// IAccountDirectory exposes the configured accounts and session cutoffs.
// -----------------------------------------------------------------------------

type IAccountDirectory interface {
	Accounts() []models.MAccount
	Lookup(userID string) (models.MAccount, bool)
	// File returns the directory as served on GET /users.
	File() models.MAccountsFile
}
