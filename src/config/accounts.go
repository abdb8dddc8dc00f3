package config

import (
	"fmt"
	"os"
	"strings"

	"mtm-hub/src/models"
	"mtm-hub/src/utils"

	"github.com/bytedance/sonic"
)

// -----------------------------------------------------------------------------

// AccountDirectory is the immutable set of accounts loaded at startup.
type AccountDirectory struct {
	file  models.MAccountsFile
	byID  map[string]models.MAccount
	order []models.MAccount
}

// -----------------------------------------------------------------------------

// LoadAccounts reads users.json. Session times missing from the file are
// taken from the yaml session section.
func LoadAccounts(path string, session models.MSessionConfig) (*AccountDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts file '%s': %w", path, err)
	}
	return ParseAccounts(data, session)
}

// -----------------------------------------------------------------------------

func ParseAccounts(data []byte, session models.MSessionConfig) (*AccountDirectory, error) {
	var file models.MAccountsFile
	if err := sonic.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse accounts file: %w", err)
	}
	return NewAccountDirectory(file, session)
}

// -----------------------------------------------------------------------------

func NewAccountDirectory(file models.MAccountsFile, session models.MSessionConfig) (*AccountDirectory, error) {
	if file.OpeningTime == "" {
		file.OpeningTime = session.OpeningTime
	}
	if file.StartTime == "" {
		file.StartTime = session.StartTime
	}
	if file.ChartStartTime == "" {
		file.ChartStartTime = session.ChartStartTime
	}
	if _, err := utils.NewTimeGate(file.OpeningTime, file.StartTime); err != nil {
		return nil, fmt.Errorf("invalid accounts file times: %w", err)
	}

	d := &AccountDirectory{
		byID:  make(map[string]models.MAccount, len(file.Users)),
		order: make([]models.MAccount, 0, len(file.Users)),
	}
	for i, u := range file.Users {
		u.UserID = strings.TrimSpace(u.UserID)
		u.Address = strings.TrimSpace(u.Address)
		if u.UserID == "" {
			return nil, fmt.Errorf("account %d has an empty userId", i)
		}
		if u.Address == "" {
			return nil, fmt.Errorf("account '%s' has no ip configured", u.UserID)
		}
		if _, dup := d.byID[u.UserID]; dup {
			return nil, fmt.Errorf("duplicate account '%s'", u.UserID)
		}
		if u.Alias == "" {
			u.Alias = u.UserID
		}
		d.byID[u.UserID] = u
		d.order = append(d.order, u)
	}
	file.Users = d.order
	d.file = file
	return d, nil
}

// -----------------------------------------------------------------------------

func (d *AccountDirectory) Accounts() []models.MAccount {
	out := make([]models.MAccount, len(d.order))
	copy(out, d.order)
	return out
}

func (d *AccountDirectory) Lookup(userID string) (models.MAccount, bool) {
	a, ok := d.byID[userID]
	return a, ok
}

func (d *AccountDirectory) File() models.MAccountsFile {
	f := d.file
	f.Users = d.Accounts()
	return f
}

// TimeGate builds the gate for the directory's cutoffs.
func (d *AccountDirectory) TimeGate() *utils.TimeGate {
	gate, _ := utils.NewTimeGate(d.file.OpeningTime, d.file.StartTime) // validated in constructor
	return gate
}
