package quote

import (
	"context"
	"fmt"
	"strings"

	"mtm-hub/src/helpers"
	"mtm-hub/src/interfaces"
	"mtm-hub/src/logger"
	"mtm-hub/src/models"
)

// -----------------------------------------------------------------------------

// TerminalClient queries the MTM endpoint each trading terminal exposes.
type TerminalClient struct {
	network interfaces.INetworkManager
	clock   interfaces.IClock
	logger  *logger.Logger
}

func NewTerminalClient(network interfaces.INetworkManager, clock interfaces.IClock, log *logger.Logger) *TerminalClient {
	return &TerminalClient{network: network, clock: clock, logger: log}
}

// -----------------------------------------------------------------------------

// TerminalURL is the MTM endpoint of a terminal. Addresses without a scheme
// are plain host:port pairs.
func TerminalURL(address string) string {
	address = strings.TrimRight(address, "/")
	if strings.HasPrefix(address, "http://") || strings.HasPrefix(address, "https://") {
		return address + "/MTM"
	}
	return "http://" + address + "/MTM"
}

// -----------------------------------------------------------------------------

func (c *TerminalClient) FetchMTM(ctx context.Context, account models.MAccount) (models.MQuote, error) {
	url := TerminalURL(account.Address)

	body, err := c.network.Get(ctx, url, map[string]string{"UserID": account.UserID})
	if err != nil {
		return models.MQuote{}, helpers.NewFetchError(fmt.Sprintf("fetch %s from %s", account.UserID, url), err)
	}

	value, err := DecodeMTMPayload(body)
	if err != nil {
		c.logger.Debug("Undecodable payload from %s: %s", url, truncate(body, 200))
		return models.MQuote{}, helpers.NewFetchError(fmt.Sprintf("decode %s", account.UserID), err)
	}

	return models.MQuote{
		UserID:      account.UserID,
		AbsoluteMTM: value,
		RawPayload:  body,
		FetchedAt:   c.clock.Now(),
	}, nil
}

// -----------------------------------------------------------------------------

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

var _ interfaces.IQuoteClient = (*TerminalClient)(nil)
