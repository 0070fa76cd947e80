package ledger

import (
	"context"
	"fmt"

	"github.com/ccash-market/marketd/pkg/logger"
)

// EnsureMarketUser makes sure the market's own ledger account exists and
// its password is correct. The account is created when missing; an existing
// account with the wrong password is a hard error, since the server could
// otherwise never settle trades.
func (c *Client) EnsureMarketUser(ctx context.Context, creds Credentials, log *logger.Logger) error {
	if log == nil {
		log = c.log
	}
	if !c.connected {
		return fmt.Errorf("ledger session not established")
	}

	exists, err := c.ContainsUser(ctx, creds.Username)
	if err != nil {
		return err
	}

	if !exists {
		log.Infof("market user %q does not exist on the ledger; adding", creds.Username)
		if err := c.AddUser(ctx, creds); err != nil {
			return err
		}
		log.Infof("market user %q added to ledger", creds.Username)
		return nil
	}

	ok, err := c.VerifyPassword(ctx, creds)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("market account %q has the incorrect password", creds.Username)
	}
	return nil
}
