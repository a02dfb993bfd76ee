package flashlend

import (
	"context"
	"time"

	"go.flashlend.io/stxdapp/address"
	"go.flashlend.io/stxdapp/api"
	"go.flashlend.io/stxdapp/clarity"
	"go.flashlend.io/stxdapp/watch"
	"golang.org/x/xerrors"
)

// DashboardInterval is the interval between two refreshes of the dashboard.
const DashboardInterval = 30 * time.Second

// ErrNotDeployed is the notice of a dashboard when the contract cannot be
// found.
var ErrNotDeployed = xerrors.New("contract not deployed or not accessible, " +
	"please check contract deployment status")

// Dashboard is the state of the protocol and of the account.
type Dashboard struct {
	Account        address.Address
	Balance        api.Balance
	Deployed       bool
	TotalLiquidity float64
	FlashLoanFee   float64
	Deposited      float64
	Rewards        float64
	UpdatedAt      time.Time
}

type userData struct {
	deposited float64
	rewards   float64
}

// Dashboard fetches the balance of the account and, if the contract is
// deployed, the state of the protocol. A missing contract is not an error
// but the dashboard is marked as not deployed.
func (s *Service) Dashboard(ctx context.Context, account address.Address) (Dashboard, error) {
	d := Dashboard{Account: account}

	balance, err := s.reader.Balance(ctx, account)
	if err != nil {
		return d, xerrors.Errorf("failed to fetch wallet balance: %w", err)
	}

	d.Balance = balance

	deployed, err := s.reader.ContractExists(ctx, s.contract.Address, s.contract.Name)
	if err != nil {
		return d, xerrors.Errorf("failed to fetch protocol data: %w", err)
	}

	if !deployed {
		d.UpdatedAt = time.Now()
		return d, nil
	}

	d.Deployed = true

	liquidity, err := s.readUint(ctx, account, "get-total-liquidity")
	if err != nil {
		return d, xerrors.Errorf("failed to fetch protocol data: %w", err)
	}

	d.TotalLiquidity = float64(liquidity) / api.MicroPerSTX

	// The fee is expressed in basis points.
	fee, err := s.readUint(ctx, account, "get-flash-loan-fee")
	if err != nil {
		return d, xerrors.Errorf("failed to fetch protocol data: %w", err)
	}

	d.FlashLoanFee = float64(fee) / 100

	data, err := s.userData(ctx, account)
	if err != nil {
		return d, xerrors.Errorf("failed to fetch protocol data: %w", err)
	}

	d.Deposited = data.deposited
	d.Rewards = data.rewards
	d.UpdatedAt = time.Now()

	return d, nil
}

// WatchDashboard refreshes the dashboard immediately and then at each
// interval, until the handle is stopped. The callback receives every
// refresh, successful or not.
func (s *Service) WatchDashboard(ctx context.Context, account address.Address, interval time.Duration,
	fn func(Dashboard, error)) *watch.Handle {

	if interval <= 0 {
		interval = DashboardInterval
	}

	return watch.Every(ctx, interval, func(ctx context.Context) error {
		d, err := s.Dashboard(ctx, account)
		if ctx.Err() != nil {
			return watch.ErrStop
		}

		if err != nil {
			s.logger.Warn().Err(err).Stringer("account", account).Msg("dashboard refresh failed")
		}

		fn(d, err)

		return nil
	})
}

func (s *Service) readUint(ctx context.Context, sender address.Address, function string,
	args ...clarity.Value) (uint64, error) {

	value, err := s.reader.CallReadOnly(ctx, s.contract.Address, s.contract.Name, function, sender, args...)
	if err != nil {
		return 0, err
	}

	n, err := clarity.AsUint64(value)
	if err != nil {
		return 0, xerrors.Errorf("%s: %v", function, err)
	}

	return n, nil
}

// userData reads the deposits and the rewards of the account and remembers
// the deposits.
func (s *Service) userData(ctx context.Context, account address.Address) (userData, error) {
	const function = "get-user-data"

	principal, err := clarity.Principal(account.String())
	if err != nil {
		return userData{}, xerrors.Errorf("%s: %v", function, err)
	}

	value, err := s.reader.CallReadOnly(ctx, s.contract.Address, s.contract.Name, function,
		account, principal)
	if err != nil {
		return userData{}, err
	}

	inner, err := clarity.Unwrap(value)
	if err != nil {
		return userData{}, xerrors.Errorf("%s: %v", function, err)
	}

	if opt, ok := inner.(clarity.Optional); ok {
		if opt.Value == nil {
			// Unknown users have nothing deposited.
			s.setDeposits(account, 0)
			return userData{}, nil
		}

		inner = opt.Value
	}

	tuple, ok := inner.(clarity.Tuple)
	if !ok {
		return userData{}, xerrors.Errorf("%s: expected tuple but got %v", function, inner)
	}

	var data userData

	for key, dst := range map[string]*float64{"deposited": &data.deposited, "rewards": &data.rewards} {
		field, found := tuple[key]
		if !found {
			return userData{}, xerrors.Errorf("%s: missing field '%s'", function, key)
		}

		micro, err := clarity.AsUint64(field)
		if err != nil {
			return userData{}, xerrors.Errorf("%s: field '%s': %v", function, key, err)
		}

		*dst = float64(micro) / api.MicroPerSTX
	}

	s.setDeposits(account, data.deposited)

	return data, nil
}
