package client

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/port"
)

type solanaClientImpl struct {
	rpcClient *rpc.Client
	limiter   *rate.Limiter
	logger    *zap.Logger
}

// NewSolanaClient creates an RPC-backed Solana client. The limiter paces all
// outbound RPC calls so public endpoints don't throttle us.
func NewSolanaClient(endpoint string, rps float64, burst int, logger *zap.Logger) port.SolanaClient {
	return &solanaClientImpl{
		rpcClient: rpc.New(endpoint),
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
		logger:    logger.Named("SolanaClient"),
	}
}

// GetNativeBalance returns the owner's SOL balance in lamports.
func (c *solanaClientImpl) GetNativeBalance(ctx context.Context, owner string) (uint64, error) {
	pubkey, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return 0, fmt.Errorf("invalid solana address %s: %w", owner, err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	out, err := c.rpcClient.GetBalance(ctx, pubkey, rpc.CommitmentFinalized)
	if err != nil {
		return 0, fmt.Errorf("failed to get native balance for %s: %w", owner, err)
	}
	return out.Value, nil
}

// GetTokenHoldings returns every SPL token account the owner holds, covering
// both the legacy token program and token-2022.
func (c *solanaClientImpl) GetTokenHoldings(ctx context.Context, owner string) ([]entity.Holding, error) {
	pubkey, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return nil, fmt.Errorf("invalid solana address %s: %w", owner, err)
	}

	programs := []solana.PublicKey{solana.TokenProgramID, solana.Token2022ProgramID}

	var (
		mu       sync.Mutex
		holdings []entity.Holding
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, program := range programs {
		program := program
		g.Go(func() error {
			batch, err := c.holdingsForProgram(gctx, pubkey, program)
			if err != nil {
				return err
			}
			mu.Lock()
			holdings = append(holdings, batch...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.Debug("Token holdings fetched", zap.String("owner", owner), zap.Int("count", len(holdings)))
	return holdings, nil
}

func (c *solanaClientImpl) holdingsForProgram(ctx context.Context, owner, program solana.PublicKey) ([]entity.Holding, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	config := &rpc.GetTokenAccountsConfig{ProgramId: &program}
	opts := &rpc.GetTokenAccountsOpts{Encoding: solana.EncodingJSONParsed}
	out, err := c.rpcClient.GetTokenAccountsByOwner(ctx, owner, config, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get token accounts for %s (program %s): %w", owner, program, err)
	}

	holdings := make([]entity.Holding, 0, len(out.Value))
	for _, acc := range out.Value {
		var parsed parsedTokenAccount
		if err := json.Unmarshal(acc.Account.Data.GetRawJSON(), &parsed); err != nil {
			c.logger.Warn("Skipping unparseable token account",
				zap.String("account", acc.Pubkey.String()), zap.Error(err))
			continue
		}
		info := parsed.Parsed.Info
		amount, err := strconv.ParseUint(info.TokenAmount.Amount, 10, 64)
		if err != nil {
			c.logger.Warn("Skipping token account with non-numeric amount",
				zap.String("account", acc.Pubkey.String()),
				zap.String("amount", info.TokenAmount.Amount))
			continue
		}
		if amount == 0 {
			continue
		}
		holdings = append(holdings, entity.Holding{
			Mint:     info.Mint,
			ATA:      acc.Pubkey.String(),
			Amount:   amount,
			Decimals: info.TokenAmount.Decimals,
		})
	}
	return holdings, nil
}

type parsedTokenAccount struct {
	Parsed struct {
		Info struct {
			Mint        string `json:"mint"`
			TokenAmount struct {
				Amount   string `json:"amount"`
				Decimals uint8  `json:"decimals"`
			} `json:"tokenAmount"`
		} `json:"info"`
	} `json:"parsed"`
}
