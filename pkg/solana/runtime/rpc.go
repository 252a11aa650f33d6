package runtime

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// GetAccountInfoWithOpts serves committed accounts in the shape returned by
// an RPC node, so readers can run against a Bank or a cluster alike.
func (b *Bank) GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	acct, ok := b.Account(account)
	if !ok {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetAccountInfoResult{
		Value: &rpc.Account{
			Lamports: acct.Lamports,
			Owner:    acct.Owner,
			Data:     rpc.DataBytesOrJSONFromBytes(acct.Data),
		},
	}, nil
}
