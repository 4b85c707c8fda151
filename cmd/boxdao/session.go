package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/citizenwallet/boxdao/internal/config"
	"github.com/citizenwallet/boxdao/internal/registry"
	"github.com/citizenwallet/boxdao/internal/services/ethrequest"
	"github.com/citizenwallet/boxdao/pkg/dao"
	"github.com/citizenwallet/boxdao/pkg/governor"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// newSession connects to the node and binds the Governor and the Box for
// the configured identity. The caller closes the session's EVM.
func newSession(ctx context.Context, conf *config.Config, logger *zap.Logger) (*dao.Session, error) {
	logger.Info("connecting to rpc...", zap.String("url", conf.RPCURL))

	evm, err := ethrequest.NewEthService(ctx, conf.RPCURL)
	if err != nil {
		return nil, err
	}
	evm = evm.WithPollInterval(conf.SyncInterval).WithLogger(logger)

	if conf.RPCWSURL != "" {
		logger.Info("subscribing to heads over websocket...")
		evm, err = evm.WithWebsocket(conf.RPCWSURL)
		if err != nil {
			return nil, err
		}
	}

	sess, err := bindSession(ctx, conf, evm)
	if err != nil {
		evm.Close()
		return nil, err
	}

	logger.Info("session ready",
		zap.String("chain", sess.ChainID.String()),
		zap.String("governor", sess.Governor.Address().Hex()),
		zap.String("box", sess.Box.Address().Hex()),
		zap.String("account", sess.Account.Hex()),
		zap.Bool("read_only", !sess.HasSigner()),
	)

	return sess, nil
}

func bindSession(ctx context.Context, conf *config.Config, evm *ethrequest.EthService) (*dao.Session, error) {
	chainID, err := evm.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: chain id: %v", dao.ErrRemoteUnavailable, err)
	}

	if _, err := registry.ChainKey(chainID); err != nil {
		return nil, err
	}

	account, auth, err := ethrequest.NewSigner(conf.PrivateKey, chainID)
	if err != nil {
		return nil, fmt.Errorf("invalid PRIVATE_KEY: %w", err)
	}

	gov, box, err := bindContracts(conf, chainID, evm.Backend(), auth)
	if err != nil {
		return nil, err
	}

	return &dao.Session{
		ChainID:    chainID,
		Account:    account,
		EVM:        evm,
		Governor:   gov,
		Box:        box,
		StartBlock: conf.GovernorStartBlock,
	}, nil
}

// bindContracts uses the deployment registry when one is configured, a
// configured address then overrides the registry's latest deployment
func bindContracts(conf *config.Config, chainID *big.Int, backend bind.ContractBackend, auth *bind.TransactOpts) (*governor.Governor, *governor.Box, error) {
	if conf.DeploymentsPath == "" {
		gov, err := governor.NewGovernor(common.HexToAddress(conf.GovernorAddress), backend, auth)
		if err != nil {
			return nil, nil, err
		}

		box, err := governor.NewBox(common.HexToAddress(conf.BoxAddress), backend)
		if err != nil {
			return nil, nil, err
		}

		return gov, box, nil
	}

	reg := registry.New(conf.DeploymentsPath)

	govAddr, govABI, err := resolveContract(reg, chainID, registry.ContractGovernor, conf.GovernorAddress)
	if err != nil {
		return nil, nil, err
	}

	boxAddr, boxABI, err := resolveContract(reg, chainID, registry.ContractBox, conf.BoxAddress)
	if err != nil {
		return nil, nil, err
	}

	return governor.NewGovernorWithABI(govAddr, govABI, backend, auth), governor.NewBoxWithABI(boxAddr, boxABI, backend), nil
}

func resolveContract(reg *registry.Registry, chainID *big.Int, name, override string) (common.Address, *abi.ABI, error) {
	if override == "" {
		return reg.Contract(chainID, name)
	}

	addr := common.HexToAddress(override)
	parsed, err := reg.ResolveABI(chainID, addr)
	if err != nil {
		return common.Address{}, nil, err
	}

	return addr, parsed, nil
}
