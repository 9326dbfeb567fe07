// Command tos-core exposes operational subcommands over the consensus and
// execution engine: computing a MinerWork hash from a header description,
// and validating a genesis file. It is not a wallet or RPC surface.
package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"github.com/tos-network/tos-sub005/core"
)

func main() {
	rootCmd := &cobra.Command{Use: "tos-core"}
	rootCmd.AddCommand(minerWorkCmd())
	rootCmd.AddCommand(genesisCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// headerJSON is the wire shape accepted by `tos-core miner-work hash`: the
// same fields as core.BlockHeader, with hex/decimal-string encodings for the
// types that don't already round-trip through encoding/json.
type headerJSON struct {
	Version               uint8    `json:"version"`
	Parents               []string `json:"parents"`
	BlueScore             uint64   `json:"blue_score"`
	DAAScore              uint64   `json:"daa_score"`
	BlueWork              string   `json:"blue_work"`
	Bits                  uint32   `json:"bits"`
	PruningPoint          string   `json:"pruning_point"`
	AcceptedIDMerkleRoot  string   `json:"accepted_id_merkle_root"`
	UTXOCommitment        string   `json:"utxo_commitment"`
	Miner                 string   `json:"miner"`
	ExtraNonce            string   `json:"extra_nonce"`
	Timestamp             uint64   `json:"timestamp"`
	Nonce                 uint64   `json:"nonce"`
	TransactionMerkleRoot string   `json:"transaction_merkle_root"`
}

func (h *headerJSON) toBlockHeader() (*core.BlockHeader, error) {
	parents := make([]core.Hash, 0, len(h.Parents))
	for _, p := range h.Parents {
		ph, err := core.HashFromHex(p)
		if err != nil {
			return nil, fmt.Errorf("parents: %w", err)
		}
		parents = append(parents, ph)
	}

	pruningPoint, err := core.HashFromHex(h.PruningPoint)
	if err != nil {
		return nil, fmt.Errorf("pruning_point: %w", err)
	}
	acceptedRoot, err := core.HashFromHex(h.AcceptedIDMerkleRoot)
	if err != nil {
		return nil, fmt.Errorf("accepted_id_merkle_root: %w", err)
	}
	utxoCommit, err := core.HashFromHex(h.UTXOCommitment)
	if err != nil {
		return nil, fmt.Errorf("utxo_commitment: %w", err)
	}
	txRoot, err := core.HashFromHex(h.TransactionMerkleRoot)
	if err != nil {
		return nil, fmt.Errorf("transaction_merkle_root: %w", err)
	}

	minerBytes, err := hex.DecodeString(h.Miner)
	if err != nil || len(minerBytes) != len(core.PublicKey{}) {
		return nil, fmt.Errorf("miner: invalid public key hex")
	}
	var miner core.PublicKey
	copy(miner[:], minerBytes)

	extraNonceBytes, err := hex.DecodeString(h.ExtraNonce)
	if err != nil || len(extraNonceBytes) != 32 {
		return nil, fmt.Errorf("extra_nonce: expected 32 bytes hex")
	}
	var extraNonce [32]byte
	copy(extraNonce[:], extraNonceBytes)

	blueWork, ok := new(uint256.Int).SetString(h.BlueWork)
	if !ok {
		return nil, fmt.Errorf("blue_work: invalid integer %q", h.BlueWork)
	}

	return &core.BlockHeader{
		Version:               h.Version,
		Parents:               parents,
		BlueScore:             h.BlueScore,
		DAAScore:              h.DAAScore,
		BlueWork:              blueWork,
		Bits:                  h.Bits,
		PruningPoint:          pruningPoint,
		AcceptedIDMerkleRoot:  acceptedRoot,
		UTXOCommitment:        utxoCommit,
		Miner:                 miner,
		ExtraNonce:            extraNonce,
		Timestamp:             h.Timestamp,
		Nonce:                 h.Nonce,
		TransactionMerkleRoot: txRoot,
	}, nil
}

func minerWorkCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "miner-work"}
	hashCmd := &cobra.Command{
		Use:   "hash [header.json]",
		Short: "compute the PoW hash for a header description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var hj headerJSON
			if err := json.Unmarshal(data, &hj); err != nil {
				return fmt.Errorf("parse header: %w", err)
			}
			header, err := hj.toBlockHeader()
			if err != nil {
				return fmt.Errorf("decode header: %w", err)
			}

			buf := core.SerializeMinerWork(header)
			mw, err := core.ParseMinerWork(buf[:])
			if err != nil {
				return err
			}

			worker := core.NewWorker()
			worker.SetWork(mw)
			powHash, err := worker.PowHash()
			if err != nil {
				return err
			}
			blockHash, err := worker.BlockHash()
			if err != nil {
				return err
			}

			fmt.Printf("pow_hash:   %s\n", powHash)
			fmt.Printf("block_hash: %s\n", blockHash)
			return nil
		},
	}
	cmd.AddCommand(hashCmd)
	return cmd
}

func genesisCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "genesis"}
	validate := &cobra.Command{
		Use:   "validate [genesis.json]",
		Short: "validate a genesis state file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			state, err := core.DecodeGenesisState(data)
			if err != nil {
				return err
			}
			validated, err := core.ValidateGenesisState(state)
			if err != nil {
				return err
			}
			fmt.Printf("ok: chain_id=%d network=%s assets=%d allocations=%d state_hash=%s\n",
				validated.ChainID, validated.Network, len(validated.Assets), len(validated.Alloc), validated.StateHash)
			return nil
		},
	}
	cmd.AddCommand(validate)
	return cmd
}
