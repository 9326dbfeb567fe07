package core

// scheduled.go implements the scheduled (deferred) contract execution
// processor: the priority loop, defer/expire state machine, and saturating
// aggregation of transfers, following dao_staking.go's style of a
// sequential pass over ordered records. The processor holds no lock; it
// works on the pending slice the caller passes in.
//
// Block budget constants below are chosen to match the order of magnitude
// of a MIN_GAS_FOR_EXECUTION default of 100_000 and are recorded here, not
// invented silently, so a real deployment can retune them without touching
// the processor's logic.

import (
	"context"
	"errors"
	"sort"
)

const (
	MaxScheduledExecutionsPerBlock = 64
	MaxScheduledExecutionGasPerBlock = 10_000_000
	MinGasForExecution              = 100_000
	MaxDeferCount                    = 5

	// MinerRewardBps is the fraction of offer_amount paid to the miner on
	// any terminal outcome (success, fail, or expire), expressed in basis
	// points of 10_000.
	MinerRewardBps = 7_000
)

// ScheduledExecutionStatus is the lifecycle state of a ScheduledExecution.
type ScheduledExecutionStatus uint8

const (
	ScheduledStatusPending ScheduledExecutionStatus = iota
	ScheduledStatusExecuted
	ScheduledStatusDeferred
	ScheduledStatusFailed
	ScheduledStatusExpired
)

// ScheduledExecutionKind selects when a scheduled execution becomes
// eligible. Only TopoHeight targeting is supported.
type ScheduledExecutionKind struct {
	TargetTopoheight Topoheight
}

// ScheduledExecution is a registered contract job awaiting execution.
type ScheduledExecution struct {
	ExecutionHash         Hash
	Contract              Hash
	SchedulerContract     *Hash
	ChunkID               uint32
	InputData             []byte
	OfferAmount           Amount
	MaxGas                uint64
	RegistrationTopoheight Topoheight
	Kind                  ScheduledExecutionKind
	DeferCount            uint32
	Status                ScheduledExecutionStatus
}

// Defer increments DeferCount and reports whether the defer limit has now
// been reached.
func (s *ScheduledExecution) Defer() (maxReached bool) {
	s.DeferCount++
	return s.DeferCount >= MaxDeferCount
}

// ScheduledErrorCategory classifies an execution failure. It also backs
// core/errors.go's RetryableError, whose Category field names which of
// these applies.
type ScheduledErrorCategory uint8

const (
	ScheduledErrorContractNotFound ScheduledErrorCategory = iota
	ScheduledErrorOutOfGas
	ScheduledErrorContractError
	ScheduledErrorExpired
	ScheduledErrorInternalError
	ScheduledErrorUnknown
)

func (c ScheduledErrorCategory) String() string {
	switch c {
	case ScheduledErrorContractNotFound:
		return "ContractNotFound"
	case ScheduledErrorOutOfGas:
		return "OutOfGas"
	case ScheduledErrorContractError:
		return "ContractError"
	case ScheduledErrorExpired:
		return "Expired"
	case ScheduledErrorInternalError:
		return "InternalError"
	default:
		return "Unknown"
	}
}

// classify maps an error returned by a ContractExecutor to a
// ScheduledErrorCategory and reports whether it should be treated as
// retryable.
func classify(err error) (ScheduledErrorCategory, bool) {
	if errors.Is(err, ErrContractNotFound) {
		return ScheduledErrorContractNotFound, true
	}
	var re *RetryableError
	if errors.As(err, &re) {
		return re.Category, true
	}
	if _, ok := err.(*ModuleError); ok {
		return ScheduledErrorContractError, false
	}
	return ScheduledErrorUnknown, false
}

// ScheduledExecutionResult reports one execution's outcome within a block.
type ScheduledExecutionResult struct {
	Execution        ScheduledExecution
	Success          bool
	ComputeUnitsUsed uint64
	Error            error
	ErrorCategory    ScheduledErrorCategory
	MinerReward      Amount
	Events           []string
	LogMessages      []string
	Transfers        []TransferRequest
}

// BlockScheduledExecutionResults is the output of ProcessScheduledExecutions.
type BlockScheduledExecutionResults struct {
	Results            []ScheduledExecutionResult
	TotalGasUsed        uint64
	TotalMinerRewards    Amount
	SuccessCount        uint32
	FailureCount        uint32
	DeferredCount       uint32
	// AggregatedTransfers maps destination -> asset -> amount, combining every
	// successful execution's requested transfers.
	AggregatedTransfers map[PublicKey]map[Asset]Amount
}

func calculateOfferMinerReward(offerAmount Amount) Amount {
	return Amount((uint64(offerAmount) * MinerRewardBps) / 10_000)
}

// sortByPriority orders executions by (offer_amount desc, registration_topoheight
// asc, execution_hash asc).
func sortByPriority(executions []*ScheduledExecution) {
	sort.SliceStable(executions, func(i, j int) bool {
		a, b := executions[i], executions[j]
		if a.OfferAmount != b.OfferAmount {
			return a.OfferAmount > b.OfferAmount
		}
		if a.RegistrationTopoheight != b.RegistrationTopoheight {
			return a.RegistrationTopoheight < b.RegistrationTopoheight
		}
		return string(a.ExecutionHash[:]) < string(b.ExecutionHash[:])
	})
}

// ProcessScheduledExecutions runs a priority-ordered, budget-bounded pass
// over pending. Deferred executions are returned in
// results.Results with Status == ScheduledStatusDeferred, with Kind already
// retargeted to topoheight+1, and are the caller's responsibility to
// re-insert; the
// processor itself does not own persistence of the pending set.
func ProcessScheduledExecutions(ctx context.Context, pending []*ScheduledExecution, topoheight Topoheight, contract ContractExecutor, blockCtx BlockContext) BlockScheduledExecutionResults {
	sortByPriority(pending)

	out := BlockScheduledExecutionResults{
		AggregatedTransfers: make(map[PublicKey]map[Asset]Amount),
	}

	gasRemaining := uint64(MaxScheduledExecutionGasPerBlock)
	executionsConsumed := 0

	for _, exec := range pending {
		if executionsConsumed >= MaxScheduledExecutionsPerBlock {
			break
		}
		if gasRemaining < MinGasForExecution {
			break
		}

		allocatedGas := exec.MaxGas
		if allocatedGas > gasRemaining {
			allocatedGas = gasRemaining
		}

		result, err := contract.Execute(ctx, ExecutionInput{
			Contract:          exec.Contract,
			SchedulerContract: exec.SchedulerContract,
			Topoheight:        topoheight,
			BlockHash:         blockCtx.BlockHash,
			BlockHeight:       blockCtx.BlockHeight,
			BlockTimestamp:    blockCtx.BlockTimestamp,
			InputData:         exec.InputData,
			MaxGas:            allocatedGas,
		})

		if err == nil {
			gasRemaining -= min64(result.ComputeUnitsUsed, gasRemaining)
			reward := calculateOfferMinerReward(exec.OfferAmount)
			exec.Status = ScheduledStatusExecuted

			for _, tr := range result.Transfers {
				assetMap, ok := out.AggregatedTransfers[tr.Destination]
				if !ok {
					assetMap = make(map[Asset]Amount)
					out.AggregatedTransfers[tr.Destination] = assetMap
				}
				assetMap[tr.Asset] = saturatingAddAmount(assetMap[tr.Asset], tr.Amount)
			}

			out.Results = append(out.Results, ScheduledExecutionResult{
				Execution:        *exec,
				Success:          true,
				ComputeUnitsUsed: result.ComputeUnitsUsed,
				MinerReward:      reward,
				Events:           result.Events,
				LogMessages:      result.LogMessages,
				Transfers:        result.Transfers,
			})
			out.SuccessCount++
			out.TotalMinerRewards += reward
			out.TotalGasUsed += result.ComputeUnitsUsed
			executionsConsumed++
			continue
		}

		category, retryable := classify(err)
		shouldDefer := retryable && exec.DeferCount < MaxDeferCount

		if shouldDefer {
			maxReached := exec.Defer()
			if maxReached {
				exec.Status = ScheduledStatusExpired
				reward := calculateOfferMinerReward(exec.OfferAmount)
				out.Results = append(out.Results, ScheduledExecutionResult{
					Execution:     *exec,
					Success:       false,
					Error:         err,
					ErrorCategory: ScheduledErrorExpired,
					MinerReward:   reward,
				})
				out.FailureCount++
				out.TotalMinerRewards += reward
				executionsConsumed++
				continue
			}
			exec.Status = ScheduledStatusDeferred
			exec.Kind = ScheduledExecutionKind{TargetTopoheight: topoheight + 1}
			out.Results = append(out.Results, ScheduledExecutionResult{
				Execution:     *exec,
				Success:       false,
				Error:         err,
				ErrorCategory: category,
			})
			out.DeferredCount++
			continue
		}

		exec.Status = ScheduledStatusFailed
		reward := calculateOfferMinerReward(exec.OfferAmount)
		out.Results = append(out.Results, ScheduledExecutionResult{
			Execution:     *exec,
			Success:       false,
			Error:         err,
			ErrorCategory: category,
			MinerReward:   reward,
		})
		out.FailureCount++
		out.TotalMinerRewards += reward
		executionsConsumed++
	}

	return out
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func saturatingAddAmount(a, b Amount) Amount {
	sum := a + b
	if sum < a {
		return ^Amount(0)
	}
	return sum
}
