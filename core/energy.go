package core

import (
	"errors"
	"fmt"
)

// energy.go implements the energy/freeze ledger, modeled in idiom on
// dao_staking.go (lock/unlock bookkeeping against a ledger) and
// stake_penalty.go (partial-consumption accounting).
//
// FreezeDuration is bounded to 3..=90 days, matching the only range every
// freeze/unfreeze scenario in the reference material ever exercises.
const (
	MinFreezeDurationDays uint32 = 3
	MaxFreezeDurationDays uint32 = 90

	secondsPerDay = 86_400
)

// FreezeDuration is a validated freeze length in whole days.
type FreezeDuration struct {
	Days uint32
}

// NewFreezeDuration validates days against [MinFreezeDurationDays,
// MaxFreezeDurationDays] before constructing a FreezeDuration.
func NewFreezeDuration(days uint32) (FreezeDuration, error) {
	if days < MinFreezeDurationDays || days > MaxFreezeDurationDays {
		return FreezeDuration{}, fmt.Errorf("core: freeze duration %d days out of range [%d, %d]", days, MinFreezeDurationDays, MaxFreezeDurationDays)
	}
	return FreezeDuration{Days: days}, nil
}

// RewardMultiplier returns the energy-per-TOS multiplier for this duration:
// 1 TOS frozen for Days days yields Days*2 energy.
func (d FreezeDuration) RewardMultiplier() uint64 {
	return uint64(d.Days) * 2
}

// DurationInBlocks returns the duration expressed in one-second blocks.
func (d FreezeDuration) DurationInBlocks() uint64 {
	return uint64(d.Days) * secondsPerDay
}

// FreezeRecord is a single stake entry generating energy.
type FreezeRecord struct {
	Amount           Amount         `json:"amount"`
	Duration         FreezeDuration `json:"duration"`
	FreezeTopoheight Topoheight     `json:"freeze_topoheight"`
	UnlockTopoheight Topoheight     `json:"unlock_topoheight"`
	EnergyGained     uint64         `json:"energy_gained"`
}

// NewFreezeRecord truncates amount down to the nearest COIN_VALUE multiple
// and computes the resulting energy gain using pure integer arithmetic: all
// reward calculations use integer division, never floating point.
func NewFreezeRecord(amount Amount, duration FreezeDuration, freezeTopoheight Topoheight) FreezeRecord {
	wholeTOS := (amount / COIN_VALUE) * COIN_VALUE
	energyGained := (wholeTOS / COIN_VALUE) * duration.RewardMultiplier()
	return FreezeRecord{
		Amount:           wholeTOS,
		Duration:         duration,
		FreezeTopoheight: freezeTopoheight,
		UnlockTopoheight: freezeTopoheight + duration.DurationInBlocks(),
		EnergyGained:     energyGained,
	}
}

// CanUnlock reports whether the record may be unfrozen at current.
func (r FreezeRecord) CanUnlock(current Topoheight) bool {
	return current >= r.UnlockTopoheight
}

// EnergyResource tracks an account's total/used energy and its backing
// freeze records.
type EnergyResource struct {
	TotalEnergy          uint64         `json:"total_energy"`
	UsedEnergy           uint64         `json:"used_energy"`
	FrozenTOS            Amount         `json:"frozen_tos"`
	LastUpdateTopoheight Topoheight     `json:"last_update_topoheight"`
	FreezeRecords        []FreezeRecord `json:"freeze_records"`
}

// NewEnergyResource returns a zeroed EnergyResource.
func NewEnergyResource() *EnergyResource {
	return &EnergyResource{}
}

// Clone returns a deep copy, used by the parallel executor's staging
// adapter.
func (e *EnergyResource) Clone() *EnergyResource {
	out := *e
	out.FreezeRecords = append([]FreezeRecord(nil), e.FreezeRecords...)
	return &out
}

// AvailableEnergy returns the unused energy balance.
func (e *EnergyResource) AvailableEnergy() uint64 {
	if e.UsedEnergy >= e.TotalEnergy {
		return 0
	}
	return e.TotalEnergy - e.UsedEnergy
}

// HasEnoughEnergy reports whether required energy is currently available.
func (e *EnergyResource) HasEnoughEnergy(required uint64) bool {
	return e.AvailableEnergy() >= required
}

// ConsumeEnergy deducts amount from the available balance, failing with
// ErrInsufficientEnergy if it would go negative.
func (e *EnergyResource) ConsumeEnergy(amount uint64) error {
	if !e.HasEnoughEnergy(amount) {
		return ErrInsufficientEnergy
	}
	e.UsedEnergy += amount
	return nil
}

// ResetUsedEnergy zeroes the used-energy counter, called periodically.
func (e *EnergyResource) ResetUsedEnergy(topoheight Topoheight) {
	e.UsedEnergy = 0
	e.LastUpdateTopoheight = topoheight
}

// FreezeTOSForEnergy locks tosAmount for duration at topoheight and returns
// the energy gained. Returns 0 without mutating state if truncation to a
// COIN_VALUE multiple yields zero.
func (e *EnergyResource) FreezeTOSForEnergy(tosAmount Amount, duration FreezeDuration, topoheight Topoheight) uint64 {
	record := NewFreezeRecord(tosAmount, duration, topoheight)
	if record.Amount == 0 {
		return 0
	}
	e.FreezeRecords = append(e.FreezeRecords, record)
	e.FrozenTOS += record.Amount
	e.TotalEnergy += record.EnergyGained
	e.LastUpdateTopoheight = topoheight
	return record.EnergyGained
}

// UnfreezeTOS releases tosAmount, truncated to whole TOS, of unlocked TOS at
// currentTopoheight, walking freeze records in insertion order and partially
// consuming the final record if needed. It fails, changing nothing, when the
// unlocked records do not cover the whole truncated amount.
func (e *EnergyResource) UnfreezeTOS(tosAmount Amount, currentTopoheight Topoheight) (uint64, error) {
	wholeTOS := (tosAmount / COIN_VALUE) * COIN_VALUE
	if wholeTOS == 0 {
		return 0, errors.New("core: cannot unfreeze 0 TOS")
	}
	if e.FrozenTOS < wholeTOS {
		return 0, errors.New("core: insufficient frozen TOS")
	}

	remaining := wholeTOS
	var energyRemoved uint64
	kept := e.FreezeRecords[:0:0]

	for _, record := range e.FreezeRecords {
		if remaining == 0 || !record.CanUnlock(currentTopoheight) {
			kept = append(kept, record)
			continue
		}

		unfreezeAmount := record.Amount
		if remaining < unfreezeAmount {
			unfreezeAmount = remaining
		}
		energyToRemove := (unfreezeAmount / COIN_VALUE) * record.Duration.RewardMultiplier()
		energyRemoved += energyToRemove
		remaining -= unfreezeAmount

		if unfreezeAmount < record.Amount {
			record.Amount -= unfreezeAmount
			record.EnergyGained = (record.Amount / COIN_VALUE) * record.Duration.RewardMultiplier()
			kept = append(kept, record)
		}
	}

	if remaining > 0 {
		return 0, errors.New("core: insufficient unlocked TOS to unfreeze")
	}

	e.FreezeRecords = kept
	e.FrozenTOS -= wholeTOS
	if energyRemoved > e.TotalEnergy {
		e.TotalEnergy = 0
	} else {
		e.TotalEnergy -= energyRemoved
	}
	e.LastUpdateTopoheight = currentTopoheight

	return energyRemoved, nil
}

// GetUnlockableRecords returns the freeze records that may be unfrozen at
// currentTopoheight.
func (e *EnergyResource) GetUnlockableRecords(currentTopoheight Topoheight) []FreezeRecord {
	var out []FreezeRecord
	for _, r := range e.FreezeRecords {
		if r.CanUnlock(currentTopoheight) {
			out = append(out, r)
		}
	}
	return out
}

// GetUnlockableTOS sums the amount of all unlockable freeze records.
func (e *EnergyResource) GetUnlockableTOS(currentTopoheight Topoheight) Amount {
	var total Amount
	for _, r := range e.GetUnlockableRecords(currentTopoheight) {
		total += r.Amount
	}
	return total
}
