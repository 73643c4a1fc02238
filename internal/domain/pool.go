package domain

import "strings"

// Contract names used as keys of Pool.Addresses.
const (
	ContractRoot          = "ROOT_CONTRACT"
	ContractReserve       = "RESERVE"
	ContractAssessor      = "ASSESSOR"
	ContractCoordinator   = "COORDINATOR"
	ContractSeniorTranche = "SENIOR_TRANCHE"
	ContractJuniorTranche = "JUNIOR_TRANCHE"
	ContractClerk         = "CLERK"
)

// RequiredContracts lists the contracts every pool must expose. The clerk is
// optional and only present on pools with a credit line.
var RequiredContracts = []string{
	ContractRoot,
	ContractReserve,
	ContractAssessor,
	ContractCoordinator,
	ContractSeniorTranche,
	ContractJuniorTranche,
}

// Pool is an investment pool as described by the registry document. It is
// immutable once loaded; a refresh replaces the whole set.
type Pool struct {
	ID        string            `json:"id" yaml:"id"`
	Addresses map[string]string `json:"addresses" yaml:"addresses"`
	Metadata  PoolMetadata      `json:"metadata" yaml:"metadata"`
}

// PoolMetadata is the descriptive part of a pool entry.
type PoolMetadata struct {
	Name       string     `json:"name" yaml:"name"`
	Slug       string     `json:"slug" yaml:"slug"`
	Network    string     `json:"network" yaml:"network"`
	Version    int        `json:"version" yaml:"version"`
	IsArchived bool       `json:"isArchived" yaml:"is_archived"`
	IsUpcoming bool       `json:"isUpcoming" yaml:"is_upcoming"`
	Thresholds Thresholds `json:"thresholds" yaml:"thresholds"`
}

// Thresholds holds per-pool alerting limits.
type Thresholds struct {
	// ReserveAlert is a 27-decimal ratio of max reserve. Empty disables the alert.
	ReserveAlert string `json:"reserveAlert,omitempty" yaml:"reserve_alert"`
}

// Address returns the lower-cased address of the named contract, or "" if
// the pool does not have one.
func (p Pool) Address(name string) string {
	return strings.ToLower(p.Addresses[name])
}

// HasCreditLine reports whether the pool has a clerk contract.
func (p Pool) HasCreditLine() bool {
	return p.Address(ContractClerk) != ""
}

// DisplayName returns the pool name, falling back to its ID.
func (p Pool) DisplayName() string {
	if p.Metadata.Name != "" {
		return p.Metadata.Name
	}
	return p.ID
}

// Validate checks that every required contract address is present.
func (p Pool) Validate() error {
	if p.ID == "" {
		return NewPoolError("?", ErrMalformedState)
	}
	for _, name := range RequiredContracts {
		if p.Address(name) == "" {
			return NewPoolError(p.ID, missingContractError(name))
		}
	}
	return nil
}

type missingContractError string

func (e missingContractError) Error() string { return "missing contract address " + string(e) }

func (e missingContractError) Unwrap() error { return ErrMalformedState }
