package ledger

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/alanyoungcy/poolkeeper/internal/domain"
)

// DefaultMulticallAddress is the Multicall3 deployment shared by most EVM chains.
const DefaultMulticallAddress = "0xcA11bde05977b3631167028862bE2a173976CA11"

var (
	multicallABI   abi.ABI
	coordinatorABI abi.ABI
)

func init() {
	var err error

	multicallABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "aggregate3",
			"type": "function",
			"stateMutability": "payable",
			"inputs": [
				{"name": "calls", "type": "tuple[]", "components": [
					{"name": "target", "type": "address"},
					{"name": "allowFailure", "type": "bool"},
					{"name": "callData", "type": "bytes"}
				]}
			],
			"outputs": [
				{"name": "returnData", "type": "tuple[]", "components": [
					{"name": "success", "type": "bool"},
					{"name": "returnData", "type": "bytes"}
				]}
			]
		}
	]`))
	if err != nil {
		panic("multicall abi parse: " + err.Error())
	}

	coordinatorABI, err = abi.JSON(strings.NewReader(`[
		{"name": "closeEpoch", "type": "function", "inputs": [], "outputs": []},
		{"name": "executeEpoch", "type": "function", "inputs": [], "outputs": []},
		{
			"name": "submitSolution",
			"type": "function",
			"inputs": [
				{"name": "seniorRedeem", "type": "uint256"},
				{"name": "juniorRedeem", "type": "uint256"},
				{"name": "juniorSupply", "type": "uint256"},
				{"name": "seniorSupply", "type": "uint256"}
			],
			"outputs": [{"name": "", "type": "int256"}]
		}
	]`))
	if err != nil {
		panic("coordinator abi parse: " + err.Error())
	}
}

// CloseEpochData is the calldata of coordinator.closeEpoch().
func CloseEpochData() ([]byte, error) {
	return packCoordinator("closeEpoch")
}

// ExecuteEpochData is the calldata of coordinator.executeEpoch().
func ExecuteEpochData() ([]byte, error) {
	return packCoordinator("executeEpoch")
}

// SubmitSolutionData is the calldata of coordinator.submitSolution for sol.
func SubmitSolutionData(sol domain.Solution) ([]byte, error) {
	return packCoordinator("submitSolution",
		domain.ZeroIfNil(sol.SeniorRedeem).BigInt(),
		domain.ZeroIfNil(sol.JuniorRedeem).BigInt(),
		domain.ZeroIfNil(sol.JuniorSupply).BigInt(),
		domain.ZeroIfNil(sol.SeniorSupply).BigInt(),
	)
}

func packCoordinator(method string, args ...any) ([]byte, error) {
	data, err := coordinatorABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: pack %s: %w", method, err)
	}
	return data, nil
}
