// Package contracts holds the ABI fragments the service interacts with.
package contracts

// BillPaymentABI covers the two entry points the flow uses: createOrder
// records a payment keyed by the bytes32 request id (payable when the token
// argument is the zero address, meaning the native asset), and getOrder
// reads a stored order back for the write-once check.
const BillPaymentABI = `[
  {
    "type": "function",
    "name": "createOrder",
    "stateMutability": "payable",
    "inputs": [
      {"name": "requestId", "type": "bytes32"},
      {"name": "token", "type": "address"},
      {"name": "amount", "type": "uint256"}
    ],
    "outputs": []
  },
  {
    "type": "function",
    "name": "getOrder",
    "stateMutability": "view",
    "inputs": [
      {"name": "requestId", "type": "uint256"}
    ],
    "outputs": [
      {"name": "user", "type": "address"},
      {"name": "token", "type": "address"},
      {"name": "amount", "type": "uint256"},
      {"name": "timestamp", "type": "uint256"}
    ]
  }
]`

// ERC20ABI is the subset of the token standard the executor needs.
const ERC20ABI = `[
  {
    "type": "function",
    "name": "approve",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "spender", "type": "address"},
      {"name": "amount", "type": "uint256"}
    ],
    "outputs": [
      {"name": "", "type": "bool"}
    ]
  },
  {
    "type": "function",
    "name": "allowance",
    "stateMutability": "view",
    "inputs": [
      {"name": "owner", "type": "address"},
      {"name": "spender", "type": "address"}
    ],
    "outputs": [
      {"name": "", "type": "uint256"}
    ]
  },
  {
    "type": "function",
    "name": "balanceOf",
    "stateMutability": "view",
    "inputs": [
      {"name": "account", "type": "address"}
    ],
    "outputs": [
      {"name": "", "type": "uint256"}
    ]
  }
]`
