package contract

// BuiltinCrowdsale is the ID of the crowdsale ABI.
const BuiltinCrowdsale = "crowdsale"

// The crowdsale sells `token` for `paymentToken` at a fixed integer rate.
// cap, individualCap, totalSold and contributionOf are in sale-token units;
// minPurchaseAmount is in payment-token units.
func init() {
	RegisterBuiltin(BuiltinKind{
		ID:          BuiltinCrowdsale,
		Name:        "Capped ERC-20 Crowdsale",
		Description: "Timed, capped crowdsale paid in an ERC-20 token.",
		ABI:         crowdsaleABI,
	})
}

func viewUint(name string) ABIEntry {
	return ABIEntry{
		Name: name, Type: "function",
		Outputs:         []ABIParam{{Name: "", Type: "uint256"}},
		StateMutability: "view",
	}
}

func viewAddress(name string) ABIEntry {
	return ABIEntry{
		Name: name, Type: "function",
		Outputs:         []ABIParam{{Name: "", Type: "address"}},
		StateMutability: "view",
	}
}

var crowdsaleABI = []ABIEntry{
	viewUint("rate"),
	viewUint("cap"),
	viewUint("individualCap"),
	viewUint("minPurchaseAmount"),
	viewUint("goal"),
	viewUint("openingTime"),
	viewUint("closingTime"),
	viewUint("totalSold"),
	viewAddress("token"),
	viewAddress("paymentToken"),
	{
		Name: "isOpen", Type: "function",
		Outputs:         []ABIParam{{Name: "", Type: "bool"}},
		StateMutability: "view",
	},
	{
		Name: "contributionOf", Type: "function",
		Inputs:          []ABIParam{{Name: "beneficiary", Type: "address"}},
		Outputs:         []ABIParam{{Name: "", Type: "uint256"}},
		StateMutability: "view",
	},
	{
		Name: "buy", Type: "function",
		Inputs:          []ABIParam{{Name: "beneficiary", Type: "address"}, {Name: "amount", Type: "uint256"}},
		StateMutability: "nonpayable",
	},
	{
		Name: "TokensPurchased", Type: "event",
		Inputs: []ABIParam{
			{Name: "purchaser", Type: "address", Indexed: true},
			{Name: "beneficiary", Type: "address", Indexed: true},
			{Name: "value", Type: "uint256"},
			{Name: "amount", Type: "uint256"},
		},
	},
}
