package core

// MatchTransfers pairs surplus entries with shortfall entries in list order.
// Each step moves min(surplus, shortfall) and advances whichever side reached
// zero. Whatever is left once either list runs out stays unresolved.
func MatchTransfers(surplus, shortfall []Balance) []Transfer {
	senders := positive(surplus)
	receivers := positive(shortfall)

	var transfers []Transfer
	i, j := 0, 0
	for i < len(senders) && j < len(receivers) {
		amount := min(senders[i].Amount, receivers[j].Amount)
		transfers = append(transfers, Transfer{
			From:   senders[i].Name,
			To:     receivers[j].Name,
			Amount: amount,
		})

		senders[i].Amount -= amount
		receivers[j].Amount -= amount

		if senders[i].Amount == 0 {
			i++
		}
		if receivers[j].Amount == 0 {
			j++
		}
	}
	return transfers
}

// positive copies the entries with something left to move.
func positive(in []Balance) []Balance {
	out := make([]Balance, 0, len(in))
	for _, b := range in {
		if b.Amount > 0 {
			out = append(out, b)
		}
	}
	return out
}
