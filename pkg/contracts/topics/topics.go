package topics

const (
	// Apostas
	BetSettled = "bet_settled"

	// Transferências de comissão (referral / fee receiver)
	PayoutRetry = "payout_retry"

	// DLQs
	PayoutRetryDLQ = "payout_retry_dlq"
)
