// Package usage describes credit and encoder token consumption reports.
package usage

// Period is the aggregation granularity of the encoder budget.
type Period string

// Aggregation period constants.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// IsValid checks if the period is one of the supported values.
func (p Period) IsValid() bool { return p == PeriodDay || p == PeriodMonth }

// Credits is a user's metered balance.
type Credits struct {
	UserID        string `json:"user_id"`
	Granted       int64  `json:"granted"`
	Spent         int64  `json:"spent"`
	Balance       int64  `json:"balance"`
	OperationCost int64  `json:"operation_cost"`
}

// SearchesRemaining returns how many metered searches the balance still covers.
func (c Credits) SearchesRemaining() int64 {
	if c.OperationCost <= 0 || c.Balance <= 0 {
		return 0
	}
	return c.Balance / c.OperationCost
}

// TokenBudget is the encoder token budget for one period.
type TokenBudget struct {
	Period      Period `json:"period"`
	Limit       int64  `json:"limit"`
	Used        int64  `json:"used"`
	Remaining   int64  `json:"remaining"`
	IsExhausted bool   `json:"is_exhausted"`
	PeriodStart int64  `json:"period_start"` // unix millis
	ResetsAt    int64  `json:"resets_at"`    // unix millis
}

// Report combines a user's credits with the shared encoder budget.
type Report struct {
	Credits Credits     `json:"credits"`
	Encoder TokenBudget `json:"encoder"`
}
