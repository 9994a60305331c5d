package usage

import "testing"

func TestSearchesRemaining(t *testing.T) {
	tests := []struct {
		name string
		c    Credits
		want int64
	}{
		{"even", Credits{Balance: 10, OperationCost: 2}, 5},
		{"odd", Credits{Balance: 3, OperationCost: 2}, 1},
		{"negative balance", Credits{Balance: -4, OperationCost: 2}, 0},
		{"zero cost", Credits{Balance: 4}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.SearchesRemaining(); got != tt.want {
				t.Errorf("SearchesRemaining = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPeriod_IsValid(t *testing.T) {
	if !PeriodDay.IsValid() || !PeriodMonth.IsValid() {
		t.Error("day and month should be valid")
	}
	if Period("total").IsValid() {
		t.Error("total should be invalid")
	}
}
