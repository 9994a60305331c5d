package understanding

import "time"

var testTime = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
