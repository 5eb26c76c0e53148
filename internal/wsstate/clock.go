package wsstate

import "time"

func defaultNow() int64 { return time.Now().UnixMilli() }
