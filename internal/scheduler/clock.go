package scheduler

import "time"

// timeNow is a seam for tests.
var timeNow = time.Now
