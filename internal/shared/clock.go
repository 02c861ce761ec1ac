package shared

import "time"

// Clock supplies the current time. Services take one so tests can pin it.
type Clock func() time.Time

// SystemClock reads the wall clock.
var SystemClock Clock = time.Now
