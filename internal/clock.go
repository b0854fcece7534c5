package internal

import (
	"time"

	"github.com/zoobzio/clockz"
)

// Clock supplies the timestamps written into transaction fields.
type Clock interface {
	Now() time.Time
}

var defaultClock Clock = clockz.RealClock
