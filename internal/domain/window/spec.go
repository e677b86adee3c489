package window

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/okian/minirank/pkg/dateutil"
)

// AllTime is the name of the unbounded, incrementally maintained window.
const AllTime = "all_time"

const trailingPrefix = "last_"

// Spec names a window and how far back it reaches. Days == 0 means the
// window starts at the first stored day.
type Spec struct {
	Name string
	Days int
}

// Trailing returns the spec for the last n days, ending on the run day.
func Trailing(n int) Spec {
	return Spec{Name: trailingPrefix + strconv.Itoa(n), Days: n}
}

// AllTimeSpec returns the all-time window.
func AllTimeSpec() Spec {
	return Spec{Name: AllTime}
}

// Seeded reports whether the window resumes from its own saved state.
func (s Spec) Seeded() bool { return s.Days == 0 }

// Range returns the closed day range this window covers when ending on
// end, given the earliest day with data.
func (s Spec) Range(earliest, end time.Time) (time.Time, time.Time) {
	if s.Days == 0 {
		return earliest, end
	}
	start := dateutil.AddDays(end, -(s.Days - 1))
	if start.Before(earliest) {
		start = earliest
	}
	return start, end
}

// Specs builds the trailing windows followed by the all-time window.
func Specs(trailing []int) []Spec {
	out := make([]Spec, 0, len(trailing)+1)
	for _, n := range trailing {
		out = append(out, Trailing(n))
	}
	return append(out, AllTimeSpec())
}

// Lookup finds a window by name among specs.
func Lookup(specs []Spec, name string) (Spec, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, s := range specs {
		if s.Name == name {
			return s, nil
		}
	}
	return Spec{}, fmt.Errorf("%q: %w", name, ErrUnknownWindow)
}
