package pipeline

import (
	"fmt"
	"strings"
	"time"

	"polltrack/internal/util"
)

const descriptorLayout = "2 Jan 2006"

// ResolveDate binds a "D Mon" descriptor to a calendar date. The year is the
// observed year, or the one before when the descriptor month lies after the
// observed month (December fieldwork reported in January).
func (p *Parser) ResolveDate(descriptor string, observed time.Time) (time.Time, error) {
	fields := strings.Fields(descriptor)
	if len(fields) != 2 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadDate, descriptor)
	}
	day, month := fields[0], p.tables.FixMonth(fields[1])

	mon, err := time.Parse("Jan", month)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: month %q in %q", ErrBadDate, month, descriptor)
	}

	year := observed.Year()
	if mon.Month() > observed.Month() {
		year--
	}

	resolved, err := time.Parse(descriptorLayout, fmt.Sprintf("%s %s %d", day, month, year))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrBadDate, descriptor, err)
	}
	return resolved, nil
}

// ResolveRange resolves both ends of tr. A nil range resolves to nil dates.
func (p *Parser) ResolveRange(tr *TimeRange, observed time.Time) (*time.Time, *time.Time, error) {
	if tr == nil {
		return nil, nil, nil
	}
	start, err := p.ResolveDate(tr.Start, observed)
	if err != nil {
		return nil, nil, err
	}
	end, err := p.ResolveDate(tr.End, observed)
	if err != nil {
		return nil, nil, err
	}
	return util.TimePtr(start), util.TimePtr(end), nil
}
