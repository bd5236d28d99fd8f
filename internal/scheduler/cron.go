package scheduler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

var ErrInvalidCronExpr = errors.New("invalid cron expression")

var secondsParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseCron accepts the standard five-field crontab form or a six-field
// form with a leading seconds column. In the six-field form "?" is read as "*".
func ParseCron(expr string) (cron.Schedule, error) {
	fields := strings.Fields(expr)

	switch len(fields) {
	case 5:
		sched, err := cron.ParseStandard(strings.Join(fields, " "))
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidCronExpr, expr, err)
		}
		return sched, nil
	case 6:
		for i, f := range fields {
			if f == "?" {
				fields[i] = "*"
			}
		}
		sched, err := secondsParser.Parse(strings.Join(fields, " "))
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidCronExpr, expr, err)
		}
		return sched, nil
	default:
		return nil, fmt.Errorf("%w %q: expected 5 or 6 fields, got %d", ErrInvalidCronExpr, expr, len(fields))
	}
}

// ValidateCron reports whether expr can be scheduled.
func ValidateCron(expr string) error {
	_, err := ParseCron(expr)
	return err
}
