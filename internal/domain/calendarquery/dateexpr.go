package calendarquery

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ExprKind tags the variants of the small date expression language the model
// is instructed to speak.
type ExprKind int

const (
	ExprUnknown ExprKind = iota
	ExprNow
	ExprToday
	ExprTomorrow
	ExprEndOfMonth
	ExprEndOfWeek
	ExprOffsetDays
	ExprOffsetWeeks
	ExprLiteral
)

// maxOffsetDays keeps relative offsets within a sane calendar horizon.
const maxOffsetDays = 366 * 10

var offsetPattern = regexp.MustCompile(`^\+\s*(\d+)\s*(days?|weeks?)$`)

// Absolute literals keep their own offset.
var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05-0700",
}

// Floating literals are wall-clock values placed in the active zone.
var floatingLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// DateExpr is a decoded date expression.
type DateExpr struct {
	Kind   ExprKind
	Amount int
	// Literal holds the parsed instant for ExprLiteral. When Floating is set
	// only its wall-clock fields are meaningful.
	Literal  time.Time
	Floating bool
}

// ParseDateExpr decodes a symbolic or ISO-8601 expression. It never fails;
// unrecognized input yields ExprUnknown.
func ParseDateExpr(raw string) DateExpr {
	trimmed := strings.TrimSpace(raw)
	lower := strings.ToLower(trimmed)
	switch lower {
	case "":
		return DateExpr{}
	case "now":
		return DateExpr{Kind: ExprNow}
	case "today":
		return DateExpr{Kind: ExprToday}
	case "tomorrow":
		return DateExpr{Kind: ExprTomorrow}
	case "end_of_month":
		return DateExpr{Kind: ExprEndOfMonth}
	case "end_of_week":
		return DateExpr{Kind: ExprEndOfWeek}
	}

	if strings.HasPrefix(lower, "+") {
		return parseOffset(lower)
	}
	return parseLiteral(strings.ToUpper(trimmed))
}

func parseOffset(expr string) DateExpr {
	match := offsetPattern.FindStringSubmatch(expr)
	if match == nil {
		return DateExpr{}
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return DateExpr{}
	}
	if strings.HasPrefix(match[2], "week") {
		if n > maxOffsetDays/7 {
			return DateExpr{}
		}
		return DateExpr{Kind: ExprOffsetWeeks, Amount: n}
	}
	if n > maxOffsetDays {
		return DateExpr{}
	}
	return DateExpr{Kind: ExprOffsetDays, Amount: n}
}

func parseLiteral(value string) DateExpr {
	for _, layout := range zonedLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return DateExpr{Kind: ExprLiteral, Literal: ts}
		}
	}
	for _, layout := range floatingLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return DateExpr{Kind: ExprLiteral, Literal: ts, Floating: true}
		}
	}
	return DateExpr{}
}

// Resolve anchors the expression to tc. ExprUnknown resolves to nil.
func (e DateExpr) Resolve(tc TemporalContext) *time.Time {
	var out time.Time
	switch e.Kind {
	case ExprNow:
		out = tc.Now
	case ExprToday:
		out = tc.Today
	case ExprTomorrow:
		out = tc.Tomorrow
	case ExprEndOfMonth:
		out = tc.EndOfMonth
	case ExprEndOfWeek:
		out = tc.EndOfWeek
	case ExprOffsetDays:
		out = tc.Now.AddDate(0, 0, e.Amount)
	case ExprOffsetWeeks:
		out = tc.Now.AddDate(0, 0, 7*e.Amount)
	case ExprLiteral:
		if e.Floating {
			l := e.Literal
			out = time.Date(l.Year(), l.Month(), l.Day(), l.Hour(), l.Minute(), l.Second(), l.Nanosecond(), tc.Location)
		} else {
			out = e.Literal.In(tc.Location)
		}
	default:
		return nil
	}
	return &out
}

// Resolve decodes and resolves expr in one step.
func Resolve(expr string, tc TemporalContext) *time.Time {
	return ParseDateExpr(expr).Resolve(tc)
}

func (e DateExpr) String() string {
	switch e.Kind {
	case ExprNow:
		return "now"
	case ExprToday:
		return "today"
	case ExprTomorrow:
		return "tomorrow"
	case ExprEndOfMonth:
		return "end_of_month"
	case ExprEndOfWeek:
		return "end_of_week"
	case ExprOffsetDays:
		return fmt.Sprintf("+%ddays", e.Amount)
	case ExprOffsetWeeks:
		return fmt.Sprintf("+%dweeks", e.Amount)
	case ExprLiteral:
		if e.Floating {
			return e.Literal.Format("2006-01-02T15:04:05")
		}
		return e.Literal.Format(time.RFC3339)
	default:
		return "unknown"
	}
}
