package cleanup

import (
	"strconv"
	"strings"

	"github.com/xwb1989/sqlparser"

	apperrors "github.com/dbsweeper/dbsweeper/internal/errors"
)

// boundFunc is the canonical bound-distance function every destructive
// statement must call to prove it only touches rows older than the retention
// window. Matched case-insensitively.
const boundFunc = "date_sub"

// Day-equivalents for the accepted INTERVAL units.
const (
	daysPerMonth = 30
	daysPerYear  = 365
)

// SafetyValidator is a conservative static gate over rendered statements: it
// proves a statement is a single, WHERE-qualified DELETE whose reachable
// predicate graph contains a DATE_SUB interval at least as old as the
// configured retention window.
//
// It is not a semantic proof: a qualifying DATE_SUB in a logically
// disconnected AND branch still passes, even if it is not the predicate that
// actually gates the deleted rows. Callers own the remaining risk.
type SafetyValidator struct {
	retentionDays uint64
}

// NewSafetyValidator creates a validator enforcing the given retention
// window, in days.
func NewSafetyValidator(retentionDays uint64) *SafetyValidator {
	return &SafetyValidator{retentionDays: retentionDays}
}

// RetentionDays returns the configured retention window.
func (v *SafetyValidator) RetentionDays() uint64 { return v.retentionDays }

// Validate parses sql and returns nil only when the statement is provably a
// retention-bounded deletion. Every rejection carries a validation error with
// the reason.
func (v *SafetyValidator) Validate(sql string) error {
	first, rest, err := sqlparser.SplitStatement(sql)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeValidation, "parse statement")
	}
	if strings.TrimSpace(rest) != "" {
		return apperrors.Validation("only a single SQL statement is allowed")
	}

	stmt, err := sqlparser.Parse(first)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrCodeValidation, "parse statement")
	}

	del, ok := stmt.(*sqlparser.Delete)
	if !ok {
		return apperrors.Validation("only DELETE statements are allowed")
	}
	if del.Where == nil || del.Where.Expr == nil {
		return apperrors.Validation("DELETE statement must have a WHERE clause")
	}

	if !v.exprHasQualifyingBound(del.Where.Expr) {
		return apperrors.Validationf(
			"DELETE statement must be bounded by %s(..., INTERVAL n DAY|MONTH|YEAR) covering at least the %d day retention window",
			strings.ToUpper(boundFunc), v.retentionDays,
		)
	}

	return nil
}

// exprHasQualifyingBound walks the WHERE expression, descending only through
// AND, <, <= and IN-subquery nodes, looking for a qualifying bound-distance
// call.
func (v *SafetyValidator) exprHasQualifyingBound(expr sqlparser.Expr) bool {
	switch node := expr.(type) {
	case *sqlparser.AndExpr:
		return v.exprHasQualifyingBound(node.Left) || v.exprHasQualifyingBound(node.Right)
	case *sqlparser.ComparisonExpr:
		switch node.Operator {
		case sqlparser.LessThanStr, sqlparser.LessEqualStr:
			return v.exprHasQualifyingBound(node.Left) || v.exprHasQualifyingBound(node.Right)
		case sqlparser.InStr:
			sub, ok := node.Right.(*sqlparser.Subquery)
			if !ok {
				return false
			}
			return v.exprHasQualifyingBound(node.Left) || v.subqueryHasQualifyingBound(sub)
		}
		return false
	case *sqlparser.FuncExpr:
		return v.funcHasQualifyingInterval(node)
	}
	return false
}

// funcHasQualifyingInterval reports whether node is a DATE_SUB call carrying
// a qualifying INTERVAL argument.
func (v *SafetyValidator) funcHasQualifyingInterval(node *sqlparser.FuncExpr) bool {
	if !node.Name.EqualString(boundFunc) {
		return false
	}
	for _, selectExpr := range node.Exprs {
		aliased, ok := selectExpr.(*sqlparser.AliasedExpr)
		if !ok {
			continue
		}
		interval, ok := aliased.Expr.(*sqlparser.IntervalExpr)
		if !ok {
			continue
		}
		if v.intervalQualifies(interval) {
			return true
		}
	}
	return false
}

// intervalQualifies accepts only a non-negative integer literal with unit
// DAY, MONTH, or YEAR whose day-equivalent covers the retention window.
// Negative literals parse as a unary minus and never reach the integer case.
func (v *SafetyValidator) intervalQualifies(interval *sqlparser.IntervalExpr) bool {
	val, ok := interval.Expr.(*sqlparser.SQLVal)
	if !ok || val.Type != sqlparser.IntVal {
		return false
	}
	n, err := strconv.ParseUint(string(val.Val), 10, 64)
	if err != nil {
		return false
	}

	var days uint64
	switch strings.ToUpper(interval.Unit) {
	case "DAY":
		days = n
	case "MONTH":
		days = n * daysPerMonth
	case "YEAR":
		days = n * daysPerYear
	default:
		return false
	}
	return days >= v.retentionDays
}

// subqueryHasQualifyingBound inspects an IN-subquery. When the subquery has a
// WHERE clause the decision comes from that clause alone; otherwise derived
// tables in its FROM clause are searched recursively.
func (v *SafetyValidator) subqueryHasQualifyingBound(sub *sqlparser.Subquery) bool {
	sel, ok := sub.Select.(*sqlparser.Select)
	if !ok {
		return false
	}
	if sel.Where != nil {
		return v.exprHasQualifyingBound(sel.Where.Expr)
	}
	return v.fromHasQualifyingBound(sel.From)
}

// fromHasQualifyingBound searches derived-table subqueries reachable through
// a FROM clause.
func (v *SafetyValidator) fromHasQualifyingBound(from sqlparser.TableExprs) bool {
	for _, tableExpr := range from {
		aliased, ok := tableExpr.(*sqlparser.AliasedTableExpr)
		if !ok {
			continue
		}
		sub, ok := aliased.Expr.(*sqlparser.Subquery)
		if !ok {
			continue
		}
		sel, ok := sub.Select.(*sqlparser.Select)
		if !ok {
			continue
		}
		if sel.Where != nil && v.exprHasQualifyingBound(sel.Where.Expr) {
			return true
		}
		if len(sel.From) > 0 && v.fromHasQualifyingBound(sel.From) {
			return true
		}
	}
	return false
}
