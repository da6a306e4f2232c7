// Filename: internal/data/censo_filter.go
package data

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pedroarca/censoapi/internal/validator"
)

// EstadoAll is the status value the dashboard sends to mean "no status filter".
const EstadoAll = "todos"

// CensoSortSafelist lists the sort values accepted for the censo table.
var CensoSortSafelist = []string{
	"ainconsec", "ainfecing", "gpanomcom", "estado", "exactitud", "fechainsert",
	"-ainconsec", "-ainfecing", "-gpanomcom", "-estado", "-exactitud", "-fechainsert",
}

// DateRange is an inclusive range of calendar days. A range with only From set
// selects that single day; only To set selects everything up to that day.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// IsZero reports whether the range selects everything.
func (r DateRange) IsZero() bool {
	return r.From == nil && r.To == nil
}

// Contains reports whether t falls on a day inside the range, with days taken in loc.
func (r DateRange) Contains(t *time.Time, loc *time.Location) bool {
	if r.IsZero() {
		return true
	}
	if t == nil {
		return false
	}
	day := startOfDay(*t, loc)
	switch {
	case r.From != nil && r.To == nil:
		return day.Equal(startOfDay(*r.From, loc))
	case r.From == nil:
		return !day.After(startOfDay(*r.To, loc))
	default:
		return !day.Before(startOfDay(*r.From, loc)) && !day.After(startOfDay(*r.To, loc))
	}
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// CensoFilter holds the dashboard filters for the admissions table.
type CensoFilter struct {
	Filter    Filter
	Ingreso   string
	Estado    string
	Search    string
	Admitted  DateRange
	Processed DateRange
	Location  *time.Location
}

// ValidateCensoFilter checks pagination, sort and the date ranges.
func ValidateCensoFilter(v *validator.Validator, f CensoFilter) {
	ValidateFilters(v, f.Filter)
	validateRange(v, "ingreso_from", f.Admitted)
	validateRange(v, "procesado_from", f.Processed)
}

func validateRange(v *validator.Validator, key string, r DateRange) {
	if r.From != nil && r.To != nil {
		v.Check(!r.From.After(*r.To), key, "must not be after the end of the range")
	}
}

func (f CensoFilter) location() *time.Location {
	if f.Location == nil {
		return time.UTC
	}
	return f.Location
}

// Matches reports whether an admission passes every filter.
func (f CensoFilter) Matches(i *Ingreso) bool {
	consecutive := strconv.FormatInt(i.Consecutive, 10)

	if f.Ingreso != "" && !containsFold(consecutive, f.Ingreso) {
		return false
	}

	if f.Estado != "" && !strings.EqualFold(f.Estado, EstadoAll) && !strings.EqualFold(i.Status, f.Estado) {
		return false
	}

	if f.Search != "" &&
		!containsFold(i.PatientName, f.Search) &&
		!containsFold(consecutive, f.Search) &&
		!containsFold(i.PatientDocument, f.Search) {
		return false
	}

	loc := f.location()
	return f.Admitted.Contains(i.AdmittedAt, loc) && f.Processed.Contains(i.ProcessedAt, loc)
}

// Select returns every matching admission in sort order, without paging.
func (f CensoFilter) Select(ingresos []*Ingreso) []*Ingreso {
	matched := make([]*Ingreso, 0, len(ingresos))
	for _, ingreso := range ingresos {
		if f.Matches(ingreso) {
			matched = append(matched, ingreso)
		}
	}

	sortCenso(matched, f.Filter)
	return matched
}

// Apply filters, sorts and paginates the admissions. The returned metadata
// describes the filtered set.
func (f CensoFilter) Apply(ingresos []*Ingreso) ([]*Ingreso, MetaData) {
	matched := f.Select(ingresos)
	meta := CalculateMetaData(int64(len(matched)), f.Filter.Page, f.Filter.PageSize)
	return paginate(matched, f.Filter), meta
}

// sortCenso orders admissions by the filter's sort column. Missing values go last
// in either direction and ties fall back to ainid.
func sortCenso(ingresos []*Ingreso, f Filter) {
	column := f.SortColumn()
	desc := f.SortDirection() == "DESC"

	slices.SortStableFunc(ingresos, func(a, b *Ingreso) int {
		var c int
		switch column {
		case "ainconsec":
			c = cmp.Compare(a.Consecutive, b.Consecutive)
		case "gpanomcom":
			c = strings.Compare(strings.ToLower(a.PatientName), strings.ToLower(b.PatientName))
		case "estado":
			c = strings.Compare(strings.ToLower(a.Status), strings.ToLower(b.Status))
		case "exactitud":
			c = cmp.Compare(a.Accuracy, b.Accuracy)
		case "ainfecing", "fechainsert":
			ta, tb := a.AdmittedAt, b.AdmittedAt
			if column == "fechainsert" {
				ta, tb = a.ProcessedAt, b.ProcessedAt
			}
			switch {
			case ta == nil && tb == nil:
				c = 0
			case ta == nil:
				return 1
			case tb == nil:
				return -1
			default:
				c = ta.Compare(*tb)
			}
		}
		if desc {
			c = -c
		}
		if c == 0 {
			return cmp.Compare(a.AINID, b.AINID)
		}
		return c
	})
}

// DistinctStatuses returns each status once, in first-seen order.
func DistinctStatuses(ingresos []*Ingreso) []string {
	seen := make(map[string]struct{})
	statuses := []string{}
	for _, ingreso := range ingresos {
		if ingreso.Status == "" {
			continue
		}
		if _, ok := seen[ingreso.Status]; ok {
			continue
		}
		seen[ingreso.Status] = struct{}{}
		statuses = append(statuses, ingreso.Status)
	}
	return statuses
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
