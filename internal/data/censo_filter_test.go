package data

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pedroarca/censoapi/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bogota = time.FixedZone("COT", -5*60*60)

func at(year int, month time.Month, day, hour, minute int) *time.Time {
	t := time.Date(year, month, day, hour, minute, 0, 0, bogota)
	return &t
}

func day(year int, month time.Month, d int) *time.Time {
	return at(year, month, d, 0, 0)
}

func censoFixture() []*Ingreso {
	return []*Ingreso{
		{AINID: 1, Consecutive: 1001, AdmittedAt: at(2025, 3, 1, 10, 0), PatientName: "Ana Pérez", PatientDocument: "123", Status: "Procesado", ProcessedAt: at(2025, 3, 2, 9, 0), Accuracy: 90},
		{AINID: 2, Consecutive: 1002, AdmittedAt: at(2025, 3, 2, 23, 30), PatientName: "Bruno Díaz", PatientDocument: "456", Status: "Incompleto", Accuracy: 50},
		{AINID: 3, Consecutive: 2001, AdmittedAt: at(2025, 3, 3, 8, 0), PatientName: "carla gómez", PatientDocument: "789", Status: "PROCESADO", ProcessedAt: at(2025, 3, 4, 15, 0), Accuracy: 70},
		{AINID: 4, Consecutive: 2002, PatientName: "Dario", PatientDocument: "1001", Status: "Pendiente"},
	}
}

func matchingIDs(f CensoFilter, ingresos []*Ingreso) []int64 {
	ids := []int64{}
	for _, i := range ingresos {
		if f.Matches(i) {
			ids = append(ids, i.AINID)
		}
	}
	return ids
}

func ids(ingresos []*Ingreso) []int64 {
	out := []int64{}
	for _, i := range ingresos {
		out = append(out, i.AINID)
	}
	return out
}

func TestCensoFilterMatches(t *testing.T) {
	tests := []struct {
		name   string
		filter CensoFilter
		want   []int64
	}{
		{name: "no filters", filter: CensoFilter{}, want: []int64{1, 2, 3, 4}},
		{name: "ingreso substring", filter: CensoFilter{Ingreso: "100"}, want: []int64{1, 2}},
		{name: "estado ignores case", filter: CensoFilter{Estado: "procesado"}, want: []int64{1, 3}},
		{name: "estado todos", filter: CensoFilter{Estado: "Todos"}, want: []int64{1, 2, 3, 4}},
		{name: "search admission number and document", filter: CensoFilter{Search: "1001"}, want: []int64{1, 4}},
		{name: "search patient name", filter: CensoFilter{Search: "GÓMEZ"}, want: []int64{3}},
		{name: "admitted single day", filter: CensoFilter{Admitted: DateRange{From: day(2025, 3, 2)}}, want: []int64{2}},
		{name: "admitted up to day", filter: CensoFilter{Admitted: DateRange{To: day(2025, 3, 2)}}, want: []int64{1, 2}},
		{name: "admitted inclusive range", filter: CensoFilter{Admitted: DateRange{From: day(2025, 3, 2), To: day(2025, 3, 3)}}, want: []int64{2, 3}},
		{name: "processed range skips missing dates", filter: CensoFilter{Processed: DateRange{From: day(2025, 3, 1), To: day(2025, 3, 31)}}, want: []int64{1, 3}},
		{name: "combined", filter: CensoFilter{Estado: "procesado", Search: "ana"}, want: []int64{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.filter.Location = bogota
			if diff := cmp.Diff(tt.want, matchingIDs(tt.filter, censoFixture())); diff != "" {
				t.Errorf("matching ids mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDateRangeUsesLocationDays(t *testing.T) {
	// 23:30 in Bogota is already the next day in UTC.
	admitted := at(2025, 3, 2, 23, 30)
	r := DateRange{From: day(2025, 3, 2)}

	assert.True(t, r.Contains(admitted, bogota))
	assert.False(t, r.Contains(admitted, time.UTC))
	assert.True(t, DateRange{}.Contains(nil, bogota))
	assert.False(t, r.Contains(nil, bogota))
}

func TestCensoFilterApply(t *testing.T) {
	tests := []struct {
		name     string
		sort     string
		page     int64
		pageSize int64
		want     []int64
	}{
		{name: "default sort first page", sort: "-ainfecing", page: 1, pageSize: 2, want: []int64{3, 2}},
		{name: "default sort second page", sort: "-ainfecing", page: 2, pageSize: 2, want: []int64{1, 4}},
		{name: "processed ascending nils last", sort: "fechainsert", page: 1, pageSize: 10, want: []int64{1, 3, 2, 4}},
		{name: "processed descending nils last", sort: "-fechainsert", page: 1, pageSize: 10, want: []int64{3, 1, 2, 4}},
		{name: "patient name ignores case", sort: "gpanomcom", page: 1, pageSize: 10, want: []int64{1, 2, 3, 4}},
		{name: "accuracy descending", sort: "-exactitud", page: 1, pageSize: 10, want: []int64{1, 3, 2, 4}},
		{name: "page past the end", sort: "ainconsec", page: 3, pageSize: 2, want: []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := CensoFilter{
				Filter:   Filter{Page: tt.page, PageSize: tt.pageSize, SortBy: tt.sort, SortSafeList: CensoSortSafelist},
				Location: bogota,
			}
			got, meta := f.Apply(censoFixture())
			assert.Equal(t, tt.want, ids(got))
			assert.Equal(t, int64(4), meta.TotalRecords)
			assert.Equal(t, tt.page, meta.CurrentPage)
		})
	}
}

func TestCensoFilterApplyNoMatches(t *testing.T) {
	f := CensoFilter{
		Filter: Filter{Page: 1, PageSize: 20, SortBy: "-ainfecing", SortSafeList: CensoSortSafelist},
		Estado: "Descargado",
	}
	got, meta := f.Apply(censoFixture())

	assert.Empty(t, got)
	assert.Equal(t, MetaData{}, meta)
}

func TestValidateCensoFilter(t *testing.T) {
	valid := Filter{Page: 1, PageSize: 20, SortBy: "-ainfecing", SortSafeList: CensoSortSafelist}

	tests := []struct {
		name    string
		filter  CensoFilter
		wantKey string
	}{
		{name: "page zero", filter: CensoFilter{Filter: Filter{Page: 0, PageSize: 20, SortBy: "ainid", SortSafeList: CensoSortSafelist}}, wantKey: "page"},
		{name: "page size too large", filter: CensoFilter{Filter: Filter{Page: 1, PageSize: 101, SortBy: "ainconsec", SortSafeList: CensoSortSafelist}}, wantKey: "page_size"},
		{name: "unknown sort", filter: CensoFilter{Filter: Filter{Page: 1, PageSize: 20, SortBy: "pacnumdoc", SortSafeList: CensoSortSafelist}}, wantKey: "sort"},
		{name: "admitted range reversed", filter: CensoFilter{Filter: valid, Admitted: DateRange{From: day(2025, 3, 5), To: day(2025, 3, 1)}}, wantKey: "ingreso_from"},
		{name: "processed range reversed", filter: CensoFilter{Filter: valid, Processed: DateRange{From: day(2025, 3, 5), To: day(2025, 3, 1)}}, wantKey: "procesado_from"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := validator.New()
			ValidateCensoFilter(v, tt.filter)
			require.False(t, v.IsValid())
			assert.Contains(t, v.Errors, tt.wantKey)
		})
	}

	t.Run("valid", func(t *testing.T) {
		v := validator.New()
		ValidateCensoFilter(v, CensoFilter{Filter: valid, Admitted: DateRange{From: day(2025, 3, 1), To: day(2025, 3, 1)}})
		assert.True(t, v.IsValid())
	})
}

func TestDistinctStatuses(t *testing.T) {
	ingresos := append(censoFixture(), &Ingreso{AINID: 5, Status: "Procesado"}, &Ingreso{AINID: 6})

	assert.Equal(t, []string{"Procesado", "Incompleto", "PROCESADO", "Pendiente"}, DistinctStatuses(ingresos))
}

func TestSplitObservations(t *testing.T) {
	assert.Equal(t, []string{"falta epicrisis", "firma", "orden"}, splitObservations("falta epicrisis, firma,, orden "))
	assert.Equal(t, []string{}, splitObservations(""))
}
