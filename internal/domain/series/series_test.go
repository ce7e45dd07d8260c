package series

import (
	"encoding/json"
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/creditconsole/internal/domain/model"
)

func point(month string, v *float64) model.SeriesPoint {
	return model.SeriesPoint{Month: model.MustYearMonth(month), Value: v}
}

func TestMerge(t *testing.T) {
	Convey("Given series with disjoint and overlapping months", t, func() {
		score := Named{Name: FieldScore, Points: []model.SeriesPoint{
			point("2025-03", model.Float(710)),
			point("2025-01", model.Float(700)),
		}}
		delinquency := Named{Name: FieldDelinquency, Points: []model.SeriesPoint{
			point("2025-02", model.Float(0.04)),
			point("2025-03", model.Float(0)),
		}}

		Convey("When they are merged", func() {
			rows := Merge(score, delinquency)

			Convey("Then the months are the sorted union", func() {
				So(rows, ShouldHaveLength, 3)
				So(rows[0].Month, ShouldEqual, model.YearMonth("2025-01"))
				So(rows[1].Month, ShouldEqual, model.YearMonth("2025-02"))
				So(rows[2].Month, ShouldEqual, model.YearMonth("2025-03"))
			})

			Convey("Then missing fields are absent, not zero", func() {
				So(rows[0].Has(FieldDelinquency), ShouldBeFalse)
				So(rows[1].Has(FieldScore), ShouldBeFalse)
				v, ok := rows[2].Value(FieldDelinquency)
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, 0)
				So(rows[2].Fields(), ShouldResemble, []string{FieldDelinquency, FieldScore})
			})
		})
	})

	Convey("Given nulls and repeated months", t, func() {
		src := Named{Name: FieldVolume, Points: []model.SeriesPoint{
			point("2025-01", model.Float(100)),
			point("2025-01", nil),
			point("2025-02", model.Float(math.NaN())),
			point("2025-03", model.Float(1)),
			point("2025-03", model.Float(2)),
		}}
		rows := Merge(src)

		Convey("Then a null never erases a value and a later value overwrites", func() {
			So(rows, ShouldHaveLength, 3)
			v, ok := rows[0].Value(FieldVolume)
			So(ok, ShouldBeTrue)
			So(v, ShouldEqual, 100)
			So(rows[1].Has(FieldVolume), ShouldBeFalse)
			v, _ = rows[2].Value(FieldVolume)
			So(v, ShouldEqual, 2)
		})
	})

	Convey("Given no sources", t, func() {
		So(Merge(), ShouldBeEmpty)
		So(Merge(Named{Name: FieldScore}), ShouldBeEmpty)
	})
}

func TestRowJSON(t *testing.T) {
	Convey("Given a merged row", t, func() {
		rows := Merge(
			Named{Name: FieldScore, Points: []model.SeriesPoint{point("2025-01", model.Float(700))}},
			Named{Name: FieldOnTimeRate, Points: []model.SeriesPoint{point("2025-01", nil)}},
		)

		Convey("Then it flattens to month plus present fields", func() {
			raw, err := json.Marshal(rows[0])
			So(err, ShouldBeNil)
			So(string(raw), ShouldEqual, `{"month":"2025-01","score":700}`)
		})
	})
}
