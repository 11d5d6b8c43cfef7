package aggregate_test

import (
	"testing"

	"github.com/okian/precinct/internal/domain/aggregate"
	. "github.com/smartystreets/goconvey/convey"
)

func TestWinProbability(t *testing.T) {
	Convey("Given the win probability heuristic", t, func() {
		Convey("A zero margin sits exactly at 50", func() {
			So(aggregate.WinProbability(0, 0), ShouldEqual, 50)
			So(aggregate.WinProbability(0, 0.5), ShouldEqual, 50)
			So(aggregate.WinProbability(0, 1), ShouldEqual, 50)
		})

		Convey("It is symmetric around 50", func() {
			for _, m := range []float64{0.5, 2, 10, 40} {
				for _, s := range []float64{0, 0.3, 0.7, 1} {
					So(aggregate.WinProbability(m, s)+aggregate.WinProbability(-m, s),
						ShouldAlmostEqual, 100, 1e-9)
				}
			}
		})

		Convey("It is monotonic in the margin", func() {
			prev := aggregate.WinProbability(-60, 0.5)
			for m := -59.0; m <= 60; m++ {
				p := aggregate.WinProbability(m, 0.5)
				So(p, ShouldBeGreaterThanOrEqualTo, prev)
				prev = p
			}
		})

		Convey("It stays bounded to [0, 100]", func() {
			So(aggregate.WinProbability(1000, 1), ShouldBeLessThanOrEqualTo, 100)
			So(aggregate.WinProbability(-1000, 1), ShouldBeGreaterThanOrEqualTo, 0)
		})

		Convey("The same margin counts for more as the vote comes in", func() {
			early := aggregate.WinProbability(5, 0.1)
			late := aggregate.WinProbability(5, 0.9)
			So(late, ShouldBeGreaterThan, early)
		})

		Convey("The decided share is clamped to [0, 1]", func() {
			So(aggregate.WinProbability(5, -2), ShouldEqual, aggregate.WinProbability(5, 0))
			So(aggregate.WinProbability(5, 7), ShouldEqual, aggregate.WinProbability(5, 1))
		})
	})
}
